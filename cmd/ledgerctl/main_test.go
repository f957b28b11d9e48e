package main

import (
	"bytes"
	"strings"
	"testing"
)

func run(t *testing.T, args ...string) (string, error) {
	t.Helper()
	cmd := newRootCmd()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetArgs(args)
	err := cmd.Execute()
	return out.String(), err
}

func TestReferralCode(t *testing.T) {
	out, err := run(t, "referral", "code", "fp_1a2b3c4d5e")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if strings.TrimSpace(out) != "3C4D5EFN" {
		t.Errorf("got %q, want 3C4D5EFN", out)
	}
}

func TestReferralCode_ShortFingerprint(t *testing.T) {
	if _, err := run(t, "referral", "code", "abc"); err == nil {
		t.Fatal("expected an error for a fingerprint shorter than six characters")
	}
}

func TestArgsAreChecked(t *testing.T) {
	for _, args := range [][]string{
		{"orders", "fulfill"},
		{"config", "set", "commission_rate"},
		{"referral", "resolve", "A", "B"},
	} {
		if _, err := run(t, args...); err == nil {
			t.Errorf("%v: expected an argument error", args)
		}
	}
}
