package referral

import (
	"errors"
	"strings"
)

// CodeLength is the length of a short referral code: six fingerprint
// characters followed by two checksum letters.
const CodeLength = 8

const suffixLength = 6

var (
	// ErrFingerprintTooShort is returned when a fingerprint cannot yield a code.
	ErrFingerprintTooShort = errors.New("fingerprint shorter than 6 characters")
	// ErrFingerprintNotASCII is returned when the trailing six bytes of a
	// fingerprint are not printable ASCII; such a code could never resolve.
	ErrFingerprintNotASCII = errors.New("fingerprint suffix is not printable ASCII")
)

// Code derives the short referral code for a device fingerprint.
func Code(fingerprint string) (string, error) {
	if len(fingerprint) < suffixLength {
		return "", ErrFingerprintTooShort
	}
	suffix := fingerprint[len(fingerprint)-suffixLength:]
	if !printableASCII(suffix) {
		return "", ErrFingerprintNotASCII
	}
	c1, c2 := checksum(fingerprint)
	return strings.ToUpper(suffix) + string([]byte{c1, c2}), nil
}

// checksum folds the fingerprint into a 32-bit hash (h = h*31 + b, wrapping)
// and maps it onto two uppercase letters.
func checksum(fingerprint string) (byte, byte) {
	var h int32
	for i := 0; i < len(fingerprint); i++ {
		h = h*31 + int32(fingerprint[i])
	}
	return 'A' + byte(abs(int64(h))%26), 'A' + byte(abs(int64(h>>5))%26)
}

func printableASCII(s string) bool {
	for i := 0; i < len(s); i++ {
		if s[i] < 0x21 || s[i] > 0x7e {
			return false
		}
	}
	return true
}

func abs(v int64) int64 {
	if v < 0 {
		return -v
	}
	return v
}

// WellFormed reports whether code has the shape of a short referral code.
func WellFormed(code string) bool {
	if len(code) != CodeLength || !printableASCII(code[:suffixLength]) {
		return false
	}
	for _, c := range code[suffixLength:] {
		if c < 'A' || c > 'Z' {
			return false
		}
	}
	return true
}
