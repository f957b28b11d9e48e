package auth

import (
	"testing"

	"github.com/meililab/backend/internal/models"
)

func TestDetectEnv(t *testing.T) {
	tests := []struct {
		name string
		ua   string
		want string
	}{
		{"wechat", "Mozilla/5.0 (iPhone; CPU iPhone OS 17_0 like Mac OS X) MicroMessenger/8.0.42", models.EnvWeChat},
		{"qq app", "Mozilla/5.0 (Linux; Android 13) QQ/8.9.80.12440 V1_AND_SQ", models.EnvQQ},
		{"qq browser is a browser", "Mozilla/5.0 (Linux; Android 13) MQQBrowser/13.2 Mobile QQ/", models.EnvBrowser},
		{"android chrome", "Mozilla/5.0 (Linux; Android 14; Pixel 8) Chrome/120.0 Mobile Safari/537.36", models.EnvBrowser},
		{"ipad", "Mozilla/5.0 (iPad; CPU OS 16_6 like Mac OS X)", models.EnvBrowser},
		{"desktop", "Mozilla/5.0 (Windows NT 10.0; Win64; x64) Chrome/120.0 Safari/537.36", models.EnvOther},
		{"empty", "", models.EnvOther},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := DetectEnv(tt.ua); got != tt.want {
				t.Errorf("DetectEnv(%q) = %q, want %q", tt.ua, got, tt.want)
			}
		})
	}
}
