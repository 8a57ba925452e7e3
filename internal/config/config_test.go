package config

import (
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func baseEnv() map[string]string {
	return map[string]string{
		"SENIPY_BACKEND_URL":      "https://backend.example.com",
		"SENIPY_BACKEND_ANON_KEY": "anon",
	}
}

func TestParseDefaults(t *testing.T) {
	cfg, err := Parse(baseEnv())
	if err != nil {
		t.Fatalf("Parse failed: %v", err)
	}
	if cfg.Addr != ":8080" {
		t.Errorf("Addr = %q", cfg.Addr)
	}
	if cfg.SessionTTL != 7*24*time.Hour {
		t.Errorf("SessionTTL = %v", cfg.SessionTTL)
	}
	if cfg.GameSessionTTL != 30*time.Minute {
		t.Errorf("GameSessionTTL = %v", cfg.GameSessionTTL)
	}
	if cfg.OTPCode != "123456" {
		t.Errorf("OTPCode = %q", cfg.OTPCode)
	}
	if want := filepath.Join(".", ".senipy-secrets.json"); cfg.KeyringFallback != want {
		t.Errorf("KeyringFallback = %q, want %q", cfg.KeyringFallback, want)
	}
}

func TestParseOverrides(t *testing.T) {
	environ := baseEnv()
	environ["SENIPY_DB_PATH"] = "/var/lib/senipy/data.db"
	environ["SENIPY_GAME_SESSION_TTL"] = "5m"
	environ["SENIPY_LOG_FORMAT"] = "text"
	environ["SENIPY_LOG_LEVEL"] = "debug"

	cfg, err := Parse(environ)
	if err != nil {
		t.Fatalf("Parse failed: %v", err)
	}
	if cfg.GameSessionTTL != 5*time.Minute {
		t.Errorf("GameSessionTTL = %v", cfg.GameSessionTTL)
	}
	if cfg.KeyringFallback != "/var/lib/senipy/.senipy-secrets.json" {
		t.Errorf("KeyringFallback = %q", cfg.KeyringFallback)
	}
	if cfg.Logger() == nil {
		t.Error("expected a logger")
	}
}

func TestParseErrors(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(map[string]string)
		want   string
	}{
		{"missing backend", func(e map[string]string) { delete(e, "SENIPY_BACKEND_URL") }, "BACKEND_URL"},
		{"relative backend", func(e map[string]string) { e["SENIPY_BACKEND_URL"] = "/api" }, "BACKEND_URL"},
		{"bad otp", func(e map[string]string) { e["SENIPY_OTP_CODE"] = "12ab56" }, "OTP_CODE"},
		{"bad level", func(e map[string]string) { e["SENIPY_LOG_LEVEL"] = "loud" }, "LOG_LEVEL"},
		{"bad format", func(e map[string]string) { e["SENIPY_LOG_FORMAT"] = "xml" }, "LOG_FORMAT"},
		{"bad duration", func(e map[string]string) { e["SENIPY_SESSION_TTL"] = "forever" }, "SessionTTL"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			environ := baseEnv()
			tt.mutate(environ)
			_, err := Parse(environ)
			if err == nil {
				t.Fatal("expected an error")
			}
			if !strings.Contains(err.Error(), tt.want) {
				t.Errorf("error %q does not mention %s", err, tt.want)
			}
		})
	}
}
