// Package config loads the service configuration from the environment.
package config

import (
	"fmt"
	"log/slog"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
)

// Prefix is prepended to every variable name.
const Prefix = "SENIPY_"

// Config is the full service configuration.
type Config struct {
	Addr   string `env:"ADDR" envDefault:":8080"`
	DBPath string `env:"DB_PATH" envDefault:"senipy.db"`
	// SiteURL is the public origin used in redirects and the QR code.
	SiteURL string `env:"SITE_URL" envDefault:"http://localhost:8080"`

	BackendURL     string `env:"BACKEND_URL,required,notEmpty"`
	BackendAnonKey string `env:"BACKEND_ANON_KEY,required,notEmpty"`

	APKURL  string `env:"APK_URL" envDefault:"https://senipy.com/downloads/robo-companion.apk"`
	APKSize uint64 `env:"APK_SIZE" envDefault:"48234496"`

	KeyringService string `env:"KEYRING_SERVICE" envDefault:"senipy"`
	// KeyringFallback is used when no OS keyring is available. Empty means
	// a file next to the database.
	KeyringFallback string `env:"KEYRING_FALLBACK"`

	SessionTTL     time.Duration `env:"SESSION_TTL" envDefault:"168h"`
	GameSessionTTL time.Duration `env:"GAME_SESSION_TTL" envDefault:"30m"`
	OTPCode        string        `env:"OTP_CODE" envDefault:"123456"`
	CookieSecure   bool          `env:"COOKIE_SECURE" envDefault:"false"`

	LogLevel  string `env:"LOG_LEVEL" envDefault:"info"`
	LogFormat string `env:"LOG_FORMAT" envDefault:"json"`
}

// Load parses the process environment.
func Load() (Config, error) {
	return Parse(nil)
}

// Parse reads configuration from environ, or the process environment when
// environ is nil.
func Parse(environ map[string]string) (Config, error) {
	opts := env.Options{Prefix: Prefix}
	if environ != nil {
		opts.Environment = environ
	}
	cfg, err := env.ParseAsWithOptions[Config](opts)
	if err != nil {
		return Config{}, fmt.Errorf("parse env: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	if cfg.KeyringFallback == "" {
		cfg.KeyringFallback = filepath.Join(filepath.Dir(cfg.DBPath), ".senipy-secrets.json")
	}
	return cfg, nil
}

// Validate checks values the parser cannot.
func (c Config) Validate() error {
	for name, raw := range map[string]string{"SITE_URL": c.SiteURL, "BACKEND_URL": c.BackendURL} {
		u, err := url.Parse(raw)
		if err != nil || u.Scheme == "" || u.Host == "" {
			return fmt.Errorf("%s%s must be an absolute URL, got %q", Prefix, name, raw)
		}
	}
	if len(c.OTPCode) != 6 || strings.Trim(c.OTPCode, "0123456789") != "" {
		return fmt.Errorf("%sOTP_CODE must be six digits", Prefix)
	}
	if _, err := parseLevel(c.LogLevel); err != nil {
		return err
	}
	switch c.LogFormat {
	case "json", "text":
	default:
		return fmt.Errorf("%sLOG_FORMAT must be json or text, got %q", Prefix, c.LogFormat)
	}
	return nil
}

// Logger builds the root logger: JSON in production, text for development.
func (c Config) Logger() *slog.Logger {
	level, _ := parseLevel(c.LogLevel)
	opts := &slog.HandlerOptions{Level: level}
	if c.LogFormat == "text" {
		return slog.New(slog.NewTextHandler(os.Stderr, opts))
	}
	return slog.New(slog.NewJSONHandler(os.Stderr, opts))
}

func parseLevel(s string) (slog.Level, error) {
	var level slog.Level
	if err := level.UnmarshalText([]byte(s)); err != nil {
		return 0, fmt.Errorf("%sLOG_LEVEL: %w", Prefix, err)
	}
	return level, nil
}
