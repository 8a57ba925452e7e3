package store

import (
	"context"
	"errors"
	"time"
)

// ErrNotFound is returned when a row does not exist.
var ErrNotFound = errors.New("not found")

// DB represents the database interface
type DB interface {
	Close() error
	Migrate(ctx context.Context) error
	Ping(ctx context.Context) error

	KV
	Sessions
	OTPChallenges
}

// KV is the per-visitor key-value storage that stands in for browser
// local storage.
type KV interface {
	Get(ctx context.Context, namespace, key string) (string, error)
	Put(ctx context.Context, namespace, key, value string) error
	Delete(ctx context.Context, namespace, key string) error
}

// Sessions persists server-side auth sessions.
type Sessions interface {
	SaveSession(ctx context.Context, s *Session) error
	GetSession(ctx context.Context, id string) (*Session, error)
	DeleteSession(ctx context.Context, id string) error
	DeleteExpiredSessions(ctx context.Context, now time.Time) (int64, error)
}

// OTPChallenges persists pending phone verification codes.
type OTPChallenges interface {
	SaveOTPChallenge(ctx context.Context, c *OTPChallenge) error
	GetOTPChallenge(ctx context.Context, phone string) (*OTPChallenge, error)
	IncrementOTPAttempts(ctx context.Context, phone string) (int, error)
	DeleteOTPChallenge(ctx context.Context, phone string) error
}

// Session is the server-side record behind a session cookie.
type Session struct {
	ID           string    `json:"id"`
	UserID       string    `json:"user_id"`
	Email        string    `json:"email"`
	AccessToken  string    `json:"-"`
	RefreshToken string    `json:"-"`
	Provider     string    `json:"provider"`
	ExpiresAt    time.Time `json:"expires_at"`
	CreatedAt    time.Time `json:"created_at"`
}

// Expired reports whether the session is past its expiry at now.
func (s *Session) Expired(now time.Time) bool {
	return !now.Before(s.ExpiresAt)
}

// OTPChallenge is a pending phone verification.
type OTPChallenge struct {
	Phone       string
	CodeHash    string
	ExpiresAt   time.Time
	Attempts    int
	ResendAfter time.Time
}
