package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io/fs"
	"time"

	"github.com/pressly/goose/v3"
	_ "modernc.org/sqlite"

	"github.com/MJE43/senipy/internal/store/migrations"
)

// SQLiteDB implements the DB interface using SQLite
type SQLiteDB struct {
	db *sql.DB
}

// NewSQLiteDB creates a new SQLite database connection
func NewSQLiteDB(path string) (*SQLiteDB, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// Each connection to :memory: is its own database.
	if path == ":memory:" {
		db.SetMaxOpenConns(1)
	}

	// Enable WAL mode for better concurrency
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to enable WAL mode: %w", err)
	}
	if _, err := db.Exec("PRAGMA busy_timeout=5000"); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to set busy timeout: %w", err)
	}

	return &SQLiteDB{db: db}, nil
}

// Close closes the database connection
func (s *SQLiteDB) Close() error {
	return s.db.Close()
}

// Ping checks the connection is usable.
func (s *SQLiteDB) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// Migrate applies the embedded goose migrations.
func (s *SQLiteDB) Migrate(ctx context.Context) error {
	provider, err := goose.NewProvider(goose.DialectSQLite3, s.db, migrations.FS)
	if err != nil {
		return fmt.Errorf("failed to create migration provider: %w", err)
	}
	if _, err := provider.Up(ctx); err != nil {
		return fmt.Errorf("migration failed: %w", err)
	}
	return nil
}

// Version returns the current schema version.
func (s *SQLiteDB) Version(ctx context.Context) (int64, error) {
	provider, err := goose.NewProvider(goose.DialectSQLite3, s.db, migrations.FS)
	if err != nil {
		return 0, fmt.Errorf("failed to create migration provider: %w", err)
	}
	return provider.GetDBVersion(ctx)
}

// MigrationFiles lists the embedded migration file names.
func MigrationFiles() ([]string, error) {
	return fs.Glob(migrations.FS, "*.sql")
}

func (s *SQLiteDB) Get(ctx context.Context, namespace, key string) (string, error) {
	var value string
	err := s.db.QueryRowContext(ctx,
		`SELECT value FROM kv WHERE namespace = ? AND key = ?`, namespace, key).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return "", ErrNotFound
	}
	if err != nil {
		return "", fmt.Errorf("failed to get %s/%s: %w", namespace, key, err)
	}
	return value, nil
}

func (s *SQLiteDB) Put(ctx context.Context, namespace, key, value string) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO kv (namespace, key, value, updated_at) VALUES (?, ?, ?, ?)
		ON CONFLICT(namespace, key) DO UPDATE SET value = excluded.value, updated_at = excluded.updated_at`,
		namespace, key, value, toMillis(time.Now()))
	if err != nil {
		return fmt.Errorf("failed to put %s/%s: %w", namespace, key, err)
	}
	return nil
}

func (s *SQLiteDB) Delete(ctx context.Context, namespace, key string) error {
	if _, err := s.db.ExecContext(ctx,
		`DELETE FROM kv WHERE namespace = ? AND key = ?`, namespace, key); err != nil {
		return fmt.Errorf("failed to delete %s/%s: %w", namespace, key, err)
	}
	return nil
}

func (s *SQLiteDB) SaveSession(ctx context.Context, sess *Session) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO sessions (id, user_id, email, access_token, refresh_token, provider, expires_at, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			access_token = excluded.access_token,
			refresh_token = excluded.refresh_token,
			email = excluded.email,
			expires_at = excluded.expires_at`,
		sess.ID, sess.UserID, sess.Email, sess.AccessToken, sess.RefreshToken,
		sess.Provider, toMillis(sess.ExpiresAt), toMillis(sess.CreatedAt))
	if err != nil {
		return fmt.Errorf("failed to save session: %w", err)
	}
	return nil
}

func (s *SQLiteDB) GetSession(ctx context.Context, id string) (*Session, error) {
	var (
		sess               Session
		expires, createdAt int64
	)
	err := s.db.QueryRowContext(ctx, `
		SELECT id, user_id, email, access_token, refresh_token, provider, expires_at, created_at
		FROM sessions WHERE id = ?`, id).Scan(
		&sess.ID, &sess.UserID, &sess.Email, &sess.AccessToken, &sess.RefreshToken,
		&sess.Provider, &expires, &createdAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get session: %w", err)
	}
	sess.ExpiresAt = fromMillis(expires)
	sess.CreatedAt = fromMillis(createdAt)
	return &sess, nil
}

func (s *SQLiteDB) DeleteSession(ctx context.Context, id string) error {
	if _, err := s.db.ExecContext(ctx, `DELETE FROM sessions WHERE id = ?`, id); err != nil {
		return fmt.Errorf("failed to delete session: %w", err)
	}
	return nil
}

func (s *SQLiteDB) DeleteExpiredSessions(ctx context.Context, now time.Time) (int64, error) {
	res, err := s.db.ExecContext(ctx, `DELETE FROM sessions WHERE expires_at <= ?`, toMillis(now))
	if err != nil {
		return 0, fmt.Errorf("failed to delete expired sessions: %w", err)
	}
	return res.RowsAffected()
}

func (s *SQLiteDB) SaveOTPChallenge(ctx context.Context, c *OTPChallenge) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO otp_challenges (phone, code_hash, expires_at, attempts, resend_after)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(phone) DO UPDATE SET
			code_hash = excluded.code_hash,
			expires_at = excluded.expires_at,
			attempts = excluded.attempts,
			resend_after = excluded.resend_after`,
		c.Phone, c.CodeHash, toMillis(c.ExpiresAt), c.Attempts, toMillis(c.ResendAfter))
	if err != nil {
		return fmt.Errorf("failed to save otp challenge: %w", err)
	}
	return nil
}

func (s *SQLiteDB) GetOTPChallenge(ctx context.Context, phone string) (*OTPChallenge, error) {
	var (
		c               OTPChallenge
		expires, resend int64
	)
	err := s.db.QueryRowContext(ctx, `
		SELECT phone, code_hash, expires_at, attempts, resend_after
		FROM otp_challenges WHERE phone = ?`, phone).Scan(
		&c.Phone, &c.CodeHash, &expires, &c.Attempts, &resend)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get otp challenge: %w", err)
	}
	c.ExpiresAt = fromMillis(expires)
	c.ResendAfter = fromMillis(resend)
	return &c, nil
}

func (s *SQLiteDB) IncrementOTPAttempts(ctx context.Context, phone string) (int, error) {
	var attempts int
	err := s.db.QueryRowContext(ctx, `
		UPDATE otp_challenges SET attempts = attempts + 1 WHERE phone = ?
		RETURNING attempts`, phone).Scan(&attempts)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, ErrNotFound
	}
	if err != nil {
		return 0, fmt.Errorf("failed to increment otp attempts: %w", err)
	}
	return attempts, nil
}

func (s *SQLiteDB) DeleteOTPChallenge(ctx context.Context, phone string) error {
	if _, err := s.db.ExecContext(ctx, `DELETE FROM otp_challenges WHERE phone = ?`, phone); err != nil {
		return fmt.Errorf("failed to delete otp challenge: %w", err)
	}
	return nil
}

// toMillis normalizes timestamps into millisecond precision for storage.
func toMillis(t time.Time) int64 {
	return t.UTC().UnixMilli()
}

func fromMillis(ms int64) time.Time {
	return time.UnixMilli(ms).UTC()
}
