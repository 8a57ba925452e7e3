package store

import (
	"context"
	"errors"
	"testing"
	"time"
)

func newTestDB(t *testing.T) *SQLiteDB {
	t.Helper()
	db, err := NewSQLiteDB(":memory:")
	if err != nil {
		t.Fatalf("Failed to create test database: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	if err := db.Migrate(context.Background()); err != nil {
		t.Fatalf("Failed to migrate: %v", err)
	}
	return db
}

func TestKV(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()

	if _, err := db.Get(ctx, "visitor-a", "gameScores"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}

	if err := db.Put(ctx, "visitor-a", "gameScores", `{"version":2}`); err != nil {
		t.Fatalf("Put failed: %v", err)
	}
	if err := db.Put(ctx, "visitor-a", "gameScores", `{"version":2,"scores":{"memory":80}}`); err != nil {
		t.Fatalf("overwrite failed: %v", err)
	}

	got, err := db.Get(ctx, "visitor-a", "gameScores")
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if got != `{"version":2,"scores":{"memory":80}}` {
		t.Errorf("unexpected value %q", got)
	}

	// Namespaces are isolated.
	if _, err := db.Get(ctx, "visitor-b", "gameScores"); !errors.Is(err, ErrNotFound) {
		t.Errorf("expected other namespace to be empty, got %v", err)
	}

	if err := db.Delete(ctx, "visitor-a", "gameScores"); err != nil {
		t.Fatalf("Delete failed: %v", err)
	}
	if _, err := db.Get(ctx, "visitor-a", "gameScores"); !errors.Is(err, ErrNotFound) {
		t.Errorf("expected deleted key to be gone, got %v", err)
	}
}

func TestSessions(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()
	now := time.Date(2024, 3, 1, 10, 0, 0, 0, time.UTC)

	live := &Session{
		ID:          "s1",
		UserID:      "u1",
		Email:       "john@example.com",
		AccessToken: "access",
		Provider:    "email",
		ExpiresAt:   now.Add(time.Hour),
		CreatedAt:   now,
	}
	stale := &Session{
		ID:          "s2",
		UserID:      "u2",
		Email:       "jane@example.com",
		AccessToken: "access2",
		Provider:    "github",
		ExpiresAt:   now.Add(-time.Minute),
		CreatedAt:   now.Add(-time.Hour),
	}
	for _, s := range []*Session{live, stale} {
		if err := db.SaveSession(ctx, s); err != nil {
			t.Fatalf("SaveSession failed: %v", err)
		}
	}

	got, err := db.GetSession(ctx, "s1")
	if err != nil {
		t.Fatalf("GetSession failed: %v", err)
	}
	if got.Email != live.Email || got.AccessToken != "access" || !got.ExpiresAt.Equal(live.ExpiresAt) {
		t.Errorf("unexpected session: %+v", got)
	}
	if got.Expired(now) {
		t.Error("live session reported expired")
	}

	n, err := db.DeleteExpiredSessions(ctx, now)
	if err != nil {
		t.Fatalf("DeleteExpiredSessions failed: %v", err)
	}
	if n != 1 {
		t.Errorf("expected 1 expired session removed, got %d", n)
	}
	if _, err := db.GetSession(ctx, "s2"); !errors.Is(err, ErrNotFound) {
		t.Errorf("expected expired session gone, got %v", err)
	}

	if err := db.DeleteSession(ctx, "s1"); err != nil {
		t.Fatalf("DeleteSession failed: %v", err)
	}
	if _, err := db.GetSession(ctx, "s1"); !errors.Is(err, ErrNotFound) {
		t.Errorf("expected deleted session gone, got %v", err)
	}
}

func TestOTPChallenges(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()
	now := time.Date(2024, 3, 1, 10, 0, 0, 0, time.UTC)

	c := &OTPChallenge{
		Phone:       "+15550100",
		CodeHash:    "hash",
		ExpiresAt:   now.Add(5 * time.Minute),
		ResendAfter: now.Add(time.Minute),
	}
	if err := db.SaveOTPChallenge(ctx, c); err != nil {
		t.Fatalf("SaveOTPChallenge failed: %v", err)
	}

	for want := 1; want <= 3; want++ {
		got, err := db.IncrementOTPAttempts(ctx, c.Phone)
		if err != nil {
			t.Fatalf("IncrementOTPAttempts failed: %v", err)
		}
		if got != want {
			t.Errorf("attempts = %d, want %d", got, want)
		}
	}

	stored, err := db.GetOTPChallenge(ctx, c.Phone)
	if err != nil {
		t.Fatalf("GetOTPChallenge failed: %v", err)
	}
	if stored.Attempts != 3 || !stored.ResendAfter.Equal(c.ResendAfter) {
		t.Errorf("unexpected challenge: %+v", stored)
	}

	// Resending replaces the challenge and resets attempts.
	c.CodeHash = "hash2"
	if err := db.SaveOTPChallenge(ctx, c); err != nil {
		t.Fatal(err)
	}
	stored, _ = db.GetOTPChallenge(ctx, c.Phone)
	if stored.Attempts != 0 || stored.CodeHash != "hash2" {
		t.Errorf("expected reset challenge, got %+v", stored)
	}

	if err := db.DeleteOTPChallenge(ctx, c.Phone); err != nil {
		t.Fatal(err)
	}
	if _, err := db.IncrementOTPAttempts(ctx, c.Phone); !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}
