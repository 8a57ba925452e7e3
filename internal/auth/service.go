// Package auth runs the sign-in, sign-up, OAuth and phone verification flows
// against the hosted backend and keeps the server-side sessions behind the
// signed session cookie.
package auth

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"strings"
	"time"

	"github.com/google/uuid"
	"golang.org/x/oauth2"

	"github.com/MJE43/senipy/internal/schedule"
	"github.com/MJE43/senipy/internal/store"
	"github.com/MJE43/senipy/internal/supa"
)

// Backend is the subset of the hosted backend the flows use.
type Backend interface {
	SignInWithPassword(ctx context.Context, email, password string) (*supa.Session, error)
	RefreshSession(ctx context.Context, refreshToken string) (*supa.Session, error)
	SignUp(ctx context.Context, p supa.SignUpParams) (*supa.SignUpResult, error)
	AuthorizeURL(provider, redirectTo, codeChallenge string) string
	ExchangeCode(ctx context.Context, authCode, codeVerifier string) (*supa.Session, error)
	SignOut(ctx context.Context, accessToken string) error
}

// Providers lists the supported OAuth providers.
var Providers = []string{"google", "github"}

// Config tunes the flows.
type Config struct {
	// SiteURL is the public origin used for email and OAuth redirects.
	SiteURL string
	// SessionTTL bounds the life of a session cookie.
	SessionTTL time.Duration
	// OTP settings for the simulated phone verification.
	OTPCode        string
	OTPTTL         time.Duration
	OTPCooldown    time.Duration
	OTPMaxAttempts int
}

func (c *Config) defaults() {
	if c.SessionTTL <= 0 {
		c.SessionTTL = 7 * 24 * time.Hour
	}
	if c.OTPCode == "" {
		c.OTPCode = "123456"
	}
	if c.OTPTTL <= 0 {
		c.OTPTTL = 5 * time.Minute
	}
	if c.OTPCooldown <= 0 {
		c.OTPCooldown = time.Minute
	}
	if c.OTPMaxAttempts <= 0 {
		c.OTPMaxAttempts = 5
	}
}

// Identity is what the rest of the site knows about a signed-in user.
type Identity struct {
	SessionID string    `json:"-"`
	UserID    string    `json:"id"`
	Email     string    `json:"email"`
	FirstName string    `json:"first_name,omitempty"`
	LastName  string    `json:"last_name,omitempty"`
	Provider  string    `json:"provider"`
	ExpiresAt time.Time `json:"expires_at"`

	accessToken string
}

// AccessToken is the backend token for user-scoped calls.
func (i *Identity) AccessToken() string { return i.accessToken }

// SignedIn is the result of a successful sign in: the identity and the
// cookie value to set.
type SignedIn struct {
	Identity Identity
	Token    string
	Expires  time.Time
}

// SignupRequest is the email signup form.
type SignupRequest struct {
	Email       string `json:"email"`
	Password    string `json:"password"`
	FirstName   string `json:"first_name"`
	LastName    string `json:"last_name"`
	AcceptTerms bool   `json:"accept_terms"`
}

// SignupResult tells the user what happens next.
type SignupResult struct {
	NeedsConfirmation bool      `json:"needs_confirmation"`
	Title             string    `json:"title"`
	Message           string    `json:"message"`
	SignedIn          *SignedIn `json:"-"`
}

// Service implements the auth flows.
type Service struct {
	cfg     Config
	backend Backend
	db      store.Sessions
	otp     store.OTPChallenges
	signer  *Signer
	hub     *Hub
	clock   schedule.Clock
	logger  *slog.Logger
}

// NewService wires the flows together.
func NewService(cfg Config, backend Backend, sessions store.Sessions, otp store.OTPChallenges, signer *Signer, hub *Hub, clock schedule.Clock, logger *slog.Logger) *Service {
	cfg.defaults()
	if clock == nil {
		clock = schedule.System()
	}
	if logger == nil {
		logger = slog.Default()
	}
	if hub == nil {
		hub = NewHub()
	}
	return &Service{
		cfg:     cfg,
		backend: backend,
		db:      sessions,
		otp:     otp,
		signer:  signer,
		hub:     hub,
		clock:   clock,
		logger:  logger.With("component", "auth"),
	}
}

// Hub returns the auth event hub.
func (s *Service) Hub() *Hub { return s.hub }

// Login signs in with email and password.
func (s *Service) Login(ctx context.Context, visitor, email, password string) (*SignedIn, error) {
	email = strings.TrimSpace(email)
	if !strings.Contains(email, "@") {
		return nil, invalid("email", "Email Required", "Please enter a valid email address")
	}
	if password == "" {
		return nil, invalid("password", "Missing Information", "Please enter your password")
	}

	sess, err := s.backend.SignInWithPassword(ctx, email, password)
	if err != nil {
		s.logger.Warn("login_failed", "email_hash", HashEmail(email), "error", supa.Message(err))
		return nil, err
	}
	return s.startSession(ctx, visitor, sess, "email")
}

// Signup registers an email user. The backend usually requires the address
// to be confirmed first, in which case no session is started.
func (s *Service) Signup(ctx context.Context, visitor string, req SignupRequest) (*SignupResult, error) {
	if err := validateSignup(req, true); err != nil {
		return nil, err
	}
	return s.signup(ctx, visitor, strings.TrimSpace(req.Email), req)
}

func validateSignup(req SignupRequest, needEmail bool) error {
	if !req.AcceptTerms {
		return invalid("accept_terms", "Terms Agreement Required", "Please agree to the terms and conditions to continue")
	}
	if strings.TrimSpace(req.FirstName) == "" || strings.TrimSpace(req.LastName) == "" || req.Password == "" {
		return invalid("form", "Missing Information", "Please fill in all required fields")
	}
	if needEmail && !strings.Contains(req.Email, "@") {
		return invalid("email", "Email Required", "Please enter your email address")
	}
	return nil
}

func (s *Service) signup(ctx context.Context, visitor, email string, req SignupRequest) (*SignupResult, error) {
	res, err := s.backend.SignUp(ctx, supa.SignUpParams{
		Email:      email,
		Password:   req.Password,
		FirstName:  strings.TrimSpace(req.FirstName),
		LastName:   strings.TrimSpace(req.LastName),
		RedirectTo: s.siteURL("/login"),
	})
	if err != nil {
		s.logger.Warn("signup_failed", "email_hash", HashEmail(email), "error", supa.Message(err))
		return nil, err
	}
	s.logger.Info("signup_completed", "email_hash", HashEmail(email), "confirmed", res.Session != nil)

	if res.Session == nil {
		return &SignupResult{
			NeedsConfirmation: true,
			Title:             "Registration Initiated",
			Message:           "Please check your email to confirm your account",
		}, nil
	}

	in, err := s.startSession(ctx, visitor, res.Session, "email")
	if err != nil {
		return nil, err
	}
	return &SignupResult{Title: "Registration Successful", Message: "Your account has been created", SignedIn: in}, nil
}

// OAuthStart returns the authorize URL for provider and the PKCE verifier
// the caller must keep until the callback.
func (s *Service) OAuthStart(provider string) (redirect, verifier string, err error) {
	if !knownProvider(provider) {
		return "", "", fmt.Errorf("%w: %q", ErrUnknownProvider, provider)
	}
	verifier = oauth2.GenerateVerifier()
	challenge := oauth2.S256ChallengeFromVerifier(verifier)
	callback := s.siteURL("/api/v1/auth/callback")
	return s.backend.AuthorizeURL(provider, callback, challenge), verifier, nil
}

// OAuthCallback exchanges the authorization code for a session.
func (s *Service) OAuthCallback(ctx context.Context, visitor, code, verifier string) (*SignedIn, error) {
	if verifier == "" {
		return nil, ErrMissingVerifier
	}
	if code == "" {
		return nil, invalid("code", "Sign In Failed", "Missing authorization code")
	}
	sess, err := s.backend.ExchangeCode(ctx, code, verifier)
	if err != nil {
		s.logger.Warn("oauth_exchange_failed", "error", supa.Message(err))
		return nil, err
	}
	provider := sess.User.AppMetadata.Provider
	if provider == "" {
		provider = "oauth"
	}
	return s.startSession(ctx, visitor, sess, provider)
}

// Logout ends the session behind token. Backend revocation is best effort.
func (s *Service) Logout(ctx context.Context, visitor, token string) error {
	id, err := s.signer.Verify(token)
	if err != nil {
		return nil
	}
	sess, err := s.db.GetSession(ctx, id)
	if errors.Is(err, store.ErrNotFound) {
		return nil
	}
	if err != nil {
		return err
	}

	if err := s.backend.SignOut(ctx, sess.AccessToken); err != nil {
		s.logger.Warn("backend_signout_failed", "session_id", sess.ID, "error", supa.Message(err))
	}
	if err := s.db.DeleteSession(ctx, sess.ID); err != nil {
		return err
	}
	s.logger.Info("signed_out", "session_id", sess.ID)
	s.hub.Publish(visitor, Event{Type: EventSignedOut, UserID: sess.UserID, At: s.clock.Now()})
	return nil
}

// Authenticate resolves a session cookie. Sessions whose backend token has
// expired are refreshed once; if that fails the session is dropped.
func (s *Service) Authenticate(ctx context.Context, token string) (*Identity, error) {
	if token == "" {
		return nil, ErrUnauthenticated
	}
	id, err := s.signer.Verify(token)
	if err != nil {
		return nil, err
	}
	sess, err := s.db.GetSession(ctx, id)
	if errors.Is(err, store.ErrNotFound) {
		return nil, ErrUnauthenticated
	}
	if err != nil {
		return nil, err
	}

	if sess.Expired(s.clock.Now()) {
		if sess, err = s.refresh(ctx, sess); err != nil {
			return nil, err
		}
	}
	return identityFrom(sess), nil
}

func (s *Service) refresh(ctx context.Context, sess *store.Session) (*store.Session, error) {
	if sess.RefreshToken == "" {
		_ = s.db.DeleteSession(ctx, sess.ID)
		return nil, ErrUnauthenticated
	}
	fresh, err := s.backend.RefreshSession(ctx, sess.RefreshToken)
	if err != nil {
		s.logger.Info("session_refresh_failed", "session_id", sess.ID, "error", supa.Message(err))
		if supa.IsAuthError(err) {
			_ = s.db.DeleteSession(ctx, sess.ID)
			return nil, ErrUnauthenticated
		}
		return nil, err
	}
	sess.AccessToken = fresh.AccessToken
	if fresh.RefreshToken != "" {
		sess.RefreshToken = fresh.RefreshToken
	}
	sess.ExpiresAt = fresh.Expiry(s.clock.Now())
	if err := s.db.SaveSession(ctx, sess); err != nil {
		return nil, err
	}
	return sess, nil
}

// NotifyUserUpdated tells the visitor's browsers the profile changed.
func (s *Service) NotifyUserUpdated(visitor string, id *Identity) {
	s.hub.Publish(visitor, Event{Type: EventUserUpdated, UserID: id.UserID, Email: id.Email, At: s.clock.Now()})
}

// PruneSessions deletes sessions whose cookie can no longer be valid.
func (s *Service) PruneSessions(ctx context.Context) (int64, error) {
	return s.db.DeleteExpiredSessions(ctx, s.clock.Now().Add(-s.cfg.SessionTTL))
}

func (s *Service) startSession(ctx context.Context, visitor string, bs *supa.Session, provider string) (*SignedIn, error) {
	now := s.clock.Now()
	sess := &store.Session{
		ID:           uuid.NewString(),
		UserID:       bs.User.ID,
		Email:        bs.User.Email,
		AccessToken:  bs.AccessToken,
		RefreshToken: bs.RefreshToken,
		Provider:     provider,
		ExpiresAt:    bs.Expiry(now),
		CreatedAt:    now,
	}
	if err := s.db.SaveSession(ctx, sess); err != nil {
		return nil, err
	}

	expires := now.Add(s.cfg.SessionTTL)
	token, err := s.signer.Sign(sess.ID, expires)
	if err != nil {
		return nil, err
	}

	id := identityFrom(sess)
	id.FirstName, id.LastName = bs.User.FirstName(), bs.User.LastName()

	s.logger.Info("signed_in", "session_id", sess.ID, "provider", provider, "email_hash", HashEmail(sess.Email))
	s.hub.Publish(visitor, Event{Type: EventSignedIn, UserID: sess.UserID, Email: sess.Email, At: now})
	return &SignedIn{Identity: *id, Token: token, Expires: expires}, nil
}

func (s *Service) siteURL(path string) string {
	base, err := url.Parse(strings.TrimRight(s.cfg.SiteURL, "/"))
	if err != nil || s.cfg.SiteURL == "" {
		return path
	}
	return base.JoinPath(path).String()
}

func identityFrom(sess *store.Session) *Identity {
	return &Identity{
		SessionID:   sess.ID,
		UserID:      sess.UserID,
		Email:       sess.Email,
		Provider:    sess.Provider,
		ExpiresAt:   sess.ExpiresAt,
		accessToken: sess.AccessToken,
	}
}

func knownProvider(p string) bool {
	for _, known := range Providers {
		if p == known {
			return true
		}
	}
	return false
}

// HashEmail returns a short stable digest of an email for logs.
func HashEmail(email string) string {
	if email == "" {
		return ""
	}
	sum := sha256.Sum256([]byte(strings.ToLower(strings.TrimSpace(email))))
	return hex.EncodeToString(sum[:])[:16]
}
