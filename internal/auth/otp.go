package auth

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"
	"unicode"

	"golang.org/x/crypto/bcrypt"

	"github.com/MJE43/senipy/internal/store"
)

// OTPSent describes a delivered (simulated) verification code.
type OTPSent struct {
	Phone       string        `json:"phone"`
	ExpiresIn   time.Duration `json:"-"`
	ResendAfter time.Time     `json:"resend_after"`
}

// VerifyOTPRequest is the second step of a phone signup. The registration
// fields are resubmitted by the client so no password is ever stored.
type VerifyOTPRequest struct {
	Phone       string `json:"phone"`
	Code        string `json:"code"`
	FirstName   string `json:"first_name"`
	LastName    string `json:"last_name"`
	Password    string `json:"password"`
	AcceptTerms bool   `json:"accept_terms"`
}

// PhoneDigits strips everything but digits from phone.
func PhoneDigits(phone string) string {
	var b strings.Builder
	for _, r := range phone {
		if unicode.IsDigit(r) && r < unicode.MaxLatin1 {
			b.WriteRune(r)
		}
	}
	return b.String()
}

// PhoneEmail is the synthetic address a phone signup registers with.
func PhoneEmail(phone string) string {
	return fmt.Sprintf("phone_%s@senipy.com", PhoneDigits(phone))
}

func normalizePhone(phone string) (string, error) {
	digits := PhoneDigits(phone)
	if len(digits) < 7 || len(digits) > 15 {
		return "", invalid("phone", "Phone Number Required", "Please enter your phone number")
	}
	return digits, nil
}

// SendOTP issues a verification code for phone. No SMS is sent; the code is
// the configured demo code and delivery is only logged.
func (s *Service) SendOTP(ctx context.Context, phone string) (*OTPSent, error) {
	key, err := normalizePhone(phone)
	if err != nil {
		return nil, err
	}
	now := s.clock.Now()

	existing, err := s.otp.GetOTPChallenge(ctx, key)
	if err != nil && !errors.Is(err, store.ErrNotFound) {
		return nil, err
	}
	if existing != nil && now.Before(existing.ResendAfter) {
		return nil, fmt.Errorf("%w: retry in %s", ErrOTPCooldown, existing.ResendAfter.Sub(now).Round(time.Second))
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(s.cfg.OTPCode), bcrypt.DefaultCost)
	if err != nil {
		return nil, fmt.Errorf("auth: hash otp: %w", err)
	}
	ch := &store.OTPChallenge{
		Phone:       key,
		CodeHash:    string(hash),
		ExpiresAt:   now.Add(s.cfg.OTPTTL),
		ResendAfter: now.Add(s.cfg.OTPCooldown),
	}
	if err := s.otp.SaveOTPChallenge(ctx, ch); err != nil {
		return nil, err
	}

	s.logger.Info("otp_sent", "phone_suffix", suffix(key, 4), "expires_at", ch.ExpiresAt)
	return &OTPSent{Phone: phone, ExpiresIn: s.cfg.OTPTTL, ResendAfter: ch.ResendAfter}, nil
}

// VerifyOTP checks the code and, on success, completes the registration of
// the phone-based account.
func (s *Service) VerifyOTP(ctx context.Context, visitor string, req VerifyOTPRequest) (*SignupResult, error) {
	key, err := normalizePhone(req.Phone)
	if err != nil {
		return nil, err
	}
	code := strings.TrimSpace(req.Code)
	if len(code) != 6 {
		return nil, invalid("code", "Verification Failed", "Please enter the 6-digit code")
	}
	signup := SignupRequest{
		FirstName:   req.FirstName,
		LastName:    req.LastName,
		Password:    req.Password,
		AcceptTerms: req.AcceptTerms,
	}
	if err := validateSignup(signup, false); err != nil {
		return nil, err
	}

	ch, err := s.otp.GetOTPChallenge(ctx, key)
	if errors.Is(err, store.ErrNotFound) {
		return nil, ErrNoPendingOTP
	}
	if err != nil {
		return nil, err
	}
	if !s.clock.Now().Before(ch.ExpiresAt) {
		_ = s.otp.DeleteOTPChallenge(ctx, key)
		return nil, ErrOTPExpired
	}
	if ch.Attempts >= s.cfg.OTPMaxAttempts {
		return nil, ErrOTPAttempts
	}

	if bcrypt.CompareHashAndPassword([]byte(ch.CodeHash), []byte(code)) != nil {
		attempts, err := s.otp.IncrementOTPAttempts(ctx, key)
		if err != nil {
			return nil, err
		}
		s.logger.Info("otp_rejected", "phone_suffix", suffix(key, 4), "attempts", attempts)
		if attempts >= s.cfg.OTPMaxAttempts {
			return nil, ErrOTPAttempts
		}
		return nil, ErrInvalidOTP
	}

	if err := s.otp.DeleteOTPChallenge(ctx, key); err != nil {
		return nil, err
	}
	s.logger.Info("otp_verified", "phone_suffix", suffix(key, 4))

	res, err := s.signup(ctx, visitor, PhoneEmail(key), signup)
	if err != nil {
		return nil, err
	}
	if res.NeedsConfirmation {
		res.Title = "Registration Successful"
		res.Message = "Your phone has been verified and your account has been created"
	}
	return res, nil
}

func suffix(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[len(s)-n:]
}
