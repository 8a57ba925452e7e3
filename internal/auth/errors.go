package auth

import (
	"errors"
	"fmt"
)

var (
	ErrUnauthenticated  = errors.New("not signed in")
	ErrInvalidOTP       = errors.New("invalid verification code")
	ErrOTPExpired       = errors.New("verification code expired")
	ErrOTPAttempts      = errors.New("too many verification attempts")
	ErrOTPCooldown      = errors.New("verification code recently sent")
	ErrUnknownProvider  = errors.New("unsupported oauth provider")
	ErrMissingVerifier  = errors.New("oauth verifier missing or expired")
	ErrNoPendingOTP     = errors.New("no verification code pending")
	ErrSigningKeyAbsent = errors.New("session signing key unavailable")
)

// ValidationError is input rejected before any backend call. Title and
// Message are shown to the user as a notification.
type ValidationError struct {
	Field   string
	Title   string
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("auth: invalid %s: %s", e.Field, e.Message)
}

func invalid(field, title, message string) error {
	return &ValidationError{Field: field, Title: title, Message: message}
}
