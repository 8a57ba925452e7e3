package api

import (
	"github.com/MJE43/senipy/internal/auth"
	"github.com/MJE43/senipy/internal/games"
)

// ErrorResponse is the structured body of every API error.
type ErrorResponse struct {
	Type      string         `json:"type"`
	Message   string         `json:"message"`
	Context   map[string]any `json:"context,omitempty"`
	RequestID string         `json:"request_id,omitempty"`
	Timestamp string         `json:"timestamp,omitempty"`
}

// Error implements the error interface
func (e ErrorResponse) Error() string {
	return e.Message
}

// Error types
const (
	// Input validation errors
	ErrTypeValidation  = "validation_error"
	ErrTypeInvalidJSON = "invalid_json"
	ErrTypeInvalidOTP  = "invalid_otp"

	// Auth errors
	ErrTypeUnauthenticated = "unauthenticated"
	ErrTypeAuthFailed      = "auth_failed"

	// Game errors
	ErrTypeGameNotFound    = "game_not_found"
	ErrTypeSessionNotFound = "session_not_found"
	ErrTypeGameNotActive   = "game_not_active"
	ErrTypeUnknownAction   = "unknown_action"

	// Backend errors
	ErrTypeBackend = "backend_error"

	// System errors
	ErrTypeTimeout   = "timeout"
	ErrTypeInternal  = "internal_error"
	ErrTypeRateLimit = "rate_limit_exceeded"
	ErrTypeNotFound  = "not_found"
)

// ErrorCategory groups error types for monitoring
type ErrorCategory string

const (
	CategoryValidation ErrorCategory = "validation"
	CategoryAuth       ErrorCategory = "auth"
	CategoryGame       ErrorCategory = "game"
	CategoryBackend    ErrorCategory = "backend"
	CategorySystem     ErrorCategory = "system"
)

// GetErrorCategory returns the category for an error type
func GetErrorCategory(errType string) ErrorCategory {
	switch errType {
	case ErrTypeValidation, ErrTypeInvalidJSON, ErrTypeInvalidOTP, ErrTypeRateLimit:
		return CategoryValidation
	case ErrTypeUnauthenticated, ErrTypeAuthFailed:
		return CategoryAuth
	case ErrTypeGameNotFound, ErrTypeSessionNotFound, ErrTypeGameNotActive, ErrTypeUnknownAction:
		return CategoryGame
	case ErrTypeBackend:
		return CategoryBackend
	default:
		return CategorySystem
	}
}

// VersionInfo contains build information
type VersionInfo struct {
	Version   string `json:"version"`
	GitCommit string `json:"git_commit,omitempty"`
	BuildTime string `json:"build_time,omitempty"`
}

// GamesResponse lists the available games
type GamesResponse struct {
	Games   []games.GameSpec `json:"games"`
	Version string           `json:"version"`
}

// ScoreRequest reports a score finished in the browser
type ScoreRequest struct {
	Score *int `json:"score"`
}

// LoginRequest is the email sign-in form
type LoginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// OTPSendRequest asks for a phone verification code
type OTPSendRequest struct {
	Phone string `json:"phone"`
}

// SessionResponse describes the caller's sign-in state
type SessionResponse struct {
	Authenticated bool           `json:"authenticated"`
	User          *auth.Identity `json:"user,omitempty"`
}

// MessageResponse is a user-facing notification
type MessageResponse struct {
	Title   string `json:"title,omitempty"`
	Message string `json:"message"`
}

// SignupResponse is the outcome of an email or phone signup
type SignupResponse struct {
	auth.SignupResult
	User *auth.Identity `json:"user,omitempty"`
}
