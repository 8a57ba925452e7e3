package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5/middleware"

	"github.com/MJE43/senipy/internal/auth"
	"github.com/MJE43/senipy/internal/feedback"
	"github.com/MJE43/senipy/internal/games"
	"github.com/MJE43/senipy/internal/profile"
	"github.com/MJE43/senipy/internal/scores"
	"github.com/MJE43/senipy/internal/supa"
)

// ErrorBuilder helps construct structured errors with context
type ErrorBuilder struct {
	errType   string
	message   string
	context   map[string]any
	requestID string
}

// NewError creates a new error builder
func NewError(errType, message string) *ErrorBuilder {
	return &ErrorBuilder{
		errType: errType,
		message: message,
		context: make(map[string]any),
	}
}

// WithContext adds context information to the error
func (eb *ErrorBuilder) WithContext(key string, value any) *ErrorBuilder {
	eb.context[key] = value
	return eb
}

// WithRequestID adds request ID to the error
func (eb *ErrorBuilder) WithRequestID(requestID string) *ErrorBuilder {
	eb.requestID = requestID
	return eb
}

// WithCause records the underlying error message
func (eb *ErrorBuilder) WithCause(err error) *ErrorBuilder {
	if err != nil {
		eb.context["cause"] = err.Error()
	}
	return eb
}

// Build creates the final ErrorResponse
func (eb *ErrorBuilder) Build() ErrorResponse {
	ctx := eb.context
	if len(ctx) == 0 {
		ctx = nil
	}
	return ErrorResponse{
		Type:      eb.errType,
		Message:   eb.message,
		Context:   ctx,
		RequestID: eb.requestID,
		Timestamp: time.Now().UTC().Format(time.RFC3339),
	}
}

// ErrorHandler maps domain errors to HTTP responses and logs them
type ErrorHandler struct {
	logger *slog.Logger
}

// NewErrorHandler creates a new error handler
func NewErrorHandler(logger *slog.Logger) *ErrorHandler {
	return &ErrorHandler{logger: logger}
}

// classify picks the status, type and user-facing builder for err.
func classify(err error) (int, *ErrorBuilder) {
	var (
		authInvalid *auth.ValidationError
		fbInvalid   *feedback.ValidationError
		backendAuth *supa.AuthError
		backendAPI  *supa.APIError
		resp        ErrorResponse
	)
	switch {
	case errors.As(err, &resp):
		return http.StatusBadRequest, NewError(resp.Type, resp.Message)
	case errors.As(err, &authInvalid):
		return http.StatusBadRequest, NewError(ErrTypeValidation, authInvalid.Message).
			WithContext("field", authInvalid.Field).
			WithContext("title", authInvalid.Title)
	case errors.As(err, &fbInvalid):
		return http.StatusBadRequest, NewError(ErrTypeValidation, fbInvalid.Message).
			WithContext("title", fbInvalid.Title)
	case errors.Is(err, profile.ErrEmptyAvatar), errors.Is(err, profile.ErrNotImage), errors.Is(err, profile.ErrAvatarTooLarge):
		return http.StatusBadRequest, NewError(ErrTypeValidation, err.Error()).
			WithContext("field", "avatar").
			WithContext("title", "Error uploading avatar")
	case errors.Is(err, auth.ErrInvalidOTP), errors.Is(err, auth.ErrOTPExpired), errors.Is(err, auth.ErrNoPendingOTP):
		return http.StatusBadRequest, NewError(ErrTypeInvalidOTP, err.Error()).
			WithContext("title", "Verification Failed")
	case errors.Is(err, auth.ErrOTPCooldown), errors.Is(err, auth.ErrOTPAttempts):
		return http.StatusTooManyRequests, NewError(ErrTypeRateLimit, err.Error()).
			WithContext("title", "Verification Failed")
	case errors.Is(err, auth.ErrUnknownProvider), errors.Is(err, auth.ErrMissingVerifier):
		return http.StatusBadRequest, NewError(ErrTypeValidation, err.Error())
	case errors.Is(err, auth.ErrUnauthenticated):
		return http.StatusUnauthorized, NewError(ErrTypeUnauthenticated, "Please sign in to continue").
			WithContext("title", "Authentication Required")
	case errors.As(err, &backendAuth):
		return http.StatusUnauthorized, NewError(ErrTypeAuthFailed, backendAuth.Message).
			WithContext("title", "Authentication Failed")
	case errors.Is(err, games.ErrUnknownGame), errors.Is(err, scores.ErrUnknownGame):
		return http.StatusNotFound, NewError(ErrTypeGameNotFound, err.Error())
	case errors.Is(err, games.ErrSessionNotFound), errors.Is(err, games.ErrClosed):
		return http.StatusNotFound, NewError(ErrTypeSessionNotFound, err.Error())
	case errors.Is(err, games.ErrUnknownAction):
		return http.StatusBadRequest, NewError(ErrTypeUnknownAction, err.Error())
	case errors.Is(err, games.ErrNotActive):
		return http.StatusConflict, NewError(ErrTypeGameNotActive, err.Error())
	case errors.As(err, &backendAPI) && backendAPI.IsNotFound():
		return http.StatusNotFound, NewError(ErrTypeNotFound, supa.Message(err))
	case errors.As(err, &backendAPI):
		return http.StatusBadGateway, NewError(ErrTypeBackend, supa.Message(err)).
			WithContext("backend_status", backendAPI.StatusCode)
	case errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout, NewError(ErrTypeTimeout, "Operation timed out")
	default:
		return http.StatusInternalServerError, NewError(ErrTypeInternal, "Internal server error").WithCause(err)
	}
}

// HandleError processes an error and writes the matching HTTP response
func (eh *ErrorHandler) HandleError(w http.ResponseWriter, r *http.Request, err error) {
	status, builder := classify(err)
	resp := builder.
		WithRequestID(middleware.GetReqID(r.Context())).
		Build()
	eh.logError(r, resp, status, err)
	eh.writeErrorResponse(w, status, resp)
}

// HandleValidationError rejects a request field
func (eh *ErrorHandler) HandleValidationError(w http.ResponseWriter, r *http.Request, field, message string) {
	resp := NewError(ErrTypeValidation, fmt.Sprintf("Validation failed: %s", message)).
		WithRequestID(middleware.GetReqID(r.Context())).
		WithContext("field", field).
		Build()
	eh.logError(r, resp, http.StatusBadRequest, nil)
	eh.writeErrorResponse(w, http.StatusBadRequest, resp)
}

// HandleNotFound answers unknown API routes
func (eh *ErrorHandler) HandleNotFound(w http.ResponseWriter, r *http.Request) {
	resp := NewError(ErrTypeNotFound, "Resource not found").
		WithRequestID(middleware.GetReqID(r.Context())).
		WithContext("path", r.URL.Path).
		Build()
	eh.writeErrorResponse(w, http.StatusNotFound, resp)
}

// logError logs the error with a level matching its category
func (eh *ErrorHandler) logError(r *http.Request, resp ErrorResponse, status int, cause error) {
	category := GetErrorCategory(resp.Type)
	level := slog.LevelError
	if status < http.StatusInternalServerError {
		level = slog.LevelWarn
	}
	attrs := []any{
		"type", resp.Type,
		"category", category,
		"status", status,
		"request_id", resp.RequestID,
		"method", r.Method,
		"path", r.URL.Path,
		"message", resp.Message,
	}
	if cause != nil && status >= http.StatusInternalServerError {
		attrs = append(attrs, "error", cause.Error())
	}
	eh.logger.Log(r.Context(), level, "error_occurred", attrs...)
}

// writeErrorResponse writes the error response as JSON
func (eh *ErrorHandler) writeErrorResponse(w http.ResponseWriter, status int, resp ErrorResponse) {
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("X-Service-Version", Version)
	w.Header().Set("X-Error-Type", resp.Type)
	w.Header().Set("X-Error-Category", string(GetErrorCategory(resp.Type)))
	w.WriteHeader(status)

	if err := json.NewEncoder(w).Encode(resp); err != nil {
		eh.logger.Error("error_response_write_failed", "error", err)
	}
}

// RecoveryHandler provides panic recovery with structured error logging
func (eh *ErrorHandler) RecoveryHandler(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			if rvr := recover(); rvr != nil {
				if rvr == http.ErrAbortHandler {
					panic(rvr)
				}
				requestID := middleware.GetReqID(r.Context())
				eh.logger.Error("panic_recovered",
					"request_id", requestID,
					"path", r.URL.Path,
					"method", r.Method,
					"panic", fmt.Sprintf("%v", rvr),
				)

				resp := NewError(ErrTypeInternal, "Internal server error").
					WithRequestID(requestID).
					WithContext("path", r.URL.Path).
					WithContext("method", r.Method).
					Build()
				eh.writeErrorResponse(w, http.StatusInternalServerError, resp)
			}
		}()

		next.ServeHTTP(w, r)
	})
}
