package supa

import (
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/tidwall/gjson"
)

// APIError is a non-2xx response from the backend.
type APIError struct {
	StatusCode int
	Path       string
	Code       string
	Message    string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("supa: %s: HTTP %d: %s", e.Path, e.StatusCode, e.Message)
}

// IsNotFound reports whether the resource does not exist.
func (e *APIError) IsNotFound() bool {
	return e.StatusCode == http.StatusNotFound ||
		e.Code == "PGRST116" ||
		strings.Contains(strings.ToLower(e.Message), "not found")
}

// AuthError indicates rejected credentials or an expired token.
type AuthError struct {
	StatusCode int
	Message    string
}

func (e *AuthError) Error() string {
	return fmt.Sprintf("supa: authentication failed (HTTP %d): %s", e.StatusCode, e.Message)
}

// messageFields are checked in order for a human-readable message. GoTrue,
// PostgREST and storage each use a different one.
var messageFields = []string{"error_description", "msg", "message", "error"}

// ErrorMessage extracts the most specific message from an error payload.
func ErrorMessage(body []byte) string {
	if gjson.ValidBytes(body) {
		for _, f := range messageFields {
			if v := gjson.GetBytes(body, f); v.Exists() && v.Type == gjson.String && v.String() != "" {
				return v.String()
			}
		}
	}
	msg := strings.TrimSpace(string(body))
	if len(msg) > 200 {
		msg = msg[:200]
	}
	return msg
}

func newResponseError(status int, path string, body []byte) error {
	msg := ErrorMessage(body)
	if msg == "" {
		msg = http.StatusText(status)
	}
	if status == http.StatusUnauthorized ||
		(strings.HasPrefix(strings.TrimPrefix(path, "/"), "auth/") && status == http.StatusBadRequest &&
			gjson.GetBytes(body, "error").String() == "invalid_grant") {
		return &AuthError{StatusCode: status, Message: msg}
	}
	return &APIError{
		StatusCode: status,
		Path:       path,
		Code:       gjson.GetBytes(body, "code").String(),
		Message:    msg,
	}
}

// IsAuthError reports whether err is, or wraps, an AuthError.
func IsAuthError(err error) bool {
	var ae *AuthError
	return errors.As(err, &ae)
}

// Message returns the user-facing message of a backend error, or err.Error().
func Message(err error) string {
	var ae *AuthError
	if errors.As(err, &ae) {
		return ae.Message
	}
	var api *APIError
	if errors.As(err, &api) {
		return api.Message
	}
	return err.Error()
}
