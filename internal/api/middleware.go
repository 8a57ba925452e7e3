package api

import (
	"context"
	"errors"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/go-chi/chi/v5/middleware"
	"github.com/google/uuid"

	"github.com/MJE43/senipy/internal/auth"
)

// Cookie names.
const (
	VisitorCookie  = "senipy_visitor"
	SessionCookie  = "senipy_session"
	VerifierCookie = "senipy_oauth_verifier"
	NextCookie     = "senipy_oauth_next"
)

const visitorCookieAge = 365 * 24 * time.Hour

type ctxKey int

const (
	visitorKey ctxKey = iota
	identityKey
)

// VisitorFrom returns the visitor id of the request.
func VisitorFrom(ctx context.Context) string {
	v, _ := ctx.Value(visitorKey).(string)
	return v
}

// IdentityFrom returns the signed-in user, or nil.
func IdentityFrom(ctx context.Context) *auth.Identity {
	id, _ := ctx.Value(identityKey).(*auth.Identity)
	return id
}

// RequestLoggingMiddleware logs requests without exposing cookies or bodies
func (s *Server) RequestLoggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		requestID := middleware.GetReqID(r.Context())
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)

		s.logger.Debug("request_start",
			"method", r.Method,
			"path", r.URL.Path,
			"request_id", requestID,
			"remote_addr", r.RemoteAddr,
			"user_agent", r.UserAgent(),
		)

		next.ServeHTTP(ww, r)

		s.logger.Info("request_completed",
			"method", r.Method,
			"path", r.URL.Path,
			"status", ww.Status(),
			"duration", time.Since(start),
			"request_id", requestID,
			"bytes_written", ww.BytesWritten(),
		)
	})
}

// CORSMiddleware allows the configured site origin to call the API with
// credentials
func (s *Server) CORSMiddleware(next http.Handler) http.Handler {
	origin := siteOrigin(s.cfg.SiteURL)
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if origin != "" && r.Header.Get("Origin") == origin {
			w.Header().Set("Access-Control-Allow-Origin", origin)
			w.Header().Set("Access-Control-Allow-Credentials", "true")
			w.Header().Set("Access-Control-Allow-Methods", "GET, POST, PUT, DELETE, OPTIONS")
			w.Header().Set("Access-Control-Allow-Headers", "Content-Type")
			w.Header().Set("Access-Control-Max-Age", "86400")
			w.Header().Add("Vary", "Origin")
		}

		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusOK)
			return
		}

		next.ServeHTTP(w, r)
	})
}

// VisitorMiddleware gives every browser a stable visitor id. It names the
// storage namespace for scores and the scope of game sessions.
func (s *Server) VisitorMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		visitor := ""
		if c, err := r.Cookie(VisitorCookie); err == nil {
			if id, err := uuid.Parse(c.Value); err == nil {
				visitor = id.String()
			}
		}
		if visitor == "" {
			visitor = uuid.NewString()
			http.SetCookie(w, s.cookie(VisitorCookie, visitor, "/", s.clock.Now().Add(visitorCookieAge)))
		}
		next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), visitorKey, visitor)))
	})
}

// SessionMiddleware resolves the session cookie. Invalid cookies are
// cleared; backend trouble leaves the request anonymous but keeps the
// cookie for the next attempt.
func (s *Server) SessionMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		c, err := r.Cookie(SessionCookie)
		if err != nil || c.Value == "" {
			next.ServeHTTP(w, r)
			return
		}

		id, err := s.auth.Authenticate(r.Context(), c.Value)
		switch {
		case err == nil:
			r = r.WithContext(context.WithValue(r.Context(), identityKey, id))
		case errors.Is(err, auth.ErrUnauthenticated):
			s.clearCookie(w, SessionCookie, "/")
		default:
			s.logger.Warn("session_lookup_failed",
				"request_id", middleware.GetReqID(r.Context()),
				"error", err,
			)
		}
		next.ServeHTTP(w, r)
	})
}

// RequireSession rejects API calls without a signed-in user
func (s *Server) RequireSession(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if IdentityFrom(r.Context()) == nil {
			s.errorHandler.HandleError(w, r, auth.ErrUnauthenticated)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// RequirePageSession sends anonymous visitors to the login page
func (s *Server) RequirePageSession(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if IdentityFrom(r.Context()) == nil {
			http.Redirect(w, r, loginURL(r.URL.Path), http.StatusFound)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func loginURL(next string) string {
	return "/login?next=" + url.QueryEscape(next)
}

func (s *Server) cookie(name, value, path string, expires time.Time) *http.Cookie {
	return &http.Cookie{
		Name:     name,
		Value:    value,
		Path:     path,
		Expires:  expires,
		HttpOnly: true,
		Secure:   s.cfg.CookieSecure,
		SameSite: http.SameSiteLaxMode,
	}
}

func (s *Server) setSessionCookie(w http.ResponseWriter, in *auth.SignedIn) {
	http.SetCookie(w, s.cookie(SessionCookie, in.Token, "/", in.Expires))
}

func (s *Server) clearCookie(w http.ResponseWriter, name, path string) {
	c := s.cookie(name, "", path, time.Unix(0, 0))
	c.MaxAge = -1
	http.SetCookie(w, c)
}

func (s *Server) checkOrigin(r *http.Request) bool {
	origin := r.Header.Get("Origin")
	if origin == "" {
		return true
	}
	u, err := url.Parse(origin)
	if err != nil {
		return false
	}
	if strings.EqualFold(u.Host, r.Host) {
		return true
	}
	return origin == siteOrigin(s.cfg.SiteURL)
}

func siteOrigin(site string) string {
	u, err := url.Parse(site)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return ""
	}
	return u.Scheme + "://" + u.Host
}
