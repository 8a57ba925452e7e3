package api

import (
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/MJE43/senipy/internal/auth"
)

const oauthCookieTTL = 10 * time.Minute

func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	var req LoginRequest
	if err := decodeJSON(w, r, &req); err != nil {
		s.errorHandler.HandleError(w, r, err)
		return
	}
	in, err := s.auth.Login(r.Context(), VisitorFrom(r.Context()), req.Email, req.Password)
	if err != nil {
		s.errorHandler.HandleError(w, r, err)
		return
	}
	s.setSessionCookie(w, in)
	s.writeJSON(w, http.StatusOK, SessionResponse{Authenticated: true, User: &in.Identity})
}

func (s *Server) handleSignup(w http.ResponseWriter, r *http.Request) {
	var req auth.SignupRequest
	if err := decodeJSON(w, r, &req); err != nil {
		s.errorHandler.HandleError(w, r, err)
		return
	}
	res, err := s.auth.Signup(r.Context(), VisitorFrom(r.Context()), req)
	if err != nil {
		s.errorHandler.HandleError(w, r, err)
		return
	}
	s.writeSignup(w, res)
}

func (s *Server) writeSignup(w http.ResponseWriter, res *auth.SignupResult) {
	resp := SignupResponse{SignupResult: *res}
	status := http.StatusAccepted
	if res.SignedIn != nil {
		s.setSessionCookie(w, res.SignedIn)
		resp.User = &res.SignedIn.Identity
		status = http.StatusCreated
	}
	s.writeJSON(w, status, resp)
}

func (s *Server) handleLogout(w http.ResponseWriter, r *http.Request) {
	if c, err := r.Cookie(SessionCookie); err == nil && c.Value != "" {
		if err := s.auth.Logout(r.Context(), VisitorFrom(r.Context()), c.Value); err != nil {
			s.errorHandler.HandleError(w, r, err)
			return
		}
	}
	s.clearCookie(w, SessionCookie, "/")
	s.writeJSON(w, http.StatusOK, MessageResponse{Title: "Signed out", Message: "You have been signed out"})
}

func (s *Server) handleSession(w http.ResponseWriter, r *http.Request) {
	id := IdentityFrom(r.Context())
	s.writeJSON(w, http.StatusOK, SessionResponse{Authenticated: id != nil, User: id})
}

func (s *Server) handleOAuthStart(w http.ResponseWriter, r *http.Request) {
	redirect, verifier, err := s.auth.OAuthStart(chi.URLParam(r, "provider"))
	if err != nil {
		s.errorHandler.HandleError(w, r, err)
		return
	}

	expires := s.clock.Now().Add(oauthCookieTTL)
	http.SetCookie(w, s.cookie(VerifierCookie, verifier, "/api/v1/auth/callback", expires))
	http.SetCookie(w, s.cookie(NextCookie, localPath(r.URL.Query().Get("next")), "/api/v1/auth/callback", expires))
	http.Redirect(w, r, redirect, http.StatusFound)
}

func (s *Server) handleOAuthCallback(w http.ResponseWriter, r *http.Request) {
	next := "/"
	if c, err := r.Cookie(NextCookie); err == nil {
		next = localPath(c.Value)
	}
	verifier := ""
	if c, err := r.Cookie(VerifierCookie); err == nil {
		verifier = c.Value
	}
	s.clearCookie(w, VerifierCookie, "/api/v1/auth/callback")
	s.clearCookie(w, NextCookie, "/api/v1/auth/callback")

	q := r.URL.Query()
	if desc := q.Get("error_description"); desc != "" || q.Get("error") != "" {
		s.logger.Warn("oauth_denied", "error", q.Get("error"), "description", desc)
		http.Redirect(w, r, "/login?error="+url.QueryEscape("oauth_denied"), http.StatusFound)
		return
	}

	in, err := s.auth.OAuthCallback(r.Context(), VisitorFrom(r.Context()), q.Get("code"), verifier)
	if err != nil {
		s.logger.Warn("oauth_callback_failed", "error", err)
		http.Redirect(w, r, "/login?error="+url.QueryEscape("oauth_failed"), http.StatusFound)
		return
	}
	s.setSessionCookie(w, in)
	http.Redirect(w, r, next, http.StatusFound)
}

func (s *Server) handleOTPSend(w http.ResponseWriter, r *http.Request) {
	var req OTPSendRequest
	if err := decodeJSON(w, r, &req); err != nil {
		s.errorHandler.HandleError(w, r, err)
		return
	}
	sent, err := s.auth.SendOTP(r.Context(), req.Phone)
	if err != nil {
		s.errorHandler.HandleError(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusOK, struct {
		*auth.OTPSent
		MessageResponse
	}{sent, MessageResponse{Title: "Verification code sent", Message: "Enter the 6-digit code sent to your phone"}})
}

func (s *Server) handleOTPVerify(w http.ResponseWriter, r *http.Request) {
	var req auth.VerifyOTPRequest
	if err := decodeJSON(w, r, &req); err != nil {
		s.errorHandler.HandleError(w, r, err)
		return
	}
	res, err := s.auth.VerifyOTP(r.Context(), VisitorFrom(r.Context()), req)
	if err != nil {
		s.errorHandler.HandleError(w, r, err)
		return
	}
	s.writeSignup(w, res)
}

// localPath keeps only same-site absolute paths.
func localPath(p string) string {
	if !strings.HasPrefix(p, "/") || strings.HasPrefix(p, "//") || strings.HasPrefix(p, "/\\") {
		return "/"
	}
	return p
}
