package api

import (
	"net/http"

	"github.com/a-h/templ"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/MJE43/senipy/internal/admin"
	"github.com/MJE43/senipy/internal/feedback"
	"github.com/MJE43/senipy/internal/games"
	"github.com/MJE43/senipy/internal/web"
)

func (s *Server) page(r *http.Request, title, active string) web.Page {
	return web.Page{Title: title, Active: active, User: IdentityFrom(r.Context())}
}

func (s *Server) renderPage(w http.ResponseWriter, r *http.Request, status int, c templ.Component) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(status)
	if err := c.Render(r.Context(), w); err != nil {
		s.logger.Error("page_render_failed",
			"request_id", middleware.GetReqID(r.Context()),
			"path", r.URL.Path,
			"error", err,
		)
	}
}

func (s *Server) handleHomePage(w http.ResponseWriter, r *http.Request) {
	s.renderPage(w, r, http.StatusOK, web.Home(s.page(r, "", "/")))
}

func (s *Server) handleLoginPage(w http.ResponseWriter, r *http.Request) {
	if IdentityFrom(r.Context()) != nil {
		http.Redirect(w, r, localPath(r.URL.Query().Get("next")), http.StatusFound)
		return
	}
	s.renderPage(w, r, http.StatusOK, web.Login(s.page(r, "Log In", "/login"), r.URL.Query().Get("next")))
}

func (s *Server) handleSignupPage(w http.ResponseWriter, r *http.Request) {
	s.renderPage(w, r, http.StatusOK, web.Signup(s.page(r, "Sign Up", "/signup")))
}

func (s *Server) handleGamesPage(w http.ResponseWriter, r *http.Request) {
	summary, err := s.scores.Summary(r.Context(), VisitorFrom(r.Context()))
	if err != nil {
		// The page still works; the score card shows zeros.
		s.logger.Warn("score_summary_failed", "request_id", middleware.GetReqID(r.Context()), "error", err)
	}
	s.renderPage(w, r, http.StatusOK, web.Games(s.page(r, "Games", "/games"), web.GamesView{
		Specs:   games.ListSpecs(),
		Summary: summary,
	}))
}

func (s *Server) handleFeedbackPage(w http.ResponseWriter, r *http.Request) {
	s.renderPage(w, r, http.StatusOK, web.Feedback(s.page(r, "Feedback", "/feedback"), feedback.Questions))
}

func (s *Server) handleProfilePage(w http.ResponseWriter, r *http.Request) {
	p, err := s.profile.Get(r.Context(), IdentityFrom(r.Context()))
	if err != nil {
		s.errorHandler.HandleError(w, r, err)
		return
	}
	s.renderPage(w, r, http.StatusOK, web.Profile(s.page(r, "Profile", "/profile"), p))
}

func (s *Server) handleAdminPage(w http.ResponseWriter, r *http.Request) {
	d := admin.Build(IdentityFrom(r.Context()), s.clock.Now(), requestLanguage(r))
	s.renderPage(w, r, http.StatusOK, web.Admin(s.page(r, "Admin Dashboard", "/admin"), d))
}

func (s *Server) handleNotFoundPage(w http.ResponseWriter, r *http.Request) {
	s.renderPage(w, r, http.StatusNotFound, web.NotFound(s.page(r, "Not Found", "")))
}
