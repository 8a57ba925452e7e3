// Package api serves the JSON API, the HTML pages and the download routes.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/gorilla/websocket"
	"golang.org/x/sync/errgroup"

	"github.com/MJE43/senipy/internal/auth"
	"github.com/MJE43/senipy/internal/feedback"
	"github.com/MJE43/senipy/internal/games"
	"github.com/MJE43/senipy/internal/profile"
	"github.com/MJE43/senipy/internal/schedule"
	"github.com/MJE43/senipy/internal/scores"
	"github.com/MJE43/senipy/internal/store"
)

// Config holds the HTTP-facing settings.
type Config struct {
	// SiteURL is the public origin, used for CORS and the download QR code.
	SiteURL      string
	APKURL       string
	APKSize      uint64
	CookieSecure bool
}

// Deps are the services the handlers call.
type Deps struct {
	DB       store.DB
	Games    *games.Manager
	Scores   *scores.Store
	Auth     *auth.Service
	Feedback *feedback.Service
	Profile  *profile.Service
	Clock    schedule.Clock
	Logger   *slog.Logger
}

// Server handles HTTP requests
type Server struct {
	cfg          Config
	db           store.DB
	games        *games.Manager
	scores       *scores.Store
	auth         *auth.Service
	feedback     *feedback.Service
	profile      *profile.Service
	clock        schedule.Clock
	errorHandler *ErrorHandler
	logger       *slog.Logger
	upgrader     websocket.Upgrader
	startTime    time.Time

	qrOnce sync.Once
	qrPNG  []byte
	qrErr  error

	closing   chan struct{}
	closeOnce sync.Once
}

// NewServer creates a new API server
func NewServer(cfg Config, d Deps) *Server {
	logger := d.Logger
	if logger == nil {
		logger = slog.Default()
	}
	logger = logger.With("component", "api")
	clock := d.Clock
	if clock == nil {
		clock = schedule.System()
	}

	s := &Server{
		cfg:          cfg,
		db:           d.DB,
		games:        d.Games,
		scores:       d.Scores,
		auth:         d.Auth,
		feedback:     d.Feedback,
		profile:      d.Profile,
		clock:        clock,
		errorHandler: NewErrorHandler(logger),
		logger:       logger,
		startTime:    clock.Now(),
		closing:      make(chan struct{}),
	}
	s.upgrader = websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin:     s.checkOrigin,
	}

	logger.Info("server_created",
		"games_available", len(games.ListSpecs()),
		"database_enabled", s.db != nil,
		"version", Version,
	)
	return s
}

// Routes sets up the HTTP routes with proper middleware
func (s *Server) Routes() http.Handler {
	r := chi.NewRouter()

	// Core middleware
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(s.RequestLoggingMiddleware)
	r.Use(s.errorHandler.RecoveryHandler)
	r.Use(s.VisitorMiddleware)
	r.Use(s.SessionMiddleware)

	// Health and monitoring endpoints
	r.Get("/health", s.handleHealthCheck)
	r.Get("/health/ready", s.handleReadiness)
	r.Get("/health/live", s.handleLiveness)
	r.Get("/version", s.handleVersion)

	r.Route("/api/v1", func(r chi.Router) {
		r.Use(s.CORSMiddleware)
		r.NotFound(s.errorHandler.HandleNotFound)

		// Long-lived, so outside the request timeout.
		r.Get("/auth/events", s.handleAuthEvents)

		r.Group(func(r chi.Router) {
			r.Use(middleware.Timeout(30 * time.Second))

			r.Get("/games", s.handleListGames)
			r.Post("/games/{game}/sessions", s.handleCreateGameSession)
			r.Get("/games/sessions/{id}", s.handleGetGameSession)
			r.Post("/games/sessions/{id}/actions", s.handleGameAction)
			r.Delete("/games/sessions/{id}", s.handleCloseGameSession)

			r.Get("/scores", s.handleScoreSummary)
			r.Put("/scores/{game}", s.handleRecordScore)

			r.Post("/auth/login", s.handleLogin)
			r.Post("/auth/signup", s.handleSignup)
			r.Post("/auth/logout", s.handleLogout)
			r.Get("/auth/session", s.handleSession)
			r.Get("/auth/oauth/{provider}", s.handleOAuthStart)
			r.Get("/auth/callback", s.handleOAuthCallback)
			r.Post("/auth/otp/send", s.handleOTPSend)
			r.Post("/auth/otp/verify", s.handleOTPVerify)

			r.Get("/feedback/questions", s.handleFeedbackQuestions)
			r.Post("/feedback", s.handleFeedback)

			r.Group(func(r chi.Router) {
				r.Use(s.RequireSession)
				r.Get("/profile", s.handleGetProfile)
				r.Put("/profile", s.handleUpdateProfile)
				r.Post("/profile/avatar", s.handleUploadAvatar)
				r.Get("/admin/dashboard", s.handleAdminDashboard)
			})
		})
	})

	// HTML pages
	r.Group(func(r chi.Router) {
		r.Use(middleware.Timeout(30 * time.Second))
		r.Get("/", s.handleHomePage)
		r.Get("/login", s.handleLoginPage)
		r.Get("/signup", s.handleSignupPage)
		r.Get("/games", s.handleGamesPage)
		r.Get("/feedback", s.handleFeedbackPage)
		r.Get("/download/qr.png", s.handleDownloadQR)
		r.Get("/download/apk", s.handleDownloadAPK)

		r.Group(func(r chi.Router) {
			r.Use(s.RequirePageSession)
			r.Get("/download", s.handleDownloadPage)
			r.Get("/profile", s.handleProfilePage)
			r.Get("/admin", s.handleAdminPage)
		})
	})
	r.NotFound(s.handleNotFoundPage)

	return r
}

// ListenAndServe serves on addr until ctx is cancelled, then shuts down
// gracefully.
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return err
	}
	return s.Serve(ctx, ln)
}

// Serve is ListenAndServe on an existing listener.
func (s *Server) Serve(ctx context.Context, ln net.Listener) error {
	httpServer := &http.Server{
		Handler:           s.Routes(),
		ReadHeaderTimeout: 10 * time.Second,
		IdleTimeout:       2 * time.Minute,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		s.logger.Info("server_listening", "addr", ln.Addr().String())
		if err := httpServer.Serve(ln); !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		s.Close()
		shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 10*time.Second)
		defer cancel()
		return httpServer.Shutdown(shutdownCtx)
	})
	return g.Wait()
}

// Close ends the open event streams.
func (s *Server) Close() {
	s.closeOnce.Do(func() { close(s.closing) })
}

// writeJSON writes a JSON response with proper headers
func (s *Server) writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("X-Service-Version", Version)
	w.WriteHeader(status)

	if err := json.NewEncoder(w).Encode(data); err != nil {
		s.logger.Error("response_write_failed", "error", err)
	}
}
