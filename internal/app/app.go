// Package app owns the database, the services and the HTTP server of a
// running site.
package app

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"

	"go.uber.org/multierr"

	"github.com/MJE43/senipy/internal/api"
	"github.com/MJE43/senipy/internal/auth"
	"github.com/MJE43/senipy/internal/config"
	"github.com/MJE43/senipy/internal/feedback"
	"github.com/MJE43/senipy/internal/games"
	"github.com/MJE43/senipy/internal/profile"
	"github.com/MJE43/senipy/internal/schedule"
	"github.com/MJE43/senipy/internal/scores"
	"github.com/MJE43/senipy/internal/store"
	"github.com/MJE43/senipy/internal/supa"
)

// PruneEvery is how often expired login sessions are deleted.
const PruneEvery = time.Hour

// App is a fully wired site. Build it with New, then call Run.
type App struct {
	cfg    config.Config
	logger *slog.Logger
	clock  schedule.Clock

	db     *store.SQLiteDB
	auth   *auth.Service
	games  *games.Manager
	server *api.Server
	jobs   schedule.Group
	once   sync.Once
}

// New opens the database, applies migrations and wires the services. The
// session signing key comes from the OS keyring, or the fallback file.
func New(ctx context.Context, cfg config.Config, logger *slog.Logger) (*App, error) {
	key, err := auth.NewKeyringStore(cfg.KeyringService, cfg.KeyringFallback).SigningKey()
	if err != nil {
		return nil, fmt.Errorf("load signing key: %w", err)
	}
	return build(ctx, cfg, logger, key, schedule.System())
}

func build(ctx context.Context, cfg config.Config, logger *slog.Logger, key []byte, clock schedule.Clock) (*App, error) {
	if logger == nil {
		logger = slog.Default()
	}

	if dir := filepath.Dir(cfg.DBPath); dir != "" && cfg.DBPath != ":memory:" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create data dir: %w", err)
		}
	}
	db, err := store.NewSQLiteDB(cfg.DBPath)
	if err != nil {
		return nil, err
	}
	if err := db.Migrate(ctx); err != nil {
		return nil, multierr.Append(fmt.Errorf("migrate: %w", err), db.Close())
	}

	backend, err := supa.NewClient(supa.Config{
		BaseURL:   cfg.BackendURL,
		AnonKey:   cfg.BackendAnonKey,
		UserAgent: "senipy/" + api.Version,
	})
	if err != nil {
		return nil, multierr.Append(err, db.Close())
	}

	signer, err := auth.NewSigner(key, clock.Now)
	if err != nil {
		return nil, multierr.Append(err, db.Close())
	}
	authSvc := auth.NewService(auth.Config{
		SiteURL:    cfg.SiteURL,
		SessionTTL: cfg.SessionTTL,
		OTPCode:    cfg.OTPCode,
	}, backend, db, db, signer, auth.NewHub(), clock, logger)

	scoreStore := scores.New(db, logger)
	manager := games.NewManager(clock, scoreStore, logger, games.ManagerConfig{IdleTTL: cfg.GameSessionTTL})

	server := api.NewServer(api.Config{
		SiteURL:      cfg.SiteURL,
		APKURL:       cfg.APKURL,
		APKSize:      cfg.APKSize,
		CookieSecure: cfg.CookieSecure,
	}, api.Deps{
		DB:       db,
		Games:    manager,
		Scores:   scoreStore,
		Auth:     authSvc,
		Feedback: feedback.NewService(backend, logger),
		Profile:  profile.NewService(backend, authSvc, logger),
		Clock:    clock,
		Logger:   logger,
	})

	return &App{
		cfg:    cfg,
		logger: logger.With("component", "app"),
		clock:  clock,
		db:     db,
		auth:   authSvc,
		games:  manager,
		server: server,
	}, nil
}

// Server returns the HTTP server.
func (a *App) Server() *api.Server { return a.server }

// Start begins the background work: idle game sweeping and session pruning.
func (a *App) Start() {
	a.games.Start()
	a.once.Do(func() { a.jobs.Add(a.clock.Every(PruneEvery, a.prune)) })
}

// Run starts the background work and serves until ctx is cancelled.
func (a *App) Run(ctx context.Context) error {
	a.Start()
	a.prune()
	a.logger.Info("app_started", "addr", a.cfg.Addr, "site_url", a.cfg.SiteURL, "version", api.Version)
	return a.server.ListenAndServe(ctx, a.cfg.Addr)
}

// Shutdown stops the background work, ends live game sessions and closes
// the database.
func (a *App) Shutdown() error {
	a.jobs.Stop()
	a.server.Close()
	a.games.Shutdown()
	err := a.db.Close()
	if err != nil {
		err = fmt.Errorf("close database: %w", err)
	}
	a.logger.Info("app_stopped", "error", err)
	return err
}

func (a *App) prune() {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	n, err := a.auth.PruneSessions(ctx)
	if err != nil {
		a.logger.Warn("session_prune_failed", "error", err)
		return
	}
	if n > 0 {
		a.logger.Info("sessions_pruned", "count", n)
	}
}
