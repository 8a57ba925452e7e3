// Command senipy serves the Robo Companion site.
package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"runtime"
	"syscall"

	"go.uber.org/multierr"

	"github.com/MJE43/senipy/internal/api"
	"github.com/MJE43/senipy/internal/app"
	"github.com/MJE43/senipy/internal/config"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "senipy: %v\n", err)
		os.Exit(1)
	}
}

func run() (err error) {
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	logger := cfg.Logger()
	slog.SetDefault(logger)
	logger.Info("starting", "version", api.Version, "commit", api.GitCommit, "go", runtime.Version())

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	a, err := app.New(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer func() { err = multierr.Append(err, a.Shutdown()) }()

	return a.Run(ctx)
}
