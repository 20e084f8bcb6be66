// Package main is the entry point for the static site. It verifies the
// database is reachable at startup, then serves the public directory.
package main

import (
	"context"
	"log/slog"
	"os"
	"time"

	"github.com/sakif/notebox/internal/config"
	"github.com/sakif/notebox/internal/repository/sqldb"
	"github.com/sakif/notebox/internal/server"
	"github.com/sakif/notebox/internal/site"
)

func main() {
	logger := slog.New(slog.NewTextHandler(os.Stdout, nil))

	if err := config.LoadDotEnv(); err != nil {
		logger.Error("failed to load .env", slog.String("error", err.Error()))
		os.Exit(1)
	}

	cfg, err := config.LoadSite(os.Getenv)
	if err != nil {
		logger.Error("invalid configuration", slog.String("error", err.Error()))
		os.Exit(1)
	}
	logger = slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: cfg.LogLevel}))

	if err := run(cfg, logger); err != nil {
		logger.Error("site error", slog.String("error", err.Error()))
		os.Exit(1)
	}
}

func run(cfg config.Config, logger *slog.Logger) error {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	// Connectivity check only; the site never queries.
	db, err := sqldb.Open(ctx, cfg.DB)
	if err != nil {
		return err
	}
	defer db.Close()
	logger.Info("database connected", slog.String("driver", db.Driver()))

	h, err := site.New(cfg.PublicDir, logger)
	if err != nil {
		return err
	}

	logger.Info("site starting",
		slog.Int("port", cfg.Port),
		slog.String("publicDir", cfg.PublicDir),
	)
	return server.Run(cfg.Port, h, logger)
}
