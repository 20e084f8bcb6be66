// Package main is the entry point for the notes API server.
//
// main only wires things together:
//  1. Load configuration (.env + environment)
//  2. Build the logger, database pool, file storage and auth services
//  3. Hand them to server.New and block in Start
package main

import (
	"context"
	"log/slog"
	"os"
	"time"

	"github.com/sakif/notebox/internal/auth"
	"github.com/sakif/notebox/internal/config"
	"github.com/sakif/notebox/internal/repository/sqldb"
	"github.com/sakif/notebox/internal/server"
	"github.com/sakif/notebox/internal/storage"
)

func main() {
	logger := slog.New(slog.NewTextHandler(os.Stdout, nil))

	if err := config.LoadDotEnv(); err != nil {
		logger.Error("failed to load .env", slog.String("error", err.Error()))
		os.Exit(1)
	}

	cfg, err := config.LoadServer(os.Getenv)
	if err != nil {
		logger.Error("invalid configuration", slog.String("error", err.Error()))
		os.Exit(1)
	}

	// Re-create the logger now that the level is known.
	logger = slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: cfg.LogLevel}))

	if err := run(cfg, logger); err != nil {
		logger.Error("server error", slog.String("error", err.Error()))
		os.Exit(1)
	}
}

func run(cfg config.Config, logger *slog.Logger) error {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	db, err := sqldb.New(ctx, cfg.DB)
	if err != nil {
		return err
	}
	logger.Info("database connected", slog.String("driver", db.Driver()))

	files, err := storage.New(ctx, cfg.Storage)
	if err != nil {
		db.Close()
		return err
	}
	logger.Info("storage initialized", slog.String("type", string(cfg.Storage.Type)))

	tokens, err := auth.NewTokenService(cfg.JWTSecret)
	if err != nil {
		db.Close()
		return err
	}

	srv, err := server.New(server.Config{
		Port:           cfg.Port,
		AllowedOrigins: cfg.AllowedOrigins,
	}, server.Deps{
		DB:        db,
		Files:     files,
		Tokens:    tokens,
		Passwords: auth.NewPasswordService(),
	}, logger)
	if err != nil {
		db.Close()
		return err
	}

	// Start blocks until SIGINT/SIGTERM and closes the database on the way out.
	return srv.Start()
}
