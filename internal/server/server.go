// Package server wires the API: router, middleware, handlers and the
// graceful shutdown loop.
//
// DEPENDENCY FLOW:
//
//	main.go creates:   sqldb.DB, storage.Storage, auth services
//	server.New wires:  repositories → services → handlers → routes
//
// All dependencies are assembled here, in one place.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	"github.com/sakif/notebox/internal/apperror"
	"github.com/sakif/notebox/internal/auth"
	"github.com/sakif/notebox/internal/handler"
	"github.com/sakif/notebox/internal/middleware"
	"github.com/sakif/notebox/internal/repository/sqldb"
	"github.com/sakif/notebox/internal/service"
	"github.com/sakif/notebox/internal/storage"
)

// shutdownTimeout bounds how long in-flight requests get after a signal.
const shutdownTimeout = 30 * time.Second

// Config holds server configuration.
type Config struct {
	Port           int
	AllowedOrigins []string // empty allows every origin
	Intake         handler.IntakeConfig
}

// Deps are the long-lived resources built in main.
type Deps struct {
	DB        *sqldb.DB
	Files     storage.Storage
	Tokens    *auth.TokenService
	Passwords *auth.PasswordService
}

// Server owns the router and the database pool; Start closes the pool on
// shutdown.
type Server struct {
	router *chi.Mux
	config Config
	deps   Deps
	logger *slog.Logger
}

func New(cfg Config, deps Deps, logger *slog.Logger) (*Server, error) {
	if deps.DB == nil || deps.Files == nil || deps.Tokens == nil || deps.Passwords == nil {
		return nil, errors.New("server: missing dependency")
	}

	s := &Server{
		router: chi.NewRouter(),
		config: cfg,
		deps:   deps,
		logger: logger,
	}
	s.setupRoutes()
	return s, nil
}

// Handler exposes the router; tests serve it with httptest.
func (s *Server) Handler() http.Handler {
	return s.router
}

// setupRoutes configures middleware and routes.
//
// ROUTES:
//
//	GET    /health                → liveness
//	GET    /uploads/*             → stored files
//	POST   /api/auth/register     → create account, returns token
//	POST   /api/auth/login        → returns token
//	GET    /api/notes             → list own notes          (auth)
//	POST   /api/notes             → create, multipart       (auth)
//	GET    /api/notes/{id}        → one note                (auth)
//	PUT    /api/notes/{id}        → update, multipart       (auth)
//	DELETE /api/notes/{id}        → delete note and file    (auth)
//
// MIDDLEWARE ORDER:
// RequestID → RealIP → Logger → Recoverer → CORS. Recoverer sits inside
// Logger so a panic is still logged as a 500. CORS runs before routing so
// preflight OPTIONS requests never reach the auth gate.
func (s *Server) setupRoutes() {
	s.router.Use(chimiddleware.RequestID)
	s.router.Use(chimiddleware.RealIP)
	s.router.Use(middleware.Logger(s.logger))
	s.router.Use(chimiddleware.Recoverer)
	s.router.Use(corsHandler(s.config.AllowedOrigins))

	s.router.NotFound(func(w http.ResponseWriter, r *http.Request) {
		writeNotFound(w)
	})

	authService := service.NewAuthService(s.deps.DB.Users(), s.deps.Tokens, s.deps.Passwords, s.logger)
	noteService := service.NewNoteService(s.deps.DB.Notes(), s.deps.Files, s.logger)

	authHandler := handler.NewAuthHandler(authService, s.logger)
	noteHandler := handler.NewNoteHandler(noteService, s.config.Intake, s.logger)
	uploadHandler := handler.NewUploadHandler(s.deps.Files, s.logger)

	s.router.Get("/health", handler.HandleHealth)
	s.router.Get(storage.URLPrefix+"*", uploadHandler.HandleServe)

	s.router.Route("/api", func(r chi.Router) {
		r.Route("/auth", func(r chi.Router) {
			r.Post("/register", authHandler.HandleRegister)
			r.Post("/login", authHandler.HandleLogin)
		})

		r.Route("/notes", func(r chi.Router) {
			r.Use(auth.RequireAuth(s.deps.Tokens, s.logger))
			r.Get("/", noteHandler.HandleList)
			r.Post("/", noteHandler.HandleCreate)
			r.Get("/{id}", noteHandler.HandleGet)
			r.Put("/{id}", noteHandler.HandleUpdate)
			r.Delete("/{id}", noteHandler.HandleDelete)
		})
	})
}

// corsHandler allows the listed origins, or any origin when the list is
// empty. Requests without an Origin header are never affected.
func corsHandler(allowed []string) func(http.Handler) http.Handler {
	if len(allowed) == 0 {
		allowed = []string{"*"}
	}
	return cors.Handler(cors.Options{
		AllowedOrigins:   allowed,
		AllowedMethods:   []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodDelete, http.MethodOptions},
		AllowedHeaders:   []string{"Authorization", "Content-Type"},
		AllowCredentials: true,
		MaxAge:           300,
	})
}

func writeNotFound(w http.ResponseWriter) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusNotFound)
	json.NewEncoder(w).Encode(map[string]string{"error": apperror.NotFound("route", "").Message})
}

// Start serves the API until SIGINT/SIGTERM and closes the database pool
// afterwards.
func (s *Server) Start() error {
	defer s.deps.DB.Close()

	s.logger.Info("server starting",
		slog.Int("port", s.config.Port),
		slog.String("url", fmt.Sprintf("http://localhost:%d", s.config.Port)),
		slog.String("database", s.deps.DB.Driver()),
	)
	return Run(s.config.Port, s.router, s.logger)
}

// Run serves h on port until SIGINT/SIGTERM, then gives in-flight requests
// up to 30s to finish.
//
// GRACEFUL SHUTDOWN:
//  1. Stop accepting new connections
//  2. Wait for in-flight requests (bounded by shutdownTimeout)
//  3. Return, so the caller can close the database
func Run(port int, h http.Handler, logger *slog.Logger) error {
	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", port),
		Handler:           h,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       60 * time.Second, // uploads
		WriteTimeout:      60 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(quit)

	serverErrors := make(chan error, 1)
	go func() {
		serverErrors <- srv.ListenAndServe()
	}()

	select {
	case err := <-serverErrors:
		if !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("server error: %w", err)
		}

	case sig := <-quit:
		logger.Info("shutdown signal received", slog.String("signal", sig.String()))

		ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()

		if err := srv.Shutdown(ctx); err != nil {
			return fmt.Errorf("graceful shutdown failed: %w", err)
		}
		logger.Info("server stopped gracefully")
	}

	return nil
}
