// Package site serves the companion static website: a couple of HTML pages,
// their assets and a health probe.
package site

import (
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"path/filepath"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	"github.com/sakif/notebox/internal/handler"
	"github.com/sakif/notebox/internal/middleware"
)

// pages maps routes to files in the public directory. Each must exist at
// startup.
var pages = map[string]string{
	"/":        "index.html",
	"/contact": "contact.html",
}

// New returns the site router for publicDir.
//
// ROUTES:
//
//	GET /health   → {"ok": true}
//	GET /         → index.html
//	GET /contact  → contact.html
//	GET /*        → any other file under publicDir
func New(publicDir string, logger *slog.Logger) (http.Handler, error) {
	for _, name := range pages {
		if _, err := os.Stat(filepath.Join(publicDir, name)); err != nil {
			return nil, fmt.Errorf("site: page %s: %w", name, err)
		}
	}

	r := chi.NewRouter()
	r.Use(chimiddleware.RequestID)
	r.Use(chimiddleware.RealIP)
	r.Use(middleware.Logger(logger))
	r.Use(chimiddleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{http.MethodGet, http.MethodHead, http.MethodOptions},
	}))

	r.Get("/health", handler.HandleHealth)
	for route, name := range pages {
		r.Get(route, servePage(filepath.Join(publicDir, name)))
	}
	r.Handle("/*", http.FileServer(http.Dir(publicDir)))

	return r, nil
}

func servePage(path string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		http.ServeFile(w, r, path)
	}
}
