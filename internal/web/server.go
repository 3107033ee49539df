// Package web provides the HTTP server that connects grid surfaces to
// editing sessions.
package web

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"

	"github.com/JonMunkholm/gridhost/internal/config"
	"github.com/JonMunkholm/gridhost/internal/core"
	mw "github.com/JonMunkholm/gridhost/internal/web/middleware"
)

// Server is the HTTP server for editing sessions.
type Server struct {
	service *core.Service
	cfg     *config.Config
	router  *chi.Mux
	server  *http.Server
}

// NewServer creates a new Server instance. ctx bounds the background work of
// the rate limiters.
func NewServer(ctx context.Context, service *core.Service, cfg *config.Config) *Server {
	s := &Server{
		service: service,
		cfg:     cfg,
		router:  chi.NewRouter(),
	}
	s.setupMiddleware()
	s.setupRoutes(ctx)
	return s
}

// setupMiddleware configures middleware for all routes.
func (s *Server) setupMiddleware() {
	s.router.Use(chimw.RequestID)
	s.router.Use(mw.TrustedRealIP(s.cfg.Security.TrustedProxies))
	s.router.Use(mw.Logger)
	s.router.Use(chimw.Recoverer)
	s.router.Use(mw.SecurityHeaders(s.cfg.Security.EnableCSP))
}

// setupRoutes configures all HTTP routes.
func (s *Server) setupRoutes(ctx context.Context) {
	s.router.Get("/healthz", s.handleHealth)

	general := passThrough
	messages := passThrough
	if s.cfg.Rate.Enabled {
		general = mw.NewRateLimiter(ctx, s.cfg.Rate.RequestsPerMinute, time.Minute).Middleware
		messages = mw.NewRateLimiter(ctx, s.cfg.Rate.MessageLimit, time.Minute).Middleware
	}

	s.router.Route("/api", func(r chi.Router) {
		r.Use(mw.APIKeyAuth(&s.cfg.Security))

		// Event streams live as long as the surface; no request timeout.
		r.With(general).Get("/sessions/{id}/events", s.handleEvents)

		r.Group(func(r chi.Router) {
			if s.cfg.Server.RequestTimeout > 0 {
				r.Use(chimw.Timeout(s.cfg.Server.RequestTimeout))
			}

			// One call per edit, so these get their own budget.
			r.With(messages).Post("/sessions/{id}/messages", s.handleMessage)

			r.Group(func(r chi.Router) {
				r.Use(general)

				r.Get("/modes", s.handleListModes)
				r.Post("/inspect", s.handleInspect)

				r.Get("/sessions", s.handleListSessions)
				r.Post("/sessions", s.handleCreateSession)
				r.Get("/sessions/{id}", s.handleSessionSummary)
				r.Delete("/sessions/{id}", s.handleCloseSession)
				r.Get("/sessions/{id}/snapshot", s.handleSnapshot)
				r.Post("/sessions/{id}/formula", s.handleFormula)
				r.Post("/sessions/{id}/clear", s.handleClear)
				r.Post("/sessions/{id}/load", s.handleLoad)
				r.Post("/sessions/{id}/validate", s.handleValidate)
				r.Get("/sessions/{id}/changes", s.handleChanges)
				r.Get("/sessions/{id}/advisories", s.handleAdvisories)
				r.Delete("/sessions/{id}/advisories", s.handleDismissAdvisories)
				r.Delete("/sessions/{id}/cache", s.handleInvalidateCache)
				r.Get("/sessions/{id}/export", s.handleExport)
			})
		})
	})
}

func passThrough(next http.Handler) http.Handler { return next }

// Start begins listening for HTTP requests.
func (s *Server) Start() error {
	s.server = &http.Server{
		Addr:         s.cfg.Server.Addr(),
		Handler:      s.router,
		ReadTimeout:  s.cfg.Server.ReadTimeout,
		WriteTimeout: s.cfg.Server.WriteTimeout, // 0 keeps event streams open
		IdleTimeout:  s.cfg.Server.IdleTimeout,
	}

	slog.Info("starting server", "addr", s.server.Addr)
	return s.server.ListenAndServe()
}

// Shutdown gracefully stops the server.
func (s *Server) Shutdown(ctx context.Context) error {
	if s.server == nil {
		return nil
	}
	return s.server.Shutdown(ctx)
}

// Router returns the underlying chi router for testing.
func (s *Server) Router() *chi.Mux {
	return s.router
}

// writeJSON encodes v as JSON and writes it to w.
// Logs encoding errors since headers are already sent.
func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error("json encode error", "error", err)
	}
}
