// Package controller wires the HTTP API for shortforge.
package controller

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"shortforge/internal/controller/handlers"
	"shortforge/internal/controller/middleware"
)

// Config holds server dependencies that are not part of the handlers.
type Config struct {
	Addr       string
	OutputsDir string
	// Metrics serves /metrics when set.
	Metrics     http.Handler
	RateLimiter *middleware.RateLimiter
}

// Server is the HTTP server for the shortforge API.
type Server struct {
	httpServer *http.Server
}

// New creates a new server.
func New(config Config, h *handlers.Handlers, verifier middleware.TokenVerifier, logger *slog.Logger) *Server {
	return &Server{
		httpServer: &http.Server{
			Addr:        config.Addr,
			Handler:     Routes(config, h, verifier, logger),
			ReadTimeout: 10 * time.Second,
			// Downloads stream whole videos.
			WriteTimeout: 5 * time.Minute,
		},
	}
}

// Routes builds the request multiplexer.
func Routes(config Config, h *handlers.Handlers, verifier middleware.TokenVerifier, logger *slog.Logger) http.Handler {
	authMW := middleware.Auth(verifier, logger)
	limiter := config.RateLimiter
	if limiter == nil {
		limiter = middleware.NewRateLimiter()
	}
	rateMW := limiter.Middleware()

	mux := http.NewServeMux()

	// Probes
	mux.HandleFunc("GET /health", h.Health)
	mux.HandleFunc("GET /readyz", h.Readyz)
	if config.Metrics != nil {
		mux.Handle("GET /metrics", config.Metrics)
	}

	mux.HandleFunc("POST /api/auth/login", h.Login)
	mux.Handle("GET /api/auth/verify", authMW(http.HandlerFunc(h.Verify)))

	// Authenticated job apis
	mux.Handle("POST /api/jobs", authMW(rateMW(http.HandlerFunc(h.CreateJob))))
	mux.Handle("GET /api/jobs", authMW(http.HandlerFunc(h.ListJobs)))
	mux.Handle("GET /api/jobs/{id}", authMW(http.HandlerFunc(h.GetJob)))
	mux.Handle("DELETE /api/jobs/{id}", authMW(http.HandlerFunc(h.DeleteJob)))
	mux.Handle("GET /api/jobs/{id}/logs", authMW(http.HandlerFunc(h.GetJobLogs)))
	mux.Handle("GET /api/jobs/{id}/download", authMW(http.HandlerFunc(h.DownloadJob)))

	if config.OutputsDir != "" {
		files := http.StripPrefix("/outputs/", http.FileServer(http.Dir(config.OutputsDir)))
		mux.Handle("GET /outputs/", authMW(files))
	}

	return middleware.RequestID(mux)
}

// Run starts the HTTP server. It blocks until the context is cancelled.
func (s *Server) Run(ctx context.Context) error {
	serverErr := make(chan error, 1)

	go func() {
		if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			serverErr <- err
		}
	}()

	select {
	case err := <-serverErr:
		return err
	case <-ctx.Done():
		shutDownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()

		return s.Shutdown(shutDownCtx)
	}
}

// Shutdown gracefully shuts down the server.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.httpServer.Shutdown(ctx)
}
