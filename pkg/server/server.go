// Copyright 2026 Kadir Pekel
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Package server exposes the agent over HTTP and MCP. The HTTP surface is
// a small runs API: submit a goal, poll or stream its steps, cancel it.
// Each accepted run executes on its own agent through the bounded Runner.
// The MCP surface exposes the same core as tools for MCP clients.
package server

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"runtime/debug"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/kadirpekel/argus/pkg/auth"
	"github.com/kadirpekel/argus/pkg/config"
	"github.com/kadirpekel/argus/pkg/observability"
)

// Server is the HTTP front of the runs API.
type Server struct {
	cfg     *config.ServerConfig
	runner  *Runner
	obs     *observability.Manager
	auth    *auth.Validator
	ready   func(ctx context.Context) error
	handler http.Handler
	httpSrv *http.Server
}

// ServerOption configures optional server collaborators.
type ServerOption func(*Server)

// WithObservability attaches tracing and the metrics endpoint.
func WithObservability(obs *observability.Manager) ServerOption {
	return func(s *Server) { s.obs = obs }
}

// WithAuthValidator enables bearer-token authentication. A nil validator
// leaves the API open.
func WithAuthValidator(v *auth.Validator) ServerOption {
	return func(s *Server) { s.auth = v }
}

// WithReadyCheck adds a dependency probe to /readyz, e.g. a browser health
// or LLM reachability check.
func WithReadyCheck(fn func(ctx context.Context) error) ServerOption {
	return func(s *Server) { s.ready = fn }
}

// New assembles the server around a runner. The handler is built once, so
// tests can drive it through Handler without opening a socket.
func New(cfg *config.ServerConfig, runner *Runner, opts ...ServerOption) *Server {
	if cfg == nil {
		cfg = &config.ServerConfig{}
	}
	cfg.SetDefaults()

	s := &Server{
		cfg:    cfg,
		runner: runner,
	}
	for _, opt := range opts {
		opt(s)
	}
	s.handler = s.routes()
	return s
}

// Handler returns the fully assembled HTTP handler.
func (s *Server) Handler() http.Handler {
	return s.handler
}

func (s *Server) routes() http.Handler {
	r := chi.NewRouter()

	if s.obs != nil {
		r.Use(observability.HTTPMiddleware(s.obs.Tracer("argus.http"), s.obs.Metrics()))
	}
	r.Use(s.requestLogger)
	r.Use(s.recoverer)
	if s.cfg.CORS != nil {
		r.Use(s.corsMiddleware)
	}
	if s.auth != nil {
		excluded := []string{"/healthz", "/readyz", "/metrics"}
		if s.cfg.Auth != nil && len(s.cfg.Auth.ExcludedPaths) > 0 {
			excluded = s.cfg.Auth.ExcludedPaths
		}
		r.Use(s.auth.Middleware(excluded...))
	}

	r.Get("/healthz", s.handleHealthz)
	r.Get("/readyz", s.handleReadyz)
	if s.obs != nil && s.obs.MetricsEnabled() {
		r.Method(http.MethodGet, s.obs.MetricsEndpoint(), s.obs.MetricsHandler())
	}

	r.Route("/v1", func(r chi.Router) {
		r.Post("/runs", s.handleCreateRun)
		r.Get("/runs", s.handleListRuns)
		r.Get("/runs/{id}", s.handleGetRun)
		r.Delete("/runs/{id}", s.handleCancelRun)
		r.Get("/runs/{id}/events", s.handleRunEvents)
	})

	return r
}

// Start serves until ctx is cancelled or the listener fails, then shuts
// down gracefully within the configured timeout.
func (s *Server) Start(ctx context.Context) error {
	s.httpSrv = &http.Server{
		Addr:        s.cfg.Address(),
		Handler:     s.handler,
		ReadTimeout: 30 * time.Second,
		IdleTimeout: 120 * time.Second,
		// No WriteTimeout: the events stream outlives any fixed deadline.
	}

	slog.Info("HTTP server starting", "address", s.cfg.Address())

	errCh := make(chan error, 1)
	go func() {
		if err := s.httpSrv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), s.cfg.ShutdownTimeout)
		defer cancel()
		return s.Shutdown(shutdownCtx)
	}
}

// Shutdown drains the runner and stops the listener.
func (s *Server) Shutdown(ctx context.Context) error {
	slog.Info("HTTP server shutting down")

	if err := s.runner.Shutdown(ctx); err != nil {
		slog.Warn("Runner drain incomplete", "error", err)
	}
	if s.httpSrv != nil {
		return s.httpSrv.Shutdown(ctx)
	}
	return nil
}

// requestLogger logs each request at debug level after it completes.
func (s *Server) requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		next.ServeHTTP(w, r)
		slog.Debug("HTTP request",
			"method", r.Method,
			"path", r.URL.Path,
			"duration", time.Since(start),
		)
	})
}

// recoverer converts handler panics into 500 responses.
func (s *Server) recoverer(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			if rec := recover(); rec != nil {
				slog.Error("Handler panic",
					"method", r.Method,
					"path", r.URL.Path,
					"panic", rec,
					"stack", string(debug.Stack()),
				)
				writeError(w, http.StatusInternalServerError, "internal server error")
			}
		}()
		next.ServeHTTP(w, r)
	})
}

// corsMiddleware applies the configured CORS policy and answers preflights.
func (s *Server) corsMiddleware(next http.Handler) http.Handler {
	cors := s.cfg.CORS
	methods := strings.Join(cors.AllowedMethods, ", ")
	headers := strings.Join(cors.AllowedHeaders, ", ")

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		origin := r.Header.Get("Origin")
		if origin != "" {
			for _, allowed := range cors.AllowedOrigins {
				if allowed == "*" || allowed == origin {
					w.Header().Set("Access-Control-Allow-Origin", origin)
					break
				}
			}
		}
		w.Header().Set("Access-Control-Allow-Methods", methods)
		w.Header().Set("Access-Control-Allow-Headers", headers)

		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error("Failed to encode response", "error", err)
	}
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
