// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Tunnelguard Contributors

package server

import (
	"context"
	"errors"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/danielgtaylor/huma/v2"
	"github.com/danielgtaylor/huma/v2/adapters/humachi"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/tunnelguard-dev/tunnelguard/internal/mitigation"
	"github.com/tunnelguard-dev/tunnelguard/internal/store"
	tgerr "github.com/tunnelguard-dev/tunnelguard/pkg/errors"
)

// Config holds HTTP server configuration.
type Config struct {
	ListenAddr   string
	CORSOrigins  []string
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
}

// Deps are the wired components the admin API exposes.
type Deps struct {
	Controller *mitigation.Controller
	Policy     *mitigation.RestartPolicy
	Records    store.HealthRecordStore
	Gatherer   prometheus.Gatherer
	Logger     *slog.Logger
}

// Server wraps a chi router with the huma admin API and HTTP server.
type Server struct {
	router chi.Router
	api    huma.API
	cfg    Config
	deps   Deps
	log    *slog.Logger
}

// New creates a Server with chi router, huma API, health endpoint, CORS,
// and the Prometheus scrape endpoint.
func New(cfg Config, deps Deps) (*Server, error) {
	if cfg.ListenAddr == "" {
		return nil, tgerr.New(tgerr.CodeServerConfigInvalid, "listen address is required")
	}
	if deps.Controller == nil || deps.Policy == nil || deps.Records == nil {
		return nil, tgerr.New(tgerr.CodeServerConfigInvalid, "controller, policy and records are required")
	}
	if cfg.ReadTimeout == 0 {
		cfg.ReadTimeout = 30 * time.Second
	}
	if cfg.WriteTimeout == 0 {
		cfg.WriteTimeout = 60 * time.Second
	}
	if deps.Logger == nil {
		deps.Logger = slog.Default()
	}

	r := chi.NewRouter()

	// Middleware
	r.Use(middleware.Recoverer)
	r.Use(middleware.RealIP)
	r.Use(corsMiddleware(cfg.CORSOrigins))

	// Huma API with OpenAPI spec
	humaConfig := huma.DefaultConfig("Tunnelguard", "0.1.0")
	humaConfig.Info.Description = "Tunnel bad-health mitigation admin API"
	api := humachi.New(r, humaConfig)

	// Liveness endpoint for the daemon itself
	huma.Register(api, huma.Operation{
		OperationID: "health",
		Method:      http.MethodGet,
		Path:        "/health",
		Summary:     "Health check",
		Tags:        []string{"system"},
	}, func(_ context.Context, _ *struct{}) (*HealthResponse, error) {
		return &HealthResponse{Body: HealthBody{Status: "ok"}}, nil
	})

	if deps.Gatherer != nil {
		r.Method(http.MethodGet, "/metrics", promhttp.HandlerFor(deps.Gatherer, promhttp.HandlerOpts{}))
	}

	srv := &Server{
		router: r,
		api:    api,
		cfg:    cfg,
		deps:   deps,
		log:    deps.Logger,
	}
	srv.registerRoutes()

	return srv, nil
}

// Handler returns the underlying http.Handler for testing.
func (s *Server) Handler() http.Handler {
	return s.router
}

// Start runs the HTTP server and blocks until the context is cancelled,
// then performs graceful shutdown.
func (s *Server) Start(ctx context.Context) error {
	ln, err := net.Listen("tcp", s.cfg.ListenAddr)
	if err != nil {
		return tgerr.Wrapf(err, tgerr.CodeServerStartFailure, "listening on %s", s.cfg.ListenAddr)
	}

	s.log.Info("admin API listening", "addr", ln.Addr().String())

	srv := &http.Server{
		Handler:      s.router,
		ReadTimeout:  s.cfg.ReadTimeout,
		WriteTimeout: s.cfg.WriteTimeout,
	}

	errCh := make(chan error, 1)
	go func() {
		if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		return tgerr.Wrap(err, tgerr.CodeServerStartFailure, "shutting down")
	}

	return <-errCh
}

// HealthBody is the JSON body of the health endpoint response.
type HealthBody struct {
	Status string `json:"status" example:"ok" doc:"Health status"`
}

// HealthResponse wraps the health check response.
type HealthResponse struct {
	Body HealthBody
}

func corsMiddleware(origins []string) func(http.Handler) http.Handler {
	if len(origins) == 0 {
		origins = []string{"http://localhost:5173"}
	}

	return cors.Handler(cors.Options{
		AllowedOrigins:   origins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		ExposedHeaders:   []string{"Link"},
		AllowCredentials: true,
		MaxAge:           300,
	})
}
