// Package api exposes the classification engine and the satellite catalog
// over HTTP.
package api

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/totoccar/SpaceSituationalAwareness/internal/auth"
	"github.com/totoccar/SpaceSituationalAwareness/internal/catalog"
	"github.com/totoccar/SpaceSituationalAwareness/internal/engine"
	"github.com/totoccar/SpaceSituationalAwareness/internal/health"
	"github.com/totoccar/SpaceSituationalAwareness/internal/metrics"
	"github.com/totoccar/SpaceSituationalAwareness/internal/ratelimit"
	"github.com/totoccar/SpaceSituationalAwareness/internal/stream"
)

// Config holds listener and request-shaping settings.
type Config struct {
	Addr         string
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
	CORSOrigins  []string
	MaxBatch     int
	Workers      int
	Auth         auth.Config
	RateLimit    ratelimit.Config
}

// Deps are the collaborators the handlers call into.
type Deps struct {
	Engine  *engine.Engine
	Catalog catalog.Provider
	Stream  *stream.Handler
	Health  *health.Checker
	Limiter *ratelimit.Limiter
	Logger  *slog.Logger
	Now     func() time.Time
}

// Server holds the HTTP server and its dependencies.
type Server struct {
	httpServer *http.Server
	handler    http.Handler
	engine     *engine.Engine
	catalog    catalog.Provider
	logger     *slog.Logger
	now        func() time.Time
	maxBatch   int
	workers    int
}

// NewServer creates a configured HTTP server.
func NewServer(cfg Config, deps Deps) *Server {
	if deps.Now == nil {
		deps.Now = time.Now
	}
	if cfg.MaxBatch <= 0 {
		cfg.MaxBatch = 500
	}
	if cfg.Workers <= 0 {
		cfg.Workers = 1
	}
	if cfg.ReadTimeout <= 0 {
		cfg.ReadTimeout = 15 * time.Second
	}
	if cfg.WriteTimeout <= 0 {
		cfg.WriteTimeout = 60 * time.Second
	}
	if deps.Limiter == nil {
		deps.Limiter = ratelimit.NewLimiter(cfg.RateLimit.RequestsPerSecond, cfg.RateLimit.Burst)
	}

	s := &Server{
		engine:   deps.Engine,
		catalog:  deps.Catalog,
		logger:   deps.Logger.With("component", "api"),
		now:      deps.Now,
		maxBatch: cfg.MaxBatch,
		workers:  cfg.Workers,
	}

	mux := http.NewServeMux()

	// Probes and scrapes.
	mux.HandleFunc("GET /healthz", health.Healthz)
	mux.HandleFunc("GET /readyz", deps.Health.Readyz)
	mux.HandleFunc("GET /health", deps.Health.Health)
	mux.Handle("GET /metrics", metrics.Handler())

	// Classification.
	mux.HandleFunc("POST /api/v1/classify", s.handleClassify)
	mux.HandleFunc("POST /predict", s.handleClassify)
	mux.HandleFunc("POST /api/v1/classify/batch", s.handleBatch)
	if deps.Stream != nil {
		mux.HandleFunc("POST /api/v1/classify/stream", deps.Stream.HandleBatch)
	}

	// Catalog.
	mux.HandleFunc("GET /api/v1/satellites", s.handleSatellites)
	mux.HandleFunc("GET /satellites", s.handleSatellites)
	mux.HandleFunc("GET /api/v1/satellites/{norad_id}", s.handleSatellite)
	mux.HandleFunc("POST /api/v1/satellites/{norad_id}/classify", s.handleSatelliteClassify)

	// Build middleware chain: metrics -> request id -> logging -> CORS ->
	// rate limit -> auth -> mux.
	var handler http.Handler = mux
	handler = auth.Middleware(cfg.Auth)(handler)
	handler = ratelimit.Middleware(cfg.RateLimit, deps.Limiter, s.logger, metrics.IncRateLimited)(handler)
	handler = corsMiddleware(cfg.CORSOrigins)(handler)
	handler = loggingMiddleware(s.logger)(handler)
	handler = requestIDMiddleware(handler)
	handler = metrics.Middleware(handler)

	s.handler = handler
	s.httpServer = &http.Server{
		Addr:              cfg.Addr,
		Handler:           handler,
		ReadTimeout:       cfg.ReadTimeout,
		ReadHeaderTimeout: 5 * time.Second,
		WriteTimeout:      cfg.WriteTimeout,
		IdleTimeout:       120 * time.Second,
	}
	return s
}

// Handler returns the fully wrapped handler.
func (s *Server) Handler() http.Handler {
	return s.handler
}

// HTTPServer returns the underlying *http.Server for external control (e.g. shutdown).
func (s *Server) HTTPServer() *http.Server {
	return s.httpServer
}

// ListenAndServe starts the HTTP server.
func (s *Server) ListenAndServe() error {
	return s.httpServer.ListenAndServe()
}
