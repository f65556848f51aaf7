package cli

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/totoccar/SpaceSituationalAwareness/internal/api"
	"github.com/totoccar/SpaceSituationalAwareness/internal/catalog"
	"github.com/totoccar/SpaceSituationalAwareness/internal/health"
	"github.com/totoccar/SpaceSituationalAwareness/internal/metrics"
	"github.com/totoccar/SpaceSituationalAwareness/internal/ratelimit"
	"github.com/totoccar/SpaceSituationalAwareness/internal/stream"
	"github.com/totoccar/SpaceSituationalAwareness/internal/tracing"
)

// sweepInterval is how often idle rate-limit buckets are dropped.
const sweepInterval = time.Minute

func newServeCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the classification HTTP API",
		Long: `Serve the classification API:
  POST /api/v1/classify            classify one TLE (alias: POST /predict)
  POST /api/v1/classify/batch      classify many TLEs
  POST /api/v1/classify/stream     classify many TLEs, results as Server-Sent Events
  GET  /api/v1/satellites          browse the live catalog (alias: GET /satellites)
  GET  /api/v1/satellites/{id}     one catalog entry
  POST /api/v1/satellites/{id}/classify
  GET  /healthz /readyz /health /metrics`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.runServe()
		},
	}

	f := cmd.Flags()
	f.String("addr", ":8080", "listen address")
	f.Int("workers", 0, "batch worker count (default: number of CPUs)")
	f.Bool("tracing", false, "enable OpenTelemetry tracing")

	_ = a.v.BindPFlag("server.addr", f.Lookup("addr"))
	_ = a.v.BindPFlag("server.workers", f.Lookup("workers"))
	_ = a.v.BindPFlag("tracing.enabled", f.Lookup("tracing"))
	return cmd
}

func (a *app) runServe() error {
	cfg := a.cfg
	logger := a.logger(os.Stdout)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	shutdownTracing, err := tracing.Init(ctx, tracing.Config{
		Enabled:     cfg.Tracing.Enabled,
		ServiceName: cfg.Tracing.ServiceName,
		Version:     Version,
		Exporter:    cfg.Tracing.Exporter,
		Endpoint:    cfg.Tracing.Endpoint,
		SampleRatio: cfg.Tracing.SampleRatio,
	}, os.Stderr, logger)
	if err != nil {
		return fmt.Errorf("init tracing: %w", err)
	}
	defer tracing.ShutdownWithTimeout(shutdownTracing, cfg.Server.ShutdownTimeout, logger)

	e, err := a.engine(logger)
	if err != nil {
		return err
	}

	checker := health.NewChecker(e.Version(), time.Now())
	if err := health.SelfTest(e); err != nil {
		// Stay up so /healthz and /readyz explain the failure.
		logger.Error("self-test failed, not ready", "error", err)
		checker.MarkNotReady("self-test failed: " + err.Error())
	} else {
		checker.MarkReady()
		logger.Info("self-test passed", "model_version", e.Version())
	}

	cat := a.catalog(logger)

	limiter := ratelimit.NewLimiter(cfg.RateLimit.RequestsPerSecond, cfg.RateLimit.Burst)
	srv := api.NewServer(api.Config{
		Addr:         cfg.Server.Addr,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		CORSOrigins:  cfg.Server.CORSOrigins,
		MaxBatch:     cfg.Server.MaxBatch,
		Workers:      cfg.Server.Workers,
		Auth:         cfg.Auth,
		RateLimit:    cfg.RateLimit,
	}, api.Deps{
		Engine:  e,
		Catalog: cat,
		Stream:  stream.NewHandler(e, cfg.Stream, logger.With("component", "stream")),
		Health:  checker,
		Limiter: limiter,
		Logger:  logger,
	})

	// Warm the catalog so the first browse is fast.
	go func() {
		n, err := cat.Refresh(ctx, time.Now())
		if err != nil {
			logger.Warn("initial catalog refresh failed", "error", err, "entries", n)
		}
	}()

	go func() {
		ticker := time.NewTicker(sweepInterval)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				if n := limiter.Sweep(); n > 0 {
					logger.Debug("rate limiter swept idle clients", "removed", n)
				}
			case <-ctx.Done():
				return
			}
		}
	}()

	errCh := make(chan error, 1)
	go func() {
		logger.Info("starting server",
			"addr", cfg.Server.Addr,
			"version", Version,
			"model_version", e.Version(),
			"auth_enabled", cfg.Auth.Enabled,
			"rate_limit_enabled", cfg.RateLimit.Enabled,
			"tracing_enabled", cfg.Tracing.Enabled,
		)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("server listen: %w", err)
		}
	case <-ctx.Done():
	}

	logger.Info("shutting down server...")
	checker.MarkNotReady("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()
	if err := srv.HTTPServer().Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server shutdown: %w", err)
	}

	logger.Info("server stopped")
	return nil
}

// catalog builds the CelesTrak-backed provider from the loaded configuration.
func (a *app) catalog(logger *slog.Logger) *catalog.CelesTrak {
	cfg := a.cfg.Catalog
	l := logger.With("component", "catalog")
	return catalog.NewCelesTrak(
		catalog.NewFetcher(cfg.SourceURL, l, cfg.ExtraURLs...),
		l,
		catalog.WithTTL(cfg.TTL),
		catalog.WithSnapshots(catalog.NewSnapshots(cfg.SnapshotDir, cfg.MaxFiles)),
		catalog.WithObserver(metrics.Recorder{}),
	)
}
