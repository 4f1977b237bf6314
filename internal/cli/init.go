// Package cli holds the start-up steps shared by the pockets commands: env
// loading, logging, config and wiring a ledger onto the configured backend.
package cli

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"pockets/internal/backend"
	"pockets/internal/cache"
	"pockets/internal/config"
	"pockets/internal/core"
	"pockets/internal/ledger"
	applog "pockets/internal/log"
	"pockets/internal/services"
)

// LoadEnvFile loads the .env file for local development.
// Errors are ignored silently as this is optional in production.
func LoadEnvFile() {
	_ = godotenv.Load()
}

// SetupLogger builds the process logger from LOG_LEVEL and LOG_FORMAT and
// makes it the slog default.
func SetupLogger(cfg *config.Config, component string) *applog.Logger {
	lc := applog.DefaultConfig()
	lc.Component = component
	if cfg != nil {
		lc.Level = applog.ParseLevel(cfg.LogLevel)
		lc.Format = cfg.LogFormat
	}
	logger := applog.New(lc)
	applog.SetDefault(logger)
	return logger
}

// LoadAndValidateConfig loads configuration from the environment and validates it.
func LoadAndValidateConfig() (*config.Config, error) {
	cfg := config.Load()
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}
	return cfg, nil
}

// Runtime is a ledger wired to its backend. Close releases the backend.
type Runtime struct {
	Service *services.PocketService
	Ledger  *ledger.Ledger
	Main    core.Pocket
	Backend *backend.BackendResult

	caches *cache.Manager
}

// OpenLedger opens the configured backend, builds the ledger and the pocket
// service on it, and makes sure the main pocket exists.
func OpenLedger(ctx context.Context, cfg *config.Config, logger *applog.Logger) (*Runtime, error) {
	bcfg, err := backend.FromAppConfig(cfg)
	if err != nil {
		return nil, err
	}
	res, err := backend.NewFactory(logger).CreateBackend(ctx, bcfg)
	if err != nil {
		return nil, err
	}

	views := ledger.NewViewCache(cfg.ProjectionCacheTTL)
	caches := cache.NewManager(func(removed int) {
		logger.DebugContext(ctx, "Projection cache sweep", "removed", removed)
	})
	caches.Register(views)
	caches.StartCleanup(cacheSweepInterval(cfg.ProjectionCacheTTL))

	l := ledger.New(res.Log, ledger.Options{
		Publisher: res.Publisher,
		Logger:    logger,
		Cache:     views,
		Pockets:   res.Directory,
	})
	svc := services.NewPocketService(l, res.Directory, services.Options{
		Entitlement:    services.PocketLimit(cfg.MaxPockets),
		MainPocketName: cfg.MainPocketName,
		Logger:         logger,
	})

	rt := &Runtime{Service: svc, Ledger: l, Backend: res, caches: caches}
	main, err := svc.EnsureMainPocket(ctx)
	if err != nil {
		_ = rt.Close()
		return nil, fmt.Errorf("ensure main pocket: %w", err)
	}
	rt.Main = main
	return rt, nil
}

// Close stops the cache sweeper and releases the backend.
func (r *Runtime) Close() error {
	if r.caches != nil {
		r.caches.Stop()
	}
	return r.Backend.Close()
}

func cacheSweepInterval(ttl time.Duration) time.Duration {
	if ttl <= 0 {
		return time.Minute
	}
	return 2 * ttl
}

// SignalContext is cancelled on SIGINT or SIGTERM.
func SignalContext(parent context.Context) (context.Context, context.CancelFunc) {
	return signal.NotifyContext(parent, os.Interrupt, syscall.SIGTERM)
}
