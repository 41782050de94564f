// Package app initializes and holds long-lived services, acting as a
// dependency injection container for the CLI commands.
package app

import (
	"context"
	"fmt"
	"io"

	"go.uber.org/zap"

	"github.com/p4blo4p/sitemap-hunter/internal/config"
	"github.com/p4blo4p/sitemap-hunter/internal/hunter"
	"github.com/p4blo4p/sitemap-hunter/internal/logging"
	pubmem "github.com/p4blo4p/sitemap-hunter/internal/publisher/memory"
	"github.com/p4blo4p/sitemap-hunter/internal/publisher/pubsub"
	"github.com/p4blo4p/sitemap-hunter/internal/state"
	statefs "github.com/p4blo4p/sitemap-hunter/internal/state/fs"
	"github.com/p4blo4p/sitemap-hunter/internal/state/gcs"
	statemem "github.com/p4blo4p/sitemap-hunter/internal/state/memory"
	"github.com/p4blo4p/sitemap-hunter/internal/state/postgres"
)

// App holds the shared, long-lived services for one invocation: the logger,
// the state store backend, and the optional report publisher. It is built
// once at startup and torn down with Close.
type App struct {
	Config    config.Config
	Logger    *zap.Logger
	Store     state.Store
	Publisher hunter.Publisher

	closers []io.Closer
}

// New initializes services from configuration, failing fast when a critical
// backend cannot be reached.
func New(ctx context.Context, cfg config.Config) (*App, error) {
	logger, err := logging.New(cfg.Logging.Development)
	if err != nil {
		return nil, fmt.Errorf("init logger: %w", err)
	}

	a := &App{Config: cfg, Logger: logger}

	switch cfg.State.Provider {
	case "fs":
		store, err := statefs.New(statefs.Config{BaseDir: cfg.State.BaseDir})
		if err != nil {
			return nil, fmt.Errorf("init fs state store: %w", err)
		}
		logger.Info("using filesystem state store", zap.String("base_dir", cfg.State.BaseDir))
		a.Store = store
	case "gcs":
		store, err := gcs.New(ctx, gcs.Config{
			Bucket: cfg.State.GCSBucket,
			Prefix: cfg.State.GCSPrefix,
		})
		if err != nil {
			return nil, fmt.Errorf("init gcs state store: %w", err)
		}
		logger.Info("using GCS state store", zap.String("bucket", cfg.State.GCSBucket))
		a.Store = store
		a.closers = append(a.closers, store)
	case "postgres":
		store, pool, err := postgres.New(ctx, cfg.State.PostgresDSN)
		if err != nil {
			return nil, fmt.Errorf("init postgres state store: %w", err)
		}
		logger.Info("using postgres state store")
		a.Store = store
		a.closers = append(a.closers, closerFunc(func() error {
			pool.Close()
			return nil
		}))
	case "memory":
		logger.Info("using in-memory state store, nothing will persist")
		a.Store = statemem.New()
	default:
		return nil, fmt.Errorf("unknown state provider: %s", cfg.State.Provider)
	}

	switch cfg.Report.Publisher {
	case "pubsub":
		pub, err := pubsub.New(ctx, cfg.Report.ProjectID)
		if err != nil {
			return nil, fmt.Errorf("init pubsub publisher: %w", err)
		}
		logger.Info("publishing reports to Pub/Sub", zap.String("topic", cfg.Report.Topic))
		a.Publisher = pub
		a.closers = append(a.closers, pub)
	case "memory":
		a.Publisher = pubmem.New()
	case "none":
		// Reports stay in the state store only.
	default:
		return nil, fmt.Errorf("unknown report publisher: %s", cfg.Report.Publisher)
	}

	return a, nil
}

// Close releases every service in reverse initialization order.
func (a *App) Close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i].Close(); err != nil {
			a.Logger.Warn("close failed", zap.Error(err))
		}
	}
	_ = a.Logger.Sync()
}

type closerFunc func() error

func (f closerFunc) Close() error { return f() }
