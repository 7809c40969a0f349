package main

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"trivia-backend/internal/catalog"
	"trivia-backend/internal/config"
	"trivia-backend/internal/logging"
	"trivia-backend/internal/metrics"
	"trivia-backend/internal/objectstore"
	"trivia-backend/internal/reconcile"
	"trivia-backend/internal/store"
	"trivia-backend/internal/upload"
)

// runtime holds the long-lived dependencies shared by every command.
type runtime struct {
	cfg      *config.Config
	logger   *slog.Logger
	catalog  *catalog.Catalog
	gateway  *store.PostgresGateway
	ledger   *store.PostgresLedger
	backend  objectstore.Backend
	objects  *objectstore.Client
	registry *prometheus.Registry
	metrics  *metrics.Metrics
}

func bootstrap(ctx context.Context) (*runtime, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	logger := logging.Init(logging.Config{Level: cfg.LogLevel, Format: cfg.LogFormat})

	gateway, err := store.NewPostgresGateway(ctx, cfg.DatabaseURL, cfg.DBMaxConns)
	if err != nil {
		return nil, fmt.Errorf("connect database: %w", err)
	}
	ledger := store.NewPostgresLedger(gateway.Pool())
	if err := ledger.Migrate(ctx); err != nil {
		gateway.Close()
		return nil, fmt.Errorf("migrate asset ledger: %w", err)
	}

	backend, err := objectstore.NewBackend(cfg)
	if err != nil {
		gateway.Close()
		return nil, fmt.Errorf("init object store: %w", err)
	}

	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	return &runtime{
		cfg:      cfg,
		logger:   logger,
		catalog:  catalog.Default(),
		gateway:  gateway,
		ledger:   ledger,
		backend:  backend,
		objects:  objectstore.New(backend, cfg.StorageKeyPrefix),
		registry: registry,
		metrics:  metrics.New(registry),
	}, nil
}

func (rt *runtime) service() *upload.Service {
	return upload.NewService(rt.cfg, rt.gateway, rt.ledger, rt.objects, rt.metrics, logging.WithComponent(rt.logger, "upload"))
}

func (rt *runtime) sweeper() *reconcile.Sweeper {
	return reconcile.NewSweeper(rt.cfg, rt.ledger, rt.gateway, rt.objects, rt.catalog, rt.metrics, logging.WithComponent(rt.logger, "reconcile"))
}

func (rt *runtime) close() {
	rt.gateway.Close()
}
