package main

import (
	"context"
	"errors"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"trivia-backend/internal/api"
	"trivia-backend/internal/objectstore"
	"trivia-backend/internal/reconcile"
)

func newServeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API and the scheduled reconcile sweep",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(cmd.Context())
		},
	}
}

func runServe(parent context.Context) error {
	if parent == nil {
		parent = context.Background()
	}
	ctx, stop := signal.NotifyContext(parent, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	rt, err := bootstrap(ctx)
	if err != nil {
		return err
	}
	defer rt.close()

	opts := []api.Option{
		api.WithMetrics(rt.registry),
		api.WithHealthCheck(rt.gateway.Ping),
	}
	if fs, ok := rt.backend.(*objectstore.FilesystemBackend); ok {
		opts = append(opts, api.WithFiles(fs.Root()))
	}
	handler := api.NewHandler(rt.cfg, rt.catalog, rt.service(), rt.logger, opts...)

	if rt.cfg.ReconcileEnabled {
		sweeps, err := reconcile.Schedule(rt.cfg.ReconcileInterval, rt.sweeper(), 5*time.Minute, rt.logger)
		if err != nil {
			return err
		}
		defer func() { <-sweeps.Stop().Done() }()
	}

	server := &http.Server{
		Addr:         ":" + rt.cfg.Port,
		Handler:      handler.Router(),
		ReadTimeout:  2 * time.Minute,
		WriteTimeout: 2 * time.Minute,
		IdleTimeout:  2 * time.Minute,
	}

	errCh := make(chan error, 1)
	go func() {
		rt.logger.Info("trivia api listening", "addr", server.Addr, "storage", rt.cfg.StorageDriver)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			return err
		}
	case <-ctx.Done():
	}
	rt.logger.Info("shutting down trivia api")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), rt.cfg.ShutdownTimeout)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		rt.logger.Error("graceful shutdown failed", "error", err)
		return err
	}
	return nil
}
