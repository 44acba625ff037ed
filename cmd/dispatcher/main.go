// Command dispatcher runs the readiness scanner and the delivery workers
// against the shared database and Redis queue. Several instances may run
// side by side; each task is handed to one worker at a time.
package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/prometheus/client_golang/prometheus"
	"golang.org/x/sync/errgroup"

	"joinflow/internal/app"
	httpapi "joinflow/internal/http"
	"joinflow/internal/platform/config"
	"joinflow/internal/platform/httpserver"
	"joinflow/internal/platform/logger"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "joinflow dispatcher: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	log := logger.New(cfg.Log)

	if cfg.Database.DSN == "" || !app.SharedQueue(cfg) {
		return errors.New("dispatcher needs database.dsn and dispatch.queue_backend=redis; use dispatch.embedded in the server otherwise")
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	stores, err := app.OpenStores(ctx, cfg, log)
	if err != nil {
		return err
	}
	defer stores.Close()

	tasks, err := app.OpenQueue(ctx, cfg)
	if err != nil {
		return err
	}
	defer tasks.Close()

	notifier, closeNotifier, err := app.OpenNotifier(ctx, cfg, log)
	if err != nil {
		return err
	}
	defer closeNotifier()

	reg := prometheus.DefaultRegisterer
	pipeline := app.NewPipeline(cfg, stores, tasks, notifier, log, reg)

	// Health and metrics only; the API lives in cmd/server.
	ops := httpapi.NewRouter(httpapi.Options{
		Logger: log,
		Health: map[string]httpapi.HealthCheck{
			"database": stores.DB.PingContext,
			"queue":    tasks.Ping,
		},
	})

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return pipeline.Run(gctx)
	})
	g.Go(func() error {
		return httpserver.Run(gctx, httpserver.New(cfg.Server.Addr, ops), cfg.Server.ShutdownTimeout, log)
	})
	return g.Wait()
}
