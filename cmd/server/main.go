// Command server serves the joinflow HTTP API. With in-memory stores or a
// process-local queue it also runs the dispatch pipeline, since nothing
// else could reach the pending work.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/prometheus/client_golang/prometheus"
	"golang.org/x/sync/errgroup"

	"joinflow/internal/app"
	grouphandler "joinflow/internal/group/handler"
	groupservice "joinflow/internal/group/service"
	httpapi "joinflow/internal/http"
	invitationhandler "joinflow/internal/invitation/handler"
	invitationservice "joinflow/internal/invitation/service"
	jrhandler "joinflow/internal/joinrequest/handler"
	jrservice "joinflow/internal/joinrequest/service"
	jwttoken "joinflow/internal/jwt_token"
	"joinflow/internal/platform/config"
	"joinflow/internal/platform/httpserver"
	"joinflow/internal/platform/logger"
	"joinflow/internal/platform/metrics"
	userhandler "joinflow/internal/user/handler"
	userservice "joinflow/internal/user/service"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "joinflow server: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	log := logger.New(cfg.Log)

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

	reg := prometheus.DefaultRegisterer
	m := metrics.New(reg)
	jwtService := jwttoken.NewJWTService(cfg.Auth.JWTSigningKey, cfg.Auth.JWTIssuer)
	jwtValidator := jwttoken.NewJWTServiceAdapter(jwtService)

	users := userservice.New(stores.Users, tasks,
		userservice.WithLogger(log),
		userservice.WithMetrics(m),
		userservice.WithRequireApproval(cfg.Users.RequireApproval),
		userservice.WithSuperUserEmails(cfg.Users.SuperUserEmails),
	)
	groups := groupservice.New(stores.Groups, stores.Activities, stores.Tx, log)
	invitations := invitationservice.New(stores.Invitations, log)
	requests := jrservice.New(stores.JoinRequests, groups, stores.Users, stores.Activities, stores.Tx,
		jrservice.WithLogger(log),
		jrservice.WithMetrics(m),
	)

	health := map[string]httpapi.HealthCheck{"queue": tasks.Ping}
	if stores.DB != nil {
		health["database"] = stores.DB.PingContext
	}
	router := httpapi.NewRouter(httpapi.Options{
		Logger:         log,
		Metrics:        m,
		RequestTimeout: cfg.Server.RequestTimeout,
		Health:         health,
	},
		userhandler.New(users, jwtService, cfg.Auth.TokenTTL, log, jwtValidator),
		grouphandler.New(groups, log, jwtValidator),
		invitationhandler.New(invitations, log, jwtValidator),
		jrhandler.New(requests, log, jwtValidator),
	)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return httpserver.Run(gctx, httpserver.New(cfg.Server.Addr, router), cfg.Server.ShutdownTimeout, log)
	})

	if cfg.Dispatch.Embedded || stores.DB == nil || !app.SharedQueue(cfg) {
		notifier, closeNotifier, err := app.OpenNotifier(ctx, cfg, log)
		if err != nil {
			return err
		}
		defer closeNotifier()
		pipeline := app.NewPipeline(cfg, stores, tasks, notifier, log, reg)
		g.Go(func() error {
			return pipeline.Run(gctx)
		})
	} else {
		log.Info("dispatch pipeline left to cmd/dispatcher")
	}

	return g.Wait()
}
