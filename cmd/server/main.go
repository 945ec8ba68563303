package main

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

	"golang.org/x/sync/errgroup"

	"doctrack/internal/admin"
	"doctrack/internal/analytics"
	"doctrack/internal/app"
	jwttoken "doctrack/internal/jwt_token"
	"doctrack/internal/outbox"
	"doctrack/internal/platform/config"
	"doctrack/internal/platform/httpserver"
	"doctrack/internal/platform/kafka"
	"doctrack/internal/platform/logger"
	"doctrack/internal/platform/metrics"
	"doctrack/internal/platform/otel"
	"doctrack/internal/platform/redis"
	routinghandler "doctrack/internal/routing/handler"
	routingmetrics "doctrack/internal/routing/metrics"
	"doctrack/internal/routing/models"
	"doctrack/internal/routing/service"
	httptransport "doctrack/internal/transport/http"
	"doctrack/pkg/platform/circuit"
	authmw "doctrack/pkg/platform/middleware/auth"
)

// main wires high-level dependencies and keeps the process lifecycle small.
// Business logic lives in internal services packages.
func main() {
	if err := run(); err != nil {
		fmt.Fprintln(os.Stderr, "doctrack:", err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.FromEnv()
	if err != nil {
		return err
	}
	log := logger.New(cfg.LogLevel)
	slog.SetDefault(log)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	shutdownTracing, err := otel.Setup(ctx, cfg.Telemetry)
	if err != nil {
		return fmt.Errorf("tracing: %w", err)
	}
	defer func() {
		flushCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := shutdownTracing(flushCtx); err != nil {
			log.Warn("tracer shutdown failed", "error", err)
		}
	}()

	stores, err := app.OpenStores(ctx, cfg, log)
	if err != nil {
		return err
	}
	defer stores.Close()

	health := []httptransport.HealthCheck{{Name: "storage", Check: stores.Ping}}

	engine := app.NewEngine(cfg, stores, log, service.WithMetrics(routingmetrics.New()))

	analyticsOpts := []analytics.Option{
		analytics.WithLogger(log),
		analytics.WithMetrics(analytics.NewMetrics()),
	}
	redisClient, err := redis.New(ctx, cfg.Redis)
	if err != nil {
		return err
	}
	if redisClient != nil {
		defer redisClient.Close()
		analyticsOpts = append(analyticsOpts, analytics.WithCache(analytics.NewRedisCache(redisClient.Client), cfg.Analytics.CacheTTL))
		health = append(health, httptransport.HealthCheck{Name: "redis", Check: redisClient.Health})
	}
	reports := analytics.NewService(stores.Events, analyticsOpts...)

	publisher, closePublisher, err := newPublisher(ctx, cfg.Kafka, log)
	if err != nil {
		return err
	}
	defer closePublisher()
	if p, ok := publisher.(*kafka.Publisher); ok {
		health = append(health, httptransport.HealthCheck{Name: "kafka", Check: p.Ping})
	}
	worker := outbox.NewWorker(stores.Outbox, publisher,
		outbox.WithLogger(log),
		outbox.WithMetrics(outbox.NewMetrics()),
		outbox.WithPollInterval(cfg.Outbox.PollInterval),
		outbox.WithBatchSize(cfg.Outbox.BatchSize),
		outbox.WithBreaker(circuit.New("outbox-publisher",
			circuit.WithFailureThreshold(cfg.Outbox.BreakerThreshold),
			circuit.WithCooldown(cfg.Outbox.BreakerCooldown),
		)),
	)

	tokens := jwttoken.NewJWTService(cfg.JWTSigningKey, cfg.JWTIssuer, cfg.JWTAudience)
	router := httptransport.NewRouter(httptransport.Deps{
		Logger:         log,
		Metrics:        metrics.New(),
		RequestTimeout: cfg.RequestTimeout,
		Validator:      jwttoken.NewJWTServiceAdapter(tokens),
		AdminToken:     cfg.AdminToken,
		Authenticated: []httptransport.Registrar{
			routinghandler.New(engine, log,
				routinghandler.WithAdminGuard(authmw.RequireRole(models.RoleAdmin, log)),
			),
			analytics.NewHandler(reports, log),
		},
		Operator: []httptransport.Registrar{admin.New(stores.Documents, stores.Events, stores.Outbox, log)},
		Health:   health,
	})
	srv := httpserver.New(cfg.Addr, router, cfg.RequestTimeout)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		log.Info("starting doctrack", "addr", cfg.Addr, "postgres", cfg.UsesPostgres())
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		if err := worker.Run(gctx); err != nil && !errors.Is(err, context.Canceled) {
			return fmt.Errorf("outbox worker: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		log.Info("shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})
	return g.Wait()
}
