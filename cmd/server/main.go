// Package main provides the HTTP server application entry point.
// The server accepts submission requests, enqueues generation jobs, and
// serves status/admin reads; the worker process runs the jobs themselves.
package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"

	"github.com/redis/go-redis/v9"

	"github.com/makeit3d/forge-gateway/internal/adapter/httpserver"
	asynqadp "github.com/makeit3d/forge-gateway/internal/adapter/queue/asynq"
	"github.com/makeit3d/forge-gateway/internal/adapter/repo/postgres"
	"github.com/makeit3d/forge-gateway/internal/adapter/tenant"
	"github.com/makeit3d/forge-gateway/internal/app"
	"github.com/makeit3d/forge-gateway/internal/artifact"
	"github.com/makeit3d/forge-gateway/internal/config"
	"github.com/makeit3d/forge-gateway/internal/domain"
	"github.com/makeit3d/forge-gateway/internal/observability"
	"github.com/makeit3d/forge-gateway/internal/usecase"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		slog.Error("config load failed", slog.Any("error", err))
		os.Exit(1)
	}

	logger := observability.SetupLogger(cfg)
	slog.SetDefault(logger)
	observability.InitMetrics()

	shutdownTracer, err := observability.SetupTracing(cfg)
	if err != nil {
		slog.Error("failed to setup tracing", slog.Any("error", err))
	}
	defer func() {
		if shutdownTracer != nil {
			_ = shutdownTracer(context.Background())
		}
	}()

	slog.Info("starting server", slog.String("env", cfg.AppEnv))

	ctx := context.Background()
	pool, err := postgres.NewPool(ctx, cfg.DBURL)
	if err != nil {
		slog.Error("database connection failed", slog.Any("error", err))
		os.Exit(1)
	}
	defer pool.Close()

	redisOpts, err := redis.ParseURL(cfg.RedisURL)
	if err != nil {
		slog.Error("invalid redis url", slog.Any("error", err))
		os.Exit(1)
	}
	redisClient := redis.NewClient(redisOpts)
	defer func() { _ = redisClient.Close() }()

	routing, err := config.LoadRoutingTable(cfg.RoutingConfigPath)
	if err != nil {
		slog.Error("routing table load failed", slog.Any("error", err))
		os.Exit(1)
	}

	repos := postgres.NewRepos(pool)
	admin := postgres.NewAdminQueries(pool)

	queue, err := asynqadp.New(cfg.RedisURL)
	if err != nil {
		slog.Error("queue init failed", slog.Any("error", err))
		os.Exit(1)
	}
	defer func() { _ = queue.Close() }()

	inspector, err := asynqadp.NewInspector(cfg.RedisURL)
	if err != nil {
		slog.Error("inspector init failed", slog.Any("error", err))
		os.Exit(1)
	}

	fetcher := artifact.NewHTTPFetcher()

	queueNames := make([]string, 0, len(routing.Queues()))
	for name := range routing.Queues() {
		queueNames = append(queueNames, name)
	}

	registry := app.BuildDriverRegistry(cfg)

	submitSvc := usecase.NewSubmitService(repos, registry, routing, queue, fetcher)
	statusSvc := usecase.NewStatusService(repos, inspector, registry, queueNames)

	var tenants domain.TenantResolver
	if cfg.TenantAPIKeys != "" {
		tenants = tenant.NewStaticResolver(cfg.TenantAPIKeys)
	}

	dbCheck, redisCheck, blobCheck := app.BuildReadinessChecks(cfg, pool, redisClient)

	srv := httpserver.NewServer(cfg, submitSvc, statusSvc, tenants, repos, admin, dbCheck, redisCheck, blobCheck)
	router := app.BuildRouter(cfg, srv)

	httpSrv := &http.Server{
		Addr:         ":" + strconv.Itoa(cfg.Port),
		Handler:      router,
		ReadTimeout:  cfg.HTTPReadTimeout,
		WriteTimeout: cfg.HTTPWriteTimeout,
		IdleTimeout:  cfg.HTTPIdleTimeout,
	}

	go func() {
		slog.Info("http server listening", slog.Int("port", cfg.Port))
		if err := httpSrv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			slog.Error("http server error", slog.Any("error", err))
		}
	}()

	sigCtx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	<-sigCtx.Done()

	slog.Info("shutting down server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ServerShutdownTimeout)
	defer cancel()
	if err := httpSrv.Shutdown(shutdownCtx); err != nil {
		slog.Error("server shutdown error", slog.Any("error", err))
	}
}
