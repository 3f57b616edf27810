// Package main provides the worker application entry point.
// The worker consumes generation jobs from asynq's weighted multi-queue
// broker and drives each through the Job Orchestrator's lifecycle.
package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"

	asynqadp "github.com/makeit3d/forge-gateway/internal/adapter/queue/asynq"
	"github.com/makeit3d/forge-gateway/internal/adapter/repo/postgres"
	"github.com/makeit3d/forge-gateway/internal/app"
	"github.com/makeit3d/forge-gateway/internal/artifact"
	"github.com/makeit3d/forge-gateway/internal/config"
	"github.com/makeit3d/forge-gateway/internal/domain"
	"github.com/makeit3d/forge-gateway/internal/observability"
	"github.com/makeit3d/forge-gateway/internal/orchestrator"
	"github.com/makeit3d/forge-gateway/internal/service/ratelimiter"
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
	go func() {
		mux := http.NewServeMux()
		mux.Handle("/metrics", promhttp.Handler())
		addr := ":" + strconv.Itoa(cfg.WorkerMetricsPort)
		if err := http.ListenAndServe(addr, mux); err != nil {
			slog.Error("worker metrics server error", slog.Any("error", err))
		}
	}()

	shutdownTracer, err := observability.SetupTracing(cfg)
	if err != nil {
		slog.Error("failed to setup tracing", slog.Any("error", err))
	}
	defer func() {
		if shutdownTracer != nil {
			_ = shutdownTracer(context.Background())
		}
	}()

	slog.Info("starting worker", slog.String("env", cfg.AppEnv))

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
	registry := app.BuildDriverRegistry(cfg)

	blobStore := artifact.NewSupabaseBlobStore(cfg)
	fetcher := artifact.NewHTTPFetcher()
	pipeline := artifact.NewPipeline(blobStore, fetcher, cfg.UploadCallTimeout)

	buckets := map[string]ratelimiter.BucketConfig{
		"submit:" + string(domain.ProviderOpenAI): ratelimiter.NewBucketConfigFromPerMinute(cfg.CeleryOpenAITaskRateLimit),
	}
	limiter := ratelimiter.NewRedisLuaLimiter(redisClient, pool, buckets)

	jobTimeout := func(kind domain.JobKind, multiview bool) time.Duration {
		return cfg.JobTimeout(string(kind), multiview)
	}
	orch := orchestrator.New(repos, registry, pipeline, limiter, jobTimeout)

	worker, err := asynqadp.NewWorker(cfg.RedisURL, routing, cfg, orch)
	if err != nil {
		slog.Error("worker init failed", slog.Any("error", err))
		os.Exit(1)
	}

	sweeper := app.NewStuckJobSweeper(admin, repos, cfg.StuckJobMaxProcessingAge, cfg.StuckJobSweepInterval)
	sweepCtx, stopSweep := context.WithCancel(context.Background())
	defer stopSweep()
	go sweeper.Run(sweepCtx)

	errCh := make(chan error, 1)
	go func() {
		slog.Info("asynq worker starting")
		errCh <- worker.Start()
	}()

	sigCtx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	select {
	case <-sigCtx.Done():
		slog.Info("shutting down worker")
	case err := <-errCh:
		if err != nil {
			slog.Error("worker stopped with error", slog.Any("error", err))
		}
	}

	stopSweep()
	worker.Stop()
}
