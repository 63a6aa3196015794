package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"time"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/hungerdash/hungerdash-backend/internal/cart"
	"github.com/hungerdash/hungerdash-backend/pkg/config"
	"github.com/hungerdash/hungerdash-backend/pkg/db"
	"github.com/hungerdash/hungerdash-backend/pkg/instance"
	"github.com/hungerdash/hungerdash-backend/pkg/logger"
	"github.com/hungerdash/hungerdash-backend/pkg/metrics"
	"github.com/hungerdash/hungerdash-backend/pkg/migrate"
	"github.com/hungerdash/hungerdash-backend/pkg/redis"
)

const (
	lockKeyFormat = "hd:cron-worker:lock:%s"
	sweepJob      = "cart_retention"
	sweepInterval = time.Hour
	// abandoned carts are kept for a month before the sweep removes them
	cartRetention = 30 * 24 * time.Hour
)

func main() {
	logg := logger.New(logger.Options{ServiceName: "cron-worker"})

	if err := godotenv.Load(); err != nil {
		logg.Warn(context.Background(), ".env file not found, relying on environment")
	}

	cfg, err := config.Load()
	if err != nil {
		logg.Error(context.Background(), "failed to load config", err)
		os.Exit(1)
	}

	logg = logger.New(logger.Options{
		ServiceName: "cron-worker",
		Level:       logger.ParseLevel(cfg.App.LogLevel),
		WarnStack:   cfg.App.LogWarnStack,
	})

	dbClient, err := db.New(context.Background(), cfg.DB, logg)
	if err != nil {
		logg.Error(context.Background(), "failed to bootstrap database", err)
		os.Exit(1)
	}
	defer func() {
		if err := dbClient.Close(); err != nil {
			logg.Error(context.Background(), "error closing database", err)
		}
	}()

	if err := migrate.MaybeRunDev(context.Background(), cfg, logg, dbClient); err != nil {
		logg.Error(context.Background(), "failed to run dev migrations", err)
		os.Exit(1)
	}

	redisClient, err := redis.New(context.Background(), cfg.Redis, logg)
	if err != nil {
		logg.Error(context.Background(), "failed to bootstrap redis", err)
		os.Exit(1)
	}
	defer func() {
		if err := redisClient.Close(); err != nil {
			logg.Error(context.Background(), "error closing redis", err)
		}
	}()

	cartRepo := cart.NewRepository(dbClient.DB())
	metricsCollector := metrics.NewCronJobMetrics(prometheus.DefaultRegisterer)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()
	workerID := instance.GetID()
	ctx = logg.WithFields(ctx, map[string]any{
		"env":      cfg.App.Env,
		"instance": workerID,
	})
	logg.Info(ctx, "starting cron worker")

	ticker := time.NewTicker(sweepInterval)
	defer ticker.Stop()

	// run once at startup, then on the ticker
	runSweep(ctx, logg, redisClient, cartRepo, metricsCollector, cfg.App.Env, workerID)
	for {
		select {
		case <-ctx.Done():
			logg.Info(ctx, "cron worker shutting down gracefully")
			return
		case <-ticker.C:
			runSweep(ctx, logg, redisClient, cartRepo, metricsCollector, cfg.App.Env, workerID)
		}
	}
}

// runSweep deletes abandoned carts past the retention window. The redis
// lock keeps concurrent worker replicas from double-running the job; a
// replica that fails to take the lock simply skips this round.
func runSweep(
	ctx context.Context,
	logg *logger.Logger,
	redisClient *redis.Client,
	carts cart.Repository,
	metricsCollector *metrics.CronJobMetrics,
	env, workerID string,
) {
	acquired, err := redisClient.SetNX(ctx, lockKey(env), workerID, sweepInterval/2)
	if err != nil {
		logg.Error(ctx, "failed to acquire cron lock", err)
		metricsCollector.IncFailure(sweepJob)
		return
	}
	if !acquired {
		return
	}

	start := time.Now()
	cutoff := start.Add(-cartRetention)
	deleted, err := carts.DeleteAbandonedBefore(ctx, cutoff)
	metricsCollector.ObserveDuration(sweepJob, time.Since(start))
	if err != nil {
		logg.Error(ctx, "cart retention sweep failed", err)
		metricsCollector.IncFailure(sweepJob)
		return
	}
	metricsCollector.IncSuccess(sweepJob)

	sweepCtx := logg.WithFields(ctx, map[string]any{
		"deleted_carts": deleted,
		"cutoff":        cutoff.UTC().Format(time.RFC3339),
	})
	logg.Info(sweepCtx, "cart retention sweep completed")
}

func lockKey(env string) string {
	if env == "" {
		env = "local"
	}
	return fmt.Sprintf(lockKeyFormat, env)
}
