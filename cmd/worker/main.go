// Package main runs the background task worker: it drains the webhook queue,
// syncs upstream records and serves its own metrics listener.
package main

import (
	"context"
	"errors"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/aura-platform/integrations/config"
	"github.com/aura-platform/integrations/internal/metrics"
	"github.com/aura-platform/integrations/internal/pipeline"
	"github.com/aura-platform/integrations/internal/realtime"
	"github.com/aura-platform/integrations/pkg/database"
	"github.com/aura-platform/integrations/pkg/logger"
	"github.com/aura-platform/integrations/pkg/queue"
	"github.com/aura-platform/integrations/pkg/redis"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		logger.New(logger.Options{}).Fatal("load config", zap.Error(err))
	}
	log := logger.New(logger.Options{
		Level:      cfg.Log.Level,
		File:       cfg.Log.File,
		MaxSizeMB:  cfg.Log.MaxSizeMB,
		MaxBackups: cfg.Log.MaxBackups,
		MaxAgeDays: cfg.Log.MaxAgeDays,
	})
	defer log.Sync()

	ctx := context.Background()
	pool, err := database.NewPostgresPool(ctx, cfg.Database.DSN(), int32(cfg.Worker.Concurrency+2), log)
	if err != nil {
		log.Fatal("database", zap.Error(err))
	}
	defer pool.Close()

	if err := database.Migrate(ctx, pool, log); err != nil {
		log.Fatal("migrate", zap.Error(err))
	}

	rdb, err := redis.NewClient(ctx, redis.Options{
		Addr:              cfg.Redis.Addr,
		Password:          cfg.Redis.Password,
		DB:                cfg.Redis.DB,
		BlockingConsumers: cfg.Worker.Concurrency,
		PollTimeout:       cfg.Worker.PollTimeout,
	}, log)
	if err != nil {
		log.Fatal("redis", zap.Error(err))
	}
	defer rdb.Close()

	m := metrics.New()
	// Publish only: subscribers live in the server processes.
	hub := realtime.NewHub(log, realtime.NewRedisPubSub(rdb.Client, log))

	w := pipeline.NewWorker(ctx, cfg, pipeline.Deps{
		Pool:      pool,
		Queue:     queue.NewQueue(rdb.Client, log),
		Publisher: hub,
		Metrics:   m,
		Logger:    log,
	})

	metricsSrv := &http.Server{Addr: cfg.Metrics.Addr, Handler: m.Handler(), ReadHeaderTimeout: 5 * time.Second}
	go func() {
		log.Info("metrics listening", zap.String("addr", cfg.Metrics.Addr))
		if err := metricsSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error("metrics server", zap.Error(err))
		}
	}()

	workerCtx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	// Run returns after in-flight tasks finish.
	w.Run(workerCtx)

	shutdownCtx, stop := context.WithTimeout(context.Background(), 5*time.Second)
	defer stop()
	if err := metricsSrv.Shutdown(shutdownCtx); err != nil {
		log.Error("metrics shutdown", zap.Error(err))
	}
	log.Info("worker stopped")
}
