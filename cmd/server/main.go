// Package main runs the integrations HTTP server: webhook ingestion, health
// status and the live outcome stream, with graceful shutdown.
package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/aura-platform/integrations/config"
	"github.com/aura-platform/integrations/internal/auth"
	"github.com/aura-platform/integrations/internal/integrations"
	"github.com/aura-platform/integrations/internal/metrics"
	"github.com/aura-platform/integrations/internal/middleware"
	"github.com/aura-platform/integrations/internal/pipeline"
	"github.com/aura-platform/integrations/internal/realtime"
	"github.com/aura-platform/integrations/internal/store"
	"github.com/aura-platform/integrations/internal/webhooklogs"
	"github.com/aura-platform/integrations/internal/webhooks"
	"github.com/aura-platform/integrations/pkg/database"
	"github.com/aura-platform/integrations/pkg/logger"
	"github.com/aura-platform/integrations/pkg/queue"
	"github.com/aura-platform/integrations/pkg/ratelimit"
	"github.com/aura-platform/integrations/pkg/redis"
	"github.com/aura-platform/integrations/pkg/response"
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
	pool, err := database.NewPostgresPool(ctx, cfg.Database.DSN(), int32(cfg.Worker.Concurrency+10), log)
	if err != nil {
		log.Fatal("database", zap.Error(err))
	}
	defer pool.Close()

	if err := database.Migrate(ctx, pool, log); err != nil {
		log.Fatal("migrate", zap.Error(err))
	}
	if err := store.NewPostgres(pool).EnsureOrganizations(ctx, cfg.Seed.Organizations, log); err != nil {
		log.Fatal("seed organizations", zap.Error(err))
	}

	rdb, err := redis.NewClient(ctx, redis.Options{
		Addr:              cfg.Redis.Addr,
		Password:          cfg.Redis.Password,
		DB:                cfg.Redis.DB,
		BlockingConsumers: blockingConsumers(cfg),
		PollTimeout:       cfg.Worker.PollTimeout,
	}, log)
	if err != nil {
		log.Fatal("redis", zap.Error(err))
	}
	defer rdb.Close()

	taskQueue := queue.NewQueue(rdb.Client, log)
	limiter := ratelimit.NewRedis(rdb.Client, cfg.RateLimit.Count, cfg.RateLimit.Period)
	m := metrics.New()
	jwtService := auth.NewJWTService(cfg.JWT.Secret, cfg.JWT.ExpireHours)

	hub := realtime.NewHub(log, realtime.NewRedisPubSub(rdb.Client, log))
	if err := hub.Start(ctx); err != nil {
		log.Fatal("outcome stream", zap.Error(err))
	}
	defer hub.Stop()

	webhookHandler := webhooks.NewHandler(taskQueue, cfg.Server.MaxBodyBytes, m, log)
	statusHandler := integrations.NewHandler(integrations.NewAggregator(webhooklogs.NewRepository(pool)), log)

	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(middleware.CORS(cfg.Server.CORSAllowedOrigins))
	router.Use(middleware.Logger(log))

	// Health
	router.GET("/health", func(c *gin.Context) { response.OK(c, gin.H{"status": "ok"}) })
	m.Register(router)

	// Webhooks (public, rate limited per endpoint and client)
	webhookHandler.Register(router, limiter)

	// Operators (JWT required)
	ops := router.Group("/integrations")
	ops.Use(middleware.JWT(jwtService), middleware.RequireRole(auth.RoleAdmin, auth.RoleSuperAdmin))
	{
		ops.GET("/status", statusHandler.Status)
		ops.GET("/stream", realtime.ServeWs(hub, middleware.ContextOperatorID, log))
	}

	srv := &http.Server{
		Addr:         ":" + cfg.Server.Port,
		Handler:      router,
		ReadTimeout:  time.Duration(cfg.Server.ReadTimeout) * time.Second,
		WriteTimeout: time.Duration(cfg.Server.WriteTimeout) * time.Second,
	}

	// Optional in-process worker for single-binary deployments
	workerCtx, workerCancel := context.WithCancel(context.Background())
	defer workerCancel()
	var workerDone sync.WaitGroup
	if cfg.Worker.InProcess {
		w := pipeline.NewWorker(ctx, cfg, pipeline.Deps{
			Pool:      pool,
			Queue:     taskQueue,
			Publisher: hub,
			Metrics:   m,
			Logger:    log,
		})
		workerDone.Add(1)
		go func() {
			defer workerDone.Done()
			w.Run(workerCtx)
		}()
	}

	go func() {
		log.Info("server listening", zap.String("port", cfg.Server.Port))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal("server", zap.Error(err))
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error("server shutdown", zap.Error(err))
	}
	workerCancel()
	workerDone.Wait()
	log.Info("server stopped")
}

// blockingConsumers is the number of queue consumers this process runs, if any.
func blockingConsumers(cfg *config.Config) int {
	if !cfg.Worker.InProcess {
		return 0
	}
	return cfg.Worker.Concurrency
}
