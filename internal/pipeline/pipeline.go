// Package pipeline assembles the worker side of ingestion so cmd/server and
// cmd/worker build it the same way.
package pipeline

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"

	"github.com/aura-platform/integrations/config"
	"github.com/aura-platform/integrations/internal/adapters"
	"github.com/aura-platform/integrations/internal/metrics"
	"github.com/aura-platform/integrations/internal/store"
	"github.com/aura-platform/integrations/internal/syncengine"
	"github.com/aura-platform/integrations/internal/worker"
	"github.com/aura-platform/integrations/pkg/storage"
)

// Deps are the process-level resources a worker is built from.
type Deps struct {
	Pool      *pgxpool.Pool
	Queue     worker.Queue
	Publisher worker.Publisher
	Metrics   *metrics.Metrics
	Logger    *zap.Logger
}

// NewProcessor builds a processor over Postgres with simulated adapters
// sharing one fault injector.
func NewProcessor(cfg *config.Config, d Deps) *worker.Processor {
	faults := adapters.NewFaultInjector(cfg.Faults.ForceServiceFailures, cfg.Faults.EnableRandomFailures)
	if cfg.Faults.ForceServiceFailures > 0 || cfg.Faults.EnableRandomFailures {
		d.Logger.Warn("simulated upstream failures enabled",
			zap.Int("forced_per_service", cfg.Faults.ForceServiceFailures),
			zap.Bool("random", cfg.Faults.EnableRandomFailures))
	}
	return worker.NewProcessor(worker.ProcessorConfig{
		Store:      store.NewPostgres(d.Pool),
		Engine:     syncengine.New(d.Logger),
		Users:      adapters.NewIdentity(faults, d.Logger),
		Billing:    adapters.NewBilling(faults, d.Logger),
		Messaging:  adapters.NewMessaging(faults, d.Logger),
		Retry:      worker.ExponentialBackoff{Base: cfg.Worker.BackoffBase},
		MaxRetries: cfg.Worker.MaxRetries,
		Metrics:    d.Metrics,
		Logger:     d.Logger,
	})
}

// OpenArchive connects the S3 dead-letter archive. It fails when no bucket is configured.
func OpenArchive(ctx context.Context, cfg config.AWSConfig, logger *zap.Logger) (*storage.DeadLetterArchive, error) {
	if cfg.DeadLetterBucket == "" {
		return nil, errors.New("AWS_S3_DEAD_LETTER_BUCKET is not set")
	}
	s3Client, err := storage.NewS3(ctx, storage.S3Config{
		Region:          cfg.Region,
		AccessKeyID:     cfg.AccessKeyID,
		SecretAccessKey: cfg.SecretAccessKey,
	}, logger)
	if err != nil {
		return nil, err
	}
	return storage.NewDeadLetterArchive(s3Client, cfg.DeadLetterBucket, logger), nil
}

// NewArchiver returns the S3 dead-letter archive, or nil when no bucket is configured.
func NewArchiver(ctx context.Context, cfg config.AWSConfig, logger *zap.Logger) worker.Archiver {
	if cfg.DeadLetterBucket == "" {
		return nil
	}
	a, err := OpenArchive(ctx, cfg, logger)
	if err != nil {
		logger.Warn("dead letter archive disabled", zap.Error(err))
		return nil
	}
	return a
}

// NewWorker wires processor, archive and publisher into a worker loop.
func NewWorker(ctx context.Context, cfg *config.Config, d Deps) *worker.Worker {
	return worker.New(
		d.Queue,
		NewProcessor(cfg, d),
		NewArchiver(ctx, cfg.AWS, d.Logger),
		d.Publisher,
		d.Metrics,
		worker.Config{
			Concurrency:     cfg.Worker.Concurrency,
			PollTimeout:     cfg.Worker.PollTimeout,
			PromoteInterval: cfg.Worker.PromoteInterval,
		},
		d.Logger,
	)
}
