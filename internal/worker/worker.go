// Package worker drains the task queue: each task is processed in one scoped
// transaction and the resulting Outcome decides whether it is done, delayed or dead-lettered.
package worker

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/aura-platform/integrations/internal/events"
	"github.com/aura-platform/integrations/internal/metrics"
	"github.com/aura-platform/integrations/pkg/queue"
)

// Queue is the worker's side of the task queue.
type Queue interface {
	Dequeue(ctx context.Context, timeout time.Duration) (*queue.Task, error)
	Schedule(ctx context.Context, task *queue.Task, delay time.Duration) error
	PromoteDue(ctx context.Context) (int, error)
	DeadLetter(ctx context.Context, task *queue.Task) error
	Depth(ctx context.Context) (queue.Depth, error)
}

// Archiver keeps a durable copy of dead-lettered tasks.
type Archiver interface {
	Archive(ctx context.Context, task *queue.Task) error
}

// Publisher fans outcome reports out to live observers.
type Publisher interface {
	Publish(ctx context.Context, r Report) error
}

// Report describes one terminal or retry outcome for observers.
type Report struct {
	TaskID  string    `json:"task_id"`
	EventID string    `json:"event_id,omitempty"`
	Service string    `json:"service"`
	Outcome string    `json:"outcome"`
	Status  string    `json:"status,omitempty"`
	Attempt int       `json:"attempt"`
	Error   string    `json:"error,omitempty"`
	At      time.Time `json:"at"`
}

// Config controls the worker loop.
type Config struct {
	Concurrency     int
	PollTimeout     time.Duration
	PromoteInterval time.Duration
}

// Worker runs Concurrency consumers plus one promoter for delayed tasks.
type Worker struct {
	queue     Queue
	processor *Processor
	archive   Archiver
	publisher Publisher
	metrics   *metrics.Metrics
	cfg       Config
	logger    *zap.Logger
}

// New creates a worker. archive, publisher and m may be nil.
func New(q Queue, p *Processor, archive Archiver, publisher Publisher, m *metrics.Metrics, cfg Config, logger *zap.Logger) *Worker {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.Concurrency < 1 {
		cfg.Concurrency = 1
	}
	if cfg.PollTimeout <= 0 {
		cfg.PollTimeout = 5 * time.Second
	}
	if cfg.PromoteInterval <= 0 {
		cfg.PromoteInterval = 500 * time.Millisecond
	}
	return &Worker{queue: q, processor: p, archive: archive, publisher: publisher, metrics: m, cfg: cfg, logger: logger}
}

// Run blocks until ctx is done and every in-flight task has finished.
func (w *Worker) Run(ctx context.Context) {
	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		w.promote(ctx)
	}()
	for i := 0; i < w.cfg.Concurrency; i++ {
		wg.Add(1)
		go func(id int) {
			defer wg.Done()
			w.consume(ctx, id)
		}(i)
	}
	w.logger.Info("worker started", zap.Int("concurrency", w.cfg.Concurrency))
	wg.Wait()
	w.logger.Info("worker stopped")
}

func (w *Worker) consume(ctx context.Context, id int) {
	log := w.logger.With(zap.Int("consumer", id))
	for ctx.Err() == nil {
		task, err := w.queue.Dequeue(ctx, w.cfg.PollTimeout)
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			log.Warn("dequeue error", zap.Error(err))
			select {
			case <-ctx.Done():
				return
			case <-time.After(time.Second):
			}
			continue
		}
		if task == nil {
			continue
		}
		// In-flight units finish even when shutdown has begun.
		w.Handle(context.WithoutCancel(ctx), task)
	}
}

func (w *Worker) promote(ctx context.Context) {
	ticker := time.NewTicker(w.cfg.PromoteInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if _, err := w.queue.PromoteDue(ctx); err != nil && ctx.Err() == nil {
				w.logger.Warn("promote delayed tasks", zap.Error(err))
			}
			if d, err := w.queue.Depth(ctx); err == nil {
				w.metrics.QueueDepth(d.Ready, d.Delayed, d.Dead)
			}
		}
	}
}

// Handle processes one task and acts on its outcome.
func (w *Worker) Handle(ctx context.Context, task *queue.Task) Outcome {
	start := time.Now()
	out := w.processor.Process(ctx, task)
	if r, ok := out.(Retry); ok {
		out = w.retry(ctx, task, r)
	}

	report := Report{
		TaskID:  task.ID,
		EventID: events.EventIDOf(task.Payload),
		Service: task.Service,
		Outcome: out.Name(),
		Attempt: task.Attempt,
		At:      time.Now().UTC(),
	}
	switch o := out.(type) {
	case Completed:
		report.Status = string(o.Status)
	case Discarded:
		report.Error = o.Reason
	case Retry:
		report.Error = o.Err.Error()
	case DeadLetter:
		report.Error = o.Err.Error()
		task.LastError = o.Err.Error()
		w.deadLetter(ctx, task)
	}

	w.metrics.Outcome(task.Service, out.Name(), time.Since(start))
	if w.publisher != nil {
		if err := w.publisher.Publish(ctx, report); err != nil {
			w.logger.Warn("publish outcome", zap.String("task_id", task.ID), zap.Error(err))
		}
	}
	return out
}

// retry parks the next attempt in the delayed set. When that fails the task is
// abandoned through the processor so its failed log row is written first.
func (w *Worker) retry(ctx context.Context, task *queue.Task, r Retry) Outcome {
	next := *task
	next.Attempt++
	next.LastError = r.Err.Error()
	err := w.queue.Schedule(ctx, &next, r.Delay)
	if err == nil {
		return r
	}
	w.logger.Error("schedule retry failed, abandoning task", zap.String("task_id", task.ID), zap.Error(err))
	out := w.processor.Abandon(ctx, task, fmt.Errorf("schedule retry: %w (after: %v)", err, r.Err))
	if again, ok := out.(Retry); ok {
		// Neither the queue nor the store is accepting writes; the DLQ is the last place left.
		w.logger.Error("failed row not written, dead-lettering anyway", zap.String("task_id", task.ID), zap.Error(again.Err))
		return DeadLetter{Err: again.Err}
	}
	return out
}

func (w *Worker) deadLetter(ctx context.Context, task *queue.Task) {
	if err := w.queue.DeadLetter(ctx, task); err != nil {
		w.logger.Error("dead-letter push failed", zap.String("task_id", task.ID), zap.Error(err))
	}
	if w.archive == nil {
		return
	}
	if err := w.archive.Archive(ctx, task); err != nil {
		w.logger.Error("dead-letter archive failed", zap.String("task_id", task.ID), zap.Error(err))
	}
}
