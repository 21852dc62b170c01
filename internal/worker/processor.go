package worker

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/aura-platform/integrations/internal/adapters"
	"github.com/aura-platform/integrations/internal/events"
	"github.com/aura-platform/integrations/internal/metrics"
	"github.com/aura-platform/integrations/internal/models"
	"github.com/aura-platform/integrations/internal/store"
	"github.com/aura-platform/integrations/internal/syncengine"
	"github.com/aura-platform/integrations/pkg/queue"
)

// UserSource is the identity service.
type UserSource interface {
	GetUser(ctx context.Context, ev *events.IdentityEvent) (adapters.Response[adapters.ExternalUser], error)
}

// SubscriptionSource is the billing service.
type SubscriptionSource interface {
	GetSubscription(ctx context.Context, ev *events.BillingEvent) (adapters.Response[adapters.ExternalSubscription], error)
}

// MessageSource is the messaging service.
type MessageSource interface {
	GetMessage(ctx context.Context, ev *events.MessagingEvent) (adapters.Response[adapters.ExternalMessage], error)
}

// Processor runs one attempt of one task: parse, dedupe, fetch, sync, log.
type Processor struct {
	store      store.Store
	engine     *syncengine.Engine
	users      UserSource
	billing    SubscriptionSource
	messaging  MessageSource
	retry      RetryPolicy
	maxRetries int
	metrics    *metrics.Metrics
	logger     *zap.Logger
}

// ProcessorConfig wires a Processor.
type ProcessorConfig struct {
	Store      store.Store
	Engine     *syncengine.Engine
	Users      UserSource
	Billing    SubscriptionSource
	Messaging  MessageSource
	Retry      RetryPolicy
	MaxRetries int
	Metrics    *metrics.Metrics
	Logger     *zap.Logger
}

// NewProcessor creates a processor. Retry defaults to ExponentialBackoff{Base: 2}.
func NewProcessor(cfg ProcessorConfig) *Processor {
	if cfg.Logger == nil {
		cfg.Logger = zap.NewNop()
	}
	if cfg.Engine == nil {
		cfg.Engine = syncengine.New(cfg.Logger)
	}
	if cfg.Retry == nil {
		cfg.Retry = ExponentialBackoff{Base: 2}
	}
	return &Processor{
		store:      cfg.Store,
		engine:     cfg.Engine,
		users:      cfg.Users,
		billing:    cfg.Billing,
		messaging:  cfg.Messaging,
		retry:      cfg.Retry,
		maxRetries: cfg.MaxRetries,
		metrics:    cfg.Metrics,
		logger:     cfg.Logger,
	}
}

// Process runs one attempt. It never schedules anything itself.
func (p *Processor) Process(ctx context.Context, task *queue.Task) Outcome {
	service, ok := events.ParseService(task.Service)
	if !ok {
		p.logger.Warn("unknown service, discarding task", zap.String("task_id", task.ID), zap.String("service", task.Service))
		return Discarded{Reason: fmt.Sprintf("unknown service %q", task.Service)}
	}
	ev, err := events.Decode(service, task.Payload)
	if err != nil {
		p.logger.Warn("unparseable payload, discarding task", zap.String("task_id", task.ID), zap.Error(err))
		return Discarded{Reason: err.Error()}
	}
	h := ev.Envelope()
	log := p.logger.With(zap.String("event_id", h.EventID), zap.String("event_type", h.EventType),
		zap.String("service", string(service)), zap.Int("attempt", task.Attempt))

	done, err := p.store.IsProcessed(ctx, h.EventID)
	if err != nil {
		return p.fail(ctx, task, h, fmt.Errorf("idempotency check: %w", err), log)
	}
	if done {
		log.Info("event already processed")
		return Duplicate{}
	}

	var status models.WebhookStatus
	err = p.store.WithinTx(ctx, func(tx store.Tx) error {
		st, note, err := p.dispatch(ctx, tx, ev)
		if err != nil {
			return err
		}
		status = st
		return tx.CreateWebhookLog(ctx, &models.WebhookLog{
			EventID:  h.EventID,
			Service:  string(service),
			OrgID:    h.OrganizationID,
			Status:   st,
			Payload:  task.Payload,
			Attempts: task.Attempt + 1,
			Error:    note,
		})
	})
	switch {
	case errors.Is(err, store.ErrDuplicateEvent):
		log.Info("event logged concurrently by another worker")
		return Duplicate{}
	case err != nil:
		return p.fail(ctx, task, h, err, log)
	}
	log.Info("event processed", zap.String("status", string(status)))
	return Completed{Status: status}
}

// dispatch calls the adapter and sync pair for the event's service. A business
// error from the adapter is recorded as processed without syncing.
func (p *Processor) dispatch(ctx context.Context, tx store.Tx, ev events.Event) (models.WebhookStatus, *string, error) {
	var (
		res  syncengine.Result
		berr *adapters.BusinessError
		err  error
	)
	switch ev := ev.(type) {
	case *events.IdentityEvent:
		resp, ferr := p.users.GetUser(ctx, ev)
		if ferr != nil {
			return "", nil, p.adapterErr(events.ServiceIdentity, ferr)
		}
		if !resp.OK() {
			berr = resp.Error
			break
		}
		res, err = p.engine.SyncIdentity(ctx, tx, ev, resp.Data)
	case *events.BillingEvent:
		resp, ferr := p.billing.GetSubscription(ctx, ev)
		if ferr != nil {
			return "", nil, p.adapterErr(events.ServiceBilling, ferr)
		}
		if !resp.OK() {
			berr = resp.Error
			break
		}
		res, err = p.engine.SyncBilling(ctx, tx, ev, resp.Data)
	case *events.MessagingEvent:
		resp, ferr := p.messaging.GetMessage(ctx, ev)
		if ferr != nil {
			return "", nil, p.adapterErr(events.ServiceMessaging, ferr)
		}
		if !resp.OK() {
			berr = resp.Error
			break
		}
		res, err = p.engine.SyncMessaging(ctx, tx, ev, resp.Data)
	default:
		return "", nil, fmt.Errorf("no handler for %T", ev)
	}
	if err != nil {
		return "", nil, fmt.Errorf("sync: %w", err)
	}
	if berr != nil {
		p.logger.Info("upstream business error, nothing to sync",
			zap.String("event_id", ev.Envelope().EventID), zap.String("code", berr.Code), zap.String("message", berr.Message))
		note := berr.Code + ": " + berr.Message
		return models.WebhookProcessed, &note, nil
	}
	if res.Skipped() {
		return models.WebhookSkipped, &res.Reason, nil
	}
	return models.WebhookProcessed, nil, nil
}

func (p *Processor) adapterErr(service events.Service, err error) error {
	if adapters.IsTransient(err) {
		p.metrics.AdapterFailure(string(service))
	}
	return fmt.Errorf("%s adapter: %w", service, err)
}

// fail turns an attempt error into Retry, or into DeadLetter with a failed log row
// once retries are exhausted.
func (p *Processor) fail(ctx context.Context, task *queue.Task, h *events.Header, err error, log *zap.Logger) Outcome {
	if task.Attempt < p.maxRetries {
		delay := p.retry.NextDelay(task.Attempt)
		log.Warn("attempt failed, will retry", zap.Duration("delay", delay), zap.Error(err))
		return Retry{Delay: delay, Err: err}
	}
	return p.giveUp(ctx, task, h, err, log)
}

// Abandon ends a task whose retry could not be scheduled. It writes the failed
// log row exactly as retry exhaustion does, whatever attempt the task is on.
func (p *Processor) Abandon(ctx context.Context, task *queue.Task, cause error) Outcome {
	service, ok := events.ParseService(task.Service)
	if !ok {
		return Discarded{Reason: fmt.Sprintf("unknown service %q", task.Service)}
	}
	ev, err := events.Decode(service, task.Payload)
	if err != nil {
		return Discarded{Reason: err.Error()}
	}
	h := ev.Envelope()
	log := p.logger.With(zap.String("event_id", h.EventID), zap.String("service", string(service)),
		zap.Int("attempt", task.Attempt))
	return p.giveUp(ctx, task, h, cause, log)
}

// giveUp writes the failed row and dead-letters the task. If the row itself cannot
// be written the task is retried instead, so no task is dead-lettered without one.
func (p *Processor) giveUp(ctx context.Context, task *queue.Task, h *events.Header, err error, log *zap.Logger) Outcome {
	msg := err.Error()
	row := &models.WebhookLog{
		EventID:  h.EventID,
		Service:  task.Service,
		OrgID:    h.OrganizationID,
		Status:   models.WebhookFailed,
		Payload:  task.Payload,
		Attempts: task.Attempt + 1,
		Error:    &msg,
	}
	if rerr := p.store.RecordFailure(ctx, row); rerr != nil {
		if errors.Is(rerr, store.ErrDuplicateEvent) {
			log.Info("event logged concurrently by another worker")
			return Duplicate{}
		}
		// Capped at the last regular retry delay; the attempt count keeps climbing while the store is down.
		delay := p.retry.NextDelay(min(task.Attempt, p.maxRetries))
		log.Error("record failure, will retry", zap.Duration("delay", delay), zap.Error(rerr))
		return Retry{Delay: delay, Err: fmt.Errorf("record failure: %w (after: %v)", rerr, err)}
	}
	log.Error("retries exhausted", zap.Error(err))
	return DeadLetter{Err: err}
}
