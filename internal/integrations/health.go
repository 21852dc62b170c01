// Package integrations derives per-service health from the webhook log.
package integrations

import (
	"context"
	"fmt"
	"time"

	"github.com/aura-platform/integrations/internal/events"
	"github.com/aura-platform/integrations/internal/models"
)

// Status is the health of one upstream integration.
type Status string

const (
	StatusHealthy  Status = "healthy"
	StatusDegraded Status = "degraded"
	StatusError    Status = "error"
)

// LogSource returns the newest log row for a service and status, or nil.
type LogSource interface {
	Latest(ctx context.Context, service string, status models.WebhookStatus) (*models.WebhookLog, error)
}

// ServiceHealth is one entry of the status report.
type ServiceHealth struct {
	LastSuccess *time.Time `json:"last_success"`
	LastEventID *string    `json:"last_event_id"`
	Status      Status     `json:"status"`
}

// Evaluate derives health from the latest processed and failed rows:
// no success is an error, a failure strictly newer than the last success is degraded.
func Evaluate(processed, failed *models.WebhookLog) ServiceHealth {
	if processed == nil {
		return ServiceHealth{Status: StatusError}
	}
	at := processed.CreatedAt.UTC()
	id := processed.EventID
	h := ServiceHealth{LastSuccess: &at, LastEventID: &id, Status: StatusHealthy}
	if failed != nil && failed.CreatedAt.After(processed.CreatedAt) {
		h.Status = StatusDegraded
	}
	return h
}

// Aggregator builds the status report for every service.
type Aggregator struct {
	logs LogSource
}

// NewAggregator creates an aggregator over logs.
func NewAggregator(logs LogSource) *Aggregator {
	return &Aggregator{logs: logs}
}

// Status returns health keyed by service name.
func (a *Aggregator) Status(ctx context.Context) (map[string]ServiceHealth, error) {
	out := make(map[string]ServiceHealth, len(events.Services))
	for _, s := range events.Services {
		processed, err := a.logs.Latest(ctx, string(s), models.WebhookProcessed)
		if err != nil {
			return nil, fmt.Errorf("latest processed for %s: %w", s, err)
		}
		failed, err := a.logs.Latest(ctx, string(s), models.WebhookFailed)
		if err != nil {
			return nil, fmt.Errorf("latest failed for %s: %w", s, err)
		}
		out[string(s)] = Evaluate(processed, failed)
	}
	return out, nil
}
