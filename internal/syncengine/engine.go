// Package syncengine maps authoritative upstream records onto local users,
// subscriptions and communication logs.
package syncengine

import (
	"context"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/aura-platform/integrations/internal/models"
)

// Store is the transaction-scoped data access the engine needs.
// Lookups return (nil, nil) when nothing matches.
type Store interface {
	OrganizationBySlug(ctx context.Context, slug string) (*models.Organization, error)

	UserByExternalID(ctx context.Context, externalID string) (*models.User, error)
	UserByEmail(ctx context.Context, email string) (*models.User, error)
	CreateUser(ctx context.Context, u *models.User) error
	UpdateUser(ctx context.Context, u *models.User) error

	SubscriptionByExternalID(ctx context.Context, externalID string) (*models.Subscription, error)
	CreateSubscription(ctx context.Context, s *models.Subscription) error
	UpdateSubscription(ctx context.Context, s *models.Subscription) error

	CommunicationLogByMessageID(ctx context.Context, messageID string) (*models.CommunicationLog, error)
	CreateCommunicationLog(ctx context.Context, l *models.CommunicationLog) error
	UpdateCommunicationLog(ctx context.Context, l *models.CommunicationLog) error

	Audit(ctx context.Context, action models.AuditAction, userID, orgID *uuid.UUID) error
}

// Result is Applied with the audited action, or Skipped with a reason.
type Result struct {
	Action models.AuditAction
	Reason string
}

// Skipped reports whether the sync made no change.
func (r Result) Skipped() bool { return r.Action == "" }

func applied(action models.AuditAction) Result { return Result{Action: action} }

func skipped(reason string) Result { return Result{Reason: reason} }

// Engine applies upstream state to the local store.
type Engine struct {
	logger *zap.Logger
}

// New creates a sync engine.
func New(logger *zap.Logger) *Engine {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Engine{logger: logger}
}

func (e *Engine) skip(eventID, reason string, fields ...zap.Field) Result {
	e.logger.Warn("sync skipped", append([]zap.Field{zap.String("event_id", eventID), zap.String("reason", reason)}, fields...)...)
	return skipped(reason)
}

// prefer returns incoming unless it is empty.
func prefer(incoming, existing string) string {
	if incoming != "" {
		return incoming
	}
	return existing
}

func ptr[T any](v T) *T { return &v }
