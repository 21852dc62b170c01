// Package store scopes one processing attempt to one database transaction.
package store

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"

	"github.com/aura-platform/integrations/internal/audit"
	"github.com/aura-platform/integrations/internal/communications"
	"github.com/aura-platform/integrations/internal/models"
	"github.com/aura-platform/integrations/internal/organizations"
	"github.com/aura-platform/integrations/internal/subscriptions"
	"github.com/aura-platform/integrations/internal/syncengine"
	"github.com/aura-platform/integrations/internal/users"
	"github.com/aura-platform/integrations/internal/webhooklogs"
	"github.com/aura-platform/integrations/pkg/database"
)

// ErrDuplicateEvent means a webhook log row already exists for the event_id.
var ErrDuplicateEvent = errors.New("event already logged")

// Tx is everything one processing attempt may touch.
type Tx interface {
	syncengine.Store
	CreateWebhookLog(ctx context.Context, l *models.WebhookLog) error
}

// Store is the worker's view of persistence.
type Store interface {
	// IsProcessed reports whether event_id already has a log row.
	IsProcessed(ctx context.Context, eventID string) (bool, error)
	// WithinTx commits when fn returns nil and rolls back otherwise.
	WithinTx(ctx context.Context, fn func(tx Tx) error) error
	// RecordFailure writes a failed log row in its own transaction.
	RecordFailure(ctx context.Context, l *models.WebhookLog) error
}

// Postgres implements Store on a pgx pool.
type Postgres struct {
	pool *pgxpool.Pool
	logs *webhooklogs.Repository
}

// NewPostgres creates a Postgres-backed store.
func NewPostgres(pool *pgxpool.Pool) *Postgres {
	return &Postgres{pool: pool, logs: webhooklogs.NewRepository(pool)}
}

func (s *Postgres) IsProcessed(ctx context.Context, eventID string) (bool, error) {
	return s.logs.Exists(ctx, eventID)
}

func (s *Postgres) WithinTx(ctx context.Context, fn func(tx Tx) error) error {
	return database.WithinTx(ctx, s.pool, func(tx pgx.Tx) error {
		return fn(newPgTx(tx))
	})
}

func (s *Postgres) RecordFailure(ctx context.Context, l *models.WebhookLog) error {
	return createLog(ctx, s.logs, l)
}

// EnsureOrganizations creates any seed organization ("slug:Name") that does not exist yet
// and audits each creation.
func (s *Postgres) EnsureOrganizations(ctx context.Context, seeds []string, logger *zap.Logger) error {
	if logger == nil {
		logger = zap.NewNop()
	}
	for _, entry := range seeds {
		org, err := organizations.ParseSeed(entry)
		if err != nil {
			return err
		}
		err = database.WithinTx(ctx, s.pool, func(tx pgx.Tx) error {
			orgs := organizations.NewRepository(tx)
			existing, err := orgs.GetBySlug(ctx, org.Slug)
			if err != nil || existing != nil {
				return err
			}
			if err := orgs.Create(ctx, org); err != nil {
				return err
			}
			logger.Info("organization seeded", zap.String("slug", org.Slug))
			return audit.NewRepository(tx).Log(ctx, models.AuditCreatedOrg, nil, &org.ID)
		})
		if err != nil {
			return fmt.Errorf("seed organization %s: %w", org.Slug, err)
		}
	}
	return nil
}

func createLog(ctx context.Context, logs *webhooklogs.Repository, l *models.WebhookLog) error {
	err := logs.Create(ctx, l)
	if database.IsUniqueViolation(err, webhooklogs.EventIDConstraint) {
		return fmt.Errorf("%w: %s", ErrDuplicateEvent, l.EventID)
	}
	return err
}

type pgTx struct {
	orgs   *organizations.Repository
	users  *users.Repository
	subs   *subscriptions.Repository
	comms  *communications.Repository
	audits *audit.Repository
	logs   *webhooklogs.Repository
}

func newPgTx(tx pgx.Tx) *pgTx {
	return &pgTx{
		orgs:   organizations.NewRepository(tx),
		users:  users.NewRepository(tx),
		subs:   subscriptions.NewRepository(tx),
		comms:  communications.NewRepository(tx),
		audits: audit.NewRepository(tx),
		logs:   webhooklogs.NewRepository(tx),
	}
}

func (t *pgTx) OrganizationBySlug(ctx context.Context, slug string) (*models.Organization, error) {
	return t.orgs.GetBySlug(ctx, slug)
}

func (t *pgTx) UserByExternalID(ctx context.Context, externalID string) (*models.User, error) {
	return t.users.GetByExternalID(ctx, externalID)
}

func (t *pgTx) UserByEmail(ctx context.Context, email string) (*models.User, error) {
	return t.users.GetByEmail(ctx, email)
}

func (t *pgTx) CreateUser(ctx context.Context, u *models.User) error { return t.users.Create(ctx, u) }
func (t *pgTx) UpdateUser(ctx context.Context, u *models.User) error { return t.users.Update(ctx, u) }

func (t *pgTx) SubscriptionByExternalID(ctx context.Context, externalID string) (*models.Subscription, error) {
	return t.subs.GetByExternalID(ctx, externalID)
}

func (t *pgTx) CreateSubscription(ctx context.Context, s *models.Subscription) error {
	return t.subs.Create(ctx, s)
}

func (t *pgTx) UpdateSubscription(ctx context.Context, s *models.Subscription) error {
	return t.subs.Update(ctx, s)
}

func (t *pgTx) CommunicationLogByMessageID(ctx context.Context, messageID string) (*models.CommunicationLog, error) {
	return t.comms.GetByMessageID(ctx, messageID)
}

func (t *pgTx) CreateCommunicationLog(ctx context.Context, l *models.CommunicationLog) error {
	return t.comms.Create(ctx, l)
}

func (t *pgTx) UpdateCommunicationLog(ctx context.Context, l *models.CommunicationLog) error {
	return t.comms.Update(ctx, l)
}

func (t *pgTx) Audit(ctx context.Context, action models.AuditAction, userID, orgID *uuid.UUID) error {
	return t.audits.Log(ctx, action, userID, orgID)
}

func (t *pgTx) CreateWebhookLog(ctx context.Context, l *models.WebhookLog) error {
	return createLog(ctx, t.logs, l)
}
