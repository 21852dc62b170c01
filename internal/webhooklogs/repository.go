// Package webhooklogs is the ledger of delivery outcomes, one row per event_id.
package webhooklogs

import (
	"context"

	"github.com/aura-platform/integrations/internal/models"
	"github.com/aura-platform/integrations/pkg/database"
)

// EventIDConstraint is the unique constraint that makes processing idempotent.
const EventIDConstraint = "webhook_logs_event_id_key"

// Repository writes and queries webhook log rows. Rows are never updated.
type Repository struct {
	db database.DBTX
}

// NewRepository creates a webhook log repository over a pool or a transaction.
func NewRepository(db database.DBTX) *Repository {
	return &Repository{db: db}
}

// Create inserts l. created_at comes from the database clock.
// A second row for the same event_id fails with a unique violation on EventIDConstraint.
func (r *Repository) Create(ctx context.Context, l *models.WebhookLog) error {
	const q = `INSERT INTO webhook_logs (event_id, service, org_id, status, payload, attempts, error)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING id, created_at`
	return r.db.QueryRow(ctx, q, l.EventID, l.Service, l.OrgID, string(l.Status), []byte(l.Payload), l.Attempts, l.Error).
		Scan(&l.ID, &l.CreatedAt)
}

// Exists reports whether any row has this event_id.
func (r *Repository) Exists(ctx context.Context, eventID string) (bool, error) {
	var exists bool
	err := r.db.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM webhook_logs WHERE event_id = $1)`, eventID).Scan(&exists)
	return exists, err
}

const selectLog = `SELECT id, event_id, service, org_id, status, payload, attempts, error, created_at FROM webhook_logs`

func scanLog(row interface{ Scan(...any) error }) (*models.WebhookLog, error) {
	var l models.WebhookLog
	var status string
	var payload []byte
	err := row.Scan(&l.ID, &l.EventID, &l.Service, &l.OrgID, &status, &payload, &l.Attempts, &l.Error, &l.CreatedAt)
	if database.IsNoRows(err) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	l.Status = models.WebhookStatus(status)
	l.Payload = payload
	return &l, nil
}

// GetByEventID returns the row for an event, or nil.
func (r *Repository) GetByEventID(ctx context.Context, eventID string) (*models.WebhookLog, error) {
	return scanLog(r.db.QueryRow(ctx, selectLog+` WHERE event_id = $1`, eventID))
}

// Latest returns the newest row for service with status, or nil.
func (r *Repository) Latest(ctx context.Context, service string, status models.WebhookStatus) (*models.WebhookLog, error) {
	const where = ` WHERE service = $1 AND status = $2 ORDER BY created_at DESC, id DESC LIMIT 1`
	return scanLog(r.db.QueryRow(ctx, selectLog+where, service, string(status)))
}

// CountByEventID returns how many rows carry event_id. Always 0 or 1.
func (r *Repository) CountByEventID(ctx context.Context, eventID string) (int, error) {
	var n int
	err := r.db.QueryRow(ctx, `SELECT COUNT(*) FROM webhook_logs WHERE event_id = $1`, eventID).Scan(&n)
	return n, err
}
