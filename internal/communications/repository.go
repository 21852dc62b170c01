package communications

import (
	"context"

	"github.com/aura-platform/integrations/internal/models"
	"github.com/aura-platform/integrations/pkg/database"
)

// Repository persists communication logs synced from the messaging service.
type Repository struct {
	db database.DBTX
}

// NewRepository creates a communication log repository over a pool or a transaction.
func NewRepository(db database.DBTX) *Repository {
	return &Repository{db: db}
}

// GetByMessageID returns the log for a message, or nil.
func (r *Repository) GetByMessageID(ctx context.Context, messageID string) (*models.CommunicationLog, error) {
	const q = `SELECT id, message_id, user_id, status, template, delivery_time_ms, created_at, updated_at
		FROM communication_logs WHERE message_id = $1`
	var l models.CommunicationLog
	var status string
	err := r.db.QueryRow(ctx, q, messageID).Scan(&l.ID, &l.MessageID, &l.UserID, &status,
		&l.Template, &l.DeliveryTimeMs, &l.CreatedAt, &l.UpdatedAt)
	if database.IsNoRows(err) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	l.Status = models.CommunicationStatus(status)
	return &l, nil
}

// Create inserts l and fills its id and timestamps.
func (r *Repository) Create(ctx context.Context, l *models.CommunicationLog) error {
	const q = `INSERT INTO communication_logs (message_id, user_id, status, template, delivery_time_ms)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING id, created_at, updated_at`
	return r.db.QueryRow(ctx, q, l.MessageID, l.UserID, string(l.Status), l.Template, l.DeliveryTimeMs).
		Scan(&l.ID, &l.CreatedAt, &l.UpdatedAt)
}

// Update writes l's status, template, delivery time and user link.
func (r *Repository) Update(ctx context.Context, l *models.CommunicationLog) error {
	const q = `UPDATE communication_logs
		SET user_id = $2, status = $3, template = $4, delivery_time_ms = $5, updated_at = clock_timestamp()
		WHERE id = $1
		RETURNING updated_at`
	return r.db.QueryRow(ctx, q, l.ID, l.UserID, string(l.Status), l.Template, l.DeliveryTimeMs).
		Scan(&l.UpdatedAt)
}
