// Package audit stores the append-only record of state changes.
package audit

import (
	"context"

	"github.com/google/uuid"

	"github.com/aura-platform/integrations/internal/models"
	"github.com/aura-platform/integrations/pkg/database"
)

// Repository appends and reads audit rows. There is no update or delete.
type Repository struct {
	db database.DBTX
}

// NewRepository creates an audit repository over a pool or a transaction.
func NewRepository(db database.DBTX) *Repository {
	return &Repository{db: db}
}

// Log appends one audit row. userID and orgID may be nil.
func (r *Repository) Log(ctx context.Context, action models.AuditAction, userID, orgID *uuid.UUID) error {
	const q = `INSERT INTO audit_logs (action, user_id, org_id) VALUES ($1, $2, $3)`
	_, err := r.db.Exec(ctx, q, string(action), userID, orgID)
	return err
}

// ListByOrg returns the newest audit rows for an organization.
func (r *Repository) ListByOrg(ctx context.Context, orgID uuid.UUID, limit int) ([]models.AuditLog, error) {
	if limit <= 0 || limit > 500 {
		limit = 100
	}
	const q = `SELECT id, action, user_id, org_id, created_at FROM audit_logs
		WHERE org_id = $1 ORDER BY created_at DESC LIMIT $2`
	rows, err := r.db.Query(ctx, q, orgID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var list []models.AuditLog
	for rows.Next() {
		var a models.AuditLog
		var action string
		if err := rows.Scan(&a.ID, &action, &a.UserID, &a.OrgID, &a.CreatedAt); err != nil {
			return nil, err
		}
		a.Action = models.AuditAction(action)
		list = append(list, a)
	}
	return list, rows.Err()
}
