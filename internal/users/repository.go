package users

import (
	"context"

	"github.com/google/uuid"

	"github.com/aura-platform/integrations/internal/models"
	"github.com/aura-platform/integrations/pkg/database"
)

// Repository persists users synced from the identity service.
type Repository struct {
	db database.DBTX
}

// NewRepository creates a users repository over a pool or a transaction.
func NewRepository(db database.DBTX) *Repository {
	return &Repository{db: db}
}

const selectUser = `SELECT id, external_id, email, first_name, last_name, department, title, status, org_id, created_at, updated_at FROM users`

func scanUser(row interface{ Scan(...any) error }) (*models.User, error) {
	var u models.User
	var status string
	err := row.Scan(&u.ID, &u.ExternalID, &u.Email, &u.FirstName, &u.LastName,
		&u.Department, &u.Title, &status, &u.OrgID, &u.CreatedAt, &u.UpdatedAt)
	if database.IsNoRows(err) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	u.Status = models.UserStatus(status)
	return &u, nil
}

// GetByExternalID returns the user with this identity-service id, or nil.
func (r *Repository) GetByExternalID(ctx context.Context, externalID string) (*models.User, error) {
	return scanUser(r.db.QueryRow(ctx, selectUser+` WHERE external_id = $1`, externalID))
}

// GetByEmail returns the user with this email, or nil.
func (r *Repository) GetByEmail(ctx context.Context, email string) (*models.User, error) {
	return scanUser(r.db.QueryRow(ctx, selectUser+` WHERE email = $1`, email))
}

// Create inserts u and fills its id and timestamps.
func (r *Repository) Create(ctx context.Context, u *models.User) error {
	const q = `INSERT INTO users (external_id, email, first_name, last_name, department, title, status, org_id)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		RETURNING id, created_at, updated_at`
	return r.db.QueryRow(ctx, q, u.ExternalID, u.Email, u.FirstName, u.LastName,
		u.Department, u.Title, string(u.Status), u.OrgID).
		Scan(&u.ID, &u.CreatedAt, &u.UpdatedAt)
}

// Update writes u's mutable fields.
func (r *Repository) Update(ctx context.Context, u *models.User) error {
	const q = `UPDATE users
		SET email = $2, first_name = $3, last_name = $4, department = $5, title = $6, status = $7,
		    updated_at = clock_timestamp()
		WHERE id = $1
		RETURNING updated_at`
	return r.db.QueryRow(ctx, q, u.ID, u.Email, u.FirstName, u.LastName,
		u.Department, u.Title, string(u.Status)).Scan(&u.UpdatedAt)
}

// CountByOrg returns how many users belong to an organization.
func (r *Repository) CountByOrg(ctx context.Context, orgID uuid.UUID) (int, error) {
	var n int
	err := r.db.QueryRow(ctx, `SELECT COUNT(*) FROM users WHERE org_id = $1`, orgID).Scan(&n)
	return n, err
}
