package organizations

import (
	"context"
	"fmt"
	"strings"

	"github.com/aura-platform/integrations/internal/models"
	"github.com/aura-platform/integrations/pkg/database"
)

// Repository handles organization persistence.
type Repository struct {
	db database.DBTX
}

// NewRepository creates an organizations repository over a pool or a transaction.
func NewRepository(db database.DBTX) *Repository {
	return &Repository{db: db}
}

// Create creates an organization.
func (r *Repository) Create(ctx context.Context, org *models.Organization) error {
	const q = `INSERT INTO organizations (name, slug)
		VALUES ($1, $2)
		RETURNING id, created_at, updated_at`
	return r.db.QueryRow(ctx, q, org.Name, org.Slug).
		Scan(&org.ID, &org.CreatedAt, &org.UpdatedAt)
}

// GetBySlug returns an organization by slug, or nil if none exists.
func (r *Repository) GetBySlug(ctx context.Context, slug string) (*models.Organization, error) {
	const q = `SELECT id, name, slug, created_at, updated_at FROM organizations WHERE slug = $1`
	var org models.Organization
	err := r.db.QueryRow(ctx, q, slug).Scan(&org.ID, &org.Name, &org.Slug, &org.CreatedAt, &org.UpdatedAt)
	if database.IsNoRows(err) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &org, nil
}

// List returns all organizations ordered by slug.
func (r *Repository) List(ctx context.Context) ([]*models.Organization, error) {
	rows, err := r.db.Query(ctx, `SELECT id, name, slug, created_at, updated_at FROM organizations ORDER BY slug`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var list []*models.Organization
	for rows.Next() {
		var o models.Organization
		if err := rows.Scan(&o.ID, &o.Name, &o.Slug, &o.CreatedAt, &o.UpdatedAt); err != nil {
			return nil, err
		}
		list = append(list, &o)
	}
	return list, rows.Err()
}

// ParseSeed turns "slug:Name" into an Organization. A bare slug doubles as the name.
func ParseSeed(entry string) (*models.Organization, error) {
	slug, name, _ := strings.Cut(entry, ":")
	slug, name = strings.TrimSpace(slug), strings.TrimSpace(name)
	if slug == "" {
		return nil, fmt.Errorf("empty organization seed %q", entry)
	}
	if name == "" {
		name = slug
	}
	return &models.Organization{Slug: slug, Name: name}, nil
}
