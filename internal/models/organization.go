package models

import (
	"time"

	"github.com/google/uuid"
)

// Organization represents a tenant. Events reference it by Slug.
type Organization struct {
	ID        uuid.UUID `json:"id"`
	Name      string    `json:"name"`
	Slug      string    `json:"slug"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}
