package models

import (
	"time"

	"github.com/google/uuid"
)

// UserStatus is the lifecycle state of a synced user.
type UserStatus string

const (
	UserStatusActive    UserStatus = "active"
	UserStatusInactive  UserStatus = "inactive"
	UserStatusPending   UserStatus = "pending"
	UserStatusSuspended UserStatus = "suspended"
)

// Valid reports whether s is a known user status.
func (s UserStatus) Valid() bool {
	switch s {
	case UserStatusActive, UserStatusInactive, UserStatusPending, UserStatusSuspended:
		return true
	}
	return false
}

// User is the local copy of an identity-service user.
type User struct {
	ID         uuid.UUID  `json:"id"`
	ExternalID *string    `json:"external_id,omitempty"`
	Email      string     `json:"email"`
	FirstName  string     `json:"first_name"`
	LastName   string     `json:"last_name"`
	Department string     `json:"department"`
	Title      string     `json:"title"`
	Status     UserStatus `json:"status"`
	OrgID      uuid.UUID  `json:"org_id"`
	CreatedAt  time.Time  `json:"created_at"`
	UpdatedAt  time.Time  `json:"updated_at"`
}
