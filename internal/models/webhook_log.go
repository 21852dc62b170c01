package models

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// WebhookStatus is the terminal outcome recorded for an event.
type WebhookStatus string

const (
	WebhookProcessed WebhookStatus = "processed"
	WebhookFailed    WebhookStatus = "failed"
	WebhookSkipped   WebhookStatus = "skipped"
)

// WebhookLog is written once per event_id and never updated.
// CreatedAt is assigned by the database.
type WebhookLog struct {
	ID        uuid.UUID       `json:"id"`
	EventID   string          `json:"event_id"`
	Service   string          `json:"service"`
	OrgID     string          `json:"org_id"`
	Status    WebhookStatus   `json:"status"`
	Payload   json.RawMessage `json:"payload"`
	Attempts  int             `json:"attempts"`
	Error     *string         `json:"error,omitempty"`
	CreatedAt time.Time       `json:"created_at"`
}
