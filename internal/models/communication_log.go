package models

import (
	"time"

	"github.com/google/uuid"
)

// CommunicationStatus is the delivery state of a message.
type CommunicationStatus string

const (
	CommDelivered CommunicationStatus = "delivered"
	CommFailed    CommunicationStatus = "failed"
	CommBounced   CommunicationStatus = "bounced"
	CommPending   CommunicationStatus = "pending"
)

// CommunicationLog records one message. UserID is nil when the recipient is not a known user.
type CommunicationLog struct {
	ID             uuid.UUID           `json:"id"`
	MessageID      string              `json:"message_id"`
	UserID         *uuid.UUID          `json:"user_id,omitempty"`
	Status         CommunicationStatus `json:"status"`
	Template       *string             `json:"template,omitempty"`
	DeliveryTimeMs *int                `json:"delivery_time_ms,omitempty"`
	CreatedAt      time.Time           `json:"created_at"`
	UpdatedAt      time.Time           `json:"updated_at"`
}
