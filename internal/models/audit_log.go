package models

import (
	"time"

	"github.com/google/uuid"
)

// AuditAction names a state-changing operation.
type AuditAction string

const (
	AuditCreatedUser               AuditAction = "created_user"
	AuditUpdatedUser               AuditAction = "updated_user"
	AuditDeletedUser               AuditAction = "deleted_user"
	AuditCreatedOrg                AuditAction = "created_org"
	AuditUpdatedOrg                AuditAction = "updated_org"
	AuditDeletedOrg                AuditAction = "deleted_org"
	AuditCreatedSubscription       AuditAction = "created_subscription"
	AuditUpdatedSubscription       AuditAction = "updated_subscription"
	AuditCanceledSubscription      AuditAction = "canceled_subscription"
	AuditPaymentFailedSubscription AuditAction = "payment_failed_subscription"
	AuditCreatedCommLog            AuditAction = "created_comm_log"
	AuditUpdatedCommLog            AuditAction = "updated_comm_log"
)

// AuditLog is an append-only record of one mutation.
type AuditLog struct {
	ID        uuid.UUID   `json:"id"`
	Action    AuditAction `json:"action"`
	UserID    *uuid.UUID  `json:"user_id,omitempty"`
	OrgID     *uuid.UUID  `json:"org_id,omitempty"`
	CreatedAt time.Time   `json:"created_at"`
}
