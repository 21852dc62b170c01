package events

import (
	"encoding/json"
	"fmt"
	"time"
)

// Date accepts either a calendar date (2006-01-02) or an RFC 3339 timestamp.
type Date struct {
	time.Time
}

const dateLayout = "2006-01-02"

func (d *Date) UnmarshalJSON(b []byte) error {
	var s string
	if err := json.Unmarshal(b, &s); err != nil {
		return fmt.Errorf("date must be a string: %w", err)
	}
	if t, err := time.Parse(dateLayout, s); err == nil {
		d.Time = t
		return nil
	}
	t, err := time.Parse(time.RFC3339, s)
	if err != nil {
		return fmt.Errorf("date %q is neither %s nor RFC 3339", s, dateLayout)
	}
	d.Time = t
	return nil
}

func (d Date) MarshalJSON() ([]byte, error) {
	return json.Marshal(d.Format(dateLayout))
}

// IdentityData is one of *UserCreated, *UserUpdated, *UserDeleted.
type IdentityData interface{ identityData() }

// BillingData is one of *SubscriptionChanged, *PaymentFailed.
type BillingData interface{ billingData() }

// MessagingData is one of *MessageDelivered, *MessageFailed, *MessageBounced.
type MessagingData interface{ messagingData() }

type UserCreated struct {
	UserID     string     `json:"user_id" validate:"required"`
	Email      string     `json:"email" validate:"required,email"`
	FirstName  string     `json:"first_name" validate:"required"`
	LastName   string     `json:"last_name" validate:"required"`
	Department string     `json:"department,omitempty"`
	Title      string     `json:"title,omitempty"`
	Status     string     `json:"status" validate:"required,oneof=active inactive pending suspended"`
	HireDate   *Date      `json:"hire_date,omitempty"`
}

// UserChanges holds the fields a user.updated event may change. Empty means unchanged.
type UserChanges struct {
	Email      string `json:"email,omitempty" validate:"omitempty,email"`
	FirstName  string `json:"first_name,omitempty"`
	LastName   string `json:"last_name,omitempty"`
	Department string `json:"department,omitempty"`
	Title      string `json:"title,omitempty"`
	Status     string `json:"status,omitempty" validate:"omitempty,oneof=active inactive pending suspended"`
	ManagerID  string `json:"manager_id,omitempty"`
}

type UserPreviousValues struct {
	Department string `json:"department,omitempty"`
	Title      string `json:"title,omitempty"`
}

type UserUpdated struct {
	UserID         string              `json:"user_id" validate:"required"`
	Changes        UserChanges         `json:"changes"`
	PreviousValues *UserPreviousValues `json:"previous_values,omitempty"`
}

type UserDeleted struct {
	UserID              string     `json:"user_id" validate:"required"`
	Email               string     `json:"email" validate:"required,email"`
	DeletionReason      string     `json:"deletion_reason" validate:"required"`
	TerminationDate     *Date      `json:"termination_date,omitempty"`
	DataRetentionPolicy string     `json:"data_retention_policy,omitempty"`
}

// SubscriptionChanged carries subscription.created, .updated and .canceled.
type SubscriptionChanged struct {
	SubscriptionID string     `json:"subscription_id" validate:"required"`
	CustomerID     string     `json:"customer_id" validate:"required"`
	Plan           string     `json:"plan" validate:"required,oneof=basic professional enterprise"`
	Status         string     `json:"status" validate:"required,oneof=active canceled trialing past_due failed"`
	BillingCycle   string     `json:"billing_cycle,omitempty" validate:"omitempty,oneof=monthly annual quarterly"`
	Amount         *float64   `json:"amount" validate:"required,gte=0"`
	Currency       string     `json:"currency" validate:"required,len=3"`
	TrialEnd       *time.Time `json:"trial_end,omitempty"`
}

type PaymentFailed struct {
	PaymentID      string     `json:"payment_id" validate:"required"`
	SubscriptionID string     `json:"subscription_id" validate:"required"`
	CustomerID     string     `json:"customer_id,omitempty"`
	Amount         *float64   `json:"amount" validate:"required,gte=0"`
	Currency       string     `json:"currency" validate:"required,len=3"`
	FailureReason  string     `json:"failure_reason" validate:"required"`
	FailureCode    string     `json:"failure_code,omitempty"`
	RetryAt        *time.Time `json:"retry_at,omitempty"`
	AttemptNumber  *int       `json:"attempt_number,omitempty" validate:"omitempty,gte=1"`
}

type MessageDelivered struct {
	MessageID      string `json:"message_id" validate:"required"`
	Recipient      string `json:"recipient" validate:"required,email"`
	Template       string `json:"template" validate:"required"`
	Status         string `json:"status" validate:"required,oneof=delivered failed bounced pending"`
	DeliveryTimeMs *int   `json:"delivery_time_ms,omitempty" validate:"omitempty,gte=0"`
	ESPMessageID   string `json:"esp_message_id,omitempty"`
}

type MessageFailed struct {
	MessageID     string `json:"message_id" validate:"required"`
	Recipient     string `json:"recipient" validate:"required,email"`
	Template      string `json:"template" validate:"required"`
	FailureReason string `json:"failure_reason" validate:"required"`
}

type MessageBounced struct {
	MessageID     string `json:"message_id" validate:"required"`
	Recipient     string `json:"recipient" validate:"required,email"`
	Template      string `json:"template" validate:"required"`
	BounceReason  string `json:"bounce_reason" validate:"required"`
	BounceType    string `json:"bounce_type" validate:"required"`
	ESPBounceCode string `json:"esp_bounce_code,omitempty"`
}

func (*UserCreated) identityData() {}
func (*UserUpdated) identityData() {}
func (*UserDeleted) identityData() {}

func (*SubscriptionChanged) billingData() {}
func (*PaymentFailed) billingData()       {}

func (*MessageDelivered) messagingData() {}
func (*MessageFailed) messagingData()    {}
func (*MessageBounced) messagingData()   {}
