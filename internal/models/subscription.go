package models

import (
	"time"

	"github.com/google/uuid"
)

// SubscriptionStatus values mirror the billing service.
type SubscriptionStatus string

const (
	SubscriptionActive   SubscriptionStatus = "active"
	SubscriptionCanceled SubscriptionStatus = "canceled"
	SubscriptionTrialing SubscriptionStatus = "trialing"
	SubscriptionPastDue  SubscriptionStatus = "past_due"
	SubscriptionFailed   SubscriptionStatus = "failed"
)

// Plan is a billing plan tier.
type Plan string

const (
	PlanBasic        Plan = "basic"
	PlanProfessional Plan = "professional"
	PlanEnterprise   Plan = "enterprise"
)

// BillingCycle is how often a subscription renews.
type BillingCycle string

const (
	BillingMonthly   BillingCycle = "monthly"
	BillingAnnual    BillingCycle = "annual"
	BillingQuarterly BillingCycle = "quarterly"
)

// Subscription is owned by a User and keyed by ExternalSubscriptionID.
type Subscription struct {
	ID                     uuid.UUID          `json:"id"`
	ExternalSubscriptionID string             `json:"external_subscription_id"`
	UserID                 uuid.UUID          `json:"user_id"`
	CustomerID             string             `json:"customer_id"`
	Plan                   Plan               `json:"plan"`
	Status                 SubscriptionStatus `json:"status"`
	BillingCycle           *BillingCycle      `json:"billing_cycle,omitempty"`
	Amount                 *float64           `json:"amount,omitempty"`
	Currency               *string            `json:"currency,omitempty"`
	TrialEnd               *time.Time         `json:"trial_end,omitempty"`
	CreatedAt              time.Time          `json:"created_at"`
	UpdatedAt              time.Time          `json:"updated_at"`
}
