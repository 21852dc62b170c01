package adapters

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/aura-platform/integrations/internal/events"
)

const (
	// MissingSubscriptionID makes GetSubscription answer SUBSCRIPTION_NOT_FOUND.
	MissingSubscriptionID = "sub_invalid_999"

	referenceCustomerID    = "cust_67890"
	referencePaymentMethod = "card_ending_1234"
)

var (
	referencePeriodStart = time.Date(2024, 2, 1, 0, 0, 0, 0, time.UTC)
	referencePeriodEnd   = time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)
)

// ExternalSubscription is the billing service's view of a subscription.
type ExternalSubscription struct {
	SubscriptionID     string     `json:"subscription_id"`
	CustomerID         string     `json:"customer_id"`
	Plan               string     `json:"plan"`
	Status             string     `json:"status"`
	BillingCycle       string     `json:"billing_cycle,omitempty"`
	Amount             *float64   `json:"amount,omitempty"`
	Currency           string     `json:"currency"`
	TrialEnd           *time.Time `json:"trial_end,omitempty"`
	CurrentPeriodStart time.Time  `json:"current_period_start"`
	CurrentPeriodEnd   time.Time  `json:"current_period_end"`
	PaymentMethod      string     `json:"payment_method"`
}

// Billing simulates the payment service.
type Billing struct {
	faults *FaultInjector
	logger *zap.Logger
	now    func() time.Time
}

// NewBilling creates a billing adapter.
func NewBilling(faults *FaultInjector, logger *zap.Logger) *Billing {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Billing{faults: faults, logger: logger, now: time.Now}
}

// GetSubscription returns the authoritative subscription an event refers to.
// Payment failures that omit customer_id resolve to the reference customer.
func (a *Billing) GetSubscription(ctx context.Context, ev *events.BillingEvent) (Response[ExternalSubscription], error) {
	if err := ctx.Err(); err != nil {
		return Response[ExternalSubscription]{}, err
	}
	if err := a.faults.Check(events.ServiceBilling); err != nil {
		return Response[ExternalSubscription]{}, err
	}

	s := ExternalSubscription{
		CustomerID:         referenceCustomerID,
		CurrentPeriodStart: referencePeriodStart,
		CurrentPeriodEnd:   referencePeriodEnd,
		PaymentMethod:      referencePaymentMethod,
	}
	switch d := ev.Data.(type) {
	case *events.SubscriptionChanged:
		s.SubscriptionID, s.CustomerID, s.Plan, s.Status = d.SubscriptionID, d.CustomerID, d.Plan, d.Status
		s.BillingCycle, s.Amount, s.Currency, s.TrialEnd = d.BillingCycle, d.Amount, d.Currency, d.TrialEnd
	case *events.PaymentFailed:
		s.SubscriptionID, s.Status, s.Amount, s.Currency = d.SubscriptionID, "failed", d.Amount, d.Currency
		if d.CustomerID != "" {
			s.CustomerID = d.CustomerID
		}
	}

	if s.SubscriptionID == MissingSubscriptionID {
		a.logger.Info("billing service: subscription not found", zap.String("subscription_id", s.SubscriptionID))
		return failure[ExternalSubscription]("SUBSCRIPTION_NOT_FOUND", "Subscription with ID "+s.SubscriptionID+" not found", a.now()), nil
	}
	return success(s), nil
}
