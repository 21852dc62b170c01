package syncengine

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/aura-platform/integrations/internal/adapters"
	"github.com/aura-platform/integrations/internal/events"
	"github.com/aura-platform/integrations/internal/models"
)

// SyncBilling upserts, cancels or fails the local subscription for ext.
// The owning user is the one whose external_id equals ext.CustomerID.
func (e *Engine) SyncBilling(ctx context.Context, st Store, ev *events.BillingEvent, ext *adapters.ExternalSubscription) (Result, error) {
	org, err := st.OrganizationBySlug(ctx, ev.OrganizationID)
	if err != nil {
		return Result{}, fmt.Errorf("lookup organization: %w", err)
	}
	if org == nil {
		return e.skip(ev.EventID, "organization not found", zap.String("organization_id", ev.OrganizationID)), nil
	}
	user, err := st.UserByExternalID(ctx, ext.CustomerID)
	if err != nil {
		return Result{}, fmt.Errorf("lookup customer: %w", err)
	}
	if user == nil {
		return e.skip(ev.EventID, "customer not found", zap.String("customer_id", ext.CustomerID)), nil
	}

	sub, err := st.SubscriptionByExternalID(ctx, ext.SubscriptionID)
	if err != nil {
		return Result{}, fmt.Errorf("lookup subscription: %w", err)
	}

	var action models.AuditAction
	switch ev.Kind() {
	case events.KindSubscriptionCreated, events.KindSubscriptionUpdated:
		if sub != nil {
			applySubscription(sub, ext)
			if err := st.UpdateSubscription(ctx, sub); err != nil {
				return Result{}, fmt.Errorf("update subscription: %w", err)
			}
			action = models.AuditUpdatedSubscription
			break
		}
		sub = &models.Subscription{
			ExternalSubscriptionID: ext.SubscriptionID,
			UserID:                 user.ID,
			CustomerID:             ext.CustomerID,
			Plan:                   models.Plan(ext.Plan),
			Status:                 models.SubscriptionStatus(ext.Status),
			Amount:                 ext.Amount,
			TrialEnd:               ext.TrialEnd,
		}
		if ext.BillingCycle != "" {
			sub.BillingCycle = ptr(models.BillingCycle(ext.BillingCycle))
		}
		if ext.Currency != "" {
			sub.Currency = ptr(ext.Currency)
		}
		if err := st.CreateSubscription(ctx, sub); err != nil {
			return Result{}, fmt.Errorf("create subscription: %w", err)
		}
		action = models.AuditCreatedSubscription

	case events.KindSubscriptionCanceled:
		if sub == nil {
			return e.skip(ev.EventID, "subscription not found", zap.String("subscription_id", ext.SubscriptionID)), nil
		}
		applySubscription(sub, ext)
		sub.Status = models.SubscriptionCanceled
		if err := st.UpdateSubscription(ctx, sub); err != nil {
			return Result{}, fmt.Errorf("cancel subscription: %w", err)
		}
		action = models.AuditCanceledSubscription

	case events.KindPaymentFailed:
		if sub == nil {
			return e.skip(ev.EventID, "subscription not found", zap.String("subscription_id", ext.SubscriptionID)), nil
		}
		sub.Status = models.SubscriptionFailed
		if err := st.UpdateSubscription(ctx, sub); err != nil {
			return Result{}, fmt.Errorf("fail subscription: %w", err)
		}
		action = models.AuditPaymentFailedSubscription

	default:
		return e.skip(ev.EventID, "unhandled event type", zap.String("event_type", ev.EventType)), nil
	}

	if err := st.Audit(ctx, action, &user.ID, &org.ID); err != nil {
		return Result{}, fmt.Errorf("audit %s: %w", action, err)
	}
	e.logger.Info("subscription synced", zap.String("event_id", ev.EventID), zap.String("subscription_id", ext.SubscriptionID), zap.String("action", string(action)))
	return applied(action), nil
}

func applySubscription(s *models.Subscription, ext *adapters.ExternalSubscription) {
	s.Plan = models.Plan(prefer(ext.Plan, string(s.Plan)))
	s.Status = models.SubscriptionStatus(prefer(ext.Status, string(s.Status)))
	s.CustomerID = prefer(ext.CustomerID, s.CustomerID)
	if ext.Amount != nil && *ext.Amount != 0 {
		s.Amount = ext.Amount
	}
	if ext.Currency != "" {
		s.Currency = ptr(ext.Currency)
	}
	if ext.BillingCycle != "" {
		s.BillingCycle = ptr(models.BillingCycle(ext.BillingCycle))
	}
	if ext.TrialEnd != nil {
		s.TrialEnd = ext.TrialEnd
	}
}
