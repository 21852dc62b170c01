package syncengine

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/aura-platform/integrations/internal/adapters"
	"github.com/aura-platform/integrations/internal/events"
	"github.com/aura-platform/integrations/internal/models"
)

type messageFields struct {
	recipient    string
	template     string
	status       string
	deliveryTime *int
}

func fieldsOf(d events.MessagingData) messageFields {
	switch d := d.(type) {
	case *events.MessageDelivered:
		return messageFields{recipient: d.Recipient, template: d.Template, status: d.Status, deliveryTime: d.DeliveryTimeMs}
	case *events.MessageFailed:
		return messageFields{recipient: d.Recipient, template: d.Template, status: string(models.CommFailed)}
	case *events.MessageBounced:
		return messageFields{recipient: d.Recipient, template: d.Template, status: string(models.CommBounced)}
	}
	return messageFields{}
}

// SyncMessaging upserts the communication log for ext. A recipient that is not
// a known user is logged without a user link.
func (e *Engine) SyncMessaging(ctx context.Context, st Store, ev *events.MessagingEvent, ext *adapters.ExternalMessage) (Result, error) {
	org, err := st.OrganizationBySlug(ctx, ev.OrganizationID)
	if err != nil {
		return Result{}, fmt.Errorf("lookup organization: %w", err)
	}
	if org == nil {
		return e.skip(ev.EventID, "organization not found", zap.String("organization_id", ev.OrganizationID)), nil
	}

	f := fieldsOf(ev.Data)
	var userID *uuid.UUID
	user, err := st.UserByEmail(ctx, f.recipient)
	if err != nil {
		return Result{}, fmt.Errorf("lookup recipient: %w", err)
	}
	if user != nil {
		userID = &user.ID
	} else {
		e.logger.Info("recipient is not a known user, logging without user link",
			zap.String("event_id", ev.EventID), zap.String("recipient", f.recipient))
	}

	status := models.CommunicationStatus(prefer(ext.Status, f.status))
	existing, err := st.CommunicationLogByMessageID(ctx, ext.MessageID)
	if err != nil {
		return Result{}, fmt.Errorf("lookup communication log: %w", err)
	}

	var action models.AuditAction
	if existing != nil {
		existing.Status = status
		if f.template != "" {
			existing.Template = ptr(f.template)
		}
		if f.deliveryTime != nil {
			existing.DeliveryTimeMs = f.deliveryTime
		}
		if userID != nil {
			existing.UserID = userID
		}
		if err := st.UpdateCommunicationLog(ctx, existing); err != nil {
			return Result{}, fmt.Errorf("update communication log: %w", err)
		}
		action = models.AuditUpdatedCommLog
	} else {
		l := &models.CommunicationLog{
			MessageID:      ext.MessageID,
			UserID:         userID,
			Status:         status,
			DeliveryTimeMs: f.deliveryTime,
		}
		if f.template != "" {
			l.Template = ptr(f.template)
		}
		if err := st.CreateCommunicationLog(ctx, l); err != nil {
			return Result{}, fmt.Errorf("create communication log: %w", err)
		}
		action = models.AuditCreatedCommLog
	}

	if err := st.Audit(ctx, action, userID, &org.ID); err != nil {
		return Result{}, fmt.Errorf("audit %s: %w", action, err)
	}
	e.logger.Info("communication log synced", zap.String("event_id", ev.EventID), zap.String("message_id", ext.MessageID), zap.String("action", string(action)))
	return applied(action), nil
}
