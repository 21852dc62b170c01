package syncengine

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/aura-platform/integrations/internal/adapters"
	"github.com/aura-platform/integrations/internal/events"
	"github.com/aura-platform/integrations/internal/models"
)

// SyncIdentity creates, updates or deactivates the local user for ext.
func (e *Engine) SyncIdentity(ctx context.Context, st Store, ev *events.IdentityEvent, ext *adapters.ExternalUser) (Result, error) {
	org, err := st.OrganizationBySlug(ctx, ev.OrganizationID)
	if err != nil {
		return Result{}, fmt.Errorf("lookup organization: %w", err)
	}
	if org == nil {
		return e.skip(ev.EventID, "organization not found", zap.String("organization_id", ev.OrganizationID)), nil
	}

	user, err := st.UserByExternalID(ctx, ext.UserID)
	if err != nil {
		return Result{}, fmt.Errorf("lookup user: %w", err)
	}

	var action models.AuditAction
	switch ev.Kind() {
	case events.KindUserCreated:
		if user != nil {
			applyUser(user, ext)
			if err := st.UpdateUser(ctx, user); err != nil {
				return Result{}, fmt.Errorf("update user: %w", err)
			}
			action = models.AuditUpdatedUser
			break
		}
		user = &models.User{
			ExternalID: ptr(ext.UserID),
			Email:      ext.Email,
			FirstName:  ext.FirstName,
			LastName:   ext.LastName,
			Department: ext.Department,
			Title:      ext.Title,
			Status:     models.UserStatusPending,
			OrgID:      org.ID,
		}
		if err := st.CreateUser(ctx, user); err != nil {
			return Result{}, fmt.Errorf("create user: %w", err)
		}
		action = models.AuditCreatedUser

	case events.KindUserUpdated:
		if user == nil {
			return e.skip(ev.EventID, "user not found", zap.String("user_id", ext.UserID)), nil
		}
		applyUser(user, ext)
		if err := st.UpdateUser(ctx, user); err != nil {
			return Result{}, fmt.Errorf("update user: %w", err)
		}
		action = models.AuditUpdatedUser

	case events.KindUserDeleted:
		if user == nil {
			return e.skip(ev.EventID, "user not found", zap.String("user_id", ext.UserID)), nil
		}
		user.Status = models.UserStatusInactive
		if err := st.UpdateUser(ctx, user); err != nil {
			return Result{}, fmt.Errorf("deactivate user: %w", err)
		}
		action = models.AuditDeletedUser

	default:
		return e.skip(ev.EventID, "unhandled event type", zap.String("event_type", ev.EventType)), nil
	}

	if err := st.Audit(ctx, action, &user.ID, &org.ID); err != nil {
		return Result{}, fmt.Errorf("audit %s: %w", action, err)
	}
	e.logger.Info("user synced", zap.String("event_id", ev.EventID), zap.String("user_id", ext.UserID), zap.String("action", string(action)))
	return applied(action), nil
}

func applyUser(u *models.User, ext *adapters.ExternalUser) {
	u.Email = prefer(ext.Email, u.Email)
	u.FirstName = prefer(ext.FirstName, u.FirstName)
	u.LastName = prefer(ext.LastName, u.LastName)
	u.Department = prefer(ext.Department, u.Department)
	u.Title = prefer(ext.Title, u.Title)
	if s := models.UserStatus(ext.Status); s.Valid() {
		u.Status = s
	}
}
