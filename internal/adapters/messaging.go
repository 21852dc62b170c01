package adapters

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/aura-platform/integrations/internal/events"
)

// MissingMessageID makes GetMessage answer MESSAGE_NOT_FOUND.
const MissingMessageID = "msg_invalid_999"

// ExternalMessage is the messaging service's view of a message.
type ExternalMessage struct {
	MessageID   string     `json:"message_id"`
	Status      string     `json:"status"`
	DeliveredAt *time.Time `json:"delivered_at,omitempty"`
}

// Messaging simulates the communication service.
type Messaging struct {
	faults *FaultInjector
	logger *zap.Logger
	now    func() time.Time
}

// NewMessaging creates a messaging adapter.
func NewMessaging(faults *FaultInjector, logger *zap.Logger) *Messaging {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Messaging{faults: faults, logger: logger, now: time.Now}
}

// GetMessage returns the delivery state of the message an event refers to.
func (a *Messaging) GetMessage(ctx context.Context, ev *events.MessagingEvent) (Response[ExternalMessage], error) {
	if err := ctx.Err(); err != nil {
		return Response[ExternalMessage]{}, err
	}
	if err := a.faults.Check(events.ServiceMessaging); err != nil {
		return Response[ExternalMessage]{}, err
	}

	var m ExternalMessage
	switch d := ev.Data.(type) {
	case *events.MessageDelivered:
		m.MessageID, m.Status = d.MessageID, d.Status
		if d.Status == "delivered" {
			at := a.now()
			m.DeliveredAt = &at
		}
	case *events.MessageFailed:
		m.MessageID, m.Status = d.MessageID, "failed"
	case *events.MessageBounced:
		m.MessageID, m.Status = d.MessageID, "bounced"
	}

	if m.MessageID == MissingMessageID {
		a.logger.Info("messaging service: message not found", zap.String("message_id", m.MessageID))
		return failure[ExternalMessage]("MESSAGE_NOT_FOUND", "Message with ID "+m.MessageID+" not found", a.now()), nil
	}
	return success(m), nil
}
