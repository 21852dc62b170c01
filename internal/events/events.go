// Package events models inbound webhook envelopes as a closed set of
// per-service event types.
package events

import (
	"encoding/json"
	"time"
)

// Service identifies the upstream system an event came from.
type Service string

const (
	ServiceIdentity  Service = "user_service"
	ServiceBilling   Service = "payment_service"
	ServiceMessaging Service = "communication_service"
)

// Services lists every known service in a stable order.
var Services = []Service{ServiceIdentity, ServiceBilling, ServiceMessaging}

// ParseService maps a service tag to a Service.
func ParseService(s string) (Service, bool) {
	switch Service(s) {
	case ServiceIdentity, ServiceBilling, ServiceMessaging:
		return Service(s), true
	}
	return "", false
}

// Kind is the semantic event type carried in event_type.
type Kind string

const (
	KindUserCreated Kind = "user.created"
	KindUserUpdated Kind = "user.updated"
	KindUserDeleted Kind = "user.deleted"

	KindSubscriptionCreated  Kind = "subscription.created"
	KindSubscriptionUpdated  Kind = "subscription.updated"
	KindSubscriptionCanceled Kind = "subscription.canceled"
	KindPaymentFailed        Kind = "payment.failed"

	KindMessageDelivered Kind = "message.delivered"
	KindMessageFailed    Kind = "message.failed"
	KindMessageBounced   Kind = "message.bounced"
)

var serviceKinds = map[Service][]Kind{
	ServiceIdentity:  {KindUserCreated, KindUserUpdated, KindUserDeleted},
	ServiceBilling:   {KindSubscriptionCreated, KindSubscriptionUpdated, KindSubscriptionCanceled, KindPaymentFailed},
	ServiceMessaging: {KindMessageDelivered, KindMessageFailed, KindMessageBounced},
}

// Kinds returns the event kinds s accepts.
func (s Service) Kinds() []Kind {
	return serviceKinds[s]
}

// Accepts reports whether k belongs to s.
func (s Service) Accepts(k Kind) bool {
	for _, known := range serviceKinds[s] {
		if known == k {
			return true
		}
	}
	return false
}

// Header is the envelope shared by every event.
type Header struct {
	EventType      string         `json:"event_type" validate:"required"`
	EventID        string         `json:"event_id" validate:"required,max=255"`
	Timestamp      time.Time      `json:"timestamp" validate:"required"`
	OrganizationID string         `json:"organization_id" validate:"required,max=255"`
	Metadata       map[string]any `json:"metadata,omitempty"`

	// Raw is the event exactly as received; it becomes the log payload snapshot.
	Raw json.RawMessage `json:"-"`
}

// Kind returns the event's semantic type.
func (h *Header) Kind() Kind { return Kind(h.EventType) }

// Event is implemented only by IdentityEvent, BillingEvent and MessagingEvent.
type Event interface {
	Envelope() *Header
	Service() Service
	isEvent()
}

// IdentityEvent is a user_service event.
type IdentityEvent struct {
	Header
	Data IdentityData
}

// BillingEvent is a payment_service event.
type BillingEvent struct {
	Header
	Data BillingData
}

// MessagingEvent is a communication_service event.
type MessagingEvent struct {
	Header
	Data MessagingData
}

func (e *IdentityEvent) Envelope() *Header  { return &e.Header }
func (e *BillingEvent) Envelope() *Header   { return &e.Header }
func (e *MessagingEvent) Envelope() *Header { return &e.Header }

func (e *IdentityEvent) Service() Service  { return ServiceIdentity }
func (e *BillingEvent) Service() Service   { return ServiceBilling }
func (e *MessagingEvent) Service() Service { return ServiceMessaging }

func (*IdentityEvent) isEvent()  {}
func (*BillingEvent) isEvent()   {}
func (*MessagingEvent) isEvent() {}
