// Package eventstest builds webhook payloads for tests.
package eventstest

import (
	"encoding/json"
	"fmt"
)

// Envelope returns a raw event with the given header fields and data.
func Envelope(eventType, eventID, org string, data map[string]any) []byte {
	body, err := json.Marshal(map[string]any{
		"event_type":      eventType,
		"event_id":        eventID,
		"timestamp":       "2024-02-15T10:30:00Z",
		"organization_id": org,
		"metadata":        map[string]any{"source": "test", "version": "1.0"},
		"data":            data,
	})
	if err != nil {
		panic(fmt.Sprintf("eventstest: marshal envelope: %v", err))
	}
	return body
}

// Batch wraps raw events in {"events": [...]}.
func Batch(items ...[]byte) []byte {
	raws := make([]json.RawMessage, len(items))
	for i, it := range items {
		raws[i] = it
	}
	body, err := json.Marshal(map[string]any{"events": raws})
	if err != nil {
		panic(fmt.Sprintf("eventstest: marshal batch: %v", err))
	}
	return body
}

func UserCreated(eventID, org, userID, email string) []byte {
	return Envelope("user.created", eventID, org, map[string]any{
		"user_id":    userID,
		"email":      email,
		"first_name": "Sarah",
		"last_name":  "Johnson",
		"department": "Engineering",
		"title":      "VP Engineering",
		"status":     "active",
		"hire_date":  "2024-02-15",
	})
}

func UserUpdated(eventID, org, userID string, changes map[string]any) []byte {
	return Envelope("user.updated", eventID, org, map[string]any{
		"user_id": userID,
		"changes": changes,
	})
}

func UserDeleted(eventID, org, userID, email string) []byte {
	return Envelope("user.deleted", eventID, org, map[string]any{
		"user_id":         userID,
		"email":           email,
		"deletion_reason": "terminated",
	})
}

func SubscriptionCreated(eventID, org, subID, customerID string) []byte {
	return Envelope("subscription.created", eventID, org, map[string]any{
		"subscription_id": subID,
		"customer_id":     customerID,
		"plan":            "enterprise",
		"status":          "active",
		"billing_cycle":   "annual",
		"amount":          999.99,
		"currency":        "USD",
		"trial_end":       "2024-03-15T23:59:59Z",
	})
}

func SubscriptionCanceled(eventID, org, subID, customerID string) []byte {
	return Envelope("subscription.canceled", eventID, org, map[string]any{
		"subscription_id": subID,
		"customer_id":     customerID,
		"plan":            "enterprise",
		"status":          "canceled",
		"amount":          999.99,
		"currency":        "USD",
	})
}

func PaymentFailed(eventID, org, subID, customerID string) []byte {
	data := map[string]any{
		"payment_id":      "pay_001",
		"subscription_id": subID,
		"amount":          49.99,
		"currency":        "USD",
		"failure_reason":  "insufficient_funds",
		"failure_code":    "card_declined",
		"attempt_number":  1,
	}
	if customerID != "" {
		data["customer_id"] = customerID
	}
	return Envelope("payment.failed", eventID, org, data)
}

func MessageDelivered(eventID, org, messageID, recipient string) []byte {
	return Envelope("message.delivered", eventID, org, map[string]any{
		"message_id":       messageID,
		"recipient":        recipient,
		"template":         "welcome_email",
		"status":           "delivered",
		"delivery_time_ms": 1250,
		"esp_message_id":   "esp_1",
	})
}

func MessageBounced(eventID, org, messageID, recipient string) []byte {
	return Envelope("message.bounced", eventID, org, map[string]any{
		"message_id":    messageID,
		"recipient":     recipient,
		"template":      "welcome_email",
		"bounce_reason": "mailbox_full",
		"bounce_type":   "soft",
	})
}
