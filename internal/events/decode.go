package events

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"
)

var (
	// ErrUnrecognizedShape means the body is neither a single event nor an {"events": [...]} batch.
	ErrUnrecognizedShape = errors.New("payload is neither a single event nor an events batch")
	// ErrEmptyBatch means a batch carried no events.
	ErrEmptyBatch = errors.New("events batch is empty")
)

var validate = validator.New(validator.WithRequiredStructEnabled())

func init() {
	validate.RegisterTagNameFunc(func(f reflect.StructField) string {
		name := strings.SplitN(f.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
}

// FieldError is one validation failure.
type FieldError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

// ValidationError lists everything wrong with one event.
type ValidationError struct {
	EventID string
	Fields  []FieldError
}

func (e *ValidationError) Error() string {
	parts := make([]string, 0, len(e.Fields))
	for _, f := range e.Fields {
		parts = append(parts, f.Field+": "+f.Message)
	}
	return "invalid event: " + strings.Join(parts, "; ")
}

func invalid(eventID, field, msg string) *ValidationError {
	return &ValidationError{EventID: eventID, Fields: []FieldError{{Field: field, Message: msg}}}
}

// wireEvent is the envelope before the data variant is known.
type wireEvent struct {
	Header
	Data json.RawMessage `json:"data"`
}

// Decode parses and validates one event for service. The returned Event is
// one of *IdentityEvent, *BillingEvent or *MessagingEvent.
func Decode(service Service, raw []byte) (Event, error) {
	if _, ok := ParseService(string(service)); !ok {
		return nil, fmt.Errorf("unknown service %q", service)
	}
	var w wireEvent
	if err := json.Unmarshal(raw, &w); err != nil {
		return nil, invalid(EventIDOf(raw), "body", err.Error())
	}
	if err := check(w.EventID, "", &w.Header); err != nil {
		return nil, err
	}
	kind := w.Kind()
	if !service.Accepts(kind) {
		return nil, invalid(w.EventID, "event_type", fmt.Sprintf("%q is not a %s event", w.EventType, service))
	}
	if len(bytes.TrimSpace(w.Data)) == 0 || bytes.Equal(bytes.TrimSpace(w.Data), []byte("null")) {
		return nil, invalid(w.EventID, "data", "is required")
	}
	w.Header.Raw = append(json.RawMessage(nil), raw...)

	switch service {
	case ServiceIdentity:
		data, err := decodeIdentity(kind, w.Data, w.EventID)
		if err != nil {
			return nil, err
		}
		return &IdentityEvent{Header: w.Header, Data: data}, nil
	case ServiceBilling:
		data, err := decodeBilling(kind, w.Data, w.EventID)
		if err != nil {
			return nil, err
		}
		return &BillingEvent{Header: w.Header, Data: data}, nil
	default:
		data, err := decodeMessaging(kind, w.Data, w.EventID)
		if err != nil {
			return nil, err
		}
		return &MessagingEvent{Header: w.Header, Data: data}, nil
	}
}

func decodeIdentity(kind Kind, raw json.RawMessage, eventID string) (IdentityData, error) {
	switch kind {
	case KindUserCreated:
		var d UserCreated
		return &d, decodeData(raw, &d, eventID)
	case KindUserUpdated:
		var d UserUpdated
		return &d, decodeData(raw, &d, eventID)
	default:
		var d UserDeleted
		return &d, decodeData(raw, &d, eventID)
	}
}

func decodeBilling(kind Kind, raw json.RawMessage, eventID string) (BillingData, error) {
	if kind == KindPaymentFailed {
		var d PaymentFailed
		return &d, decodeData(raw, &d, eventID)
	}
	var d SubscriptionChanged
	return &d, decodeData(raw, &d, eventID)
}

func decodeMessaging(kind Kind, raw json.RawMessage, eventID string) (MessagingData, error) {
	switch kind {
	case KindMessageDelivered:
		var d MessageDelivered
		return &d, decodeData(raw, &d, eventID)
	case KindMessageFailed:
		var d MessageFailed
		return &d, decodeData(raw, &d, eventID)
	default:
		var d MessageBounced
		return &d, decodeData(raw, &d, eventID)
	}
}

func decodeData(raw json.RawMessage, dst any, eventID string) error {
	if err := json.Unmarshal(raw, dst); err != nil {
		return invalid(eventID, "data", err.Error())
	}
	return check(eventID, "data.", dst)
}

func check(eventID, prefix string, v any) error {
	err := validate.Struct(v)
	if err == nil {
		return nil
	}
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return invalid(eventID, strings.TrimSuffix(prefix, "."), err.Error())
	}
	out := &ValidationError{EventID: eventID}
	for _, fe := range verrs {
		out.Fields = append(out.Fields, FieldError{Field: prefix + fieldPath(fe), Message: describe(fe)})
	}
	return out
}

// fieldPath drops the top-level struct name from the namespace: "UserUpdated.changes.email" -> "changes.email".
func fieldPath(fe validator.FieldError) string {
	ns := fe.Namespace()
	if i := strings.IndexByte(ns, '.'); i >= 0 {
		return ns[i+1:]
	}
	return fe.Field()
}

func describe(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return "is required"
	case "email":
		return "must be a valid email"
	case "oneof":
		return "must be one of [" + fe.Param() + "]"
	case "len":
		return "must be " + fe.Param() + " characters"
	case "gte":
		return "must be >= " + fe.Param()
	case "max":
		return "must be at most " + fe.Param() + " characters"
	}
	return "failed " + fe.Tag()
}

// Item is one element of a submission, decoded independently of the others.
type Item struct {
	Index int
	Raw   json.RawMessage
	Event Event
	Err   error
}

// Submission is a parsed request body.
type Submission struct {
	Batch bool
	Items []Item
}

// Valid returns the items that decoded cleanly.
func (s Submission) Valid() []Item {
	var out []Item
	for _, it := range s.Items {
		if it.Err == nil {
			out = append(out, it)
		}
	}
	return out
}

// Invalid returns the items that failed to decode.
func (s Submission) Invalid() []Item {
	var out []Item
	for _, it := range s.Items {
		if it.Err != nil {
			out = append(out, it)
		}
	}
	return out
}

// ParseSubmission detects a single event or an {"events": [...]} batch and
// decodes every element on its own, so one bad element does not poison the rest.
func ParseSubmission(service Service, body []byte) (Submission, error) {
	var shape map[string]json.RawMessage
	if err := json.Unmarshal(body, &shape); err != nil {
		return Submission{}, ErrUnrecognizedShape
	}
	rawEvents, isBatch := shape["events"]
	if !isBatch {
		if _, ok := shape["event_id"]; !ok {
			if _, ok := shape["event_type"]; !ok {
				return Submission{}, ErrUnrecognizedShape
			}
		}
		ev, err := Decode(service, body)
		return Submission{Items: []Item{{Index: 0, Raw: body, Event: ev, Err: err}}}, nil
	}

	var elems []json.RawMessage
	if err := json.Unmarshal(rawEvents, &elems); err != nil {
		return Submission{}, ErrUnrecognizedShape
	}
	if len(elems) == 0 {
		return Submission{}, ErrEmptyBatch
	}
	sub := Submission{Batch: true, Items: make([]Item, 0, len(elems))}
	for i, raw := range elems {
		ev, err := Decode(service, raw)
		sub.Items = append(sub.Items, Item{Index: i, Raw: raw, Event: ev, Err: err})
	}
	return sub, nil
}

// EventIDOf extracts event_id from a raw event without validating it.
func EventIDOf(raw []byte) string {
	var h struct {
		EventID string `json:"event_id"`
	}
	_ = json.Unmarshal(raw, &h)
	return h.EventID
}
