package adapters

import "time"

const (
	StatusSuccess = "success"
	StatusError   = "error"
)

// BusinessError is a valid upstream answer such as "not found". It is not a Go error.
type BusinessError struct {
	Code      string    `json:"error_code"`
	Message   string    `json:"message"`
	Timestamp time.Time `json:"timestamp"`
}

// Response is either a success carrying Data or an error carrying Error.
type Response[T any] struct {
	Status string         `json:"status"`
	Data   *T             `json:"data,omitempty"`
	Error  *BusinessError `json:"error,omitempty"`
}

// OK reports whether the upstream call returned data.
func (r Response[T]) OK() bool {
	return r.Status == StatusSuccess && r.Data != nil
}

func success[T any](data T) Response[T] {
	return Response[T]{Status: StatusSuccess, Data: &data}
}

func failure[T any](code, message string, now time.Time) Response[T] {
	return Response[T]{Status: StatusError, Error: &BusinessError{Code: code, Message: message, Timestamp: now}}
}
