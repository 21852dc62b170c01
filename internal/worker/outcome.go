package worker

import (
	"time"

	"github.com/aura-platform/integrations/internal/models"
)

// Outcome is the result of one processing attempt. The worker loop decides what
// happens to the task based on its concrete type.
type Outcome interface {
	// Name is the metrics and feed label for the outcome.
	Name() string
	isOutcome()
}

// Completed means the attempt committed a log row with Status.
type Completed struct {
	Status models.WebhookStatus
}

// Duplicate means the event was already logged, by an earlier delivery or a concurrent worker.
type Duplicate struct{}

// Discarded means the task can never be processed. No log row is written.
type Discarded struct {
	Reason string
}

// Retry means the attempt failed and the task should run again after Delay.
type Retry struct {
	Delay time.Duration
	Err   error
}

// DeadLetter means retries are exhausted and a failed log row was written.
type DeadLetter struct {
	Err error
}

func (Completed) Name() string  { return "completed" }
func (Duplicate) Name() string  { return "duplicate" }
func (Discarded) Name() string  { return "discarded" }
func (Retry) Name() string      { return "retry" }
func (DeadLetter) Name() string { return "dead_letter" }

func (Completed) isOutcome()  {}
func (Duplicate) isOutcome()  {}
func (Discarded) isOutcome()  {}
func (Retry) isOutcome()      {}
func (DeadLetter) isOutcome() {}
