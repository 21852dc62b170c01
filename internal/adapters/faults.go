// Package adapters simulates the upstream identity, billing and messaging
// services. Adapters never touch the local store.
package adapters

import (
	"errors"
	"fmt"
	"math/rand"
	"sync"
	"time"

	"github.com/aura-platform/integrations/internal/events"
)

// TransientError is a retryable upstream failure.
type TransientError struct {
	Service events.Service
	Reason  string
}

func (e *TransientError) Error() string {
	return fmt.Sprintf("%s: %s", e.Service, e.Reason)
}

// IsTransient reports whether err wraps a *TransientError.
func IsTransient(err error) bool {
	var t *TransientError
	return errors.As(err, &t)
}

// FaultInjector decides when a simulated upstream call fails.
// The first `forced` calls per service fail; after that, if random mode is on,
// each call fails on a coin flip. A nil *FaultInjector never fails.
type FaultInjector struct {
	mu     sync.Mutex
	forced int
	random bool
	counts map[events.Service]int
	coin   func() bool
}

// NewFaultInjector creates an injector scoped to its owner (process or test).
func NewFaultInjector(forced int, random bool) *FaultInjector {
	rng := rand.New(rand.NewSource(time.Now().UnixNano()))
	return &FaultInjector{
		forced: forced,
		random: random,
		counts: make(map[events.Service]int),
		coin:   func() bool { return rng.Intn(2) == 0 },
	}
}

// Check returns a *TransientError when this call should fail.
func (f *FaultInjector) Check(service events.Service) error {
	if f == nil {
		return nil
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.counts[service] < f.forced {
		f.counts[service]++
		return &TransientError{Service: service, Reason: "forced simulated failure"}
	}
	if f.random && f.coin() {
		return &TransientError{Service: service, Reason: "random simulated transient failure"}
	}
	return nil
}
