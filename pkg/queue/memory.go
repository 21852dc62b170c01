package queue

import (
	"context"
	"sort"
	"sync"
	"time"
)

type delayed struct {
	task Task
	due  time.Time
}

// Memory is an in-process queue with the same semantics as Queue. Tests use it in place of Redis.
type Memory struct {
	mu      sync.Mutex
	ready   []Task
	delayed []delayed
	dead    []Task
	signal  chan struct{}
	now     func() time.Time
}

// NewMemory creates an empty in-process queue.
func NewMemory() *Memory {
	return &Memory{signal: make(chan struct{}, 1), now: time.Now}
}

// SetClock replaces the clock used to decide when delayed tasks are due.
func (m *Memory) SetClock(now func() time.Time) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.now = now
}

func (m *Memory) notify() {
	select {
	case m.signal <- struct{}{}:
	default:
	}
}

func (m *Memory) Enqueue(_ context.Context, tasks ...*Task) error {
	m.mu.Lock()
	for _, t := range tasks {
		m.ready = append(m.ready, *t)
	}
	m.mu.Unlock()
	m.notify()
	return nil
}

func (m *Memory) pop() *Task {
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.ready) == 0 {
		return nil
	}
	t := m.ready[0]
	m.ready = m.ready[1:]
	if len(m.ready) > 0 {
		m.notify()
	}
	return &t
}

func (m *Memory) Dequeue(ctx context.Context, timeout time.Duration) (*Task, error) {
	if t := m.pop(); t != nil {
		return t, nil
	}
	timer := time.NewTimer(timeout)
	defer timer.Stop()
	for {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-timer.C:
			return m.pop(), nil
		case <-m.signal:
			if t := m.pop(); t != nil {
				return t, nil
			}
		}
	}
}

func (m *Memory) Schedule(_ context.Context, task *Task, delay time.Duration) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.delayed = append(m.delayed, delayed{task: *task, due: m.now().Add(delay)})
	sort.SliceStable(m.delayed, func(i, j int) bool { return m.delayed[i].due.Before(m.delayed[j].due) })
	return nil
}

func (m *Memory) PromoteDue(_ context.Context) (int, error) {
	m.mu.Lock()
	now := m.now()
	n := 0
	for n < len(m.delayed) && !m.delayed[n].due.After(now) {
		m.ready = append(m.ready, m.delayed[n].task)
		n++
	}
	m.delayed = m.delayed[n:]
	m.mu.Unlock()
	if n > 0 {
		m.notify()
	}
	return n, nil
}

func (m *Memory) DeadLetter(_ context.Context, task *Task) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.dead = append(m.dead, *task)
	return nil
}

func (m *Memory) DeadLetters(_ context.Context, limit int64) ([]Task, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	n := int64(len(m.dead))
	if limit < n {
		n = limit
	}
	return append([]Task(nil), m.dead[:n]...), nil
}

func (m *Memory) Depth(_ context.Context) (Depth, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return Depth{Ready: int64(len(m.ready)), Delayed: int64(len(m.delayed)), Dead: int64(len(m.dead))}, nil
}

// Delays returns the remaining delay of each parked task, soonest first.
func (m *Memory) Delays() []time.Duration {
	m.mu.Lock()
	defer m.mu.Unlock()
	now := m.now()
	out := make([]time.Duration, len(m.delayed))
	for i, d := range m.delayed {
		out[i] = d.due.Sub(now)
	}
	return out
}
