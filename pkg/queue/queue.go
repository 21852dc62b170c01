package queue

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

const (
	// KeyReady is the Redis list of tasks ready for a worker.
	KeyReady = "integrations:tasks"
	// KeyDelayed is the sorted set of tasks waiting out a retry backoff, scored by due time in ms.
	KeyDelayed = "integrations:tasks:delayed"
	// KeyDLQ is the dead-letter list for tasks that exhausted their retries.
	KeyDLQ = "integrations:tasks:dlq"

	promoteBatch = 100
)

// promoteScript moves due members of the delayed set onto the ready list atomically.
const promoteScript = `
local due = redis.call('ZRANGEBYSCORE', KEYS[1], '-inf', ARGV[1], 'LIMIT', 0, tonumber(ARGV[2]))
for _, member in ipairs(due) do
    redis.call('RPUSH', KEYS[2], member)
    redis.call('ZREM', KEYS[1], member)
end
return #due
`

// Task is one accepted webhook event awaiting processing.
type Task struct {
	ID         string          `json:"id"`
	Service    string          `json:"service"`
	Payload    json.RawMessage `json:"payload"`
	Attempt    int             `json:"attempt"`
	EnqueuedAt time.Time       `json:"enqueued_at"`
	LastError  string          `json:"last_error,omitempty"`
}

// NewTask wraps a raw event for service. Attempt starts at 0.
func NewTask(service string, payload []byte) *Task {
	return &Task{
		ID:         uuid.New().String(),
		Service:    service,
		Payload:    json.RawMessage(payload),
		EnqueuedAt: time.Now().UTC(),
	}
}

// Depth is the size of each queue partition.
type Depth struct {
	Ready   int64 `json:"ready"`
	Delayed int64 `json:"delayed"`
	Dead    int64 `json:"dead"`
}

// Queue is a Redis-backed task queue with delayed retries and a dead-letter list.
type Queue struct {
	client  *redis.Client
	logger  *zap.Logger
	promote *redis.Script
	now     func() time.Time
}

// NewQueue creates a new Redis-backed task queue.
func NewQueue(client *redis.Client, logger *zap.Logger) *Queue {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Queue{client: client, logger: logger, promote: redis.NewScript(promoteScript), now: time.Now}
}

// Enqueue pushes tasks onto the ready list in one command, so a batch is enqueued entirely or not at all.
func (q *Queue) Enqueue(ctx context.Context, tasks ...*Task) error {
	if len(tasks) == 0 {
		return nil
	}
	values := make([]any, 0, len(tasks))
	for _, t := range tasks {
		raw, err := json.Marshal(t)
		if err != nil {
			return fmt.Errorf("marshal task: %w", err)
		}
		values = append(values, raw)
	}
	if err := q.client.RPush(ctx, KeyReady, values...).Err(); err != nil {
		return fmt.Errorf("rpush: %w", err)
	}
	for _, t := range tasks {
		q.logger.Debug("enqueued task", zap.String("task_id", t.ID), zap.String("service", t.Service))
	}
	return nil
}

// Dequeue blocks up to timeout for a ready task. It returns (nil, nil) when none arrived.
// An entry that does not decode as a Task is moved to the dead-letter list as-is.
func (q *Queue) Dequeue(ctx context.Context, timeout time.Duration) (*Task, error) {
	result, err := q.client.BLPop(ctx, timeout, KeyReady).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, nil
		}
		return nil, err
	}
	if len(result) < 2 {
		return nil, nil
	}
	var task Task
	if err := json.Unmarshal([]byte(result[1]), &task); err != nil {
		q.logger.Warn("invalid task payload, dead-lettering raw entry", zap.String("raw", result[1]), zap.Error(err))
		if perr := q.client.RPush(ctx, KeyDLQ, result[1]).Err(); perr != nil {
			q.logger.Error("dead-letter raw entry failed", zap.String("raw", result[1]), zap.Error(perr))
		}
		return nil, nil
	}
	return &task, nil
}

// Schedule parks task in the delayed set until delay has elapsed.
func (q *Queue) Schedule(ctx context.Context, task *Task, delay time.Duration) error {
	raw, err := json.Marshal(task)
	if err != nil {
		return fmt.Errorf("marshal task: %w", err)
	}
	due := q.now().Add(delay).UnixMilli()
	if err := q.client.ZAdd(ctx, KeyDelayed, redis.Z{Score: float64(due), Member: raw}).Err(); err != nil {
		return fmt.Errorf("zadd: %w", err)
	}
	q.logger.Info("task scheduled for retry",
		zap.String("task_id", task.ID), zap.Int("attempt", task.Attempt), zap.Duration("delay", delay))
	return nil
}

// PromoteDue moves delayed tasks whose time has come onto the ready list and returns how many moved.
func (q *Queue) PromoteDue(ctx context.Context) (int, error) {
	now := strconv.FormatInt(q.now().UnixMilli(), 10)
	n, err := q.promote.Run(ctx, q.client, []string{KeyDelayed, KeyReady}, now, promoteBatch).Int()
	if err != nil {
		return 0, fmt.Errorf("promote delayed tasks: %w", err)
	}
	if n > 0 {
		q.logger.Debug("promoted delayed tasks", zap.Int("count", n))
	}
	return n, nil
}

// DeadLetter appends task to the dead-letter list.
func (q *Queue) DeadLetter(ctx context.Context, task *Task) error {
	raw, err := json.Marshal(task)
	if err != nil {
		return fmt.Errorf("marshal task: %w", err)
	}
	if err := q.client.RPush(ctx, KeyDLQ, raw).Err(); err != nil {
		q.logger.Error("dlq push failed", zap.Error(err), zap.String("task_id", task.ID))
		return err
	}
	q.logger.Warn("task moved to DLQ", zap.String("task_id", task.ID), zap.Int("attempt", task.Attempt))
	return nil
}

// DeadLetters returns up to limit tasks from the head of the dead-letter list.
func (q *Queue) DeadLetters(ctx context.Context, limit int64) ([]Task, error) {
	raws, err := q.client.LRange(ctx, KeyDLQ, 0, limit-1).Result()
	if err != nil {
		return nil, fmt.Errorf("lrange dlq: %w", err)
	}
	tasks := make([]Task, 0, len(raws))
	for _, raw := range raws {
		var t Task
		if err := json.Unmarshal([]byte(raw), &t); err != nil {
			continue
		}
		tasks = append(tasks, t)
	}
	return tasks, nil
}

// Depth reports the length of the ready, delayed and dead-letter partitions.
func (q *Queue) Depth(ctx context.Context) (Depth, error) {
	pipe := q.client.Pipeline()
	ready := pipe.LLen(ctx, KeyReady)
	delayed := pipe.ZCard(ctx, KeyDelayed)
	dead := pipe.LLen(ctx, KeyDLQ)
	if _, err := pipe.Exec(ctx); err != nil {
		return Depth{}, fmt.Errorf("queue depth: %w", err)
	}
	return Depth{Ready: ready.Val(), Delayed: delayed.Val(), Dead: dead.Val()}, nil
}
