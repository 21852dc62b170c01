package queue

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryFIFO(t *testing.T) {
	ctx := context.Background()
	m := NewMemory()
	a, b := NewTask("user_service", []byte(`{"event_id":"a"}`)), NewTask("user_service", []byte(`{"event_id":"b"}`))
	require.NoError(t, m.Enqueue(ctx, a, b))

	got, err := m.Dequeue(ctx, time.Millisecond)
	require.NoError(t, err)
	assert.Equal(t, a.ID, got.ID)
	got, err = m.Dequeue(ctx, time.Millisecond)
	require.NoError(t, err)
	assert.Equal(t, b.ID, got.ID)

	got, err = m.Dequeue(ctx, time.Millisecond)
	require.NoError(t, err)
	assert.Nil(t, got)
}

func TestMemoryDequeueWakesOnEnqueue(t *testing.T) {
	ctx := context.Background()
	m := NewMemory()
	task := NewTask("payment_service", []byte(`{}`))
	go func() {
		time.Sleep(10 * time.Millisecond)
		_ = m.Enqueue(ctx, task)
	}()
	got, err := m.Dequeue(ctx, 2*time.Second)
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, task.ID, got.ID)
}

func TestMemoryDequeueHonoursContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := NewMemory().Dequeue(ctx, time.Second)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestMemoryScheduleAndPromote(t *testing.T) {
	ctx := context.Background()
	now := time.Date(2024, 2, 15, 10, 30, 0, 0, time.UTC)
	m := NewMemory()
	m.SetClock(func() time.Time { return now })

	task := NewTask("communication_service", []byte(`{}`))
	task.Attempt = 1
	require.NoError(t, m.Schedule(ctx, task, 2*time.Second))
	assert.Equal(t, []time.Duration{2 * time.Second}, m.Delays())

	n, err := m.PromoteDue(ctx)
	require.NoError(t, err)
	assert.Equal(t, 0, n)

	now = now.Add(2 * time.Second)
	n, err = m.PromoteDue(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	got, err := m.Dequeue(ctx, time.Millisecond)
	require.NoError(t, err)
	assert.Equal(t, 1, got.Attempt)

	d, err := m.Depth(ctx)
	require.NoError(t, err)
	assert.Equal(t, Depth{}, d)
}

func TestMemoryDeadLetters(t *testing.T) {
	ctx := context.Background()
	m := NewMemory()
	for i := 0; i < 3; i++ {
		require.NoError(t, m.DeadLetter(ctx, NewTask("user_service", []byte(`{}`))))
	}
	dead, err := m.DeadLetters(ctx, 2)
	require.NoError(t, err)
	assert.Len(t, dead, 2)
}

func redisClient(t *testing.T) *redis.Client {
	t.Helper()
	addr := os.Getenv("TEST_REDIS_ADDR")
	if addr == "" {
		t.Skip("set TEST_REDIS_ADDR to run redis queue tests")
	}
	client := redis.NewClient(&redis.Options{Addr: addr, DB: 15})
	ctx := context.Background()
	require.NoError(t, client.Ping(ctx).Err())
	require.NoError(t, client.Del(ctx, KeyReady, KeyDelayed, KeyDLQ).Err())
	t.Cleanup(func() {
		client.Del(context.Background(), KeyReady, KeyDelayed, KeyDLQ)
		client.Close()
	})
	return client
}

func TestRedisQueueRoundTrip(t *testing.T) {
	client := redisClient(t)
	ctx := context.Background()
	q := NewQueue(client, nil)

	a, b := NewTask("user_service", []byte(`{"event_id":"a"}`)), NewTask("user_service", []byte(`{"event_id":"b"}`))
	require.NoError(t, q.Enqueue(ctx, a, b))

	got, err := q.Dequeue(ctx, time.Second)
	require.NoError(t, err)
	assert.Equal(t, a.ID, got.ID)
	assert.JSONEq(t, `{"event_id":"a"}`, string(got.Payload))

	now := time.Now()
	q.now = func() time.Time { return now }
	got.Attempt = 1
	require.NoError(t, q.Schedule(ctx, got, time.Minute))

	n, err := q.PromoteDue(ctx)
	require.NoError(t, err)
	assert.Equal(t, 0, n)

	now = now.Add(time.Minute)
	n, err = q.PromoteDue(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	require.NoError(t, q.DeadLetter(ctx, b))
	d, err := q.Depth(ctx)
	require.NoError(t, err)
	assert.Equal(t, Depth{Ready: 2, Delayed: 0, Dead: 1}, d)

	dead, err := q.DeadLetters(ctx, 10)
	require.NoError(t, err)
	require.Len(t, dead, 1)
	assert.Equal(t, b.ID, dead[0].ID)
}

func TestRedisDequeueTimesOut(t *testing.T) {
	client := redisClient(t)
	got, err := NewQueue(client, nil).Dequeue(context.Background(), 100*time.Millisecond)
	require.NoError(t, err)
	assert.Nil(t, got)
}

func TestRedisDequeueDeadLettersUndecodableEntry(t *testing.T) {
	client := redisClient(t)
	ctx := context.Background()
	q := NewQueue(client, nil)
	require.NoError(t, client.RPush(ctx, KeyReady, "not json").Err())

	got, err := q.Dequeue(ctx, time.Second)
	require.NoError(t, err)
	assert.Nil(t, got)

	raw, err := client.LRange(ctx, KeyDLQ, 0, -1).Result()
	require.NoError(t, err)
	assert.Equal(t, []string{"not json"}, raw)

	dead, err := q.DeadLetters(ctx, 10)
	require.NoError(t, err)
	assert.Empty(t, dead)
}
