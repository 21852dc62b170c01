package webhooks

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aura-platform/integrations/internal/events/eventstest"
	"github.com/aura-platform/integrations/pkg/queue"
	"github.com/aura-platform/integrations/pkg/ratelimit"
)

func init() {
	gin.SetMode(gin.TestMode)
}

type failingQueue struct{}

func (failingQueue) Enqueue(context.Context, ...*queue.Task) error { return errors.New("redis down") }

type envelope struct {
	Success bool            `json:"success"`
	Data    json.RawMessage `json:"data"`
	Error   string          `json:"error"`
}

func setup(q Enqueuer, limiter ratelimit.Limiter, maxBody int64) *gin.Engine {
	r := gin.New()
	NewHandler(q, maxBody, nil, nil).Register(r, limiter)
	return r
}

func post(r *gin.Engine, path string, body []byte) (*httptest.ResponseRecorder, envelope) {
	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, path, bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	r.ServeHTTP(w, req)
	var env envelope
	_ = json.Unmarshal(w.Body.Bytes(), &env)
	return w, env
}

func depth(t *testing.T, q *queue.Memory) int64 {
	t.Helper()
	d, err := q.Depth(context.Background())
	require.NoError(t, err)
	return d.Ready
}

func TestSingleEventAccepted(t *testing.T) {
	q := queue.NewMemory()
	r := setup(q, nil, 0)

	w, env := post(r, "/webhooks/user-service", eventstest.UserCreated("E1", "org_001", "ext_user_12345", "s@techcorp.com"))
	assert.Equal(t, http.StatusAccepted, w.Code)
	assert.True(t, env.Success)

	var rec Receipt
	require.NoError(t, json.Unmarshal(env.Data, &rec))
	assert.Equal(t, "accepted", rec.Status)
	assert.Equal(t, 1, rec.Accepted)
	assert.Empty(t, rec.Rejected)

	task, err := q.Dequeue(context.Background(), time.Millisecond)
	require.NoError(t, err)
	assert.Equal(t, "user_service", task.Service)
	assert.Equal(t, 0, task.Attempt)
	assert.Equal(t, "E1", eventIDOf(task.Payload))
}

func eventIDOf(raw []byte) string {
	var h struct {
		EventID string `json:"event_id"`
	}
	_ = json.Unmarshal(raw, &h)
	return h.EventID
}

func TestSingleInvalidEventRejected(t *testing.T) {
	q := queue.NewMemory()
	r := setup(q, nil, 0)

	bad := eventstest.Envelope("user.created", "E1", "org_001", map[string]any{"user_id": "u1", "email": "not-an-email"})
	w, env := post(r, "/webhooks/user-service", bad)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.False(t, env.Success)
	assert.Contains(t, env.Error, "email")
	assert.Equal(t, int64(0), depth(t, q))
}

func TestEventTypeMustMatchEndpoint(t *testing.T) {
	q := queue.NewMemory()
	r := setup(q, nil, 0)

	w, _ := post(r, "/webhooks/payment-service", eventstest.UserCreated("E1", "org_001", "u1", "s@techcorp.com"))
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, int64(0), depth(t, q))
}

func TestBatchIsolatesInvalidItems(t *testing.T) {
	q := queue.NewMemory()
	r := setup(q, nil, 0)

	body := eventstest.Batch(
		eventstest.MessageDelivered("M1", "org_001", "msg_1", "a@techcorp.com"),
		eventstest.Envelope("message.delivered", "M2", "org_001", map[string]any{"message_id": "msg_2"}),
		eventstest.MessageBounced("M3", "org_001", "msg_3", "b@techcorp.com"),
	)
	w, env := post(r, "/webhooks/communication-service", body)
	require.Equal(t, http.StatusAccepted, w.Code)

	var rec Receipt
	require.NoError(t, json.Unmarshal(env.Data, &rec))
	assert.Equal(t, 2, rec.Accepted)
	require.Len(t, rec.Rejected, 1)
	assert.Equal(t, 1, rec.Rejected[0].Index)
	assert.Equal(t, "M2", rec.Rejected[0].EventID)
	assert.NotEmpty(t, rec.Rejected[0].Fields)
	assert.Equal(t, int64(2), depth(t, q))
}

func TestBatchWithNoValidItemsRejected(t *testing.T) {
	q := queue.NewMemory()
	r := setup(q, nil, 0)

	body := eventstest.Batch(eventstest.Envelope("message.delivered", "M2", "org_001", map[string]any{}))
	w, env := post(r, "/webhooks/communication-service", body)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "no valid events in batch", env.Error)
	assert.Equal(t, int64(0), depth(t, q))
}

func TestUnrecognizedShapes(t *testing.T) {
	r := setup(queue.NewMemory(), nil, 0)
	for _, body := range []string{`{"foo":"bar"}`, `[1,2]`, `not json`, `{"events":{}}`, `{"events":[]}`} {
		w, _ := post(r, "/webhooks/user-service", []byte(body))
		assert.Equal(t, http.StatusBadRequest, w.Code, body)
	}
}

func TestBodyTooLarge(t *testing.T) {
	r := setup(queue.NewMemory(), nil, 64)
	body := `{"event_id":"` + strings.Repeat("x", 128) + `"}`
	w, _ := post(r, "/webhooks/user-service", []byte(body))
	assert.Equal(t, http.StatusRequestEntityTooLarge, w.Code)
}

func TestEnqueueFailure(t *testing.T) {
	r := setup(failingQueue{}, nil, 0)
	w, env := post(r, "/webhooks/user-service", eventstest.UserCreated("E1", "org_001", "u1", "s@techcorp.com"))
	assert.Equal(t, http.StatusInternalServerError, w.Code)
	assert.False(t, env.Success)
}

func TestRateLimitPerEndpoint(t *testing.T) {
	q := queue.NewMemory()
	r := setup(q, ratelimit.NewMemory(2, time.Minute), 0)
	raw := eventstest.UserCreated("E1", "org_001", "u1", "s@techcorp.com")

	for i := 0; i < 2; i++ {
		w, _ := post(r, "/webhooks/user-service", raw)
		assert.Equal(t, http.StatusAccepted, w.Code)
	}
	w, env := post(r, "/webhooks/user-service", raw)
	assert.Equal(t, http.StatusTooManyRequests, w.Code)
	assert.Equal(t, "Rate limit exceeded", env.Error)
	assert.Equal(t, int64(2), depth(t, q))

	w, _ = post(r, "/webhooks/communication-service",
		eventstest.MessageDelivered("M1", "org_001", "msg_1", "a@techcorp.com"))
	assert.Equal(t, http.StatusAccepted, w.Code)
}
