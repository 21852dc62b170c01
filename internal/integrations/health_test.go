package integrations

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aura-platform/integrations/internal/models"
	"github.com/aura-platform/integrations/internal/store/memstore"
)

var t0 = time.Date(2024, 2, 15, 10, 30, 0, 0, time.UTC)

func row(eventID string, status models.WebhookStatus, at time.Time) *models.WebhookLog {
	return &models.WebhookLog{EventID: eventID, Status: status, CreatedAt: at}
}

func TestEvaluateTable(t *testing.T) {
	cases := []struct {
		name      string
		processed *models.WebhookLog
		failed    *models.WebhookLog
		want      Status
	}{
		{"no entries", nil, nil, StatusError},
		{"only failures", nil, row("F1", models.WebhookFailed, t0), StatusError},
		{"processed only", row("E1", models.WebhookProcessed, t0), nil, StatusHealthy},
		{"failure older than success", row("E1", models.WebhookProcessed, t0), row("F1", models.WebhookFailed, t0.Add(-time.Second)), StatusHealthy},
		{"failure at same instant", row("E1", models.WebhookProcessed, t0), row("F1", models.WebhookFailed, t0), StatusHealthy},
		{"failure newer than success", row("E1", models.WebhookProcessed, t0), row("F1", models.WebhookFailed, t0.Add(time.Millisecond)), StatusDegraded},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			h := Evaluate(tc.processed, tc.failed)
			assert.Equal(t, tc.want, h.Status)
			if tc.processed == nil {
				assert.Nil(t, h.LastSuccess)
				assert.Nil(t, h.LastEventID)
				return
			}
			require.NotNil(t, h.LastSuccess)
			assert.True(t, h.LastSuccess.Equal(tc.processed.CreatedAt))
			assert.Equal(t, tc.processed.EventID, *h.LastEventID)
		})
	}
}

func seed(t *testing.T) *memstore.Store {
	t.Helper()
	ctx := context.Background()
	st := memstore.New()
	now := t0
	st.SetClock(func() time.Time {
		now = now.Add(time.Second)
		return now
	})
	write := func(id, service string, status models.WebhookStatus) {
		require.NoError(t, st.RecordFailure(ctx, &models.WebhookLog{
			EventID: id, Service: service, OrgID: "org_001", Status: status, Payload: []byte(`{}`), Attempts: 1,
		}))
	}
	write("E1", "user_service", models.WebhookProcessed)
	write("P1", "payment_service", models.WebhookProcessed)
	write("P2", "payment_service", models.WebhookFailed)
	write("M1", "communication_service", models.WebhookFailed)
	write("E2", "user_service", models.WebhookSkipped)
	return st
}

func TestAggregatorStatus(t *testing.T) {
	report, err := NewAggregator(seed(t)).Status(context.Background())
	require.NoError(t, err)
	require.Len(t, report, 3)

	assert.Equal(t, StatusHealthy, report["user_service"].Status)
	assert.Equal(t, "E1", *report["user_service"].LastEventID)
	assert.Equal(t, StatusDegraded, report["payment_service"].Status)
	assert.Equal(t, "P1", *report["payment_service"].LastEventID)
	assert.Equal(t, StatusError, report["communication_service"].Status)
	assert.Nil(t, report["communication_service"].LastSuccess)
}

type brokenLogs struct{}

func (brokenLogs) Latest(context.Context, string, models.WebhookStatus) (*models.WebhookLog, error) {
	return nil, errors.New("db down")
}

func TestStatusHandler(t *testing.T) {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.GET("/integrations/status", NewHandler(NewAggregator(seed(t)), nil).Status)

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/integrations/status", nil))
	require.Equal(t, http.StatusOK, w.Code)

	var body struct {
		Success bool `json:"success"`
		Data    map[string]struct {
			LastSuccess *string `json:"last_success"`
			LastEventID *string `json:"last_event_id"`
			Status      string  `json:"status"`
		} `json:"data"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.True(t, body.Success)
	assert.Equal(t, "degraded", body.Data["payment_service"].Status)
	assert.Nil(t, body.Data["communication_service"].LastSuccess)
	require.NotNil(t, body.Data["user_service"].LastSuccess)
	_, err := time.Parse(time.RFC3339, *body.Data["user_service"].LastSuccess)
	assert.NoError(t, err)

	r = gin.New()
	r.GET("/integrations/status", NewHandler(NewAggregator(brokenLogs{}), nil).Status)
	w = httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/integrations/status", nil))
	assert.Equal(t, http.StatusInternalServerError, w.Code)
}
