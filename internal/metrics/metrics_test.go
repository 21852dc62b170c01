package metrics

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

func TestCounters(t *testing.T) {
	m := New()
	m.Accepted("user_service", 3)
	m.Rejected("user_service", 1)
	m.RateLimited("user-service")
	m.Outcome("user_service", "completed", 20*time.Millisecond)
	m.AdapterFailure("payment_service")
	m.QueueDepth(4, 2, 1)

	assert.Equal(t, 3.0, testutil.ToFloat64(m.accepted.WithLabelValues("user_service")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.rejected.WithLabelValues("user_service")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.rateLimited.WithLabelValues("user-service")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.outcomes.WithLabelValues("user_service", "completed")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.adapterFailures.WithLabelValues("payment_service")))
	assert.Equal(t, 2.0, testutil.ToFloat64(m.queueDepth.WithLabelValues("delayed")))
}

func TestNilMetricsIsNoop(t *testing.T) {
	var m *Metrics
	m.Accepted("user_service", 1)
	m.Outcome("user_service", "completed", time.Second)
	m.QueueDepth(1, 1, 1)
}

func TestHandlerServesText(t *testing.T) {
	gin.SetMode(gin.TestMode)
	m := New()
	m.Accepted("user_service", 1)
	r := gin.New()
	m.Register(r)

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "integrations_webhook_events_accepted_total")
}
