// Package webhooks is the ingestion gateway: it validates webhook submissions
// and enqueues them. It never processes events or touches the store.
package webhooks

import (
	"context"
	"errors"
	"io"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/aura-platform/integrations/internal/events"
	"github.com/aura-platform/integrations/internal/metrics"
	"github.com/aura-platform/integrations/internal/middleware"
	"github.com/aura-platform/integrations/pkg/queue"
	"github.com/aura-platform/integrations/pkg/ratelimit"
	"github.com/aura-platform/integrations/pkg/response"
)

// Endpoints maps each ingestion path segment to the service it accepts.
var Endpoints = map[string]events.Service{
	"user-service":          events.ServiceIdentity,
	"payment-service":       events.ServiceBilling,
	"communication-service": events.ServiceMessaging,
}

// Enqueuer accepts tasks for later processing.
type Enqueuer interface {
	Enqueue(ctx context.Context, tasks ...*queue.Task) error
}

// Rejection describes one batch element that failed validation.
type Rejection struct {
	Index   int                 `json:"index"`
	EventID string              `json:"event_id,omitempty"`
	Error   string              `json:"error"`
	Fields  []events.FieldError `json:"fields,omitempty"`
}

// Receipt is the 202 body.
type Receipt struct {
	Status   string      `json:"status"`
	Accepted int         `json:"accepted"`
	Rejected []Rejection `json:"rejected"`
}

// Handler serves the ingestion endpoints.
type Handler struct {
	queue   Enqueuer
	maxBody int64
	metrics *metrics.Metrics
	logger  *zap.Logger
}

// NewHandler creates the gateway handler. maxBody <= 0 means 1 MiB.
func NewHandler(q Enqueuer, maxBody int64, m *metrics.Metrics, logger *zap.Logger) *Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	if maxBody <= 0 {
		maxBody = 1 << 20
	}
	return &Handler{queue: q, maxBody: maxBody, metrics: m, logger: logger}
}

// Register mounts POST /webhooks/{endpoint} for every endpoint, each with its own rate limit.
func (h *Handler) Register(r gin.IRouter, limiter ratelimit.Limiter) {
	g := r.Group("/webhooks")
	for endpoint, service := range Endpoints {
		handlers := []gin.HandlerFunc{h.countLimited(endpoint)}
		if limiter != nil {
			handlers = append(handlers, middleware.RateLimit(limiter, endpoint, h.logger))
		}
		handlers = append(handlers, h.Receive(service))
		g.POST("/"+endpoint, handlers...)
	}
}

func (h *Handler) countLimited(endpoint string) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Next()
		if c.Writer.Status() == http.StatusTooManyRequests {
			h.metrics.RateLimited(endpoint)
		}
	}
}

// Receive accepts a single event or an {"events": [...]} batch for service.
func (h *Handler) Receive(service events.Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, h.maxBody)
		body, err := io.ReadAll(c.Request.Body)
		if err != nil {
			var tooLarge *http.MaxBytesError
			if errors.As(err, &tooLarge) {
				response.PayloadTooLarge(c, "request body too large")
				return
			}
			response.BadRequest(c, "could not read request body")
			return
		}

		sub, err := events.ParseSubmission(service, body)
		if err != nil {
			h.metrics.Rejected(string(service), 1)
			response.BadRequest(c, err.Error())
			return
		}

		valid, invalid := sub.Valid(), sub.Invalid()
		rejected := make([]Rejection, 0, len(invalid))
		for _, it := range invalid {
			rejected = append(rejected, rejection(it))
		}
		h.metrics.Rejected(string(service), len(invalid))

		if len(valid) == 0 {
			h.logger.Info("submission rejected", zap.String("service", string(service)), zap.Int("rejected", len(rejected)))
			if !sub.Batch {
				c.JSON(http.StatusBadRequest, response.Body{Success: false, Error: invalid[0].Err.Error(), Data: rejected[0]})
				return
			}
			c.JSON(http.StatusBadRequest, response.Body{
				Success: false,
				Error:   "no valid events in batch",
				Data:    gin.H{"rejected": rejected},
			})
			return
		}

		tasks := make([]*queue.Task, 0, len(valid))
		for _, it := range valid {
			tasks = append(tasks, queue.NewTask(string(service), it.Raw))
		}
		if err := h.queue.Enqueue(c.Request.Context(), tasks...); err != nil {
			h.logger.Error("enqueue failed", zap.String("service", string(service)), zap.Int("tasks", len(tasks)), zap.Error(err))
			response.Internal(c, "failed to enqueue events")
			return
		}
		h.metrics.Accepted(string(service), len(tasks))
		h.logger.Info("submission accepted",
			zap.String("service", string(service)), zap.Int("accepted", len(tasks)), zap.Int("rejected", len(rejected)))

		response.Accepted(c, Receipt{Status: "accepted", Accepted: len(tasks), Rejected: rejected})
	}
}

func rejection(it events.Item) Rejection {
	r := Rejection{Index: it.Index, EventID: events.EventIDOf(it.Raw), Error: it.Err.Error()}
	var verr *events.ValidationError
	if errors.As(it.Err, &verr) {
		r.Fields = verr.Fields
		if verr.EventID != "" {
			r.EventID = verr.EventID
		}
	}
	return r
}
