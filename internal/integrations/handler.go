package integrations

import (
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/aura-platform/integrations/pkg/response"
)

// Handler serves the integration status endpoint.
type Handler struct {
	agg    *Aggregator
	logger *zap.Logger
}

// NewHandler creates the status handler.
func NewHandler(agg *Aggregator, logger *zap.Logger) *Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Handler{agg: agg, logger: logger}
}

// Status handles GET /integrations/status.
func (h *Handler) Status(c *gin.Context) {
	report, err := h.agg.Status(c.Request.Context())
	if err != nil {
		h.logger.Error("integration status", zap.Error(err))
		response.Internal(c, "failed to load integration status")
		return
	}
	response.OK(c, report)
}
