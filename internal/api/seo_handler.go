package api

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	infralogger "github.com/jonesrussell/seoscan/infrastructure/logger"
	"github.com/jonesrussell/seoscan/infrastructure/sse"
	"github.com/jonesrussell/seoscan/internal/seo"
)

// Aggregator builds unified SEO reports.
type Aggregator interface {
	Aggregate(ctx context.Context, req seo.Request, emit seo.Emit) (*seo.Response, error)
}

// SEOHandler serves the unified SEO endpoint.
type SEOHandler struct {
	aggregator Aggregator
	logger     infralogger.Logger
}

// NewSEOHandler creates a new SEO handler.
func NewSEOHandler(aggregator Aggregator, log infralogger.Logger) *SEOHandler {
	return &SEOHandler{aggregator: aggregator, logger: log}
}

// Aggregate handles POST /api/v1/seo. The report is returned as one JSON
// body, or streamed as provider events ending in "complete" when the client
// asks for text/event-stream, passes ?stream=1 or sets "stream": true.
func (h *SEOHandler) Aggregate(c *gin.Context) {
	var req seo.Request
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBadRequest(c, "Invalid request body")
		return
	}
	if _, err := seo.NewTarget(req); err != nil {
		respondBadRequest(c, err.Error())
		return
	}

	if req.Stream || wantsStream(c) {
		h.stream(c, req)
		return
	}

	resp, err := h.aggregator.Aggregate(c.Request.Context(), req, nil)
	if err != nil {
		h.fail(c, req, err)
		return
	}
	c.JSON(http.StatusOK, resp)
}

func (h *SEOHandler) stream(c *gin.Context, req seo.Request) {
	sse.SetSSEHeaders(c.Writer)
	c.Status(http.StatusOK)

	_, err := h.aggregator.Aggregate(c.Request.Context(), req, func(event sse.Event) {
		if writeErr := sse.WriteEvent(c.Writer, event); writeErr != nil {
			h.logger.Debug("SEO stream write failed", infralogger.Error(writeErr))
		}
	})
	if err != nil {
		h.logger.Warn("SEO stream failed", infralogger.URL(req.URL), infralogger.Error(err))
		_ = sse.WriteEvent(c.Writer, sse.Event{Type: "error", Data: gin.H{"error": err.Error()}})
	}
}

func (h *SEOHandler) fail(c *gin.Context, req seo.Request, err error) {
	if seo.IsValidationError(err) {
		respondBadRequest(c, err.Error())
		return
	}
	h.logger.Error("SEO aggregation failed", infralogger.URL(req.URL), infralogger.Error(err))
	respondInternalError(c, "SEO aggregation failed")
}
