package api

import (
	"context"
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	infralogger "github.com/jonesrussell/seoscan/infrastructure/logger"
	"github.com/jonesrussell/seoscan/internal/scan"
	"github.com/jonesrussell/seoscan/internal/store"
	"github.com/jonesrussell/seoscan/internal/urlutil"
)

// ScanService is the part of the orchestrator the handlers use.
type ScanService interface {
	GetOpportunities(ctx context.Context, websiteURL string, allowSubdomains bool) (*scan.Response, bool, error)
	Status(ctx context.Context, scanID string) (*store.Scan, error)
}

// OpportunitiesHandler serves opportunity lookups and scan status polls.
type OpportunitiesHandler struct {
	scans  ScanService
	logger infralogger.Logger
}

// NewOpportunitiesHandler creates a new opportunities handler.
func NewOpportunitiesHandler(scans ScanService, log infralogger.Logger) *OpportunitiesHandler {
	return &OpportunitiesHandler{scans: scans, logger: log}
}

type opportunitiesRequest struct {
	WebsiteURL      string `binding:"required" json:"websiteUrl"`
	AllowSubdomains bool   `json:"allowSubdomains"`
}

// Get handles POST /api/v1/opportunities. A fresh snapshot answers 200;
// otherwise a scan is queued or joined and the answer is 202.
func (h *OpportunitiesHandler) Get(c *gin.Context) {
	var req opportunitiesRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBadRequest(c, "websiteUrl is required")
		return
	}

	resp, fresh, err := h.scans.GetOpportunities(c.Request.Context(), req.WebsiteURL, req.AllowSubdomains)
	switch {
	case errors.Is(err, urlutil.ErrInvalidURL), errors.Is(err, urlutil.ErrUnsupportedScheme):
		respondBadRequest(c, err.Error())
		return
	case errors.Is(err, scan.ErrShuttingDown):
		respondError(c, http.StatusServiceUnavailable, "service is shutting down")
		return
	case err != nil:
		h.logger.Error("Failed to get opportunities",
			infralogger.URL(req.WebsiteURL),
			infralogger.Error(err),
		)
		respondInternalError(c, "Failed to get opportunities")
		return
	}

	if fresh {
		c.JSON(http.StatusOK, resp)
		return
	}
	c.JSON(http.StatusAccepted, resp)
}

type scanStatusResponse struct {
	ScanID      string         `json:"scanId"`
	Status      store.Status   `json:"status"`
	Diagnostics map[string]any `json:"diagnostics"`
	Error       *string        `json:"error"`
}

// Status handles GET /api/v1/scan/status?scanId=.
func (h *OpportunitiesHandler) Status(c *gin.Context) {
	scanID := c.Query("scanId")
	if scanID == "" {
		respondBadRequest(c, "scanId is required")
		return
	}

	s, err := h.scans.Status(c.Request.Context(), scanID)
	if errors.Is(err, store.ErrNotFound) {
		respondNotFound(c, "Scan")
		return
	}
	if err != nil {
		h.logger.Error("Failed to get scan status", infralogger.ScanID(scanID), infralogger.Error(err))
		respondInternalError(c, "Failed to get scan status")
		return
	}

	c.JSON(http.StatusOK, scanStatusResponse{
		ScanID:      s.ID,
		Status:      s.Status,
		Diagnostics: s.Diagnostics,
		Error:       s.Error,
	})
}
