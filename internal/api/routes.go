package api

import (
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	infraevents "github.com/jonesrussell/seoscan/infrastructure/events"
	infralogger "github.com/jonesrussell/seoscan/infrastructure/logger"
	"github.com/jonesrussell/seoscan/infrastructure/sse"
)

// Deps are the collaborators behind the routes. Broker and Gatherer are
// optional; their routes are skipped when nil.
type Deps struct {
	Scans    ScanService
	SEO      Aggregator
	Broker   sse.Broker
	Gatherer prometheus.Gatherer
	Logger   infralogger.Logger
}

// RegisterRoutes mounts /api/v1 and /metrics. Health routes come from the
// server builder.
func RegisterRoutes(router *gin.Engine, deps Deps) {
	opportunities := NewOpportunitiesHandler(deps.Scans, deps.Logger)
	seoHandler := NewSEOHandler(deps.SEO, deps.Logger)

	v1 := router.Group("/api/v1")
	v1.POST("/opportunities", opportunities.Get)
	v1.GET("/scan/status", opportunities.Status)
	v1.POST("/seo", seoHandler.Aggregate)

	if deps.Broker != nil {
		v1.GET("/scan/events", sse.Handler(deps.Broker, deps.Logger, scanEventOptions))
	}

	if deps.Gatherer != nil {
		router.GET("/metrics", gin.WrapH(promhttp.HandlerFor(deps.Gatherer, promhttp.HandlerOpts{})))
	}
}

// scanEventOptions narrows the feed to scan lifecycle events, and to one
// scan when ?scanId= is given.
func scanEventOptions(c *gin.Context) []sse.ClientOption {
	scanID := c.Query("scanId")
	return []sse.ClientOption{sse.WithFilter(func(e sse.Event) bool {
		event, ok := e.Data.(infraevents.ScanEvent)
		if !ok {
			return false
		}
		return scanID == "" || event.ScanID == scanID
	})}
}
