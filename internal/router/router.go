package router

import (
	"github.com/gin-gonic/gin"

	"aforo/internal/handler"
	"aforo/internal/middleware"
	"aforo/internal/observability/metrics"
)

// Handlers groups the HTTP handlers mounted by Setup.
type Handlers struct {
	Batch  *handler.BatchHandler
	Review *handler.ReviewHandler
	Report *handler.ReportHandler
	Health *handler.HealthHandler
}

// Setup configures the Gin engine with all routes and middleware.
// m may be nil, in which case /metrics is not mounted.
func Setup(h Handlers, m *metrics.Metrics, corsOrigins []string, maxUploadBytes int64) *gin.Engine {
	r := gin.New()
	if maxUploadBytes > 0 {
		r.MaxMultipartMemory = maxUploadBytes
	}

	// Global middleware
	r.Use(middleware.Recovery())
	r.Use(middleware.RequestID())
	r.Use(middleware.Logger())
	r.Use(middleware.CORS(corsOrigins))
	if m != nil {
		r.Use(m.GinMiddleware())
		r.GET("/metrics", gin.WrapH(m.Handler()))
	}

	// Health checks
	r.GET("/healthz", h.Health.Liveness)
	r.GET("/readyz", h.Health.Readiness)

	v1 := r.Group("/api/v1")

	batches := v1.Group("/batches")
	batches.POST("", h.Batch.Create)
	batches.GET("", h.Batch.List)
	batches.GET("/:id", h.Batch.GetByID)
	batches.GET("/:id/stats", h.Batch.Stats)
	batches.POST("/:id/documents", h.Batch.Upload)
	batches.GET("/:id/documents", h.Batch.ListDocuments)
	batches.POST("/:id/process", h.Batch.Process)
	batches.POST("/:id/cancel", h.Batch.Cancel)
	batches.GET("/:id/records", h.Review.ListRecords)
	batches.POST("/:id/consolidate", h.Report.Consolidate)
	batches.GET("/:id/report", h.Report.Report)

	documents := v1.Group("/documents")
	documents.GET("/:id", h.Batch.GetDocument)
	documents.PUT("/:id/type", h.Batch.AssignType)

	records := v1.Group("/records")
	records.GET("/:id", h.Review.GetByID)
	records.POST("/:id/edits", h.Review.Edit)

	return r
}
