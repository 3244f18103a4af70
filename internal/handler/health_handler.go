package handler

import (
	"context"
	"net/http"
	"sort"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// Pinger is satisfied by *sqlx.DB and the S3 store.
type Pinger interface {
	PingContext(ctx context.Context) error
}

// HealthHandler handles health check endpoints.
type HealthHandler struct {
	checks map[string]Pinger
	names  []string
}

// NewHealthHandler creates a new HealthHandler. checks maps a dependency name
// to its pinger; the in-memory backends have nothing to ping and are left out.
func NewHealthHandler(checks map[string]Pinger) *HealthHandler {
	names := make([]string, 0, len(checks))
	for name := range checks {
		names = append(names, name)
	}
	sort.Strings(names)
	return &HealthHandler{checks: checks, names: names}
}

// Liveness handles GET /healthz
func (h *HealthHandler) Liveness(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

// Readiness handles GET /readyz
func (h *HealthHandler) Readiness(c *gin.Context) {
	for _, name := range h.names {
		if err := h.checks[name].PingContext(c.Request.Context()); err != nil {
			zap.L().Warn("handler.HealthHandler: readiness check failed", zap.String("check", name), zap.Error(err))
			c.JSON(http.StatusServiceUnavailable, gin.H{"status": "unavailable", "error": name + " not reachable"})
			return
		}
	}
	c.JSON(http.StatusOK, gin.H{"status": "ok", "checks": h.names})
}
