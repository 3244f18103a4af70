package handler_test

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"

	"aforo/internal/handler"
)

type pingFunc func(ctx context.Context) error

func (f pingFunc) PingContext(ctx context.Context) error { return f(ctx) }

func readiness(h *handler.HealthHandler) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	c.Request, _ = http.NewRequest(http.MethodGet, "/readyz", http.NoBody)
	h.Readiness(c)
	return w
}

func TestHealthHandler_ReadinessWithoutChecks(t *testing.T) {
	w := readiness(handler.NewHealthHandler(nil))

	assert.Equal(t, http.StatusOK, w.Code)
}

func TestHealthHandler_ReadinessReportsFailingCheck(t *testing.T) {
	ok := pingFunc(func(context.Context) error { return nil })
	down := pingFunc(func(context.Context) error { return errors.New("connection refused") })

	w := readiness(handler.NewHealthHandler(map[string]handler.Pinger{"database": ok, "storage": down}))

	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
	assert.Contains(t, w.Body.String(), "storage not reachable")
}

func TestHealthHandler_ReadinessAllHealthy(t *testing.T) {
	ok := pingFunc(func(context.Context) error { return nil })

	w := readiness(handler.NewHealthHandler(map[string]handler.Pinger{"database": ok}))

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"database"`)
}
