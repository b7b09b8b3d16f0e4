package handlers

import (
	"context"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/redis/go-redis/v9"
)

// HealthHandler exposes liveness/readiness endpoints and a dependency check.
type HealthHandler struct {
	pingDB func(context.Context) error
	rdb    *redis.Client
}

func NewHealthHandler(pingDB func(context.Context) error, rdb *redis.Client) *HealthHandler {
	return &HealthHandler{pingDB: pingDB, rdb: rdb}
}

// RegisterRoutes mounts /health, /health/live and /health/ready.
func (h *HealthHandler) RegisterRoutes(e *echo.Echo) {
	e.GET("/health", h.Check)
	e.GET("/health/live", h.Live)
	e.GET("/health/ready", h.Ready)
}

func (h *HealthHandler) Check(c echo.Context) error {
	ctx := c.Request().Context()
	status := "healthy"
	code := http.StatusOK
	checks := map[string]string{"database": "healthy", "redis": "healthy"}

	if err := h.pingDB(ctx); err != nil {
		checks["database"] = err.Error()
		status, code = "unhealthy", http.StatusServiceUnavailable
	}
	if err := h.rdb.Ping(ctx).Err(); err != nil {
		checks["redis"] = err.Error()
		status, code = "unhealthy", http.StatusServiceUnavailable
	}

	return c.JSON(code, map[string]any{
		"status":    status,
		"timestamp": time.Now().UTC().Format(time.RFC3339),
		"checks":    checks,
	})
}

func (h *HealthHandler) Live(c echo.Context) error {
	return c.JSON(http.StatusOK, map[string]string{"status": "alive"})
}

func (h *HealthHandler) Ready(c echo.Context) error {
	ctx := c.Request().Context()
	if err := h.pingDB(ctx); err != nil {
		return c.JSON(http.StatusServiceUnavailable, map[string]string{"status": "not ready", "error": err.Error()})
	}
	if err := h.rdb.Ping(ctx).Err(); err != nil {
		return c.JSON(http.StatusServiceUnavailable, map[string]string{"status": "not ready", "error": err.Error()})
	}
	return c.JSON(http.StatusOK, map[string]string{"status": "ready"})
}
