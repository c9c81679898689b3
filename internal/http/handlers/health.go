package handlers

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
)

// Pinger is satisfied by repository.Store and the rate limiter.
type Pinger interface {
	Ping(ctx context.Context) error
}

type HealthHandler struct {
	store   Pinger
	redis   Pinger
	started time.Time
	version string
}

// NewHealthHandler wires the dependencies /readyz reports on. redis is nil
// when the rate limiter counts in process.
func NewHealthHandler(store Pinger, redis Pinger, version string) *HealthHandler {
	return &HealthHandler{store: store, redis: redis, started: time.Now(), version: version}
}

type ReadinessReport struct {
	Status    string            `json:"status"`
	Version   string            `json:"version"`
	Uptime    string            `json:"uptime"`
	Timestamp time.Time         `json:"timestamp"`
	Checks    map[string]string `json:"checks"`
}

func (h *HealthHandler) Liveness(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

// Readiness fails only on the store. Redis being down degrades rate limiting
// to fail-open, which still serves traffic.
func (h *HealthHandler) Readiness(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), 5*time.Second)
	defer cancel()

	report := ReadinessReport{
		Status:    "healthy",
		Version:   h.version,
		Uptime:    time.Since(h.started).Round(time.Second).String(),
		Timestamp: time.Now().UTC(),
		Checks:    map[string]string{"database": probe(ctx, h.store, "unhealthy")},
	}
	if h.redis != nil {
		report.Checks["redis"] = probe(ctx, h.redis, "degraded")
	}

	status := http.StatusOK
	if report.Checks["database"] != "healthy" {
		report.Status = "unhealthy"
		status = http.StatusServiceUnavailable
	}
	c.JSON(status, report)
}

func (h *HealthHandler) Health(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), 3*time.Second)
	defer cancel()

	if err := h.store.Ping(ctx); err != nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"status": "unhealthy", "error": "database unavailable"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "ok", "version": h.version})
}

func probe(ctx context.Context, p Pinger, failure string) string {
	if err := p.Ping(ctx); err != nil {
		return failure + ": " + err.Error()
	}
	return "healthy"
}
