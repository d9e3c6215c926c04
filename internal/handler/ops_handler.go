package handler

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/jmoiron/sqlx"
	"github.com/redis/go-redis/v9"

	"github.com/campusconnect/campusconnect-api/internal/service"
	"github.com/campusconnect/campusconnect-api/pkg/response"
)

// OpsHandler exposes health, readiness, and metrics snapshot endpoints.
type OpsHandler struct {
	db      *sqlx.DB
	cache   *redis.Client
	metrics *service.MetricsService
}

// NewOpsHandler constructs the handler.
func NewOpsHandler(db *sqlx.DB, cache *redis.Client, metrics *service.MetricsService) *OpsHandler {
	return &OpsHandler{db: db, cache: cache, metrics: metrics}
}

// Health godoc
// @Summary Liveness probe
// @Tags Ops
// @Produce json
// @Success 200 {object} response.Envelope
// @Router /health [get]
func (h *OpsHandler) Health(c *gin.Context) {
	response.JSON(c, http.StatusOK, gin.H{"status": "ok"}, nil)
}

// Ready godoc
// @Summary Readiness probe checking database and cache connectivity
// @Tags Ops
// @Produce json
// @Success 200 {object} response.Envelope
// @Router /ready [get]
func (h *OpsHandler) Ready(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
	defer cancel()

	checks := gin.H{"database": "ok", "cache": "ok"}
	status := http.StatusOK

	if err := h.db.PingContext(ctx); err != nil {
		checks["database"] = err.Error()
		status = http.StatusServiceUnavailable
	}
	if err := h.cache.Ping(ctx).Err(); err != nil {
		checks["cache"] = err.Error()
		status = http.StatusServiceUnavailable
	}
	response.JSON(c, status, checks, nil)
}

// Snapshot godoc
// @Summary Aggregate runtime metrics for the ops dashboard
// @Tags Ops
// @Produce json
// @Success 200 {object} response.Envelope
// @Router /ops/metrics [get]
func (h *OpsHandler) Snapshot(c *gin.Context) {
	response.JSON(c, http.StatusOK, h.metrics.Snapshot(), nil)
}
