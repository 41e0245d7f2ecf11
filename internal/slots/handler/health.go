package handler

import (
	"context"
	"net/http"
	"time"

	kafkamw "clinicslots/pkg/kafka/middleware"
	httputil "clinicslots/pkg/http"
	"clinicslots/pkg/logger"

	"github.com/julienschmidt/httprouter"
	"github.com/redis/go-redis/v9"
)

type Pinger interface {
	Ping(ctx context.Context) error
}

type HealthResponse struct {
	Status   string                   `json:"status"`
	Database string                   `json:"database,omitempty"`
	Cache    string                   `json:"cache,omitempty"`
	Events   *kafkamw.MetricsSnapshot `json:"events,omitempty"`
}

type HealthHandler struct {
	store   Pinger
	redis   *redis.Client
	metrics *kafkamw.Metrics
	log     *logger.Logger
}

// NewHealthHandler reports readiness of the store. redis and metrics may be
// nil when those backends are disabled.
func NewHealthHandler(store Pinger, redisClient *redis.Client, metrics *kafkamw.Metrics, log *logger.Logger) *HealthHandler {
	return &HealthHandler{
		store:   store,
		redis:   redisClient,
		metrics: metrics,
		log:     log,
	}
}

func (h *HealthHandler) Health(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	if err := httputil.WriteJSON(w, http.StatusOK, HealthResponse{
		Status: "ok",
	}); err != nil {
		h.log.Error("failed to write JSON response", "handler", "Health", "operation", "WriteJSON", "error", err)
	}
}

func (h *HealthHandler) Ready(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()

	resp := HealthResponse{Status: "ready", Database: "ok"}
	if h.metrics != nil {
		snap := h.metrics.Snapshot()
		resp.Events = &snap
	}

	if h.redis != nil {
		resp.Cache = "ok"
		// Redis only backs caches; a failure degrades, it does not fail readiness.
		if err := h.redis.Ping(ctx).Err(); err != nil {
			h.log.Warn("Redis health check failed", "error", err, "path", r.URL.Path)
			resp.Cache = "degraded"
		}
	}

	if err := h.store.Ping(ctx); err != nil {
		h.log.Error("Database health check failed",
			"error", err,
			"path", r.URL.Path,
		)
		resp.Status = "unavailable"
		resp.Database = "error"
		if writeErr := httputil.WriteJSON(w, http.StatusServiceUnavailable, resp); writeErr != nil {
			h.log.Error("failed to write JSON response", "handler", "Ready", "operation", "WriteJSON", "error", writeErr)
		}
		return
	}

	if err := httputil.WriteJSON(w, http.StatusOK, resp); err != nil {
		h.log.Error("failed to write JSON response", "handler", "Ready", "operation", "WriteJSON", "error", err)
	}
}

func (h *HealthHandler) RegisterRoutes(router *httprouter.Router) {
	router.GET("/health", h.Health)
	router.GET("/ready", h.Ready)
}
