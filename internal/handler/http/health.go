package http

import (
	"context"
	"errors"
	"net/http"
	"time"

	"go.uber.org/zap"

	"LinkTrace-Backend/internal/mailer"
	"LinkTrace-Backend/internal/repository"
)

// HealthHandler serves liveness, readiness and metrics endpoints.
type HealthHandler struct {
	storage    repository.Storage
	dispatcher *mailer.Dispatcher
	log        *zap.Logger
}

func NewHealthHandler(storage repository.Storage, dispatcher *mailer.Dispatcher, log *zap.Logger) *HealthHandler {
	return &HealthHandler{
		storage:    storage,
		dispatcher: dispatcher,
		log:        log,
	}
}

// HealthResponse is the health check payload.
type HealthResponse struct {
	Status         string    `json:"status"`
	Timestamp      time.Time `json:"timestamp"`
	Version        string    `json:"version"`
	DatabaseStatus string    `json:"database_status"`
	Uptime         string    `json:"uptime,omitempty"`
}

var startTime = time.Now()

const version = "1.0.0"

// Health checks the service and its database.
func (h *HealthHandler) Health(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	// A not-found on a probe identifier means the database answered.
	dbStatus := "healthy"
	_, err := h.storage.GetInstanceByUUID(ctx, "00000000000000000000000000000000")
	if err != nil && !errors.Is(err, repository.ErrInstanceNotFound) {
		dbStatus = "unhealthy"
		h.log.Error("database health check failed", zap.Error(err))
	}

	status := "healthy"
	statusCode := http.StatusOK
	if dbStatus == "unhealthy" {
		status = "unhealthy"
		statusCode = http.StatusServiceUnavailable
	}

	writeJSON(w, HealthResponse{
		Status:         status,
		Timestamp:      time.Now(),
		Version:        version,
		DatabaseStatus: dbStatus,
		Uptime:         time.Since(startTime).String(),
	}, statusCode)

	if status != "healthy" {
		h.log.Warn("health check failed", zap.String("database_status", dbStatus))
	}
}

// Ready is the readiness probe.
func (h *HealthHandler) Ready(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, map[string]interface{}{
		"status":    "ready",
		"timestamp": time.Now(),
	}, http.StatusOK)
}

// Metrics exposes basic runtime and queue metrics.
func (h *HealthHandler) Metrics(w http.ResponseWriter, r *http.Request) {
	metrics := map[string]interface{}{
		"uptime_seconds": time.Since(startTime).Seconds(),
		"timestamp":      time.Now(),
		"version":        version,
	}
	if h.dispatcher != nil {
		metrics["mailer"] = h.dispatcher.Stats()
	}

	writeJSON(w, metrics, http.StatusOK)
}
