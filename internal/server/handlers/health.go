package handlers

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"multiverse-server/internal/shared/errors"
	"multiverse-server/internal/shared/response"
)

type Pinger interface {
	PingContext(ctx context.Context) error
}

type CacheStatus interface {
	Status(ctx context.Context) string
}

type HealthResponse struct {
	Status    string `json:"status"`
	Timestamp string `json:"timestamp"`
	Database  string `json:"database"`
	Cache     string `json:"cache"`
}

type HealthHandler struct {
	db    Pinger
	cache CacheStatus
}

func NewHealthHandler(db Pinger, cache CacheStatus) *HealthHandler {
	return &HealthHandler{db: db, cache: cache}
}

func (h *HealthHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	logger := slog.With("handler", "health")

	dbStatus := "disconnected"
	if err := h.db.PingContext(r.Context()); err == nil {
		dbStatus = "connected"
	} else {
		logger.Warn("Database ping failed", "error", err)
	}

	cacheStatus := "memory"
	if h.cache != nil {
		cacheStatus = h.cache.Status(r.Context())
	}

	resp := HealthResponse{
		Status:    "healthy",
		Timestamp: time.Now().Format(time.RFC3339),
		Database:  dbStatus,
		Cache:     cacheStatus,
	}

	response.Success(w, http.StatusOK, resp)
}

// Ready fails with 503 while the database is unreachable.
func (h *HealthHandler) Ready(w http.ResponseWriter, r *http.Request) {
	logger := slog.With("handler", "ready")

	if err := h.db.PingContext(r.Context()); err != nil {
		response.Error(w, r, logger, errors.WrapExternal("database unavailable", err))
		return
	}

	response.Success(w, http.StatusOK, map[string]string{"status": "ready"})
}
