package server

import (
	"log/slog"
	"net/http"

	"multiverse-server/internal/metrics"
	"multiverse-server/internal/middleware"
	"multiverse-server/internal/population"
	populationHandlers "multiverse-server/internal/population/handlers"
	serverHandlers "multiverse-server/internal/server/handlers"
)

type Routes struct {
	db                serverHandlers.Pinger
	cache             serverHandlers.CacheStatus
	populationService *population.Service
	authenticator     *middleware.Authenticator
	metrics           *metrics.Recorder
}

func NewRoutes(db serverHandlers.Pinger, cache serverHandlers.CacheStatus, populationService *population.Service, authenticator *middleware.Authenticator, recorder *metrics.Recorder) *Routes {
	return &Routes{
		db:                db,
		cache:             cache,
		populationService: populationService,
		authenticator:     authenticator,
		metrics:           recorder,
	}
}

func (r *Routes) Setup() *http.ServeMux {
	logger := slog.With("component", "routes", "operation", "setup")
	logger.Debug("Setting up application routes")

	mux := http.NewServeMux()

	healthHandler := serverHandlers.NewHealthHandler(r.db, r.cache)
	populationHandler := populationHandlers.NewPopulationHandler(r.populationService)

	// Public endpoints
	mux.Handle("/api/server/health", healthHandler)
	mux.HandleFunc("GET /api/server/ready", healthHandler.Ready)
	mux.Handle("/api/populations", populationHandler)
	mux.HandleFunc("GET /api/populations/{id}", populationHandler.Get)
	mux.HandleFunc("GET /api/populations/{id}/generations/{generation}", populationHandler.GetGeneration)
	mux.HandleFunc("GET /api/populations/{id}/statistics", populationHandler.GetStatistics)
	mux.Handle("GET /metrics", r.metrics.Handler())

	// Admin-only endpoints (authenticated + admin role)
	mux.Handle("DELETE /api/populations/{id}", r.authenticator.RequireAdmin(http.HandlerFunc(populationHandler.Delete)))

	logger.Info("Routes configured successfully",
		"public_endpoints", []string{"/api/server/health", "/api/server/ready", "/api/populations", "/api/populations/{id}", "/api/populations/{id}/generations/{generation}", "/api/populations/{id}/statistics", "/metrics"},
		"admin_endpoints", []string{"DELETE /api/populations/{id}"},
	)

	return mux
}

// Chain wraps h so that the first middleware is the outermost.
func Chain(h http.Handler, middlewares ...func(http.Handler) http.Handler) http.Handler {
	for i := len(middlewares) - 1; i >= 0; i-- {
		h = middlewares[i](h)
	}
	return h
}
