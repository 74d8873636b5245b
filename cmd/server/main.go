package main

import (
	"context"
	stderrors "errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"multiverse-server/internal/auth"
	"multiverse-server/internal/cosmos"
	"multiverse-server/internal/metrics"
	"multiverse-server/internal/middleware"
	"multiverse-server/internal/population"
	"multiverse-server/internal/server"
	"multiverse-server/internal/shared/config"
	"multiverse-server/internal/shared/database"
	"multiverse-server/internal/shared/logger"
	"multiverse-server/internal/shared/redis"
)

const shutdownTimeout = 15 * time.Second

func main() {
	if err := config.Init(); err != nil {
		slog.Error("Failed to initialize configuration", "error", err)
		os.Exit(1)
	}
	logger.Init()

	if err := run(); err != nil {
		slog.Error("Server stopped with error", "error", err)
		os.Exit(1)
	}
}

func run() error {
	cfg := config.GlobalConfig
	log := slog.With("component", "main")

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	db, err := database.Connect(cfg)
	if err != nil {
		return err
	}
	defer db.Close()

	if err := db.RunMigrations(ctx); err != nil {
		return err
	}

	redisClient, err := redis.Connect(ctx, cfg.Redis)
	if err != nil {
		return err
	}
	defer redisClient.Close()

	var cache population.Cache
	if redisClient != nil {
		cache = population.NewRedisCache(redisClient, cfg.Redis.CacheTTL, slog.Default())
	}

	tokens, err := auth.NewTokenManager(cfg.Auth.JWTSecret, cfg.Auth.Issuer)
	if err != nil {
		return err
	}

	recorder := metrics.NewRecorder()
	engine := cosmos.NewEngine(cosmos.WithLogger(slog.Default()))
	repository := population.NewRepository(db, slog.Default())
	service := population.NewService(repository, cache, engine, cfg.Simulation, recorder, slog.Default())

	routes := server.NewRoutes(db, redisClient, service, middleware.NewAuthenticator(tokens), recorder)
	rateLimiter := middleware.NewRateLimiter(ctx, cfg.RateLimit)
	corsMiddleware := middleware.NewCORS(cfg.Frontend)

	srv := &http.Server{
		Addr:         ":" + cfg.Server.Port,
		Handler:      server.Chain(routes.Setup(), rateLimiter.Middleware, corsMiddleware.Middleware),
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Info("Multiverse server starting",
			"port", cfg.Server.Port,
			"url", cfg.Server.URL,
			"environment", cfg.Server.Environment,
			"cache", cacheName(redisClient))
		if err := srv.ListenAndServe(); err != nil && !stderrors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	log.Info("Shutting down server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return err
	}
	log.Info("Server stopped")
	return nil
}

func cacheName(client *redis.Client) string {
	if client == nil {
		return "memory"
	}
	return "redis"
}
