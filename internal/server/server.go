// Package server is the API process: it accepts separation requests, answers
// status queries and serves finished stems. Processing happens in worker
// processes; the two sides meet at the job store and the Redis queue.
package server

import (
	"context"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/nadimxht/stem/internal/config"
	"github.com/nadimxht/stem/internal/core/admission"
	"github.com/nadimxht/stem/internal/core/cache"
	"github.com/nadimxht/stem/internal/core/job"
	"github.com/nadimxht/stem/internal/core/queue"
	"github.com/nadimxht/stem/internal/core/service"
	"github.com/nadimxht/stem/internal/database"
	"github.com/nadimxht/stem/internal/server/handlers"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"
)

func Run(ctx context.Context, cfg *config.Config) error {
	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	pool, err := database.Connect(ctx, cfg.Database.URL, cfg.Database.MaxConnections)
	if err != nil {
		return fmt.Errorf("connect to database: %w", err)
	}
	defer pool.Close()

	if err := database.Migrate(ctx, pool); err != nil {
		return fmt.Errorf("migrations: %w", err)
	}

	redisOpts, err := redis.ParseURL(cfg.Redis.URL)
	if err != nil {
		return fmt.Errorf("parse redis url: %w", err)
	}
	rdb := redis.NewClient(redisOpts)
	defer func() { _ = rdb.Close() }()
	if err := rdb.Ping(ctx).Err(); err != nil {
		return fmt.Errorf("ping redis: %w", err)
	}

	store := job.NewStore(pool)
	cacheMgr := cache.NewManager(rdb, cfg.CacheTTL())
	q := queue.New(rdb, "server")
	admitter := admission.NewController(store, cfg.Limits.MaxConcurrentJobs)
	svc := service.New(store, cacheMgr, q, admitter)

	e := echo.New()
	e.HideBanner = true
	e.HidePort = true

	health := handlers.NewHealthHandler(pool.Ping, rdb)
	SetupRouter(e, cfg, svc, health)

	addr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
	go func() {
		log.Info().
			Str("addr", addr).
			Int("max_concurrent_jobs", cfg.Limits.MaxConcurrentJobs).
			Msg("server started")
		if err := e.Start(addr); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("HTTP server failed")
		}
	}()

	<-ctx.Done()

	log.Info().Msg("shutting down...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := e.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("server shutdown error")
	}
	return nil
}
