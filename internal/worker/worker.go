// Package worker is the queue-consumer process: it pulls jobs from the
// shared queue, runs the separation pipeline with retry/backoff, and hosts
// the retention sweeper. A worker processes one job fully before taking the
// next.
package worker

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/nadimxht/stem/internal/config"
	"github.com/nadimxht/stem/internal/core/cache"
	"github.com/nadimxht/stem/internal/core/dispatch"
	"github.com/nadimxht/stem/internal/core/event"
	"github.com/nadimxht/stem/internal/core/job"
	"github.com/nadimxht/stem/internal/core/media"
	"github.com/nadimxht/stem/internal/core/pipeline"
	"github.com/nadimxht/stem/internal/core/queue"
	"github.com/nadimxht/stem/internal/core/sweeper"
	"github.com/nadimxht/stem/internal/database"
	"github.com/nadimxht/stem/internal/metrics"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"
)

const dequeueWait = 5 * time.Second

// Records is the slice of the job store the terminal error path uses.
type Records interface {
	Fail(ctx context.Context, id, message string, seconds int) error
}

func Run(ctx context.Context, cfg *config.Config) error {
	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	pool, err := database.Connect(ctx, cfg.Database.URL, cfg.Database.MaxConnections)
	if err != nil {
		return fmt.Errorf("connect to database: %w", err)
	}
	defer pool.Close()

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
	bus := event.NewBus()

	cacheMgr := cache.NewManager(rdb, cfg.CacheTTL())
	cacheMgr.SetupSubscribers(bus)
	metrics.SetupSubscribers(bus)

	hostname, _ := os.Hostname()
	consumer := fmt.Sprintf("%s-%d", hostname, os.Getpid())
	q := queue.New(rdb, consumer)

	fetcher := media.NewYtDlp(cfg.Fetch.Binary)
	separator := media.NewDemucs(cfg.Separator.Binary, cfg.Separator.Model)
	runner := pipeline.NewRunner(store, fetcher, separator, bus, cfg.Jobs.BaseDir, cfg.Separator.Device)

	policy := dispatch.RetryPolicy{
		MaxAttempts: cfg.Jobs.MaxAttempts,
		Delays:      cfg.RetryDelays(),
	}
	dispatcher := dispatch.New(policy, cfg.AttemptTimeout())

	sw := sweeper.New(store, cfg.Jobs.BaseDir, cfg.RetentionMaxAge(), cfg.RetentionInterval())
	go sw.Run(ctx)

	go runHealthServer(ctx, cfg, pool.Ping, rdb)

	log.Info().
		Str("consumer", consumer).
		Int("max_attempts", policy.MaxAttempts).
		Dur("attempt_timeout", cfg.AttemptTimeout()).
		Msg("worker started")

	for {
		if ctx.Err() != nil {
			log.Info().Msg("worker shutting down")
			return nil
		}

		task, err := q.Dequeue(ctx, dequeueWait)
		if err != nil {
			if ctx.Err() != nil {
				log.Info().Msg("worker shutting down")
				return nil
			}
			log.Error().Err(err).Msg("dequeue failed")
			time.Sleep(time.Second)
			continue
		}
		if task == nil {
			continue
		}

		process(ctx, *task, store, runner, dispatcher, bus)

		if err := q.Ack(ctx, *task); err != nil {
			log.Warn().Err(err).Str("job_id", task.JobID).Msg("ack failed")
		}
	}
}

// process runs the full attempt cycle for one delivered task and owns the
// terminal Error transition after exhaustion.
func process(ctx context.Context, task queue.Task, records Records, runner *pipeline.Runner, dispatcher *dispatch.Dispatcher, bus event.Bus) {
	start := time.Now()
	log.Info().Str("job_id", task.JobID).Str("url", task.URL).Msg("processing job")

	err := dispatcher.Run(ctx, task.JobID, func(attemptCtx context.Context, attempt int) error {
		return runner.Run(attemptCtx, task.JobID, task.URL)
	})
	if err == nil {
		return
	}

	seconds := int(time.Since(start).Seconds())
	log.Error().Err(err).Str("job_id", task.JobID).Int("seconds", seconds).Msg("job failed after all attempts")

	if ferr := records.Fail(ctx, task.JobID, err.Error(), seconds); ferr != nil {
		if errors.Is(ferr, job.ErrInvalidTransition) {
			// Already terminal (e.g. swept); nothing to record.
			log.Warn().Str("job_id", task.JobID).Msg("job already terminal, skipping error transition")
		} else {
			log.Error().Err(ferr).Str("job_id", task.JobID).Msg("failed to record job error")
		}
		return
	}

	bus.Publish(ctx, event.Event{
		Type: event.EventJobFailed,
		Payload: event.JobEvent{
			JobID:             task.JobID,
			URL:               task.URL,
			ProcessingSeconds: seconds,
			Error:             err.Error(),
		},
	})

	// The final attempt failed: the whole workspace, including partial
	// outputs, is reclaimed. Non-final attempts leave it for the next
	// attempt to overwrite.
	workspace := runner.Workspace(task.JobID)
	if rerr := os.RemoveAll(workspace); rerr != nil {
		log.Warn().Err(rerr).Str("job_id", task.JobID).Str("path", workspace).Msg("workspace cleanup failed")
	}
}

// runHealthServer exposes /health and /metrics for this worker process.
func runHealthServer(ctx context.Context, cfg *config.Config, pingDB func(context.Context) error, rdb *redis.Client) {
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true

	e.GET("/health", func(c echo.Context) error {
		checks := map[string]string{"database": "healthy", "redis": "healthy"}
		status := http.StatusOK
		if err := pingDB(c.Request().Context()); err != nil {
			checks["database"] = err.Error()
			status = http.StatusServiceUnavailable
		}
		if err := rdb.Ping(c.Request().Context()).Err(); err != nil {
			checks["redis"] = err.Error()
			status = http.StatusServiceUnavailable
		}
		return c.JSON(status, map[string]any{"status": http.StatusText(status), "checks": checks})
	})
	e.GET("/metrics", metrics.Handler())

	addr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Worker.HealthPort)
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = e.Shutdown(shutdownCtx)
	}()

	log.Info().Str("addr", addr).Msg("worker health server started")
	if err := e.Start(addr); err != nil && !errors.Is(err, http.ErrServerClosed) {
		log.Error().Err(err).Msg("worker health server failed")
	}
}
