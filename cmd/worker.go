package cmd

import (
	"context"
	"fmt"

	"github.com/nadimxht/stem/internal/config"
	"github.com/nadimxht/stem/internal/worker"
	"github.com/rs/zerolog/log"
	"github.com/urfave/cli/v3"
)

func workerCmd() *cli.Command {
	return &cli.Command{
		Name:  "worker",
		Usage: "Run a pipeline worker (pulls jobs from the queue, runs fetch + separation)",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "database-url",
				Usage:   "PostgreSQL connection string",
				Sources: cli.EnvVars("STEM_DATABASE_URL"),
			},
			&cli.StringFlag{
				Name:    "redis-url",
				Usage:   "Redis connection string",
				Sources: cli.EnvVars("STEM_REDIS_URL"),
			},
		},
		Action: func(ctx context.Context, cmd *cli.Command) error {
			cfg, err := config.Load(cmd.String("config"))
			if err != nil {
				return fmt.Errorf("load config: %w", err)
			}

			if v := cmd.String("database-url"); v != "" {
				cfg.Database.URL = v
			}
			if v := cmd.String("redis-url"); v != "" {
				cfg.Redis.URL = v
			}
			if v := cmd.String("log-level"); v != "" {
				cfg.Logging.Level = v
			}
			applyLogLevel(cfg.Logging.Level)

			if cfg.Database.URL == "" {
				return fmt.Errorf("database URL is required (set STEM_DATABASE_URL or database.url in config)")
			}

			log.Info().Str("redis", cfg.Redis.URL).Msg("starting worker")

			return worker.Run(ctx, cfg)
		},
	}
}
