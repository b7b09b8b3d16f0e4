package cmd

import (
	"context"
	"fmt"

	"github.com/nadimxht/stem/internal/config"
	"github.com/nadimxht/stem/internal/server"
	"github.com/urfave/cli/v3"
)

func serverCmd() *cli.Command {
	return &cli.Command{
		Name:  "server",
		Usage: "Run the HTTP API (submission, status, stem download)",
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
			if cfg.Auth.APIKey == "" {
				return fmt.Errorf("API key is required (set STEM_AUTH_API_KEY or auth.api_key in config)")
			}

			return server.Run(ctx, cfg)
		},
	}
}
