package cmd

import (
	"github.com/rs/zerolog"
	"github.com/urfave/cli/v3"
)

var version = "dev"

// applyLogLevel sets the global zerolog level. Unknown values leave the
// current level untouched.
func applyLogLevel(level string) {
	if lvl, err := zerolog.ParseLevel(level); err == nil {
		zerolog.SetGlobalLevel(lvl)
	}
}

func App() *cli.Command {
	return &cli.Command{
		Name:    "stem",
		Version: version,
		Usage:   "Audio stem separation service — submit a track URL, poll the job, download the stems.",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "config",
				Aliases: []string{"c"},
				Usage:   "Path to TOML config file",
				Sources: cli.EnvVars("STEM_CONFIG_PATH"),
			},
			&cli.StringFlag{
				Name:    "log-level",
				Usage:   "Log level (debug, info, warn, error)",
				Value:   "info",
				Sources: cli.EnvVars("STEM_LOGGING_LEVEL"),
			},
		},
		Commands: []*cli.Command{
			serverCmd(),
			workerCmd(),
			migrateCmd(),
		},
	}
}
