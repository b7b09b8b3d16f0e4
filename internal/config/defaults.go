package config

import (
	"github.com/knadh/koanf/v2"
)

func loadDefaults(k *koanf.Koanf) error {
	defaults := map[string]any{
		"server.host": "0.0.0.0",
		"server.port": 8080,

		"worker.health_port": 8081,

		"database.max_connections": 25,

		"redis.url": "redis://localhost:6379/0",

		"auth.header_name": "X-API-Key",

		"limits.max_concurrent_jobs": 2,
		"limits.rate_per_second":     5,
		"limits.allowed_domains": []string{
			"youtube.com",
			"youtu.be",
			"www.youtube.com",
			"m.youtube.com",
		},

		"jobs.base_dir":        "/data/jobs",
		"jobs.attempt_timeout": "10m",
		"jobs.max_attempts":    3,
		"jobs.retry_delays":    []string{"10s", "30s", "60s"},

		"cache.ttl": "168h",

		"retention.max_age":  "168h",
		"retention.interval": "1h",

		"fetch.binary": "yt-dlp",

		"separator.binary": "demucs",
		"separator.model":  "htdemucs",
		"separator.device": "",

		"logging.level":  "info",
		"logging.format": "pretty",
	}

	for key, val := range defaults {
		k.Set(key, val)
	}
	return nil
}
