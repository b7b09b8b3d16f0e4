package cache

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/nadimxht/stem/internal/core/event"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"
)

const keyPrefix = "cache:"

// Entry is a previously produced separation result for an input URL.
type Entry struct {
	Stems    []string
	StemsDir string
	CachedAt time.Time
}

// Manager is the URL-keyed result cache, backed by a Redis hash per key with
// a TTL. A hit lets a submission skip the pipeline entirely; the cache is
// never authoritative for job status.
type Manager struct {
	rdb *redis.Client
	ttl time.Duration
}

func NewManager(rdb *redis.Client, ttl time.Duration) *Manager {
	return &Manager{rdb: rdb, ttl: ttl}
}

// Lookup returns the cached entry for a URL, or nil on a miss. Exact-key
// lookup only.
func (m *Manager) Lookup(ctx context.Context, url string) (*Entry, error) {
	fields, err := m.rdb.HGetAll(ctx, keyPrefix+url).Result()
	if err != nil {
		return nil, fmt.Errorf("cache lookup: %w", err)
	}
	if len(fields) == 0 {
		return nil, nil
	}

	entry := &Entry{
		Stems:    splitStems(fields["stems"]),
		StemsDir: fields["stems_dir"],
	}
	if t, err := time.Parse(time.RFC3339, fields["cached_at"]); err == nil {
		entry.CachedAt = t
	}
	if len(entry.Stems) == 0 || entry.StemsDir == "" {
		// Malformed entry; treat as a miss rather than serving garbage.
		return nil, nil
	}
	return entry, nil
}

// Store writes a result under the URL key. Idempotent; repeat writes refresh
// the TTL.
func (m *Manager) Store(ctx context.Context, url string, stems []string, stemsDir string) error {
	key := keyPrefix + url
	err := m.rdb.HSet(ctx, key, map[string]interface{}{
		"stems":     joinStems(stems),
		"stems_dir": stemsDir,
		"cached_at": time.Now().UTC().Format(time.RFC3339),
	}).Err()
	if err != nil {
		return fmt.Errorf("cache store: %w", err)
	}
	if err := m.rdb.Expire(ctx, key, m.ttl).Err(); err != nil {
		return fmt.Errorf("cache expire: %w", err)
	}
	return nil
}

// SetupSubscribers wires cache population to the worker's event bus: every
// completed job refreshes the entry for its URL.
func (m *Manager) SetupSubscribers(bus event.Bus) {
	bus.Subscribe(event.EventJobCompleted, func(ctx context.Context, e event.Event) error {
		payload, ok := e.Payload.(event.JobEvent)
		if !ok || payload.URL == "" {
			return nil
		}
		if err := m.Store(ctx, payload.URL, payload.Stems, payload.StemsDir); err != nil {
			log.Error().Err(err).Str("job_id", payload.JobID).Msg("failed to cache result")
		}
		return nil
	})
}

func joinStems(stems []string) string {
	return strings.Join(stems, ",")
}

func splitStems(s string) []string {
	if s == "" {
		return nil
	}
	var out []string
	for _, p := range strings.Split(s, ",") {
		if p != "" {
			out = append(out, p)
		}
	}
	return out
}
