package cache

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/nadimxht/stem/internal/core/event"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestManager(t *testing.T, ttl time.Duration) (*Manager, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })
	return NewManager(rdb, ttl), mr
}

func TestLookupMiss(t *testing.T) {
	m, _ := newTestManager(t, time.Hour)

	entry, err := m.Lookup(context.Background(), "https://youtube.com/watch?v=abc")
	require.NoError(t, err)
	assert.Nil(t, entry)
}

func TestStoreAndLookup(t *testing.T) {
	m, _ := newTestManager(t, time.Hour)
	ctx := context.Background()
	url := "https://youtube.com/watch?v=abc"

	require.NoError(t, m.Store(ctx, url, []string{"vocals", "drums", "bass", "other"}, "/data/jobs/j1/htdemucs/audio"))

	entry, err := m.Lookup(ctx, url)
	require.NoError(t, err)
	require.NotNil(t, entry)
	assert.Equal(t, []string{"vocals", "drums", "bass", "other"}, entry.Stems)
	assert.Equal(t, "/data/jobs/j1/htdemucs/audio", entry.StemsDir)
	assert.WithinDuration(t, time.Now().UTC(), entry.CachedAt, time.Minute)
}

func TestLookupIsExactKey(t *testing.T) {
	m, _ := newTestManager(t, time.Hour)
	ctx := context.Background()

	require.NoError(t, m.Store(ctx, "https://youtube.com/watch?v=abc", []string{"vocals"}, "/d"))

	entry, err := m.Lookup(ctx, "https://youtube.com/watch?v=abc&t=10")
	require.NoError(t, err)
	assert.Nil(t, entry)
}

func TestStoreSetsTTL(t *testing.T) {
	m, mr := newTestManager(t, time.Hour)
	ctx := context.Background()
	url := "https://youtube.com/watch?v=abc"

	require.NoError(t, m.Store(ctx, url, []string{"vocals"}, "/d"))
	assert.Equal(t, time.Hour, mr.TTL(keyPrefix+url))

	// Expired entries are misses.
	mr.FastForward(2 * time.Hour)
	entry, err := m.Lookup(ctx, url)
	require.NoError(t, err)
	assert.Nil(t, entry)
}

func TestStoreRefreshesTTL(t *testing.T) {
	m, mr := newTestManager(t, time.Hour)
	ctx := context.Background()
	url := "https://youtube.com/watch?v=abc"

	require.NoError(t, m.Store(ctx, url, []string{"vocals"}, "/d"))
	mr.FastForward(30 * time.Minute)
	require.NoError(t, m.Store(ctx, url, []string{"vocals"}, "/d"))

	assert.Equal(t, time.Hour, mr.TTL(keyPrefix+url))
}

func TestLookupMalformedEntry(t *testing.T) {
	m, mr := newTestManager(t, time.Hour)
	url := "https://youtube.com/watch?v=abc"

	mr.HSet(keyPrefix+url, "stems", "", "stems_dir", "")

	entry, err := m.Lookup(context.Background(), url)
	require.NoError(t, err)
	assert.Nil(t, entry)
}

func TestLookupErrorWhenRedisDown(t *testing.T) {
	m, mr := newTestManager(t, time.Hour)
	mr.Close()

	_, err := m.Lookup(context.Background(), "https://youtube.com/watch?v=abc")
	assert.Error(t, err)
}

func TestSubscriberStoresCompletedJobs(t *testing.T) {
	m, _ := newTestManager(t, time.Hour)
	bus := event.NewBus()
	m.SetupSubscribers(bus)

	ctx := context.Background()
	url := "https://youtube.com/watch?v=abc"
	require.NoError(t, bus.Publish(ctx, event.Event{
		Type: event.EventJobCompleted,
		Payload: event.JobEvent{
			JobID:    "j1",
			URL:      url,
			Stems:    []string{"vocals", "drums"},
			StemsDir: "/data/jobs/j1/htdemucs/audio",
		},
	}))

	entry, err := m.Lookup(ctx, url)
	require.NoError(t, err)
	require.NotNil(t, entry)
	assert.Equal(t, []string{"vocals", "drums"}, entry.Stems)
}

func TestSubscriberIgnoresFailedJobs(t *testing.T) {
	m, _ := newTestManager(t, time.Hour)
	bus := event.NewBus()
	m.SetupSubscribers(bus)

	ctx := context.Background()
	url := "https://youtube.com/watch?v=abc"
	require.NoError(t, bus.Publish(ctx, event.Event{
		Type:    event.EventJobFailed,
		Payload: event.JobEvent{JobID: "j1", URL: url, Error: "boom"},
	}))

	entry, err := m.Lookup(ctx, url)
	require.NoError(t, err)
	assert.Nil(t, entry)
}
