package sweeper

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/nadimxht/stem/internal/core/job"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeRecords struct {
	old       []*job.Job
	deleted   []string
	listErr   error
	deleteErr map[string]error

	gotCutoff time.Time
}

func (f *fakeRecords) ListOlderThan(ctx context.Context, cutoff time.Time) ([]*job.Job, error) {
	f.gotCutoff = cutoff
	if f.listErr != nil {
		return nil, f.listErr
	}
	return f.old, nil
}

func (f *fakeRecords) Delete(ctx context.Context, id string) error {
	if err := f.deleteErr[id]; err != nil {
		return err
	}
	f.deleted = append(f.deleted, id)
	return nil
}

func TestSweepOnceRemovesRecordsAndWorkspaces(t *testing.T) {
	baseDir := t.TempDir()
	records := &fakeRecords{old: []*job.Job{
		{ID: "j1", Status: job.StatusCompleted},
		{ID: "j2", Status: job.StatusError},
	}}
	for _, id := range []string{"j1", "j2"} {
		require.NoError(t, os.MkdirAll(filepath.Join(baseDir, id, "model"), 0o755))
	}

	s := New(records, baseDir, 7*24*time.Hour, time.Hour)
	removed := s.SweepOnce(context.Background())

	assert.Equal(t, 2, removed)
	assert.ElementsMatch(t, []string{"j1", "j2"}, records.deleted)
	for _, id := range []string{"j1", "j2"} {
		_, err := os.Stat(filepath.Join(baseDir, id))
		assert.True(t, os.IsNotExist(err))
	}

	// Cutoff is maxAge before now.
	assert.WithinDuration(t, time.Now().Add(-7*24*time.Hour), records.gotCutoff, time.Minute)
}

func TestSweepOnceMissingWorkspace(t *testing.T) {
	records := &fakeRecords{old: []*job.Job{{ID: "j1", Status: job.StatusError}}}

	s := New(records, t.TempDir(), time.Hour, time.Hour)
	removed := s.SweepOnce(context.Background())

	// A record whose workspace is already gone is still swept.
	assert.Equal(t, 1, removed)
	assert.Equal(t, []string{"j1"}, records.deleted)
}

func TestSweepOnceContinuesPastFailures(t *testing.T) {
	records := &fakeRecords{
		old: []*job.Job{
			{ID: "j1", Status: job.StatusCompleted},
			{ID: "j2", Status: job.StatusCompleted},
		},
		deleteErr: map[string]error{"j1": errors.New("db down")},
	}

	s := New(records, t.TempDir(), time.Hour, time.Hour)
	removed := s.SweepOnce(context.Background())

	assert.Equal(t, 1, removed)
	assert.Equal(t, []string{"j2"}, records.deleted)
}

func TestSweepOnceListFailure(t *testing.T) {
	records := &fakeRecords{listErr: errors.New("db down")}

	s := New(records, t.TempDir(), time.Hour, time.Hour)
	assert.Zero(t, s.SweepOnce(context.Background()))
}

func TestSweepOnceNothingOld(t *testing.T) {
	records := &fakeRecords{}

	s := New(records, t.TempDir(), time.Hour, time.Hour)
	assert.Zero(t, s.SweepOnce(context.Background()))
	assert.Empty(t, records.deleted)
}
