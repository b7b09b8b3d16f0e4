// Package sweeper purges old job records and their on-disk workspaces. It
// runs outside the request and worker paths; a partial sweep is an
// acceptable outcome.
package sweeper

import (
	"context"
	"os"
	"path/filepath"
	"time"

	"github.com/nadimxht/stem/internal/core/job"
	"github.com/rs/zerolog/log"
)

// Records is the slice of the job store the sweeper needs.
type Records interface {
	ListOlderThan(ctx context.Context, cutoff time.Time) ([]*job.Job, error)
	Delete(ctx context.Context, id string) error
}

type Sweeper struct {
	records  Records
	baseDir  string
	maxAge   time.Duration
	interval time.Duration
}

// New creates a sweeper. maxAge must exceed the maximum possible attempt
// duration: workspace ownership has no explicit signal, so age is the only
// guarantee that no live attempt still owns a directory being removed.
func New(records Records, baseDir string, maxAge, interval time.Duration) *Sweeper {
	return &Sweeper{
		records:  records,
		baseDir:  baseDir,
		maxAge:   maxAge,
		interval: interval,
	}
}

// Run sweeps on the configured period until the context is cancelled.
func (s *Sweeper) Run(ctx context.Context) {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.SweepOnce(ctx)
		}
	}
}

// SweepOnce removes all records older than the age threshold together with
// their workspaces. One record's failure does not abort the rest; it is
// logged and the sweep continues. Returns the number of records removed.
func (s *Sweeper) SweepOnce(ctx context.Context) int {
	cutoff := time.Now().Add(-s.maxAge)
	jobs, err := s.records.ListOlderThan(ctx, cutoff)
	if err != nil {
		log.Error().Err(err).Msg("sweep: list old jobs failed")
		return 0
	}

	removed := 0
	for _, j := range jobs {
		workspace := filepath.Join(s.baseDir, j.ID)
		// RemoveAll treats an already-absent directory as success.
		if err := os.RemoveAll(workspace); err != nil {
			log.Error().Err(err).Str("job_id", j.ID).Str("path", workspace).Msg("sweep: remove workspace failed")
			continue
		}
		if err := s.records.Delete(ctx, j.ID); err != nil {
			log.Error().Err(err).Str("job_id", j.ID).Msg("sweep: delete record failed")
			continue
		}
		removed++
		log.Info().Str("job_id", j.ID).Str("status", string(j.Status)).Msg("swept old job")
	}

	if removed > 0 || len(jobs) > 0 {
		log.Info().Int("removed", removed).Int("candidates", len(jobs)).Msg("retention sweep finished")
	}
	return removed
}
