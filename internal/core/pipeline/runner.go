package pipeline

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/nadimxht/stem/internal/core/event"
	"github.com/rs/zerolog/log"
)

// Records is the slice of the job store the runner mutates. The attempt that
// currently owns a job is the only writer to its record.
type Records interface {
	MarkProcessing(ctx context.Context, id string) error
	SetProgress(ctx context.Context, id string, progress int) error
	Complete(ctx context.Context, id string, stems []string, stemsDir string, seconds int) error
}

// Runner executes one attempt of the pipeline for a job.
type Runner struct {
	records   Records
	fetcher   Fetcher
	separator Separator
	bus       event.Bus
	baseDir   string
	device    string
}

func NewRunner(records Records, fetcher Fetcher, separator Separator, bus event.Bus, baseDir, device string) *Runner {
	return &Runner{
		records:   records,
		fetcher:   fetcher,
		separator: separator,
		bus:       bus,
		baseDir:   baseDir,
		device:    device,
	}
}

// Workspace is the per-job directory holding intermediate and output
// artifacts. Owned exclusively by the attempt currently processing the job.
func (r *Runner) Workspace(jobID string) string {
	return filepath.Join(r.baseDir, jobID)
}

// Run drives one attempt: claim, fetch, separate, enumerate stems, complete.
// Progress milestones: 10 claimed, 20 fetch started, 50 fetch finished,
// 90 separation finished, 100 completed. Any returned error is an attempt
// failure; the dispatcher decides whether it retries or becomes terminal.
func (r *Runner) Run(ctx context.Context, jobID, url string) error {
	start := time.Now()

	if err := r.records.MarkProcessing(ctx, jobID); err != nil {
		return fmt.Errorf("claim job: %w", err)
	}

	workspace := r.Workspace(jobID)
	if err := os.MkdirAll(workspace, 0o755); err != nil {
		return fmt.Errorf("create workspace: %w", err)
	}

	r.progress(ctx, jobID, 20)
	audioPath, err := r.fetcher.Fetch(ctx, url, workspace)
	if err != nil {
		return err
	}
	r.progress(ctx, jobID, 50)

	log.Debug().Str("job_id", jobID).Str("audio", audioPath).Msg("fetch finished, separating")

	stemsDir, err := r.separator.Separate(ctx, audioPath, workspace, r.device)
	if err != nil {
		return err
	}
	r.progress(ctx, jobID, 90)

	stems, err := listStems(stemsDir)
	if err != nil {
		return fmt.Errorf("enumerate stems: %w", err)
	}
	if len(stems) == 0 {
		return ErrNoStems
	}

	seconds := int(time.Since(start).Seconds())
	if err := r.records.Complete(ctx, jobID, stems, stemsDir, seconds); err != nil {
		return fmt.Errorf("complete job: %w", err)
	}

	r.bus.Publish(ctx, event.Event{
		Type: event.EventJobCompleted,
		Payload: event.JobEvent{
			JobID:             jobID,
			URL:               url,
			Stems:             stems,
			StemsDir:          stemsDir,
			ProcessingSeconds: seconds,
		},
	})

	// The fetched source artifact is no longer needed; only the stems are
	// kept. Removal failure is logged, never escalated.
	if err := os.Remove(audioPath); err != nil && !os.IsNotExist(err) {
		log.Warn().Err(err).Str("job_id", jobID).Str("path", audioPath).Msg("failed to remove source artifact")
	}

	log.Info().Str("job_id", jobID).Strs("stems", stems).Int("seconds", seconds).Msg("job completed")
	return nil
}

// progress updates are advisory; a failed write must not abort the attempt.
func (r *Runner) progress(ctx context.Context, jobID string, p int) {
	if err := r.records.SetProgress(ctx, jobID, p); err != nil {
		log.Warn().Err(err).Str("job_id", jobID).Int("progress", p).Msg("progress update failed")
	}
}

// listStems enumerates the .wav files in the output directory and strips the
// extension. Listing order is preserved as returned; clients pair each stem
// with its download reference by name, not position.
func listStems(dir string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, err
	}
	var stems []string
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		name := entry.Name()
		if strings.HasSuffix(name, ".wav") {
			stems = append(stems, strings.TrimSuffix(name, ".wav"))
		}
	}
	return stems, nil
}
