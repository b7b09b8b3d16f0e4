// Package service is the submission-side orchestration: admission, cache
// lookup, record creation and queue handoff, plus status and stem retrieval
// for the API layer.
package service

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"regexp"

	"github.com/nadimxht/stem/internal/core/cache"
	"github.com/nadimxht/stem/internal/core/job"
	"github.com/nadimxht/stem/internal/core/queue"
	"github.com/rs/zerolog/log"
)

// Records is the slice of the job store the submission path uses.
type Records interface {
	Create(ctx context.Context, url, clientID string) (*job.Job, error)
	CreateCompleted(ctx context.Context, url, clientID string, stems []string, stemsDir string) (*job.Job, error)
	Get(ctx context.Context, id string) (*job.Job, error)
	Delete(ctx context.Context, id string) error
	List(ctx context.Context, status job.Status, limit, offset int) ([]*job.Job, error)
}

// ResultCache is the read side of the URL result cache.
type ResultCache interface {
	Lookup(ctx context.Context, url string) (*cache.Entry, error)
}

// Tasks hands accepted work to the workers.
type Tasks interface {
	Enqueue(ctx context.Context, t queue.Task) error
}

// Admitter gates submissions per client.
type Admitter interface {
	Admit(ctx context.Context, clientID string) error
}

// ErrInvalidStemName rejects stem names outside [A-Za-z0-9_-], before any
// filesystem access.
var ErrInvalidStemName = fmt.Errorf("invalid stem name")

var stemNameRe = regexp.MustCompile(`^[A-Za-z0-9_-]+$`)

type Service struct {
	records Records
	cache   ResultCache
	tasks   Tasks
	admit   Admitter
}

func New(records Records, resultCache ResultCache, tasks Tasks, admit Admitter) *Service {
	return &Service{
		records: records,
		cache:   resultCache,
		tasks:   tasks,
		admit:   admit,
	}
}

type SubmitResult struct {
	Job      *job.Job
	CacheHit bool
}

// Submit runs the submission flow: admission check, cache lookup, then
// record creation + enqueue as one logical unit. A cache hit synthesizes a
// completed record by value copy and consumes no background capacity.
func (s *Service) Submit(ctx context.Context, url, clientID string) (*SubmitResult, error) {
	if err := s.admit.Admit(ctx, clientID); err != nil {
		return nil, err
	}

	entry, err := s.cache.Lookup(ctx, url)
	if err != nil {
		// The cache is an optimization; an unreachable cache degrades to a
		// miss rather than failing the submission.
		log.Warn().Err(err).Str("url", url).Msg("cache lookup failed, treating as miss")
	}
	if entry != nil {
		j, err := s.records.CreateCompleted(ctx, url, clientID, entry.Stems, entry.StemsDir)
		if err != nil {
			return nil, err
		}
		log.Info().Str("job_id", j.ID).Str("url", url).Msg("cache hit, job completed immediately")
		return &SubmitResult{Job: j, CacheHit: true}, nil
	}

	j, err := s.records.Create(ctx, url, clientID)
	if err != nil {
		return nil, err
	}

	if err := s.tasks.Enqueue(ctx, queue.Task{JobID: j.ID, URL: url}); err != nil {
		// A pending record must never exist without an enqueued task.
		if derr := s.records.Delete(ctx, j.ID); derr != nil {
			log.Error().Err(derr).Str("job_id", j.ID).Msg("failed to remove record after enqueue failure")
		}
		return nil, fmt.Errorf("enqueue job: %w", err)
	}

	log.Info().Str("job_id", j.ID).Str("url", url).Str("client", clientID).Msg("job enqueued")
	return &SubmitResult{Job: j}, nil
}

// Status fetches the job record by id; job.ErrNotFound for unknown ids.
func (s *Service) Status(ctx context.Context, id string) (*job.Job, error) {
	return s.records.Get(ctx, id)
}

// List returns jobs newest-first, optionally filtered by status.
func (s *Service) List(ctx context.Context, status job.Status, limit, offset int) ([]*job.Job, error) {
	return s.records.List(ctx, status, limit, offset)
}

// StemPath resolves the on-disk wav for one stem of a completed job. The
// stem name is validated against a restrictive charset before any
// filesystem access; non-completed jobs and missing files surface as
// job.ErrNotFound.
func (s *Service) StemPath(ctx context.Context, jobID, stem string) (string, error) {
	if !stemNameRe.MatchString(stem) {
		return "", ErrInvalidStemName
	}

	j, err := s.records.Get(ctx, jobID)
	if err != nil {
		return "", err
	}
	if j.Status != job.StatusCompleted || j.StemsDir == "" {
		return "", job.ErrNotFound
	}

	path := filepath.Join(j.StemsDir, stem+".wav")
	if _, err := os.Stat(path); err != nil {
		return "", job.ErrNotFound
	}
	return path, nil
}
