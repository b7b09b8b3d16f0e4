package handlers

import (
	"context"
	"testing"
	"time"

	"github.com/danielgtaylor/huma/v2"
	"github.com/nadimxht/stem/internal/core/job"
	"github.com/nadimxht/stem/internal/core/service"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubRecords struct {
	jobs map[string]*job.Job
}

func (s *stubRecords) Create(ctx context.Context, url, clientID string) (*job.Job, error) {
	panic("not used")
}

func (s *stubRecords) CreateCompleted(ctx context.Context, url, clientID string, stems []string, stemsDir string) (*job.Job, error) {
	panic("not used")
}

func (s *stubRecords) Get(ctx context.Context, id string) (*job.Job, error) {
	j, ok := s.jobs[id]
	if !ok {
		return nil, job.ErrNotFound
	}
	return j, nil
}

func (s *stubRecords) Delete(ctx context.Context, id string) error { return nil }

func (s *stubRecords) List(ctx context.Context, status job.Status, limit, offset int) ([]*job.Job, error) {
	var out []*job.Job
	for _, j := range s.jobs {
		out = append(out, j)
	}
	return out, nil
}

func newJobsHandler(jobs map[string]*job.Job) *JobsHandler {
	svc := service.New(&stubRecords{jobs: jobs}, nil, nil, nil)
	return NewJobsHandler(svc)
}

func TestGetCompletedJob(t *testing.T) {
	h := newJobsHandler(map[string]*job.Job{
		"j1": {
			ID:       "j1",
			Status:   job.StatusCompleted,
			Progress: 100,
			Stems:    []string{"vocals", "drums"},
		},
	})

	out, err := h.Get(context.Background(), &JobIDInput{ID: "j1"})
	require.NoError(t, err)

	dto := out.Body.Data
	assert.Equal(t, "completed", dto.Status)
	assert.Equal(t, 100, dto.Progress)
	require.Len(t, dto.Stems, 2)
	assert.Equal(t, "vocals", dto.Stems[0].Name)
	assert.Equal(t, "/download/j1/vocals", dto.Stems[0].DownloadURL)
	assert.Empty(t, dto.Error)
	assert.Nil(t, dto.EstimatedCompletion)
}

func TestGetProcessingJob(t *testing.T) {
	h := newJobsHandler(map[string]*job.Job{
		"j1": {
			ID:       "j1",
			Status:   job.StatusProcessing,
			Progress: 50,
			Stems:    []string{"vocals"},
		},
	})

	out, err := h.Get(context.Background(), &JobIDInput{ID: "j1"})
	require.NoError(t, err)

	dto := out.Body.Data
	// Stems are only advertised once the job is completed.
	assert.Empty(t, dto.Stems)
	require.NotNil(t, dto.EstimatedCompletion)
	assert.WithinDuration(t, time.Now().Add(estimatedCompletionOffset), *dto.EstimatedCompletion, time.Minute)
}

func TestGetFailedJob(t *testing.T) {
	h := newJobsHandler(map[string]*job.Job{
		"j1": {ID: "j1", Status: job.StatusError, ErrorMessage: "fetch: unavailable"},
	})

	out, err := h.Get(context.Background(), &JobIDInput{ID: "j1"})
	require.NoError(t, err)

	dto := out.Body.Data
	assert.Equal(t, "fetch: unavailable", dto.Error)
	assert.Nil(t, dto.EstimatedCompletion)
}

func TestGetUnknownJob(t *testing.T) {
	h := newJobsHandler(nil)

	_, err := h.Get(context.Background(), &JobIDInput{ID: "missing"})

	var statusErr huma.StatusError
	require.ErrorAs(t, err, &statusErr)
	assert.Equal(t, 404, statusErr.GetStatus())
}
