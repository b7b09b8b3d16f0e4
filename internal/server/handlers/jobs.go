package handlers

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/danielgtaylor/huma/v2"
	"github.com/nadimxht/stem/internal/core/job"
	"github.com/nadimxht/stem/internal/core/service"
)

// Advisory only: non-terminal jobs advertise a fixed completion offset, not
// a real estimate.
const estimatedCompletionOffset = 3 * time.Minute

type JobsHandler struct {
	svc *service.Service
}

func NewJobsHandler(svc *service.Service) *JobsHandler {
	return &JobsHandler{svc: svc}
}

type JobIDInput struct {
	ID string `path:"id" doc:"Job ID"`
}

type ListJobsInput struct {
	Status string `query:"status" enum:",pending,processing,completed,error" doc:"Filter by status"`
	Limit  int    `query:"limit" default:"100" minimum:"1" maximum:"500" doc:"Max results"`
	Offset int    `query:"offset" default:"0" minimum:"0" doc:"Offset"`
}

type StemDTO struct {
	Name        string `json:"name" doc:"Stem name"`
	DownloadURL string `json:"download_url" doc:"Path to fetch this stem"`
}

type StatusDTO struct {
	JobID               string     `json:"job_id" doc:"Job ID"`
	Status              string     `json:"status" doc:"Job status"`
	Progress            int        `json:"progress" doc:"Progress 0-100"`
	Stems               []StemDTO  `json:"stems" doc:"Stems (populated once completed)"`
	Error               string     `json:"error,omitempty" doc:"Failure message (error status only)"`
	CreatedAt           time.Time  `json:"created_at" doc:"Submission time"`
	EstimatedCompletion *time.Time `json:"estimated_completion,omitempty" doc:"Advisory completion estimate for non-terminal jobs"`
}

type JobSummaryDTO struct {
	ID        string    `json:"id" doc:"Job ID"`
	URL       string    `json:"url" doc:"Source URL"`
	Status    string    `json:"status" doc:"Job status"`
	Progress  int       `json:"progress" doc:"Progress 0-100"`
	CreatedAt time.Time `json:"created_at" doc:"Submission time"`
	UpdatedAt time.Time `json:"updated_at" doc:"Last mutation time"`
}

func (h *JobsHandler) Get(ctx context.Context, input *JobIDInput) (*DataOutput[StatusDTO], error) {
	j, err := h.svc.Status(ctx, input.ID)
	if err != nil {
		if errors.Is(err, job.ErrNotFound) {
			return nil, huma.Error404NotFound("job not found")
		}
		return nil, huma.Error500InternalServerError("failed to fetch job", err)
	}

	dto := StatusDTO{
		JobID:     j.ID,
		Status:    string(j.Status),
		Progress:  j.Progress,
		Stems:     []StemDTO{},
		CreatedAt: j.CreatedAt,
	}

	if j.Status == job.StatusCompleted {
		for _, stem := range j.Stems {
			dto.Stems = append(dto.Stems, StemDTO{
				Name:        stem,
				DownloadURL: fmt.Sprintf("/download/%s/%s", j.ID, stem),
			})
		}
	}
	if j.Status == job.StatusError {
		dto.Error = j.ErrorMessage
	}
	if !j.Terminal() {
		est := time.Now().Add(estimatedCompletionOffset)
		dto.EstimatedCompletion = &est
	}

	return OK(dto), nil
}

func (h *JobsHandler) List(ctx context.Context, input *ListJobsInput) (*DataOutput[[]JobSummaryDTO], error) {
	jobs, err := h.svc.List(ctx, job.Status(input.Status), input.Limit, input.Offset)
	if err != nil {
		return nil, huma.Error500InternalServerError("failed to list jobs", err)
	}

	dtos := make([]JobSummaryDTO, len(jobs))
	for i, j := range jobs {
		dtos[i] = JobSummaryDTO{
			ID:        j.ID,
			URL:       j.URL,
			Status:    string(j.Status),
			Progress:  j.Progress,
			CreatedAt: j.CreatedAt,
			UpdatedAt: j.UpdatedAt,
		}
	}
	return OK(dtos), nil
}
