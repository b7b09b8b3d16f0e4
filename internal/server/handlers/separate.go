package handlers

import (
	"context"
	"errors"
	"net/url"
	"strings"

	"github.com/danielgtaylor/huma/v2"
	"github.com/nadimxht/stem/internal/core/admission"
	"github.com/nadimxht/stem/internal/core/service"
	"github.com/nadimxht/stem/internal/server/middleware"
)

// SeparateHandler accepts separation requests. Source URL validation
// (allow-listed domains) lives here, in the web layer, not in the core.
type SeparateHandler struct {
	svc            *service.Service
	allowedDomains map[string]bool
}

func NewSeparateHandler(svc *service.Service, allowedDomains []string) *SeparateHandler {
	allowed := make(map[string]bool, len(allowedDomains))
	for _, d := range allowedDomains {
		allowed[strings.ToLower(d)] = true
	}
	return &SeparateHandler{svc: svc, allowedDomains: allowed}
}

type SeparateInput struct {
	Body struct {
		URL string `json:"url" minLength:"1" doc:"Source track URL (allow-listed domains only)"`
	}
}

type SubmitDTO struct {
	JobID   string `json:"job_id" doc:"Job ID, poll /jobs/{id} for status"`
	Status  string `json:"status" doc:"Job status"`
	Message string `json:"message" doc:"Human-readable outcome"`
}

func (h *SeparateHandler) Separate(ctx context.Context, input *SeparateInput) (*DataOutput[SubmitDTO], error) {
	if !h.validSourceURL(input.Body.URL) {
		return nil, huma.Error400BadRequest("URL is not an allowed source")
	}

	clientID := middleware.GetClientIP(ctx)

	result, err := h.svc.Submit(ctx, input.Body.URL, clientID)
	if err != nil {
		var tooMany *admission.TooManyActiveError
		if errors.As(err, &tooMany) {
			return nil, huma.Error429TooManyRequests(tooMany.Error())
		}
		return nil, huma.Error500InternalServerError("failed to submit job", err)
	}

	msg := "job submitted"
	if result.CacheHit {
		msg = "job completed (cached result)"
	}
	return OK(SubmitDTO{
		JobID:   result.Job.ID,
		Status:  string(result.Job.Status),
		Message: msg,
	}), nil
}

func (h *SeparateHandler) validSourceURL(raw string) bool {
	u, err := url.Parse(raw)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") {
		return false
	}
	return h.allowedDomains[strings.ToLower(u.Hostname())]
}
