package job

import (
	"errors"
	"strings"
	"time"
)

// Status is the lifecycle state of a job. Pending, Completed and Error are
// stable; Processing is transient and only ever moves to Completed or Error.
type Status string

const (
	StatusPending    Status = "pending"
	StatusProcessing Status = "processing"
	StatusCompleted  Status = "completed"
	StatusError      Status = "error"
)

var (
	// ErrNotFound is returned when no job exists for the given id.
	ErrNotFound = errors.New("job not found")

	// ErrInvalidTransition is returned when a status update would violate
	// the state machine (e.g. completing a job that is not processing).
	ErrInvalidTransition = errors.New("invalid status transition")
)

// Job is one submitted separation request and its lifecycle state. The row
// in Postgres is the sole source of truth; the result cache is an
// optimization and never authoritative.
type Job struct {
	ID                string
	URL               string
	Status            Status
	Progress          int
	Stems             []string
	StemsDir          string
	ErrorMessage      string
	ClientID          string
	ProcessingSeconds int
	CreatedAt         time.Time
	UpdatedAt         time.Time
}

// Terminal reports whether the job has reached a final state.
func (j *Job) Terminal() bool {
	return j.Status == StatusCompleted || j.Status == StatusError
}

// joinStems flattens a stem name list for storage; splitStems reverses it.
func joinStems(stems []string) string {
	return strings.Join(stems, ",")
}

func splitStems(s string) []string {
	if s == "" {
		return nil
	}
	parts := strings.Split(s, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
