package event

import "time"

type EventType string

const (
	EventJobCompleted EventType = "job.completed"
	EventJobFailed    EventType = "job.failed"
)

type Event struct {
	Type      EventType
	Timestamp time.Time
	Payload   any
}

// JobEvent is the payload for job lifecycle events published by the worker.
type JobEvent struct {
	JobID             string
	URL               string
	Stems             []string
	StemsDir          string
	ProcessingSeconds int
	Error             string
}
