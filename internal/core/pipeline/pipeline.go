// Package pipeline runs the fetch and separate stages for one job and drives
// its state machine. The fetch and separation collaborators are external
// processes behind small interfaces; the pipeline checks only that outputs
// exist and are named, never their content.
package pipeline

import (
	"context"
	"errors"
)

// Fetcher retrieves the audio for a source URL into the job workspace and
// returns the local artifact path.
type Fetcher interface {
	Fetch(ctx context.Context, url, workspace string) (string, error)
}

// Separator splits a local audio file into stems under the workspace and
// returns the directory holding them. The device hint is passed through
// verbatim ("" means collaborator default).
type Separator interface {
	Separate(ctx context.Context, audioPath, workspace, device string) (string, error)
}

// FetchError wraps a failure in the fetch stage.
type FetchError struct {
	Err error
}

func (e *FetchError) Error() string { return "fetch: " + e.Err.Error() }
func (e *FetchError) Unwrap() error { return e.Err }

// SeparateError wraps a failure in the separation stage.
type SeparateError struct {
	Err error
}

func (e *SeparateError) Error() string { return "separate: " + e.Err.Error() }
func (e *SeparateError) Unwrap() error { return e.Err }

// ErrNoStems is the attempt failure for a separation run that produced an
// empty output directory.
var ErrNoStems = errors.New("no stems produced")
