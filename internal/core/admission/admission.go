package admission

import (
	"context"
	"fmt"
)

// ActiveCounter reports how many non-terminal jobs a client currently owns.
// Implemented by the job store; the count comes from live rows, so admission
// stays correct across crashes and early returns.
type ActiveCounter interface {
	CountActive(ctx context.Context, clientID string) (int, error)
}

// TooManyActiveError rejects a submission from a client already at its
// concurrency cap.
type TooManyActiveError struct {
	Limit int
}

func (e *TooManyActiveError) Error() string {
	return fmt.Sprintf("too many concurrent jobs (limit %d)", e.Limit)
}

// Controller gates new submissions per client against a concurrency cap.
type Controller struct {
	counter ActiveCounter
	limit   int
}

func NewController(counter ActiveCounter, limit int) *Controller {
	return &Controller{counter: counter, limit: limit}
}

// Admit checks whether the client may create a new job. Pure read; no side
// effect beyond the decision.
func (c *Controller) Admit(ctx context.Context, clientID string) error {
	active, err := c.counter.CountActive(ctx, clientID)
	if err != nil {
		return fmt.Errorf("count active jobs: %w", err)
	}
	if active >= c.limit {
		return &TooManyActiveError{Limit: c.limit}
	}
	return nil
}
