package task

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/nkurosawa/taskrelay/internal/model"
)

// Poller defaults applied when the caller passes zero values.
const (
	DefaultPollInterval = 5 * time.Second
	DefaultMaxAttempts  = 60
)

// ErrTimeoutExceeded reports that the poll budget ran out before the task
// reached a terminal state. It is distinct from task failure: the task may
// well still be processing.
var ErrTimeoutExceeded = errors.New("poll attempts exhausted before task completed")

// TerminalError reports that a task ended in a non-success terminal state,
// carrying the provider's message.
type TerminalError struct {
	Status  model.TaskStatus
	Message string
}

func (e *TerminalError) Error() string {
	return fmt.Sprintf("task ended %s: %s", e.Status, e.Message)
}

// Poller drives wait-for-completion loops on top of the resolver. Status
// queries within one wait are strictly sequential.
type Poller struct {
	resolver *Resolver
	logger   *slog.Logger
}

// NewPoller creates a poller over the given resolver.
func NewPoller(resolver *Resolver, logger *slog.Logger) *Poller {
	return &Poller{resolver: resolver, logger: logger}
}

// WaitForCompletion polls the task's status every interval until it
// reaches a terminal state or maxAttempts non-terminal queries have been
// made. On success it fetches the result exactly once and returns it; on
// failure or cancellation it returns a *TerminalError; on budget
// exhaustion it returns ErrTimeoutExceeded.
func (p *Poller) WaitForCompletion(ctx context.Context, taskID string, region model.Region, interval time.Duration, maxAttempts int) (model.TaskResult, error) {
	if interval <= 0 {
		interval = DefaultPollInterval
	}
	if maxAttempts <= 0 {
		maxAttempts = DefaultMaxAttempts
	}

	for attempt := 1; attempt <= maxAttempts; attempt++ {
		status, msg, err := p.resolver.Status(ctx, taskID, region)
		if err != nil {
			return model.TaskResult{}, err
		}

		p.logger.Debug("poll",
			"task_id", taskID,
			"attempt", attempt,
			"status", status,
		)

		switch status {
		case model.StatusSucceeded:
			return p.resolver.Result(ctx, taskID, region)
		case model.StatusFailed, model.StatusCancelled:
			return model.TaskResult{}, &TerminalError{Status: status, Message: msg}
		}

		if attempt == maxAttempts {
			break
		}

		select {
		case <-ctx.Done():
			return model.TaskResult{}, fmt.Errorf("wait for task %s: %w", taskID, ctx.Err())
		case <-time.After(interval):
		}
	}

	pollTimeoutsTotal.Inc()
	return model.TaskResult{}, fmt.Errorf("task %s after %d attempts: %w", taskID, maxAttempts, ErrTimeoutExceeded)
}
