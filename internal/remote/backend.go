package remote

import (
	"context"

	"github.com/nkurosawa/taskrelay/internal/model"
)

// Backend is the interface both remote execution engines expose to the
// task layer. The two implementations (workflow engine, hosted app) speak
// to structurally different endpoints but present the same operations.
type Backend interface {
	// Kind reports which execution engine this backend talks to.
	Kind() model.Kind

	// Submit creates a task from the bound node list and returns its handle.
	Submit(ctx context.Context, sel model.BackendSelector, bindings []model.NodeBinding, region model.Region) (model.TaskHandle, error)

	// Status returns the normalized task status plus the raw provider message.
	Status(ctx context.Context, taskID string, region model.Region) (model.TaskStatus, string, error)

	// Result returns the ordered output URLs of a succeeded task.
	Result(ctx context.Context, taskID string, region model.Region) (model.TaskResult, error)

	// Cancel requests task cancellation. Cancelling an already terminal
	// task is a benign success.
	Cancel(ctx context.Context, taskID string, region model.Region) (model.CancelOutcome, error)
}
