package task

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/nkurosawa/taskrelay/internal/model"
	"github.com/nkurosawa/taskrelay/internal/remote"
)

// Submitter routes task creation to the backend named by the selector.
// Unlike lookups, submission always knows its backend kind, so there is no
// fallback here.
type Submitter struct {
	backends map[model.Kind]remote.Backend
	logger   *slog.Logger
}

// NewSubmitter builds a submitter over the two backend kinds.
func NewSubmitter(workflow, app remote.Backend, logger *slog.Logger) *Submitter {
	return &Submitter{
		backends: map[model.Kind]remote.Backend{
			model.KindWorkflow: workflow,
			model.KindApp:      app,
		},
		logger: logger,
	}
}

// Submit creates a task on the selector's backend and returns its handle.
// A zero-value selector names no backend and is rejected before dispatch.
func (s *Submitter) Submit(ctx context.Context, sel model.BackendSelector, bindings []model.NodeBinding, region model.Region) (model.TaskHandle, error) {
	backend, ok := s.backends[sel.Kind()]
	if !ok {
		return model.TaskHandle{}, &remote.ValidationError{Reason: fmt.Sprintf("selector kind %q names no backend", sel.Kind())}
	}

	handle, err := backend.Submit(ctx, sel, bindings, region)
	if err != nil {
		submissionsTotal.WithLabelValues(string(sel.Kind()), string(region), "error").Inc()
		return model.TaskHandle{}, err
	}

	submissionsTotal.WithLabelValues(string(sel.Kind()), string(region), "ok").Inc()
	s.logger.Info("task submitted",
		"task_id", handle.TaskID,
		"backend", handle.Kind,
		"region", handle.Region,
	)
	return handle, nil
}
