package task

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/nkurosawa/taskrelay/internal/model"
	"github.com/nkurosawa/taskrelay/internal/remote"
)

// Resolver executes status, result, and cancel lookups when the
// originating backend kind is not in hand. It asks the kind currently
// believed dominant first; when that attempt fails with a transport error
// or a not-found-class rejection, it retries exactly once against the
// alternate kind. It never tries more than the two known kinds.
type Resolver struct {
	backends map[model.Kind]remote.Backend
	dominant model.Kind
	logger   *slog.Logger
}

// NewResolver builds a resolver over the two backend kinds. dominant names
// the kind tried first on every lookup.
func NewResolver(workflow, app remote.Backend, dominant model.Kind, logger *slog.Logger) *Resolver {
	return &Resolver{
		backends: map[model.Kind]remote.Backend{
			model.KindWorkflow: workflow,
			model.KindApp:      app,
		},
		dominant: dominant,
		logger:   logger,
	}
}

// Status looks up the normalized status of a task, with fallback.
func (r *Resolver) Status(ctx context.Context, taskID string, region model.Region) (model.TaskStatus, string, error) {
	type statusReply struct {
		status model.TaskStatus
		msg    string
	}
	reply, err := resolve(r, "status", func(b remote.Backend) (statusReply, error) {
		s, m, err := b.Status(ctx, taskID, region)
		return statusReply{status: s, msg: m}, err
	})
	return reply.status, reply.msg, err
}

// Result fetches the output URLs of a succeeded task, with fallback.
func (r *Resolver) Result(ctx context.Context, taskID string, region model.Region) (model.TaskResult, error) {
	return resolve(r, "result", func(b remote.Backend) (model.TaskResult, error) {
		return b.Result(ctx, taskID, region)
	})
}

// resolve runs fn against the dominant backend, retrying once on the
// alternate kind when the failure suggests the task lives there. When both
// attempts fail it returns an aggregate referencing both.
func resolve[T any](r *Resolver, op string, fn func(remote.Backend) (T, error)) (T, error) {
	primary := r.dominant
	v, err := fn(r.backends[primary])
	if err == nil {
		return v, nil
	}
	if !eligibleForFallback(err) {
		return v, err
	}

	alternate := primary.Other()
	r.logger.Warn("primary backend lookup failed, trying alternate kind",
		"op", op,
		"primary", primary,
		"alternate", alternate,
		"error", err,
	)
	backendFallbacksTotal.WithLabelValues(op).Inc()

	v, altErr := fn(r.backends[alternate])
	if altErr == nil {
		return v, nil
	}

	var zero T
	return zero, fmt.Errorf("%s failed on both backend kinds: %w", op, errors.Join(err, altErr))
}

// eligibleForFallback reports whether a failure warrants one attempt on
// the alternate backend kind: transport failures, and rejections that say
// the task does not exist on the kind that was asked.
func eligibleForFallback(err error) bool {
	var te *remote.TransportError
	if errors.As(err, &te) {
		return true
	}
	var ur *remote.UpstreamRejection
	if errors.As(err, &ur) {
		return ur.NotFound()
	}
	return false
}
