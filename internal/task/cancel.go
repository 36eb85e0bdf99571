package task

import (
	"context"

	"github.com/nkurosawa/taskrelay/internal/model"
	"github.com/nkurosawa/taskrelay/internal/remote"
)

// Cancel requests cancellation of a task whose backend kind is not in
// hand, using the same two-kind fallback as status and result lookups.
// The provider treats repeat cancellation of a terminal task as a no-op
// success, so calling this twice on the same task is benign.
func (r *Resolver) Cancel(ctx context.Context, taskID string, region model.Region) (model.CancelOutcome, error) {
	return resolve(r, "cancel", func(b remote.Backend) (model.CancelOutcome, error) {
		return b.Cancel(ctx, taskID, region)
	})
}
