package engine

import (
	"context"

	"github.com/kartikbazzad/sharddb/internal/types"
)

// DispatchAll is the coordinated multi-partition path for procedures with
// no partition spec: the invocation runs on every partition in turn and the
// per-partition result tables are concatenated.
//
// Fragments are sequential, so a failure part-way leaves earlier fragments
// applied; that is the OPERATIONAL_FAILURE case the status taxonomy names.
func (e *Engine) DispatchAll(ctx context.Context, inv *types.Invocation) (*types.Response, error) {
	view := e.topo.Current()

	out := types.NewResponse(types.StatusSuccess)
	for pid := 0; pid < view.PartitionCount; pid++ {
		resp, err := e.dispatchFragment(ctx, inv, pid)
		if err != nil {
			return nil, err
		}

		if resp.Status != types.StatusSuccess {
			if pid > 0 {
				partial := types.NewResponse(types.StatusOperationalFailure)
				partial.StatusString = resp.StatusString
				partial.Results = out.Results
				return partial, nil
			}
			return resp, nil
		}
		out.Results = append(out.Results, resp.Results...)
	}

	return out, nil
}

// dispatchFragment sends one per-partition fragment, chasing ownership
// moves: a misrouted fragment is re-sent to the partition's current leader.
func (e *Engine) dispatchFragment(ctx context.Context, inv *types.Invocation, partitionID int) (*types.Response, error) {
	for {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		view := e.topo.Current()
		resp, err := e.Dispatch(ctx, inv, partitionID, view)
		if err != nil {
			return nil, err
		}
		if !resp.Status.IsRetryable() {
			return resp, nil
		}
	}
}
