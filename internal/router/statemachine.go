package router

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/kartikbazzad/sharddb/internal/catalog"
	sderr "github.com/kartikbazzad/sharddb/internal/errors"
	"github.com/kartikbazzad/sharddb/internal/topology"
	"github.com/kartikbazzad/sharddb/internal/types"
)

// run drives one invocation through the routing state machine until a
// terminal status is reached. Retryable internal codes (restart,
// mispartitioned, misrouted) re-resolve against the current directory and
// topology and go around again; the caller never sees them.
func (r *Router) run(ctx context.Context, inv *types.Invocation) *types.Response {
	ictx := &invocationContext{
		inv:      inv,
		state:    StateSubmitted,
		deadline: inv.Deadline,
	}
	if ictx.deadline.IsZero() && r.cfg.CallTimeout > 0 {
		ictx.deadline = time.Now().Add(r.cfg.CallTimeout)
	}

	maxAttempts := r.cfg.MaxAttempts
	if maxAttempts <= 0 {
		maxAttempts = 5
	}

	for {
		if resp, done := r.checkBudget(ctx, ictx, maxAttempts); done {
			return resp
		}

		// A directory miss means the procedure has no partitioning spec:
		// either multi-partition or unknown. The coordinated path's
		// registry lookup tells those apart.
		spec, ok := r.dir.Get(inv.Procedure)
		if !ok || spec == nil {
			ictx.state = StateResolved
			ictx.attempt++
			resp, err := r.dispatchAll(ctx, ictx)
			if err != nil {
				if done := r.recordDispatchError(ictx, err); done != nil {
					return done
				}
				continue
			}
			if resp.Status.IsRetryable() {
				r.noteRetry(ictx, resp.Status)
				continue
			}
			return r.finish(ictx, resp)
		}

		view := r.topo.Current()
		partitionID, rerr := resolvePartition(inv, spec, view)
		if rerr != nil {
			resp := types.NewResponse(types.StatusGracefulFailure)
			resp.StatusString = rerr.Error()
			ictx.state = StateCompleted
			return resp
		}
		ictx.state = StateResolved
		ictx.partition = partitionID
		ictx.attempt++

		resp, err := r.dispatchOne(ctx, ictx, partitionID, view)
		if err != nil {
			if done := r.recordDispatchError(ictx, err); done != nil {
				return done
			}
			continue
		}

		if resp.Status.IsRetryable() {
			r.noteRetry(ictx, resp.Status)
			continue
		}
		if resp.Status.IsInternal() {
			// A non-retryable internal code leaking out of the engine is
			// a bug; mask it rather than hand a routing artifact to the
			// caller.
			r.logger.Error("Internal status %s escaped dispatch for %s", resp.Status, inv.Procedure)
			masked := types.NewResponse(types.StatusUnexpectedFailure)
			masked.StatusString = "internal routing status escaped the dispatch layer"
			ictx.state = StateCompleted
			return masked
		}
		return r.finish(ictx, resp)
	}
}

// checkBudget enforces the attempt and deadline budget before each attempt.
func (r *Router) checkBudget(ctx context.Context, ictx *invocationContext, maxAttempts int) (*types.Response, bool) {
	if err := ctx.Err(); err != nil {
		return r.abandon(ictx, err), true
	}
	if !ictx.deadline.IsZero() && !time.Now().Before(ictx.deadline) {
		return r.expire(ictx), true
	}
	if ictx.attempt >= maxAttempts {
		return r.expire(ictx), true
	}
	return nil, false
}

func (r *Router) dispatchOne(ctx context.Context, ictx *invocationContext, partitionID int, view *topology.View) (*types.Response, error) {
	dctx, cancel := r.attemptContext(ctx, ictx)
	defer cancel()

	ictx.state = StateDispatched
	ictx.dispatched = true
	return r.target.Dispatch(dctx, ictx.inv, partitionID, view)
}

func (r *Router) dispatchAll(ctx context.Context, ictx *invocationContext) (*types.Response, error) {
	dctx, cancel := r.attemptContext(ctx, ictx)
	defer cancel()

	ictx.state = StateDispatched
	ictx.dispatched = true
	return r.target.DispatchAll(dctx, ictx.inv)
}

func (r *Router) attemptContext(ctx context.Context, ictx *invocationContext) (context.Context, context.CancelFunc) {
	if ictx.deadline.IsZero() {
		return context.WithCancel(ctx)
	}
	return context.WithDeadline(ctx, ictx.deadline)
}

// recordDispatchError maps a transport-level dispatch failure. Queue
// pressure consumes an attempt and retries; a stopped server and a spent
// caller context are terminal.
func (r *Router) recordDispatchError(ictx *invocationContext, err error) *types.Response {
	switch {
	case errors.Is(err, sderr.ErrServerStopped):
		ictx.state = StateCompleted
		resp := types.NewResponse(types.StatusServerUnavailable)
		resp.StatusString = "server is shutting down"
		return resp
	case errors.Is(err, sderr.ErrQueueFull), errors.Is(err, sderr.ErrUnknownPartition):
		// Attempt was spent without reaching a site; go around.
		r.noteRetry(ictx, types.StatusTxnRestart)
		return nil
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return r.abandon(ictx, err)
	default:
		ictx.state = StateCompleted
		resp := types.NewResponse(types.StatusUnexpectedFailure)
		resp.StatusString = err.Error()
		return resp
	}
}

func (r *Router) noteRetry(ictx *invocationContext, status types.StatusCode) {
	ictx.state = StateRetrying
	atomic.AddUint64(&r.retries, 1)
	r.logger.Debug("Retrying %s after %s (attempt %d)", ictx.inv.Procedure, status, ictx.attempt)
}

// expire reports an exhausted budget. If an attempt was ever dispatched the
// outcome is unknown on the server side, so the response-timeout code is
// used; otherwise the request never left the router.
func (r *Router) expire(ictx *invocationContext) *types.Response {
	atomic.AddUint64(&r.timeouts, 1)
	if ictx.dispatched {
		ictx.state = StateUnknown
		resp := types.NewResponse(types.StatusClientResponseTimeout)
		resp.StatusString = "no response received within the allowed time"
		return resp
	}
	ictx.state = StateTimedOut
	resp := types.NewResponse(types.StatusClientRequestTimeout)
	resp.StatusString = "request was not dispatched within the allowed time"
	return resp
}

// abandon reports a spent caller context. Cancellation after dispatch means
// the transaction may have committed, so the outcome is unknown rather than
// a clean timeout.
func (r *Router) abandon(ictx *invocationContext, err error) *types.Response {
	if errors.Is(err, context.DeadlineExceeded) {
		return r.expire(ictx)
	}
	if ictx.dispatched {
		ictx.state = StateUnknown
		resp := types.NewResponse(types.StatusResponseUnknown)
		resp.StatusString = "caller cancelled after dispatch; outcome is unknown"
		return resp
	}
	ictx.state = StateTimedOut
	resp := types.NewResponse(types.StatusClientErrorTxnNotSent)
	resp.StatusString = "caller cancelled before dispatch"
	return resp
}

func (r *Router) finish(ictx *invocationContext, resp *types.Response) *types.Response {
	ictx.state = StateCompleted
	return resp
}

// resolvePartition maps an invocation to a partition using the procedure's
// partitioning spec against the given topology view.
func resolvePartition(inv *types.Invocation, spec *catalog.PartitionSpec, view *topology.View) (int, error) {
	if spec.Directed {
		return topology.PartitionForProcedure(inv.Procedure, view.PartitionCount), nil
	}
	idxs := spec.ParamIndexes()
	keys := make([]any, len(idxs))
	for i, idx := range idxs {
		if idx < 0 || idx >= len(inv.Args) {
			return 0, fmt.Errorf("procedure %q requires a partitioning argument at index %d, got %d arguments",
				inv.Procedure, idx, len(inv.Args))
		}
		keys[i] = inv.Args[idx]
	}
	return topology.PartitionForKeys(keys, view.PartitionCount), nil
}
