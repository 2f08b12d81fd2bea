package engine

import (
	"context"

	"github.com/kartikbazzad/sharddb/internal/errors"
	"github.com/kartikbazzad/sharddb/internal/topology"
	"github.com/kartikbazzad/sharddb/internal/types"
)

// work is one dispatch attempt delivered to a site.
type work struct {
	inv         *types.Invocation
	partitionID int
	viewVersion uint64
	respCh      chan *types.Response
}

// Site is a single-threaded execution engine for the partitions it owns.
// Applies on one site are strictly sequential; that, plus the per-partition
// applied registry, is what gives retried invocations at-most-once effects.
type Site struct {
	id      int
	mailbox chan *work
	eng     *Engine
	ctx     context.Context
	cancel  context.CancelFunc
}

func newSite(id, queueSize int, eng *Engine) *Site {
	ctx, cancel := context.WithCancel(context.Background())
	return &Site{
		id:      id,
		mailbox: make(chan *work, queueSize),
		eng:     eng,
		ctx:     ctx,
		cancel:  cancel,
	}
}

// submit queues one attempt, applying backpressure when the mailbox is full.
func (s *Site) submit(w *work) error {
	select {
	case s.mailbox <- w:
		return nil
	default:
		return errors.ErrQueueFull
	}
}

func (s *Site) run() {
	defer s.eng.wg.Done()

	for {
		select {
		case <-s.ctx.Done():
			return
		case w, ok := <-s.mailbox:
			if !ok {
				return
			}
			w.respCh <- s.execute(w)
		}
	}
}

// execute applies one attempt and produces its reply. Internal routing codes
// (misrouted, mispartitioned, restart) are replies too; the router consumes
// them and they never reach a caller.
func (s *Site) execute(w *work) *types.Response {
	view := s.eng.topo.Current()

	// Ownership may have moved since the router resolved this attempt.
	if !view.IsOwner(s.id, w.partitionID) {
		resp := types.NewResponse(types.StatusTxnMisrouted)
		resp.StatusString = "partition is led by another site"
		return resp
	}

	if fault := s.eng.faultFor(w.inv, w.partitionID); fault != 0 {
		resp := types.NewResponse(fault)
		resp.StatusString = "injected fault"
		return resp
	}

	reg, ok := s.eng.registry.lookup(w.inv.Procedure)
	if !ok {
		resp := types.NewResponse(types.StatusGracefulFailure)
		resp.StatusString = errors.ErrProcedureNotFound.Error()
		return resp
	}

	// Re-derive the owning partition from the key values. A mismatch means
	// the attempt was resolved against a stale catalog or hash space.
	if spec := reg.proc.Spec; spec != nil && !spec.Directed {
		idxs := spec.ParamIndexes()
		keys := make([]any, len(idxs))
		for i, idx := range idxs {
			if idx < 0 || idx >= len(w.inv.Args) {
				resp := types.NewResponse(types.StatusGracefulFailure)
				resp.StatusString = "missing partition key argument"
				return resp
			}
			keys[i] = w.inv.Args[idx]
		}
		expected := topology.PartitionForKeys(keys, view.PartitionCount)
		if expected != w.partitionID {
			resp := types.NewResponse(types.StatusTxnMispartitioned)
			resp.StatusString = "invocation reached a partition that does not own its key"
			return resp
		}
	}

	if !reg.permits(w.inv.Role) {
		resp := types.NewResponse(types.StatusGracefulFailure)
		resp.StatusString = "role is not allowed to invoke this procedure"
		return resp
	}

	p := s.eng.partitions[w.partitionID]
	p.mu.Lock()
	defer p.mu.Unlock()

	// At-most-once apply: a replayed invocation identity returns the
	// stored outcome without re-executing.
	if prev, ok := p.applied[w.inv.ID]; ok {
		return prev
	}

	resp := s.apply(reg, p, w.inv)
	if resp.Status.IsTerminal() {
		p.applied[w.inv.ID] = resp
	}
	return resp
}

func (s *Site) apply(reg *registered, p *Partition, inv *types.Invocation) *types.Response {
	tables, err := reg.handler(p, inv.Args)
	if err != nil {
		if abort, ok := err.(*AbortError); ok {
			resp := types.NewResponse(types.StatusUserAbort)
			resp.StatusString = abort.Message
			return resp
		}
		resp := types.NewResponse(types.StatusGracefulFailure)
		resp.StatusString = err.Error()
		return resp
	}

	resp := types.NewResponse(types.StatusSuccess)
	resp.Results = tables
	return resp
}
