package router

import (
	"context"
	"runtime"
	"sync"
	"sync/atomic"

	"github.com/kartikbazzad/sharddb/internal/catalog"
	"github.com/kartikbazzad/sharddb/internal/config"
	"github.com/kartikbazzad/sharddb/internal/logger"
	"github.com/kartikbazzad/sharddb/internal/topology"
	"github.com/kartikbazzad/sharddb/internal/types"
)

// Dispatcher is the execution layer the router sends attempts to: the
// single-partition path and the coordinated multi-partition path.
type Dispatcher interface {
	Dispatch(ctx context.Context, inv *types.Invocation, partitionID int, view *topology.View) (*types.Response, error)
	DispatchAll(ctx context.Context, inv *types.Invocation) (*types.Response, error)
}

// job carries one invocation through the worker pool.
type job struct {
	ctx    context.Context
	inv    *types.Invocation
	respCh chan *types.Response
}

// Router dispatches invocations on a bounded worker pool. Each invocation
// is independent concurrent work; within one invocation, attempts are
// strictly sequential.
type Router struct {
	cfg    config.RouterConfig
	dir    *catalog.Directory
	topo   *topology.Topology
	target Dispatcher
	logger *logger.Logger

	queue       chan *job
	workerCount int
	mu          sync.Mutex
	stopped     bool
	wg          sync.WaitGroup

	invocations uint64
	retries     uint64
	timeouts    uint64
}

// New creates a router over a directory, a topology, and a dispatch target.
func New(cfg config.RouterConfig, dir *catalog.Directory, topo *topology.Topology, target Dispatcher, log *logger.Logger) *Router {
	workerCount := cfg.WorkerCount
	if workerCount <= 0 {
		workerCount = runtime.NumCPU()
	}
	queueSize := cfg.QueueSize
	if queueSize <= 0 {
		queueSize = 1024
	}

	return &Router{
		cfg:         cfg,
		dir:         dir,
		topo:        topo,
		target:      target,
		logger:      log,
		queue:       make(chan *job, queueSize),
		workerCount: workerCount,
	}
}

// Start launches the worker pool.
func (r *Router) Start() {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.stopped {
		return
	}

	for i := 0; i < r.workerCount; i++ {
		r.wg.Add(1)
		go r.worker()
	}

	r.logger.Info("Router started: %d workers", r.workerCount)
}

// Stop stops the worker pool and waits for in-flight invocations.
func (r *Router) Stop() {
	r.mu.Lock()
	if r.stopped {
		r.mu.Unlock()
		return
	}
	r.stopped = true
	close(r.queue)
	r.mu.Unlock()

	r.wg.Wait()
	r.logger.Info("Router stopped")
}

// Invoke runs one invocation to a terminal status. Every caller receives
// exactly one terminal code; internal routing codes never escape.
func (r *Router) Invoke(ctx context.Context, inv *types.Invocation) *types.Response {
	atomic.AddUint64(&r.invocations, 1)

	r.mu.Lock()
	stopped := r.stopped
	r.mu.Unlock()
	if stopped {
		resp := types.NewResponse(types.StatusServerUnavailable)
		resp.StatusString = "router is stopped"
		return resp
	}

	j := &job{ctx: ctx, inv: inv, respCh: make(chan *types.Response, 1)}
	select {
	case r.queue <- j:
	default:
		// Queue full: the invocation was never dispatched.
		resp := types.NewResponse(types.StatusServerUnavailable)
		resp.StatusString = "router dispatch queue is full"
		return resp
	}

	select {
	case resp := <-j.respCh:
		return resp
	case <-ctx.Done():
		// The worker may still be driving the attempt; it owns the
		// terminal decision. Wait for it so no second outcome exists.
		return <-j.respCh
	}
}

func (r *Router) worker() {
	defer r.wg.Done()

	for j := range r.queue {
		j.respCh <- r.run(j.ctx, j.inv)
	}
}

// Stats returns the router's counters.
func (r *Router) Stats() (invocations, retries, timeouts uint64) {
	return atomic.LoadUint64(&r.invocations),
		atomic.LoadUint64(&r.retries),
		atomic.LoadUint64(&r.timeouts)
}
