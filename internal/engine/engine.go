package engine

import (
	"context"
	"strings"
	"sync"
	"sync/atomic"

	"github.com/kartikbazzad/sharddb/internal/catalog"
	"github.com/kartikbazzad/sharddb/internal/config"
	"github.com/kartikbazzad/sharddb/internal/errors"
	"github.com/kartikbazzad/sharddb/internal/logger"
	"github.com/kartikbazzad/sharddb/internal/topology"
	"github.com/kartikbazzad/sharddb/internal/types"
)

// FaultFunc lets tests and drills inject a status reply for an attempt
// before it applies. Returning 0 means no fault.
type FaultFunc func(inv *types.Invocation, partitionID int) types.StatusCode

// Engine owns the partitions, their execution sites, and the currently
// installed catalog. It is the dispatch target of the router.
type Engine struct {
	cfg    *config.Config
	logger *logger.Logger

	topo       *topology.Topology
	dir        *catalog.Directory
	registry   *Registry
	partitions []*Partition
	sites      []*Site

	fault   atomic.Pointer[FaultFunc]
	wg      sync.WaitGroup
	mu      sync.Mutex
	started bool
	stopped atomic.Bool
}

// New builds an engine with one site per partition. Nothing runs until
// Start.
func New(cfg *config.Config, log *logger.Logger) *Engine {
	count := cfg.Cluster.PartitionCount

	e := &Engine{
		cfg:      cfg,
		logger:   log,
		topo:     topology.New(count),
		dir:      catalog.NewDirectory(),
		registry: NewRegistry(),
	}

	e.partitions = make([]*Partition, count)
	e.sites = make([]*Site, count)
	for i := 0; i < count; i++ {
		e.partitions[i] = NewPartition(i)
		e.sites[i] = newSite(i, cfg.Cluster.SiteQueueSize, e)
	}

	return e
}

// Start launches the site goroutines.
func (e *Engine) Start() {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.started {
		return
	}
	e.started = true

	for _, s := range e.sites {
		e.wg.Add(1)
		go s.run()
	}

	e.logger.Info("Engine started: %d partitions", len(e.partitions))
}

// Stop shuts the sites down and waits for in-flight applies to finish.
func (e *Engine) Stop() {
	e.stopped.Store(true)

	e.mu.Lock()
	started := e.started
	e.started = false
	e.mu.Unlock()
	if !started {
		return
	}

	for _, s := range e.sites {
		s.cancel()
	}
	e.wg.Wait()

	e.logger.Info("Engine stopped")
}

// Directory returns the live partition directory the router reads.
func (e *Engine) Directory() *catalog.Directory {
	return e.dir
}

// Topology returns the ownership view publisher.
func (e *Engine) Topology() *topology.Topology {
	return e.topo
}

// InstallCatalog installs a compiled catalog: it binds handlers to every
// procedure, then atomically swaps the procedure registry and the partition
// directory. Readers observe either the old catalog or the new one in full.
//
// Handlers are resolved from the explicit map first, then from the
// generated TABLE.op default procedures.
func (e *Engine) InstallCatalog(procs []catalog.Procedure, handlers map[string]Handler) error {
	entries := make(map[string]*registered, len(procs))
	for _, proc := range procs {
		h := handlers[proc.Name]
		if h == nil {
			h = resolveDefault(proc.Name)
		}
		if h == nil {
			return errors.Compilef(proc.Name, "no handler bound to procedure")
		}
		entries[proc.Name] = buildRegistered(proc, h)
	}

	e.registry.replace(entries)
	e.dir.Swap(catalog.BuildDirectory(procs))

	e.logger.Info("Catalog installed: %d procedures", len(procs))
	return nil
}

// HasDefaultHandler reports whether a procedure name resolves to one of the
// generated TABLE.op default handlers.
func HasDefaultHandler(name string) bool {
	return resolveDefault(name) != nil
}

// resolveDefault recognizes the generated TABLE.op procedure names.
func resolveDefault(name string) Handler {
	i := strings.LastIndex(name, ".")
	if i <= 0 || i == len(name)-1 {
		return nil
	}
	return defaultHandler(name[:i], name[i+1:])
}

// SetFault installs a fault hook. Pass nil to clear.
func (e *Engine) SetFault(f FaultFunc) {
	if f == nil {
		e.fault.Store(nil)
		return
	}
	e.fault.Store(&f)
}

func (e *Engine) faultFor(inv *types.Invocation, partitionID int) types.StatusCode {
	f := e.fault.Load()
	if f == nil {
		return 0
	}
	return (*f)(inv, partitionID)
}

// Dispatch delivers one attempt to the leader of a partition under the
// given view and awaits its reply. A context error means no reply was
// confirmed; the router decides what that makes the outcome.
func (e *Engine) Dispatch(ctx context.Context, inv *types.Invocation, partitionID int, view *topology.View) (*types.Response, error) {
	if e.stopped.Load() {
		return nil, errors.ErrServerStopped
	}

	owner := view.Owner(partitionID)
	if owner < 0 || owner >= len(e.sites) {
		return nil, errors.ErrUnknownPartition
	}

	w := &work{
		inv:         inv,
		partitionID: partitionID,
		viewVersion: view.Version,
		respCh:      make(chan *types.Response, 1),
	}
	if err := e.sites[owner].submit(w); err != nil {
		return nil, err
	}

	select {
	case resp := <-w.respCh:
		return resp, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// Stats reports engine-level counters.
func (e *Engine) Stats() types.Stats {
	return types.Stats{
		Procedures:      e.registry.Len(),
		Partitions:      len(e.partitions),
		TopologyVersion: e.topo.Current().Version,
	}
}

// Partition exposes a partition for white-box tests and admin tooling.
func (e *Engine) Partition(id int) *Partition {
	if id < 0 || id >= len(e.partitions) {
		return nil
	}
	return e.partitions[id]
}
