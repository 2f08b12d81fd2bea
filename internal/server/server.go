// Package server assembles a running sharddb node: engine, router, catalog
// artifact, and the IPC surface, with one lifecycle for all of them.
package server

import (
	"context"
	"fmt"
	"os"
	"sync"
	"time"

	"github.com/kartikbazzad/sharddb/internal/catalog"
	"github.com/kartikbazzad/sharddb/internal/config"
	"github.com/kartikbazzad/sharddb/internal/ddl"
	"github.com/kartikbazzad/sharddb/internal/engine"
	"github.com/kartikbazzad/sharddb/internal/errors"
	"github.com/kartikbazzad/sharddb/internal/ipc"
	"github.com/kartikbazzad/sharddb/internal/logger"
	"github.com/kartikbazzad/sharddb/internal/metrics"
	"github.com/kartikbazzad/sharddb/internal/router"
	"github.com/kartikbazzad/sharddb/internal/types"
)

// App is one sharddb node.
type App struct {
	cfg      *config.Config
	logger   *logger.Logger
	eng      *engine.Engine
	router   *router.Router
	artifact *catalog.Artifact
	exporter *metrics.Exporter
	ipc      *ipc.Server

	// compileMu serializes runtime DDL against artifact writes.
	compileMu sync.Mutex
	compiler  *ddl.Compiler
	handlers  map[string]engine.Handler
}

// New assembles a node from config. The catalog artifact is loaded if it
// exists; a missing artifact starts the node with an empty catalog.
func New(cfg *config.Config, log *logger.Logger) (*App, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if err := os.MkdirAll(cfg.DataDir, 0o755); err != nil {
		return nil, fmt.Errorf("create data dir: %w", err)
	}

	a := &App{
		cfg:      cfg,
		logger:   log,
		eng:      engine.New(cfg, log),
		artifact: catalog.NewArtifact(cfg.ArtifactPath(), log),
		exporter: metrics.NewExporter(),
		compiler: ddl.NewCompiler(log),
		handlers: make(map[string]engine.Handler),
	}

	if _, err := os.Stat(cfg.ArtifactPath()); err == nil {
		procs, err := a.artifact.Load()
		if err != nil {
			return nil, err
		}
		a.compiler.Seed(procs)
		log.Info("Loaded catalog artifact: %d procedures", len(procs))
	}

	a.router = router.New(cfg.Router, a.eng.Directory(), a.eng.Topology(), a.eng, log)

	handler := ipc.NewHandler(&recordingInvoker{router: a.router, exporter: a.exporter}, a, cfg, log)
	a.ipc = ipc.NewServer(cfg, handler, log)

	return a, nil
}

// RegisterHandler binds an explicit handler to a procedure name. Must be
// called before Start; procedures without an explicit handler fall back to
// the generated TABLE.op defaults.
func (a *App) RegisterHandler(name string, h engine.Handler) {
	a.handlers[name] = h
}

// Start installs the compiled catalog and brings up the engine, the router,
// and the IPC listener.
func (a *App) Start() error {
	if err := a.eng.InstallCatalog(a.compiler.Procedures(), a.handlers); err != nil {
		return err
	}

	a.eng.Start()
	a.router.Start()

	if err := a.ipc.Start(); err != nil {
		a.router.Stop()
		a.eng.Stop()
		return err
	}

	return nil
}

// Stop tears the node down in reverse order: stop accepting work, drain the
// router, then stop the sites.
func (a *App) Stop() {
	if err := a.ipc.Stop(); err != nil {
		a.logger.Error("IPC shutdown: %v", err)
	}
	a.router.Stop()
	a.eng.Stop()
	if err := a.logger.Sync(); err != nil {
		a.logger.Debug("Log sync: %v", err)
	}
}

// Router exposes the invocation entry point for in-process callers.
func (a *App) Router() *router.Router {
	return a.router
}

// Engine exposes the engine for admin tooling and tests.
func (a *App) Engine() *engine.Engine {
	return a.eng
}

// CompileProcedure compiles one CREATE PROCEDURE declaration at runtime,
// installs the grown catalog, and persists the artifact. Nothing stays
// visible on any failure: a failed install or artifact write rewinds the
// compiler and the live catalog to their prior state.
func (a *App) CompileProcedure(name, clauses string) error {
	a.compileMu.Lock()
	defer a.compileMu.Unlock()

	if a.handlers[name] == nil && !engine.HasDefaultHandler(name) {
		return errors.Compilef(name, "no handler bound to procedure")
	}

	prior := a.compiler.Procedures()

	if err := a.compiler.CompileProcedure(name, clauses); err != nil {
		return err
	}

	procs := a.compiler.Procedures()
	if err := a.eng.InstallCatalog(procs, a.handlers); err != nil {
		a.restoreCatalog(prior)
		return err
	}

	if err := a.artifact.Save(procs); err != nil {
		a.logger.Error("Catalog artifact write failed: %v", err)
		a.restoreCatalog(prior)
		return err
	}

	return nil
}

// restoreCatalog rewinds the compiler and the installed engine catalog to a
// prior procedure list. Caller holds compileMu.
func (a *App) restoreCatalog(prior []catalog.Procedure) {
	c := ddl.NewCompiler(a.logger)
	c.Seed(prior)
	a.compiler = c

	if err := a.eng.InstallCatalog(prior, a.handlers); err != nil {
		a.logger.Error("Catalog rollback failed: %v", err)
	}
}

// Catalog lists the compiled procedures for the admin surface.
func (a *App) Catalog() []ipc.CatalogEntry {
	a.compileMu.Lock()
	procs := a.compiler.Procedures()
	a.compileMu.Unlock()

	entries := make([]ipc.CatalogEntry, 0, len(procs))
	for _, proc := range procs {
		spec := "MULTI-PARTITION"
		if proc.Spec != nil {
			spec = proc.Spec.String()
		}
		entries = append(entries, ipc.CatalogEntry{
			Procedure: proc.Name,
			Spec:      spec,
			Roles:     proc.Roles,
		})
	}
	return entries
}

// Stats merges engine and router counters into one snapshot.
func (a *App) Stats() types.Stats {
	stats := a.eng.Stats()
	stats.Invocations, stats.Retries, stats.Timeouts = a.router.Stats()
	return stats
}

// MetricsText renders the exposition-format metrics page.
func (a *App) MetricsText() string {
	stats := a.Stats()
	return a.exporter.Export(&stats)
}

// recordingInvoker feeds every terminal outcome into the metrics exporter
// on its way back to the IPC handler.
type recordingInvoker struct {
	router   *router.Router
	exporter *metrics.Exporter
}

func (ri *recordingInvoker) Invoke(ctx context.Context, inv *types.Invocation) *types.Response {
	start := time.Now()
	resp := ri.router.Invoke(ctx, inv)
	ri.exporter.RecordInvocation(inv.Procedure, resp.Status, time.Since(start))
	return resp
}
