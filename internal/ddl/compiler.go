package ddl

import (
	"github.com/kartikbazzad/sharddb/internal/catalog"
	"github.com/kartikbazzad/sharddb/internal/errors"
	"github.com/kartikbazzad/sharddb/internal/logger"
)

// Compiler builds a fresh catalog from CREATE PROCEDURE declarations.
//
// Each schema recompile uses a new Compiler; the finished directory is then
// swapped into the running engine wholesale. The compiler itself is
// single-threaded and holds no state shared with the invocation path.
type Compiler struct {
	dir    *catalog.Directory
	procs  []catalog.Procedure
	byName map[string]struct{}
	logger *logger.Logger
}

// NewCompiler returns a compiler with an empty target catalog.
func NewCompiler(log *logger.Logger) *Compiler {
	return &Compiler{
		dir:    catalog.NewDirectory(),
		byName: make(map[string]struct{}),
		logger: log,
	}
}

// Seed pre-populates the compiler with already-compiled procedures, such as
// a catalog artifact loaded at startup.
func (c *Compiler) Seed(procs []catalog.Procedure) {
	for _, proc := range procs {
		if _, dup := c.byName[proc.Name]; dup {
			continue
		}
		c.byName[proc.Name] = struct{}{}
		c.procs = append(c.procs, proc)
		if proc.Spec != nil {
			c.dir.Put(proc.Name, proc.Spec)
		}
	}
}

// CompileProcedure compiles one CREATE PROCEDURE declaration: the procedure
// name plus the clause substring that followed it (may be empty). On any
// failure nothing is registered for the procedure.
func (c *Compiler) CompileProcedure(name, clauses string) error {
	if _, dup := c.byName[name]; dup {
		return errors.Compilef(name, "procedure is already defined")
	}

	roles := NewRoleList()
	pc, err := ParseCreateProcedureClauses(clauses, roles)
	if err != nil {
		if ce, ok := err.(*errors.CompileError); ok && ce.Procedure == "" {
			ce.Procedure = name
		}
		return err
	}

	spec, err := AddProcedurePartitionInfo(name, pc, c.dir)
	if err != nil {
		return err
	}

	c.byName[name] = struct{}{}
	c.procs = append(c.procs, catalog.Procedure{
		Name:  name,
		Spec:  spec,
		Roles: roles.Names(),
	})

	if spec != nil {
		c.logger.Debug("Compiled procedure %s: %s", name, spec)
	} else {
		c.logger.Debug("Compiled procedure %s: multi-partition", name)
	}
	return nil
}

// Directory returns the directory built so far. It becomes live only when
// the engine swaps it in.
func (c *Compiler) Directory() *catalog.Directory {
	return c.dir
}

// Procedures returns the compiled catalog entries in compilation order.
func (c *Compiler) Procedures() []catalog.Procedure {
	out := make([]catalog.Procedure, len(c.procs))
	copy(out, c.procs)
	return out
}
