package engine

import (
	"fmt"

	"github.com/kartikbazzad/sharddb/internal/catalog"
	"github.com/kartikbazzad/sharddb/internal/types"
)

// Default procedures generated for every single-key partitioned procedure's
// table: TABLE.insert, TABLE.select, TABLE.upsert, TABLE.delete, each routed
// by argument 0 on the table's partitioning column.

// DefaultProcedures returns the generated catalog entries for a table
// partitioned on the given column.
func DefaultProcedures(table, column string) []catalog.Procedure {
	names := []string{"insert", "select", "upsert", "delete"}
	procs := make([]catalog.Procedure, 0, len(names))
	for _, op := range names {
		procs = append(procs, catalog.Procedure{
			Name: fmt.Sprintf("%s.%s", table, op),
			Spec: catalog.NewSingleKeySpec(table, column, 0),
		})
	}
	return procs
}

// defaultHandler builds the handler for one generated procedure name, or
// nil when the name is not of the TABLE.op form.
func defaultHandler(table, op string) Handler {
	switch op {
	case "insert":
		return func(p *Partition, args []any) ([]types.Table, error) {
			if len(args) < 2 {
				return nil, fmt.Errorf("%s.insert expects (key, value)", table)
			}
			key := keyString(args[0])
			if _, exists := p.Get(table, key); exists {
				return nil, fmt.Errorf("constraint violation: key %s already exists in %s", key, table)
			}
			p.Put(table, key, args[1])
			return countTable(1), nil
		}
	case "upsert":
		return func(p *Partition, args []any) ([]types.Table, error) {
			if len(args) < 2 {
				return nil, fmt.Errorf("%s.upsert expects (key, value)", table)
			}
			p.Put(table, keyString(args[0]), args[1])
			return countTable(1), nil
		}
	case "select":
		return func(p *Partition, args []any) ([]types.Table, error) {
			if len(args) < 1 {
				return nil, fmt.Errorf("%s.select expects (key)", table)
			}
			key := keyString(args[0])
			value, ok := p.Get(table, key)
			tbl := types.Table{Columns: []string{"key", "value"}}
			if ok {
				tbl.Rows = [][]any{{key, value}}
			}
			return []types.Table{tbl}, nil
		}
	case "delete":
		return func(p *Partition, args []any) ([]types.Table, error) {
			if len(args) < 1 {
				return nil, fmt.Errorf("%s.delete expects (key)", table)
			}
			if p.Delete(table, keyString(args[0])) {
				return countTable(1), nil
			}
			return countTable(0), nil
		}
	}
	return nil
}

// countTable is the single-cell modified-row-count result shape shared by
// the write procedures.
func countTable(n int) []types.Table {
	return []types.Table{{
		Columns: []string{"modified"},
		Rows:    [][]any{{n}},
	}}
}
