// Package engine executes procedure invocations on partitioned state.
//
// A Partition owns table data and the applied-invocation registry for one
// shard of the key space. Partitions do NOT own goroutines; sites pull work,
// lock the partition, apply, unlock, and reply.
package engine

import (
	"fmt"
	"sync"

	"github.com/kartikbazzad/sharddb/internal/types"
)

// Partition holds one shard's state.
//
// All applies require mu (exactly one writer at a time). The applied map is
// what enforces at-most-once semantics: a retried invocation identity
// returns the stored response instead of re-executing.
type Partition struct {
	id      int
	mu      sync.Mutex
	tables  map[string]map[string]any
	applied map[types.InvocationID]*types.Response
}

// NewPartition creates an empty partition.
func NewPartition(id int) *Partition {
	return &Partition{
		id:      id,
		tables:  make(map[string]map[string]any),
		applied: make(map[types.InvocationID]*types.Response),
	}
}

// ID returns the partition ID.
func (p *Partition) ID() int {
	return p.id
}

// Get reads a row. The caller must hold the partition through a handler.
func (p *Partition) Get(table, key string) (any, bool) {
	rows, ok := p.tables[table]
	if !ok {
		return nil, false
	}
	v, ok := rows[key]
	return v, ok
}

// Put writes a row.
func (p *Partition) Put(table, key string, value any) {
	rows, ok := p.tables[table]
	if !ok {
		rows = make(map[string]any)
		p.tables[table] = rows
	}
	rows[key] = value
}

// Delete removes a row, reporting whether it existed.
func (p *Partition) Delete(table, key string) bool {
	rows, ok := p.tables[table]
	if !ok {
		return false
	}
	if _, ok := rows[key]; !ok {
		return false
	}
	delete(rows, key)
	return true
}

// RowCount returns the number of rows a table holds on this partition.
func (p *Partition) RowCount(table string) int {
	return len(p.tables[table])
}

// keyString canonicalizes an argument value for row addressing.
func keyString(v any) string {
	switch k := v.(type) {
	case string:
		return k
	case float64:
		// JSON numbers; print integral values without the decimal point.
		if k == float64(int64(k)) {
			return fmt.Sprintf("%d", int64(k))
		}
		return fmt.Sprintf("%v", k)
	default:
		return fmt.Sprintf("%v", v)
	}
}
