package engine

import (
	"fmt"
	"sync/atomic"

	"github.com/kartikbazzad/sharddb/internal/catalog"
	"github.com/kartikbazzad/sharddb/internal/types"
)

// Handler applies one procedure against one partition's state. The partition
// is locked for the duration of the call.
type Handler func(p *Partition, args []any) ([]types.Table, error)

// AbortError is returned by a procedure that voluntarily rolls itself back.
// It maps to USER_ABORT rather than a failure code.
type AbortError struct {
	Message string
}

func (e *AbortError) Error() string { return e.Message }

// Abort builds an AbortError.
func Abort(format string, args ...any) error {
	return &AbortError{Message: fmt.Sprintf(format, args...)}
}

// registered pairs a handler with its compiled catalog entry.
type registered struct {
	proc    catalog.Procedure
	handler Handler
	allowed map[string]struct{}
}

func (r *registered) permits(role string) bool {
	// No ALLOW clause means the procedure is open to any caller.
	if len(r.allowed) == 0 {
		return true
	}
	_, ok := r.allowed[role]
	return ok
}

// Registry maps procedure names to handlers. Like the partition directory,
// it is replaced wholesale on catalog update and read lock-free.
type Registry struct {
	entries atomic.Pointer[map[string]*registered]
}

// NewRegistry returns an empty registry.
func NewRegistry() *Registry {
	r := &Registry{}
	m := make(map[string]*registered)
	r.entries.Store(&m)
	return r
}

// lookup returns the registered procedure, if any.
func (r *Registry) lookup(name string) (*registered, bool) {
	m := *r.entries.Load()
	reg, ok := m[name]
	return reg, ok
}

// Len returns the number of registered procedures.
func (r *Registry) Len() int {
	return len(*r.entries.Load())
}

// replace atomically installs a new procedure set.
func (r *Registry) replace(m map[string]*registered) {
	r.entries.Store(&m)
}

// buildRegistered compiles a catalog entry into its runtime form.
func buildRegistered(proc catalog.Procedure, handler Handler) *registered {
	allowed := make(map[string]struct{}, len(proc.Roles))
	for _, role := range proc.Roles {
		allowed[role] = struct{}{}
	}
	return &registered{proc: proc, handler: handler, allowed: allowed}
}
