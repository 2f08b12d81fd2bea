package catalog

import "sync/atomic"

// Directory maps procedure names to their partition specs.
//
// Reads are lock-free: the whole mapping is published through an atomic
// pointer, so a reader always observes either the old or the new catalog in
// full, never a mixture. Writes happen on the single compilation path only.
type Directory struct {
	entries atomic.Pointer[map[string]*PartitionSpec]
}

// NewDirectory returns an empty directory.
func NewDirectory() *Directory {
	d := &Directory{}
	m := make(map[string]*PartitionSpec)
	d.entries.Store(&m)
	return d
}

// Get returns the partition spec for a procedure. A false result means the
// procedure is multi-partition (or unknown); the coordinated execution path
// decides which.
func (d *Directory) Get(name string) (*PartitionSpec, bool) {
	m := *d.entries.Load()
	spec, ok := m[name]
	return spec, ok
}

// Put registers a spec under a procedure name. Compilation-time only; the
// caller is the single writer. Readers are never blocked: the mapping is
// cloned and republished.
func (d *Directory) Put(name string, spec *PartitionSpec) {
	old := *d.entries.Load()
	next := make(map[string]*PartitionSpec, len(old)+1)
	for k, v := range old {
		next[k] = v
	}
	next[name] = spec
	d.entries.Store(&next)
}

// Swap atomically replaces the whole directory with the contents of another,
// as happens when the schema is recompiled. The donor directory must not be
// mutated afterwards.
func (d *Directory) Swap(next *Directory) {
	d.entries.Store(next.entries.Load())
}

// Len returns the number of registered specs.
func (d *Directory) Len() int {
	return len(*d.entries.Load())
}

// Names returns the registered procedure names. Order is unspecified.
func (d *Directory) Names() []string {
	m := *d.entries.Load()
	names := make([]string, 0, len(m))
	for name := range m {
		names = append(names, name)
	}
	return names
}
