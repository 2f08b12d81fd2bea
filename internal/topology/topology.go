// Package topology tracks which execution site currently owns each
// partition, and hashes partition key values to partitions.
//
// Ownership is published as an immutable View behind an atomic pointer:
// routers always read a complete view, and a rebalance is one pointer store.
// A site that receives work routed under a stale view answers with a
// misrouting status, which the router repairs by re-reading the latest view.
package topology

import (
	"sync/atomic"
)

// View is one immutable snapshot of partition ownership.
type View struct {
	Version        uint64
	PartitionCount int
	owners         []int // partition ID -> site ID
}

// Owner returns the site that leads a partition under this view.
func (v *View) Owner(partitionID int) int {
	if partitionID < 0 || partitionID >= len(v.owners) {
		return -1
	}
	return v.owners[partitionID]
}

// IsOwner reports whether a site leads a partition under this view.
func (v *View) IsOwner(siteID, partitionID int) bool {
	return v.Owner(partitionID) == siteID
}

// Topology publishes ownership views. Reads are lock-free.
type Topology struct {
	current atomic.Pointer[View]
}

// New creates a topology where partition i is initially owned by site i.
func New(partitionCount int) *Topology {
	owners := make([]int, partitionCount)
	for i := range owners {
		owners[i] = i
	}

	t := &Topology{}
	t.current.Store(&View{
		Version:        1,
		PartitionCount: partitionCount,
		owners:         owners,
	})
	return t
}

// Current returns the latest published view.
func (t *Topology) Current() *View {
	return t.current.Load()
}

// Rebalance publishes a new view with the given ownership map and a bumped
// version. The slice is copied; the caller keeps ownership of its argument.
func (t *Topology) Rebalance(owners []int) *View {
	prev := t.current.Load()
	next := &View{
		Version:        prev.Version + 1,
		PartitionCount: prev.PartitionCount,
		owners:         append([]int(nil), owners...),
	}
	t.current.Store(next)
	return next
}

// RotateOwners publishes a view where every partition's ownership moves to
// the next site. Used by rebalance testing and leader-migration drills.
func (t *Topology) RotateOwners() *View {
	prev := t.current.Load()
	owners := make([]int, len(prev.owners))
	for i, owner := range prev.owners {
		owners[i] = (owner + 1) % prev.PartitionCount
	}
	return t.Rebalance(owners)
}
