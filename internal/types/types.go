package types

import (
	"time"

	"github.com/google/uuid"
)

// InvocationID uniquely identifies one logical invocation across all of its
// dispatch attempts. The owning partition deduplicates applies by this
// identity, which is what makes transparent retries safe.
type InvocationID = uuid.UUID

// NewInvocationID returns a fresh invocation identity.
func NewInvocationID() InvocationID {
	return uuid.New()
}

// Invocation is a procedure call: a name and an ordered argument list.
// Retried attempts carry the same ID and identical arguments. Role is the
// caller's claimed role, checked against the procedure's ALLOW list.
type Invocation struct {
	ID        InvocationID
	Procedure string
	Args      []any
	Role      string
	Deadline  time.Time
}

// Stats is a point-in-time snapshot of engine counters, served to admin
// tooling through the stats command.
type Stats struct {
	Procedures      int    `json:"procedures"`
	Partitions      int    `json:"partitions"`
	TopologyVersion uint64 `json:"topologyVersion"`
	Invocations     uint64 `json:"invocations"`
	Retries         uint64 `json:"retries"`
	Timeouts        uint64 `json:"timeouts"`
}
