// Package router is the per-invocation state machine that resolves a
// procedure call to its owning partition, dispatches it, and reconciles
// routing failures without leaking internal status codes to callers.
package router

import (
	"time"

	"github.com/kartikbazzad/sharddb/internal/types"
)

// State is the router-side lifecycle of one invocation.
type State int

const (
	StateSubmitted State = iota
	StateResolved
	StateDispatched
	StateCompleted
	StateRetrying
	StateTimedOut
	StateUnknown
)

func (s State) String() string {
	switch s {
	case StateSubmitted:
		return "SUBMITTED"
	case StateResolved:
		return "RESOLVED"
	case StateDispatched:
		return "DISPATCHED"
	case StateCompleted:
		return "COMPLETED"
	case StateRetrying:
		return "RETRYING"
	case StateTimedOut:
		return "TIMED_OUT"
	case StateUnknown:
		return "UNKNOWN"
	default:
		return "INVALID"
	}
}

// invocationContext is the router-owned state of one logical invocation.
// It lives for exactly one Invoke call and is discarded once a terminal
// status is produced or the caller cancels.
type invocationContext struct {
	inv        *types.Invocation
	state      State
	attempt    int
	dispatched bool
	partition  int
	deadline   time.Time
}
