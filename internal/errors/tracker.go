package errors

import (
	"sync"
	"sync/atomic"
	"time"
)

// FailureTracker counts invocation failures observed by one client or
// coordinator instance. It is owned by that instance and passed by
// reference to response callbacks; there is deliberately no process-wide
// shared counter.
type FailureTracker struct {
	failures uint64

	mu             sync.RWMutex
	lastOccurrence time.Time
	criticalAlerts []CriticalAlert
}

// CriticalAlert records a failure that requires operator attention.
type CriticalAlert struct {
	Category    ErrorCategory
	Err         error
	OccurredAt  time.Time
	Description string
}

// NewFailureTracker creates a tracker with zeroed counters.
func NewFailureTracker() *FailureTracker {
	return &FailureTracker{}
}

// Record counts one failure. Safe for concurrent callbacks.
func (ft *FailureTracker) Record(err error, category ErrorCategory) {
	atomic.AddUint64(&ft.failures, 1)

	ft.mu.Lock()
	ft.lastOccurrence = time.Now()
	if category == ErrorCritical {
		ft.criticalAlerts = append(ft.criticalAlerts, CriticalAlert{
			Category:    category,
			Err:         err,
			OccurredAt:  ft.lastOccurrence,
			Description: err.Error(),
		})
	}
	ft.mu.Unlock()
}

// Failures returns the total failure count.
func (ft *FailureTracker) Failures() uint64 {
	return atomic.LoadUint64(&ft.failures)
}

// LastOccurrence returns the time of the most recent recorded failure.
func (ft *FailureTracker) LastOccurrence() time.Time {
	ft.mu.RLock()
	defer ft.mu.RUnlock()
	return ft.lastOccurrence
}

// CriticalAlerts returns a copy of recorded critical alerts.
func (ft *FailureTracker) CriticalAlerts() []CriticalAlert {
	ft.mu.RLock()
	defer ft.mu.RUnlock()
	out := make([]CriticalAlert, len(ft.criticalAlerts))
	copy(out, ft.criticalAlerts)
	return out
}
