// Package types defines shared types used across the engine.
//
// StatusCode is the closed set of invocation outcome codes. The numeric
// values are part of the wire protocol and must never be renumbered.
package types

// StatusCode is the signed one-byte outcome code attached to every
// procedure invocation response.
type StatusCode int8

const (
	// StatusSuccess indicates the procedure executed and committed.
	StatusSuccess StatusCode = 1

	// StatusUserAbort indicates the procedure executed and was voluntarily
	// aborted and rolled back by the procedure code itself.
	StatusUserAbort StatusCode = -1

	// StatusGracefulFailure indicates the procedure failed and was rolled
	// back with no server-side side effects.
	StatusGracefulFailure StatusCode = -2

	// StatusUnexpectedFailure indicates the procedure failed and there may
	// have been negative side effects on the server.
	StatusUnexpectedFailure StatusCode = -3

	// StatusConnectionLost indicates the connection carrying the invocation
	// was lost before a response was received. The invocation may have been
	// executed and committed, or may never have been sent.
	StatusConnectionLost StatusCode = -4

	// StatusServerUnavailable indicates the server is not currently
	// accepting invocations. The invocation was never executed.
	StatusServerUnavailable StatusCode = -5

	// StatusConnectionTimeout indicates no response arrived within the
	// per-connection timeout while an attempt was outstanding.
	StatusConnectionTimeout StatusCode = -6

	// StatusResponseUnknown indicates the response was lost and no
	// conclusion can be drawn about the outcome.
	StatusResponseUnknown StatusCode = -7

	// StatusTxnRestart indicates the transaction is being re-executed after
	// a conflicting concurrent condition. Internal only; never surfaced.
	StatusTxnRestart StatusCode = -8

	// StatusOperationalFailure indicates the transaction completed without
	// rollback but some part of the operation did not succeed.
	StatusOperationalFailure StatusCode = -9

	// StatusTxnMispartitioned indicates the invocation was sent to a
	// partition that does not own its key. Internal only; never surfaced.
	StatusTxnMispartitioned StatusCode = -10

	// StatusTxnMisrouted indicates the invocation reached a site that is no
	// longer the leader for its partition. Internal only; never surfaced.
	StatusTxnMisrouted StatusCode = -11

	// StatusDRTableHashNotFound indicates a replication record referenced a
	// table hash with no local match. Internal to the replication path.
	StatusDRTableHashNotFound StatusCode = -12

	// StatusUnsupportedDynamicChange indicates an online catalog update
	// contained changes that require reinitialization. Graceful failure.
	StatusUnsupportedDynamicChange StatusCode = -13

	// StatusClientErrorTxnNotSent indicates the invocation failed in the
	// client before it was sent, for reasons other than a timeout.
	StatusClientErrorTxnNotSent StatusCode = -14

	// StatusClientRequestTimeout indicates the invocation timed out in the
	// client before it could be dispatched.
	StatusClientRequestTimeout StatusCode = -15

	// StatusClientResponseTimeout indicates the invocation was dispatched
	// and timed out awaiting a reply. No conclusion can be drawn about
	// whether the transaction executed.
	StatusClientResponseTimeout StatusCode = -16

	// StatusCompoundProcUserAbort indicates a compound procedure was aborted
	// by explicit action of the procedure. Completed steps stay committed.
	StatusCompoundProcUserAbort StatusCode = -17

	// StatusCompoundProcTimeout indicates a compound procedure exceeded its
	// timeout. The timeout response is sent even if it later completes.
	StatusCompoundProcTimeout StatusCode = -18
)

// UninitializedAppStatus is the default value of the application-defined
// status byte when the procedure did not set one.
const UninitializedAppStatus int8 = -128

// IsInternal reports whether the code is consumed by the router and must
// never be surfaced to a caller through the normal invocation path.
func (s StatusCode) IsInternal() bool {
	switch s {
	case StatusTxnRestart, StatusTxnMispartitioned, StatusTxnMisrouted, StatusDRTableHashNotFound:
		return true
	}
	return false
}

// IsRetryable reports whether the router retries this code transparently by
// re-resolving ownership and re-dispatching the same invocation.
func (s StatusCode) IsRetryable() bool {
	switch s {
	case StatusTxnRestart, StatusTxnMispartitioned, StatusTxnMisrouted:
		return true
	}
	return false
}

// IsTerminal reports whether the code may be returned to a caller as the
// final outcome of an invocation.
func (s StatusCode) IsTerminal() bool {
	return !s.IsInternal()
}

// Uncertain reports whether the outcome of the invocation is unknown to the
// client: the transaction may have committed before the failure was
// observed. Callers must not blindly retry these without an idempotency
// mechanism of their own.
func (s StatusCode) Uncertain() bool {
	switch s {
	case StatusConnectionLost, StatusConnectionTimeout, StatusResponseUnknown, StatusClientResponseTimeout:
		return true
	}
	return false
}

func (s StatusCode) String() string {
	switch s {
	case StatusSuccess:
		return "SUCCESS"
	case StatusUserAbort:
		return "USER_ABORT"
	case StatusGracefulFailure:
		return "GRACEFUL_FAILURE"
	case StatusUnexpectedFailure:
		return "UNEXPECTED_FAILURE"
	case StatusConnectionLost:
		return "CONNECTION_LOST"
	case StatusServerUnavailable:
		return "SERVER_UNAVAILABLE"
	case StatusConnectionTimeout:
		return "CONNECTION_TIMEOUT"
	case StatusResponseUnknown:
		return "RESPONSE_UNKNOWN"
	case StatusTxnRestart:
		return "TXN_RESTART"
	case StatusOperationalFailure:
		return "OPERATIONAL_FAILURE"
	case StatusTxnMispartitioned:
		return "TXN_MISPARTITIONED"
	case StatusTxnMisrouted:
		return "TXN_MISROUTED"
	case StatusDRTableHashNotFound:
		return "DR_TABLE_HASH_NOT_FOUND"
	case StatusUnsupportedDynamicChange:
		return "UNSUPPORTED_DYNAMIC_CHANGE"
	case StatusClientErrorTxnNotSent:
		return "CLIENT_ERROR_TXN_NOT_SENT"
	case StatusClientRequestTimeout:
		return "CLIENT_REQUEST_TIMEOUT"
	case StatusClientResponseTimeout:
		return "CLIENT_RESPONSE_TIMEOUT"
	case StatusCompoundProcUserAbort:
		return "COMPOUND_PROC_USER_ABORT"
	case StatusCompoundProcTimeout:
		return "COMPOUND_PROC_TIMEOUT"
	default:
		return "UNKNOWN_STATUS"
	}
}
