package types

import "testing"

// The numeric values are wire protocol; renumbering any of them breaks old
// clients silently.
func TestStatusCode_WireValues(t *testing.T) {
	want := map[StatusCode]int8{
		StatusSuccess:                  1,
		StatusUserAbort:                -1,
		StatusGracefulFailure:          -2,
		StatusUnexpectedFailure:        -3,
		StatusConnectionLost:           -4,
		StatusServerUnavailable:        -5,
		StatusConnectionTimeout:        -6,
		StatusResponseUnknown:          -7,
		StatusTxnRestart:               -8,
		StatusOperationalFailure:       -9,
		StatusTxnMispartitioned:        -10,
		StatusTxnMisrouted:             -11,
		StatusDRTableHashNotFound:      -12,
		StatusUnsupportedDynamicChange: -13,
		StatusClientErrorTxnNotSent:    -14,
		StatusClientRequestTimeout:     -15,
		StatusClientResponseTimeout:    -16,
		StatusCompoundProcUserAbort:    -17,
		StatusCompoundProcTimeout:      -18,
	}
	for code, value := range want {
		if int8(code) != value {
			t.Fatalf("%s: got %d, want %d", code, int8(code), value)
		}
	}
	if UninitializedAppStatus != -128 {
		t.Fatalf("UninitializedAppStatus: got %d, want -128", UninitializedAppStatus)
	}
}

func TestStatusCode_Classification(t *testing.T) {
	internal := []StatusCode{
		StatusTxnRestart, StatusTxnMispartitioned, StatusTxnMisrouted, StatusDRTableHashNotFound,
	}
	for _, code := range internal {
		if !code.IsInternal() {
			t.Fatalf("%s: want internal", code)
		}
		if code.IsTerminal() {
			t.Fatalf("%s: internal codes must not be terminal", code)
		}
	}

	retryable := []StatusCode{StatusTxnRestart, StatusTxnMispartitioned, StatusTxnMisrouted}
	for _, code := range retryable {
		if !code.IsRetryable() {
			t.Fatalf("%s: want retryable", code)
		}
	}
	// The replication path consumes DR mismatches itself; the router must
	// not re-dispatch them.
	if StatusDRTableHashNotFound.IsRetryable() {
		t.Fatal("DR_TABLE_HASH_NOT_FOUND must not be retryable")
	}

	terminal := []StatusCode{
		StatusSuccess, StatusUserAbort, StatusGracefulFailure, StatusUnexpectedFailure,
		StatusConnectionLost, StatusServerUnavailable, StatusConnectionTimeout,
		StatusResponseUnknown, StatusOperationalFailure, StatusUnsupportedDynamicChange,
		StatusClientErrorTxnNotSent, StatusClientRequestTimeout, StatusClientResponseTimeout,
		StatusCompoundProcUserAbort, StatusCompoundProcTimeout,
	}
	for _, code := range terminal {
		if !code.IsTerminal() {
			t.Fatalf("%s: want terminal", code)
		}
		if code.IsRetryable() {
			t.Fatalf("%s: terminal codes must not be retryable", code)
		}
	}

	uncertain := []StatusCode{
		StatusConnectionLost, StatusConnectionTimeout, StatusResponseUnknown, StatusClientResponseTimeout,
	}
	for _, code := range uncertain {
		if !code.Uncertain() {
			t.Fatalf("%s: want uncertain outcome", code)
		}
	}
	if StatusClientRequestTimeout.Uncertain() {
		t.Fatal("CLIENT_REQUEST_TIMEOUT was never dispatched; the outcome is certain")
	}
}

func TestResponse_Defaults(t *testing.T) {
	resp := NewResponse(StatusSuccess)
	if resp.AppStatus != UninitializedAppStatus {
		t.Fatalf("AppStatus: got %d, want %d", resp.AppStatus, UninitializedAppStatus)
	}
	if resp.Failed() {
		t.Fatal("SUCCESS must not report Failed")
	}
	if !NewResponse(StatusGracefulFailure).Failed() {
		t.Fatal("GRACEFUL_FAILURE must report Failed")
	}
}
