package types

import "time"

// Table is a single result table returned by a procedure.
type Table struct {
	Columns []string `json:"columns"`
	Rows    [][]any  `json:"rows"`
}

// RowCount returns the number of rows in the table.
func (t *Table) RowCount() int {
	return len(t.Rows)
}

// Response is the outcome of one procedure invocation.
//
// Status is always a terminal StatusCode by the time a Response crosses the
// caller boundary. AppStatus is set by the procedure itself and defaults to
// UninitializedAppStatus.
type Response struct {
	Status           StatusCode    `json:"status"`
	AppStatus        int8          `json:"appStatus"`
	Results          []Table       `json:"results,omitempty"`
	StatusString     string        `json:"statusString,omitempty"`
	AppStatusString  string        `json:"appStatusString,omitempty"`
	ClusterRoundtrip time.Duration `json:"clusterRoundtrip,omitempty"`
}

// NewResponse returns a Response with the given status and the app status
// byte at its uninitialized default.
func NewResponse(status StatusCode) *Response {
	return &Response{
		Status:    status,
		AppStatus: UninitializedAppStatus,
	}
}

// Failed reports whether the response carries anything other than SUCCESS.
func (r *Response) Failed() bool {
	return r.Status != StatusSuccess
}
