package repair

import (
	"errors"
	"fmt"
)

var (
	// ErrNoSession is returned by operations that need an uploaded dataset.
	ErrNoSession = errors.New("no dataset uploaded")

	// ErrRepairInFlight is returned when a repair is requested while another
	// one is outstanding.
	ErrRepairInFlight = errors.New("repair already in progress")

	// ErrStaleResponse is returned when a repair response arrives after the
	// session it was requested for has been replaced.
	ErrStaleResponse = errors.New("repair response dropped: session was reset")

	// ErrNoRepairs is returned when the repair service answers without results.
	ErrNoRepairs = errors.New("no repair results returned from the server")

	// ErrNoPendingAudit is returned by RetryAudit when nothing is waiting.
	ErrNoPendingAudit = errors.New("no pending audit batch")
)

// FilterError reports a filter pattern that does not compile.
type FilterError struct {
	Pattern string
	Err     error
}

func (e *FilterError) Error() string {
	return fmt.Sprintf("invalid filter pattern %q: %v", e.Pattern, e.Err)
}

func (e *FilterError) Unwrap() error { return e.Err }

// InvalidRequestError reports a precondition violation detected before any
// network call.
type InvalidRequestError struct {
	Field  string
	Reason string
}

func (e *InvalidRequestError) Error() string {
	return fmt.Sprintf("invalid request: %s: %s", e.Field, e.Reason)
}

// Remote operation names carried by RemoteError.Op.
const (
	OpListModels  = "list models"
	OpListIndexes = "list indexes"
	OpRepair      = "repair"
	OpUpsertRows  = "upsert rows"
)

// RemoteError reports a failed call to an external collaborator: a non-2xx
// status, a transport failure or an undecodable body.
type RemoteError struct {
	Op     string // one of the Op constants
	Status int    // HTTP status, zero for transport failures
	Body   string // response body excerpt
	Err    error
}

func (e *RemoteError) Error() string {
	msg := "remote " + e.Op
	if e.Status != 0 {
		msg += fmt.Sprintf(": status %d", e.Status)
	}
	if e.Body != "" {
		msg += ": " + e.Body
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *RemoteError) Unwrap() error { return e.Err }

// AlignmentWarning records a result count that differs from the number of
// rows sent. It is logged, never returned as an error.
type AlignmentWarning struct {
	Expected int `json:"expected"`
	Received int `json:"received"`
}

func (w AlignmentWarning) String() string {
	if w.Received < w.Expected {
		return fmt.Sprintf("received %d results for %d rows; %d rows left without a proposal",
			w.Received, w.Expected, w.Expected-w.Received)
	}
	return fmt.Sprintf("received %d results for %d rows; %d trailing results ignored",
		w.Received, w.Expected, w.Received-w.Expected)
}
