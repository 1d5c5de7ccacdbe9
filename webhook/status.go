package webhook

import "fmt"

/* Status represents the current state of a webhook log record.
 * Lifecycle: Pending -> Processing -> Completed/Failed.
 * Failed is not terminal for transient delivery errors: a later retry
 * may still complete the record (Failed -> Completed). Every other
 * backward move is rejected.
 */
type Status int

const (
	Pending Status = iota + 1
	Processing
	Completed
	Failed
)

// String returns the string representation of the status
func (s Status) String() string {
	switch s {
	case Pending:
		return "pending"
	case Processing:
		return "processing"
	case Completed:
		return "completed"
	case Failed:
		return "failed"
	default:
		return "unknown"
	}
}

// NewStatus creates a Status from a string
func NewStatus(str string) Status {
	switch str {
	case "pending":
		return Pending
	case "processing":
		return Processing
	case "completed":
		return Completed
	case "failed":
		return Failed
	default:
		return Pending
	}
}

// Validate checks if the status is valid
func (s Status) Validate() error {
	if s < Pending || s > Failed {
		return fmt.Errorf("invalid status: %d", s)
	}
	return nil
}

// CanTransition reports whether moving from s to next preserves the
// forward-only invariant
func (s Status) CanTransition(next Status) bool {
	switch s {
	case Pending:
		return next == Processing || next == Failed
	case Processing:
		return next == Completed || next == Failed
	case Failed:
		// Asynchronous retry resolution
		return next == Completed
	default:
		return false
	}
}
