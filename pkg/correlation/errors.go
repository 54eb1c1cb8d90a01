package correlation

import "fmt"

// Error is a sentinel error type for correlation failures.
type Error string

// Error implements the error interface.
func (e Error) Error() string { return string(e) }

var (
	// ErrDuplicateRequestID is returned by Register when the ID is already pending.
	ErrDuplicateRequestID = Error("duplicate request id")

	// ErrNotFound is returned when a request ID is not pending. This covers
	// unknown IDs and IDs that timed out or were drained.
	ErrNotFound = Error("request not found")

	// ErrTimeout resolves a slot whose deadline passed before a response.
	ErrTimeout = Error("request timed out waiting for a response")

	// ErrClosed is returned by Register once the table has been drained for good.
	ErrClosed = Error("correlation table closed")
)

// ErrAlreadyCompleted is returned when a response arrives for a request
// that was already completed by an earlier response. It matches ErrNotFound
// under errors.Is.
var ErrAlreadyCompleted = fmt.Errorf("%w: already completed", ErrNotFound)
