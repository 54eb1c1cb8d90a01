package lifecycle

// Error is a sentinel error type for lifecycle failures.
type Error string

// Error implements the error interface.
func (e Error) Error() string { return string(e) }

var (
	// ErrInstanceDisposed is returned by any transition other than dispose
	// on a disposed instance.
	ErrInstanceDisposed = Error("instance disposed")

	// ErrInstanceStopping resolves requests still pending when a stop's
	// grace period ends.
	ErrInstanceStopping = Error("instance stopping")
)
