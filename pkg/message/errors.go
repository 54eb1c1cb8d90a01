package message

// Error is a sentinel error type for codec failures.
type Error string

// Error implements the error interface.
func (e Error) Error() string { return string(e) }

var (
	// ErrBodyTooLarge is returned when a request or response body exceeds
	// the configured limit.
	ErrBodyTooLarge = Error("message body too large")

	// ErrInvalidStatus is returned when a response status is outside 100-999.
	ErrInvalidStatus = Error("invalid response status")

	// ErrNilMessage is returned when a nil request or response is encoded.
	ErrNilMessage = Error("nil message")
)
