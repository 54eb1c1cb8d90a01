package id

import (
	"crypto/rand"
	"encoding/hex"
	"sync/atomic"

	"github.com/google/uuid"
)

// RequestID generates a UUID v4 (random) request identifier.
// Returns a string in the format: xxxxxxxx-xxxx-4xxx-yxxx-xxxxxxxxxxxx
func RequestID() string {
	return uuid.NewString()
}

// IsRequestID reports whether s parses as a UUID.
func IsRequestID(s string) bool {
	return uuid.Validate(s) == nil
}

// Short generates a short random hex ID (16 characters).
func Short() string {
	b := make([]byte, 8)
	_, _ = rand.Read(b)
	return hex.EncodeToString(b)
}

// Sequence hands out monotonically increasing integers starting at 1.
// The zero value is ready to use and safe for concurrent callers.
type Sequence struct {
	last atomic.Int64
}

// Next returns the next value in the sequence.
func (s *Sequence) Next() int64 {
	return s.last.Add(1)
}

// Last returns the most recently issued value, or 0 if none was issued.
func (s *Sequence) Last() int64 {
	return s.last.Load()
}
