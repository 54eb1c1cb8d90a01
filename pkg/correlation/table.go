package correlation

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/getmockd/embedhttpd/pkg/message"
)

const (
	// DefaultTimeout is how long a request waits for the handler side.
	DefaultTimeout = 60 * time.Second

	// DefaultRememberCompleted bounds the set of IDs kept for
	// ErrAlreadyCompleted detection.
	DefaultRememberCompleted = 1024
)

// Option configures a Table.
type Option func(*Table)

// WithTimeout sets the per-request deadline. Non-positive values are ignored.
func WithTimeout(d time.Duration) Option {
	return func(t *Table) {
		if d > 0 {
			t.timeout = d
		}
	}
}

// WithRememberCompleted sets how many completed IDs are remembered.
func WithRememberCompleted(n int) Option {
	return func(t *Table) {
		t.completed = newRecent(n)
	}
}

// WithClock overrides the time source used for CreatedAt and Deadline.
func WithClock(now func() time.Time) Option {
	return func(t *Table) {
		if now != nil {
			t.now = now
		}
	}
}

// Table maps request IDs to pending completion slots for one instance.
// It is safe for concurrent use.
type Table struct {
	instanceID message.InstanceID
	timeout    time.Duration
	now        func() time.Time

	mu        sync.Mutex
	entries   map[string]*Pending
	completed *recent
	closed    bool
}

// NewTable creates an empty table for the given instance.
func NewTable(instanceID message.InstanceID, opts ...Option) *Table {
	t := &Table{
		instanceID: instanceID,
		timeout:    DefaultTimeout,
		now:        time.Now,
		entries:    make(map[string]*Pending),
		completed:  newRecent(DefaultRememberCompleted),
	}
	for _, opt := range opts {
		opt(t)
	}
	return t
}

// Timeout returns the per-request deadline duration.
func (t *Table) Timeout() time.Duration {
	return t.timeout
}

// Register opens a slot for requestID with a deadline of now plus the
// table timeout.
func (t *Table) Register(requestID string) (*Pending, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.closed {
		return nil, ErrClosed
	}
	if _, exists := t.entries[requestID]; exists {
		return nil, fmt.Errorf("%w: %s", ErrDuplicateRequestID, requestID)
	}
	p := newPending(requestID, t.instanceID, t.now(), t.timeout)
	t.entries[requestID] = p
	return p, nil
}

// Complete resolves the slot for requestID with resp.
func (t *Table) Complete(requestID string, resp *message.Response) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	p, ok := t.entries[requestID]
	if !ok {
		if t.completed.has(requestID) {
			return ErrAlreadyCompleted
		}
		return ErrNotFound
	}
	if !p.resolve(OutcomeResponded, resp, nil) {
		return ErrAlreadyCompleted
	}
	delete(t.entries, requestID)
	t.completed.add(requestID)
	return nil
}

// Fail resolves the slot for requestID with err.
func (t *Table) Fail(requestID string, err error) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	p, ok := t.entries[requestID]
	if !ok {
		return ErrNotFound
	}
	p.resolve(OutcomeFailed, nil, err)
	delete(t.entries, requestID)
	return nil
}

// Await blocks until p is resolved, its deadline passes, or ctx is done.
// On deadline the slot resolves with ErrTimeout; on cancellation it
// resolves with the context's error. Either way it leaves the table.
func (t *Table) Await(ctx context.Context, p *Pending) (*message.Response, error) {
	select {
	case <-p.Done():
		return p.Result()
	default:
	}

	timer := time.NewTimer(p.Deadline.Sub(t.now()))
	defer timer.Stop()

	select {
	case <-p.Done():
	case <-timer.C:
		t.expire(p, OutcomeTimeout, ErrTimeout)
	case <-ctx.Done():
		t.expire(p, OutcomeCanceled, ctx.Err())
	}
	return p.Result()
}

func (t *Table) expire(p *Pending, outcome Outcome, err error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if p.resolve(outcome, nil, err) && t.entries[p.RequestID] == p {
		delete(t.entries, p.RequestID)
	}
}

// Drain resolves every open slot with cause and empties the table. It
// returns the number of slots drained. The table stays usable.
func (t *Table) Drain(cause error) int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.drainLocked(cause)
}

// Close drains the table and refuses further registrations.
func (t *Table) Close(cause error) int {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.closed = true
	return t.drainLocked(cause)
}

func (t *Table) drainLocked(cause error) int {
	n := 0
	for id, p := range t.entries {
		if p.resolve(OutcomeDrained, nil, cause) {
			n++
		}
		delete(t.entries, id)
	}
	t.completed.reset()
	return n
}

// Len returns the number of open slots.
func (t *Table) Len() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.entries)
}

// Snapshot lists the open slots, oldest first.
func (t *Table) Snapshot() []Info {
	t.mu.Lock()
	out := make([]Info, 0, len(t.entries))
	for _, p := range t.entries {
		out = append(out, Info{
			RequestID:  p.RequestID,
			InstanceID: p.InstanceID,
			CreatedAt:  p.CreatedAt,
			Deadline:   p.Deadline,
		})
	}
	t.mu.Unlock()

	sort.Slice(out, func(i, j int) bool {
		if out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].RequestID < out[j].RequestID
		}
		return out[i].CreatedAt.Before(out[j].CreatedAt)
	})
	return out
}
