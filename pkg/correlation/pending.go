package correlation

import (
	"sync"
	"time"

	"github.com/getmockd/embedhttpd/pkg/message"
)

// Outcome names how a slot was resolved.
type Outcome string

// Slot outcomes.
const (
	OutcomeResponded Outcome = "responded"
	OutcomeTimeout   Outcome = "timeout"
	OutcomeDrained   Outcome = "drained"
	OutcomeFailed    Outcome = "failed"
	OutcomeCanceled  Outcome = "canceled"
)

// Pending is a write-once completion slot for one in-flight request.
type Pending struct {
	RequestID  string
	InstanceID message.InstanceID
	CreatedAt  time.Time
	Deadline   time.Time

	once    sync.Once
	done    chan struct{}
	resp    *message.Response
	err     error
	outcome Outcome
}

func newPending(requestID string, instanceID message.InstanceID, now time.Time, timeout time.Duration) *Pending {
	return &Pending{
		RequestID:  requestID,
		InstanceID: instanceID,
		CreatedAt:  now,
		Deadline:   now.Add(timeout),
		done:       make(chan struct{}),
	}
}

// resolve stores the outcome if the slot is still open and reports whether
// this call won.
func (p *Pending) resolve(outcome Outcome, resp *message.Response, err error) bool {
	won := false
	p.once.Do(func() {
		p.outcome = outcome
		p.resp = resp
		p.err = err
		won = true
		close(p.done)
	})
	return won
}

// Done is closed once the slot is resolved.
func (p *Pending) Done() <-chan struct{} {
	return p.done
}

// Result returns the resolved response or error. It must only be called
// after Done is closed.
func (p *Pending) Result() (*message.Response, error) {
	return p.resp, p.err
}

// Outcome returns how the slot was resolved, or "" while it is open.
func (p *Pending) Outcome() Outcome {
	select {
	case <-p.done:
		return p.outcome
	default:
		return ""
	}
}

// Info is a read-only view of a pending slot.
type Info struct {
	RequestID  string             `json:"requestId"`
	InstanceID message.InstanceID `json:"instanceId"`
	CreatedAt  time.Time          `json:"createdAt"`
	Deadline   time.Time          `json:"deadline"`
}
