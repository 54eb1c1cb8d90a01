package relay

import (
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"github.com/getmockd/embedhttpd/internal/id"
	"github.com/getmockd/embedhttpd/pkg/logging"
	"github.com/getmockd/embedhttpd/pkg/message"
)

// Error is a sentinel error type for relay failures.
type Error string

// Error implements the error interface.
func (e Error) Error() string { return string(e) }

const (
	// ErrOrphanInstance is returned when a request is published for an
	// instance that has no handler-side subscriber.
	ErrOrphanInstance = Error("no handler subscribed for instance")

	// ErrSubscriberExists is returned when an instance already has a subscriber.
	ErrSubscriberExists = Error("instance already has a handler subscribed")

	// ErrNoResponseSink is returned when a response is published before a
	// sink was installed.
	ErrNoResponseSink = Error("no response sink installed")
)

// RequestArrived announces a new inbound request to the handler side.
type RequestArrived struct {
	InstanceID message.InstanceID
	RequestID  string
	Request    *message.Request
}

// ResponseReady carries the handler's response back to the native side.
type ResponseReady struct {
	InstanceID message.InstanceID
	RequestID  string
	Response   *message.Response
}

// RequestFunc receives requests for a subscribed instance.
type RequestFunc func(ev RequestArrived)

// ResponseSink consumes responses published by the handler side.
type ResponseSink func(ev ResponseReady) error

// Option configures a Relay.
type Option func(*Relay)

// WithLogger sets the logger.
func WithLogger(log *slog.Logger) Option {
	return func(r *Relay) {
		if log != nil {
			r.log = log
		}
	}
}

// WithResponseSink sets the sink at construction.
func WithResponseSink(sink ResponseSink) Option {
	return func(r *Relay) {
		r.sink = sink
	}
}

// Relay routes messages between the native side and subscribed handlers.
type Relay struct {
	log *slog.Logger

	mu   sync.RWMutex
	subs map[message.InstanceID]*Subscription
	sink ResponseSink

	delivered atomic.Int64
	orphaned  atomic.Int64
	responses atomic.Int64
}

// New creates a relay with no subscribers.
func New(opts ...Option) *Relay {
	r := &Relay{
		log:  logging.Nop(),
		subs: make(map[message.InstanceID]*Subscription),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// SetResponseSink installs the consumer of ResponseReady messages.
func (r *Relay) SetResponseSink(sink ResponseSink) {
	r.mu.Lock()
	r.sink = sink
	r.mu.Unlock()
}

// Subscribe registers fn as the handler side of instanceID. name labels
// the subscriber in logs and listings.
func (r *Relay) Subscribe(instanceID message.InstanceID, name string, fn RequestFunc) (*Subscription, error) {
	if fn == nil {
		return nil, errors.New("request func cannot be nil")
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if existing, ok := r.subs[instanceID]; ok {
		return nil, fmt.Errorf("%w: instance %s (%s)", ErrSubscriberExists, instanceID, existing.name)
	}
	sub := &Subscription{
		id:         id.Short(),
		instanceID: instanceID,
		name:       name,
		fn:         fn,
		relay:      r,
		createdAt:  time.Now(),
		done:       make(chan struct{}),
	}
	r.subs[instanceID] = sub
	r.log.Debug("handler subscribed", logging.KeyInstance, int64(instanceID), "subscriber", name)
	return sub, nil
}

// Subscribed reports whether instanceID has a subscriber.
func (r *Relay) Subscribed(instanceID message.InstanceID) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.subs[instanceID]
	return ok
}

// PublishRequest delivers ev to the instance's subscriber on a new goroutine.
func (r *Relay) PublishRequest(ev RequestArrived) error {
	r.mu.RLock()
	sub := r.subs[ev.InstanceID]
	r.mu.RUnlock()

	if sub == nil {
		r.orphaned.Add(1)
		return fmt.Errorf("%w: %s", ErrOrphanInstance, ev.InstanceID)
	}

	r.delivered.Add(1)
	go r.deliver(sub, ev)
	return nil
}

func (r *Relay) deliver(sub *Subscription, ev RequestArrived) {
	defer func() {
		if rec := recover(); rec != nil {
			r.log.Error("handler subscriber panicked",
				logging.KeyInstance, int64(ev.InstanceID),
				logging.KeyRequestID, ev.RequestID,
				"panic", rec)
		}
	}()
	sub.fn(ev)
}

// PublishResponse hands ev to the response sink and returns its result.
func (r *Relay) PublishResponse(ev ResponseReady) error {
	r.mu.RLock()
	sink := r.sink
	r.mu.RUnlock()

	if sink == nil {
		return ErrNoResponseSink
	}
	r.responses.Add(1)
	return sink(ev)
}

// Subscriptions lists the active subscriptions ordered by instance.
func (r *Relay) Subscriptions() []SubscriptionInfo {
	r.mu.RLock()
	out := make([]SubscriptionInfo, 0, len(r.subs))
	for _, s := range r.subs {
		out = append(out, s.Info())
	}
	r.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool { return out[i].InstanceID < out[j].InstanceID })
	return out
}

// Stats is a snapshot of relay counters.
type Stats struct {
	Subscribers int   `json:"subscribers"`
	Delivered   int64 `json:"delivered"`
	Orphaned    int64 `json:"orphaned"`
	Responses   int64 `json:"responses"`
}

// Stats returns the relay counters.
func (r *Relay) Stats() Stats {
	r.mu.RLock()
	n := len(r.subs)
	r.mu.RUnlock()
	return Stats{
		Subscribers: n,
		Delivered:   r.delivered.Load(),
		Orphaned:    r.orphaned.Load(),
		Responses:   r.responses.Load(),
	}
}

// Evict ends instanceID's subscription, whoever holds it. It reports
// whether there was one.
func (r *Relay) Evict(instanceID message.InstanceID) bool {
	r.mu.Lock()
	sub := r.subs[instanceID]
	delete(r.subs, instanceID)
	r.mu.Unlock()

	if sub == nil {
		return false
	}
	r.log.Debug("handler evicted", logging.KeyInstance, int64(instanceID), "subscriber", sub.name)
	sub.end()
	return true
}

func (r *Relay) remove(sub *Subscription) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.subs[sub.instanceID] == sub {
		delete(r.subs, sub.instanceID)
		r.log.Debug("handler unsubscribed", logging.KeyInstance, int64(sub.instanceID), "subscriber", sub.name)
	}
}
