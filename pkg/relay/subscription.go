package relay

import (
	"sync"
	"time"

	"github.com/getmockd/embedhttpd/pkg/message"
)

// Subscription is an instance's handler-side registration.
type Subscription struct {
	id         string
	instanceID message.InstanceID
	name       string
	fn         RequestFunc
	relay      *Relay
	createdAt  time.Time
	once       sync.Once
	done       chan struct{}
}

// ID returns the unique subscription identifier.
func (s *Subscription) ID() string { return s.id }

// InstanceID returns the subscribed instance.
func (s *Subscription) InstanceID() message.InstanceID { return s.instanceID }

// Name returns the subscriber label.
func (s *Subscription) Name() string { return s.name }

// Unsubscribe ends the subscription. Later requests for the instance are
// orphaned until another subscriber registers. Safe to call more than once.
func (s *Subscription) Unsubscribe() {
	s.relay.remove(s)
	s.end()
}

// Done is closed once the subscription ends, by Unsubscribe or by the
// relay evicting it.
func (s *Subscription) Done() <-chan struct{} { return s.done }

func (s *Subscription) end() {
	s.once.Do(func() { close(s.done) })
}

// SubscriptionInfo describes a subscription for listings.
type SubscriptionInfo struct {
	ID         string             `json:"id"`
	InstanceID message.InstanceID `json:"instanceId"`
	Name       string             `json:"name"`
	CreatedAt  time.Time          `json:"createdAt"`
}

// Info returns a description of the subscription.
func (s *Subscription) Info() SubscriptionInfo {
	return SubscriptionInfo{
		ID:         s.id,
		InstanceID: s.instanceID,
		Name:       s.name,
		CreatedAt:  s.createdAt,
	}
}
