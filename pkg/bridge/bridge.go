package bridge

import (
	cryptotls "crypto/tls"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/getmockd/embedhttpd/internal/id"
	"github.com/getmockd/embedhttpd/pkg/correlation"
	"github.com/getmockd/embedhttpd/pkg/handler"
	"github.com/getmockd/embedhttpd/pkg/lifecycle"
	"github.com/getmockd/embedhttpd/pkg/logging"
	"github.com/getmockd/embedhttpd/pkg/message"
	"github.com/getmockd/embedhttpd/pkg/metrics"
	"github.com/getmockd/embedhttpd/pkg/relay"
	"github.com/getmockd/embedhttpd/pkg/requestlog"
	"github.com/getmockd/embedhttpd/pkg/tls"
)

// Address is where an instance listens. It is immutable once the instance
// exists.
type Address struct {
	Host string        `json:"host"`
	Port int           `json:"port"`
	TLS  *tls.Material `json:"tls,omitempty"`
}

// Bridge is the instance registry and the handler-side entry point.
type Bridge struct {
	log            *slog.Logger
	relay          *relay.Relay
	ids            id.Sequence
	requestTimeout time.Duration
	maxBody        int64
	stopDefaults   lifecycle.StopOptions
	requests       requestlog.Logger
	metrics        *metrics.Bridge

	mu        sync.RWMutex
	instances map[message.InstanceID]*Instance
	live      map[message.InstanceID]*Instance
	disposed  map[message.InstanceID]struct{}
	closed    bool
}

// New creates an empty bridge.
func New(opts ...Option) *Bridge {
	b := &Bridge{
		log:            logging.Nop(),
		requestTimeout: correlation.DefaultTimeout,
		maxBody:        message.DefaultMaxBodyBytes,
		stopDefaults:   lifecycle.StopOptions{}.WithDefaults(),
		instances:      make(map[message.InstanceID]*Instance),
		live:           make(map[message.InstanceID]*Instance),
		disposed:       make(map[message.InstanceID]struct{}),
	}
	for _, opt := range opts {
		opt(b)
	}
	b.relay = relay.New(
		relay.WithLogger(logging.Component(b.log, "relay")),
		relay.WithResponseSink(b.complete),
	)
	b.log = logging.Component(b.log, "bridge")
	return b
}

// Relay returns the bridge's event relay.
func (b *Bridge) Relay() *relay.Relay {
	return b.relay
}

// RequestTimeout returns how long requests wait for the handler side.
func (b *Bridge) RequestTimeout() time.Duration {
	return b.requestTimeout
}

// StopDefaults returns the stop options used when none are given.
func (b *Bridge) StopDefaults() lifecycle.StopOptions {
	return b.stopDefaults
}

// CreateInstance binds addr and registers a new instance in state Created.
// When h is non-nil it becomes the instance's handler side; otherwise a
// remote handler is expected to attach through the relay.
func (b *Bridge) CreateInstance(addr Address, h handler.Handler, opts ...InstanceOption) (message.InstanceID, error) {
	b.mu.RLock()
	closed := b.closed
	b.mu.RUnlock()
	if closed {
		return 0, ErrBridgeClosed
	}

	var cfg instanceConfig
	for _, opt := range opts {
		opt(&cfg)
	}

	var tlsCfg *cryptotls.Config
	if !addr.TLS.IsZero() {
		var err error
		if tlsCfg, err = addr.TLS.ServerConfig(); err != nil {
			return 0, err
		}
	}

	inst := newInstance(b, message.InstanceID(b.ids.Next()), addr, h, cfg, tlsCfg)
	if err := inst.ln.Bind(); err != nil {
		return 0, err
	}
	if h != nil {
		if _, err := b.relay.Subscribe(inst.id, "in-process", inst.dispatch); err != nil {
			_ = inst.ln.Close()
			return 0, err
		}
	}

	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		_ = inst.release()
		return 0, ErrBridgeClosed
	}
	b.instances[inst.id] = inst
	b.live[inst.id] = inst
	b.mu.Unlock()

	b.metrics.Transition("", lifecycle.Created.String())
	inst.log.Info("instance created", "addr", inst.ln.Addr(), "tls", tlsCfg != nil, "handler", h != nil)
	return inst.id, nil
}

// Instance returns the registered instance with the given ID. A disposed
// instance yields ErrInstanceDisposed.
func (b *Bridge) Instance(instanceID message.InstanceID) (*Instance, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.lookupLocked(instanceID)
}

// lookupLocked resolves instanceID. b.mu must be held.
func (b *Bridge) lookupLocked(instanceID message.InstanceID) (*Instance, error) {
	if inst, ok := b.instances[instanceID]; ok {
		return inst, nil
	}
	if _, gone := b.disposed[instanceID]; gone {
		return nil, fmt.Errorf("%w: %s", ErrInstanceDisposed, instanceID)
	}
	return nil, fmt.Errorf("%w: %s", ErrInstanceNotFound, instanceID)
}

// Instances returns the registered instances ordered by ID.
func (b *Bridge) Instances() []*Instance {
	b.mu.RLock()
	out := make([]*Instance, 0, len(b.instances))
	for _, inst := range b.instances {
		out = append(out, inst)
	}
	b.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool { return out[i].id < out[j].id })
	return out
}

// RemoveInstance detaches an instance from the registry and returns it.
// Unless force is set it fails with ErrInstanceBusy while requests are
// pending. Releasing the listener is left to the caller (Instance.Dispose).
func (b *Bridge) RemoveInstance(instanceID message.InstanceID, force bool) (*Instance, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	inst, err := b.lookupLocked(instanceID)
	if err != nil {
		return nil, err
	}
	if !force && inst.table.Len() > 0 {
		return nil, fmt.Errorf("%w: %d pending", ErrInstanceBusy, inst.table.Len())
	}
	delete(b.instances, instanceID)
	inst.log.Info("instance removed", "force", force)
	return inst, nil
}

// Start starts the registered instance.
func (b *Bridge) Start(instanceID message.InstanceID) error {
	inst, err := b.Instance(instanceID)
	if err != nil {
		return err
	}
	return inst.Start()
}

// Stop stops the registered instance.
func (b *Bridge) Stop(instanceID message.InstanceID, opts lifecycle.StopOptions) error {
	inst, err := b.Instance(instanceID)
	if err != nil {
		return err
	}
	return inst.Stop(opts)
}

// Reload re-applies the registered instance's configuration.
func (b *Bridge) Reload(instanceID message.InstanceID) error {
	inst, err := b.Instance(instanceID)
	if err != nil {
		return err
	}
	return inst.Reload()
}

// Dispose stops and releases an instance and removes it from the registry.
// It returns once the listener is closed. Disposing an instance twice
// succeeds.
func (b *Bridge) Dispose(instanceID message.InstanceID, opts lifecycle.StopOptions) error {
	b.mu.RLock()
	inst := b.live[instanceID]
	_, gone := b.disposed[instanceID]
	b.mu.RUnlock()

	if inst == nil {
		if gone {
			return nil
		}
		return fmt.Errorf("%w: %s", ErrInstanceNotFound, instanceID)
	}
	return inst.Dispose(opts)
}

// Respond delivers the handler side's response for a pending request.
// It fails with ErrInstanceNotFound for an unknown instance and with an
// error matching ErrRequestNotFound when the request is not pending
// (ErrAlreadyCompleted when it was answered before).
func (b *Bridge) Respond(instanceID message.InstanceID, requestID string, resp *message.Response) error {
	return b.relay.PublishResponse(relay.ResponseReady{
		InstanceID: instanceID,
		RequestID:  requestID,
		Response:   resp,
	})
}

// RespondWith is Respond with the response given as parts.
func (b *Bridge) RespondWith(instanceID message.InstanceID, requestID string, status int, headers map[string]string, body []byte) error {
	return b.Respond(instanceID, requestID, message.NewResponse(status, headers, body))
}

// complete is the relay's response sink.
func (b *Bridge) complete(ev relay.ResponseReady) error {
	b.mu.RLock()
	inst := b.live[ev.InstanceID]
	b.mu.RUnlock()
	if inst == nil {
		return fmt.Errorf("%w: %s", ErrInstanceNotFound, ev.InstanceID)
	}

	resp := ev.Response
	if resp == nil {
		resp = &message.Response{}
	}
	if err := resp.Normalize(b.maxBody); err != nil {
		return err
	}
	return inst.table.Complete(ev.RequestID, resp)
}

// orphaned disposes an instance whose handler side went away. It runs at
// most once per instance, in the background.
func (b *Bridge) orphaned(inst *Instance) {
	inst.orphanOnce.Do(func() {
		inst.log.Warn("request arrived for instance without a handler, disposing instance")
		go func() {
			if err := inst.Dispose(b.stopDefaults); err != nil {
				inst.log.Error("orphan cleanup failed", "error", err)
			}
		}()
	})
}

// forget drops a released instance from every index.
func (b *Bridge) forget(inst *Instance) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.instances[inst.id] == inst {
		delete(b.instances, inst.id)
	}
	delete(b.live, inst.id)
	b.disposed[inst.id] = struct{}{}
}

// Close disposes every instance concurrently and refuses new ones.
func (b *Bridge) Close() error {
	b.mu.Lock()
	b.closed = true
	insts := make([]*Instance, 0, len(b.live))
	for _, inst := range b.live {
		insts = append(insts, inst)
	}
	b.mu.Unlock()

	var g errgroup.Group
	for _, inst := range insts {
		g.Go(func() error {
			return inst.Dispose(b.stopDefaults)
		})
	}
	err := g.Wait()
	b.log.Info("bridge closed", "instances", len(insts))
	return err
}
