package lifecycle

import (
	"errors"
	"sync"
	"time"
)

// Stop defaults applied when StopOptions leaves a field unset.
const (
	DefaultGracePeriod = 60 * time.Millisecond
	DefaultStopTimeout = 120 * time.Millisecond
)

// StopOptions controls how a running instance winds down.
type StopOptions struct {
	// GracePeriod is how long in-flight requests may still be answered
	// before they are drained with ErrInstanceStopping.
	GracePeriod time.Duration

	// Timeout is the hard limit after which open connections are closed.
	Timeout time.Duration
}

// WithDefaults fills unset fields and raises Timeout to at least GracePeriod.
func (o StopOptions) WithDefaults() StopOptions {
	if o.GracePeriod <= 0 {
		o.GracePeriod = DefaultGracePeriod
	}
	if o.Timeout <= 0 {
		o.Timeout = DefaultStopTimeout
	}
	if o.Timeout < o.GracePeriod {
		o.Timeout = o.GracePeriod
	}
	return o
}

// Driver performs the side effects of each transition. Its methods are
// only ever called from the machine's queue, one at a time.
type Driver interface {
	// Start begins accepting connections.
	Start() error
	// Stop stops accepting connections and winds down in-flight work.
	Stop(opts StopOptions) error
	// Release frees every resource held by the instance.
	Release() error
}

// Option configures a Machine.
type Option func(*Machine)

// WithObserver registers fn to be called after every state change.
func WithObserver(fn func(from, to State)) Option {
	return func(m *Machine) {
		m.observer = fn
	}
}

// WithDefaultStop sets the stop options used by Reload.
func WithDefaultStop(opts StopOptions) Option {
	return func(m *Machine) {
		m.defaultStop = opts.WithDefaults()
	}
}

// Machine is the lifecycle state machine of one instance.
type Machine struct {
	driver      Driver
	queue       Queue
	observer    func(from, to State)
	defaultStop StopOptions

	mu    sync.RWMutex
	state State
}

// NewMachine creates a machine in state Created.
func NewMachine(driver Driver, opts ...Option) *Machine {
	m := &Machine{
		driver:      driver,
		defaultStop: StopOptions{}.WithDefaults(),
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// State returns the current state.
func (m *Machine) State() State {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.state
}

// Pending returns the number of queued transitions, including one that is
// executing.
func (m *Machine) Pending() int {
	return m.queue.Len()
}

func (m *Machine) set(to State) {
	m.mu.Lock()
	from := m.state
	m.state = to
	m.mu.Unlock()

	if m.observer != nil && from != to {
		m.observer(from, to)
	}
}

// Start queues a transition to Running. Starting a running instance is a
// no-op. A failed start restores the previous state.
func (m *Machine) Start() error {
	return m.queue.Do(m.start)
}

// Stop queues a transition to Stopped. Stopping an instance that is not
// running is a no-op.
func (m *Machine) Stop(opts StopOptions) error {
	return m.queue.Do(func() error {
		return m.stop(opts.WithDefaults())
	})
}

// Reload queues apply. When the instance is running it is stopped with the
// default stop options before apply and started again afterwards, even if
// apply fails.
func (m *Machine) Reload(apply func() error) error {
	return m.queue.Do(func() error {
		switch m.State() {
		case Disposed:
			return ErrInstanceDisposed
		case Running:
			if err := m.stop(m.defaultStop); err != nil {
				return err
			}
			applyErr := apply()
			return errors.Join(applyErr, m.start())
		default:
			return apply()
		}
	})
}

// Dispose queues the final transition. A running instance is stopped
// first. Disposing a disposed instance succeeds.
func (m *Machine) Dispose(opts StopOptions) error {
	return m.queue.Do(func() error {
		if m.State() == Disposed {
			return nil
		}
		var stopErr error
		if m.State() == Running {
			stopErr = m.stop(opts.WithDefaults())
		}
		releaseErr := m.driver.Release()
		m.set(Disposed)
		return errors.Join(stopErr, releaseErr)
	})
}

func (m *Machine) start() error {
	prev := m.State()
	switch prev {
	case Running:
		return nil
	case Disposed:
		return ErrInstanceDisposed
	}

	m.set(Starting)
	if err := m.driver.Start(); err != nil {
		m.set(prev)
		return err
	}
	m.set(Running)
	return nil
}

func (m *Machine) stop(opts StopOptions) error {
	switch m.State() {
	case Disposed:
		return ErrInstanceDisposed
	case Running:
	default:
		return nil
	}

	m.set(Stopping)
	err := m.driver.Stop(opts)
	m.set(Stopped)
	return err
}
