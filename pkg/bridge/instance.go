package bridge

import (
	"context"
	cryptotls "crypto/tls"
	"log/slog"
	"sync"
	"time"

	"github.com/getmockd/embedhttpd/pkg/correlation"
	"github.com/getmockd/embedhttpd/pkg/handler"
	"github.com/getmockd/embedhttpd/pkg/lifecycle"
	"github.com/getmockd/embedhttpd/pkg/listener"
	"github.com/getmockd/embedhttpd/pkg/logging"
	"github.com/getmockd/embedhttpd/pkg/message"
)

// Instance is one listening address bridged to one handler side.
type Instance struct {
	id        message.InstanceID
	name      string
	addr      Address
	createdAt time.Time
	handler   handler.Handler

	bridge  *Bridge
	log     *slog.Logger
	machine *lifecycle.Machine
	table   *correlation.Table
	ln      *listener.Listener

	orphanOnce sync.Once
}

func newInstance(b *Bridge, instanceID message.InstanceID, addr Address, h handler.Handler, cfg instanceConfig, tlsCfg *cryptotls.Config) *Instance {
	if addr.Host == "" {
		addr.Host = listener.DefaultHost
	}
	inst := &Instance{
		id:        instanceID,
		name:      cfg.name,
		addr:      addr,
		createdAt: time.Now(),
		handler:   h,
		bridge:    b,
		log:       logging.ForInstance(b.log, int64(instanceID)),
	}
	inst.table = correlation.NewTable(instanceID, correlation.WithTimeout(b.requestTimeout))
	inst.ln = listener.New(listener.Config{
		Host:           addr.Host,
		Port:           addr.Port,
		TLS:            tlsCfg,
		MaxConnections: cfg.maxConnections,
	}, listener.WithLogger(inst.log))
	inst.machine = lifecycle.NewMachine((*driver)(inst),
		lifecycle.WithObserver(inst.observe),
		lifecycle.WithDefaultStop(b.stopDefaults),
	)
	return inst
}

// ID returns the instance ID.
func (inst *Instance) ID() message.InstanceID { return inst.id }

// Name returns the instance label, possibly empty.
func (inst *Instance) Name() string { return inst.name }

// Address returns the address the instance was created with.
func (inst *Instance) Address() Address { return inst.addr }

// Addr returns the resolved host:port, including an allocated port.
func (inst *Instance) Addr() string { return inst.ln.Addr() }

// URL returns the base URL of the listener.
func (inst *Instance) URL() string { return inst.ln.Scheme() + "://" + inst.ln.Addr() }

// State returns the lifecycle state.
func (inst *Instance) State() lifecycle.State { return inst.machine.State() }

// Pending returns the number of requests waiting for a response.
func (inst *Instance) Pending() int { return inst.table.Len() }

// PendingRequests lists the requests waiting for a response.
func (inst *Instance) PendingRequests() []correlation.Info { return inst.table.Snapshot() }

// Start begins accepting connections.
func (inst *Instance) Start() error {
	return inst.machine.Start()
}

// Stop stops accepting connections. A zero opts selects the bridge's stop
// defaults.
func (inst *Instance) Stop(opts lifecycle.StopOptions) error {
	return inst.machine.Stop(inst.stopOptions(opts))
}

// Reload re-reads TLS material and, when running, restarts the listener.
func (inst *Instance) Reload() error {
	return inst.machine.Reload(inst.applyConfig)
}

// Dispose stops the instance if needed, drains pending requests, closes the
// listener and removes the instance from the bridge. It is idempotent.
func (inst *Instance) Dispose(opts lifecycle.StopOptions) error {
	return inst.machine.Dispose(inst.stopOptions(opts))
}

func (inst *Instance) stopOptions(opts lifecycle.StopOptions) lifecycle.StopOptions {
	if opts == (lifecycle.StopOptions{}) {
		return inst.bridge.stopDefaults
	}
	return opts
}

func (inst *Instance) applyConfig() error {
	if inst.addr.TLS.IsZero() {
		return nil
	}
	cfg, err := inst.addr.TLS.ServerConfig()
	if err != nil {
		return err
	}
	inst.ln.SetTLS(cfg)
	inst.log.Info("instance configuration reloaded")
	return nil
}

func (inst *Instance) observe(from, to lifecycle.State) {
	inst.log.Debug("instance state changed", "from", from.String(), "to", to.String())
	inst.bridge.metrics.Transition(from.String(), to.String())
}

// InstanceInfo describes an instance for listings.
type InstanceInfo struct {
	ID              message.InstanceID `json:"id"`
	Name            string             `json:"name,omitempty"`
	State           lifecycle.State    `json:"state"`
	Host            string             `json:"host"`
	Port            int                `json:"port"`
	URL             string             `json:"url"`
	TLS             bool               `json:"tls"`
	Pending         int                `json:"pending"`
	HandlerAttached bool               `json:"handlerAttached"`
	CreatedAt       time.Time          `json:"createdAt"`
}

// Info returns a description of the instance.
func (inst *Instance) Info() InstanceInfo {
	return InstanceInfo{
		ID:              inst.id,
		Name:            inst.name,
		State:           inst.State(),
		Host:            inst.addr.Host,
		Port:            inst.ln.Port(),
		URL:             inst.URL(),
		TLS:             !inst.addr.TLS.IsZero(),
		Pending:         inst.table.Len(),
		HandlerAttached: inst.bridge.relay.Subscribed(inst.id),
		CreatedAt:       inst.createdAt,
	}
}

// driver runs the side effects of lifecycle transitions.
type driver Instance

func (d *driver) Start() error {
	inst := (*Instance)(d)
	return inst.ln.Serve(inst)
}

func (d *driver) Stop(opts lifecycle.StopOptions) error {
	return (*Instance)(d).shutdown(opts)
}

func (d *driver) Release() error {
	return (*Instance)(d).release()
}

// shutdown drains pending requests once the grace period ends and closes
// remaining connections at the hard timeout.
func (inst *Instance) shutdown(opts lifecycle.StopOptions) error {
	grace := time.AfterFunc(opts.GracePeriod, func() {
		if n := inst.table.Drain(lifecycle.ErrInstanceStopping); n > 0 {
			inst.log.Info("drained pending requests", "count", n)
		}
	})
	defer grace.Stop()

	ctx, cancel := context.WithTimeout(context.Background(), opts.Timeout)
	defer cancel()

	err := inst.ln.Shutdown(ctx)
	inst.table.Drain(lifecycle.ErrInstanceStopping)
	inst.log.Info("instance stopped")
	return err
}

func (inst *Instance) release() error {
	inst.bridge.relay.Evict(inst.id)

	inst.table.Close(lifecycle.ErrInstanceStopping)
	err := inst.ln.Close()
	inst.bridge.forget(inst)
	inst.log.Info("instance disposed")
	return err
}
