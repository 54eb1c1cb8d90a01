package control

import (
	"fmt"
	"strings"

	"github.com/getmockd/embedhttpd/pkg/bridge"
	"github.com/getmockd/embedhttpd/pkg/config"
	"github.com/getmockd/embedhttpd/pkg/handler"
	"github.com/getmockd/embedhttpd/pkg/relay"
)

// Provision creates the instance declared by ic and starts it when
// ic.AutoStart is set. A failed start disposes the new instance.
func Provision(b *bridge.Bridge, ic *config.InstanceConfig, opts ...bridge.InstanceOption) (*bridge.Instance, error) {
	if err := ic.Validate(); err != nil {
		return nil, err
	}
	h, err := handler.New(ic.Handler)
	if err != nil {
		return nil, err
	}
	mat, err := ic.TLS.Material(ic.Host)
	if err != nil {
		return nil, err
	}
	if ic.Name != "" {
		opts = append(opts, bridge.WithName(ic.Name))
	}

	instanceID, err := b.CreateInstance(bridge.Address{
		Host: ic.Host,
		Port: ic.PortOrDefault(),
		TLS:  mat,
	}, h, opts...)
	if err != nil {
		return nil, err
	}
	inst, err := b.Instance(instanceID)
	if err != nil {
		return nil, err
	}
	if ic.Handler != nil && strings.EqualFold(ic.Handler.Type, handler.TypeManual) {
		// Requests wait in the correlation table for Respond calls.
		if _, err := b.Relay().Subscribe(instanceID, "manual", func(relay.RequestArrived) {}); err != nil {
			_ = inst.Dispose(b.StopDefaults())
			return nil, err
		}
	}

	if ic.AutoStart {
		if err := inst.Start(); err != nil {
			_ = inst.Dispose(b.StopDefaults())
			return nil, fmt.Errorf("starting instance %s: %w", instanceID, err)
		}
	}
	return inst, nil
}
