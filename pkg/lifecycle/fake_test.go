package lifecycle

import (
	"sync"
	"time"
)

// fakeDriver records calls and can block or fail on demand.
type fakeDriver struct {
	mu       sync.Mutex
	calls    []string
	startErr error
	gate     chan struct{}
}

func (d *fakeDriver) record(call string) {
	d.mu.Lock()
	d.calls = append(d.calls, call)
	d.mu.Unlock()
}

func (d *fakeDriver) wait() {
	d.mu.Lock()
	gate := d.gate
	d.mu.Unlock()
	if gate != nil {
		<-gate
	}
}

func (d *fakeDriver) Start() error {
	d.wait()
	d.record("start")
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.startErr
}

func (d *fakeDriver) Stop(opts StopOptions) error {
	d.wait()
	d.record("stop")
	return nil
}

func (d *fakeDriver) Release() error {
	d.record("release")
	return nil
}

func (d *fakeDriver) Calls() []string {
	d.mu.Lock()
	defer d.mu.Unlock()
	return append([]string(nil), d.calls...)
}

func waitFor(cond func() bool) bool {
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return true
		}
		time.Sleep(time.Millisecond)
	}
	return false
}
