package lifecycle

import (
	"errors"
	"math/rand/v2"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStateString(t *testing.T) {
	assert.Equal(t, "running", Running.String())
	assert.Equal(t, "state(42)", State(42).String())

	var s State
	require.NoError(t, s.UnmarshalText([]byte("stopping")))
	assert.Equal(t, Stopping, s)
	assert.Error(t, s.UnmarshalText([]byte("paused")))
}

func TestStopOptions_WithDefaults(t *testing.T) {
	o := StopOptions{}.WithDefaults()
	assert.Equal(t, DefaultGracePeriod, o.GracePeriod)
	assert.Equal(t, DefaultStopTimeout, o.Timeout)

	o = StopOptions{GracePeriod: time.Second, Timeout: time.Millisecond}.WithDefaults()
	assert.Equal(t, time.Second, o.Timeout, "timeout never shorter than grace")
}

func TestMachine_BasicTransitions(t *testing.T) {
	d := &fakeDriver{}
	var seen []string
	m := NewMachine(d, WithObserver(func(from, to State) {
		seen = append(seen, from.String()+">"+to.String())
	}))
	assert.Equal(t, Created, m.State())

	require.NoError(t, m.Start())
	assert.Equal(t, Running, m.State())
	require.NoError(t, m.Start(), "start while running is a no-op")

	require.NoError(t, m.Stop(StopOptions{}))
	assert.Equal(t, Stopped, m.State())
	require.NoError(t, m.Stop(StopOptions{}), "stop while stopped is a no-op")

	require.NoError(t, m.Start())
	assert.Equal(t, []string{"start", "stop", "start"}, d.Calls())
	assert.Equal(t, []string{
		"created>starting", "starting>running",
		"running>stopping", "stopping>stopped",
		"stopped>starting", "starting>running",
	}, seen)
}

func TestMachine_StopBeforeStartIsNoop(t *testing.T) {
	d := &fakeDriver{}
	m := NewMachine(d)
	require.NoError(t, m.Stop(StopOptions{}))
	assert.Equal(t, Created, m.State())
	assert.Empty(t, d.Calls())
}

func TestMachine_FailedStartRestoresState(t *testing.T) {
	boom := errors.New("bind failed")
	d := &fakeDriver{startErr: boom}
	m := NewMachine(d)

	require.ErrorIs(t, m.Start(), boom)
	assert.Equal(t, Created, m.State())
}

func TestMachine_DisposeStopsRunningAndIsIdempotent(t *testing.T) {
	d := &fakeDriver{}
	m := NewMachine(d)
	require.NoError(t, m.Start())

	require.NoError(t, m.Dispose(StopOptions{}))
	assert.Equal(t, Disposed, m.State())
	require.NoError(t, m.Dispose(StopOptions{}))
	assert.Equal(t, []string{"start", "stop", "release"}, d.Calls())

	require.ErrorIs(t, m.Start(), ErrInstanceDisposed)
	require.ErrorIs(t, m.Stop(StopOptions{}), ErrInstanceDisposed)
	require.ErrorIs(t, m.Reload(func() error { return nil }), ErrInstanceDisposed)
}

func TestMachine_ReloadRestartsWhenRunning(t *testing.T) {
	d := &fakeDriver{}
	m := NewMachine(d)

	applied := 0
	require.NoError(t, m.Reload(func() error { applied++; return nil }))
	assert.Equal(t, Created, m.State())
	assert.Empty(t, d.Calls(), "reload of an idle instance only applies")

	require.NoError(t, m.Start())
	require.NoError(t, m.Reload(func() error { applied++; return nil }))
	assert.Equal(t, Running, m.State())
	assert.Equal(t, 2, applied)
	assert.Equal(t, []string{"start", "stop", "start"}, d.Calls())
}

func TestMachine_ReloadApplyErrorStillRestarts(t *testing.T) {
	d := &fakeDriver{}
	m := NewMachine(d)
	require.NoError(t, m.Start())

	bad := errors.New("bad tls material")
	require.ErrorIs(t, m.Reload(func() error { return bad }), bad)
	assert.Equal(t, Running, m.State())
}

// Transitions queued while another one is executing run in submission
// order, so the final state is the target of the last queued operation.
func TestMachine_FinalStateMatchesLastQueued(t *testing.T) {
	for round := 0; round < 20; round++ {
		d := &fakeDriver{gate: make(chan struct{})}
		m := NewMachine(d)

		ops := make([]bool, 2+rand.IntN(6)) // true = start
		for i := range ops {
			ops[i] = rand.IntN(2) == 0
		}
		ops[0] = true

		var wg sync.WaitGroup
		for i, start := range ops {
			wg.Add(1)
			go func() {
				defer wg.Done()
				if start {
					_ = m.Start()
				} else {
					_ = m.Stop(StopOptions{GracePeriod: time.Millisecond})
				}
			}()
			require.True(t, waitFor(func() bool { return m.Pending() == i+1 }), "op %d never queued", i)
		}
		close(d.gate)
		wg.Wait()

		want := Stopped
		if ops[len(ops)-1] {
			want = Running
		}
		assert.Equal(t, want, m.State(), "ops=%v", ops)
		assert.Equal(t, 0, m.Pending())
	}
}

func TestMachine_ConcurrentCallersNeverOverlap(t *testing.T) {
	var mu sync.Mutex
	inFlight, maxInFlight := 0, 0
	d := &overlapDriver{enter: func() {
		mu.Lock()
		inFlight++
		if inFlight > maxInFlight {
			maxInFlight = inFlight
		}
		mu.Unlock()
		time.Sleep(200 * time.Microsecond)
		mu.Lock()
		inFlight--
		mu.Unlock()
	}}
	m := NewMachine(d)

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if i%2 == 0 {
				_ = m.Start()
			} else {
				_ = m.Stop(StopOptions{})
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, 1, maxInFlight)
	assert.Contains(t, []State{Running, Stopped, Created}, m.State())
}

type overlapDriver struct{ enter func() }

func (d *overlapDriver) Start() error { d.enter(); return nil }
func (d *overlapDriver) Stop(_ StopOptions) error { d.enter(); return nil }
func (d *overlapDriver) Release() error { return nil }
