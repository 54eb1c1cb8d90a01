package correlation

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/getmockd/embedhttpd/pkg/message"
)

var errStopping = errors.New("instance stopping")

func TestRegister_Duplicate(t *testing.T) {
	tbl := NewTable(1)
	_, err := tbl.Register("r1")
	require.NoError(t, err)

	_, err = tbl.Register("r1")
	require.ErrorIs(t, err, ErrDuplicateRequestID)
	assert.Equal(t, 1, tbl.Len())
}

func TestRegister_SetsDeadline(t *testing.T) {
	base := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	tbl := NewTable(3, WithClock(func() time.Time { return base }), WithTimeout(5*time.Second))

	p, err := tbl.Register("r1")
	require.NoError(t, err)
	assert.Equal(t, message.InstanceID(3), p.InstanceID)
	assert.Equal(t, base, p.CreatedAt)
	assert.Equal(t, base.Add(5*time.Second), p.Deadline)
	assert.Equal(t, 5*time.Second, tbl.Timeout())
}

func TestDefaultTimeout(t *testing.T) {
	assert.Equal(t, 60*time.Second, NewTable(1).Timeout())
}

func TestComplete_DeliversResponse(t *testing.T) {
	tbl := NewTable(1)
	p, err := tbl.Register("r1")
	require.NoError(t, err)

	want := message.NewResponse(200, map[string]string{"Content-Type": "text/plain"}, []byte("ok"))
	require.NoError(t, tbl.Complete("r1", want))
	assert.Equal(t, 0, tbl.Len(), "completed entries leave the table immediately")

	got, err := tbl.Await(context.Background(), p)
	require.NoError(t, err)
	assert.Same(t, want, got)
	assert.Equal(t, OutcomeResponded, p.Outcome())
}

func TestComplete_TwiceReturnsAlreadyCompleted(t *testing.T) {
	tbl := NewTable(1)
	p, _ := tbl.Register("r1")

	first := &message.Response{Status: 200, Body: []byte("first")}
	second := &message.Response{Status: 500, Body: []byte("second")}

	require.NoError(t, tbl.Complete("r1", first))
	err := tbl.Complete("r1", second)
	require.ErrorIs(t, err, ErrAlreadyCompleted)
	assert.ErrorIs(t, err, ErrNotFound, "already-completed is a kind of not-found")

	got, err := tbl.Await(context.Background(), p)
	require.NoError(t, err)
	assert.Equal(t, "first", string(got.Body))
}

func TestComplete_Unknown(t *testing.T) {
	tbl := NewTable(1)
	err := tbl.Complete("nope", &message.Response{})
	require.ErrorIs(t, err, ErrNotFound)
	assert.NotErrorIs(t, err, ErrAlreadyCompleted)
}

func TestAwait_TimeoutRemovesEntry(t *testing.T) {
	tbl := NewTable(1, WithTimeout(30*time.Millisecond))
	p, _ := tbl.Register("r1")

	start := time.Now()
	_, err := tbl.Await(context.Background(), p)
	require.ErrorIs(t, err, ErrTimeout)
	assert.GreaterOrEqual(t, time.Since(start), 25*time.Millisecond)
	assert.Equal(t, 0, tbl.Len())
	assert.Equal(t, OutcomeTimeout, p.Outcome())

	err = tbl.Complete("r1", &message.Response{})
	require.ErrorIs(t, err, ErrNotFound)
	assert.NotErrorIs(t, err, ErrAlreadyCompleted)
}

func TestAwait_ContextCancel(t *testing.T) {
	tbl := NewTable(1)
	p, _ := tbl.Register("r1")

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := tbl.Await(ctx, p)
	require.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, 0, tbl.Len())
}

func TestDrain_ResolvesAllWithCause(t *testing.T) {
	tbl := NewTable(1)
	var slots []*Pending
	for _, id := range []string{"a", "b", "c"} {
		p, err := tbl.Register(id)
		require.NoError(t, err)
		slots = append(slots, p)
	}
	require.NoError(t, tbl.Complete("a", &message.Response{}))

	assert.Equal(t, 2, tbl.Drain(errStopping))
	assert.Equal(t, 0, tbl.Len())

	for _, p := range slots[1:] {
		_, err := tbl.Await(context.Background(), p)
		require.ErrorIs(t, err, errStopping)
		assert.Equal(t, OutcomeDrained, p.Outcome())
	}

	// Drain forgets completed IDs as well.
	require.ErrorIs(t, tbl.Complete("a", &message.Response{}), ErrNotFound)
	assert.NotErrorIs(t, tbl.Complete("a", &message.Response{}), ErrAlreadyCompleted)

	_, err := tbl.Register("d")
	require.NoError(t, err, "a drained table accepts new registrations")
}

func TestClose_RefusesRegistrations(t *testing.T) {
	tbl := NewTable(1)
	_, _ = tbl.Register("a")
	assert.Equal(t, 1, tbl.Close(errStopping))

	_, err := tbl.Register("b")
	require.ErrorIs(t, err, ErrClosed)
}

func TestFail(t *testing.T) {
	tbl := NewTable(1)
	p, _ := tbl.Register("r1")
	boom := errors.New("boom")

	require.NoError(t, tbl.Fail("r1", boom))
	_, err := tbl.Await(context.Background(), p)
	require.ErrorIs(t, err, boom)
	require.ErrorIs(t, tbl.Fail("r1", boom), ErrNotFound)
}

func TestSnapshot_OldestFirst(t *testing.T) {
	base := time.Now()
	var tick atomic.Int64
	tbl := NewTable(9, WithClock(func() time.Time {
		return base.Add(time.Duration(tick.Add(1)) * time.Millisecond)
	}))
	_, _ = tbl.Register("second-id")
	_, _ = tbl.Register("first-id")

	snap := tbl.Snapshot()
	require.Len(t, snap, 2)
	assert.Equal(t, "second-id", snap[0].RequestID)
	assert.Equal(t, message.InstanceID(9), snap[1].InstanceID)
}

func TestRememberCompleted_IsBounded(t *testing.T) {
	tbl := NewTable(1, WithRememberCompleted(2))
	for _, id := range []string{"a", "b", "c"} {
		_, _ = tbl.Register(id)
		require.NoError(t, tbl.Complete(id, &message.Response{}))
	}
	assert.NotErrorIs(t, tbl.Complete("a", nil), ErrAlreadyCompleted, "oldest id evicted")
	assert.ErrorIs(t, tbl.Complete("c", nil), ErrAlreadyCompleted)
}

// Exactly one of response, timeout, or drain wins for every slot.
func TestSingleWriterWins_UnderContention(t *testing.T) {
	const n = 200
	tbl := NewTable(1, WithTimeout(5*time.Millisecond))

	var responded, timedOut, drained atomic.Int64
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		id := fmt.Sprintf("req-%d", i)
		p, err := tbl.Register(id)
		require.NoError(t, err)

		wg.Add(2)
		go func() {
			defer wg.Done()
			time.Sleep(time.Duration(i%7) * time.Millisecond)
			_ = tbl.Complete(id, &message.Response{Status: 200})
		}()
		go func() {
			defer wg.Done()
			_, err := tbl.Await(context.Background(), p)
			switch {
			case err == nil:
				responded.Add(1)
			case errors.Is(err, ErrTimeout):
				timedOut.Add(1)
			case errors.Is(err, errStopping):
				drained.Add(1)
			default:
				t.Errorf("unexpected outcome: %v", err)
			}
		}()
	}
	time.Sleep(3 * time.Millisecond)
	tbl.Drain(errStopping)
	wg.Wait()

	assert.Equal(t, int64(n), responded.Load()+timedOut.Load()+drained.Load())
	assert.Equal(t, 0, tbl.Len())
}
