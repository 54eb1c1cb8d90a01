package lifecycle

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestQueue_RunsInOrder(t *testing.T) {
	var q Queue
	gate := make(chan struct{})
	var mu sync.Mutex
	var order []int

	var wg sync.WaitGroup
	for i := 0; i < 5; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_ = q.Do(func() error {
				if i == 0 {
					<-gate
				}
				mu.Lock()
				order = append(order, i)
				mu.Unlock()
				return nil
			})
		}()
		require.True(t, waitFor(func() bool { return q.Len() == i+1 }))
	}
	close(gate)
	wg.Wait()

	assert.Equal(t, []int{0, 1, 2, 3, 4}, order)
	assert.Equal(t, 0, q.Len())
}

func TestQueue_RecoversPanics(t *testing.T) {
	var q Queue
	err := q.Do(func() error { panic("boom") })
	require.Error(t, err)
	assert.Contains(t, err.Error(), "boom")

	require.NoError(t, q.Do(func() error { return nil }), "queue keeps working after a panic")
}
