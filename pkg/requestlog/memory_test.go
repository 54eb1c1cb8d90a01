package requestlog

import (
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func entry(id string, instance int64, outcome string) *Entry {
	return &Entry{ID: id, InstanceID: instance, Timestamp: time.Now(), Method: "GET", Path: "/" + id, Outcome: outcome}
}

func TestMemoryStore_EvictsOldest(t *testing.T) {
	s := NewMemoryStore(3)
	for i := 0; i < 5; i++ {
		s.Log(entry(fmt.Sprintf("r%d", i), 1, OutcomeResponded))
	}
	assert.Equal(t, 3, s.Count())
	assert.Nil(t, s.Get("r0"))
	assert.NotNil(t, s.Get("r4"))

	list := s.List(nil)
	require.Len(t, list, 3)
	assert.Equal(t, "r4", list[0].ID, "newest first")
	assert.Equal(t, "r2", list[2].ID)
}

func TestMemoryStore_Filter(t *testing.T) {
	s := NewMemoryStore(0)
	s.Log(entry("a", 1, OutcomeResponded))
	s.Log(entry("b", 2, OutcomeTimeout))
	errored := entry("c", 1, OutcomeError)
	errored.Error = "boom"
	s.Log(errored)

	assert.Len(t, s.List(&Filter{InstanceID: 1}), 2)
	assert.Len(t, s.List(&Filter{Outcome: OutcomeTimeout}), 1)
	assert.Len(t, s.List(&Filter{Path: "/c"}), 1)
	yes := true
	got := s.List(&Filter{HasError: &yes})
	require.Len(t, got, 1)
	assert.Equal(t, "c", got[0].ID)

	page := s.List(&Filter{Offset: 1, Limit: 1})
	require.Len(t, page, 1)
	assert.Equal(t, "b", page[0].ID)
}

func TestMemoryStore_Clear(t *testing.T) {
	s := NewMemoryStore(10)
	s.Log(entry("a", 1, OutcomeResponded))
	s.Log(nil)
	s.Clear()
	assert.Equal(t, 0, s.Count())
	assert.Nil(t, s.Get("a"))
}

func TestMemoryStore_Subscribe(t *testing.T) {
	s := NewMemoryStore(10)
	sub, unsubscribe := s.Subscribe()

	s.Log(entry("a", 1, OutcomeOrphan))
	select {
	case e := <-sub:
		assert.Equal(t, "a", e.ID)
	case <-time.After(time.Second):
		t.Fatal("subscriber did not receive entry")
	}

	unsubscribe()
	unsubscribe()
	_, open := <-sub
	assert.False(t, open)
	s.Log(entry("b", 1, OutcomeOrphan))
}
