package requestlog

import (
	"strings"
	"sync"
)

// DefaultCapacity is the number of entries a MemoryStore keeps by default.
const DefaultCapacity = 1000

// subscriberBuffer is the channel capacity for each subscriber. Entries are
// dropped for subscribers that fall behind.
const subscriberBuffer = 64

// MemoryStore is a bounded in-memory Store.
type MemoryStore struct {
	mu       sync.RWMutex
	capacity int
	entries  []*Entry // oldest first
	byID     map[string]*Entry
	subs     map[Subscriber]struct{}
}

// NewMemoryStore creates a store that keeps up to capacity entries.
// A non-positive capacity selects DefaultCapacity.
func NewMemoryStore(capacity int) *MemoryStore {
	if capacity <= 0 {
		capacity = DefaultCapacity
	}
	return &MemoryStore{
		capacity: capacity,
		byID:     make(map[string]*Entry),
		subs:     make(map[Subscriber]struct{}),
	}
}

// Log records entry, evicting the oldest entry when full.
func (s *MemoryStore) Log(entry *Entry) {
	if entry == nil {
		return
	}

	s.mu.Lock()
	if len(s.entries) >= s.capacity {
		oldest := s.entries[0]
		s.entries[0] = nil
		s.entries = s.entries[1:]
		if s.byID[oldest.ID] == oldest {
			delete(s.byID, oldest.ID)
		}
	}
	s.entries = append(s.entries, entry)
	if entry.ID != "" {
		s.byID[entry.ID] = entry
	}
	for sub := range s.subs {
		select {
		case sub <- entry:
		default:
		}
	}
	s.mu.Unlock()
}

// Get retrieves an entry by request ID.
func (s *MemoryStore) Get(id string) *Entry {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.byID[id]
}

// List returns matching entries newest first.
func (s *MemoryStore) List(filter *Filter) []*Entry {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []*Entry
	skipped := 0
	for i := len(s.entries) - 1; i >= 0; i-- {
		e := s.entries[i]
		if !filter.matches(e) {
			continue
		}
		if filter != nil && skipped < filter.Offset {
			skipped++
			continue
		}
		out = append(out, e)
		if filter != nil && filter.Limit > 0 && len(out) >= filter.Limit {
			break
		}
	}
	return out
}

// Clear removes all entries.
func (s *MemoryStore) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.entries = nil
	s.byID = make(map[string]*Entry)
}

// Count returns the number of entries.
func (s *MemoryStore) Count() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.entries)
}

// Subscribe implements SubscribableStore.
func (s *MemoryStore) Subscribe() (Subscriber, func()) {
	sub := make(Subscriber, subscriberBuffer)
	s.mu.Lock()
	s.subs[sub] = struct{}{}
	s.mu.Unlock()

	var once sync.Once
	return sub, func() {
		once.Do(func() {
			s.mu.Lock()
			delete(s.subs, sub)
			s.mu.Unlock()
			close(sub)
		})
	}
}

func (f *Filter) matches(e *Entry) bool {
	if f == nil {
		return true
	}
	switch {
	case f.InstanceID != 0 && e.InstanceID != f.InstanceID:
		return false
	case f.Outcome != "" && e.Outcome != f.Outcome:
		return false
	case f.Method != "" && !strings.EqualFold(e.Method, f.Method):
		return false
	case f.Path != "" && !strings.HasPrefix(e.Path, f.Path):
		return false
	case f.StatusCode != 0 && e.ResponseStatus != f.StatusCode:
		return false
	case f.HasError != nil && (e.Error != "") != *f.HasError:
		return false
	}
	return true
}

var _ SubscribableStore = (*MemoryStore)(nil)
