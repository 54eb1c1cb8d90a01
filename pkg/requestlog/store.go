package requestlog

// Logger is the minimal interface for recording entries.
type Logger interface {
	Log(entry *Entry)
}

// Store is request history storage queried by the management API.
type Store interface {
	Logger

	// Get retrieves an entry by request ID, or nil.
	Get(id string) *Entry

	// List returns entries newest first, optionally filtered.
	List(filter *Filter) []*Entry

	// Clear removes all entries.
	Clear()

	// Count returns the number of entries.
	Count() int
}

// Filter defines criteria for listing entries. Zero fields match anything.
type Filter struct {
	InstanceID int64
	Outcome    string
	Method     string

	// Path filters by path prefix.
	Path string

	StatusCode int
	HasError   *bool

	Limit  int
	Offset int
}

// Subscriber receives new entries as they are logged.
type Subscriber chan *Entry

// SubscribableStore extends Store with real-time delivery.
type SubscribableStore interface {
	Store

	// Subscribe returns a channel of new entries and a function that ends
	// the subscription.
	Subscribe() (Subscriber, func())
}
