// Package requestlog records bridged requests and how each one ended, for
// inspection through the management API.
//
// It is distinct from operational logging (log/slog): an Entry describes a
// single request from the point of view of someone debugging a handler,
// including which outcome won the race between the response, the deadline
// and a shutdown drain.
//
// # Usage
//
//	store := requestlog.NewMemoryStore(1000)
//	store.Log(&requestlog.Entry{
//	    ID:         requestID,
//	    InstanceID: 1,
//	    Method:     "GET",
//	    Path:       "/",
//	    Outcome:    requestlog.OutcomeResponded,
//	})
//
// The memory store keeps the newest entries up to its capacity and drops
// the oldest.
package requestlog
