// Package correlation tracks requests that are waiting for a response from
// the handler side.
//
// Each listening instance owns one Table. The native side registers a
// Pending slot for every inbound request before announcing it, then blocks
// in Await. Exactly one outcome resolves a slot: a response, the slot's
// deadline, a drain during shutdown, or cancellation of the waiting
// connection. Whichever happens first wins and the others become no-ops.
//
// Resolved slots leave the table immediately. Request IDs that were
// completed by a response are remembered in a small bounded set so a
// repeated Complete can be reported as ErrAlreadyCompleted rather than
// ErrNotFound.
package correlation
