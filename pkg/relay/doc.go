// Package relay carries messages between the native side and the handler
// side of the bridge.
//
// Two message types exist. RequestArrived flows from the native listener to
// the single subscriber registered for the instance. ResponseReady flows
// back and is handed to the response sink, which resolves the matching
// correlation slot.
//
// Each instance has at most one subscriber. A subscription lives exactly as
// long as the handler side that registered it: an in-process handler
// subscribes when its instance is created, and a remote handler subscribes
// for the lifetime of its WebSocket connection (see the remote
// subpackage). Publishing a request for an instance without a subscriber
// fails with ErrOrphanInstance.
//
// Requests are delivered on their own goroutine, so handler execution is
// never serialized by the relay.
package relay
