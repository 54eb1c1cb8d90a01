// Package bridge connects native HTTP listeners to handler-side logic that
// runs on its own schedule.
//
// A Bridge owns a registry of instances. Each Instance is one listening
// address with a lifecycle machine, a correlation table and exactly one
// handler-side subscriber on the bridge's relay. For every accepted
// request the instance:
//
//  1. decodes the request into its canonical form,
//  2. registers a pending slot under a fresh request ID,
//  3. publishes RequestArrived on the relay,
//  4. waits for the slot to resolve,
//  5. writes whatever won: the handler's response, a 504 on timeout, or a
//     503 when the instance is stopping or has no handler.
//
// The handler side answers through Bridge.Respond, which publishes
// ResponseReady and completes the slot. An in-process handler.Handler
// passed to CreateInstance is subscribed and answered automatically; a
// remote handler attaches through the relay/remote package.
package bridge
