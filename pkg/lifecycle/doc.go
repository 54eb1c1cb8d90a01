// Package lifecycle serializes start, stop, reload and dispose transitions
// for a listening instance.
//
// Every transition is appended to the instance's Queue and executed by a
// single worker goroutine in submission order, so two transitions on the
// same instance never overlap. Different instances have independent queues.
//
//	Created --start--> Running --stop--> Stopped --start--> Running
//	{Created, Stopped} --dispose--> Disposed   (Running stops first)
//
// Starting and Stopping are visible only while a transition is executing.
package lifecycle
