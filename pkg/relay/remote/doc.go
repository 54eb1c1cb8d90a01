// Package remote carries the event relay over a WebSocket so the handler
// side of an instance can live in another process.
//
// The server side is an Endpoint mounted on the management API. Each
// attached connection becomes the instance's relay subscriber: requests are
// written as "request" envelopes and "response" envelopes read back are
// published as ResponseReady. The handler side runs a Client, which answers
// each request with a handler.Handler on its own goroutine.
//
// Every frame is one JSON Envelope:
//
//	{"type":"attached","instanceId":3}
//	{"type":"request","instanceId":3,"requestId":"…","request":{…}}
//	{"type":"response","requestId":"…","response":{"status":200,…}}
//	{"type":"error","requestId":"…","error":"request not found"}
package remote
