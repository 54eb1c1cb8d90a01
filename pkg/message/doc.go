// Package message defines the canonical request and response values that
// cross between the native listener and the handler side, and the codec
// that translates them to and from net/http.
//
// The codec is pure and stateless. Decoding a native request normalizes
// header keys to their canonical MIME form, keeps the first value of a
// repeated single-valued header, and leaves GET and HEAD requests without a
// body. Encoding a response fills in the defaults the handler side may omit:
// status 200 and a text/plain content type.
//
// Request and Response carry JSON tags. That encoding is the one wire schema
// used when messages leave the process (see the relay/remote package).
package message
