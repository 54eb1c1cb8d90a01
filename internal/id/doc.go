// Package id provides identifier generation for the bridge.
//
// Two kinds of identity exist:
//
//   - Request IDs: random UUID v4 strings, one per inbound request. They key
//     the per-instance correlation table and travel with every relay message.
//   - Instance IDs: small integers handed out by a Sequence. A Sequence never
//     returns the same value twice for its lifetime, so an instance ID is
//     never reused while the process runs.
//
// Short IDs (16 hex characters) are used where a compact label is enough,
// such as naming remote relay connections in logs.
package id
