// Package cli implements the embedhttpd command line.
//
// "serve" runs a bridge with its management API. Every other command is a
// client of a running bridge's management API, located by --control-url
// or $EMBEDHTTPD_CONTROL_URL. With --json, commands write only JSON to
// stdout.
package cli
