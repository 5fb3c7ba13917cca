// Package transport provides the concrete MCP transports: an in-process
// linked pair, newline-delimited stdio, subprocesses, WebSocket and
// streamable HTTP.
package transport

import "github.com/pkg/errors"

var (
	// ErrNotBound is returned by a linked transport that has no sibling
	ErrNotBound = errors.New("transport is not bound to a sibling")
	// ErrAlreadyStarted is returned when Start is called twice
	ErrAlreadyStarted = errors.New("transport already started")
	// ErrNotStarted is returned when a message reaches a transport that has
	// no handler yet
	ErrNotStarted = errors.New("transport not started")
	// ErrTransportClosed is returned when sending on a closed transport
	ErrTransportClosed = errors.New("transport closed")
)
