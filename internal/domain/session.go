package domain

import "github.com/FreePeak/golang-mcp-multiplexer/internal/domain/transport"

// SessionStore maps session identifiers to live transports.
type SessionStore interface {
	// Get returns the transport for id and marks it most recently used.
	Get(id string) (transport.Transport, bool)

	// Set stores t under id, possibly evicting another session.
	Set(id string, t transport.Transport)

	// Delete removes id without closing its transport.
	Delete(id string)

	// Len returns the number of stored sessions.
	Len() int
}
