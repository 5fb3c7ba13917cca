package transport

import (
	"context"

	"github.com/FreePeak/golang-mcp-multiplexer/internal/domain/shared"
)

// MessageHandler is a function that handles incoming messages
type MessageHandler func(ctx context.Context, message shared.JSONRPCMessage) error

// CloseHandler is invoked once when a transport closes, whoever closed it
type CloseHandler func()

// ErrorHandler receives errors that cannot be returned to a caller, such as
// read failures in a background loop
type ErrorHandler func(err error)

// Transport defines the interface for MCP transports
type Transport interface {
	// Start starts the transport with the given message handler
	Start(ctx context.Context, handler MessageHandler) error

	// Send sends a message through the transport
	Send(ctx context.Context, message shared.JSONRPCMessage) error

	// Close closes the transport. It is safe to call more than once.
	Close() error

	// SetCloseHandler registers the onclose callback
	SetCloseHandler(handler CloseHandler)

	// SetErrorHandler registers the onerror callback
	SetErrorHandler(handler ErrorHandler)
}

// TransportFactory creates transports
type TransportFactory interface {
	// CreateTransport creates a new transport instance
	CreateTransport() (Transport, error)
}

// TransportFactoryFunc adapts a function to TransportFactory
type TransportFactoryFunc func() (Transport, error)

// CreateTransport calls f
func (f TransportFactoryFunc) CreateTransport() (Transport, error) {
	return f()
}
