package transport

import (
	"context"
	"sync"

	"github.com/FreePeak/golang-mcp-multiplexer/internal/domain/shared"
	"github.com/FreePeak/golang-mcp-multiplexer/internal/domain/transport"
)

// LinkedTransport is an in-process transport that hands every sent message
// straight to its sibling's handler. Messages are not serialized.
type LinkedTransport struct {
	callbacks

	mu      sync.Mutex
	sibling *LinkedTransport
	handler transport.MessageHandler
	started bool
	closed  bool
}

var _ transport.Transport = (*LinkedTransport)(nil)

// NewLinkedTransport creates an unbound linked transport
func NewLinkedTransport() *LinkedTransport {
	return &LinkedTransport{}
}

// NewLinkedPair creates two linked transports bound to each other
func NewLinkedPair() (*LinkedTransport, *LinkedTransport) {
	a, b := NewLinkedTransport(), NewLinkedTransport()
	a.Bind(b)
	return a, b
}

// Bind links t and other in both directions
func (t *LinkedTransport) Bind(other *LinkedTransport) {
	t.mu.Lock()
	t.sibling = other
	t.mu.Unlock()

	other.mu.Lock()
	other.sibling = t
	other.mu.Unlock()
}

// Start registers the handler for messages sent by the sibling
func (t *LinkedTransport) Start(ctx context.Context, handler transport.MessageHandler) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.sibling == nil {
		return ErrNotBound
	}
	if t.started {
		return ErrAlreadyStarted
	}
	if t.closed {
		return ErrTransportClosed
	}

	t.handler = handler
	t.started = true
	return nil
}

// Send synchronously delivers message to the sibling's handler. The
// sibling's handler error is returned to the sender.
func (t *LinkedTransport) Send(ctx context.Context, message shared.JSONRPCMessage) error {
	t.mu.Lock()
	sibling := t.sibling
	closed := t.closed
	t.mu.Unlock()

	if sibling == nil {
		return ErrNotBound
	}
	if closed {
		return ErrTransportClosed
	}

	return sibling.deliver(ctx, message)
}

func (t *LinkedTransport) deliver(ctx context.Context, message shared.JSONRPCMessage) error {
	t.mu.Lock()
	handler := t.handler
	closed := t.closed
	t.mu.Unlock()

	if closed {
		return ErrTransportClosed
	}
	if handler == nil {
		return ErrNotStarted
	}

	return handler(ctx, message)
}

// Close marks the transport closed, runs its close handler and closes the
// sibling. Only the first call has any effect.
func (t *LinkedTransport) Close() error {
	t.mu.Lock()
	if t.closed {
		t.mu.Unlock()
		return nil
	}
	t.closed = true
	sibling := t.sibling
	t.mu.Unlock()

	t.fireClose()

	if sibling != nil {
		return sibling.Close()
	}
	return nil
}

// IsClosed reports whether Close has run
func (t *LinkedTransport) IsClosed() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.closed
}
