package transport

import (
	"sync"

	"github.com/FreePeak/golang-mcp-multiplexer/internal/domain/transport"
)

// callbacks holds the onclose and onerror slots shared by every transport.
type callbacks struct {
	mu      sync.RWMutex
	onClose transport.CloseHandler
	onError transport.ErrorHandler
}

// SetCloseHandler registers the onclose callback
func (c *callbacks) SetCloseHandler(handler transport.CloseHandler) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.onClose = handler
}

// SetErrorHandler registers the onerror callback
func (c *callbacks) SetErrorHandler(handler transport.ErrorHandler) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.onError = handler
}

func (c *callbacks) fireClose() {
	c.mu.RLock()
	handler := c.onClose
	c.mu.RUnlock()
	if handler != nil {
		handler()
	}
}

func (c *callbacks) fireError(err error) {
	c.mu.RLock()
	handler := c.onError
	c.mu.RUnlock()
	if handler != nil && err != nil {
		handler(err)
	}
}
