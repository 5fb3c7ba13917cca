package transport

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/pkg/errors"

	"github.com/FreePeak/golang-mcp-multiplexer/internal/domain/shared"
	"github.com/FreePeak/golang-mcp-multiplexer/internal/domain/transport"
)

// WebSocketSubprotocol is negotiated with MCP WebSocket servers
const WebSocketSubprotocol = "mcp"

const websocketWriteWait = 10 * time.Second

// WebSocketTransport is a client transport carrying one JSON-RPC message per
// text frame
type WebSocketTransport struct {
	callbacks

	url    string
	header http.Header
	dialer *websocket.Dialer

	mu        sync.Mutex
	conn      *websocket.Conn
	handler   transport.MessageHandler
	writeMu   sync.Mutex
	closeOnce sync.Once
	closeCh   chan struct{}
}

var _ transport.Transport = (*WebSocketTransport)(nil)

// WebSocketOption configures a WebSocketTransport
type WebSocketOption func(*WebSocketTransport)

// WithWebSocketHeader sets extra handshake headers
func WithWebSocketHeader(header http.Header) WebSocketOption {
	return func(t *WebSocketTransport) {
		t.header = header
	}
}

// WithDialer overrides the default dialer
func WithDialer(dialer *websocket.Dialer) WebSocketOption {
	return func(t *WebSocketTransport) {
		t.dialer = dialer
	}
}

// NewWebSocketTransport creates a transport that dials url on Start
func NewWebSocketTransport(url string, opts ...WebSocketOption) *WebSocketTransport {
	t := &WebSocketTransport{
		url:     url,
		header:  http.Header{},
		closeCh: make(chan struct{}),
		dialer: &websocket.Dialer{
			Proxy:            http.ProxyFromEnvironment,
			HandshakeTimeout: 30 * time.Second,
			Subprotocols:     []string{WebSocketSubprotocol},
		},
	}
	for _, opt := range opts {
		opt(t)
	}
	return t
}

// NewWebSocketTransportFromConn wraps an already established connection,
// typically on the accepting side
func NewWebSocketTransportFromConn(conn *websocket.Conn) *WebSocketTransport {
	t := NewWebSocketTransport("")
	t.conn = conn
	return t
}

// Start dials the server if needed and starts the read pump
func (t *WebSocketTransport) Start(ctx context.Context, handler transport.MessageHandler) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.handler != nil {
		return ErrAlreadyStarted
	}

	if t.conn == nil {
		conn, resp, err := t.dialer.DialContext(ctx, t.url, t.header)
		if resp != nil && resp.Body != nil {
			resp.Body.Close()
		}
		if err != nil {
			return errors.Wrapf(err, "error dialing %s", t.url)
		}
		t.conn = conn
	}

	t.handler = handler
	go t.readPump(context.WithoutCancel(ctx))

	return nil
}

// Send writes message as a single text frame
func (t *WebSocketTransport) Send(ctx context.Context, message shared.JSONRPCMessage) error {
	t.mu.Lock()
	conn := t.conn
	t.mu.Unlock()

	if conn == nil {
		return ErrNotStarted
	}

	select {
	case <-t.closeCh:
		return ErrTransportClosed
	default:
	}

	data, err := json.Marshal(message)
	if err != nil {
		return errors.Wrap(err, "error marshalling message")
	}

	t.writeMu.Lock()
	defer t.writeMu.Unlock()

	deadline := time.Now().Add(websocketWriteWait)
	if d, ok := ctx.Deadline(); ok && d.Before(deadline) {
		deadline = d
	}
	if err := conn.SetWriteDeadline(deadline); err != nil {
		return errors.Wrap(err, "error setting write deadline")
	}
	if err := conn.WriteMessage(websocket.TextMessage, data); err != nil {
		return errors.Wrap(err, "error writing message")
	}
	return nil
}

// Close sends a close frame and tears down the connection
func (t *WebSocketTransport) Close() error {
	var err error
	t.closeOnce.Do(func() {
		close(t.closeCh)

		t.mu.Lock()
		conn := t.conn
		t.mu.Unlock()

		if conn != nil {
			t.writeMu.Lock()
			_ = conn.WriteControl(
				websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
				time.Now().Add(time.Second),
			)
			t.writeMu.Unlock()
			err = conn.Close()
		}

		t.fireClose()
	})
	return err
}

func (t *WebSocketTransport) readPump(ctx context.Context) {
	defer t.Close()

	for {
		messageType, data, err := t.conn.ReadMessage()
		if err != nil {
			select {
			case <-t.closeCh:
			default:
				if !websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
					t.fireError(errors.Wrap(err, "error reading message"))
				}
			}
			return
		}
		if messageType != websocket.TextMessage {
			continue
		}

		message, err := shared.ParseMessage(data)
		if err != nil {
			t.fireError(err)
			continue
		}
		if err := t.handler(ctx, message); err != nil {
			t.fireError(errors.Wrap(err, "error handling message"))
		}
	}
}
