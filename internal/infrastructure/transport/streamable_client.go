package transport

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime"
	"net/http"
	"sync"

	"github.com/pkg/errors"
	"github.com/tmaxmax/go-sse"

	"github.com/FreePeak/golang-mcp-multiplexer/internal/domain/shared"
	"github.com/FreePeak/golang-mcp-multiplexer/internal/domain/transport"
)

// SessionHeader carries the MCP session identifier over HTTP
const SessionHeader = "Mcp-Session-Id"

const (
	contentTypeJSON = "application/json"
	contentTypeSSE  = "text/event-stream"
)

// ErrSessionExpired is returned when the server no longer knows the session
var ErrSessionExpired = errors.New("session expired")

// StreamableHTTPClientTransport posts every message to one MCP endpoint and
// reads replies from either a JSON body or an SSE stream
type StreamableHTTPClientTransport struct {
	callbacks

	url    string
	client *http.Client
	header http.Header

	mu        sync.Mutex
	handler   transport.MessageHandler
	sessionID string
	closed    bool
}

var _ transport.Transport = (*StreamableHTTPClientTransport)(nil)

// StreamableHTTPOption configures a StreamableHTTPClientTransport
type StreamableHTTPOption func(*StreamableHTTPClientTransport)

// WithHTTPClient sets the HTTP client
func WithHTTPClient(client *http.Client) StreamableHTTPOption {
	return func(t *StreamableHTTPClientTransport) {
		t.client = client
	}
}

// WithHTTPHeader sets an extra header on every request
func WithHTTPHeader(key, value string) StreamableHTTPOption {
	return func(t *StreamableHTTPClientTransport) {
		t.header.Set(key, value)
	}
}

// NewStreamableHTTPClientTransport creates a transport for the endpoint url
func NewStreamableHTTPClientTransport(url string, opts ...StreamableHTTPOption) *StreamableHTTPClientTransport {
	t := &StreamableHTTPClientTransport{
		url:    url,
		client: http.DefaultClient,
		header: http.Header{},
	}
	for _, opt := range opts {
		opt(t)
	}
	return t
}

// SessionID returns the session assigned by the server, if any
func (t *StreamableHTTPClientTransport) SessionID() string {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.sessionID
}

// Start registers the handler. No connection is made until the first Send.
func (t *StreamableHTTPClientTransport) Start(ctx context.Context, handler transport.MessageHandler) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.handler != nil {
		return ErrAlreadyStarted
	}
	if t.closed {
		return ErrTransportClosed
	}
	t.handler = handler
	return nil
}

// Send posts message and dispatches whatever the server returns
func (t *StreamableHTTPClientTransport) Send(ctx context.Context, message shared.JSONRPCMessage) error {
	t.mu.Lock()
	closed, handler, sessionID := t.closed, t.handler, t.sessionID
	t.mu.Unlock()

	if closed {
		return ErrTransportClosed
	}
	if handler == nil {
		return ErrNotStarted
	}

	body, err := json.Marshal(message)
	if err != nil {
		return errors.Wrap(err, "error marshalling message")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, t.url, bytes.NewReader(body))
	if err != nil {
		return errors.Wrap(err, "error creating request")
	}
	t.applyHeaders(req, sessionID)
	req.Header.Set("Content-Type", contentTypeJSON)
	req.Header.Set("Accept", contentTypeJSON+", "+contentTypeSSE)

	resp, err := t.client.Do(req)
	if err != nil {
		return errors.Wrap(err, "error posting message")
	}
	defer resp.Body.Close()

	if id := resp.Header.Get(SessionHeader); id != "" {
		t.mu.Lock()
		t.sessionID = id
		t.mu.Unlock()
	}

	if resp.StatusCode == http.StatusNotFound && sessionID != "" {
		return errors.Wrapf(ErrSessionExpired, "session %s", sessionID)
	}
	if resp.StatusCode >= http.StatusBadRequest {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("unexpected status %d: %s", resp.StatusCode, bytes.TrimSpace(snippet))
	}
	if resp.StatusCode == http.StatusAccepted || !message.IsRequest() {
		return nil
	}

	mediaType, _, _ := mime.ParseMediaType(resp.Header.Get("Content-Type"))
	switch mediaType {
	case contentTypeSSE:
		return t.readStream(ctx, resp.Body, handler)
	case contentTypeJSON:
		data, err := io.ReadAll(resp.Body)
		if err != nil {
			return errors.Wrap(err, "error reading response")
		}
		return t.dispatch(ctx, data, handler)
	default:
		return fmt.Errorf("unexpected content type %q", mediaType)
	}
}

func (t *StreamableHTTPClientTransport) readStream(ctx context.Context, body io.Reader, handler transport.MessageHandler) error {
	for ev, err := range sse.Read(body, nil) {
		if err != nil {
			if errors.Is(err, context.Canceled) {
				return nil
			}
			return errors.Wrap(err, "error reading event stream")
		}
		if ev.Type != "" && ev.Type != "message" {
			continue
		}
		if err := t.dispatch(ctx, []byte(ev.Data), handler); err != nil {
			t.fireError(err)
		}
	}
	return nil
}

func (t *StreamableHTTPClientTransport) dispatch(ctx context.Context, data []byte, handler transport.MessageHandler) error {
	data = bytes.TrimSpace(data)
	if len(data) > 0 && data[0] == '[' {
		var batch []json.RawMessage
		if err := json.Unmarshal(data, &batch); err != nil {
			return errors.Wrap(err, "error unmarshalling batch")
		}
		for _, item := range batch {
			if err := t.dispatch(ctx, item, handler); err != nil {
				return err
			}
		}
		return nil
	}

	message, err := shared.ParseMessage(data)
	if err != nil {
		return err
	}
	return handler(ctx, message)
}

// Close terminates the server session with DELETE when one exists
func (t *StreamableHTTPClientTransport) Close() error {
	t.mu.Lock()
	if t.closed {
		t.mu.Unlock()
		return nil
	}
	t.closed = true
	sessionID := t.sessionID
	t.mu.Unlock()

	var err error
	if sessionID != "" {
		err = t.terminate(sessionID)
	}

	t.fireClose()
	return err
}

func (t *StreamableHTTPClientTransport) terminate(sessionID string) error {
	req, err := http.NewRequest(http.MethodDelete, t.url, nil)
	if err != nil {
		return errors.Wrap(err, "error creating delete request")
	}
	t.applyHeaders(req, sessionID)

	resp, err := t.client.Do(req)
	if err != nil {
		return errors.Wrap(err, "error terminating session")
	}
	resp.Body.Close()

	// Servers may refuse explicit termination.
	if resp.StatusCode >= http.StatusBadRequest && resp.StatusCode != http.StatusMethodNotAllowed && resp.StatusCode != http.StatusNotFound {
		return fmt.Errorf("unexpected status %d terminating session", resp.StatusCode)
	}
	return nil
}

func (t *StreamableHTTPClientTransport) applyHeaders(req *http.Request, sessionID string) {
	for k, values := range t.header {
		for _, v := range values {
			req.Header.Add(k, v)
		}
	}
	if sessionID != "" {
		req.Header.Set(SessionHeader, sessionID)
	}
}
