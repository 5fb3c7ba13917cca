package transport

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"

	"github.com/pkg/errors"
	"github.com/tmaxmax/go-sse"

	"github.com/FreePeak/golang-mcp-multiplexer/internal/domain/shared"
	"github.com/FreePeak/golang-mcp-multiplexer/internal/domain/transport"
)

const defaultEventBuffer = 64

// ErrEventBufferFull is returned when server-initiated messages pile up
// faster than the event stream drains them
var ErrEventBufferFull = errors.New("event buffer full")

// StreamableSession is the server half of one streamable HTTP session. HTTP
// handlers feed it requests and it answers each with the response the
// connected server sends for that request id.
type StreamableSession struct {
	callbacks

	id            string
	onInitialized func(sessionID string)

	mu          sync.Mutex
	handler     transport.MessageHandler
	pending     map[string]chan shared.JSONRPCResponse
	initialized bool

	events    chan shared.JSONRPCMessage
	closeCh   chan struct{}
	closeOnce sync.Once
}

var _ transport.Transport = (*StreamableSession)(nil)

// SessionOption configures a StreamableSession
type SessionOption func(*StreamableSession)

// WithSessionInitialized registers a callback fired once, after the
// session's initialize request succeeds
func WithSessionInitialized(fn func(sessionID string)) SessionOption {
	return func(s *StreamableSession) {
		s.onInitialized = fn
	}
}

// WithEventBuffer sets how many server-initiated messages are queued for the
// event stream
func WithEventBuffer(size int) SessionOption {
	return func(s *StreamableSession) {
		s.events = make(chan shared.JSONRPCMessage, size)
	}
}

// NewStreamableSession creates a session transport with the given id
func NewStreamableSession(id string, opts ...SessionOption) *StreamableSession {
	s := &StreamableSession{
		id:      id,
		pending: make(map[string]chan shared.JSONRPCResponse),
		events:  make(chan shared.JSONRPCMessage, defaultEventBuffer),
		closeCh: make(chan struct{}),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// SessionID returns the session identifier
func (s *StreamableSession) SessionID() string {
	return s.id
}

// Start registers the server's message handler
func (s *StreamableSession) Start(ctx context.Context, handler transport.MessageHandler) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.handler != nil {
		return ErrAlreadyStarted
	}
	if s.isClosed() {
		return ErrTransportClosed
	}
	s.handler = handler
	return nil
}

// Send routes a response to the HTTP request waiting for it. Anything else
// is queued for the event stream.
func (s *StreamableSession) Send(ctx context.Context, message shared.JSONRPCMessage) error {
	if s.isClosed() {
		return ErrTransportClosed
	}

	if resp, ok := message.(shared.JSONRPCResponse); ok {
		key := shared.IDKey(resp.ID)
		s.mu.Lock()
		ch, found := s.pending[key]
		delete(s.pending, key)
		s.mu.Unlock()

		if found {
			ch <- resp
			return nil
		}
	}

	select {
	case s.events <- message:
		return nil
	default:
		return ErrEventBufferFull
	}
}

// HandleRequest delivers one inbound message and writes the HTTP reply.
// Requests are answered with their JSON-RPC response; notifications and
// responses are acknowledged with 202.
func (s *StreamableSession) HandleRequest(w http.ResponseWriter, r *http.Request, message shared.JSONRPCMessage) error {
	s.mu.Lock()
	handler := s.handler
	s.mu.Unlock()

	if s.isClosed() {
		return ErrTransportClosed
	}
	if handler == nil {
		return ErrNotStarted
	}

	w.Header().Set(SessionHeader, s.id)

	req, ok := message.(shared.JSONRPCRequest)
	if !ok {
		if err := handler(r.Context(), message); err != nil {
			return errors.Wrap(err, "error handling message")
		}
		w.WriteHeader(http.StatusAccepted)
		return nil
	}

	key := shared.IDKey(req.ID)
	ch := make(chan shared.JSONRPCResponse, 1)
	s.mu.Lock()
	s.pending[key] = ch
	s.mu.Unlock()

	if err := handler(r.Context(), req); err != nil {
		s.forget(key)
		return errors.Wrap(err, "error handling request")
	}

	var resp shared.JSONRPCResponse
	select {
	case resp = <-ch:
	case <-r.Context().Done():
		s.forget(key)
		return r.Context().Err()
	case <-s.closeCh:
		s.forget(key)
		return ErrTransportClosed
	}

	if req.Method == shared.MethodInitialize && resp.Error == nil {
		s.markInitialized()
	}

	w.Header().Set("Content-Type", contentTypeJSON)
	w.WriteHeader(http.StatusOK)
	return json.NewEncoder(w).Encode(resp)
}

// ServeEvents streams server-initiated messages over SSE until the client
// disconnects or the session closes
func (s *StreamableSession) ServeEvents(w http.ResponseWriter, r *http.Request) error {
	if s.isClosed() {
		return ErrTransportClosed
	}

	w.Header().Set(SessionHeader, s.id)
	sess, err := sse.Upgrade(w, r)
	if err != nil {
		return errors.Wrap(err, "error upgrading to event stream")
	}
	if err := sess.Flush(); err != nil {
		return errors.Wrap(err, "error flushing event stream")
	}

	for {
		select {
		case <-r.Context().Done():
			return nil
		case <-s.closeCh:
			return nil
		case message := <-s.events:
			data, err := json.Marshal(message)
			if err != nil {
				s.fireError(errors.Wrap(err, "error marshalling event"))
				continue
			}
			msg := &sse.Message{Type: sse.Type("message")}
			msg.AppendData(string(data))
			if err := sess.Send(msg); err != nil {
				return errors.Wrap(err, "error sending event")
			}
			if err := sess.Flush(); err != nil {
				return errors.Wrap(err, "error flushing event stream")
			}
		}
	}
}

// Close ends the session and fires the close handler once
func (s *StreamableSession) Close() error {
	s.closeOnce.Do(func() {
		close(s.closeCh)
		s.fireClose()
	})
	return nil
}

// Initialized reports whether the initialize handshake completed
func (s *StreamableSession) Initialized() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.initialized
}

func (s *StreamableSession) markInitialized() {
	s.mu.Lock()
	first := !s.initialized
	s.initialized = true
	s.mu.Unlock()

	if first && s.onInitialized != nil {
		s.onInitialized(s.id)
	}
}

func (s *StreamableSession) forget(key string) {
	s.mu.Lock()
	delete(s.pending, key)
	s.mu.Unlock()
}

func (s *StreamableSession) isClosed() bool {
	select {
	case <-s.closeCh:
		return true
	default:
		return false
	}
}
