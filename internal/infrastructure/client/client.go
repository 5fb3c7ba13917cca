// Package client implements the calling side of an MCP connection: the
// initialize handshake, request/response correlation and the tool methods.
package client

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"

	"github.com/FreePeak/golang-mcp-multiplexer/internal/domain/handler"
	"github.com/FreePeak/golang-mcp-multiplexer/internal/domain/shared"
	"github.com/FreePeak/golang-mcp-multiplexer/internal/domain/transport"
	"github.com/FreePeak/golang-mcp-multiplexer/internal/infrastructure/logging"
)

// DefaultRequestTimeout bounds a request when the caller's context has no
// deadline of its own
const DefaultRequestTimeout = 60 * time.Second

var (
	// ErrAlreadyConnected is returned when Connect is called more than once
	ErrAlreadyConnected = errors.New("client already connected")

	// ErrNotConnected is returned when a request is made before Connect
	ErrNotConnected = errors.New("client not connected")

	// ErrClientClosed is returned for requests on, or pending at, a closed client
	ErrClientClosed = errors.New("client closed")

	// ErrRequestTimeout is returned when a peer does not answer in time
	ErrRequestTimeout = errors.New("request timed out")
)

// State is the lifecycle state of a client
type State int

const (
	StateUnconnected State = iota
	StateConnecting
	StateConnected
	StateClosing
	StateClosed
)

func (s State) String() string {
	switch s {
	case StateUnconnected:
		return "unconnected"
	case StateConnecting:
		return "connecting"
	case StateConnected:
		return "connected"
	case StateClosing:
		return "closing"
	case StateClosed:
		return "closed"
	default:
		return "unknown"
	}
}

// Option configures a Client
type Option func(*Client)

// WithRequestTimeout sets the per-request timeout
func WithRequestTimeout(d time.Duration) Option {
	return func(c *Client) {
		c.timeout = d
	}
}

// WithLogger sets the client logger
func WithLogger(logger *logging.Logger) Option {
	return func(c *Client) {
		c.logger = logger.Named("client")
	}
}

// WithNotificationHandler receives notifications sent by the peer
func WithNotificationHandler(h handler.NotificationHandler) Option {
	return func(c *Client) {
		c.onNotification = h
	}
}

// Client is an MCP client bound to a single transport
type Client struct {
	info           shared.ServerInfo
	timeout        time.Duration
	logger         *logging.Logger
	onNotification handler.NotificationHandler

	mu           sync.Mutex
	state        State
	transport    transport.Transport
	pending      map[string]chan shared.JSONRPCResponse
	serverInfo   shared.ServerInfo
	capabilities shared.Capabilities
	instructions string

	done      chan struct{}
	closeOnce sync.Once
}

// New creates a client that introduces itself as name/version
func New(name, version string, opts ...Option) *Client {
	c := &Client{
		info:    shared.ServerInfo{Name: name, Version: version},
		timeout: DefaultRequestTimeout,
		logger:  logging.Default().Named("client"),
		pending: make(map[string]chan shared.JSONRPCResponse),
		done:    make(chan struct{}),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Connect starts t and performs the initialize handshake. On failure the
// transport is closed and the client cannot be reused.
func (c *Client) Connect(ctx context.Context, t transport.Transport) error {
	c.mu.Lock()
	if c.state != StateUnconnected {
		c.mu.Unlock()
		return ErrAlreadyConnected
	}
	c.state = StateConnecting
	c.transport = t
	c.mu.Unlock()

	t.SetCloseHandler(c.markClosed)
	t.SetErrorHandler(func(err error) {
		c.logger.Warn("transport error", logging.Fields{"error": err})
	})

	if err := t.Start(ctx, c.handleMessage); err != nil {
		c.markClosed()
		return errors.Wrap(err, "error starting transport")
	}

	if err := c.handshake(ctx); err != nil {
		_ = c.Close()
		return err
	}

	c.mu.Lock()
	if c.state == StateConnecting {
		c.state = StateConnected
	}
	c.mu.Unlock()
	return nil
}

func (c *Client) handshake(ctx context.Context) error {
	params := shared.InitializeParams{
		ProtocolVersion: shared.ProtocolVersion,
		Capabilities:    shared.ClientCapabilities{},
		ClientInfo:      c.info,
	}

	var result shared.InitializeResult
	if err := c.request(ctx, shared.MethodInitialize, params, &result); err != nil {
		return errors.Wrap(err, "initialize failed")
	}

	c.mu.Lock()
	c.serverInfo = result.ServerInfo
	c.capabilities = result.Capabilities
	c.instructions = result.Instructions
	c.mu.Unlock()

	notification, err := shared.NewNotification(shared.NotificationInitialized, nil)
	if err != nil {
		return err
	}
	if err := c.transport.Send(ctx, notification); err != nil {
		return errors.Wrap(err, "error sending initialized notification")
	}

	c.logger.Debug("connected", logging.Fields{
		"peer":            result.ServerInfo.Name,
		"peerVersion":     result.ServerInfo.Version,
		"protocolVersion": result.ProtocolVersion,
		"tools":           result.Capabilities.SupportsTools(),
	})
	return nil
}

// State returns the current lifecycle state
func (c *Client) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// ServerInfo returns the peer's name and version from the handshake
func (c *Client) ServerInfo() shared.ServerInfo {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.serverInfo
}

// ServerCapabilities returns the capabilities the peer advertised
func (c *Client) ServerCapabilities() shared.Capabilities {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.capabilities
}

// Instructions returns the peer's usage instructions, if any
func (c *Client) Instructions() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.instructions
}

// Ping checks the peer is responsive
func (c *Client) Ping(ctx context.Context) error {
	if err := c.ready(); err != nil {
		return err
	}
	return c.request(ctx, shared.MethodPing, nil, nil)
}

// ListTools returns every tool the peer offers, following pagination
// cursors. Peers without the tools capability yield an empty list without a
// round trip.
func (c *Client) ListTools(ctx context.Context) ([]shared.Tool, error) {
	if err := c.ready(); err != nil {
		return nil, err
	}
	if !c.ServerCapabilities().SupportsTools() {
		return []shared.Tool{}, nil
	}

	tools := make([]shared.Tool, 0)
	cursor := ""
	for {
		var params interface{}
		if cursor != "" {
			params = shared.ListToolsParams{Cursor: cursor}
		}

		var result shared.ListToolsResult
		if err := c.request(ctx, shared.MethodListTools, params, &result); err != nil {
			return nil, err
		}
		tools = append(tools, result.Tools...)

		if result.NextCursor == "" || result.NextCursor == cursor {
			return tools, nil
		}
		cursor = result.NextCursor
	}
}

// CallTool invokes a tool on the peer. A JSON-RPC error from the peer is
// returned as *shared.JSONRPCError.
func (c *Client) CallTool(ctx context.Context, name string, arguments map[string]interface{}) (*shared.CallToolResult, error) {
	if err := c.ready(); err != nil {
		return nil, err
	}

	params := shared.CallToolParams{Name: name, Arguments: arguments}
	var result shared.CallToolResult
	if err := c.request(ctx, shared.MethodCallTool, params, &result); err != nil {
		return nil, err
	}
	return &result, nil
}

// Close closes the transport and fails pending requests. It is safe to call
// more than once.
func (c *Client) Close() error {
	c.mu.Lock()
	switch c.state {
	case StateClosing, StateClosed:
		c.mu.Unlock()
		return nil
	case StateUnconnected:
		c.mu.Unlock()
		c.markClosed()
		return nil
	}
	c.state = StateClosing
	t := c.transport
	c.mu.Unlock()

	err := t.Close()
	c.markClosed()
	return err
}

// Done is closed once the client or its transport has closed
func (c *Client) Done() <-chan struct{} {
	return c.done
}

func (c *Client) markClosed() {
	c.closeOnce.Do(func() {
		c.mu.Lock()
		c.state = StateClosed
		c.pending = make(map[string]chan shared.JSONRPCResponse)
		c.mu.Unlock()
		close(c.done)
	})
}

func (c *Client) ready() error {
	switch c.State() {
	case StateConnected:
		return nil
	case StateClosing, StateClosed:
		return ErrClientClosed
	default:
		return ErrNotConnected
	}
}

func (c *Client) request(ctx context.Context, method string, params interface{}, out interface{}) error {
	id := uuid.New().String()
	req, err := shared.NewRequest(id, method, params)
	if err != nil {
		return errors.Wrap(err, "error building request")
	}

	ch := make(chan shared.JSONRPCResponse, 1)
	c.mu.Lock()
	if c.state == StateClosed {
		c.mu.Unlock()
		return ErrClientClosed
	}
	c.pending[id] = ch
	t := c.transport
	c.mu.Unlock()
	defer c.forget(id)

	timeoutErr := errors.Wrapf(ErrRequestTimeout, "%s after %s", method, c.timeout)
	ctx, cancel := context.WithTimeoutCause(ctx, c.timeout, timeoutErr)
	defer cancel()

	// Send may run the peer synchronously, so it is raced against the deadline
	logging.LogJSONRPCMessage(c.logger, "send", req)
	sent := make(chan error, 1)
	go func() {
		sent <- t.Send(ctx, req)
	}()

	for {
		select {
		case err := <-sent:
			if err != nil {
				if ctx.Err() != nil {
					return contextError(ctx)
				}
				return errors.Wrapf(err, "error sending %s", method)
			}
			sent = nil
		case resp := <-ch:
			if resp.Error != nil {
				return resp.Error
			}
			if out == nil {
				return nil
			}
			return shared.DecodeResult(resp.Result, out)
		case <-ctx.Done():
			return contextError(ctx)
		case <-c.done:
			return ErrClientClosed
		}
	}
}

// contextError reports a request timeout as ErrRequestTimeout and a caller's
// cancellation or deadline as ctx.Err()
func contextError(ctx context.Context) error {
	if cause := context.Cause(ctx); errors.Is(cause, ErrRequestTimeout) {
		return cause
	}
	return ctx.Err()
}

func (c *Client) forget(id string) {
	c.mu.Lock()
	delete(c.pending, id)
	c.mu.Unlock()
}

func (c *Client) handleMessage(ctx context.Context, message shared.JSONRPCMessage) error {
	logging.LogJSONRPCMessage(c.logger, "recv", message)

	switch msg := message.(type) {
	case shared.JSONRPCResponse:
		key := shared.IDKey(msg.ID)
		c.mu.Lock()
		ch, ok := c.pending[key]
		c.mu.Unlock()
		if !ok {
			c.logger.Debug("dropping response for unknown request", logging.Fields{"id": key})
			return nil
		}
		select {
		case ch <- msg:
		default:
		}
		return nil

	case shared.JSONRPCRequest:
		c.mu.Lock()
		t := c.transport
		c.mu.Unlock()
		if msg.Method == shared.MethodPing {
			return t.Send(ctx, shared.NewResult(msg.ID, struct{}{}))
		}
		return t.Send(ctx, shared.NewErrorResponse(msg.ID, shared.MethodNotFound, "Method not found"))

	case shared.JSONRPCNotification:
		if c.onNotification != nil {
			c.onNotification(ctx, msg)
		}
		return nil
	}
	return nil
}
