// Package testutil holds hand-written test doubles shared across packages.
package testutil

import (
	"context"
	"fmt"
	"sync"

	"github.com/FreePeak/golang-mcp-multiplexer/internal/domain/shared"
	mcperrors "github.com/FreePeak/golang-mcp-multiplexer/internal/domain/shared/errors"
	"github.com/FreePeak/golang-mcp-multiplexer/internal/domain/transport"
)

// MockTransport implements transport.Transport for testing
type MockTransport struct {
	StartFunc func(ctx context.Context, handler transport.MessageHandler) error
	SendFunc  func(ctx context.Context, message shared.JSONRPCMessage) error
	CloseFunc func() error

	mu         sync.Mutex
	messages   []shared.JSONRPCMessage
	handler    transport.MessageHandler
	onClose    transport.CloseHandler
	onError    transport.ErrorHandler
	closeCalls int
	messagesCh chan shared.JSONRPCMessage
}

var _ transport.Transport = (*MockTransport)(nil)

// NewMockTransport creates a new mock transport
func NewMockTransport() *MockTransport {
	return &MockTransport{
		messages:   make([]shared.JSONRPCMessage, 0),
		messagesCh: make(chan shared.JSONRPCMessage, 100),
	}
}

// Start implements Transport.Start
func (m *MockTransport) Start(ctx context.Context, handler transport.MessageHandler) error {
	m.mu.Lock()
	m.handler = handler
	m.mu.Unlock()

	if m.StartFunc != nil {
		return m.StartFunc(ctx, handler)
	}
	return nil
}

// Send implements Transport.Send
func (m *MockTransport) Send(ctx context.Context, message shared.JSONRPCMessage) error {
	m.mu.Lock()
	m.messages = append(m.messages, message)
	m.mu.Unlock()

	select {
	case m.messagesCh <- message:
	default:
	}

	if m.SendFunc != nil {
		return m.SendFunc(ctx, message)
	}
	return nil
}

// Close implements Transport.Close. The close handler fires on every call.
func (m *MockTransport) Close() error {
	m.mu.Lock()
	m.closeCalls++
	onClose := m.onClose
	m.mu.Unlock()

	if onClose != nil {
		onClose()
	}
	if m.CloseFunc != nil {
		return m.CloseFunc()
	}
	return nil
}

// SetCloseHandler implements Transport.SetCloseHandler
func (m *MockTransport) SetCloseHandler(handler transport.CloseHandler) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.onClose = handler
}

// SetErrorHandler implements Transport.SetErrorHandler
func (m *MockTransport) SetErrorHandler(handler transport.ErrorHandler) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.onError = handler
}

// SimulateIncomingMessage feeds message to the registered handler
func (m *MockTransport) SimulateIncomingMessage(ctx context.Context, message shared.JSONRPCMessage) error {
	m.mu.Lock()
	handler := m.handler
	m.mu.Unlock()

	if handler != nil {
		return handler(ctx, message)
	}
	return nil
}

// SimulateError feeds err to the registered error handler
func (m *MockTransport) SimulateError(err error) {
	m.mu.Lock()
	onError := m.onError
	m.mu.Unlock()

	if onError != nil {
		onError(err)
	}
}

// GetMessages returns all sent messages
func (m *MockTransport) GetMessages() []shared.JSONRPCMessage {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]shared.JSONRPCMessage(nil), m.messages...)
}

// CloseCalls returns how many times Close was called
func (m *MockTransport) CloseCalls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.closeCalls
}

// IsStarted reports whether Start was called
func (m *MockTransport) IsStarted() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.handler != nil
}

// WaitForMessage waits for a message to be sent
func (m *MockTransport) WaitForMessage(ctx context.Context) (shared.JSONRPCMessage, error) {
	select {
	case msg := <-m.messagesCh:
		return msg, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// MockToolHandler is a configurable, concurrency-safe ToolHandler
type MockToolHandler struct {
	mu          sync.Mutex
	tools       []shared.Tool
	results     map[string]*shared.CallToolResult
	funcs       map[string]func(ctx context.Context, args map[string]interface{}) (*shared.CallToolResult, error)
	listError   error
	callErrors  map[string]error
	calledTools map[string][]map[string]interface{}
	listCalls   int
}

// NewMockToolHandler creates a new mock tool handler
func NewMockToolHandler() *MockToolHandler {
	return &MockToolHandler{
		tools:       make([]shared.Tool, 0),
		results:     make(map[string]*shared.CallToolResult),
		funcs:       make(map[string]func(ctx context.Context, args map[string]interface{}) (*shared.CallToolResult, error)),
		callErrors:  make(map[string]error),
		calledTools: make(map[string][]map[string]interface{}),
	}
}

// AddTool adds a tool that answers with result
func (m *MockToolHandler) AddTool(name, description string, result []shared.Content) *MockToolHandler {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.tools = append(m.tools, shared.Tool{
		Name:        name,
		Description: description,
		InputSchema: map[string]interface{}{"type": "object"},
	})
	m.results[name] = &shared.CallToolResult{Content: result}
	return m
}

// AddToolFunc adds a tool served by fn
func (m *MockToolHandler) AddToolFunc(name string, fn func(ctx context.Context, args map[string]interface{}) (*shared.CallToolResult, error)) *MockToolHandler {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.tools = append(m.tools, shared.Tool{Name: name, InputSchema: map[string]interface{}{"type": "object"}})
	m.funcs[name] = fn
	return m
}

// SetListError sets the error to return from ListTools
func (m *MockToolHandler) SetListError(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.listError = err
}

// SetCallError sets the error to return from CallTool for a specific tool
func (m *MockToolHandler) SetCallError(name string, err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.callErrors[name] = err
}

// GetCalledArgs returns the arguments a tool was called with
func (m *MockToolHandler) GetCalledArgs(name string) []map[string]interface{} {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.calledTools[name]
}

// ListCalls returns how many times ListTools ran
func (m *MockToolHandler) ListCalls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.listCalls
}

// ListTools returns the list of tools
func (m *MockToolHandler) ListTools(ctx context.Context) ([]shared.Tool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.listCalls++
	if m.listError != nil {
		return nil, m.listError
	}
	return append([]shared.Tool(nil), m.tools...), nil
}

// CallTool records the call and returns the configured outcome
func (m *MockToolHandler) CallTool(ctx context.Context, name string, args map[string]interface{}) (*shared.CallToolResult, error) {
	m.mu.Lock()
	m.calledTools[name] = append(m.calledTools[name], args)
	err := m.callErrors[name]
	fn := m.funcs[name]
	result, ok := m.results[name]
	m.mu.Unlock()

	if err != nil {
		return nil, err
	}
	if fn != nil {
		return fn(ctx, args)
	}
	if !ok {
		return nil, mcperrors.NewNotFoundError(fmt.Sprintf("tool %s not found", name), nil)
	}
	return result, nil
}
