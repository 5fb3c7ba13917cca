// Package server declares in-process MCP servers from public tool types.
// An MCPServer can be served on its own over stdio or HTTP, or embedded as a
// peer of a multiplexer.
package server

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"sync"

	"github.com/pkg/errors"
	"go.uber.org/zap"

	"github.com/FreePeak/golang-mcp-multiplexer/internal/domain/shared"
	mcperrors "github.com/FreePeak/golang-mcp-multiplexer/internal/domain/shared/errors"
	"github.com/FreePeak/golang-mcp-multiplexer/internal/infrastructure/logging"
	internalserver "github.com/FreePeak/golang-mcp-multiplexer/internal/infrastructure/server"
	"github.com/FreePeak/golang-mcp-multiplexer/internal/infrastructure/transport"
	"github.com/FreePeak/golang-mcp-multiplexer/internal/interfaces/rest"
	"github.com/FreePeak/golang-mcp-multiplexer/internal/usecases/multiplexer"
	"github.com/FreePeak/golang-mcp-multiplexer/pkg/types"
)

// ToolHandler is a function that handles tool calls. A string or []byte
// result is returned as text, anything else as its JSON encoding.
type ToolHandler func(ctx context.Context, request ToolCallRequest) (interface{}, error)

// ToolCallRequest represents a request to execute a tool.
type ToolCallRequest struct {
	Name       string
	Parameters map[string]interface{}
}

// MCPServer represents an MCP server built from public tool declarations.
type MCPServer struct {
	name         string
	version      string
	instructions string
	logger       *logging.Logger

	mu       sync.RWMutex
	order    []string
	tools    map[string]*types.Tool
	handlers map[string]ToolHandler
}

// NewMCPServer creates a new MCP server with the specified name and version.
func NewMCPServer(name, version string) *MCPServer {
	return &MCPServer{
		name:     name,
		version:  version,
		logger:   logging.Default(),
		tools:    make(map[string]*types.Tool),
		handlers: make(map[string]ToolHandler),
	}
}

// WithInstructions sets the instructions returned from initialize.
func (s *MCPServer) WithInstructions(instructions string) *MCPServer {
	s.instructions = instructions
	return s
}

// WithLogger sets the logger used by every server instance.
func (s *MCPServer) WithLogger(logger *zap.Logger) *MCPServer {
	s.logger = logging.NewFromZap(logger)
	return s
}

// Name returns the server name.
func (s *MCPServer) Name() string {
	return s.name
}

// AddTool adds a tool to the MCP server. Adding a tool with an existing name
// replaces it.
func (s *MCPServer) AddTool(ctx context.Context, tool *types.Tool, handler ToolHandler) error {
	if tool == nil {
		return fmt.Errorf("tool cannot be nil")
	}
	if tool.Name == "" {
		return fmt.Errorf("tool name cannot be empty")
	}
	if handler == nil {
		return fmt.Errorf("handler cannot be nil")
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.tools[tool.Name]; !exists {
		s.order = append(s.order, tool.Name)
	}
	s.tools[tool.Name] = tool
	s.handlers[tool.Name] = handler
	return nil
}

// RegisterToolHandler replaces the handler of an existing tool.
func (s *MCPServer) RegisterToolHandler(name string, handler ToolHandler) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.tools[name]; !exists {
		return fmt.Errorf("tool %s not found", name)
	}
	s.handlers[name] = handler
	return nil
}

// Peer returns a fresh server instance that a multiplexer can embed.
func (s *MCPServer) Peer() multiplexer.EmbeddedPeer {
	return s.newServer(s.logger)
}

// ServeStdio serves the MCP server over standard I/O until ctx is done or
// stdin closes.
func (s *MCPServer) ServeStdio(ctx context.Context) error {
	s.logger.Info("serving over stdio", logging.Fields{"server": s.name, "version": s.version})

	t := transport.NewStdioTransportFromOS()
	srv := s.newServer(s.logger)
	if err := srv.Connect(ctx, t); err != nil {
		return errors.Wrap(err, "error connecting stdio transport")
	}

	select {
	case <-ctx.Done():
		_ = srv.Close()
		return ctx.Err()
	case <-t.Done():
		return nil
	}
}

// Handler returns a streamable HTTP handler that gives every session its own
// server instance.
func (s *MCPServer) Handler() (http.Handler, error) {
	return rest.NewCoordinator(func(ctx context.Context, args rest.CreateServerArgs) (*internalserver.Server, error) {
		return s.newServer(args.Logger), nil
	}, rest.WithLogger(s.logger))
}

func (s *MCPServer) newServer(logger *logging.Logger) *internalserver.Server {
	srv := internalserver.NewServer(s.name, s.version).
		WithToolHandler(toolHandler{s}).
		WithLogger(logger)
	if s.instructions != "" {
		srv.WithInstructions(s.instructions)
	}
	return srv
}

// toolHandler serves an MCPServer's tools to the internal server
type toolHandler struct {
	s *MCPServer
}

func (h toolHandler) ListTools(ctx context.Context) ([]shared.Tool, error) {
	h.s.mu.RLock()
	defer h.s.mu.RUnlock()

	out := make([]shared.Tool, 0, len(h.s.order))
	for _, name := range h.s.order {
		tool := h.s.tools[name]
		out = append(out, shared.Tool{
			Name:        tool.Name,
			Description: tool.Description,
			InputSchema: tool.InputSchema(),
		})
	}
	return out, nil
}

func (h toolHandler) CallTool(ctx context.Context, name string, arguments map[string]interface{}) (*shared.CallToolResult, error) {
	h.s.mu.RLock()
	handler, ok := h.s.handlers[name]
	h.s.mu.RUnlock()
	if !ok {
		return nil, &mcperrors.ToolNotFoundError{Name: name}
	}

	result, err := handler(ctx, ToolCallRequest{Name: name, Parameters: arguments})
	if err != nil {
		return nil, &mcperrors.ToolExecutionError{Name: name, Cause: err}
	}

	text, err := resultText(result)
	if err != nil {
		return nil, errors.Wrapf(err, "error encoding result of %s", name)
	}
	return &shared.CallToolResult{Content: []shared.Content{shared.NewTextContent(text)}}, nil
}

func resultText(result interface{}) (string, error) {
	switch v := result.(type) {
	case nil:
		return "", nil
	case string:
		return v, nil
	case []byte:
		return string(v), nil
	case fmt.Stringer:
		return v.String(), nil
	default:
		data, err := json.Marshal(v)
		if err != nil {
			return "", err
		}
		return string(data), nil
	}
}
