// Package server implements an MCP tool server that can be connected to any
// transport, including one half of an in-process linked pair.
package server

import (
	"context"
	"fmt"
	"sync"

	"github.com/pkg/errors"

	"github.com/FreePeak/golang-mcp-multiplexer/internal/domain"
	"github.com/FreePeak/golang-mcp-multiplexer/internal/domain/handler"
	"github.com/FreePeak/golang-mcp-multiplexer/internal/domain/shared"
	mcperrors "github.com/FreePeak/golang-mcp-multiplexer/internal/domain/shared/errors"
	"github.com/FreePeak/golang-mcp-multiplexer/internal/domain/transport"
	"github.com/FreePeak/golang-mcp-multiplexer/internal/infrastructure/logging"
)

// Server represents an MCP server
type Server struct {
	info         shared.ServerInfo
	instructions string
	capabilities shared.Capabilities
	transport    transport.Transport
	logger       *logging.Logger

	toolHandler         handler.ToolHandler
	notificationHandler handler.NotificationHandler

	requestHandlers map[string]handler.RequestHandler
	isInitialized   bool
	mu              sync.RWMutex
}

// NewServer creates a new MCP server
func NewServer(name, version string) *Server {
	return &Server{
		info: shared.ServerInfo{
			Name:    name,
			Version: version,
		},
		capabilities:    shared.Capabilities{},
		logger:          logging.Default(),
		requestHandlers: make(map[string]handler.RequestHandler),
	}
}

// WithToolHandler adds a tool handler to the server
func (s *Server) WithToolHandler(handler handler.ToolHandler) *Server {
	s.toolHandler = handler
	s.capabilities.Tools = &shared.ToolsCapability{}
	return s
}

// WithNotificationHandler receives client notifications other than
// notifications/initialized
func (s *Server) WithNotificationHandler(handler handler.NotificationHandler) *Server {
	s.notificationHandler = handler
	return s
}

// WithInstructions sets the instructions returned from initialize
func (s *Server) WithInstructions(instructions string) *Server {
	s.instructions = instructions
	return s
}

// WithLogger sets the server logger
func (s *Server) WithLogger(logger *logging.Logger) *Server {
	s.logger = logger.Named("server")
	return s
}

// Info returns the server name and version
func (s *Server) Info() shared.ServerInfo {
	return s.info
}

// SetRequestHandler registers a custom request handler
func (s *Server) SetRequestHandler(method string, handler handler.RequestHandler) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.requestHandlers[method] = handler
}

// Connect binds the server to t and starts it. The server owns t from then
// on.
func (s *Server) Connect(ctx context.Context, t transport.Transport) error {
	s.mu.Lock()
	if s.transport != nil {
		s.mu.Unlock()
		return ErrAlreadyConnected
	}
	s.transport = t
	s.mu.Unlock()

	t.SetErrorHandler(func(err error) {
		s.logger.Warn("transport error", logging.Fields{"server": s.info.Name, "error": err})
	})

	if err := t.Start(ctx, s.handleMessage); err != nil {
		return errors.Wrap(err, "error starting transport")
	}
	return nil
}

// Close closes the transport
func (s *Server) Close() error {
	s.mu.RLock()
	t := s.transport
	s.mu.RUnlock()

	if t == nil {
		return nil
	}
	return t.Close()
}

// handleMessage processes incoming JSON-RPC messages
func (s *Server) handleMessage(ctx context.Context, message shared.JSONRPCMessage) error {
	switch msg := message.(type) {
	case shared.JSONRPCRequest:
		return s.handleRequest(ctx, msg)
	case shared.JSONRPCNotification:
		s.handleNotification(ctx, msg)
		return nil
	default:
		// Responses to server-initiated requests are not used.
		return nil
	}
}

func (s *Server) handleNotification(ctx context.Context, notification shared.JSONRPCNotification) {
	if notification.Method == shared.NotificationInitialized {
		return
	}
	if s.notificationHandler != nil {
		s.notificationHandler(ctx, notification)
	}
}

func (s *Server) handleRequest(ctx context.Context, req shared.JSONRPCRequest) error {
	switch req.Method {
	case shared.MethodInitialize:
		return s.handleInitialize(ctx, req)
	case shared.MethodPing:
		return s.sendResponse(ctx, req, struct{}{})
	}

	s.mu.RLock()
	initialized := s.isInitialized
	s.mu.RUnlock()
	if !initialized {
		return s.sendErrorResponse(ctx, req, shared.InvalidRequest, "Server not initialized")
	}

	switch req.Method {
	case shared.MethodShutdown:
		return s.handleShutdown(ctx, req)
	case shared.MethodListTools:
		return s.handleListTools(ctx, req)
	case shared.MethodCallTool:
		return s.handleCallTool(ctx, req)
	default:
		s.mu.RLock()
		handler, exists := s.requestHandlers[req.Method]
		s.mu.RUnlock()

		if exists {
			return s.handleCustomRequest(ctx, req, handler)
		}

		return s.sendErrorResponse(ctx, req, shared.MethodNotFound, "Method not found")
	}
}

// handleInitialize handles the initialize method
func (s *Server) handleInitialize(ctx context.Context, req shared.JSONRPCRequest) error {
	var params shared.InitializeParams
	if err := shared.DecodeParams(req.Params, &params); err != nil {
		return s.sendErrorResponse(ctx, req, shared.InvalidParams, "Invalid params")
	}

	s.mu.Lock()
	s.isInitialized = true
	s.mu.Unlock()

	s.logger.Debug("client initialized", logging.Fields{
		"server":          s.info.Name,
		"client":          params.ClientInfo.Name,
		"protocolVersion": params.ProtocolVersion,
	})

	result := shared.InitializeResult{
		ProtocolVersion: shared.ProtocolVersion,
		ServerInfo:      s.info,
		Capabilities:    s.capabilities,
		Instructions:    s.instructions,
	}

	return s.sendResponse(ctx, req, result)
}

// handleShutdown handles the shutdown method
func (s *Server) handleShutdown(ctx context.Context, req shared.JSONRPCRequest) error {
	s.mu.Lock()
	s.isInitialized = false
	s.mu.Unlock()

	return s.sendResponse(ctx, req, struct{}{})
}

// handleListTools handles the tools/list method
func (s *Server) handleListTools(ctx context.Context, req shared.JSONRPCRequest) error {
	if s.toolHandler == nil {
		return s.sendErrorResponse(ctx, req, shared.MethodNotFound, "Tools not supported")
	}

	tools, err := s.toolHandler.ListTools(ctx)
	if err != nil {
		return s.sendMCPErrorResponse(ctx, req, err)
	}
	if tools == nil {
		tools = []shared.Tool{}
	}

	return s.sendResponse(ctx, req, shared.ListToolsResult{Tools: tools})
}

// handleCallTool handles the tools/call method
func (s *Server) handleCallTool(ctx context.Context, req shared.JSONRPCRequest) error {
	if s.toolHandler == nil {
		return s.sendErrorResponse(ctx, req, shared.MethodNotFound, "Tools not supported")
	}

	var params shared.CallToolParams
	if err := shared.DecodeParams(req.Params, &params); err != nil || params.Name == "" {
		return s.sendErrorResponse(ctx, req, shared.InvalidParams, "Invalid params")
	}

	result, err := s.toolHandler.CallTool(ctx, params.Name, params.Arguments)
	if err != nil {
		var execErr *mcperrors.ToolExecutionError
		if errors.As(err, &execErr) {
			return s.sendResponse(ctx, req, shared.NewToolErrorResult(execErr.Error()))
		}
		return s.sendMCPErrorResponse(ctx, req, err)
	}
	if result == nil {
		result = &shared.CallToolResult{}
	}
	if result.Content == nil {
		result.Content = []shared.Content{}
	}

	return s.sendResponse(ctx, req, result)
}

// handleCustomRequest handles a custom request method
func (s *Server) handleCustomRequest(ctx context.Context, req shared.JSONRPCRequest, handler handler.RequestHandler) error {
	result, err := handler(ctx, req.Params)
	if err != nil {
		return s.sendMCPErrorResponse(ctx, req, err)
	}
	if result == nil {
		result = struct{}{}
	}

	return s.sendResponse(ctx, req, result)
}

// sendResponse sends a JSON-RPC response
func (s *Server) sendResponse(ctx context.Context, req shared.JSONRPCRequest, result interface{}) error {
	return s.send(ctx, shared.NewResult(req.ID, result))
}

// sendErrorResponse sends a JSON-RPC error response
func (s *Server) sendErrorResponse(ctx context.Context, req shared.JSONRPCRequest, code shared.ErrorCode, message string) error {
	return s.send(ctx, shared.NewErrorResponse(req.ID, code, message))
}

// sendMCPErrorResponse maps handler errors to JSON-RPC errors. Errors that
// already carry a JSON-RPC payload, typically from a downstream peer, are
// forwarded unchanged.
func (s *Server) sendMCPErrorResponse(ctx context.Context, req shared.JSONRPCRequest, err error) error {
	var rpcErr *shared.JSONRPCError
	if errors.As(err, &rpcErr) {
		return s.send(ctx, shared.JSONRPCResponse{
			JSONRPC: shared.JSONRPCVersion,
			ID:      req.ID,
			Error:   rpcErr,
		})
	}

	var mcpErr *mcperrors.MCPError
	if errors.As(err, &mcpErr) {
		return s.sendErrorResponse(ctx, req, mcpErr.RPCCode(), mcpErr.RPCMessage())
	}

	var toolNotFound *mcperrors.ToolNotFoundError
	if errors.As(err, &toolNotFound) {
		return s.sendErrorResponse(ctx, req, shared.ToolNotFound, toolNotFound.Error())
	}

	var unknownPeer *domain.UnknownPeerError
	if errors.As(err, &unknownPeer) {
		return s.sendErrorResponse(ctx, req, shared.UnknownPeer, unknownPeer.Error())
	}

	return s.sendErrorResponse(ctx, req, shared.InternalError, fmt.Sprintf("Internal error: %v", err))
}

func (s *Server) send(ctx context.Context, resp shared.JSONRPCResponse) error {
	s.mu.RLock()
	t := s.transport
	s.mu.RUnlock()

	if t == nil {
		return ErrNoTransport
	}
	return t.Send(ctx, resp)
}
