package handler

import (
	"context"
	"encoding/json"

	"github.com/FreePeak/golang-mcp-multiplexer/internal/domain/shared"
)

// RequestHandler defines a function that handles a specific request method
type RequestHandler func(ctx context.Context, params json.RawMessage) (interface{}, error)

// NotificationHandler receives server- or client-initiated notifications
type NotificationHandler func(ctx context.Context, notification shared.JSONRPCNotification)

// ToolHandler defines a handler for tools
type ToolHandler interface {
	// ListTools returns a list of available tools
	ListTools(ctx context.Context) ([]shared.Tool, error)

	// CallTool executes a tool with the given arguments
	CallTool(ctx context.Context, name string, arguments map[string]interface{}) (*shared.CallToolResult, error)
}

// ToolHandlerFunc serves tools/call for a single tool
type ToolHandlerFunc func(ctx context.Context, arguments map[string]interface{}) (*shared.CallToolResult, error)
