package shared

// ProtocolVersion is the MCP protocol revision spoken by this module
const ProtocolVersion = "2025-03-26"

// MCP method names
const (
	// Core methods
	MethodInitialize = "initialize"
	MethodShutdown   = "shutdown"
	MethodPing       = "ping"

	// Tool methods
	MethodListTools = "tools/list"
	MethodCallTool  = "tools/call"

	// Notifications
	NotificationInitialized      = "notifications/initialized"
	NotificationCancelled        = "notifications/cancelled"
	NotificationToolsListChanged = "notifications/tools/list_changed"
)

// InitializeParams represents parameters for the initialize method
type InitializeParams struct {
	ProtocolVersion string             `json:"protocolVersion"`
	Capabilities    ClientCapabilities `json:"capabilities"`
	ClientInfo      ServerInfo         `json:"clientInfo"`
}

// InitializeResult represents the result of the initialize method
type InitializeResult struct {
	ProtocolVersion string       `json:"protocolVersion"`
	Capabilities    Capabilities `json:"capabilities"`
	ServerInfo      ServerInfo   `json:"serverInfo"`
	Instructions    string       `json:"instructions,omitempty"`
}

// ListToolsParams represents parameters for the tools/list method
type ListToolsParams struct {
	Cursor string `json:"cursor,omitempty"`
}

// ListToolsResult represents the result of the tools/list method
type ListToolsResult struct {
	Tools      []Tool `json:"tools"`
	NextCursor string `json:"nextCursor,omitempty"`
}

// CallToolParams represents parameters for the tools/call method
type CallToolParams struct {
	Name      string                 `json:"name"`
	Arguments map[string]interface{} `json:"arguments,omitempty"`
}

// CallToolResult represents the result of the tools/call method
type CallToolResult struct {
	Content []Content `json:"content"`
	IsError bool      `json:"isError,omitempty"`
}

// NewToolErrorResult builds an error-flagged result carrying message as text.
func NewToolErrorResult(message string) CallToolResult {
	return CallToolResult{
		Content: []Content{NewTextContent(message)},
		IsError: true,
	}
}

// IsInitializeRequest reports whether msg starts a new MCP session
func IsInitializeRequest(msg JSONRPCMessage) bool {
	req, ok := msg.(JSONRPCRequest)
	return ok && req.Method == MethodInitialize
}
