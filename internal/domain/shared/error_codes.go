package shared

// MCP-specific error codes
const (
	// Tool error codes
	ToolNotFound        ErrorCode = -32200
	ToolExecutionFailed ErrorCode = -32201

	// UnknownPeer is returned when a namespaced call targets a peer that is
	// not connected to the multiplexer
	UnknownPeer ErrorCode = -32202
)
