package shared

// ServerInfo identifies either end of an MCP connection
type ServerInfo struct {
	Name    string `json:"name"`
	Version string `json:"version"`
}

// Capabilities represents the capabilities a peer advertises during the
// initialize handshake
type Capabilities struct {
	Resources *ResourcesCapability `json:"resources,omitempty"`
	Tools     *ToolsCapability     `json:"tools,omitempty"`
	Prompts   *PromptsCapability   `json:"prompts,omitempty"`
	Logging   *LoggingCapability   `json:"logging,omitempty"`
}

// SupportsTools reports whether the peer contributes tools
func (c Capabilities) SupportsTools() bool {
	return c.Tools != nil
}

// ResourcesCapability indicates support for resources
type ResourcesCapability struct {
	Subscribe   bool `json:"subscribe,omitempty"`
	ListChanged bool `json:"listChanged,omitempty"`
}

// ToolsCapability indicates support for tools
type ToolsCapability struct {
	ListChanged bool `json:"listChanged,omitempty"`
}

// PromptsCapability indicates support for prompts
type PromptsCapability struct {
	ListChanged bool `json:"listChanged,omitempty"`
}

// LoggingCapability indicates support for log notifications
type LoggingCapability struct{}

// ClientCapabilities is what a client advertises in initialize
type ClientCapabilities struct {
	Roots    *RootsCapability `json:"roots,omitempty"`
	Sampling *struct{}        `json:"sampling,omitempty"`
}

// RootsCapability indicates the client can list roots
type RootsCapability struct {
	ListChanged bool `json:"listChanged,omitempty"`
}

// Tool represents a tool exposed by a peer
type Tool struct {
	Name        string      `json:"name"`
	Description string      `json:"description,omitempty"`
	InputSchema interface{} `json:"inputSchema"`
}

// Content type discriminators
const (
	ContentTypeText     = "text"
	ContentTypeImage    = "image"
	ContentTypeResource = "resource"
)

// Content is one item of a tool result. Only the fields relevant to Type
// are populated.
type Content struct {
	Type     string      `json:"type"`
	Text     string      `json:"text,omitempty"`
	Data     string      `json:"data,omitempty"`
	MimeType string      `json:"mimeType,omitempty"`
	Resource interface{} `json:"resource,omitempty"`
}

// GetType returns the content type
func (c Content) GetType() string {
	return c.Type
}

// NewTextContent creates a text content item
func NewTextContent(text string) Content {
	return Content{Type: ContentTypeText, Text: text}
}

// NewImageContent creates an image content item from base64 data
func NewImageContent(data, mimeType string) Content {
	return Content{Type: ContentTypeImage, Data: data, MimeType: mimeType}
}
