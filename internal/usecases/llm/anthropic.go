package llm

import (
	"context"

	"github.com/FreePeak/golang-mcp-multiplexer/internal/domain/shared"
	"github.com/FreePeak/golang-mcp-multiplexer/internal/usecases/multiplexer"
)

// Content block types used by the Messages API
const (
	AnthropicToolUse    = "tool_use"
	AnthropicToolResult = "tool_result"
)

// AnthropicTool is a Messages API tool definition
type AnthropicTool struct {
	Name        string                 `json:"name"`
	Description string                 `json:"description,omitempty"`
	InputSchema map[string]interface{} `json:"input_schema"`
}

// AnthropicContentBlock is one block of an assistant message. Only tool_use
// blocks are acted on.
type AnthropicContentBlock struct {
	Type  string                 `json:"type"`
	ID    string                 `json:"id,omitempty"`
	Name  string                 `json:"name,omitempty"`
	Input map[string]interface{} `json:"input,omitempty"`
	Text  string                 `json:"text,omitempty"`
}

// AnthropicToolResultBlock answers one tool_use block
type AnthropicToolResultBlock struct {
	Type      string           `json:"type"`
	ToolUseID string           `json:"tool_use_id"`
	Content   []shared.Content `json:"content"`
	IsError   bool             `json:"is_error"`
}

// AnthropicMessage is a user turn carrying tool results
type AnthropicMessage struct {
	Role    string                     `json:"role"`
	Content []AnthropicToolResultBlock `json:"content"`
}

// Anthropic exposes a ToolCaller in Anthropic Messages format
type Anthropic struct {
	caller ToolCaller
}

// NewAnthropic creates an adapter
func NewAnthropic(caller ToolCaller) *Anthropic {
	return &Anthropic{caller: caller}
}

// Tools returns every aggregated tool with an object input schema
func (a *Anthropic) Tools(ctx context.Context) ([]AnthropicTool, error) {
	tools, err := a.caller.Tools(ctx)
	if err != nil {
		return nil, err
	}

	out := make([]AnthropicTool, len(tools))
	for i, tool := range tools {
		schema, err := objectSchema(tool.InputSchema)
		if err != nil {
			return nil, err
		}
		out[i] = AnthropicTool{
			Name:        tool.Name,
			Description: tool.Description,
			InputSchema: schema,
		}
	}
	return out, nil
}

// CallTools runs every tool_use block in content as one batch. It returns
// nil when content asks for no tools.
func (a *Anthropic) CallTools(ctx context.Context, content []AnthropicContentBlock) (*AnthropicMessage, error) {
	var uses []AnthropicContentBlock
	for _, block := range content {
		if block.Type == AnthropicToolUse {
			uses = append(uses, block)
		}
	}
	if len(uses) == 0 {
		return nil, nil
	}

	calls := make([]multiplexer.Call, len(uses))
	for i, use := range uses {
		call, err := toCall(use.Name, use.Input)
		if err != nil {
			return nil, err
		}
		calls[i] = call
	}

	results, err := a.caller.CallTools(ctx, calls)
	if err != nil {
		return nil, err
	}

	msg := &AnthropicMessage{Role: "user", Content: make([]AnthropicToolResultBlock, len(results))}
	for i, result := range results {
		msg.Content[i] = AnthropicToolResultBlock{
			Type:      AnthropicToolResult,
			ToolUseID: uses[i].ID,
			Content:   textParts(result.Content),
			IsError:   result.IsError,
		}
	}
	return msg, nil
}
