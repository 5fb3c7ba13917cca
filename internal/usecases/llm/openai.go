package llm

import (
	"context"
	"encoding/json"

	"github.com/pkg/errors"

	"github.com/FreePeak/golang-mcp-multiplexer/internal/domain/shared"
	"github.com/FreePeak/golang-mcp-multiplexer/internal/usecases/multiplexer"
)

// OpenAITool is a chat completions tool definition
type OpenAITool struct {
	Type     string             `json:"type"`
	Function OpenAIFunctionDecl `json:"function"`
}

// OpenAIFunctionDecl describes a callable function
type OpenAIFunctionDecl struct {
	Name        string      `json:"name"`
	Description string      `json:"description,omitempty"`
	Parameters  interface{} `json:"parameters"`
	Strict      bool        `json:"strict,omitempty"`
}

// OpenAIToolCall is one entry of an assistant message's tool_calls
type OpenAIToolCall struct {
	ID       string             `json:"id"`
	Type     string             `json:"type"`
	Function OpenAIFunctionCall `json:"function"`
}

// OpenAIFunctionCall carries the function name and its JSON-encoded
// arguments
type OpenAIFunctionCall struct {
	Name      string `json:"name"`
	Arguments string `json:"arguments"`
}

// OpenAIToolMessage answers one tool call
type OpenAIToolMessage struct {
	Role       string           `json:"role"`
	ToolCallID string           `json:"tool_call_id"`
	Content    []shared.Content `json:"content"`
}

// OpenAI exposes a ToolCaller in OpenAI chat completions format
type OpenAI struct {
	caller ToolCaller
	strict bool
}

// NewOpenAI creates an adapter. strict is copied into every function
// declaration.
func NewOpenAI(caller ToolCaller, strict bool) *OpenAI {
	return &OpenAI{caller: caller, strict: strict}
}

// Tools returns every aggregated tool as a function declaration
func (o *OpenAI) Tools(ctx context.Context) ([]OpenAITool, error) {
	tools, err := o.caller.Tools(ctx)
	if err != nil {
		return nil, err
	}

	out := make([]OpenAITool, len(tools))
	for i, tool := range tools {
		out[i] = OpenAITool{
			Type: "function",
			Function: OpenAIFunctionDecl{
				Name:        tool.Name,
				Description: tool.Description,
				Parameters:  tool.InputSchema,
				Strict:      o.strict,
			},
		}
	}
	return out, nil
}

// CallTools runs the tool calls as one batch and answers each with a tool
// message holding the result's text content
func (o *OpenAI) CallTools(ctx context.Context, toolCalls []OpenAIToolCall) ([]OpenAIToolMessage, error) {
	if len(toolCalls) == 0 {
		return nil, nil
	}

	calls := make([]multiplexer.Call, len(toolCalls))
	for i, tc := range toolCalls {
		var arguments map[string]interface{}
		if tc.Function.Arguments != "" {
			if err := json.Unmarshal([]byte(tc.Function.Arguments), &arguments); err != nil {
				return nil, errors.Wrapf(err, "invalid arguments for tool call %s", tc.ID)
			}
		}
		call, err := toCall(tc.Function.Name, arguments)
		if err != nil {
			return nil, err
		}
		calls[i] = call
	}

	results, err := o.caller.CallTools(ctx, calls)
	if err != nil {
		return nil, err
	}

	out := make([]OpenAIToolMessage, len(results))
	for i, result := range results {
		out[i] = OpenAIToolMessage{
			Role:       "tool",
			ToolCallID: toolCalls[i].ID,
			Content:    textParts(result.Content),
		}
	}
	return out, nil
}
