// Package llm adapts the multiplexer's aggregated tool catalog to the tool
// calling formats of LLM chat APIs.
package llm

import (
	"context"

	"github.com/pkg/errors"

	"github.com/FreePeak/golang-mcp-multiplexer/internal/domain/shared"
	"github.com/FreePeak/golang-mcp-multiplexer/internal/usecases/multiplexer"
)

// ToolCaller lists namespaced tools and runs batches of calls.
// *multiplexer.Multiplexer implements it.
type ToolCaller interface {
	Tools(ctx context.Context) ([]shared.Tool, error)
	CallTools(ctx context.Context, calls []multiplexer.Call) ([]shared.CallToolResult, error)
}

var _ ToolCaller = (*multiplexer.Multiplexer)(nil)

func toCall(name string, arguments map[string]interface{}) (multiplexer.Call, error) {
	namespace, tool, ok := multiplexer.SplitName(name)
	if !ok {
		return multiplexer.Call{}, errors.Wrapf(multiplexer.ErrInvalidToolName, "tool %q", name)
	}
	return multiplexer.Call{Namespace: namespace, ToolName: tool, Arguments: arguments}, nil
}

func textParts(content []shared.Content) []shared.Content {
	out := make([]shared.Content, 0, len(content))
	for _, c := range content {
		if c.Type == shared.ContentTypeText {
			out = append(out, c)
		}
	}
	return out
}

// objectSchema returns schema as a map with type forced to object
func objectSchema(schema interface{}) (map[string]interface{}, error) {
	out := map[string]interface{}{}
	if schema != nil {
		if err := shared.DecodeParams(schema, &out); err != nil {
			return nil, errors.Wrap(err, "error decoding input schema")
		}
	}
	out["type"] = "object"
	return out, nil
}
