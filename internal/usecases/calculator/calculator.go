// Package calculator provides a small arithmetic tool provider. It is the
// built-in embedded peer and a convenient fixture for tests.
package calculator

import (
	"context"
	"fmt"
	"strconv"

	"github.com/FreePeak/golang-mcp-multiplexer/internal/domain/handler"
	"github.com/FreePeak/golang-mcp-multiplexer/internal/domain/shared"
	mcperrors "github.com/FreePeak/golang-mcp-multiplexer/internal/domain/shared/errors"
	"github.com/FreePeak/golang-mcp-multiplexer/internal/infrastructure/logging"
	"github.com/FreePeak/golang-mcp-multiplexer/internal/infrastructure/server"
)

// Name and Version identify the calculator peer
const (
	Name    = "calculator"
	Version = "1.0.0"
)

type operation struct {
	description string
	apply       func(a, b float64) (float64, error)
}

var operations = map[string]operation{
	"add":      {"Add two numbers", func(a, b float64) (float64, error) { return a + b, nil }},
	"subtract": {"Subtract b from a", func(a, b float64) (float64, error) { return a - b, nil }},
	"multiply": {"Multiply two numbers", func(a, b float64) (float64, error) { return a * b, nil }},
	"divide": {"Divide a by b", func(a, b float64) (float64, error) {
		if b == 0 {
			return 0, mcperrors.NewInvalidInputError("division by zero", nil)
		}
		return a / b, nil
	}},
}

// order keeps ListTools output stable
var order = []string{"add", "subtract", "multiply", "divide"}

// Handler implements handler.ToolHandler for the arithmetic tools
type Handler struct{}

var _ handler.ToolHandler = (*Handler)(nil)

// NewHandler creates a calculator handler
func NewHandler() *Handler {
	return &Handler{}
}

// NewPeer returns a server backed by the calculator, ready to be attached
// to a multiplexer as an embedded peer
func NewPeer(logger *logging.Logger) *server.Server {
	return server.NewServer(Name, Version).
		WithLogger(logger).
		WithToolHandler(NewHandler())
}

func operandsSchema() map[string]interface{} {
	return map[string]interface{}{
		"type": "object",
		"properties": map[string]interface{}{
			"a": map[string]interface{}{"type": "number"},
			"b": map[string]interface{}{"type": "number"},
		},
		"required": []string{"a", "b"},
	}
}

// ListTools returns the calculator tools
func (h *Handler) ListTools(ctx context.Context) ([]shared.Tool, error) {
	tools := make([]shared.Tool, 0, len(order))
	for _, name := range order {
		tools = append(tools, shared.Tool{
			Name:        name,
			Description: operations[name].description,
			InputSchema: operandsSchema(),
		})
	}
	return tools, nil
}

// CallTool applies the named operation to arguments a and b
func (h *Handler) CallTool(ctx context.Context, name string, arguments map[string]interface{}) (*shared.CallToolResult, error) {
	op, ok := operations[name]
	if !ok {
		return nil, mcperrors.NewNotFoundError(fmt.Sprintf("tool '%s' not found", name), nil)
	}

	a, err := operand(arguments, "a")
	if err != nil {
		return nil, err
	}
	b, err := operand(arguments, "b")
	if err != nil {
		return nil, err
	}

	result, err := op.apply(a, b)
	if err != nil {
		return nil, err
	}

	return &shared.CallToolResult{
		Content: []shared.Content{shared.NewTextContent(strconv.FormatFloat(result, 'f', -1, 64))},
	}, nil
}

func operand(arguments map[string]interface{}, key string) (float64, error) {
	switch v := arguments[key].(type) {
	case float64:
		return v, nil
	case int:
		return float64(v), nil
	case string:
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			return f, nil
		}
	}
	return 0, mcperrors.NewInvalidInputError(fmt.Sprintf("parameter '%s' must be a number", key), nil)
}
