// Package tools declares tools with functional options.
package tools

import (
	"github.com/FreePeak/golang-mcp-multiplexer/pkg/types"
)

// ToolOption is a function that configures a tool.
type ToolOption func(*types.Tool)

// NewTool creates a new MCP tool with the given name and options.
func NewTool(name string, options ...ToolOption) *types.Tool {
	tool := &types.Tool{
		Name:       name,
		Parameters: []types.ToolParameter{},
	}
	for _, option := range options {
		option(tool)
	}
	return tool
}

// WithDescription sets the description of a tool.
func WithDescription(description string) ToolOption {
	return func(t *types.Tool) {
		t.Description = description
	}
}

// ParameterOption is a function that configures a parameter.
type ParameterOption func(*types.ToolParameter)

// Description sets the description of a parameter.
func Description(description string) ParameterOption {
	return func(p *types.ToolParameter) {
		p.Description = description
	}
}

// Required marks a parameter as required.
func Required() ParameterOption {
	return func(p *types.ToolParameter) {
		p.Required = true
	}
}

// Enum restricts a parameter to the given values.
func Enum(values ...interface{}) ParameterOption {
	return func(p *types.ToolParameter) {
		p.Enum = values
	}
}

// Items sets the element type of an array parameter.
func Items(itemType string) ParameterOption {
	return func(p *types.ToolParameter) {
		p.Items = itemType
	}
}

func withParameter(kind, name string, options []ParameterOption) ToolOption {
	return func(t *types.Tool) {
		param := types.ToolParameter{Name: name, Type: kind}
		for _, option := range options {
			option(&param)
		}
		t.Parameters = append(t.Parameters, param)
	}
}

// WithString adds a string parameter to a tool.
func WithString(name string, options ...ParameterOption) ToolOption {
	return withParameter(types.TypeString, name, options)
}

// WithNumber adds a number parameter to a tool.
func WithNumber(name string, options ...ParameterOption) ToolOption {
	return withParameter(types.TypeNumber, name, options)
}

// WithInteger adds an integer parameter to a tool.
func WithInteger(name string, options ...ParameterOption) ToolOption {
	return withParameter(types.TypeInteger, name, options)
}

// WithBoolean adds a boolean parameter to a tool.
func WithBoolean(name string, options ...ParameterOption) ToolOption {
	return withParameter(types.TypeBoolean, name, options)
}

// WithArray adds an array parameter to a tool.
func WithArray(name string, options ...ParameterOption) ToolOption {
	return withParameter(types.TypeArray, name, options)
}

// WithObject adds an object parameter to a tool.
func WithObject(name string, options ...ParameterOption) ToolOption {
	return withParameter(types.TypeObject, name, options)
}
