// Package types provides the public tool declarations of the multiplexer SDK.
package types

// Parameter types understood by InputSchema
const (
	TypeString  = "string"
	TypeNumber  = "number"
	TypeInteger = "integer"
	TypeBoolean = "boolean"
	TypeArray   = "array"
	TypeObject  = "object"
)

// Tool represents a tool that can be called by clients.
type Tool struct {
	Name        string
	Description string
	Parameters  []ToolParameter
}

// ToolParameter defines a parameter for a tool.
type ToolParameter struct {
	Name        string
	Description string
	Type        string
	Required    bool
	Enum        []interface{}
	// Items is the element type of array parameters
	Items string
}

// InputSchema renders the tool's parameters as a JSON Schema object.
func (t *Tool) InputSchema() map[string]interface{} {
	properties := make(map[string]interface{}, len(t.Parameters))
	required := []string{}
	for _, p := range t.Parameters {
		properties[p.Name] = p.schema()
		if p.Required {
			required = append(required, p.Name)
		}
	}

	schema := map[string]interface{}{
		"type":       TypeObject,
		"properties": properties,
	}
	if len(required) > 0 {
		schema["required"] = required
	}
	return schema
}

func (p ToolParameter) schema() map[string]interface{} {
	s := map[string]interface{}{"type": p.Type}
	if p.Type == "" {
		s["type"] = TypeString
	}
	if p.Description != "" {
		s["description"] = p.Description
	}
	if len(p.Enum) > 0 {
		s["enum"] = p.Enum
	}
	if p.Type == TypeArray && p.Items != "" {
		s["items"] = map[string]interface{}{"type": p.Items}
	}
	return s
}
