package errors

import (
	"fmt"

	"github.com/pkg/errors"

	"github.com/FreePeak/golang-mcp-multiplexer/internal/domain/shared"
)

// MCPError represents an error raised by a tool handler in an embedded peer
type MCPError struct {
	Code    ErrorCode
	Message string
	Data    interface{}
}

// Error returns the error message
func (e *MCPError) Error() string {
	return e.Message
}

// ErrorCode represents the type of error
type ErrorCode int

const (
	// NotFound represents a tool or argument target that does not exist
	NotFound ErrorCode = iota
	// InvalidInput represents an invalid input error
	InvalidInput
)

// RPCCode maps the error onto the JSON-RPC error code sent to the caller
func (e *MCPError) RPCCode() shared.ErrorCode {
	switch e.Code {
	case NotFound, InvalidInput:
		return shared.InvalidParams
	default:
		return shared.InternalError
	}
}

// RPCMessage returns the message sent to the caller
func (e *MCPError) RPCMessage() string {
	switch e.Code {
	case NotFound:
		return fmt.Sprintf("Not found: %s", e.Message)
	case InvalidInput:
		return fmt.Sprintf("Invalid input: %s", e.Message)
	default:
		return fmt.Sprintf("Internal error: %s", e.Message)
	}
}

// NewNotFoundError creates a new not found error
func NewNotFoundError(message string, data interface{}) *MCPError {
	return &MCPError{
		Code:    NotFound,
		Message: message,
		Data:    data,
	}
}

// NewInvalidInputError creates a new invalid input error
func NewInvalidInputError(message string, data interface{}) *MCPError {
	return &MCPError{
		Code:    InvalidInput,
		Message: message,
		Data:    data,
	}
}

func hasCode(err error, code ErrorCode) bool {
	var mcpErr *MCPError
	if errors.As(err, &mcpErr) {
		return mcpErr.Code == code
	}
	return false
}

// IsNotFound checks if an error is a not found error
func IsNotFound(err error) bool {
	return hasCode(err, NotFound)
}

// IsInvalidInput checks if an error is an invalid input error
func IsInvalidInput(err error) bool {
	return hasCode(err, InvalidInput)
}
