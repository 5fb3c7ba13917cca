package errors

import (
	"testing"

	pkgerrors "github.com/pkg/errors"
	"github.com/stretchr/testify/assert"

	"github.com/FreePeak/golang-mcp-multiplexer/internal/domain/shared"
)

func TestErrorPredicates(t *testing.T) {
	tests := []struct {
		name     string
		err      *MCPError
		check    func(error) bool
		rpcCode  shared.ErrorCode
		rpcStart string
	}{
		{"not found", NewNotFoundError("tool x", nil), IsNotFound, shared.InvalidParams, "Not found: "},
		{"invalid input", NewInvalidInputError("a must be a number", nil), IsInvalidInput, shared.InvalidParams, "Invalid input: "},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.True(t, tt.check(tt.err))
			assert.True(t, tt.check(pkgerrors.Wrap(tt.err, "context")))
			assert.Equal(t, tt.rpcCode, tt.err.RPCCode())
			assert.Contains(t, tt.err.RPCMessage(), tt.rpcStart)
		})
	}

	assert.False(t, IsNotFound(pkgerrors.New("plain")))
}

func TestUnknownCodeIsInternal(t *testing.T) {
	err := &MCPError{Code: ErrorCode(99), Message: "boom"}
	assert.Equal(t, shared.InternalError, err.RPCCode())
	assert.Equal(t, "Internal error: boom", err.RPCMessage())
	assert.False(t, IsNotFound(err))
	assert.False(t, IsInvalidInput(err))
}

func TestToolExecutionError(t *testing.T) {
	cause := pkgerrors.New("division by zero")
	err := &ToolExecutionError{Name: "divide", Cause: cause}

	assert.Equal(t, "tool execution failed: divide: division by zero", err.Error())
	assert.ErrorIs(t, err, cause)

	var execErr *ToolExecutionError
	assert.True(t, pkgerrors.As(pkgerrors.Wrap(err, "call"), &execErr))
	assert.Equal(t, "tool not found: nope", (&ToolNotFoundError{Name: "nope"}).Error())
}
