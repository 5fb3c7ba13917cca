package shared

import (
	"encoding/json"
	"fmt"
)

// JSONRPCVersion is the version of JSON-RPC to use
const JSONRPCVersion = "2.0"

// ErrorCode represents a JSON-RPC error code
type ErrorCode int

// Standard JSON-RPC error codes
const (
	ParseError     ErrorCode = -32700
	InvalidRequest ErrorCode = -32600
	MethodNotFound ErrorCode = -32601
	InvalidParams  ErrorCode = -32602
	InternalError  ErrorCode = -32603
	ServerError    ErrorCode = -32000
	// MCP-specific error codes
	NotFound ErrorCode = -32001
)

// JSONRPCMessage is the interface that all JSON-RPC messages implement
type JSONRPCMessage interface {
	// IsRequest returns true if the message is a request
	IsRequest() bool
	// IsResponse returns true if the message is a response
	IsResponse() bool
	// IsNotification returns true if the message is a notification
	IsNotification() bool
}

// JSONRPCRequest represents a JSON-RPC request. ID is a string or a number
// depending on the sender.
type JSONRPCRequest struct {
	JSONRPC string          `json:"jsonrpc"`
	ID      interface{}     `json:"id"`
	Method  string          `json:"method"`
	Params  json.RawMessage `json:"params,omitempty"`
}

// IsRequest returns true for requests
func (r JSONRPCRequest) IsRequest() bool {
	return true
}

// IsResponse returns false for requests
func (r JSONRPCRequest) IsResponse() bool {
	return false
}

// IsNotification returns false for requests
func (r JSONRPCRequest) IsNotification() bool {
	return false
}

// JSONRPCResponse represents a JSON-RPC response. Result holds a typed value
// when produced locally and a json.RawMessage when decoded from the wire.
type JSONRPCResponse struct {
	JSONRPC string        `json:"jsonrpc"`
	ID      interface{}   `json:"id"`
	Result  interface{}   `json:"result,omitempty"`
	Error   *JSONRPCError `json:"error,omitempty"`
}

// IsRequest returns false for responses
func (r JSONRPCResponse) IsRequest() bool {
	return false
}

// IsResponse returns true for responses
func (r JSONRPCResponse) IsResponse() bool {
	return true
}

// IsNotification returns false for responses
func (r JSONRPCResponse) IsNotification() bool {
	return false
}

// JSONRPCNotification represents a JSON-RPC notification
type JSONRPCNotification struct {
	JSONRPC string          `json:"jsonrpc"`
	Method  string          `json:"method"`
	Params  json.RawMessage `json:"params,omitempty"`
}

// IsRequest returns false for notifications
func (n JSONRPCNotification) IsRequest() bool {
	return false
}

// IsResponse returns false for notifications
func (n JSONRPCNotification) IsResponse() bool {
	return false
}

// IsNotification returns true for notifications
func (n JSONRPCNotification) IsNotification() bool {
	return true
}

// JSONRPCError represents a JSON-RPC error. It doubles as a Go error so a
// peer's error payload can be returned to callers unchanged.
type JSONRPCError struct {
	Code    int         `json:"code"`
	Message string      `json:"message"`
	Data    interface{} `json:"data,omitempty"`
}

// Error implements the error interface
func (e *JSONRPCError) Error() string {
	return fmt.Sprintf("jsonrpc error %d: %s", e.Code, e.Message)
}

// NewRequest builds a request with marshalled params.
func NewRequest(id interface{}, method string, params interface{}) (JSONRPCRequest, error) {
	raw, err := marshalParams(params)
	if err != nil {
		return JSONRPCRequest{}, err
	}
	return JSONRPCRequest{
		JSONRPC: JSONRPCVersion,
		ID:      id,
		Method:  method,
		Params:  raw,
	}, nil
}

// NewNotification builds a notification with marshalled params.
func NewNotification(method string, params interface{}) (JSONRPCNotification, error) {
	raw, err := marshalParams(params)
	if err != nil {
		return JSONRPCNotification{}, err
	}
	return JSONRPCNotification{
		JSONRPC: JSONRPCVersion,
		Method:  method,
		Params:  raw,
	}, nil
}

// NewResult builds a successful response for the given request id.
func NewResult(id interface{}, result interface{}) JSONRPCResponse {
	return JSONRPCResponse{
		JSONRPC: JSONRPCVersion,
		ID:      id,
		Result:  result,
	}
}

// NewErrorResponse builds an error response for the given request id.
func NewErrorResponse(id interface{}, code ErrorCode, message string) JSONRPCResponse {
	return JSONRPCResponse{
		JSONRPC: JSONRPCVersion,
		ID:      id,
		Error: &JSONRPCError{
			Code:    int(code),
			Message: message,
		},
	}
}

// IDKey normalizes a request id so that string and numeric ids that came
// through different codecs compare equal.
func IDKey(id interface{}) string {
	switch v := id.(type) {
	case nil:
		return ""
	case string:
		return v
	case float64:
		return fmt.Sprintf("%v", v)
	case json.Number:
		return v.String()
	default:
		return fmt.Sprint(v)
	}
}

func marshalParams(params interface{}) (json.RawMessage, error) {
	if params == nil {
		return nil, nil
	}
	if raw, ok := params.(json.RawMessage); ok {
		return raw, nil
	}
	return json.Marshal(params)
}

// ErrorMessage returns a standard error message for a given error code
func ErrorMessage(code ErrorCode) string {
	switch code {
	case ParseError:
		return "Parse error"
	case InvalidRequest:
		return "Invalid request"
	case MethodNotFound:
		return "Method not found"
	case InvalidParams:
		return "Invalid params"
	case InternalError:
		return "Internal error"
	case ServerError:
		return "Server error"
	case NotFound:
		return "Not found"
	case UnknownPeer:
		return "Unknown peer"
	default:
		return "Unknown error"
	}
}
