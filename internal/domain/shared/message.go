package shared

import (
	"encoding/json"

	"github.com/pkg/errors"
)

// ErrInvalidMessage is returned by ParseMessage for payloads that are not
// JSON-RPC 2.0 messages.
var ErrInvalidMessage = errors.New("invalid JSON-RPC message")

// ParseMessage decodes a single framed JSON-RPC message into a request,
// response or notification. Response results are kept as json.RawMessage.
func ParseMessage(data []byte) (JSONRPCMessage, error) {
	var basic struct {
		JSONRPC string          `json:"jsonrpc"`
		ID      json.RawMessage `json:"id,omitempty"`
		Method  string          `json:"method,omitempty"`
	}
	if err := json.Unmarshal(data, &basic); err != nil {
		return nil, errors.Wrap(err, "error unmarshalling message")
	}

	if basic.JSONRPC != JSONRPCVersion {
		return nil, errors.Wrapf(ErrInvalidMessage, "unsupported version %q", basic.JSONRPC)
	}

	hasID := len(basic.ID) > 0 && string(basic.ID) != "null"

	switch {
	case basic.Method != "" && hasID:
		var request JSONRPCRequest
		if err := json.Unmarshal(data, &request); err != nil {
			return nil, errors.Wrap(err, "invalid JSON-RPC request")
		}
		return request, nil
	case basic.Method != "":
		var notification JSONRPCNotification
		if err := json.Unmarshal(data, &notification); err != nil {
			return nil, errors.Wrap(err, "invalid JSON-RPC notification")
		}
		return notification, nil
	default:
		var wire struct {
			JSONRPC string          `json:"jsonrpc"`
			ID      interface{}     `json:"id"`
			Result  json.RawMessage `json:"result,omitempty"`
			Error   *JSONRPCError   `json:"error,omitempty"`
		}
		if err := json.Unmarshal(data, &wire); err != nil {
			return nil, errors.Wrap(err, "invalid JSON-RPC response")
		}
		if wire.Result == nil && wire.Error == nil {
			return nil, errors.Wrap(ErrInvalidMessage, "response carries neither result nor error")
		}
		response := JSONRPCResponse{
			JSONRPC: wire.JSONRPC,
			ID:      wire.ID,
			Error:   wire.Error,
		}
		if wire.Result != nil {
			response.Result = wire.Result
		}
		return response, nil
	}
}

// DecodeResult converts a response result into target. It accepts both
// raw wire results and values produced in-process.
func DecodeResult(result interface{}, target interface{}) error {
	return DecodeParams(result, target)
}

// DecodeParams converts loosely typed params into target by round-tripping
// through JSON.
func DecodeParams(params interface{}, target interface{}) error {
	var data []byte
	switch v := params.(type) {
	case nil:
		return nil
	case json.RawMessage:
		if len(v) == 0 {
			return nil
		}
		data = v
	case []byte:
		data = v
	default:
		var err error
		data, err = json.Marshal(v)
		if err != nil {
			return errors.Wrap(err, "error marshalling params")
		}
	}

	if err := json.Unmarshal(data, target); err != nil {
		return errors.Wrap(err, "error unmarshalling params")
	}
	return nil
}
