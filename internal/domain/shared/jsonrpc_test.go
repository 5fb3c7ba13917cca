package shared

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseMessage(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		check   func(t *testing.T, msg JSONRPCMessage)
		wantErr bool
	}{
		{
			name:  "request with numeric id",
			input: `{"jsonrpc":"2.0","id":1,"method":"tools/list","params":{"cursor":"x"}}`,
			check: func(t *testing.T, msg JSONRPCMessage) {
				req, ok := msg.(JSONRPCRequest)
				require.True(t, ok)
				assert.Equal(t, float64(1), req.ID)
				assert.Equal(t, MethodListTools, req.Method)
				assert.JSONEq(t, `{"cursor":"x"}`, string(req.Params))
			},
		},
		{
			name:  "request with string id",
			input: `{"jsonrpc":"2.0","id":"abc","method":"ping"}`,
			check: func(t *testing.T, msg JSONRPCMessage) {
				assert.True(t, msg.IsRequest())
				assert.Equal(t, "abc", msg.(JSONRPCRequest).ID)
			},
		},
		{
			name:  "notification",
			input: `{"jsonrpc":"2.0","method":"notifications/initialized"}`,
			check: func(t *testing.T, msg JSONRPCMessage) {
				assert.True(t, msg.IsNotification())
				assert.Equal(t, NotificationInitialized, msg.(JSONRPCNotification).Method)
			},
		},
		{
			name:  "null id is a notification",
			input: `{"jsonrpc":"2.0","id":null,"method":"notifications/cancelled"}`,
			check: func(t *testing.T, msg JSONRPCMessage) {
				assert.True(t, msg.IsNotification())
			},
		},
		{
			name:  "result response keeps raw result",
			input: `{"jsonrpc":"2.0","id":"1","result":{"tools":[]}}`,
			check: func(t *testing.T, msg JSONRPCMessage) {
				resp, ok := msg.(JSONRPCResponse)
				require.True(t, ok)
				raw, ok := resp.Result.(json.RawMessage)
				require.True(t, ok)
				assert.JSONEq(t, `{"tools":[]}`, string(raw))
			},
		},
		{
			name:  "error response",
			input: `{"jsonrpc":"2.0","id":"1","error":{"code":-32601,"message":"Method not found"}}`,
			check: func(t *testing.T, msg JSONRPCMessage) {
				resp := msg.(JSONRPCResponse)
				require.NotNil(t, resp.Error)
				assert.Equal(t, int(MethodNotFound), resp.Error.Code)
			},
		},
		{name: "wrong version", input: `{"jsonrpc":"1.0","id":1,"method":"x"}`, wantErr: true},
		{name: "not json", input: `{{`, wantErr: true},
		{name: "empty response", input: `{"jsonrpc":"2.0","id":1}`, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			msg, err := ParseMessage([]byte(tt.input))
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			tt.check(t, msg)
		})
	}
}

func TestJSONRPCResponseMarshal(t *testing.T) {
	resp := NewResult("7", ListToolsResult{Tools: []Tool{{Name: "echo"}}})

	data, err := json.Marshal(resp)
	require.NoError(t, err)
	assert.JSONEq(t, `{"jsonrpc":"2.0","id":"7","result":{"tools":[{"name":"echo","inputSchema":null}]}}`, string(data))

	errResp := NewErrorResponse(nil, ServerError, "Session not found or expired")
	data, err = json.Marshal(errResp)
	require.NoError(t, err)
	assert.JSONEq(t, `{"jsonrpc":"2.0","id":null,"error":{"code":-32000,"message":"Session not found or expired"}}`, string(data))
}

func TestDecodeResult(t *testing.T) {
	var fromRaw ListToolsResult
	require.NoError(t, DecodeResult(json.RawMessage(`{"tools":[{"name":"a"}]}`), &fromRaw))
	assert.Equal(t, "a", fromRaw.Tools[0].Name)

	var fromValue ListToolsResult
	require.NoError(t, DecodeResult(ListToolsResult{Tools: []Tool{{Name: "b"}}}, &fromValue))
	assert.Equal(t, "b", fromValue.Tools[0].Name)

	var untouched ListToolsResult
	require.NoError(t, DecodeResult(nil, &untouched))
	assert.Nil(t, untouched.Tools)
}

func TestIDKey(t *testing.T) {
	assert.Equal(t, "1", IDKey(float64(1)))
	assert.Equal(t, "1", IDKey(1))
	assert.Equal(t, "1", IDKey("1"))
	assert.Equal(t, "", IDKey(nil))
}

func TestJSONRPCErrorIsError(t *testing.T) {
	var err error = &JSONRPCError{Code: int(InvalidParams), Message: "bad"}
	assert.Contains(t, err.Error(), "bad")
	assert.Equal(t, "Unknown peer", ErrorMessage(UnknownPeer))
	assert.Equal(t, "Invalid params", ErrorMessage(InvalidParams))
}

func TestIsInitializeRequest(t *testing.T) {
	req, err := NewRequest(1, MethodInitialize, InitializeParams{ProtocolVersion: ProtocolVersion})
	require.NoError(t, err)
	assert.True(t, IsInitializeRequest(req))

	notif, err := NewNotification(NotificationInitialized, nil)
	require.NoError(t, err)
	assert.False(t, IsInitializeRequest(notif))
	assert.Nil(t, notif.Params)
}

func TestToolErrorResult(t *testing.T) {
	res := NewToolErrorResult("boom")
	assert.True(t, res.IsError)
	require.Len(t, res.Content, 1)
	assert.Equal(t, ContentTypeText, res.Content[0].GetType())
	assert.Equal(t, "boom", res.Content[0].Text)

	caps := Capabilities{}
	assert.False(t, caps.SupportsTools())
	caps.Tools = &ToolsCapability{}
	assert.True(t, caps.SupportsTools())
}
