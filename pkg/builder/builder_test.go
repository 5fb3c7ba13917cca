package builder

import (
	"context"
	"net/http/httptest"
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/FreePeak/golang-mcp-multiplexer/internal/infrastructure/transport"
	"github.com/FreePeak/golang-mcp-multiplexer/internal/usecases/multiplexer"
	"github.com/FreePeak/golang-mcp-multiplexer/pkg/server"
	"github.com/FreePeak/golang-mcp-multiplexer/pkg/tools"
)

func echoServer(t *testing.T, name string) *server.MCPServer {
	t.Helper()
	s := server.NewMCPServer(name, "1.0.0").WithLogger(zap.NewNop())
	require.NoError(t, s.AddTool(context.Background(),
		tools.NewTool("echo", tools.WithString("text", tools.Required())),
		func(ctx context.Context, req server.ToolCallRequest) (interface{}, error) {
			return name + ":" + req.Parameters["text"].(string), nil
		}))
	return s
}

func TestBuilderConnect(t *testing.T) {
	remote, err := echoServer(t, "remote").Handler()
	require.NoError(t, err)
	srv := httptest.NewServer(remote)
	defer srv.Close()

	m, err := NewMultiplexerBuilder().
		WithLogger(zap.NewNop()).
		WithClientInfo("builder-test", "0.1").
		AddEmbedded("local", echoServer(t, "local")).
		AddStreamableHTTP("web", srv.URL+"/mcp", nil).
		Connect(context.Background())
	require.NoError(t, err)
	defer m.Close()

	assert.Equal(t, []string{"local", "web"}, m.Namespaces())

	tools, err := m.Tools(context.Background())
	require.NoError(t, err)
	names := make([]string, len(tools))
	for i, tool := range tools {
		names[i] = tool.Name
	}
	assert.Equal(t, []string{"local_echo", "web_echo"}, names)

	results, err := m.CallTools(context.Background(), []multiplexer.Call{
		{Namespace: "local", ToolName: "echo", Arguments: map[string]interface{}{"text": "a"}},
		{Namespace: "web", ToolName: "echo", Arguments: map[string]interface{}{"text": "b"}},
	})
	require.NoError(t, err)
	require.Len(t, results, 2)
	assert.Equal(t, "local:a", results[0].Content[0].Text)
	assert.Equal(t, "remote:b", results[1].Content[0].Text)
}

func TestBuilderErrors(t *testing.T) {
	_, err := NewMultiplexerBuilder().
		AddEmbedded("a", echoServer(t, "a")).
		AddEmbedded("a", echoServer(t, "b")).
		Connect(context.Background())
	assert.True(t, errors.Is(err, ErrDuplicateNamespace))

	_, err = NewMultiplexerBuilder().AddEmbedded("nil", nil).Connect(context.Background())
	assert.Error(t, err)

	_, err = NewMultiplexerBuilder().
		WithLogger(zap.NewNop()).
		AddEmbedded("bad_name", echoServer(t, "x")).
		Connect(context.Background())
	assert.True(t, errors.Is(err, multiplexer.ErrInvalidNamespace))
}

func TestBuilderTransport(t *testing.T) {
	clientSide, serverSide := transport.NewLinkedPair()
	require.NoError(t, echoServer(t, "linked").Peer().Connect(context.Background(), serverSide))

	m, err := NewMultiplexerBuilder().
		WithLogger(zap.NewNop()).
		AddTransport("ln", clientSide).
		Connect(context.Background())
	require.NoError(t, err)
	defer m.Close()

	result, err := m.CallTool(context.Background(), "ln_echo", map[string]interface{}{"text": "z"})
	require.NoError(t, err)
	assert.Equal(t, "linked:z", result.Content[0].Text)
}
