package client

import (
	"context"
	"testing"
	"time"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/FreePeak/golang-mcp-multiplexer/internal/domain/shared"
	"github.com/FreePeak/golang-mcp-multiplexer/internal/infrastructure/logging"
	"github.com/FreePeak/golang-mcp-multiplexer/internal/infrastructure/server"
	"github.com/FreePeak/golang-mcp-multiplexer/internal/infrastructure/transport"
	"github.com/FreePeak/golang-mcp-multiplexer/internal/testutil"
)

func connectEmbedded(t *testing.T, s *server.Server, opts ...Option) *Client {
	t.Helper()

	clientSide, serverSide := transport.NewLinkedPair()
	require.NoError(t, s.Connect(context.Background(), serverSide))

	c := New("test-client", "0.0.1", append([]Option{WithLogger(logging.NewNop())}, opts...)...)
	require.NoError(t, c.Connect(context.Background(), clientSide))
	t.Cleanup(func() { _ = c.Close() })
	return c
}

func TestConnectHandshake(t *testing.T) {
	tools := testutil.NewMockToolHandler().AddTool("echo", "Echo", nil)
	s := server.NewServer("peer", "2.0.0").
		WithLogger(logging.NewNop()).
		WithToolHandler(tools).
		WithInstructions("hello")

	c := connectEmbedded(t, s)

	assert.Equal(t, StateConnected, c.State())
	assert.Equal(t, "peer", c.ServerInfo().Name)
	assert.Equal(t, "2.0.0", c.ServerInfo().Version)
	assert.True(t, c.ServerCapabilities().SupportsTools())
	assert.Equal(t, "hello", c.Instructions())
	assert.NoError(t, c.Ping(context.Background()))
}

func TestConnectTwice(t *testing.T) {
	c := connectEmbedded(t, server.NewServer("peer", "1").WithLogger(logging.NewNop()))

	a, _ := transport.NewLinkedPair()
	assert.ErrorIs(t, c.Connect(context.Background(), a), ErrAlreadyConnected)
}

func TestRequestsBeforeConnect(t *testing.T) {
	c := New("test-client", "0.0.1")

	_, err := c.ListTools(context.Background())
	assert.ErrorIs(t, err, ErrNotConnected)

	_, err = c.CallTool(context.Background(), "echo", nil)
	assert.ErrorIs(t, err, ErrNotConnected)
}

func TestConnectStartFailure(t *testing.T) {
	c := New("test-client", "0.0.1", WithLogger(logging.NewNop()))

	err := c.Connect(context.Background(), transport.NewLinkedTransport())
	assert.ErrorIs(t, err, transport.ErrNotBound)
	assert.Equal(t, StateClosed, c.State())
}

func TestConnectHandshakeError(t *testing.T) {
	mock := testutil.NewMockTransport()
	mock.SendFunc = func(ctx context.Context, message shared.JSONRPCMessage) error {
		req, ok := message.(shared.JSONRPCRequest)
		if !ok {
			return nil
		}
		return mock.SimulateIncomingMessage(ctx, shared.NewErrorResponse(req.ID, shared.InternalError, "nope"))
	}

	c := New("test-client", "0.0.1", WithLogger(logging.NewNop()))
	err := c.Connect(context.Background(), mock)
	require.Error(t, err)

	var rpcErr *shared.JSONRPCError
	require.True(t, errors.As(err, &rpcErr))
	assert.Equal(t, "nope", rpcErr.Message)
	assert.Equal(t, 1, mock.CloseCalls())
	assert.Equal(t, StateClosed, c.State())
}

func TestListTools(t *testing.T) {
	tools := testutil.NewMockToolHandler().
		AddTool("echo", "Echo", nil).
		AddTool("add", "Add", nil)
	c := connectEmbedded(t, server.NewServer("peer", "1").WithLogger(logging.NewNop()).WithToolHandler(tools))

	list, err := c.ListTools(context.Background())
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, "echo", list[0].Name)
	assert.Equal(t, "add", list[1].Name)
	assert.Equal(t, 1, tools.ListCalls())
}

func TestListToolsWithoutCapability(t *testing.T) {
	c := connectEmbedded(t, server.NewServer("bare", "1").WithLogger(logging.NewNop()))

	list, err := c.ListTools(context.Background())
	require.NoError(t, err)
	assert.Empty(t, list)
	assert.False(t, c.ServerCapabilities().SupportsTools())
}

func TestCallTool(t *testing.T) {
	tools := testutil.NewMockToolHandler().
		AddToolFunc("echo", func(_ context.Context, args map[string]interface{}) (*shared.CallToolResult, error) {
			return &shared.CallToolResult{Content: []shared.Content{shared.NewTextContent(args["message"].(string))}}, nil
		})
	c := connectEmbedded(t, server.NewServer("peer", "1").WithLogger(logging.NewNop()).WithToolHandler(tools))

	result, err := c.CallTool(context.Background(), "echo", map[string]interface{}{"message": "hi"})
	require.NoError(t, err)
	require.Len(t, result.Content, 1)
	assert.Equal(t, "hi", result.Content[0].Text)
	assert.False(t, result.IsError)

	_, err = c.CallTool(context.Background(), "missing", nil)
	var rpcErr *shared.JSONRPCError
	require.True(t, errors.As(err, &rpcErr))
	assert.Equal(t, int(shared.InvalidParams), rpcErr.Code)
}

func TestRequestTimeout(t *testing.T) {
	mock := testutil.NewMockTransport()
	mock.SendFunc = func(ctx context.Context, message shared.JSONRPCMessage) error {
		req, ok := message.(shared.JSONRPCRequest)
		if !ok || req.Method != shared.MethodInitialize {
			return nil
		}
		result := shared.InitializeResult{
			ProtocolVersion: shared.ProtocolVersion,
			Capabilities:    shared.Capabilities{Tools: &shared.ToolsCapability{}},
		}
		return mock.SimulateIncomingMessage(ctx, shared.NewResult(req.ID, result))
	}

	c := New("test-client", "0.0.1", WithLogger(logging.NewNop()), WithRequestTimeout(20*time.Millisecond))
	require.NoError(t, c.Connect(context.Background(), mock))

	_, err := c.ListTools(context.Background())
	assert.ErrorIs(t, err, ErrRequestTimeout)
}

func TestRequestTimeoutWhilePeerBlocksInSend(t *testing.T) {
	release := make(chan struct{})
	tools := testutil.NewMockToolHandler().
		AddToolFunc("stall", func(ctx context.Context, args map[string]interface{}) (*shared.CallToolResult, error) {
			<-release
			return &shared.CallToolResult{}, nil
		})
	s := server.NewServer("slow", "1.0").WithToolHandler(tools).WithLogger(logging.NewNop())

	c := connectEmbedded(t, s, WithRequestTimeout(50*time.Millisecond))
	t.Cleanup(func() { close(release) })

	start := time.Now()
	_, err := c.CallTool(context.Background(), "stall", nil)
	assert.ErrorIs(t, err, ErrRequestTimeout)
	assert.Less(t, time.Since(start), 5*time.Second)

	// a caller deadline shorter than the timeout is reported as-is
	c2 := connectEmbedded(t, server.NewServer("slow", "1.0").WithToolHandler(tools).WithLogger(logging.NewNop()))
	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	_, err = c2.CallTool(ctx, "stall", nil)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.NotErrorIs(t, err, ErrRequestTimeout)
}

func TestPeerInitiatedRequests(t *testing.T) {
	mock := testutil.NewMockTransport()
	c := New("test-client", "0.0.1", WithLogger(logging.NewNop()))
	mock.SendFunc = func(ctx context.Context, message shared.JSONRPCMessage) error {
		if req, ok := message.(shared.JSONRPCRequest); ok && req.Method == shared.MethodInitialize {
			return mock.SimulateIncomingMessage(ctx, shared.NewResult(req.ID, shared.InitializeResult{}))
		}
		return nil
	}
	require.NoError(t, c.Connect(context.Background(), mock))

	ping, err := shared.NewRequest(7, shared.MethodPing, nil)
	require.NoError(t, err)
	require.NoError(t, mock.SimulateIncomingMessage(context.Background(), ping))

	sampling, err := shared.NewRequest(8, "sampling/createMessage", nil)
	require.NoError(t, err)
	require.NoError(t, mock.SimulateIncomingMessage(context.Background(), sampling))

	messages := mock.GetMessages()
	pong := messages[len(messages)-2].(shared.JSONRPCResponse)
	assert.Equal(t, 7, pong.ID)
	assert.Nil(t, pong.Error)

	refused := messages[len(messages)-1].(shared.JSONRPCResponse)
	require.NotNil(t, refused.Error)
	assert.Equal(t, int(shared.MethodNotFound), refused.Error.Code)
}

func TestNotificationHandler(t *testing.T) {
	got := make(chan string, 1)
	mock := testutil.NewMockTransport()
	mock.SendFunc = func(ctx context.Context, message shared.JSONRPCMessage) error {
		if req, ok := message.(shared.JSONRPCRequest); ok {
			return mock.SimulateIncomingMessage(ctx, shared.NewResult(req.ID, shared.InitializeResult{}))
		}
		return nil
	}
	c := New("test-client", "0.0.1",
		WithLogger(logging.NewNop()),
		WithNotificationHandler(func(_ context.Context, n shared.JSONRPCNotification) { got <- n.Method }),
	)
	require.NoError(t, c.Connect(context.Background(), mock))

	changed, err := shared.NewNotification(shared.NotificationToolsListChanged, nil)
	require.NoError(t, err)
	require.NoError(t, mock.SimulateIncomingMessage(context.Background(), changed))
	assert.Equal(t, shared.NotificationToolsListChanged, <-got)
}

func TestClose(t *testing.T) {
	c := connectEmbedded(t, server.NewServer("peer", "1").WithLogger(logging.NewNop()))

	require.NoError(t, c.Close())
	require.NoError(t, c.Close())
	assert.Equal(t, StateClosed, c.State())

	select {
	case <-c.Done():
	default:
		t.Fatal("done channel not closed")
	}

	_, err := c.ListTools(context.Background())
	assert.ErrorIs(t, err, ErrClientClosed)
}

func TestPeerCloseMarksClientClosed(t *testing.T) {
	s := server.NewServer("peer", "1").WithLogger(logging.NewNop())
	c := connectEmbedded(t, s)

	require.NoError(t, s.Close())
	assert.Equal(t, StateClosed, c.State())
}
