package transport

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/FreePeak/golang-mcp-multiplexer/internal/domain/shared"
)

func TestWebSocketTransportRoundTrip(t *testing.T) {
	upgrader := websocket.Upgrader{Subprotocols: []string{WebSocketSubprotocol}}
	serverClosed := make(chan struct{})

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		server := NewWebSocketTransportFromConn(conn)
		server.SetCloseHandler(func() { close(serverClosed) })
		_ = server.Start(context.Background(), func(ctx context.Context, msg shared.JSONRPCMessage) error {
			req := msg.(shared.JSONRPCRequest)
			return server.Send(ctx, shared.NewResult(req.ID, map[string]string{"echo": req.Method}))
		})
	}))
	defer srv.Close()

	url := "ws" + strings.TrimPrefix(srv.URL, "http")
	client := NewWebSocketTransport(url)
	responses := make(chan shared.JSONRPCMessage, 1)
	require.NoError(t, client.Start(context.Background(), func(_ context.Context, msg shared.JSONRPCMessage) error {
		responses <- msg
		return nil
	}))

	req, err := shared.NewRequest("w1", shared.MethodPing, nil)
	require.NoError(t, err)
	require.NoError(t, client.Send(context.Background(), req))

	select {
	case msg := <-responses:
		require.True(t, msg.IsResponse())
		assert.Equal(t, "w1", msg.(shared.JSONRPCResponse).ID)
	case <-time.After(2 * time.Second):
		t.Fatal("no response over websocket")
	}

	require.NoError(t, client.Close())
	assert.ErrorIs(t, client.Send(context.Background(), req), ErrTransportClosed)

	select {
	case <-serverClosed:
	case <-time.After(2 * time.Second):
		t.Fatal("server side did not observe close")
	}
}

func TestWebSocketTransportDialFailure(t *testing.T) {
	client := NewWebSocketTransport("ws://127.0.0.1:1/none")
	err := client.Start(context.Background(), (&recorder{}).handle)
	assert.Error(t, err)
}
