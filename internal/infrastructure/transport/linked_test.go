package transport

import (
	"context"
	"sync"
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/FreePeak/golang-mcp-multiplexer/internal/domain/shared"
)

type recorder struct {
	mu       sync.Mutex
	messages []shared.JSONRPCMessage
}

func (r *recorder) handle(_ context.Context, msg shared.JSONRPCMessage) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.messages = append(r.messages, msg)
	return nil
}

func (r *recorder) all() []shared.JSONRPCMessage {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]shared.JSONRPCMessage(nil), r.messages...)
}

func TestLinkedTransportStartRequiresSibling(t *testing.T) {
	lone := NewLinkedTransport()

	err := lone.Start(context.Background(), func(context.Context, shared.JSONRPCMessage) error { return nil })
	assert.ErrorIs(t, err, ErrNotBound)

	err = lone.Send(context.Background(), shared.JSONRPCNotification{JSONRPC: shared.JSONRPCVersion, Method: "x"})
	assert.ErrorIs(t, err, ErrNotBound)
}

func TestLinkedTransportStartTwice(t *testing.T) {
	a, _ := NewLinkedPair()
	rec := &recorder{}

	require.NoError(t, a.Start(context.Background(), rec.handle))
	assert.ErrorIs(t, a.Start(context.Background(), rec.handle), ErrAlreadyStarted)
}

func TestLinkedTransportRoundTrip(t *testing.T) {
	a, b := NewLinkedPair()
	rec := &recorder{}
	require.NoError(t, b.Start(context.Background(), rec.handle))

	sent := make([]shared.JSONRPCMessage, 0, 5)
	for i := 0; i < 5; i++ {
		req, err := shared.NewRequest(i, shared.MethodCallTool, shared.CallToolParams{Name: "echo"})
		require.NoError(t, err)
		sent = append(sent, req)
		require.NoError(t, a.Send(context.Background(), req))
	}

	got := rec.all()
	require.Len(t, got, 5)
	for i := range sent {
		assert.Equal(t, sent[i], got[i], "message %d", i)
	}
}

func TestLinkedTransportSendPropagatesHandlerError(t *testing.T) {
	a, b := NewLinkedPair()
	boom := errors.New("boom")
	require.NoError(t, b.Start(context.Background(), func(context.Context, shared.JSONRPCMessage) error { return boom }))

	err := a.Send(context.Background(), shared.JSONRPCNotification{JSONRPC: shared.JSONRPCVersion, Method: "x"})
	assert.ErrorIs(t, err, boom)
}

func TestLinkedTransportSendToUnstartedSibling(t *testing.T) {
	a, _ := NewLinkedPair()

	err := a.Send(context.Background(), shared.JSONRPCNotification{JSONRPC: shared.JSONRPCVersion, Method: "x"})
	assert.ErrorIs(t, err, ErrNotStarted)
}

func TestLinkedTransportClosePropagates(t *testing.T) {
	tests := []struct {
		name  string
		close func(a, b *LinkedTransport)
	}{
		{"close first half", func(a, b *LinkedTransport) { _ = a.Close() }},
		{"close second half", func(a, b *LinkedTransport) { _ = b.Close() }},
		{"close both twice", func(a, b *LinkedTransport) {
			_ = a.Close()
			_ = b.Close()
			_ = a.Close()
			_ = b.Close()
		}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			a, b := NewLinkedPair()
			var aClosed, bClosed int
			a.SetCloseHandler(func() { aClosed++ })
			b.SetCloseHandler(func() { bClosed++ })

			tt.close(a, b)

			assert.True(t, a.IsClosed())
			assert.True(t, b.IsClosed())
			assert.Equal(t, 1, aClosed)
			assert.Equal(t, 1, bClosed)

			err := a.Send(context.Background(), shared.JSONRPCNotification{JSONRPC: shared.JSONRPCVersion, Method: "x"})
			assert.ErrorIs(t, err, ErrTransportClosed)
		})
	}
}

func TestLinkedTransportCloseHandlerMayCloseAgain(t *testing.T) {
	a, b := NewLinkedPair()
	calls := 0
	a.SetCloseHandler(func() {
		calls++
		_ = a.Close()
	})

	require.NoError(t, b.Close())
	assert.Equal(t, 1, calls)
}

func TestLinkedTransportBind(t *testing.T) {
	a, b := NewLinkedTransport(), NewLinkedTransport()
	a.Bind(b)

	rec := &recorder{}
	require.NoError(t, a.Start(context.Background(), rec.handle))
	require.NoError(t, b.Start(context.Background(), rec.handle))
	require.NoError(t, b.Send(context.Background(), shared.NewResult("1", struct{}{})))

	assert.Len(t, rec.all(), 1)
}
