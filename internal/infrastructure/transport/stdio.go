package transport

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"io"
	"os"
	"sync"

	"github.com/pkg/errors"

	"github.com/FreePeak/golang-mcp-multiplexer/internal/domain/shared"
	"github.com/FreePeak/golang-mcp-multiplexer/internal/domain/transport"
)

// StdioTransport implements newline-delimited JSON-RPC over a reader and a
// writer
type StdioTransport struct {
	callbacks

	reader  *bufio.Reader
	writer  *bufio.Writer
	closers []io.Closer

	mu        sync.Mutex
	handler   transport.MessageHandler
	started   bool
	closeCh   chan struct{}
	closeOnce sync.Once
	writeMu   sync.Mutex
}

var _ transport.Transport = (*StdioTransport)(nil)

// NewStdioTransport creates a transport reading from r and writing to w.
// Either side is closed on Close when it implements io.Closer.
func NewStdioTransport(r io.Reader, w io.Writer) *StdioTransport {
	t := &StdioTransport{
		reader:  bufio.NewReader(r),
		writer:  bufio.NewWriter(w),
		closeCh: make(chan struct{}),
	}
	if c, ok := w.(io.Closer); ok {
		t.closers = append(t.closers, c)
	}
	if c, ok := r.(io.Closer); ok {
		t.closers = append(t.closers, c)
	}
	return t
}

// NewStdioTransportFromOS creates a transport over the process stdin and
// stdout. The standard streams are left open on Close.
func NewStdioTransportFromOS() *StdioTransport {
	return &StdioTransport{
		reader:  bufio.NewReader(os.Stdin),
		writer:  bufio.NewWriter(os.Stdout),
		closeCh: make(chan struct{}),
	}
}

// Start starts the read loop
func (t *StdioTransport) Start(ctx context.Context, handler transport.MessageHandler) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.started {
		return ErrAlreadyStarted
	}
	select {
	case <-t.closeCh:
		return ErrTransportClosed
	default:
	}

	t.handler = handler
	t.started = true

	go t.readMessages(context.WithoutCancel(ctx))

	return nil
}

// Send writes one message followed by a newline
func (t *StdioTransport) Send(ctx context.Context, message shared.JSONRPCMessage) error {
	select {
	case <-t.closeCh:
		return ErrTransportClosed
	default:
	}

	data, err := json.Marshal(message)
	if err != nil {
		return errors.Wrap(err, "error marshalling message")
	}

	t.writeMu.Lock()
	defer t.writeMu.Unlock()

	if _, err := t.writer.Write(data); err != nil {
		return errors.Wrap(err, "error writing message")
	}
	if err := t.writer.WriteByte('\n'); err != nil {
		return errors.Wrap(err, "error writing newline")
	}
	if err := t.writer.Flush(); err != nil {
		return errors.Wrap(err, "error flushing writer")
	}

	return nil
}

// Close stops the read loop and closes the underlying streams
func (t *StdioTransport) Close() error {
	var err error
	t.closeOnce.Do(func() {
		close(t.closeCh)
		for _, c := range t.closers {
			if cerr := c.Close(); cerr != nil && err == nil {
				err = errors.Wrap(cerr, "error closing stream")
			}
		}
		t.fireClose()
	})
	return err
}

// Done is closed once the transport has closed
func (t *StdioTransport) Done() <-chan struct{} {
	return t.closeCh
}

func (t *StdioTransport) readMessages(ctx context.Context) {
	defer t.Close()

	for {
		select {
		case <-t.closeCh:
			return
		case <-ctx.Done():
			return
		default:
		}

		line, err := t.reader.ReadBytes('\n')
		if len(line) > 0 {
			t.dispatch(ctx, line)
		}
		if err != nil {
			if err != io.EOF && !t.isClosed() {
				t.fireError(errors.Wrap(err, "error reading message"))
			}
			return
		}
	}
}

func (t *StdioTransport) dispatch(ctx context.Context, line []byte) {
	if len(bytes.TrimSpace(line)) == 0 {
		return
	}

	message, err := shared.ParseMessage(line)
	if err != nil {
		t.fireError(err)
		return
	}

	t.mu.Lock()
	handler := t.handler
	t.mu.Unlock()

	if handler != nil {
		if err := handler(ctx, message); err != nil {
			t.fireError(errors.Wrap(err, "error handling message"))
		}
	}
}

func (t *StdioTransport) isClosed() bool {
	select {
	case <-t.closeCh:
		return true
	default:
		return false
	}
}
