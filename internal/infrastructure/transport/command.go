package transport

import (
	"bufio"
	"context"
	"io"
	"os"
	"os/exec"
	"sort"
	"sync"
	"time"

	"github.com/pkg/errors"

	"github.com/FreePeak/golang-mcp-multiplexer/internal/domain/shared"
	"github.com/FreePeak/golang-mcp-multiplexer/internal/domain/transport"
	"github.com/FreePeak/golang-mcp-multiplexer/internal/infrastructure/logging"
)

// DefaultShutdownGrace is how long a child gets to exit after its stdin is
// closed before it is killed
const DefaultShutdownGrace = 2 * time.Second

// CommandTransport runs a peer as a subprocess and speaks newline-delimited
// JSON-RPC over its stdin and stdout
type CommandTransport struct {
	command string
	args    []string
	env     map[string]string
	dir     string
	grace   time.Duration
	logger  *logging.Logger

	mu    sync.Mutex
	cmd   *exec.Cmd
	stdio *StdioTransport
	done  chan struct{}

	pendingClose transport.CloseHandler
	pendingError transport.ErrorHandler
}

var _ transport.Transport = (*CommandTransport)(nil)

// CommandOption configures a CommandTransport
type CommandOption func(*CommandTransport)

// WithEnv adds environment variables on top of the parent environment
func WithEnv(env map[string]string) CommandOption {
	return func(t *CommandTransport) {
		t.env = env
	}
}

// WithDir sets the working directory of the child
func WithDir(dir string) CommandOption {
	return func(t *CommandTransport) {
		t.dir = dir
	}
}

// WithShutdownGrace overrides DefaultShutdownGrace
func WithShutdownGrace(d time.Duration) CommandOption {
	return func(t *CommandTransport) {
		t.grace = d
	}
}

// WithCommandLogger sets the logger used for the child's stderr
func WithCommandLogger(logger *logging.Logger) CommandOption {
	return func(t *CommandTransport) {
		t.logger = logger
	}
}

// NewCommandTransport creates a transport for the given command. The
// process is spawned on Start.
func NewCommandTransport(command string, args []string, opts ...CommandOption) *CommandTransport {
	t := &CommandTransport{
		command: command,
		args:    args,
		grace:   DefaultShutdownGrace,
		logger:  logging.Default(),
	}
	for _, opt := range opts {
		opt(t)
	}
	return t
}

// Start spawns the child process and starts reading its stdout. The
// process is not tied to ctx so it outlives the connect call.
func (t *CommandTransport) Start(ctx context.Context, handler transport.MessageHandler) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.cmd != nil {
		return ErrAlreadyStarted
	}

	cmd := exec.Command(t.command, t.args...)
	cmd.Dir = t.dir
	cmd.Env = mergeEnv(os.Environ(), t.env)

	stdin, err := cmd.StdinPipe()
	if err != nil {
		return errors.Wrap(err, "error creating stdin pipe")
	}
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return errors.Wrap(err, "error creating stdout pipe")
	}
	stderr, err := cmd.StderrPipe()
	if err != nil {
		return errors.Wrap(err, "error creating stderr pipe")
	}

	if err := cmd.Start(); err != nil {
		return errors.Wrapf(err, "error starting %s", t.command)
	}

	t.cmd = cmd
	t.done = make(chan struct{})
	t.stdio = NewStdioTransport(stdout, stdin)
	t.stdio.SetCloseHandler(t.pendingClose)
	t.stdio.SetErrorHandler(t.pendingError)

	go t.logStderr(stderr)
	stdio := t.stdio
	go func() {
		// Wait closes the pipes, so it must not run before reads are done.
		<-stdio.Done()
		err := cmd.Wait()
		if err != nil {
			t.logger.Debug("peer process exited", logging.Fields{"command": t.command, "error": err})
		}
		close(t.done)
	}()

	return t.stdio.Start(ctx, handler)
}

// Send writes a message to the child's stdin
func (t *CommandTransport) Send(ctx context.Context, message shared.JSONRPCMessage) error {
	t.mu.Lock()
	stdio := t.stdio
	t.mu.Unlock()

	if stdio == nil {
		return ErrNotStarted
	}
	return stdio.Send(ctx, message)
}

// Close closes the child's stdin and waits for it to exit, killing it after
// the grace period
func (t *CommandTransport) Close() error {
	t.mu.Lock()
	stdio, cmd, done := t.stdio, t.cmd, t.done
	t.mu.Unlock()

	if stdio == nil {
		return nil
	}

	err := stdio.Close()

	select {
	case <-done:
	case <-time.After(t.grace):
		if cmd.Process != nil {
			if kerr := cmd.Process.Kill(); kerr != nil && err == nil {
				err = errors.Wrap(kerr, "error killing peer process")
			}
		}
		<-done
	}

	return err
}

// SetCloseHandler registers the onclose callback
func (t *CommandTransport) SetCloseHandler(handler transport.CloseHandler) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.pendingClose = handler
	if t.stdio != nil {
		t.stdio.SetCloseHandler(handler)
	}
}

// SetErrorHandler registers the onerror callback
func (t *CommandTransport) SetErrorHandler(handler transport.ErrorHandler) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.pendingError = handler
	if t.stdio != nil {
		t.stdio.SetErrorHandler(handler)
	}
}

func (t *CommandTransport) logStderr(r io.Reader) {
	scanner := bufio.NewScanner(r)
	for scanner.Scan() {
		t.logger.Debug("peer stderr", logging.Fields{"command": t.command, "line": scanner.Text()})
	}
}

func mergeEnv(base []string, extra map[string]string) []string {
	if len(extra) == 0 {
		return base
	}
	keys := make([]string, 0, len(extra))
	for k := range extra {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	env := make([]string, 0, len(base)+len(extra))
	env = append(env, base...)
	for _, k := range keys {
		env = append(env, k+"="+extra[k])
	}
	return env
}
