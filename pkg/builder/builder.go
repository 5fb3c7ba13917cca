// Package builder assembles a multiplexer from embedded servers and remote
// peers.
package builder

import (
	"context"
	"net/http"

	"github.com/pkg/errors"
	"go.uber.org/zap"

	domaintransport "github.com/FreePeak/golang-mcp-multiplexer/internal/domain/transport"
	"github.com/FreePeak/golang-mcp-multiplexer/internal/infrastructure/logging"
	"github.com/FreePeak/golang-mcp-multiplexer/internal/infrastructure/transport"
	"github.com/FreePeak/golang-mcp-multiplexer/internal/usecases/multiplexer"
	"github.com/FreePeak/golang-mcp-multiplexer/pkg/server"
)

// ErrDuplicateNamespace is returned by Connect when a namespace was added
// twice
var ErrDuplicateNamespace = errors.New("namespace added twice")

// MultiplexerBuilder implements the Builder pattern for creating multiplexers.
type MultiplexerBuilder struct {
	logger     *logging.Logger
	clientName string
	clientVer  string
	sources    map[string]multiplexer.Source
	err        error
}

// NewMultiplexerBuilder creates a builder with no peers.
func NewMultiplexerBuilder() *MultiplexerBuilder {
	return &MultiplexerBuilder{
		logger:     logging.Default(),
		clientName: "mcp-multiplexer",
		clientVer:  "1.0.0",
		sources:    make(map[string]multiplexer.Source),
	}
}

// WithLogger sets the logger.
func (b *MultiplexerBuilder) WithLogger(logger *zap.Logger) *MultiplexerBuilder {
	b.logger = logging.NewFromZap(logger)
	return b
}

// WithClientInfo sets the client identity sent to every peer.
func (b *MultiplexerBuilder) WithClientInfo(name, version string) *MultiplexerBuilder {
	b.clientName = name
	b.clientVer = version
	return b
}

// AddEmbedded adds an in-process server under namespace.
func (b *MultiplexerBuilder) AddEmbedded(namespace string, s *server.MCPServer) *MultiplexerBuilder {
	if s == nil {
		b.fail(errors.Errorf("embedded server for %s is nil", namespace))
		return b
	}
	return b.add(namespace, multiplexer.FromEmbedded(s.Peer()))
}

// AddTransport adds a peer reached over an existing transport.
func (b *MultiplexerBuilder) AddTransport(namespace string, t domaintransport.Transport) *MultiplexerBuilder {
	return b.add(namespace, multiplexer.FromTransport(t))
}

// AddCommand adds a peer spawned as a subprocess speaking stdio.
func (b *MultiplexerBuilder) AddCommand(namespace, command string, args []string, env map[string]string) *MultiplexerBuilder {
	t := transport.NewCommandTransport(command, args,
		transport.WithEnv(env),
		transport.WithCommandLogger(b.logger.With(logging.Fields{"peer": namespace})),
	)
	return b.add(namespace, multiplexer.FromTransport(t))
}

// AddStreamableHTTP adds a peer served over streamable HTTP at url.
func (b *MultiplexerBuilder) AddStreamableHTTP(namespace, url string, headers http.Header) *MultiplexerBuilder {
	var opts []transport.StreamableHTTPOption
	for key, values := range headers {
		for _, v := range values {
			opts = append(opts, transport.WithHTTPHeader(key, v))
		}
	}
	return b.add(namespace, multiplexer.FromTransport(transport.NewStreamableHTTPClientTransport(url, opts...)))
}

// AddWebSocket adds a peer reached over a WebSocket at url.
func (b *MultiplexerBuilder) AddWebSocket(namespace, url string, header http.Header) *MultiplexerBuilder {
	return b.add(namespace, multiplexer.FromTransport(transport.NewWebSocketTransport(url, transport.WithWebSocketHeader(header))))
}

// Connect connects every added peer. Nothing stays connected on error.
func (b *MultiplexerBuilder) Connect(ctx context.Context) (*multiplexer.Multiplexer, error) {
	if b.err != nil {
		return nil, b.err
	}

	m := multiplexer.New(
		multiplexer.WithLogger(b.logger),
		multiplexer.WithClientInfo(b.clientName, b.clientVer),
	)
	if err := m.ConnectAll(ctx, b.sources); err != nil {
		return nil, err
	}
	return m, nil
}

func (b *MultiplexerBuilder) add(namespace string, source multiplexer.Source) *MultiplexerBuilder {
	if _, exists := b.sources[namespace]; exists {
		b.fail(errors.Wrapf(ErrDuplicateNamespace, "namespace %s", namespace))
		return b
	}
	b.sources[namespace] = source
	return b
}

func (b *MultiplexerBuilder) fail(err error) {
	if b.err == nil {
		b.err = err
	}
}
