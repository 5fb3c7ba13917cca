package config

import (
	"net/http"
	"sort"

	"github.com/pkg/errors"

	"github.com/FreePeak/golang-mcp-multiplexer/internal/infrastructure/logging"
	"github.com/FreePeak/golang-mcp-multiplexer/internal/infrastructure/transport"
	"github.com/FreePeak/golang-mcp-multiplexer/internal/usecases/calculator"
	"github.com/FreePeak/golang-mcp-multiplexer/internal/usecases/multiplexer"
)

var builtins = map[string]func(*logging.Logger) multiplexer.EmbeddedPeer{
	"calculator": func(logger *logging.Logger) multiplexer.EmbeddedPeer {
		return calculator.NewPeer(logger)
	},
}

// Builtins lists the names accepted by embedded peers
func Builtins() []string {
	names := make([]string, 0, len(builtins))
	for name := range builtins {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Sources builds a multiplexer source for every configured peer. Nothing is
// started; transports are only constructed.
func (c *Config) Sources(logger *logging.Logger) (map[string]multiplexer.Source, error) {
	sources := make(map[string]multiplexer.Source, len(c.Peers))
	for name, peer := range c.Peers {
		source, err := peer.source(logger.With(logging.Fields{"peer": name}))
		if err != nil {
			return nil, errors.Wrapf(err, "peer %q", name)
		}
		sources[name] = source
	}
	return sources, nil
}

func (p PeerConfig) source(logger *logging.Logger) (multiplexer.Source, error) {
	switch p.Type {
	case PeerStdio:
		args, err := expandAll(p.Args)
		if err != nil {
			return multiplexer.Source{}, err
		}
		env, err := expandMap(p.Env, true)
		if err != nil {
			return multiplexer.Source{}, err
		}
		t := transport.NewCommandTransport(p.Command, args,
			transport.WithEnv(env),
			transport.WithDir(p.Dir),
			transport.WithCommandLogger(logger),
		)
		return multiplexer.FromTransport(t), nil

	case PeerHTTP:
		target, err := p.peerURL()
		if err != nil {
			return multiplexer.Source{}, err
		}
		headers, err := expandMap(p.Headers, false)
		if err != nil {
			return multiplexer.Source{}, err
		}
		opts := make([]transport.StreamableHTTPOption, 0, len(headers))
		for k, v := range headers {
			opts = append(opts, transport.WithHTTPHeader(k, v))
		}
		return multiplexer.FromTransport(transport.NewStreamableHTTPClientTransport(target, opts...)), nil

	case PeerWebSocket:
		target, err := ExpandEnv(p.URL)
		if err != nil {
			return multiplexer.Source{}, err
		}
		headers, err := expandMap(p.Headers, false)
		if err != nil {
			return multiplexer.Source{}, err
		}
		header := http.Header{}
		for k, v := range headers {
			header.Set(k, v)
		}
		return multiplexer.FromTransport(transport.NewWebSocketTransport(target, transport.WithWebSocketHeader(header))), nil

	case PeerEmbedded:
		name := p.Builtin
		if name == "" {
			name = DefaultBuiltin
		}
		build, ok := builtins[name]
		if !ok {
			return multiplexer.Source{}, errors.Errorf("unknown builtin %q", name)
		}
		return multiplexer.FromEmbedded(build(logger)), nil

	default:
		return multiplexer.Source{}, errors.Errorf("unknown type %q", p.Type)
	}
}

func (p PeerConfig) peerURL() (string, error) {
	base, err := ExpandEnv(p.URL)
	if err != nil {
		return "", err
	}
	apiKey, err := ExpandEnv(p.APIKey)
	if err != nil {
		return "", err
	}
	return BuildPeerURL(base, apiKey, p.Profile, p.Config)
}
