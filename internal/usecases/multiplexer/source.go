package multiplexer

import (
	"context"

	"github.com/FreePeak/golang-mcp-multiplexer/internal/domain/transport"
)

// EmbeddedPeer is an in-process peer that can be attached to one half of a
// linked pair, such as *server.Server
type EmbeddedPeer interface {
	Connect(ctx context.Context, t transport.Transport) error
}

// SourceKind tells how a peer is reached
type SourceKind int

const (
	// SourceInvalid is the zero value and is rejected by ConnectAll
	SourceInvalid SourceKind = iota
	// SourceTransport is a peer behind a real transport
	SourceTransport
	// SourceEmbedded is an in-process peer
	SourceEmbedded
)

func (k SourceKind) String() string {
	switch k {
	case SourceTransport:
		return "transport"
	case SourceEmbedded:
		return "embedded"
	default:
		return "invalid"
	}
}

// Source describes how to reach one peer
type Source struct {
	kind      SourceKind
	transport transport.Transport
	peer      EmbeddedPeer
}

// FromTransport reaches a peer over t. The multiplexer owns t afterwards.
func FromTransport(t transport.Transport) Source {
	return Source{kind: SourceTransport, transport: t}
}

// FromEmbedded reaches an in-process peer through a linked pair
func FromEmbedded(peer EmbeddedPeer) Source {
	return Source{kind: SourceEmbedded, peer: peer}
}

// Kind returns the source kind
func (s Source) Kind() SourceKind {
	return s.kind
}

func (s Source) valid() bool {
	switch s.kind {
	case SourceTransport:
		return s.transport != nil
	case SourceEmbedded:
		return s.peer != nil
	default:
		return false
	}
}
