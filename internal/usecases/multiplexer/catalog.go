package multiplexer

import (
	"github.com/FreePeak/golang-mcp-multiplexer/internal/domain/shared"
)

// Entry is one peer's contribution to a Catalog. Tool names are already
// namespaced.
type Entry struct {
	Namespace string
	Tools     []shared.Tool
}

// Catalog is the aggregated, namespaced tool list of every connected peer
// that supports tools. It is immutable once built.
type Catalog struct {
	entries []Entry
}

func newCatalog(entries []Entry) *Catalog {
	return &Catalog{entries: entries}
}

// Entries returns the per-peer entries ordered by namespace
func (c *Catalog) Entries() []Entry {
	out := make([]Entry, len(c.entries))
	for i, e := range c.entries {
		out[i] = Entry{Namespace: e.Namespace, Tools: append([]shared.Tool(nil), e.Tools...)}
	}
	return out
}

// ByNamespace maps each namespace to its tools
func (c *Catalog) ByNamespace() map[string][]shared.Tool {
	out := make(map[string][]shared.Tool, len(c.entries))
	for _, e := range c.entries {
		out[e.Namespace] = append([]shared.Tool(nil), e.Tools...)
	}
	return out
}

// Flatten returns every tool in namespace order
func (c *Catalog) Flatten() []shared.Tool {
	out := make([]shared.Tool, 0, c.Len())
	for _, e := range c.entries {
		out = append(out, e.Tools...)
	}
	return out
}

// Len returns the total number of tools
func (c *Catalog) Len() int {
	n := 0
	for _, e := range c.entries {
		n += len(e.Tools)
	}
	return n
}
