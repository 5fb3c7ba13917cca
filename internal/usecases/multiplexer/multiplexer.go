// Package multiplexer presents many MCP peers as a single tool provider.
// Tools are namespaced as {namespace}_{tool} and calls are routed back to the
// owning peer.
package multiplexer

import (
	"context"
	"sort"
	"strconv"
	"sync"

	"github.com/pkg/errors"
	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/singleflight"

	"github.com/FreePeak/golang-mcp-multiplexer/internal/domain"
	"github.com/FreePeak/golang-mcp-multiplexer/internal/domain/handler"
	"github.com/FreePeak/golang-mcp-multiplexer/internal/domain/shared"
	"github.com/FreePeak/golang-mcp-multiplexer/internal/infrastructure/client"
	"github.com/FreePeak/golang-mcp-multiplexer/internal/infrastructure/logging"
	"github.com/FreePeak/golang-mcp-multiplexer/internal/infrastructure/transport"
)

var (
	// ErrDuplicatePeer is returned when a namespace is already connected
	ErrDuplicatePeer = errors.New("peer already connected")

	// ErrInvalidSource is returned for the zero Source
	ErrInvalidSource = errors.New("invalid peer source")
)

// Call is one entry of a CallTools batch
type Call struct {
	Namespace string
	ToolName  string
	Arguments map[string]interface{}
}

// Option configures a Multiplexer
type Option func(*Multiplexer)

// WithLogger sets the logger
func WithLogger(logger *logging.Logger) Option {
	return func(m *Multiplexer) {
		m.logger = logger.Named("multiplexer")
	}
}

// WithClientInfo sets the name and version peers see in initialize
func WithClientInfo(name, version string) Option {
	return func(m *Multiplexer) {
		m.clientName = name
		m.clientVersion = version
	}
}

// WithClientOptions passes options to every peer client
func WithClientOptions(opts ...client.Option) Option {
	return func(m *Multiplexer) {
		m.clientOpts = append(m.clientOpts, opts...)
	}
}

// WithMetrics records per-call outcomes
func WithMetrics(metrics *Metrics) Option {
	return func(m *Multiplexer) {
		m.metrics = metrics
	}
}

// Multiplexer owns a named set of peer clients
type Multiplexer struct {
	clientName    string
	clientVersion string
	clientOpts    []client.Option
	logger        *logging.Logger
	metrics       *Metrics

	mu         sync.RWMutex
	clients    map[string]*client.Client
	reserved   map[string]struct{}
	catalog    *Catalog
	generation uint64

	flight singleflight.Group
}

// New creates an empty multiplexer
func New(opts ...Option) *Multiplexer {
	m := &Multiplexer{
		clientName:    "mcp-multiplexer",
		clientVersion: "1.0.0",
		logger:        logging.Default().Named("multiplexer"),
		clients:       make(map[string]*client.Client),
		reserved:      make(map[string]struct{}),
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// ConnectAll connects every source concurrently. Either all of them end up
// connected or none do: peers connected by a failing call are closed again.
func (m *Multiplexer) ConnectAll(ctx context.Context, sources map[string]Source) error {
	if err := m.reserve(sources); err != nil {
		return err
	}
	defer m.release(sources)

	var (
		mu        sync.Mutex
		connected = make(map[string]*client.Client, len(sources))
	)

	g, gctx := errgroup.WithContext(ctx)
	for namespace, source := range sources {
		g.Go(func() error {
			c, err := m.connect(gctx, namespace, source)
			if err != nil {
				return errors.Wrapf(err, "connect peer %s", namespace)
			}
			mu.Lock()
			connected[namespace] = c
			mu.Unlock()
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		m.closeClients(connected)
		return err
	}

	m.mu.Lock()
	for namespace, c := range connected {
		m.clients[namespace] = c
	}
	m.invalidateLocked()
	m.mu.Unlock()

	m.logger.Info("peers connected", logging.Fields{"count": len(connected), "total": m.Len()})
	return nil
}

func (m *Multiplexer) reserve(sources map[string]Source) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	for namespace, source := range sources {
		if err := ValidateNamespace(namespace); err != nil {
			return err
		}
		if !source.valid() {
			return errors.Wrapf(ErrInvalidSource, "peer %s", namespace)
		}
		if _, ok := m.clients[namespace]; ok {
			return errors.Wrapf(ErrDuplicatePeer, "peer %s", namespace)
		}
		if _, ok := m.reserved[namespace]; ok {
			return errors.Wrapf(ErrDuplicatePeer, "peer %s", namespace)
		}
	}
	for namespace := range sources {
		m.reserved[namespace] = struct{}{}
	}
	return nil
}

func (m *Multiplexer) release(sources map[string]Source) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for namespace := range sources {
		delete(m.reserved, namespace)
	}
}

func (m *Multiplexer) connect(ctx context.Context, namespace string, source Source) (*client.Client, error) {
	opts := append([]client.Option{client.WithLogger(m.logger.With(logging.Fields{"peer": namespace}))}, m.clientOpts...)
	c := client.New(m.clientName, m.clientVersion, opts...)

	switch source.kind {
	case SourceTransport:
		if err := c.Connect(ctx, source.transport); err != nil {
			return nil, err
		}
	case SourceEmbedded:
		local, remote := transport.NewLinkedPair()
		if err := source.peer.Connect(ctx, remote); err != nil {
			_ = local.Close()
			return nil, errors.Wrap(err, "error connecting embedded peer")
		}
		if err := c.Connect(ctx, local); err != nil {
			return nil, err
		}
	default:
		return nil, ErrInvalidSource
	}
	return c, nil
}

// ListTools returns the aggregated catalog, computing it on first use.
// Concurrent first callers share one fan-out. A failed fan-out is not cached.
func (m *Multiplexer) ListTools(ctx context.Context) (*Catalog, error) {
	m.mu.RLock()
	if m.catalog != nil {
		catalog := m.catalog
		m.mu.RUnlock()
		return catalog, nil
	}
	generation := m.generation
	m.mu.RUnlock()

	// The fan-out outlives any single caller. Each waiter stops on its own ctx
	// and the peer request timeout bounds the shared build.
	buildCtx := context.WithoutCancel(ctx)
	ch := m.flight.DoChan(strconv.FormatUint(generation, 10), func() (interface{}, error) {
		m.mu.RLock()
		cached := m.catalog
		m.mu.RUnlock()
		if cached != nil {
			return cached, nil
		}

		catalog, err := m.buildCatalog(buildCtx)
		if err != nil {
			return nil, err
		}

		m.mu.Lock()
		if m.generation == generation {
			m.catalog = catalog
		}
		m.mu.Unlock()
		return catalog, nil
	})

	select {
	case res := <-ch:
		if res.Err != nil {
			return nil, res.Err
		}
		return res.Val.(*Catalog), nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// Tools returns the flattened catalog
func (m *Multiplexer) Tools(ctx context.Context) ([]shared.Tool, error) {
	catalog, err := m.ListTools(ctx)
	if err != nil {
		return nil, err
	}
	return catalog.Flatten(), nil
}

func (m *Multiplexer) buildCatalog(ctx context.Context) (*Catalog, error) {
	clients := m.snapshot()

	var (
		mu      sync.Mutex
		entries = make([]Entry, 0, len(clients))
	)

	g, gctx := errgroup.WithContext(ctx)
	for namespace, c := range clients {
		if !c.ServerCapabilities().SupportsTools() {
			continue
		}
		g.Go(func() error {
			tools, err := c.ListTools(gctx)
			if err != nil {
				return errors.Wrapf(err, "list tools on peer %s", namespace)
			}

			namespaced := make([]shared.Tool, len(tools))
			for i, tool := range tools {
				tool.Name = NamespacedName(namespace, tool.Name)
				namespaced[i] = tool
			}

			mu.Lock()
			entries = append(entries, Entry{Namespace: namespace, Tools: namespaced})
			mu.Unlock()
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	sort.Slice(entries, func(i, j int) bool {
		return entries[i].Namespace < entries[j].Namespace
	})

	m.logger.Debug("catalog built", logging.Fields{"peers": len(entries)})
	return newCatalog(entries), nil
}

// CallTools runs every call concurrently and returns results in input order.
// An unknown namespace fails the whole batch before anything runs. Any other
// failure becomes an error-flagged result in its own slot.
func (m *Multiplexer) CallTools(ctx context.Context, calls []Call) ([]shared.CallToolResult, error) {
	clients := m.snapshot()
	for _, call := range calls {
		if _, ok := clients[call.Namespace]; !ok {
			return nil, domain.NewUnknownPeerError(call.Namespace)
		}
	}

	results := make([]shared.CallToolResult, len(calls))
	var g errgroup.Group
	for i, call := range calls {
		c := clients[call.Namespace]
		g.Go(func() error {
			result, err := c.CallTool(ctx, call.ToolName, call.Arguments)
			m.metrics.observe(call.Namespace, err)
			if err != nil {
				results[i] = shared.NewToolErrorResult(domain.NewPeerCallError(call.Namespace, call.ToolName, err).Error())
				return nil
			}
			results[i] = *result
			return nil
		})
	}
	_ = g.Wait()

	return results, nil
}

// CallTool routes a namespaced tool name to its peer
func (m *Multiplexer) CallTool(ctx context.Context, name string, arguments map[string]interface{}) (*shared.CallToolResult, error) {
	namespace, tool, ok := SplitName(name)
	if !ok {
		return nil, errors.Wrapf(ErrInvalidToolName, "tool %q", name)
	}

	m.mu.RLock()
	c, exists := m.clients[namespace]
	m.mu.RUnlock()
	if !exists {
		return nil, domain.NewUnknownPeerError(namespace)
	}

	result, err := c.CallTool(ctx, tool, arguments)
	m.metrics.observe(namespace, err)
	if err != nil {
		return nil, domain.NewPeerCallError(namespace, tool, err)
	}
	return result, nil
}

// Namespaces returns the connected namespaces in sorted order
func (m *Multiplexer) Namespaces() []string {
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := make([]string, 0, len(m.clients))
	for namespace := range m.clients {
		out = append(out, namespace)
	}
	sort.Strings(out)
	return out
}

// Len returns the number of connected peers
func (m *Multiplexer) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.clients)
}

// Close closes every peer concurrently and waits for all of them. Close
// errors are logged, never returned.
func (m *Multiplexer) Close() error {
	m.mu.Lock()
	clients := m.clients
	m.clients = make(map[string]*client.Client)
	m.invalidateLocked()
	m.mu.Unlock()

	m.closeClients(clients)
	return nil
}

// Handler exposes the multiplexer as a single tool provider that can back a
// server
func (m *Multiplexer) Handler() handler.ToolHandler {
	return toolHandler{m: m}
}

func (m *Multiplexer) closeClients(clients map[string]*client.Client) {
	var wg sync.WaitGroup
	for namespace, c := range clients {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := c.Close(); err != nil {
				m.logger.Warn("error closing peer", logging.Fields{"peer": namespace, "error": err})
			}
		}()
	}
	wg.Wait()
}

func (m *Multiplexer) snapshot() map[string]*client.Client {
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := make(map[string]*client.Client, len(m.clients))
	for namespace, c := range m.clients {
		out[namespace] = c
	}
	return out
}

func (m *Multiplexer) invalidateLocked() {
	m.catalog = nil
	m.generation++
}

type toolHandler struct {
	m *Multiplexer
}

func (h toolHandler) ListTools(ctx context.Context) ([]shared.Tool, error) {
	return h.m.Tools(ctx)
}

func (h toolHandler) CallTool(ctx context.Context, name string, arguments map[string]interface{}) (*shared.CallToolResult, error) {
	return h.m.CallTool(ctx, name, arguments)
}
