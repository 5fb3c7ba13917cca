// Package session stores live session transports with a bounded,
// least-recently-used eviction policy.
package session

import (
	"container/list"
	"sync"

	"github.com/FreePeak/golang-mcp-multiplexer/internal/domain"
	"github.com/FreePeak/golang-mcp-multiplexer/internal/domain/transport"
	"github.com/FreePeak/golang-mcp-multiplexer/internal/infrastructure/logging"
)

// DefaultMaxSessions is the store capacity when none is given
const DefaultMaxSessions = 1000

type entry struct {
	id        string
	transport transport.Transport
}

// Option configures an LRUStore
type Option func(*LRUStore)

// WithLogger sets the store logger
func WithLogger(logger *logging.Logger) Option {
	return func(s *LRUStore) {
		s.logger = logger.Named("sessions")
	}
}

// WithMetrics publishes store size and evictions
func WithMetrics(metrics *Metrics) Option {
	return func(s *LRUStore) {
		s.metrics = metrics
	}
}

// LRUStore is a bounded session store. When full, Set evicts the least
// recently used session and closes its transport.
type LRUStore struct {
	max     int
	logger  *logging.Logger
	metrics *Metrics

	mu    sync.Mutex
	order *list.List
	items map[string]*list.Element
}

var _ domain.SessionStore = (*LRUStore)(nil)

// NewLRUStore creates a store holding at most max sessions. A max below one
// selects DefaultMaxSessions.
func NewLRUStore(max int, opts ...Option) *LRUStore {
	if max < 1 {
		max = DefaultMaxSessions
	}
	s := &LRUStore{
		max:    max,
		logger: logging.Default().Named("sessions"),
		order:  list.New(),
		items:  make(map[string]*list.Element),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Get returns the transport for id and marks it most recently used
func (s *LRUStore) Get(id string) (transport.Transport, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	el, ok := s.items[id]
	if !ok {
		return nil, false
	}
	s.order.MoveToFront(el)
	return el.Value.(*entry).transport, true
}

// Set stores t under id. Replacing an existing id refreshes its recency.
// Otherwise a full store first evicts its oldest session; the evicted
// transport is closed after the lock is released, so close handlers may call
// back into the store.
func (s *LRUStore) Set(id string, t transport.Transport) {
	var evicted *entry

	s.mu.Lock()
	if el, ok := s.items[id]; ok {
		el.Value.(*entry).transport = t
		s.order.MoveToFront(el)
		s.mu.Unlock()
		return
	}

	if s.order.Len() >= s.max {
		if oldest := s.order.Back(); oldest != nil {
			evicted = oldest.Value.(*entry)
			s.order.Remove(oldest)
			delete(s.items, evicted.id)
		}
	}
	s.items[id] = s.order.PushFront(&entry{id: id, transport: t})
	size := s.order.Len()
	s.mu.Unlock()

	s.metrics.setActive(size)
	if evicted != nil {
		s.evict(evicted)
	}
}

// Delete removes id without closing its transport
func (s *LRUStore) Delete(id string) {
	s.mu.Lock()
	el, ok := s.items[id]
	if ok {
		s.order.Remove(el)
		delete(s.items, id)
	}
	size := s.order.Len()
	s.mu.Unlock()

	if ok {
		s.metrics.setActive(size)
	}
}

// Len returns the number of stored sessions
func (s *LRUStore) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.order.Len()
}

// IDs returns session ids from most to least recently used
func (s *LRUStore) IDs() []string {
	s.mu.Lock()
	defer s.mu.Unlock()

	ids := make([]string, 0, s.order.Len())
	for el := s.order.Front(); el != nil; el = el.Next() {
		ids = append(ids, el.Value.(*entry).id)
	}
	return ids
}

// Close closes every stored transport and empties the store
func (s *LRUStore) Close() {
	s.mu.Lock()
	entries := make([]*entry, 0, s.order.Len())
	for el := s.order.Front(); el != nil; el = el.Next() {
		entries = append(entries, el.Value.(*entry))
	}
	s.order.Init()
	s.items = make(map[string]*list.Element)
	s.mu.Unlock()

	s.metrics.setActive(0)
	for _, e := range entries {
		if err := e.transport.Close(); err != nil {
			s.logger.Warn("error closing session", logging.Fields{"session": e.id, "error": err})
		}
	}
}

func (s *LRUStore) evict(e *entry) {
	s.metrics.evicted()
	s.logger.Info("evicting session", logging.Fields{"session": e.id})
	if err := e.transport.Close(); err != nil {
		s.logger.Warn("error closing evicted session", logging.Fields{"session": e.id, "error": err})
	}
}
