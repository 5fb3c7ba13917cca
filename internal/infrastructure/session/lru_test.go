package session

import (
	"fmt"
	"testing"

	"github.com/pkg/errors"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/FreePeak/golang-mcp-multiplexer/internal/infrastructure/logging"
	mocks "github.com/FreePeak/golang-mcp-multiplexer/internal/testutil"
)

func newStore(max int, opts ...Option) *LRUStore {
	return NewLRUStore(max, append([]Option{WithLogger(logging.NewNop())}, opts...)...)
}

func TestNewLRUStoreDefault(t *testing.T) {
	assert.Equal(t, DefaultMaxSessions, NewLRUStore(0).max)
	assert.Equal(t, 5, NewLRUStore(5).max)
}

func TestGetSetDelete(t *testing.T) {
	s := newStore(3)
	a := mocks.NewMockTransport()

	_, ok := s.Get("a")
	assert.False(t, ok)

	s.Set("a", a)
	got, ok := s.Get("a")
	require.True(t, ok)
	assert.Same(t, a, got)
	assert.Equal(t, 1, s.Len())

	s.Delete("a")
	_, ok = s.Get("a")
	assert.False(t, ok)
	assert.Equal(t, 0, s.Len())
	assert.Equal(t, 0, a.CloseCalls())

	s.Delete("missing")
}

func TestBoundAndEvictionOrder(t *testing.T) {
	const max = 3
	s := newStore(max)

	transports := make([]*mocks.MockTransport, 0, 10)
	for i := 0; i < 10; i++ {
		tr := mocks.NewMockTransport()
		transports = append(transports, tr)
		s.Set(fmt.Sprintf("s%d", i), tr)
		assert.LessOrEqual(t, s.Len(), max)
	}

	assert.Equal(t, []string{"s9", "s8", "s7"}, s.IDs())
	for i, tr := range transports {
		if i < 10-max {
			assert.Equal(t, 1, tr.CloseCalls(), "s%d should have been evicted and closed", i)
		} else {
			assert.Equal(t, 0, tr.CloseCalls(), "s%d should still be live", i)
		}
	}
}

func TestGetRefreshSurvivesInserts(t *testing.T) {
	const max = 4
	s := newStore(max)

	keep := mocks.NewMockTransport()
	s.Set("keep", keep)
	for i := 0; i < max-1; i++ {
		s.Set(fmt.Sprintf("filler%d", i), mocks.NewMockTransport())
	}

	_, ok := s.Get("keep")
	require.True(t, ok)

	for i := 0; i < max-1; i++ {
		s.Set(fmt.Sprintf("new%d", i), mocks.NewMockTransport())
	}

	_, ok = s.Get("keep")
	assert.True(t, ok)
	assert.Equal(t, 0, keep.CloseCalls())

	s.Set("one-more", mocks.NewMockTransport())
	s.Set("and-another", mocks.NewMockTransport())
	assert.Equal(t, max, s.Len())
}

func TestSetExistingRefreshes(t *testing.T) {
	s := newStore(2)
	first := mocks.NewMockTransport()
	replacement := mocks.NewMockTransport()

	s.Set("a", first)
	s.Set("b", mocks.NewMockTransport())
	s.Set("a", replacement)

	got, ok := s.Get("a")
	require.True(t, ok)
	assert.Same(t, replacement, got)
	assert.Equal(t, 0, first.CloseCalls())
	assert.Equal(t, []string{"a", "b"}, s.IDs())

	s.Set("c", mocks.NewMockTransport())
	assert.Equal(t, []string{"c", "a"}, s.IDs())
}

func TestEvictionCloseMayReenterStore(t *testing.T) {
	s := newStore(1)
	old := mocks.NewMockTransport()
	old.SetCloseHandler(func() { s.Delete("old") })

	s.Set("old", old)
	s.Set("new", mocks.NewMockTransport())

	assert.Equal(t, 1, old.CloseCalls())
	assert.Equal(t, []string{"new"}, s.IDs())
}

func TestEvictionCloseErrorIsSwallowed(t *testing.T) {
	s := newStore(1)
	old := mocks.NewMockTransport()
	old.CloseFunc = func() error { return errors.New("already gone") }

	s.Set("old", old)
	assert.NotPanics(t, func() { s.Set("new", mocks.NewMockTransport()) })
	assert.Equal(t, 1, s.Len())
}

func TestClose(t *testing.T) {
	s := newStore(3)
	a, b := mocks.NewMockTransport(), mocks.NewMockTransport()
	s.Set("a", a)
	s.Set("b", b)

	s.Close()
	assert.Equal(t, 0, s.Len())
	assert.Equal(t, 1, a.CloseCalls())
	assert.Equal(t, 1, b.CloseCalls())
}

func TestMetrics(t *testing.T) {
	reg := prometheus.NewRegistry()
	metrics := NewMetrics(reg)
	s := newStore(2, WithMetrics(metrics))

	s.Set("a", mocks.NewMockTransport())
	s.Set("b", mocks.NewMockTransport())
	s.Set("c", mocks.NewMockTransport())
	assert.Equal(t, 2.0, testutil.ToFloat64(metrics.active))
	assert.Equal(t, 1.0, testutil.ToFloat64(metrics.evicts))

	s.Delete("c")
	assert.Equal(t, 1.0, testutil.ToFloat64(metrics.active))

	count, err := testutil.GatherAndCount(reg, "mcp_sessions_active", "mcp_sessions_evicted_total")
	require.NoError(t, err)
	assert.Equal(t, 2, count)
}
