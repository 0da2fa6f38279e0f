package cache

import (
	"context"
	"log/slog"
	"time"

	"github.com/benbjohnson/clock"

	"github.com/IvanBrykalov/boundcache/policy"
)

// EvictReason explains why an entry was removed by the cache itself.
type EvictReason int

const (
	// EvictCount: removed to bring the entry count back under CountLimit.
	EvictCount EvictReason = iota
	// EvictCost: removed to bring the total cost back under CostLimit.
	EvictCost
	// EvictAge: older than AgeLimit at SweepExpired time.
	EvictAge
)

func (r EvictReason) String() string {
	switch r {
	case EvictCount:
		return "count"
	case EvictCost:
		return "cost"
	case EvictAge:
		return "age"
	default:
		return "unknown"
	}
}

// Metrics exposes cache-level observability hooks.
// A NoopMetrics implementation is provided and used by default.
// Hooks are called under the cache lock; keep them cheap.
type Metrics interface {
	Hit()
	Miss()
	Evict(reason EvictReason)
	Size(entries int, cost int64)
	Compact(entries int)
}

// Limits are the three eviction bounds. A zero value disables that bound.
type Limits struct {
	Count int
	Cost  int64
	Age   time.Duration
}

// Options configures the cache. Zero values are safe; defaults are applied
// in New():
//   - nil Policy           => heap-backed LRU (policy/lru)
//   - nil Metrics          => NoopMetrics
//   - nil Clock            => wall clock
//   - nil Logger           => discard
//   - SequenceHighWater 0  => math.MaxInt64
type Options[K comparable, V any] struct {
	// Name is a free-form label for logs and diagnostics.
	Name string

	// CountLimit is the maximum number of resident entries (0 = unlimited).
	CountLimit int
	// CostLimit is the maximum sum of entry costs (0 = unlimited).
	CostLimit int64
	// AgeLimit is the maximum age SweepExpired tolerates (0 = unlimited).
	AgeLimit time.Duration

	// Cost computes the cost of a value stored with Set, Add or GetOrLoad.
	// nil => every entry costs 1. A negative result is rejected.
	Cost func(v V) int64

	// Policy is the recency index; nil => policy/lru.
	Policy policy.Policy[K, V]

	// SequenceHighWater is the sequence value at which the cache compacts
	// on its own before the counter could overflow (0 => math.MaxInt64).
	SequenceHighWater int64

	// Loader fetches a value on miss. Used by GetOrLoad.
	Loader func(ctx context.Context, k K) (V, error)

	// OnEvict is called for every count, cost or age eviction, under the
	// cache lock. Remove and Clear do not call it.
	OnEvict func(k K, v V, reason EvictReason)
	Metrics Metrics

	// Clock stamps createdAt on insertion. Nil => clock.New(), the wall
	// clock. Hosts that need deterministic ages inject their own (e.g.
	// clock.NewMock()). The now passed to SweepExpired must come from the
	// same time base as this clock, or ages are meaningless.
	Clock clock.Clock

	Logger *slog.Logger
}

// EntryInfo describes one resident entry. Returned by Entries for
// diagnostics and tests.
type EntryInfo[K comparable] struct {
	Key       K
	Sequence  int64
	Cost      int64
	CreatedAt time.Time
}

// Stats are cumulative counters since construction. Clear does not reset them.
type Stats struct {
	Hits        uint64
	Misses      uint64
	Evictions   uint64
	Compactions uint64
	// SharedLoads counts GetOrLoad calls whose result came from a load that
	// served more than one caller.
	SharedLoads uint64
}
