package cache

import (
	"cmp"
	"context"
	"fmt"
	"log/slog"
	"math"
	"slices"
	"sync"
	"sync/atomic"
	"time"

	"github.com/benbjohnson/clock"

	"github.com/IvanBrykalov/boundcache/internal/singleflight"
	"github.com/IvanBrykalov/boundcache/internal/util"
	"github.com/IvanBrykalov/boundcache/policy"
	"github.com/IvanBrykalov/boundcache/policy/lru"
)

// cache is the single-lock implementation of Cache. One global recency order
// is kept so eviction is exact; there is no sharding.
type cache[K comparable, V any] struct {
	// ---- guarded by mu ----
	mu        sync.Mutex
	m         map[K]*entry[K, V]
	idx       policy.Index[K, V]
	cost      int64 // sum of resident costs
	limits    Limits
	next      int64 // sequence for the next touch
	highWater int64
	name      string

	closed atomic.Bool

	opt Options[K, V]
	clk clock.Clock
	log *slog.Logger

	// singleflight group for coalescing concurrent loads in GetOrLoad.
	sf singleflight.Group[K, V]

	// ---- counters readable without mu ----
	_           util.CacheLinePad
	hits        util.Counter
	misses      util.Counter
	evicts      util.Counter
	compactions util.Counter
	sharedLoads util.Counter
}

// New constructs a cache with the provided Options.
// Negative limits or a negative SequenceHighWater return an error wrapping
// ErrInvalidArgument.
func New[K comparable, V any](opt Options[K, V]) (Cache[K, V], error) {
	if err := validateLimits(Limits{Count: opt.CountLimit, Cost: opt.CostLimit, Age: opt.AgeLimit}); err != nil {
		return nil, err
	}
	if opt.SequenceHighWater < 0 {
		return nil, fmt.Errorf("%w: negative sequence high-water mark %d", ErrInvalidArgument, opt.SequenceHighWater)
	}
	if opt.SequenceHighWater == 0 {
		opt.SequenceHighWater = math.MaxInt64
	}
	if opt.Metrics == nil {
		opt.Metrics = NoopMetrics{}
	}
	if opt.Policy == nil {
		opt.Policy = lru.New[K, V]()
	}
	if opt.Clock == nil {
		opt.Clock = clock.New()
	}
	if opt.Logger == nil {
		opt.Logger = slog.New(slog.DiscardHandler)
	}

	return &cache[K, V]{
		m:         make(map[K]*entry[K, V], opt.CountLimit),
		idx:       opt.Policy.New(opt.CountLimit),
		limits:    Limits{Count: opt.CountLimit, Cost: opt.CostLimit, Age: opt.AgeLimit},
		highWater: opt.SequenceHighWater,
		name:      opt.Name,
		opt:       opt,
		clk:       opt.Clock,
		log:       opt.Logger,
	}, nil
}

func validateLimits(l Limits) error {
	switch {
	case l.Count < 0:
		return fmt.Errorf("%w: negative count limit %d", ErrInvalidArgument, l.Count)
	case l.Cost < 0:
		return fmt.Errorf("%w: negative cost limit %d", ErrInvalidArgument, l.Cost)
	case l.Age < 0:
		return fmt.Errorf("%w: negative age limit %s", ErrInvalidArgument, l.Age)
	}
	return nil
}

// ---- Cache[K,V] implementation ----

// Get returns the value for k and promotes it to most recently used.
func (c *cache[K, V]) Get(k K) (V, bool) {
	if c.closed.Load() {
		var zero V
		return zero, false
	}
	c.mu.Lock()
	defer c.mu.Unlock()

	e, ok := c.m[k]
	if !ok {
		c.misses.Inc()
		c.opt.Metrics.Miss()
		var zero V
		return zero, false
	}
	c.touchLocked(e)
	c.hits.Inc()
	c.opt.Metrics.Hit()
	return e.val, true
}

// Set inserts or replaces k→v using Options.Cost.
func (c *cache[K, V]) Set(k K, v V) error {
	cost, err := c.costOf(v)
	if err != nil {
		return err
	}
	return c.SetWithCost(k, v, cost)
}

// SetWithCost inserts or replaces k→v with an explicit cost.
func (c *cache[K, V]) SetWithCost(k K, v V, cost int64) error {
	if cost < 0 {
		return fmt.Errorf("%w: negative cost %d", ErrInvalidArgument, cost)
	}
	if c.closed.Load() {
		return ErrClosed
	}
	c.mu.Lock()
	defer c.mu.Unlock()

	if err := c.makeRoomLocked(k, cost); err != nil {
		return err
	}
	c.storeLocked(k, v, cost)
	c.enforceLimitsLocked()
	return nil
}

// Add inserts k→v only if absent.
func (c *cache[K, V]) Add(k K, v V) (bool, error) {
	cost, err := c.costOf(v)
	if err != nil {
		return false, err
	}
	if c.closed.Load() {
		return false, ErrClosed
	}
	c.mu.Lock()
	defer c.mu.Unlock()

	if _, exists := c.m[k]; exists {
		return false, nil
	}
	if err := c.makeRoomLocked(k, cost); err != nil {
		return false, err
	}
	c.storeLocked(k, v, cost)
	c.enforceLimitsLocked()
	return true, nil
}

// Remove deletes k if present and returns true on success.
// Explicit removal is not counted as an eviction.
func (c *cache[K, V]) Remove(k K) bool {
	if c.closed.Load() {
		return false
	}
	c.mu.Lock()
	defer c.mu.Unlock()

	e, ok := c.m[k]
	if !ok {
		return false
	}
	c.removeLocked(e)
	c.opt.Metrics.Size(len(c.m), c.cost)
	return true
}

// Clear drops everything and resets the sequence counter.
func (c *cache[K, V]) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.clearLocked()
}

// CleanUpAllObjects is Clear under the name memory-pressure hooks use.
func (c *cache[K, V]) CleanUpAllObjects() {
	c.mu.Lock()
	defer c.mu.Unlock()
	n := len(c.m)
	c.clearLocked()
	c.log.Debug("cache cleaned up", "cache", c.name, "entries", n)
}

func (c *cache[K, V]) Count() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.m)
}

func (c *cache[K, V]) TotalCost() int64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.cost
}

// SweepExpired removes entries whose age at now exceeds the age limit.
func (c *cache[K, V]) SweepExpired(now time.Time) int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.sweepLocked(now)
}

// CompactSequence renumbers resident sequences densely from zero.
func (c *cache[K, V]) CompactSequence() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.compactLocked()
}

func (c *cache[K, V]) Limits() Limits {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.limits
}

// SetCountLimit changes the entry bound and evicts down to it.
func (c *cache[K, V]) SetCountLimit(n int) error {
	if n < 0 {
		return fmt.Errorf("%w: negative count limit %d", ErrInvalidArgument, n)
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.limits.Count = n
	c.enforceLimitsLocked()
	c.log.Debug("count limit changed", "cache", c.name, "limit", n, "entries", len(c.m))
	return nil
}

// SetCostLimit changes the cost bound and evicts down to it.
func (c *cache[K, V]) SetCostLimit(n int64) error {
	if n < 0 {
		return fmt.Errorf("%w: negative cost limit %d", ErrInvalidArgument, n)
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.limits.Cost = n
	c.enforceLimitsLocked()
	c.log.Debug("cost limit changed", "cache", c.name, "limit", n, "total_cost", c.cost)
	return nil
}

// SetAgeLimit changes the age bound. It takes effect at the next SweepExpired.
func (c *cache[K, V]) SetAgeLimit(d time.Duration) error {
	if d < 0 {
		return fmt.Errorf("%w: negative age limit %s", ErrInvalidArgument, d)
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.limits.Age = d
	return nil
}

func (c *cache[K, V]) Name() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.name
}

func (c *cache[K, V]) SetName(name string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.name = name
}

func (c *cache[K, V]) Stats() Stats {
	return Stats{
		Hits:        c.hits.Load(),
		Misses:      c.misses.Load(),
		Evictions:   c.evicts.Load(),
		Compactions: c.compactions.Load(),
		SharedLoads: c.sharedLoads.Load(),
	}
}

// GetOrLoad returns the value for k; on miss it loads via Options.Loader,
// coalescing concurrent loads for the same key (singleflight).
// The loaded value is returned even if the limits evict it straight away.
func (c *cache[K, V]) GetOrLoad(ctx context.Context, k K) (V, error) {
	var zero V
	if c.closed.Load() {
		return zero, ErrClosed
	}
	// fast path
	if v, ok := c.Get(k); ok {
		return v, nil
	}
	if c.opt.Loader == nil {
		return zero, ErrNoLoader
	}

	v, err, shared := c.sf.Do(ctx, k, func() (V, error) {
		// double-check after flight join; a peek does not count as a miss
		if v, ok := c.peek(k); ok {
			return v, nil
		}
		v, err := c.opt.Loader(ctx, k)
		if err != nil {
			return v, err
		}
		if err := c.Set(k, v); err != nil {
			return zero, err
		}
		return v, nil
	})
	if shared {
		c.sharedLoads.Inc()
	}
	return v, err
}

// Entries lists residents least recently used first.
func (c *cache[K, V]) Entries() []EntryInfo[K] {
	c.mu.Lock()
	defer c.mu.Unlock()

	out := make([]EntryInfo[K], 0, len(c.m))
	for _, e := range c.m {
		out = append(out, e.info())
	}
	slices.SortFunc(out, func(a, b EntryInfo[K]) int { return cmp.Compare(a.Sequence, b.Sequence) })
	return out
}

func (c *cache[K, V]) NextSequence() int64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.next
}

// SetNextSequence overrides the counter; it exists so callers can exercise
// the overflow path without performing 2^63 touches.
func (c *cache[K, V]) SetNextSequence(n int64) error {
	if n < 0 {
		return fmt.Errorf("%w: negative sequence %d", ErrInvalidArgument, n)
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, e := range c.m {
		if e.seq >= n {
			return fmt.Errorf("%w: sequence %d is not above resident sequence %d", ErrInvalidArgument, n, e.seq)
		}
	}
	c.next = n
	return nil
}

// Close marks the cache as closed. Resident entries stay until Clear.
func (c *cache[K, V]) Close() error {
	c.closed.Store(true)
	return nil
}

// ---- helpers ----

// peek reads without touching recency or stats.
func (c *cache[K, V]) peek(k K) (V, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if e, ok := c.m[k]; ok {
		return e.val, true
	}
	var zero V
	return zero, false
}

// costOf computes the per-entry cost for Set/Add.
func (c *cache[K, V]) costOf(v V) (int64, error) {
	if c.opt.Cost == nil {
		return 1, nil
	}
	cost := c.opt.Cost(v)
	if cost < 0 {
		return 0, fmt.Errorf("%w: negative cost %d", ErrInvalidArgument, cost)
	}
	return cost, nil
}
