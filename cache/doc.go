// Package cache provides a generic, bounded, in-memory cache with exact
// least-recently-used eviction under three limits: entry count, total cost
// and entry age.
//
// Design
//
//   - Concurrency: one mutex guards the whole cache and is held for the full
//     duration of every call, including any eviction, sweep or compaction it
//     triggers. Eviction order is global and exact, so there is no sharding.
//
//   - Recency: every touch (Get hit, Set, Add, GetOrLoad fill) stamps the
//     entry with the next value of a monotonically increasing sequence
//     counter. The entry with the smallest sequence is the least recently
//     used. A recency index (package policy; a min-heap by default) finds it
//     without scanning.
//
//   - Count/Cost: after every insertion the cache evicts least recently used
//     entries until Count() <= CountLimit and TotalCost() <= CostLimit. An
//     entry whose own cost exceeds CostLimit is evicted as well.
//
//   - Age: SweepExpired(now) removes entries created more than AgeLimit
//     before now. The cache never sweeps on its own; call it from your own
//     scheduler (see package maintenance).
//
//   - Compaction: CompactSequence renumbers resident sequences to 0..n-1
//     without changing their order. The cache also compacts by itself when
//     the counter reaches Options.SequenceHighWater, so it cannot overflow.
//
//   - Zero limits: a limit of 0 means "unlimited" for all three bounds.
//
//   - Metrics: Options.Metrics receives Hit/Miss/Evict/Size/Compact signals.
//     NoopMetrics is the default; see package metrics/prom for Prometheus.
//
// Basic usage
//
//	c, err := cache.New[string, []byte](cache.Options[string, []byte]{
//	    CountLimit: 10_000,
//	    CostLimit:  64 << 20,
//	    Cost:       func(v []byte) int64 { return int64(len(v)) },
//	})
//	if err != nil {
//	    return err
//	}
//	_ = c.Set("a", []byte("1"))
//	if v, ok := c.Get("a"); ok {
//	    _ = v
//	}
//	c.Remove("a")
//
// Age expiry
//
//	c, _ := cache.New[string, string](cache.Options[string, string]{AgeLimit: time.Minute})
//	_ = c.Set("tmp", "v")
//	c.SweepExpired(time.Now().Add(2 * time.Minute)) // removes "tmp"
//
// Memory pressure
//
//	onLowMemory(c.CleanUpAllObjects)
package cache
