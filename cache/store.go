package cache

import (
	"cmp"
	"fmt"
	"math"
	"slices"
	"time"
)

// -------------------- internals (mu held) --------------------

// storeLocked inserts or replaces k→v, stamps createdAt and makes the entry
// most recently used. Limits are not enforced here.
func (c *cache[K, V]) storeLocked(k K, v V, cost int64) {
	now := c.clk.Now()
	if e, ok := c.m[k]; ok {
		// In-place update: adjust cost delta and promote.
		c.cost += cost - e.cost
		e.val = v
		e.cost = cost
		e.createdAt = now
		c.touchLocked(e)
		return
	}

	e := &entry[K, V]{key: k, val: v, cost: cost, createdAt: now, seq: c.next}
	c.m[k] = e
	c.cost += cost
	c.idx.Push(e)
	c.advanceLocked()
}

// makeRoomLocked keeps the running cost total inside int64 for a store of
// k at cost. Without a cost limit such a store is refused and nothing
// changes. With one, the true total is over the limit anyway, so least
// recently used entries are evicted up front, in the order and with the
// reasons enforceLimitsLocked would have used after the store.
func (c *cache[K, V]) makeRoomLocked(k K, cost int64) error {
	e, exists := c.m[k]
	var old int64
	if exists {
		old = e.cost
	}
	if c.cost-old <= math.MaxInt64-cost {
		return nil
	}
	if c.limits.Cost == 0 {
		return fmt.Errorf("%w: cost %d overflows total cost %d", ErrInvalidArgument, cost, c.cost-old)
	}
	if exists {
		// storeLocked re-inserts k as most recently used.
		c.removeLocked(e)
	}
	for c.cost > math.MaxInt64-cost {
		reason := EvictCost
		if c.limits.Count > 0 && len(c.m)+1 > c.limits.Count {
			reason = EvictCount
		}
		c.evictLocked(c.idx.Oldest().(*entry[K, V]), reason)
	}
	return nil
}

// touchLocked gives e the next sequence.
func (c *cache[K, V]) touchLocked(e *entry[K, V]) {
	e.seq = c.next
	c.idx.Touch(e)
	c.advanceLocked()
}

// advanceLocked moves the counter past the sequence just handed out. Once
// that sequence reached the high-water mark the cache compacts instead, so
// the counter never wraps.
func (c *cache[K, V]) advanceLocked() {
	if c.next >= c.highWater {
		c.compactLocked()
		return
	}
	c.next++
}

// removeLocked unlinks e from the map, the index and the cost total.
func (c *cache[K, V]) removeLocked(e *entry[K, V]) {
	c.idx.Remove(e)
	delete(c.m, e.key)
	c.cost -= e.cost
}

// evictLocked removes e, updates counters and calls OnEvict.
func (c *cache[K, V]) evictLocked(e *entry[K, V], reason EvictReason) {
	c.removeLocked(e)
	c.evicts.Inc()
	c.opt.Metrics.Evict(reason)
	if cb := c.opt.OnEvict; cb != nil {
		cb(e.key, e.val, reason)
	}
}

// overLocked reports whether a count or cost bound is exceeded, and which.
func (c *cache[K, V]) overLocked() (EvictReason, bool) {
	if c.limits.Count > 0 && len(c.m) > c.limits.Count {
		return EvictCount, true
	}
	if c.limits.Cost > 0 && c.cost > c.limits.Cost {
		return EvictCost, true
	}
	return 0, false
}

// enforceLimitsLocked evicts least recently used entries until both count
// and cost bounds hold. Each round re-checks both bounds: dropping one
// expensive entry may still leave the count too high and vice versa. An
// entry that alone costs more than CostLimit evicts itself.
func (c *cache[K, V]) enforceLimitsLocked() {
	for {
		reason, over := c.overLocked()
		if !over {
			break
		}
		oldest := c.idx.Oldest()
		if oldest == nil {
			break
		}
		c.evictLocked(oldest.(*entry[K, V]), reason)
	}
	c.opt.Metrics.Size(len(c.m), c.cost)
}

// sweepLocked removes every entry older than the age limit at now.
func (c *cache[K, V]) sweepLocked(now time.Time) int {
	age := c.limits.Age
	if age <= 0 {
		return 0
	}
	removed := 0
	for _, e := range c.m {
		if now.Sub(e.createdAt) > age {
			c.evictLocked(e, EvictAge)
			removed++
		}
	}
	if removed > 0 {
		c.opt.Metrics.Size(len(c.m), c.cost)
		c.log.Debug("expired entries swept", "cache", c.name, "removed", removed, "entries", len(c.m))
	}
	return removed
}

// compactLocked renumbers residents 0..n-1 in ascending sequence order.
// Relative order is preserved, so the index needs no rebuild.
func (c *cache[K, V]) compactLocked() {
	es := make([]*entry[K, V], 0, len(c.m))
	for _, e := range c.m {
		es = append(es, e)
	}
	slices.SortFunc(es, func(a, b *entry[K, V]) int { return cmp.Compare(a.seq, b.seq) })
	for i, e := range es {
		e.seq = int64(i)
	}

	prev := c.next
	c.next = int64(len(es))
	c.compactions.Inc()
	c.opt.Metrics.Compact(len(es))
	c.log.Debug("sequence compacted", "cache", c.name, "entries", len(es), "previous_next", prev)
}

// clearLocked drops every entry and resets the counter.
func (c *cache[K, V]) clearLocked() {
	clear(c.m)
	c.idx.Reset()
	c.cost = 0
	c.next = 0
	c.opt.Metrics.Size(0, 0)
}
