package cache

import "time"

// entry is one cached value plus the bookkeeping the enforcer, sweeper and
// compactor need. It is owned by the cache and only touched under its lock.
type entry[K comparable, V any] struct {
	key K
	val V

	// Caller-assigned weight counted against CostLimit.
	cost int64

	// Stamped on every Set; read only by SweepExpired.
	createdAt time.Time

	// Recency rank; larger = touched more recently. Unique among residents.
	seq int64
}

// Key implements policy.Node.
func (e *entry[K, V]) Key() K { return e.key }

// Value implements policy.Node. Only dereference under the cache lock.
func (e *entry[K, V]) Value() *V { return &e.val }

// Sequence implements policy.Node.
func (e *entry[K, V]) Sequence() int64 { return e.seq }

func (e *entry[K, V]) info() EntryInfo[K] {
	return EntryInfo[K]{Key: e.key, Sequence: e.seq, Cost: e.cost, CreatedAt: e.createdAt}
}
