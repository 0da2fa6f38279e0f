package cache

import (
	"context"
	"time"
)

// Cache is a bounded, in-memory key/value cache with exact LRU eviction
// under count and cost limits, and caller-driven age expiry.
// All methods are safe for concurrent use by multiple goroutines; each call
// is atomic with respect to the cache state.
type Cache[K comparable, V any] interface {
	// Get returns the value for k and whether it was present.
	// A hit marks the entry most recently used; a miss changes nothing.
	Get(k K) (V, bool)

	// Set inserts or replaces k→v with the cost from Options.Cost (1 if
	// unset), marks it most recently used, restamps its creation time and
	// evicts least recently used entries until the limits hold.
	Set(k K, v V) error

	// SetWithCost is Set with an explicit cost. A negative cost returns an
	// error wrapping ErrInvalidArgument and leaves the cache unchanged.
	SetWithCost(k K, v V, cost int64) error

	// Add inserts k→v only if k is absent. Returns false if the key already
	// exists; the existing entry is not touched.
	Add(k K, v V) (bool, error)

	// Remove deletes k if present and reports whether it did.
	Remove(k K) bool

	// Clear removes every entry and resets the sequence counter to zero.
	Clear()

	// CleanUpAllObjects is Clear, intended for memory-pressure callbacks.
	CleanUpAllObjects()

	// Count returns the number of resident entries.
	Count() int

	// TotalCost returns the sum of resident entry costs.
	TotalCost() int64

	// SweepExpired removes entries older than the age limit as of now and
	// returns how many were removed. No-op when the age limit is zero.
	// now must be read from Options.Clock (or the same time base).
	SweepExpired(now time.Time) int

	// CompactSequence renumbers resident entries 0..n-1 in recency order
	// and sets the next sequence to n. Resident keys do not change.
	CompactSequence()

	// Limits returns the current eviction bounds.
	Limits() Limits

	// SetCountLimit, SetCostLimit and SetAgeLimit change one bound.
	// Negative values return ErrInvalidArgument. Count and cost changes
	// evict immediately if the new bound is already exceeded.
	SetCountLimit(n int) error
	SetCostLimit(n int64) error
	SetAgeLimit(d time.Duration) error

	// Name and SetName get and set the diagnostic label.
	Name() string
	SetName(name string)

	// Stats returns cumulative hit/miss/eviction/compaction counters.
	Stats() Stats

	// GetOrLoad returns the value for k, loading it via Options.Loader on
	// miss. Concurrent loads for the same key are coalesced.
	// If no Loader was configured, returns ErrNoLoader.
	GetOrLoad(ctx context.Context, k K) (V, error)

	// Entries lists resident entries in ascending sequence order
	// (least recently used first).
	Entries() []EntryInfo[K]

	// NextSequence returns the sequence the next touch will receive.
	NextSequence() int64

	// SetNextSequence overrides the sequence counter. n must be
	// non-negative and greater than every resident sequence.
	SetNextSequence(n int64) error

	// Close marks the cache closed. Later mutating calls return ErrClosed
	// and reads miss. Close is idempotent and returns nil.
	Close() error
}
