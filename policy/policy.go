// Package policy defines the recency index a cache uses to find its least
// recently used entry.
//
// The cache stamps every resident entry with a sequence number taken from a
// monotonically increasing counter; a larger sequence means a more recent
// touch. An Index orders resident nodes by that number so the limit enforcer
// can repeatedly pick the smallest one. Sequences are unique among resident
// nodes, so the order is total and eviction is exact.
package policy

// Node is the minimal contract a cache entry must satisfy for an index.
// While the node is resident its Sequence may only grow (followed by a Touch
// notification) or be renumbered in a way that keeps the relative order of
// all resident nodes.
type Node[K comparable, V any] interface {
	Key() K
	Value() *V
	Sequence() int64
}

// Index keeps resident nodes ordered by Sequence.
//
// Concurrency: all methods are called under the cache lock.
// The index does not own nodes; the cache owns the key->node map and only
// tells the index about admissions, touches and removals.
type Index[K comparable, V any] interface {
	// Push admits a newly inserted node.
	Push(Node[K, V])
	// Touch is called after the node's sequence was raised.
	Touch(Node[K, V])
	// Remove forgets the node.
	Remove(Node[K, V])
	// Oldest returns the node with the smallest sequence, or nil if empty.
	Oldest() Node[K, V]
	// Len returns the number of indexed nodes.
	Len() int
	// Reset drops every node.
	Reset()
}

// Policy is a factory that creates an Index for one cache instance.
// sizeHint is the expected number of resident entries (0 = unknown).
type Policy[K comparable, V any] interface {
	New(sizeHint int) Index[K, V]
}
