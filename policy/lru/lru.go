// Package lru implements the default recency index: a binary min-heap keyed
// by entry sequence.
package lru

import (
	"container/heap"

	"github.com/IvanBrykalov/boundcache/policy"
)

type lruPolicy[K comparable, V any] struct{}

// New returns a Policy factory that constructs heap-backed LRU indexes.
// Push, Touch and Remove are O(log n); Oldest is O(1).
func New[K comparable, V any]() policy.Policy[K, V] { return lruPolicy[K, V]{} }

// New implements policy.Policy.
func (lruPolicy[K, V]) New(sizeHint int) policy.Index[K, V] {
	if sizeHint < 0 {
		sizeHint = 0
	}
	return &lru[K, V]{h: nodeHeap[K, V]{
		nodes: make([]policy.Node[K, V], 0, sizeHint),
		pos:   make(map[policy.Node[K, V]]int, sizeHint),
	}}
}

// lru orders nodes by sequence with the least recently used node at the root.
type lru[K comparable, V any] struct {
	h nodeHeap[K, V]
}

// Push places a freshly admitted node.
func (l *lru[K, V]) Push(n policy.Node[K, V]) { heap.Push(&l.h, n) }

// Touch restores heap order after n's sequence grew. Sequences only increase
// on touch, so the node can only sink.
func (l *lru[K, V]) Touch(n policy.Node[K, V]) {
	if i, ok := l.h.pos[n]; ok {
		heap.Fix(&l.h, i)
	}
}

// Remove drops n if it is indexed.
func (l *lru[K, V]) Remove(n policy.Node[K, V]) {
	if i, ok := l.h.pos[n]; ok {
		heap.Remove(&l.h, i)
	}
}

// Oldest returns the root of the heap.
func (l *lru[K, V]) Oldest() policy.Node[K, V] {
	if len(l.h.nodes) == 0 {
		return nil
	}
	return l.h.nodes[0]
}

func (l *lru[K, V]) Len() int { return len(l.h.nodes) }

func (l *lru[K, V]) Reset() {
	clear(l.h.nodes)
	l.h.nodes = l.h.nodes[:0]
	clear(l.h.pos)
}

// nodeHeap implements heap.Interface. pos tracks each node's slot so that
// Touch/Remove do not need to search.
type nodeHeap[K comparable, V any] struct {
	nodes []policy.Node[K, V]
	pos   map[policy.Node[K, V]]int
}

func (h *nodeHeap[K, V]) Len() int { return len(h.nodes) }

func (h *nodeHeap[K, V]) Less(i, j int) bool {
	return h.nodes[i].Sequence() < h.nodes[j].Sequence()
}

func (h *nodeHeap[K, V]) Swap(i, j int) {
	h.nodes[i], h.nodes[j] = h.nodes[j], h.nodes[i]
	h.pos[h.nodes[i]] = i
	h.pos[h.nodes[j]] = j
}

func (h *nodeHeap[K, V]) Push(x any) {
	n := x.(policy.Node[K, V])
	h.pos[n] = len(h.nodes)
	h.nodes = append(h.nodes, n)
}

func (h *nodeHeap[K, V]) Pop() any {
	last := len(h.nodes) - 1
	n := h.nodes[last]
	h.nodes[last] = nil
	h.nodes = h.nodes[:last]
	delete(h.pos, n)
	return n
}
