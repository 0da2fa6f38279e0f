// Package scan implements a linear recency index: touches are free and
// Oldest scans every resident node for the smallest sequence.
//
// It is the plain arg-min rendition of LRU. Use it for very small caches or
// as a reference when checking another Index.
package scan

import "github.com/IvanBrykalov/boundcache/policy"

type scanPolicy[K comparable, V any] struct{}

// New returns a Policy factory that constructs scanning indexes.
func New[K comparable, V any]() policy.Policy[K, V] { return scanPolicy[K, V]{} }

func (scanPolicy[K, V]) New(sizeHint int) policy.Index[K, V] {
	if sizeHint < 0 {
		sizeHint = 0
	}
	return &scan[K, V]{
		nodes: make([]policy.Node[K, V], 0, sizeHint),
		pos:   make(map[policy.Node[K, V]]int, sizeHint),
	}
}

type scan[K comparable, V any] struct {
	nodes []policy.Node[K, V] // unordered
	pos   map[policy.Node[K, V]]int
}

func (s *scan[K, V]) Push(n policy.Node[K, V]) {
	if _, ok := s.pos[n]; ok {
		return
	}
	s.pos[n] = len(s.nodes)
	s.nodes = append(s.nodes, n)
}

// Touch is a no-op: order is derived from sequences at Oldest time.
func (s *scan[K, V]) Touch(policy.Node[K, V]) {}

// Remove swaps n with the last slot and truncates.
func (s *scan[K, V]) Remove(n policy.Node[K, V]) {
	i, ok := s.pos[n]
	if !ok {
		return
	}
	last := len(s.nodes) - 1
	if i != last {
		s.nodes[i] = s.nodes[last]
		s.pos[s.nodes[i]] = i
	}
	s.nodes[last] = nil
	s.nodes = s.nodes[:last]
	delete(s.pos, n)
}

// Oldest is O(n).
func (s *scan[K, V]) Oldest() policy.Node[K, V] {
	var oldest policy.Node[K, V]
	for _, n := range s.nodes {
		if oldest == nil || n.Sequence() < oldest.Sequence() {
			oldest = n
		}
	}
	return oldest
}

func (s *scan[K, V]) Len() int { return len(s.nodes) }

func (s *scan[K, V]) Reset() {
	clear(s.nodes)
	s.nodes = s.nodes[:0]
	clear(s.pos)
}
