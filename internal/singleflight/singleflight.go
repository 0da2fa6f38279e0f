// Package singleflight coalesces concurrent cache fills for the same key.
package singleflight

import (
	"context"
	"sync"
)

// Group runs at most one fill per key at a time. Callers that arrive while a
// fill is in flight wait for its result instead of starting their own.
//
// The first caller for a key becomes the leader and runs fn. Followers wait
// on the call's done channel; the result is published before the channel is
// closed. A follower whose ctx ends stops waiting, but the
// leader keeps running fn to completion.
type Group[K comparable, V any] struct {
	mu sync.Mutex
	m  map[K]*call[V]
}

type call[V any] struct {
	done    chan struct{}
	val     V
	err     error
	waiters int
}

// Do runs fn once for key and returns its result. shared reports whether the
// result was delivered to more than one caller.
func (g *Group[K, V]) Do(ctx context.Context, key K, fn func() (V, error)) (v V, err error, shared bool) {
	g.mu.Lock()
	if g.m == nil {
		g.m = make(map[K]*call[V])
	}
	if c, ok := g.m[key]; ok {
		c.waiters++
		g.mu.Unlock()

		select {
		case <-c.done:
			return c.val, c.err, true
		case <-ctx.Done():
			var zero V
			return zero, ctx.Err(), false
		}
	}

	c := &call[V]{done: make(chan struct{})}
	g.m[key] = c
	g.mu.Unlock()

	c.val, c.err = fn()

	g.mu.Lock()
	delete(g.m, key)
	shared = c.waiters > 0
	g.mu.Unlock()
	close(c.done)

	return c.val, c.err, shared
}
