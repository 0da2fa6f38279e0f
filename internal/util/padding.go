// Package util contains internal helpers shared by the cache packages.
//revive:disable:var-naming  // allow 'util' as an internal helpers package name
package util

import (
	"sync/atomic"
	"unsafe"
)

// CacheLineSize is a reasonable default for most modern CPUs.
const CacheLineSize = 64

// CacheLinePad separates the lock-protected cache state from counters that
// are bumped on every call, so readers of Stats do not bounce the line that
// holds the mutex.
type CacheLinePad struct{ _ [CacheLineSize]byte }

// Counter is an atomic uint64 padded to exactly one cache line.
type Counter struct {
	atomic.Uint64
	_ [CacheLineSize - 8]byte
}

// Inc adds one and returns the new value.
func (c *Counter) Inc() uint64 { return c.Add(1) }

// Compile-time size check: must be exactly one cache line.
var _ [CacheLineSize - int(unsafe.Sizeof(Counter{}))]byte
