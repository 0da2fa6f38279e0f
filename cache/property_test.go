package cache

import (
	"math"
	"math/rand"
	"slices"
	"testing"
	"time"

	"github.com/benbjohnson/clock"

	"github.com/IvanBrykalov/boundcache/policy"
	"github.com/IvanBrykalov/boundcache/policy/lru"
	"github.com/IvanBrykalov/boundcache/policy/scan"
)

type evictLog struct {
	key    int
	reason EvictReason
}

// checkInvariants verifies the bounds and the sequence bookkeeping.
func checkInvariants[K comparable, V any](t *testing.T, step int, c *cache[K, V]) {
	t.Helper()

	l := c.Limits()
	if l.Count > 0 && c.Count() > l.Count {
		t.Fatalf("step %d: Count %d > limit %d", step, c.Count(), l.Count)
	}
	if l.Cost > 0 && c.TotalCost() > l.Cost {
		t.Fatalf("step %d: TotalCost %d > limit %d", step, c.TotalCost(), l.Cost)
	}

	if c.TotalCost() < 0 {
		t.Fatalf("step %d: TotalCost wrapped to %d", step, c.TotalCost())
	}
	var sum int64
	seen := map[int64]bool{}
	next := c.NextSequence()
	for _, e := range c.Entries() {
		if seen[e.Sequence] {
			t.Fatalf("step %d: duplicate sequence %d", step, e.Sequence)
		}
		seen[e.Sequence] = true
		if e.Sequence >= next {
			t.Fatalf("step %d: sequence %d not below next %d", step, e.Sequence, next)
		}
		sum += e.Cost
	}
	if sum != c.TotalCost() {
		t.Fatalf("step %d: TotalCost %d, entries sum to %d", step, c.TotalCost(), sum)
	}
	if c.idx.Len() != c.Count() {
		t.Fatalf("step %d: index holds %d, map holds %d", step, c.idx.Len(), c.Count())
	}
}

// Random workloads: both recency indexes must agree on residents, sequences
// and eviction order, and every invariant holds after every call.
func TestCache_PolicyEquivalence(t *testing.T) {
	t.Parallel()

	for seed := int64(1); seed <= 8; seed++ {
		r := rand.New(rand.NewSource(seed))
		clk := clock.NewMock()

		countLimit := 1 + r.Intn(20)
		costLimit := int64(r.Intn(60))
		ageLimit := time.Duration(r.Intn(30)) * time.Second
		highWater := int64(50 + r.Intn(200))

		build := func(p policy.Policy[int, int], out *[]evictLog) *cache[int, int] {
			return newTestCache(t, Options[int, int]{
				CountLimit:        countLimit,
				CostLimit:         costLimit,
				AgeLimit:          ageLimit,
				SequenceHighWater: highWater,
				Policy:            p,
				Clock:             clk,
				OnEvict: func(k, _ int, reason EvictReason) {
					// Age sweeps have no defined order; only recency evictions are compared.
					if reason != EvictAge {
						*out = append(*out, evictLog{k, reason})
					}
				},
			})
		}
		var heapLog, scanLog []evictLog
		hc := build(lru.New[int, int](), &heapLog)
		sc := build(scan.New[int, int](), &scanLog)

		for step := 0; step < 3_000; step++ {
			k := r.Intn(40)
			op := r.Intn(100)
			arg := int64(r.Intn(12))
			if op%50 == 0 {
				arg = math.MaxInt64 - int64(r.Intn(2))
			}
			for _, c := range []*cache[int, int]{hc, sc} {
				switch {
				case op < 45:
					_ = c.SetWithCost(k, step, arg)
				case op < 80:
					c.Get(k)
				case op < 88:
					c.Remove(k)
				case op < 91:
					c.SweepExpired(clk.Now())
				case op < 94:
					c.CompactSequence()
				case op < 96:
					_ = c.SetCountLimit(int(arg))
				case op < 98:
					_ = c.SetCostLimit(arg * 4)
				case op < 99:
					_, _ = c.Add(k, step)
				default:
					c.Clear()
				}
			}
			if op%7 == 0 {
				clk.Add(time.Second)
			}

			checkInvariants(t, step, hc)
			checkInvariants(t, step, sc)
			if !slices.Equal(hc.Entries(), sc.Entries()) {
				t.Fatalf("seed %d step %d: residents differ\nheap=%v\nscan=%v", seed, step, hc.Entries(), sc.Entries())
			}
		}
		if !slices.Equal(heapLog, scanLog) {
			t.Fatalf("seed %d: eviction order differs", seed)
		}
	}
}

// Sets only: count and cost bounds hold after every call for random costs.
func TestCache_BoundsHoldUnderChurn(t *testing.T) {
	t.Parallel()

	r := rand.New(rand.NewSource(7))
	c := newTestCache(t, Options[int, int]{CountLimit: 32, CostLimit: 200})
	for step := 0; step < 10_000; step++ {
		mustSet(t, c, r.Intn(500), step, int64(r.Intn(40)))
		checkInvariants(t, step, c)
	}
}
