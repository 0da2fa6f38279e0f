package cache

import (
	"context"
	"math/rand"
	"runtime"
	"strconv"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"golang.org/x/sync/errgroup"
)

// A mixed workload of concurrent Set/Get/Remove plus maintenance passes on
// random keys. Should pass under `-race`, and the bounds must hold at the end.
func TestRace_Basic(t *testing.T) {
	c := newTestCache(t, Options[string, []byte]{
		CountLimit: 8_192,
		CostLimit:  64 << 10,
		AgeLimit:   50 * time.Millisecond,
		Cost:       func(v []byte) int64 { return int64(len(v)) },
	})

	workers := 4 * runtime.GOMAXPROCS(0)
	keyspace := 50_000
	deadline := time.Now().Add(time.Second)

	var wg sync.WaitGroup
	wg.Add(workers)
	for w := 0; w < workers; w++ {
		go func(id int) {
			defer wg.Done()
			r := rand.New(rand.NewSource(time.Now().UnixNano() + int64(id)*9973))
			for time.Now().Before(deadline) {
				k := "k:" + strconv.Itoa(r.Intn(keyspace))
				switch n := r.Intn(100); {
				case n < 5:
					c.Remove(k)
				case n < 6:
					c.SweepExpired(time.Now())
				case n == 6:
					c.CompactSequence()
				case n < 20:
					_ = c.Set(k, make([]byte, 1+r.Intn(32)))
				default:
					c.Get(k)
				}
			}
		}(w)
	}
	wg.Wait()

	if c.Count() > 8_192 || c.TotalCost() > 64<<10 {
		t.Fatalf("bounds violated: Count=%d TotalCost=%d", c.Count(), c.TotalCost())
	}
}

// One hundred goroutines call GetOrLoad on the same key concurrently.
// The Loader should run at most once (singleflight coalescing).
func TestRace_GetOrLoad(t *testing.T) {
	var calls int64

	c := newTestCache(t, Options[string, string]{
		CountLimit: 1024,
		Loader: func(_ context.Context, k string) (string, error) {
			atomic.AddInt64(&calls, 1)
			time.Sleep(2 * time.Millisecond) // simulate I/O
			return "v:" + k, nil
		},
	})

	const goroutines = 100
	key := "same-key"

	start := make(chan struct{})
	var g errgroup.Group
	for i := 0; i < goroutines; i++ {
		g.Go(func() error {
			<-start
			v, err := c.GetOrLoad(context.Background(), key)
			if err != nil {
				return err
			}
			if v != "v:"+key {
				t.Errorf("unexpected value: %q", v)
			}
			return nil
		})
	}
	close(start)
	if err := g.Wait(); err != nil {
		t.Fatalf("GetOrLoad error: %v", err)
	}

	if got := atomic.LoadInt64(&calls); got > 1 {
		t.Fatalf("loader should run at most once, got %d", got)
	}
	if v, err := c.GetOrLoad(context.Background(), key); err != nil || v != "v:"+key {
		t.Fatalf("second GetOrLoad failed: v=%q err=%v", v, err)
	}
}
