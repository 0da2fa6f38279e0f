package maintenance

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/sync/errgroup"

	"github.com/IvanBrykalov/boundcache/cache"
)

// fakeTarget records the calls a scheduler makes.
type fakeTarget struct {
	mu       sync.Mutex
	next     int64
	sweeps   []time.Time
	compacts int
	cleanups int
	swept    int
}

func (f *fakeTarget) SweepExpired(now time.Time) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.sweeps = append(f.sweeps, now)
	return f.swept
}

func (f *fakeTarget) CompactSequence() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.compacts++
	f.next = 0
}

func (f *fakeTarget) CleanUpAllObjects() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.cleanups++
}

func (f *fakeTarget) NextSequence() int64 {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.next
}

func (f *fakeTarget) snapshot() (sweeps, compacts, cleanups int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.sweeps), f.compacts, f.cleanups
}

func TestNew_InvalidConfig(t *testing.T) {
	t.Parallel()

	cases := []struct {
		name string
		tgt  Target
		cfg  Config
	}{
		{"nil target", nil, Config{Interval: time.Second}},
		{"zero interval", &fakeTarget{}, Config{}},
		{"negative interval", &fakeTarget{}, Config{Interval: -time.Second}},
		{"negative threshold", &fakeTarget{}, Config{Interval: time.Second, CompactAbove: -1}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := New(tc.tgt, tc.cfg)
			require.Error(t, err)
			assert.True(t, errors.Is(err, cache.ErrInvalidArgument))
		})
	}
}

func TestTick_SweepsWithClockTime(t *testing.T) {
	t.Parallel()

	clk := clock.NewMock()
	clk.Add(time.Hour)
	tgt := &fakeTarget{swept: 3}
	s, err := New(tgt, Config{Interval: time.Second, Clock: clk})
	require.NoError(t, err)

	res := s.Tick()
	assert.Equal(t, Result{Swept: 3}, res)
	require.Len(t, tgt.sweeps, 1)
	assert.Equal(t, clk.Now(), tgt.sweeps[0])
}

func TestTick_CompactsAboveThreshold(t *testing.T) {
	t.Parallel()

	tgt := &fakeTarget{next: 10}
	s, err := New(tgt, Config{Interval: time.Second, CompactAbove: 10, Clock: clock.NewMock()})
	require.NoError(t, err)

	assert.False(t, s.Tick().Compacted, "at the threshold")
	tgt.next = 11
	assert.True(t, s.Tick().Compacted)
	assert.Zero(t, tgt.next)
	assert.False(t, s.Tick().Compacted)
	assert.Equal(t, 1, tgt.compacts)
}

func TestTick_ZeroThresholdNeverCompacts(t *testing.T) {
	t.Parallel()

	tgt := &fakeTarget{next: 1 << 40}
	s, err := New(tgt, Config{Interval: time.Second, Clock: clock.NewMock()})
	require.NoError(t, err)

	assert.False(t, s.Tick().Compacted)
	assert.Zero(t, tgt.compacts)
}

func TestTick_PressureProbeCleansInsteadOfSweeping(t *testing.T) {
	t.Parallel()

	var low atomic.Bool
	tgt := &fakeTarget{}
	s, err := New(tgt, Config{
		Interval: time.Second,
		Clock:    clock.NewMock(),
		Pressure: low.Load,
	})
	require.NoError(t, err)

	assert.Equal(t, Result{}, s.Tick())
	low.Store(true)
	assert.Equal(t, Result{Cleaned: true}, s.Tick())

	sweeps, _, cleanups := tgt.snapshot()
	assert.Equal(t, 1, sweeps)
	assert.Equal(t, 1, cleanups)
}

func TestRun_TicksOnInterval(t *testing.T) {
	t.Parallel()

	clk := clock.NewMock()
	tgt := &fakeTarget{}
	s, err := New(tgt, Config{Interval: time.Minute, Clock: clk})
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	var g errgroup.Group
	g.Go(func() error { return s.Run(ctx) })

	// The ticker is created inside Run; keep advancing until it fires.
	require.Eventually(t, func() bool {
		clk.Add(time.Minute)
		n, _, _ := tgt.snapshot()
		return n >= 2
	}, 2*time.Second, 5*time.Millisecond)

	cancel()
	require.NoError(t, g.Wait())
}

func TestRun_SignalCleansUp(t *testing.T) {
	t.Parallel()

	tgt := &fakeTarget{}
	s, err := New(tgt, Config{Interval: time.Hour, Clock: clock.NewMock()})
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	var g errgroup.Group
	g.Go(func() error { return s.Run(ctx) })

	s.Signal()
	require.Eventually(t, func() bool {
		_, _, c := tgt.snapshot()
		return c == 1
	}, 2*time.Second, 5*time.Millisecond)

	cancel()
	require.NoError(t, g.Wait())
	sweeps, _, _ := tgt.snapshot()
	assert.Zero(t, sweeps, "no tick elapsed on the mock clock")
}

func TestSignal_NeverBlocks(t *testing.T) {
	t.Parallel()

	s, err := New(&fakeTarget{}, Config{Interval: time.Second})
	require.NoError(t, err)

	// Nobody is running; pending signals collapse into one.
	for i := 0; i < 10; i++ {
		s.Signal()
	}
	assert.Len(t, s.pressure, 1)
}

// End to end against a real cache sharing the mock clock.
func TestScheduler_DrivesCache(t *testing.T) {
	t.Parallel()

	clk := clock.NewMock()
	c, err := cache.New[string, int](cache.Options[string, int]{
		AgeLimit: 30 * time.Second,
		Clock:    clk,
	})
	require.NoError(t, err)

	s, err := New(c, Config{Interval: 10 * time.Second, CompactAbove: 4, Clock: clk})
	require.NoError(t, err)

	require.NoError(t, c.Set("old", 1))
	clk.Add(20 * time.Second)
	for _, k := range []string{"a", "b", "c", "d"} {
		require.NoError(t, c.Set(k, 1))
	}
	require.Equal(t, int64(5), c.NextSequence())

	clk.Add(11 * time.Second) // "old" is 31s old, the rest 11s
	res := s.Tick()
	assert.Equal(t, 1, res.Swept)
	assert.True(t, res.Compacted)
	assert.Equal(t, 4, c.Count())
	assert.Equal(t, int64(4), c.NextSequence())

	s.Signal()
	ctx, cancel := context.WithCancel(context.Background())
	var g errgroup.Group
	g.Go(func() error { return s.Run(ctx) })
	require.Eventually(t, func() bool { return c.Count() == 0 }, 2*time.Second, 5*time.Millisecond)
	cancel()
	require.NoError(t, g.Wait())
}
