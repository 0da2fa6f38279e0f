// Package maintenance drives a cache's maintenance passes from the outside.
//
// The cache never runs goroutines or timers of its own. A Scheduler owns
// that concern for it: on every tick it sweeps expired entries, compacts the
// recency sequence once it passes a threshold, and empties the cache when a
// memory-pressure signal has been raised.
package maintenance

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/benbjohnson/clock"

	"github.com/IvanBrykalov/boundcache/cache"
)

// Target is the part of a cache the scheduler drives. cache.Cache satisfies it.
type Target interface {
	SweepExpired(now time.Time) int
	CompactSequence()
	CleanUpAllObjects()
	NextSequence() int64
}

var _ Target = cache.Cache[string, int](nil)

// Config controls a Scheduler.
type Config struct {
	// Interval between passes. Must be > 0.
	Interval time.Duration
	// CompactAbove compacts once NextSequence exceeds it (0 = never; the
	// cache still guards against overflow on its own).
	CompactAbove int64
	// Pressure is polled on every pass; true empties the cache. Optional.
	Pressure func() bool

	Clock  clock.Clock  // nil => clock.New()
	Logger *slog.Logger // nil => discard
}

// Result describes one pass.
type Result struct {
	Swept     int
	Compacted bool
	Cleaned   bool
}

// Scheduler runs maintenance passes against one Target.
type Scheduler struct {
	target   Target
	cfg      Config
	pressure chan struct{}
}

// New validates cfg and returns a scheduler. Nothing runs until Run.
func New(t Target, cfg Config) (*Scheduler, error) {
	if t == nil {
		return nil, fmt.Errorf("%w: nil maintenance target", cache.ErrInvalidArgument)
	}
	if cfg.Interval <= 0 {
		return nil, fmt.Errorf("%w: maintenance interval must be > 0, got %s", cache.ErrInvalidArgument, cfg.Interval)
	}
	if cfg.CompactAbove < 0 {
		return nil, fmt.Errorf("%w: negative compaction threshold %d", cache.ErrInvalidArgument, cfg.CompactAbove)
	}
	if cfg.Clock == nil {
		cfg.Clock = clock.New()
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.New(slog.DiscardHandler)
	}
	return &Scheduler{target: t, cfg: cfg, pressure: make(chan struct{}, 1)}, nil
}

// Signal reports memory pressure. It never blocks; signals raised while one
// is already pending collapse into one cleanup.
func (s *Scheduler) Signal() {
	select {
	case s.pressure <- struct{}{}:
	default:
	}
}

// Tick runs one pass immediately.
func (s *Scheduler) Tick() Result {
	if s.cfg.Pressure != nil && s.cfg.Pressure() {
		s.cleanup("probe")
		return Result{Cleaned: true}
	}

	var res Result
	res.Swept = s.target.SweepExpired(s.cfg.Clock.Now())
	if s.cfg.CompactAbove > 0 && s.target.NextSequence() > s.cfg.CompactAbove {
		s.target.CompactSequence()
		res.Compacted = true
	}
	if res.Swept > 0 || res.Compacted {
		s.cfg.Logger.Debug("maintenance pass", "swept", res.Swept, "compacted", res.Compacted)
	}
	return res
}

// Run ticks every Interval and reacts to Signal until ctx is done.
// It returns nil on cancellation.
func (s *Scheduler) Run(ctx context.Context) error {
	ticker := s.cfg.Clock.Ticker(s.cfg.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-s.pressure:
			s.cleanup("signal")
		case <-ticker.C:
			s.Tick()
		}
	}
}

func (s *Scheduler) cleanup(source string) {
	s.target.CleanUpAllObjects()
	s.cfg.Logger.Info("memory pressure: cache emptied", "source", source)
}
