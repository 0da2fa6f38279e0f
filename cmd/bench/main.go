// Command bench runs a synthetic Zipf workload against the cache while the
// maintenance scheduler sweeps and compacts it, and exposes optional
// pprof/Prometheus endpoints.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"math/rand"
	"net/http"
	_ "net/http/pprof" // registers /debug/pprof/* on DefaultServeMux
	"os"
	"os/signal"
	"runtime"
	"strconv"
	"sync/atomic"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"golang.org/x/sync/errgroup"

	"github.com/IvanBrykalov/boundcache/cache"
	"github.com/IvanBrykalov/boundcache/internal/config"
	"github.com/IvanBrykalov/boundcache/maintenance"
	pmet "github.com/IvanBrykalov/boundcache/metrics/prom"
)

type workload struct {
	workers  int
	duration time.Duration
	readPct  int
	keys     int
	zipfS    float64
	zipfV    float64
	seed     int64
	preload  int
}

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "bench: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	// ---- Flags ----
	var (
		cfgPath = flag.String("config", "", "YAML config file; flags below override it")

		count     = flag.Int("count", 0, "count limit (0 = unlimited)")
		costLimit = flag.Int64("cost", 0, "cost limit in value bytes (0 = unlimited)")
		age       = flag.Duration("age", 0, "age limit (0 = unlimited)")
		policy    = flag.String("policy", "", "recency index: lru | scan")
		interval  = flag.Duration("sweep", 0, "maintenance interval (0 = from config)")

		pprofAddr   = flag.String("pprof", "", "serve pprof at addr (e.g. :6060); empty = disabled")
		metricsAddr = flag.String("http", "", "serve Prometheus metrics at addr")
		logLevel    = flag.String("log", "", "log level: debug | info | warn | error")

		w workload
	)
	flag.IntVar(&w.workers, "workers", 2*runtime.GOMAXPROCS(0), "number of worker goroutines")
	flag.DurationVar(&w.duration, "duration", 10*time.Second, "benchmark duration")
	flag.IntVar(&w.readPct, "reads", 80, "read percentage [0..100]")
	flag.IntVar(&w.keys, "keys", 1_000_000, "keyspace size")
	flag.Float64Var(&w.zipfS, "zipf_s", 1.1, "Zipf s > 1 (skew)")
	flag.Float64Var(&w.zipfV, "zipf_v", 1.0, "Zipf v")
	flag.Int64Var(&w.seed, "seed", time.Now().UnixNano(), "random seed")
	flag.IntVar(&w.preload, "preload", 0, "preload entries (0 = count/2)")
	flag.Parse()

	cfg := config.Default()
	if *cfgPath != "" {
		var err error
		if cfg, err = config.Load(*cfgPath); err != nil {
			return err
		}
	}
	flag.Visit(func(f *flag.Flag) {
		switch f.Name {
		case "count":
			cfg.Limits.Count = *count
		case "cost":
			cfg.Limits.Cost = *costLimit
		case "age":
			cfg.Limits.Age = *age
		case "policy":
			cfg.Policy = *policy
		case "sweep":
			cfg.Maintenance.Interval = *interval
		case "pprof":
			cfg.HTTP.PprofAddr = *pprofAddr
		case "http":
			cfg.HTTP.MetricsAddr = *metricsAddr
		case "log":
			cfg.Log.Level = *logLevel
		}
	})
	if err := cfg.Validate(); err != nil {
		return err
	}
	if w.workers <= 0 {
		w.workers = 1
	}
	if w.keys < 2 {
		return fmt.Errorf("%w: keys must be >= 2", cache.ErrInvalidArgument)
	}

	logger := cfg.NewLogger(os.Stderr)
	slog.SetDefault(logger)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// ---- pprof server (on DefaultServeMux) ----
	if cfg.HTTP.PprofAddr != "" {
		go func() {
			logger.Info("pprof: serving", "addr", cfg.HTTP.PprofAddr)
			logger.Error("pprof server stopped", "error", http.ListenAndServe(cfg.HTTP.PprofAddr, nil))
		}()
	}

	// ---- Prometheus metrics ----
	metrics := pmet.New(nil, "boundcache", "bench", map[string]string{"cache": cfg.Name})
	var srv *http.Server
	if cfg.HTTP.MetricsAddr != "" {
		mux := http.NewServeMux()
		mux.Handle("/metrics", promhttp.Handler())
		srv = &http.Server{Addr: cfg.HTTP.MetricsAddr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}
		go func() {
			logger.Info("metrics: serving", "addr", cfg.HTTP.MetricsAddr)
			if err := srv.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
				logger.Error("metrics server stopped", "error", err)
			}
		}()
	}

	// ---- Build cache ----
	opt := config.CacheOptions[string, string](cfg, logger)
	opt.Cost = func(v string) int64 { return int64(len(v)) }
	opt.Metrics = metrics
	c, err := cache.New(opt)
	if err != nil {
		return err
	}
	defer func() { _ = c.Close() }()

	// ---- Preload to get a realistic hit-rate ----
	pl := w.preload
	if pl == 0 {
		pl = cfg.Limits.Count / 2
	}
	for i := 0; i < pl; i++ {
		if err := c.Set("k:"+strconv.Itoa(i), "v"+strconv.Itoa(i)); err != nil {
			return err
		}
	}

	runCtx, cancel := context.WithTimeout(ctx, w.duration)
	defer cancel()
	g, gctx := errgroup.WithContext(runCtx)

	if mc, ok := cfg.MaintenanceConfig(logger); ok {
		sched, err := maintenance.New(c, mc)
		if err != nil {
			return err
		}
		g.Go(func() error { return sched.Run(gctx) })
	}

	start := time.Now()
	res := generate(gctx, g, c, w)
	if err := g.Wait(); err != nil {
		return err
	}
	elapsed := time.Since(start)

	if srv != nil {
		shutdownCtx, cancelShutdown := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancelShutdown()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			logger.Error("failed to shutdown metrics server", "error", err)
		}
	}

	report(cfg, w, c, res, elapsed)
	return nil
}

type counts struct {
	reads, writes, hits, misses, total atomic.Uint64
}

// generate starts w.workers goroutines on g that issue Zipf-distributed
// reads and writes until ctx is done.
func generate(ctx context.Context, g *errgroup.Group, c cache.Cache[string, string], w workload) *counts {
	var n counts
	keysMax := uint64(w.keys - 1)
	for id := 0; id < w.workers; id++ {
		g.Go(func() error {
			// Each worker gets its own RNG + Zipf (rand.Rand is NOT goroutine-safe).
			r := rand.New(rand.NewSource(w.seed + int64(id)*9973))
			zipf := rand.NewZipf(r, w.zipfS, w.zipfV, keysMax)
			key := func() string { return "k:" + strconv.FormatUint(zipf.Uint64(), 10) }

			for {
				select {
				case <-ctx.Done():
					return nil
				default:
				}

				n.total.Add(1)
				if int(r.Int31n(100)) < w.readPct {
					n.reads.Add(1)
					if _, ok := c.Get(key()); ok {
						n.hits.Add(1)
					} else {
						n.misses.Add(1)
					}
					continue
				}
				n.writes.Add(1)
				if err := c.Set(key(), "v"+strconv.Itoa(r.Int())); err != nil {
					return err
				}
			}
		})
	}
	return &n
}

func report(cfg config.Config, w workload, c cache.Cache[string, string], n *counts, elapsed time.Duration) {
	ops := n.total.Load()
	reads := n.reads.Load()
	hitRate := 0.0
	if reads > 0 {
		hitRate = float64(n.hits.Load()) / float64(reads) * 100
	}
	st := c.Stats()

	fmt.Printf("policy=%s count=%d cost=%d age=%v workers=%d keys=%d dur=%v seed=%d\n",
		cfg.Policy, cfg.Limits.Count, cfg.Limits.Cost, cfg.Limits.Age, w.workers, w.keys, elapsed, w.seed)
	fmt.Printf("ops=%d (%.0f ops/s)  reads=%d  writes=%d\n",
		ops, float64(ops)/elapsed.Seconds(), reads, n.writes.Load())
	fmt.Printf("hits=%d  misses=%d  hit-rate=%.2f%%\n", n.hits.Load(), n.misses.Load(), hitRate)
	fmt.Printf("evictions=%d  compactions=%d\n", st.Evictions, st.Compactions)
	fmt.Printf("Count()=%d  TotalCost()=%d  NextSequence()=%d\n", c.Count(), c.TotalCost(), c.NextSequence())
}
