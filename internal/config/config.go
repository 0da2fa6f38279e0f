// Package config loads the YAML configuration used by the bench command and
// turns it into cache, maintenance and logger settings.
package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/IvanBrykalov/boundcache/cache"
	"github.com/IvanBrykalov/boundcache/maintenance"
	"github.com/IvanBrykalov/boundcache/policy"
	"github.com/IvanBrykalov/boundcache/policy/lru"
	"github.com/IvanBrykalov/boundcache/policy/scan"
)

// Limits mirrors cache.Limits; 0 means unlimited.
type Limits struct {
	Count int           `yaml:"count"`
	Cost  int64         `yaml:"cost"`
	Age   time.Duration `yaml:"age"`
}

// Maintenance configures the background scheduler. Interval 0 disables it.
type Maintenance struct {
	Interval     time.Duration `yaml:"interval"`
	CompactAbove int64         `yaml:"compact_above"`
}

type Log struct {
	Level  string `yaml:"level"`  // debug | info | warn | error
	Format string `yaml:"format"` // text | json
}

type HTTP struct {
	MetricsAddr string `yaml:"metrics_addr"`
	PprofAddr   string `yaml:"pprof_addr"`
}

// Config is the whole file.
type Config struct {
	Name        string      `yaml:"name"`
	Policy      string      `yaml:"policy"` // lru | scan
	Limits      Limits      `yaml:"limits"`
	Maintenance Maintenance `yaml:"maintenance"`
	Log         Log         `yaml:"log"`
	HTTP        HTTP        `yaml:"http"`
}

// Default returns the values used for keys a file leaves out.
func Default() Config {
	return Config{
		Name:   "bench",
		Policy: "lru",
		Limits: Limits{Count: 100_000},
		Maintenance: Maintenance{
			Interval: time.Second,
		},
		Log:  Log{Level: "info", Format: "text"},
		HTTP: HTTP{MetricsAddr: ":8080"},
	}
}

// Load reads and parses the file at path.
func Load(path string) (Config, error) {
	// #nosec G304 - path comes from the operator's -config flag
	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("read config file: %w", err)
	}
	return Parse(data)
}

// Parse decodes data over Default and validates the result.
// Unknown keys are rejected.
func Parse(data []byte) (Config, error) {
	cfg := Default()
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&cfg); err != nil && !errors.Is(err, io.EOF) {
		return Config{}, fmt.Errorf("parse config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate reports the first invalid field, wrapping cache.ErrInvalidArgument.
func (c Config) Validate() error {
	switch {
	case c.Limits.Count < 0:
		return fmt.Errorf("%w: limits.count %d", cache.ErrInvalidArgument, c.Limits.Count)
	case c.Limits.Cost < 0:
		return fmt.Errorf("%w: limits.cost %d", cache.ErrInvalidArgument, c.Limits.Cost)
	case c.Limits.Age < 0:
		return fmt.Errorf("%w: limits.age %s", cache.ErrInvalidArgument, c.Limits.Age)
	case c.Maintenance.Interval < 0:
		return fmt.Errorf("%w: maintenance.interval %s", cache.ErrInvalidArgument, c.Maintenance.Interval)
	case c.Maintenance.CompactAbove < 0:
		return fmt.Errorf("%w: maintenance.compact_above %d", cache.ErrInvalidArgument, c.Maintenance.CompactAbove)
	}
	switch c.Policy {
	case "", "lru", "scan":
	default:
		return fmt.Errorf("%w: unknown policy %q (use lru or scan)", cache.ErrInvalidArgument, c.Policy)
	}
	switch c.Log.Format {
	case "", "text", "json":
	default:
		return fmt.Errorf("%w: unknown log format %q", cache.ErrInvalidArgument, c.Log.Format)
	}
	return nil
}

// CacheOptions builds cache options from cfg. Callers fill in Cost, Loader,
// Metrics and the other hooks that cannot live in a file.
func CacheOptions[K comparable, V any](cfg Config, logger *slog.Logger) cache.Options[K, V] {
	return cache.Options[K, V]{
		Name:       cfg.Name,
		CountLimit: cfg.Limits.Count,
		CostLimit:  cfg.Limits.Cost,
		AgeLimit:   cfg.Limits.Age,
		Policy:     PolicyFor[K, V](cfg.Policy),
		Logger:     logger,
	}
}

// PolicyFor maps a policy name to its recency index; unknown names get lru.
func PolicyFor[K comparable, V any](name string) policy.Policy[K, V] {
	if name == "scan" {
		return scan.New[K, V]()
	}
	return lru.New[K, V]()
}

// MaintenanceConfig builds scheduler settings. The bool is false when the
// file disables maintenance.
func (c Config) MaintenanceConfig(logger *slog.Logger) (maintenance.Config, bool) {
	if c.Maintenance.Interval == 0 {
		return maintenance.Config{}, false
	}
	return maintenance.Config{
		Interval:     c.Maintenance.Interval,
		CompactAbove: c.Maintenance.CompactAbove,
		Logger:       logger,
	}, true
}

// NewLogger builds a slog logger writing to w in the configured format.
func (c Config) NewLogger(w io.Writer) *slog.Logger {
	opts := &slog.HandlerOptions{Level: ParseLevel(c.Log.Level)}
	if c.Log.Format == "json" {
		return slog.New(slog.NewJSONHandler(w, opts))
	}
	return slog.New(slog.NewTextHandler(w, opts))
}

// ParseLevel maps a level name to slog.Level; unknown names are Info.
func ParseLevel(level string) slog.Level {
	switch strings.ToLower(level) {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
