// Package cache stores the results of expensive fetch-and-parse operations.
//
// Use runs a factory at most once per key at any instant: callers arriving
// while it runs share its result. Successful results are persisted in a
// Store until they expire; failures are never stored.
//
//	root, err := cache.Use(ctx, c, func(ctx context.Context) (*ogcapi.Resource, error) {
//	    return ogcapi.FetchRoot(ctx, f, url)
//	}, "OGCAPI", "root", url)
package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	validation "github.com/go-ozzo/ozzo-validation/v4"
	"github.com/rs/zerolog"
	"golang.org/x/sync/singleflight"
)

const (
	// DefaultSeparator joins key parts.
	DefaultSeparator = "/"
	// DefaultExpiry is the expiry of the shared Default cache.
	DefaultExpiry = time.Hour
)

// ErrTaskTimeout is returned to callers of a task that ran longer than
// Config.TaskTimeout.
var ErrTaskTimeout = errors.New("cache: task timed out")

// Config holds the cache settings. It is fixed at construction.
type Config struct {
	// Expiry is how long a result stays valid. Zero or less disables
	// persistence; concurrent callers are still coalesced.
	Expiry time.Duration `yaml:"expiry"`
	// Separator joins key parts. Defaults to "/".
	Separator string `yaml:"separator"`
	// TaskTimeout bounds how long callers wait on a running factory. When it
	// elapses the task is forgotten so the next call starts over.
	TaskTimeout time.Duration `yaml:"task_timeout"`
}

// Validate validates the cache configuration.
func (c *Config) Validate() error {
	return validation.ValidateStruct(c,
		validation.Field(&c.TaskTimeout, validation.Min(time.Duration(0))),
	)
}

// Stats counts cache decisions.
type Stats struct {
	Hits   int64
	Misses int64
	Runs   int64
}

// Option configures a Cache.
type Option func(*Cache)

// WithClock replaces the clock used for expiry.
func WithClock(clock Clock) Option {
	return func(c *Cache) { c.clock = clock }
}

// WithLogger registers a logger for cache decisions.
func WithLogger(logger zerolog.Logger) Option {
	return func(c *Cache) { c.logger = logger }
}

// Cache coalesces and persists factory results.
type Cache struct {
	cfg    Config
	store  Store
	clock  Clock
	logger zerolog.Logger

	group              singleflight.Group
	hits, misses, runs atomic.Int64
}

// New creates a Cache over store. A nil store means an in-memory one.
func New(store Store, cfg Config, opts ...Option) (*Cache, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("cache: invalid config: %w", err)
	}
	if cfg.Separator == "" {
		cfg.Separator = DefaultSeparator
	}
	if store == nil {
		store = NewMemoryStore()
	}
	c := &Cache{
		cfg:    cfg,
		store:  store,
		clock:  realClock{},
		logger: zerolog.Nop(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

var defaultCache = sync.OnceValue(func() *Cache {
	c, _ := New(NewMemoryStore(), Config{Expiry: DefaultExpiry})
	return c
})

// Default returns a process-wide in-memory Cache with DefaultExpiry.
func Default() *Cache {
	return defaultCache()
}

// Config returns the configuration in effect.
func (c *Cache) Config() Config {
	return c.cfg
}

// Key joins parts with the configured separator.
func (c *Cache) Key(parts ...string) string {
	return strings.Join(parts, c.cfg.Separator)
}

// Stats returns a snapshot of the counters.
func (c *Cache) Stats() Stats {
	return Stats{Hits: c.hits.Load(), Misses: c.misses.Load(), Runs: c.runs.Load()}
}

// Purge removes expired entries from the store.
func (c *Cache) Purge(ctx context.Context) (int, error) {
	return c.store.Purge(ctx, c.clock.Now())
}

// Clear removes every persisted entry.
func (c *Cache) Clear(ctx context.Context) error {
	return c.store.Clear(ctx)
}

// Close closes the underlying store.
func (c *Cache) Close() error {
	return c.store.Close()
}

func (c *Cache) persistent() bool {
	return c.cfg.Expiry > 0
}

// Use returns the value cached under keyParts, or runs factory to produce
// it. Concurrent callers for the same key share one factory run and receive
// the same value. The factory runs on a context that is not cancelled with
// the caller's, so one caller giving up does not fail the others.
func Use[T any](ctx context.Context, c *Cache, factory func(context.Context) (T, error), keyParts ...string) (T, error) {
	var zero T

	// Purging is best effort and never fails the lookup.
	if n, err := c.Purge(ctx); err != nil {
		c.logger.Warn().Err(err).Msg("cache: purge failed")
	} else if n > 0 {
		c.logger.Debug().Int("count", n).Msg("cache: purged expired entries")
	}

	key := c.Key(keyParts...)

	if c.persistent() {
		if v, ok := load[T](ctx, c, key); ok {
			c.hits.Add(1)
			return v, nil
		}
	}
	c.misses.Add(1)

	ch := c.group.DoChan(key, func() (any, error) {
		c.runs.Add(1)
		c.logger.Debug().Str("key", key).Msg("cache: running factory")
		v, err := factory(context.WithoutCancel(ctx))
		if err != nil {
			return nil, err
		}
		if c.persistent() {
			c.persist(context.WithoutCancel(ctx), key, v)
		}
		return v, nil
	})

	var timeout <-chan time.Time
	if c.cfg.TaskTimeout > 0 {
		timer := time.NewTimer(c.cfg.TaskTimeout)
		defer timer.Stop()
		timeout = timer.C
	}

	select {
	case res := <-ch:
		if res.Err != nil {
			return zero, res.Err
		}
		v, ok := res.Val.(T)
		if !ok {
			return zero, fmt.Errorf("cache: key %q holds %T, not %T", key, res.Val, zero)
		}
		return v, nil
	case <-ctx.Done():
		return zero, ctx.Err()
	case <-timeout:
		c.group.Forget(key)
		return zero, fmt.Errorf("%w: %s", ErrTaskTimeout, key)
	}
}

func load[T any](ctx context.Context, c *Cache, key string) (T, bool) {
	var v T
	entry, err := c.store.Get(ctx, key)
	if err != nil {
		if !errors.Is(err, ErrNotFound) {
			c.logger.Warn().Err(err).Str("key", key).Msg("cache: read failed")
		}
		return v, false
	}
	if entry.Expired(c.clock.Now()) {
		return v, false
	}
	if err := json.Unmarshal(entry.Payload, &v); err != nil {
		c.logger.Warn().Err(err).Str("key", key).Msg("cache: dropping undecodable entry")
		_ = c.store.Delete(ctx, key)
		return v, false
	}
	return v, true
}

// persist stores v. Fields that cannot be serialized are persisted as
// null; the callers waiting on the task still receive them in full.
func (c *Cache) persist(ctx context.Context, key string, v any) {
	payload, dropped, err := marshalLenient(v)
	if err != nil {
		c.logger.Warn().Err(err).Str("key", key).Msg("cache: value not serializable, skipping persistence")
		return
	}
	if dropped {
		c.logger.Debug().Str("key", key).Msg("cache: persisted without unserializable fields")
	}
	entry := &Entry{Key: key, Payload: payload, Expiry: c.clock.Now().Add(c.cfg.Expiry)}
	if err := c.store.Set(ctx, entry); err != nil {
		c.logger.Warn().Err(err).Str("key", key).Msg("cache: write failed")
	}
}
