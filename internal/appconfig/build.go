package appconfig

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/rs/zerolog"

	"github.com/robert-malhotra/go-ogc-client/pkg/auth"
	"github.com/robert-malhotra/go-ogc-client/pkg/cache"
	"github.com/robert-malhotra/go-ogc-client/pkg/fetch"
	"github.com/robert-malhotra/go-ogc-client/pkg/worker"
)

// NewLogger builds the logger described by c, writing to w.
func (c LogConfig) NewLogger(w io.Writer) (zerolog.Logger, error) {
	level := zerolog.InfoLevel
	if c.Level != "" {
		parsed, err := zerolog.ParseLevel(c.Level)
		if err != nil {
			return zerolog.Nop(), fmt.Errorf("log: %w", err)
		}
		level = parsed
	}
	if c.Format != LogFormatJSON {
		w = zerolog.ConsoleWriter{Out: w, TimeFormat: time.Kitchen}
	}
	return zerolog.New(w).Level(level).With().Timestamp().Logger(), nil
}

// NewFetcher builds a fetcher from the HTTP and auth sections. extra options
// are applied last.
func (c *Config) NewFetcher(ctx context.Context, logger zerolog.Logger, extra ...fetch.Option) (*fetch.Fetcher, error) {
	opts := []fetch.Option{
		fetch.WithTimeout(c.HTTP.Timeout),
		fetch.WithRequestTimeout(c.HTTP.RequestTimeout),
		fetch.WithLogger(logger),
	}
	if c.HTTP.UserAgent != "" {
		opts = append(opts, fetch.WithUserAgent(c.HTTP.UserAgent))
	}
	if c.HTTP.HTTPCache {
		opts = append(opts, fetch.WithHTTPCache())
	}
	if c.Auth.Mode != "" && c.Auth.Mode != auth.ModeNone {
		wrap, err := auth.Middleware(ctx, c.Auth)
		if err != nil {
			return nil, err
		}
		opts = append(opts, fetch.WithTransport(wrap))
	}
	opts = append(opts, extra...)

	f, err := fetch.New(opts...)
	if err != nil {
		return nil, fmt.Errorf("error creating fetcher: %w", err)
	}
	return f, nil
}

// NewCache opens the configured store and wraps it in a Cache. The caller
// closes the returned cache.
func (c *Config) NewCache(ctx context.Context, logger zerolog.Logger) (*cache.Cache, error) {
	cfg := cache.Config{Expiry: c.Cache.Expiry, TaskTimeout: c.Cache.TaskTimeout}

	var (
		store cache.Store
		err   error
	)
	switch c.Cache.Backend {
	case CacheNone:
		cfg.Expiry = 0
		store = cache.NewMemoryStore()
	case CacheMemory:
		store = cache.NewMemoryStore()
	case CacheFile:
		store, err = cache.NewFileStore(c.Cache.Dir)
	case CacheSQLite:
		if mkErr := os.MkdirAll(filepath.Dir(c.Cache.SQLitePath), 0o755); mkErr != nil {
			return nil, fmt.Errorf("error creating cache directory: %w", mkErr)
		}
		store, err = cache.OpenSQLiteStore(c.Cache.SQLitePath)
	case CachePostgres:
		store, err = cache.OpenPostgresStore(ctx, c.Cache.PostgresDSN)
	case CacheS3:
		store, err = cache.OpenS3Store(ctx, c.Cache.S3Bucket, c.Cache.S3Prefix)
	default:
		return nil, fmt.Errorf("cache: unknown backend %q", c.Cache.Backend)
	}
	if err != nil {
		return nil, fmt.Errorf("error opening %s cache: %w", c.Cache.Backend, err)
	}

	cc, err := cache.New(store, cfg, cache.WithLogger(logger))
	if err != nil {
		store.Close()
		return nil, err
	}
	logger.Debug().Str("backend", c.Cache.Backend).Dur("expiry", cfg.Expiry).Msg("cache ready")
	return cc, nil
}

// NewRunner builds the configured task runner over reg.
func (c *Config) NewRunner(reg *worker.Registry, logger zerolog.Logger) worker.Runner {
	if c.Worker.Mode == WorkerPool {
		return worker.NewPoolRunner(reg, c.Worker.Size, worker.WithPoolLogger(logger))
	}
	return worker.NewInlineRunner(reg)
}
