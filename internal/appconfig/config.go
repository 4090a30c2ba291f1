// Package appconfig holds the configuration of the ogc command line tools
// and builds the library components it describes.
package appconfig

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/caarlos0/env/v11"
	validation "github.com/go-ozzo/ozzo-validation/v4"

	"github.com/robert-malhotra/go-ogc-client/pkg/auth"
	"github.com/robert-malhotra/go-ogc-client/pkg/config"
)

// EnvPrefix prefixes every environment override.
const EnvPrefix = "OGC_"

// Log formats.
const (
	LogFormatConsole = "console"
	LogFormatJSON    = "json"
)

// Cache backends.
const (
	CacheNone     = "none"
	CacheMemory   = "memory"
	CacheFile     = "file"
	CacheSQLite   = "sqlite"
	CachePostgres = "postgres"
	CacheS3       = "s3"
)

// Worker modes.
const (
	WorkerInline = "inline"
	WorkerPool   = "pool"
)

// Config is the application configuration.
type Config struct {
	URL    string       `yaml:"url" env:"URL"`
	Log    LogConfig    `yaml:"log" envPrefix:"LOG_"`
	HTTP   HTTPConfig   `yaml:"http" envPrefix:"HTTP_"`
	Cache  CacheConfig  `yaml:"cache" envPrefix:"CACHE_"`
	Worker WorkerConfig `yaml:"worker" envPrefix:"WORKER_"`
	Auth   auth.Config  `yaml:"auth" envPrefix:"AUTH_"`
}

// Validate validates the configuration.
func (c *Config) Validate() error {
	if err := c.Log.Validate(); err != nil {
		return fmt.Errorf("log: %w", err)
	}
	if err := c.HTTP.Validate(); err != nil {
		return fmt.Errorf("http: %w", err)
	}
	if err := c.Cache.Validate(); err != nil {
		return fmt.Errorf("cache: %w", err)
	}
	if err := c.Worker.Validate(); err != nil {
		return fmt.Errorf("worker: %w", err)
	}
	return c.Auth.Validate()
}

// LogConfig holds logging configuration.
type LogConfig struct {
	Level  string `yaml:"level" env:"LEVEL"`
	Format string `yaml:"format" env:"FORMAT"`
}

// Validate validates the logging configuration.
func (c *LogConfig) Validate() error {
	return validation.ValidateStruct(c,
		validation.Field(&c.Level, validation.In("trace", "debug", "info", "warn", "error", "disabled")),
		validation.Field(&c.Format, validation.In(LogFormatConsole, LogFormatJSON)),
	)
}

// HTTPConfig holds fetcher configuration.
type HTTPConfig struct {
	Timeout        time.Duration `yaml:"timeout" env:"TIMEOUT"`
	RequestTimeout time.Duration `yaml:"request_timeout" env:"REQUEST_TIMEOUT"`
	UserAgent      string        `yaml:"user_agent" env:"USER_AGENT"`
	// HTTPCache honours server cache headers across fetches.
	HTTPCache bool `yaml:"http_cache" env:"HTTP_CACHE"`
}

// Validate validates the fetcher configuration.
func (c *HTTPConfig) Validate() error {
	return validation.ValidateStruct(c,
		validation.Field(&c.Timeout, validation.Min(time.Duration(0))),
		validation.Field(&c.RequestTimeout, validation.Min(time.Duration(0))),
	)
}

// CacheConfig selects and configures the cache store.
type CacheConfig struct {
	Backend     string        `yaml:"backend" env:"BACKEND"`
	Expiry      time.Duration `yaml:"expiry" env:"EXPIRY"`
	TaskTimeout time.Duration `yaml:"task_timeout" env:"TASK_TIMEOUT"`
	Dir         string        `yaml:"dir" env:"DIR"`
	SQLitePath  string        `yaml:"sqlite_path" env:"SQLITE_PATH"`
	PostgresDSN string        `yaml:"postgres_dsn" env:"POSTGRES_DSN"`
	S3Bucket    string        `yaml:"s3_bucket" env:"S3_BUCKET"`
	S3Prefix    string        `yaml:"s3_prefix" env:"S3_PREFIX"`
}

// Validate validates the cache configuration.
func (c *CacheConfig) Validate() error {
	return validation.ValidateStruct(c,
		validation.Field(&c.Backend, validation.Required,
			validation.In(CacheNone, CacheMemory, CacheFile, CacheSQLite, CachePostgres, CacheS3)),
		validation.Field(&c.Expiry, validation.Min(time.Duration(0))),
		validation.Field(&c.TaskTimeout, validation.Min(time.Duration(0))),
		validation.Field(&c.Dir, validation.When(c.Backend == CacheFile, validation.Required)),
		validation.Field(&c.SQLitePath, validation.When(c.Backend == CacheSQLite, validation.Required)),
		validation.Field(&c.PostgresDSN, validation.When(c.Backend == CachePostgres, validation.Required)),
		validation.Field(&c.S3Bucket, validation.When(c.Backend == CacheS3, validation.Required)),
	)
}

// WorkerConfig selects the task runner.
type WorkerConfig struct {
	Mode string `yaml:"mode" env:"MODE"`
	// Size is the pool size. Zero means GOMAXPROCS.
	Size int `yaml:"size" env:"SIZE"`
}

// Validate validates the worker configuration.
func (c *WorkerConfig) Validate() error {
	return validation.ValidateStruct(c,
		validation.Field(&c.Mode, validation.Required, validation.In(WorkerInline, WorkerPool)),
		validation.Field(&c.Size, validation.Min(0)),
	)
}

// NewDefaultConfig returns a Config with default values.
func NewDefaultConfig() *Config {
	dir := filepath.Join(os.TempDir(), "go-ogc-client")
	if userDir, err := os.UserCacheDir(); err == nil {
		dir = filepath.Join(userDir, "go-ogc-client")
	}
	return &Config{
		Log: LogConfig{
			Level:  "info",
			Format: LogFormatConsole,
		},
		HTTP: HTTPConfig{
			Timeout: 30 * time.Second,
		},
		Cache: CacheConfig{
			Backend:    CacheMemory,
			Expiry:     time.Hour,
			Dir:        dir,
			SQLitePath: filepath.Join(dir, "cache.db"),
			S3Prefix:   "ogc-cache",
		},
		Worker: WorkerConfig{
			Mode: WorkerInline,
		},
		Auth: auth.Config{
			Mode: auth.ModeNone,
		},
	}
}

// fileConfig has no Validate method, so config.LoadOptional leaves
// validation to Load, after environment overrides.
type fileConfig Config

// Load builds the configuration from defaults, the optional YAML file at
// path and OGC_* environment variables, in that order of precedence.
func Load(path string) (*Config, error) {
	cfg := NewDefaultConfig()
	if err := config.LoadOptional(path, (*fileConfig)(cfg)); err != nil {
		return nil, err
	}
	if err := env.ParseWithOptions(cfg, env.Options{Prefix: EnvPrefix}); err != nil {
		return nil, fmt.Errorf("failed to parse environment: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}
	return cfg, nil
}
