// Package config loads nba-ingest configuration from an optional YAML file,
// a .env file and environment variables, in increasing precedence.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Environment variables read by ApplyEnv.
const (
	EnvAPIKey      = "RAPIDAPI_KEY"
	EnvAPIHost     = "RAPIDAPI_HOST"
	EnvDatabaseURL = "DATABASE_URL"
	EnvSQLitePath  = "SQLITE_PATH"
	EnvRedisURL    = "REDIS_URL"
	EnvLogLevel    = "LOG_LEVEL"
	EnvSeason      = "NBA_SEASON"
	EnvMetricsAddr = "METRICS_ADDR"
	EnvMaxWorkers  = "NBA_MAX_WORKERS"
	EnvBatchSize   = "NBA_BATCH_SIZE"

	EnvPrizePicksBaseURL = "PRIZEPICKS_BASE_URL"
)

// Config is the full application configuration.
type Config struct {
	API struct {
		Key                 string        `yaml:"key"`
		Host                string        `yaml:"host"`
		BaseURL             string        `yaml:"base_url"`
		Season              string        `yaml:"season"`
		RequestTimeout      time.Duration `yaml:"request_timeout"`
		MaxRetries          int           `yaml:"max_retries"`
		MaxRateLimitRetries int           `yaml:"max_rate_limit_retries"`
		DefaultRetryAfter   time.Duration `yaml:"default_retry_after"`
		CacheTTL            time.Duration `yaml:"cache_ttl"`
	} `yaml:"api"`

	// PrizePicks is the public projections feed; it needs no credentials but
	// shares the rate window with the Tank01 client.
	PrizePicks struct {
		BaseURL string `yaml:"base_url"`
		PerPage int    `yaml:"per_page"`
	} `yaml:"prizepicks"`

	RateLimit struct {
		PerMinute int `yaml:"per_minute"`
		PerSecond int `yaml:"per_second"`
	} `yaml:"rate_limit"`

	Batch struct {
		MaxWorkers  int           `yaml:"max_workers"`
		BatchSize   int           `yaml:"batch_size"`
		RunTimeout  time.Duration `yaml:"run_timeout"`
		ItemTimeout time.Duration `yaml:"item_timeout"`
	} `yaml:"batch"`

	Storage struct {
		DatabaseURL string        `yaml:"database_url"`
		SQLitePath  string        `yaml:"sqlite_path"`
		RedisURL    string        `yaml:"redis_url"`
		GameTTL     time.Duration `yaml:"game_ttl"`
		Stream      string        `yaml:"stream"`
	} `yaml:"storage"`

	Log struct {
		Level  string `yaml:"level"`
		Pretty bool   `yaml:"pretty"`
	} `yaml:"log"`

	Metrics struct {
		Addr string `yaml:"addr"`
	} `yaml:"metrics"`
}

// Default returns the built-in configuration.
func Default() *Config {
	cfg := &Config{}
	cfg.API.Host = "tank01-fantasy-stats.p.rapidapi.com"
	cfg.API.BaseURL = "https://tank01-fantasy-stats.p.rapidapi.com"
	cfg.API.Season = "2025"
	cfg.API.RequestTimeout = 30 * time.Second
	cfg.API.MaxRetries = 5
	cfg.API.MaxRateLimitRetries = 5
	cfg.API.DefaultRetryAfter = 60 * time.Second

	cfg.PrizePicks.BaseURL = "https://partner-api.prizepicks.com"
	cfg.PrizePicks.PerPage = 250

	cfg.RateLimit.PerMinute = 60
	cfg.RateLimit.PerSecond = 5

	cfg.Batch.MaxWorkers = 3
	cfg.Batch.BatchSize = 15

	cfg.Storage.GameTTL = 7 * 24 * time.Hour
	cfg.Storage.Stream = "nba.games.updates"

	cfg.Log.Level = "info"
	return cfg
}

// Load builds the configuration: defaults, then the YAML file at path (if
// path is non-empty), then environment overrides. The result is not
// validated; call Validate once flags have been applied.
func Load(path string) (*Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read config: %w", err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse config %s: %w", path, err)
		}
	}

	if err := cfg.ApplyEnv(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// LoadDotEnv loads .env style files into the process environment without
// overriding variables that are already set. Missing files are ignored.
func LoadDotEnv(paths ...string) error {
	if len(paths) == 0 {
		paths = []string{".env"}
	}
	for _, p := range paths {
		if err := godotenv.Load(p); err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				continue
			}
			return fmt.Errorf("load %s: %w", p, err)
		}
	}
	return nil
}

// ApplyEnv overrides fields from environment variables.
func (c *Config) ApplyEnv() error {
	setString(&c.API.Key, EnvAPIKey)
	setString(&c.API.Host, EnvAPIHost)
	setString(&c.API.Season, EnvSeason)
	setString(&c.Storage.DatabaseURL, EnvDatabaseURL)
	setString(&c.Storage.SQLitePath, EnvSQLitePath)
	setString(&c.Storage.RedisURL, EnvRedisURL)
	setString(&c.Log.Level, EnvLogLevel)
	setString(&c.Metrics.Addr, EnvMetricsAddr)
	setString(&c.PrizePicks.BaseURL, EnvPrizePicksBaseURL)

	if err := setInt(&c.Batch.MaxWorkers, EnvMaxWorkers); err != nil {
		return err
	}
	return setInt(&c.Batch.BatchSize, EnvBatchSize)
}

func setString(dst *string, key string) {
	if v, ok := os.LookupEnv(key); ok && strings.TrimSpace(v) != "" {
		*dst = strings.TrimSpace(v)
	}
}

func setInt(dst *int, key string) error {
	v, ok := os.LookupEnv(key)
	if !ok || strings.TrimSpace(v) == "" {
		return nil
	}
	n, err := strconv.Atoi(strings.TrimSpace(v))
	if err != nil {
		return fmt.Errorf("%s: invalid integer %q", key, v)
	}
	*dst = n
	return nil
}

// Validate reports the first invalid setting, Tank01 credentials included.
func (c *Config) Validate() error {
	if c.API.Key == "" || c.API.Host == "" {
		return fmt.Errorf("api credentials not found: set %s and %s", EnvAPIKey, EnvAPIHost)
	}
	return c.ValidateSettings()
}

// ValidateSettings is Validate without the credential check, for commands
// that only read the public PrizePicks feed.
func (c *Config) ValidateSettings() error {
	if len(c.API.Season) != 4 {
		return fmt.Errorf("api.season must be a 4-digit year (got %q)", c.API.Season)
	}
	if _, err := strconv.Atoi(c.API.Season); err != nil {
		return fmt.Errorf("api.season must be a 4-digit year (got %q)", c.API.Season)
	}
	if c.API.MaxRetries < 0 {
		return fmt.Errorf("api.max_retries must be >= 0 (got %d)", c.API.MaxRetries)
	}
	if c.API.MaxRateLimitRetries < 0 {
		return fmt.Errorf("api.max_rate_limit_retries must be >= 0 (got %d)", c.API.MaxRateLimitRetries)
	}
	if c.RateLimit.PerSecond < 1 || c.RateLimit.PerMinute < c.RateLimit.PerSecond {
		return fmt.Errorf("rate_limit: need 1 <= per_second <= per_minute (got %d/%d)",
			c.RateLimit.PerSecond, c.RateLimit.PerMinute)
	}
	if c.Batch.MaxWorkers < 1 {
		return fmt.Errorf("batch.max_workers must be >= 1 (got %d)", c.Batch.MaxWorkers)
	}
	if c.Batch.BatchSize < 1 {
		return fmt.Errorf("batch.batch_size must be >= 1 (got %d)", c.Batch.BatchSize)
	}
	if c.PrizePicks.PerPage < 1 {
		return fmt.Errorf("prizepicks.per_page must be >= 1 (got %d)", c.PrizePicks.PerPage)
	}
	return nil
}
