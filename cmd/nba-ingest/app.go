package main

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/Sternrassler/nba-ingest/internal/config"
	"github.com/Sternrassler/nba-ingest/pkg/batch"
	"github.com/Sternrassler/nba-ingest/pkg/cache"
	"github.com/Sternrassler/nba-ingest/pkg/client"
	"github.com/Sternrassler/nba-ingest/pkg/gamestats"
	"github.com/Sternrassler/nba-ingest/pkg/logging"
	"github.com/Sternrassler/nba-ingest/pkg/metrics"
	"github.com/Sternrassler/nba-ingest/pkg/players"
	"github.com/Sternrassler/nba-ingest/pkg/ratelimit"
	"github.com/Sternrassler/nba-ingest/pkg/store"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"
)

// errNoStorage is returned when a command needs a store and none is configured.
var errNoStorage = errors.New("no storage configured: set DATABASE_URL, SQLITE_PATH or REDIS_URL, or use --dry-run")

// app wires the shared rate window, the provider client and the configured
// storage backends for one command invocation.
type app struct {
	cfg    *config.Config
	window *ratelimit.Window
	client *client.Client

	prizepicks *client.Client

	redis    *redis.Client
	postgres *store.Postgres
	sqlite   *store.SQLite
}

// openApp validates cfg, connects every configured backend and builds the
// Tank01 client.
func openApp(ctx context.Context, cfg *config.Config) (*app, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return open(ctx, cfg, true)
}

// openPublicApp is openApp for the PrizePicks feed: no Tank01 credentials
// are required and a.client stays nil.
func openPublicApp(ctx context.Context, cfg *config.Config) (*app, error) {
	if err := cfg.ValidateSettings(); err != nil {
		return nil, err
	}
	return open(ctx, cfg, false)
}

func open(ctx context.Context, cfg *config.Config, tank01 bool) (*app, error) {
	a := &app{cfg: cfg}
	ok := false
	defer func() {
		if !ok {
			a.Close()
		}
	}()

	rlCfg := ratelimit.DefaultConfig()
	rlCfg.PerMinute = cfg.RateLimit.PerMinute
	rlCfg.PerSecond = cfg.RateLimit.PerSecond
	a.window = ratelimit.NewWindow(rlCfg, logging.NewLogger("ratelimit"))

	if cfg.Storage.RedisURL != "" {
		rdb := newRedisClient(cfg.Storage.RedisURL)
		a.redis = rdb
		if err := rdb.Ping(ctx).Err(); err != nil {
			return nil, fmt.Errorf("connect redis: %w", err)
		}
		log.Info().Str("component", "app").Msg("Connected to Redis")
	}

	if cfg.Storage.DatabaseURL != "" {
		pg, err := store.NewPostgres(ctx, cfg.Storage.DatabaseURL)
		if err != nil {
			return nil, err
		}
		a.postgres = pg
		if err := pg.EnsureSchema(ctx); err != nil {
			return nil, err
		}
		log.Info().Str("component", "app").Msg("Connected to Postgres")
	}

	if cfg.Storage.SQLitePath != "" {
		db, err := store.OpenSQLite(ctx, cfg.Storage.SQLitePath)
		if err != nil {
			return nil, err
		}
		a.sqlite = db
		log.Info().Str("component", "app").Str("path", cfg.Storage.SQLitePath).Msg("Opened SQLite")
	}

	if !tank01 {
		ok = true
		return a, nil
	}

	clientCfg := client.DefaultConfig(cfg.API.Key, cfg.API.Host)
	clientCfg.BaseURL = cfg.API.BaseURL
	clientCfg.Season = cfg.API.Season
	clientCfg.RequestTimeout = cfg.API.RequestTimeout
	clientCfg.Retry.MaxRetries = cfg.API.MaxRetries
	clientCfg.MaxRateLimitRetries = cfg.API.MaxRateLimitRetries
	clientCfg.DefaultRetryAfter = cfg.API.DefaultRetryAfter
	if a.redis != nil && cfg.API.CacheTTL > 0 {
		clientCfg.Cache = cache.NewManager(a.redis)
		clientCfg.CacheTTL = cfg.API.CacheTTL
	}

	c, err := client.New(clientCfg, a.window)
	if err != nil {
		return nil, fmt.Errorf("create client: %w", err)
	}
	a.client = c

	ok = true
	return a, nil
}

// newRedisClient accepts a redis:// URL or a bare host:port.
func newRedisClient(raw string) *redis.Client {
	if opts, err := redis.ParseURL(raw); err == nil {
		return redis.NewClient(opts)
	}
	return redis.NewClient(&redis.Options{Addr: raw})
}

// prizePicks returns an anonymous client for the PrizePicks feed. It has its
// own rate window so it never competes with Tank01 quota.
func (a *app) prizePicks() (*client.Client, error) {
	if a.prizepicks != nil {
		return a.prizepicks, nil
	}

	cfg := client.DefaultConfig("", "")
	cfg.Anonymous = true
	cfg.BaseURL = a.cfg.PrizePicks.BaseURL
	cfg.RequestTimeout = a.cfg.API.RequestTimeout
	cfg.Retry.MaxRetries = a.cfg.API.MaxRetries
	cfg.MaxRateLimitRetries = a.cfg.API.MaxRateLimitRetries
	cfg.DefaultRetryAfter = a.cfg.API.DefaultRetryAfter

	window := ratelimit.NewWindow(ratelimit.DefaultConfig(), logging.NewLogger("prizepicks-ratelimit"))
	c, err := client.New(cfg, window)
	if err != nil {
		return nil, fmt.Errorf("create prizepicks client: %w", err)
	}
	a.prizepicks = c
	return c, nil
}

// feeds returns every relational backend as one feed store.
func (a *app) feeds() (store.Feeds, error) {
	var feeds store.Feeds
	if a.postgres != nil {
		feeds = append(feeds, a.postgres)
	}
	if a.sqlite != nil {
		feeds = append(feeds, a.sqlite)
	}
	if len(feeds) == 0 {
		return nil, errors.New("no feed store: configure DATABASE_URL or SQLITE_PATH")
	}
	return feeds, nil
}

// Close releases every backend.
func (a *app) Close() {
	if a.client != nil {
		a.client.Close()
	}
	if a.prizepicks != nil {
		a.prizepicks.Close()
	}
	if a.postgres != nil {
		a.postgres.Close()
	}
	if a.sqlite != nil {
		a.sqlite.Close()
	}
	if a.redis != nil {
		a.redis.Close()
	}
}

// sink returns the game sink for a run: every configured backend, or an
// in-memory store for dry runs.
func (a *app) sink(dryRun bool) (gamestats.Sink, error) {
	if dryRun {
		return store.NewMemory(), nil
	}

	var sinks store.Fanout
	if a.postgres != nil {
		sinks = append(sinks, a.postgres)
	}
	if a.sqlite != nil {
		sinks = append(sinks, a.sqlite)
	}
	if a.redis != nil {
		sinks = append(sinks, store.NewRedisWriter(a.redis).
			WithTTL(a.cfg.Storage.GameTTL).
			WithStream(a.cfg.Storage.Stream))
	}
	if len(sinks) == 0 {
		return nil, errNoStorage
	}
	if len(sinks) == 1 {
		return sinks[0], nil
	}
	return sinks, nil
}

// source returns the player id source; Postgres wins over SQLite.
func (a *app) source() (players.Source, error) {
	switch {
	case a.postgres != nil:
		return a.postgres, nil
	case a.sqlite != nil:
		return a.sqlite, nil
	default:
		return nil, errors.New("no player source: configure DATABASE_URL or SQLITE_PATH, or pass --players")
	}
}

// catalog returns every relational backend as one players.Catalog.
func (a *app) catalog() (players.Catalog, error) {
	var cats store.Catalogs
	if a.postgres != nil {
		cats = append(cats, a.postgres)
	}
	if a.sqlite != nil {
		cats = append(cats, a.sqlite)
	}
	if len(cats) == 0 {
		return nil, errors.New("no catalog store: configure DATABASE_URL or SQLITE_PATH")
	}
	return cats, nil
}

// recordTimeout bounds storing a run summary once the run context is gone.
const recordTimeout = 10 * time.Second

// recordRun stores the summary in every relational backend. It runs detached
// from ctx's cancellation so an interrupted run is still recorded. Failures
// are logged only; the run itself already happened.
func (a *app) recordRun(ctx context.Context, summary batch.RunSummary) {
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), recordTimeout)
	defer cancel()

	var recorders []store.RunRecorder
	if a.postgres != nil {
		recorders = append(recorders, a.postgres)
	}
	if a.sqlite != nil {
		recorders = append(recorders, a.sqlite)
	}
	for _, r := range recorders {
		if err := r.RecordRun(ctx, summary); err != nil {
			log.Error().Err(err).Str("component", "app").Str("run_id", summary.RunID).Msg("Failed to record run")
		}
	}
}

// checks returns the readiness checks for the metrics server.
func (a *app) checks() map[string]metrics.Check {
	checks := map[string]metrics.Check{}
	if a.redis != nil {
		checks["redis"] = func(ctx context.Context) error { return a.redis.Ping(ctx).Err() }
	}
	if a.postgres != nil {
		checks["postgres"] = a.postgres.Ping
	}
	if a.sqlite != nil {
		checks["sqlite"] = a.sqlite.Ping
	}
	return checks
}
