package cache

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/redis/go-redis/v9"
)

var (
	// ErrCacheMiss is returned by Get when no live entry exists for a key.
	ErrCacheMiss = errors.New("cache miss")

	// ErrInvalidEntry is returned by Get when the stored value cannot be decoded.
	ErrInvalidEntry = errors.New("invalid cache entry")
)

// Skip reasons reported on nba_cache_skipped_total.
const (
	skipExpired = "expired"
	skipEmpty   = "empty_body"
)

// Manager stores Tank01 response bodies in Redis.
//
// Tank01 answers 200 with an empty body ({}, [], "" or null) when the data
// for a player or date is not published yet. Such responses are never
// cached, so the next run asks again instead of serving "no games" for the
// whole TTL.
type Manager struct {
	redis *redis.Client
}

// NewManager creates a manager on redisClient. It panics on a nil client.
func NewManager(redisClient *redis.Client) *Manager {
	if redisClient == nil {
		panic("cache: nil redis client")
	}
	return &Manager{redis: redisClient}
}

// endpointLabel is the metric label for a key: the endpoint without slashes.
func endpointLabel(key CacheKey) string {
	if e := strings.Trim(key.Endpoint, "/"); e != "" {
		return e
	}
	return "unknown"
}

// Get returns the live entry for key. Missing and expired entries yield
// ErrCacheMiss; expired ones are removed.
func (m *Manager) Get(ctx context.Context, key CacheKey) (*CacheEntry, error) {
	label := endpointLabel(key)

	raw, err := m.redis.Get(ctx, key.String()).Bytes()
	switch {
	case errors.Is(err, redis.Nil):
		cacheLookups.WithLabelValues(label, "miss").Inc()
		return nil, ErrCacheMiss
	case err != nil:
		cacheErrors.WithLabelValues("get").Inc()
		return nil, fmt.Errorf("redis get %s: %w", key, err)
	}

	entry := new(CacheEntry)
	if err := json.Unmarshal(raw, entry); err != nil {
		cacheErrors.WithLabelValues("get").Inc()
		return nil, fmt.Errorf("%w: %v", ErrInvalidEntry, err)
	}

	if entry.IsExpired() {
		cacheLookups.WithLabelValues(label, "expired").Inc()
		_ = m.Delete(ctx, key)
		return nil, ErrCacheMiss
	}

	cacheLookups.WithLabelValues(label, "hit").Inc()
	return entry, nil
}

// Set stores entry under key with a Redis TTL equal to the entry's remaining
// lifetime. Expired entries and empty provider payloads are skipped without
// error.
func (m *Manager) Set(ctx context.Context, key CacheKey, entry *CacheEntry) error {
	if entry == nil {
		return errors.New("cache: nil entry")
	}
	label := endpointLabel(key)

	ttl := entry.TTL()
	if ttl <= 0 {
		cacheSkipped.WithLabelValues(label, skipExpired).Inc()
		return nil
	}
	if !Cacheable(entry.Data) {
		cacheSkipped.WithLabelValues(label, skipEmpty).Inc()
		return nil
	}

	raw, err := json.Marshal(entry)
	if err != nil {
		cacheErrors.WithLabelValues("set").Inc()
		return fmt.Errorf("encode cache entry: %w", err)
	}
	if err := m.redis.Set(ctx, key.String(), raw, ttl).Err(); err != nil {
		cacheErrors.WithLabelValues("set").Inc()
		return fmt.Errorf("redis set %s: %w", key, err)
	}

	cacheStoredBytes.WithLabelValues(label).Add(float64(len(raw)))
	return nil
}

// Delete removes the entry for key.
func (m *Manager) Delete(ctx context.Context, key CacheKey) error {
	if err := m.redis.Del(ctx, key.String()).Err(); err != nil {
		cacheErrors.WithLabelValues("delete").Inc()
		return fmt.Errorf("redis del %s: %w", key, err)
	}
	return nil
}

// Cacheable reports whether a response body is worth caching. Bodies in the
// Tank01 envelope whose "body" is empty are not; anything else is.
func Cacheable(data []byte) bool {
	var env struct {
		Body json.RawMessage `json:"body"`
	}
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) == 0 {
		return false
	}
	if trimmed[0] != '{' || json.Unmarshal(trimmed, &env) != nil || env.Body == nil {
		return true
	}

	switch string(bytes.TrimSpace(env.Body)) {
	case "", "{}", "[]", `""`, "null":
		return false
	}
	return true
}
