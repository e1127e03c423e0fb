// Package cache keeps raw Tank01 response bodies in Redis so that re-running
// an ingest over the same players does not spend request budget twice.
//
// Keys are deterministic over the endpoint and its query parameters, and the
// API key header is never part of a key. Entries carry their own expiry and
// are stored with a matching Redis TTL.
//
// # Basic Usage
//
//	redisClient := redis.NewClient(&redis.Options{Addr: "localhost:6379"})
//	manager := cache.NewManager(redisClient)
//
//	key := cache.CacheKey{
//		Endpoint: "/getNBAGamesForPlayer",
//		Params:   url.Values{"playerID": {"28268405032"}, "season": {"2025"}},
//	}
//
//	entry, err := manager.Get(ctx, key)
//	if errors.Is(err, cache.ErrCacheMiss) {
//		// fetch from the provider, then
//		_ = manager.Set(ctx, key, cache.NewEntry(body, http.StatusOK, 6*time.Hour))
//	}
//
// Responses whose envelope body is empty are not cached; see Cacheable.
//
// # Metrics
//
//   - nba_cache_lookups_total{endpoint, result}
//   - nba_cache_skipped_total{endpoint, reason}
//   - nba_cache_stored_bytes_total{endpoint}
//   - nba_cache_errors_total{operation}
package cache
