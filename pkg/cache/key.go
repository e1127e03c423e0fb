package cache

import (
	"fmt"
	"net/url"
	"sort"
	"strings"
)

// KeyPrefix namespaces every cache key.
const KeyPrefix = "nba:cache"

// CacheKey identifies one cached provider response.
type CacheKey struct {
	// Endpoint is the provider path (e.g., "/getNBAGamesForPlayer")
	Endpoint string

	// Params are the query parameters sent with the request
	Params url.Values
}

// String generates a deterministic cache key string.
// Format: nba:cache:endpoint:param1=val1:param2=val2
//
// Example:
//
//	nba:cache:getNBAGamesForPlayer:playerID=28268405032:season=2025
func (k CacheKey) String() string {
	parts := []string{KeyPrefix}

	endpoint := strings.Trim(k.Endpoint, "/")
	if endpoint != "" {
		parts = append(parts, endpoint)
	}

	if len(k.Params) > 0 {
		keys := make([]string, 0, len(k.Params))
		for key := range k.Params {
			keys = append(keys, key)
		}
		sort.Strings(keys)

		for _, key := range keys {
			values := append([]string(nil), k.Params[key]...)
			sort.Strings(values)
			parts = append(parts, fmt.Sprintf("%s=%s", key, strings.Join(values, ",")))
		}
	}

	return strings.Join(parts, ":")
}
