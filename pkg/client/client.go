// Package client provides the Tank01 (RapidAPI) HTTP client with shared rate
// limiting, retry with backoff, Retry-After handling and optional caching.
package client

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/Sternrassler/nba-ingest/pkg/cache"
	"github.com/Sternrassler/nba-ingest/pkg/ratelimit"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// Prometheus metrics for provider requests.
var (
	apiRequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "nba_api_requests_total",
		Help: "Total provider requests by endpoint and status",
	}, []string{"endpoint", "status"})

	apiRequestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "nba_api_request_duration_seconds",
		Help:    "Provider request duration in seconds by endpoint",
		Buckets: []float64{0.1, 0.25, 0.5, 1, 2, 5, 10},
	}, []string{"endpoint"})

	apiErrorsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "nba_api_errors_total",
		Help: "Total provider errors by class",
	}, []string{"class"})
)

const (
	// DefaultBaseURL is the Tank01 fantasy stats API on RapidAPI.
	DefaultBaseURL = "https://tank01-fantasy-stats.p.rapidapi.com"

	// DefaultUserAgent is sent with every request.
	DefaultUserAgent = "nba-ingest/1.0 (+https://github.com/Sternrassler/nba-ingest)"

	// maxBodyBytes bounds a single response body.
	maxBodyBytes = 16 << 20
)

// Client is the Tank01 API client. It is safe for concurrent use; every
// worker of a run shares one Client and therefore one connection pool and
// one rate window.
type Client struct {
	httpClient *http.Client
	window     *ratelimit.Window
	cache      *cache.Manager
	config     Config
	logger     zerolog.Logger
	sleep      ratelimit.SleepFunc
}

// Config holds the client configuration.
type Config struct {
	// BaseURL of the provider, without trailing slash.
	BaseURL string

	// RapidAPI credentials, sent as x-rapidapi-key / x-rapidapi-host.
	APIKey  string
	APIHost string

	// Anonymous drops the credential check and headers, for public feeds
	// such as PrizePicks that share the rate window and retry policy.
	Anonymous bool

	UserAgent string

	// Season is the season year sent with game log requests.
	Season string

	// FantasyPoints are the scoring weights the provider applies when it
	// computes fantasyPoints per game.
	FantasyPoints url.Values

	// RequestTimeout bounds a single HTTP round trip.
	RequestTimeout time.Duration

	// MaxIdleConns sizes the shared connection pool.
	MaxIdleConns int

	// Retry governs network and 5xx retries.
	Retry RetryConfig

	// MaxRateLimitRetries bounds how many 429 responses are waited out for one call.
	MaxRateLimitRetries int

	// DefaultRetryAfter is used when a 429 carries no usable Retry-After.
	DefaultRetryAfter time.Duration

	// SuccessJitterMin/Max bound the random pause after every 200 response.
	SuccessJitterMin time.Duration
	SuccessJitterMax time.Duration

	// Cache is optional; when set, 200 bodies are cached for CacheTTL.
	Cache    *cache.Manager
	CacheTTL time.Duration
}

// DefaultFantasyPoints returns the league scoring weights.
func DefaultFantasyPoints() url.Values {
	return url.Values{
		"fantasyPoints": {"true"},
		"pts":           {"1"},
		"reb":           {"1.25"},
		"stl":           {"3"},
		"blk":           {"3"},
		"ast":           {"1.5"},
		"TOV":           {"-1"},
		"mins":          {"0"},
		"doubleDouble":  {"0"},
		"tripleDouble":  {"0"},
		"quadDouble":    {"0"},
	}
}

// DefaultConfig returns a safe default configuration.
func DefaultConfig(apiKey, apiHost string) Config {
	return Config{
		BaseURL:             DefaultBaseURL,
		APIKey:              apiKey,
		APIHost:             apiHost,
		UserAgent:           DefaultUserAgent,
		Season:              "2025",
		FantasyPoints:       DefaultFantasyPoints(),
		RequestTimeout:      30 * time.Second,
		MaxIdleConns:        10,
		Retry:               DefaultRetryConfig(),
		MaxRateLimitRetries: 5,
		DefaultRetryAfter:   60 * time.Second,
		SuccessJitterMin:    100 * time.Millisecond,
		SuccessJitterMax:    500 * time.Millisecond,
		CacheTTL:            6 * time.Hour,
	}
}

// New creates a new Tank01 client that draws request budget from window.
func New(cfg Config, window *ratelimit.Window) (*Client, error) {
	if !cfg.Anonymous {
		if cfg.APIKey == "" {
			return nil, fmt.Errorf("api key is required")
		}
		if cfg.APIHost == "" {
			return nil, fmt.Errorf("api host is required")
		}
	}
	if window == nil {
		return nil, fmt.Errorf("rate window is required")
	}
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultBaseURL
	}
	cfg.BaseURL = strings.TrimRight(cfg.BaseURL, "/")
	if cfg.UserAgent == "" {
		cfg.UserAgent = DefaultUserAgent
	}
	if cfg.RequestTimeout <= 0 {
		cfg.RequestTimeout = 30 * time.Second
	}
	if cfg.MaxIdleConns <= 0 {
		cfg.MaxIdleConns = 10
	}
	if cfg.Retry.MaxRetries < 0 {
		return nil, fmt.Errorf("max retries must be >= 0 (got %d)", cfg.Retry.MaxRetries)
	}
	if cfg.MaxRateLimitRetries < 0 {
		return nil, fmt.Errorf("max rate limit retries must be >= 0 (got %d)", cfg.MaxRateLimitRetries)
	}
	if cfg.DefaultRetryAfter <= 0 {
		cfg.DefaultRetryAfter = 60 * time.Second
	}

	transport := http.DefaultTransport.(*http.Transport).Clone()
	transport.MaxIdleConns = cfg.MaxIdleConns
	transport.MaxIdleConnsPerHost = cfg.MaxIdleConns

	return &Client{
		httpClient: &http.Client{
			Timeout:   cfg.RequestTimeout,
			Transport: transport,
		},
		window: window,
		cache:  cfg.Cache,
		config: cfg,
		logger: log.With().Str("component", "tank01-client").Logger(),
		sleep:  ratelimit.Sleep,
	}, nil
}

// GetJSON performs a GET against endpoint and returns the 200 body.
//
// Every physical attempt first takes a slot from the shared rate window.
// Network errors and 500/502/503/504 are retried with exponential backoff,
// 429 responses are waited out per Retry-After, and any other status is
// returned as *APIError without retry.
func (c *Client) GetJSON(ctx context.Context, endpoint string, params url.Values) ([]byte, error) {
	key := cache.CacheKey{Endpoint: endpoint, Params: params}
	if c.cache != nil {
		entry, err := c.cache.Get(ctx, key)
		switch {
		case err == nil:
			c.logger.Debug().Str("endpoint", endpoint).Str("key", key.String()).Msg("Cache hit")
			return entry.Data, nil
		case !errors.Is(err, cache.ErrCacheMiss):
			c.logger.Warn().Err(err).Str("endpoint", endpoint).Msg("Cache get error")
		}
	}

	body, err := c.fetch(ctx, endpoint, params)
	if err != nil {
		return nil, err
	}

	if c.cache != nil && c.config.CacheTTL > 0 {
		if err := c.cache.Set(ctx, key, cache.NewEntry(body, http.StatusOK, c.config.CacheTTL)); err != nil {
			c.logger.Warn().Err(err).Str("endpoint", endpoint).Msg("Failed to cache response")
		}
	}

	return body, nil
}

// fetch runs the retry loop for one logical request.
func (c *Client) fetch(ctx context.Context, endpoint string, params url.Values) ([]byte, error) {
	var (
		retries     int
		rateLimited int
	)

	for attempt := 1; ; attempt++ {
		if _, err := c.window.Acquire(ctx); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrContextCancelled, err)
		}

		resp, err := c.do(ctx, endpoint, params)
		if err != nil && ctx.Err() != nil {
			return nil, fmt.Errorf("%w: %v", ErrContextCancelled, ctx.Err())
		}

		status := 0
		if resp != nil {
			status = resp.statusCode
		}

		if err == nil && status == http.StatusOK {
			if attempt > 1 {
				c.logger.Info().
					Str("endpoint", endpoint).
					Int("attempt", attempt).
					Msg("Request succeeded after retry")
			}
			// Desynchronise workers that were released together. The body is
			// already read, so a cut-short pause still returns it.
			if err := c.sleep(ctx, ratelimit.Jitter(c.config.SuccessJitterMin, c.config.SuccessJitterMax)); err != nil {
				c.logger.Debug().
					Err(err).
					Str("endpoint", endpoint).
					Msg("Success jitter interrupted")
			}
			return resp.body, nil
		}

		errClass := classifyError(status, err)
		apiErrorsTotal.WithLabelValues(string(errClass)).Inc()

		var lastErr error
		if err != nil {
			lastErr = err
		} else {
			lastErr = &APIError{
				StatusCode: status,
				ErrorClass: errClass,
				Message:    http.StatusText(status),
			}
		}

		switch {
		case errClass == ErrorClassRateLimit:
			rateLimited++
			if rateLimited > c.config.MaxRateLimitRetries {
				apiRetryExhaustedTotal.WithLabelValues(string(errClass)).Inc()
				c.logger.Error().
					Str("endpoint", endpoint).
					Int("rate_limited", rateLimited).
					Msg("Rate limit retries exhausted")
				return nil, &APIError{
					StatusCode: status,
					ErrorClass: errClass,
					Message:    http.StatusText(status),
					Err:        ErrRateLimitExhausted,
				}
			}

			wait := parseRetryAfter(resp.header.Get("Retry-After"), c.config.DefaultRetryAfter, time.Now())
			apiRetriesTotal.WithLabelValues(string(errClass)).Inc()
			apiRetryBackoffSeconds.WithLabelValues(string(errClass)).Observe(wait.Seconds())
			c.logger.Warn().
				Str("endpoint", endpoint).
				Str("player_id", params.Get("playerID")).
				Dur("wait", wait).
				Msg("Rate limited by provider, honoring Retry-After")

			if err := c.sleep(ctx, wait); err != nil {
				return nil, fmt.Errorf("%w: %v", ErrContextCancelled, err)
			}

		case shouldRetry(errClass, status):
			if retries >= c.config.Retry.MaxRetries {
				apiRetryExhaustedTotal.WithLabelValues(string(errClass)).Inc()
				c.logger.Error().
					Err(lastErr).
					Str("endpoint", endpoint).
					Int("retries", retries).
					Msg("Retry attempts exhausted")
				return nil, fmt.Errorf("%w after %d retries: %w", ErrRetryExhausted, retries, lastErr)
			}
			retries++
			backoff := c.config.Retry.Backoff(retries)
			apiRetriesTotal.WithLabelValues(string(errClass)).Inc()
			apiRetryBackoffSeconds.WithLabelValues(string(errClass)).Observe(backoff.Seconds())
			c.logger.Warn().
				Err(lastErr).
				Str("endpoint", endpoint).
				Str("error_class", string(errClass)).
				Int("attempt", attempt).
				Dur("backoff", backoff).
				Msg("Retrying request after backoff")

			if err := c.sleep(ctx, backoff); err != nil {
				return nil, fmt.Errorf("%w: %v", ErrContextCancelled, err)
			}

		default:
			c.logger.Warn().
				Str("endpoint", endpoint).
				Int("status", status).
				Str("error_class", string(errClass)).
				Msg("Provider request failed")
			return nil, lastErr
		}
	}
}

// response is a fully read HTTP response.
type response struct {
	statusCode int
	header     http.Header
	body       []byte
}

// do executes a single GET and reads the body.
func (c *Client) do(ctx context.Context, endpoint string, params url.Values) (*response, error) {
	start := time.Now()
	defer func() {
		apiRequestDuration.WithLabelValues(endpoint).Observe(time.Since(start).Seconds())
	}()

	u := c.config.BaseURL + endpoint
	if len(params) > 0 {
		u += "?" + params.Encode()
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	if !c.config.Anonymous {
		req.Header.Set("x-rapidapi-key", c.config.APIKey)
		req.Header.Set("x-rapidapi-host", c.config.APIHost)
	}
	req.Header.Set("User-Agent", c.config.UserAgent)
	req.Header.Set("Accept", "application/json")

	c.logger.Debug().
		Str("endpoint", endpoint).
		Str("player_id", params.Get("playerID")).
		Msg("Executing provider request")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		apiRequestsTotal.WithLabelValues(endpoint, "network_error").Inc()
		return nil, err
	}
	defer resp.Body.Close()

	apiRequestsTotal.WithLabelValues(endpoint, strconv.Itoa(resp.StatusCode)).Inc()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return nil, fmt.Errorf("read response body: %w", err)
	}

	return &response{
		statusCode: resp.StatusCode,
		header:     resp.Header,
		body:       body,
	}, nil
}

// Close releases idle connections.
func (c *Client) Close() error {
	c.httpClient.CloseIdleConnections()
	return nil
}

// SetHTTPClient sets a custom HTTP client (for testing).
func (c *Client) SetHTTPClient(client *http.Client) {
	c.httpClient = client
}

// SetSleeper replaces the backoff/Retry-After sleeper (for testing).
func (c *Client) SetSleeper(sleep ratelimit.SleepFunc) {
	c.sleep = sleep
}

// Config returns the effective configuration.
func (c *Client) Config() Config {
	return c.config
}
