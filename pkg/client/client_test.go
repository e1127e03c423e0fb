package client

import (
	"bytes"
	"context"
	"errors"
	"net/http"
	"net/url"
	"reflect"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/Sternrassler/nba-ingest/internal/testutil"
	"github.com/Sternrassler/nba-ingest/pkg/cache"
	"github.com/Sternrassler/nba-ingest/pkg/ratelimit"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

// sleepRecorder records non-zero sleeps without blocking.
type sleepRecorder struct {
	mu     sync.Mutex
	sleeps []time.Duration
}

func (s *sleepRecorder) Sleep(ctx context.Context, d time.Duration) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if d > 0 {
		s.mu.Lock()
		s.sleeps = append(s.sleeps, d)
		s.mu.Unlock()
	}
	return nil
}

func (s *sleepRecorder) Sleeps() []time.Duration {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]time.Duration(nil), s.sleeps...)
}

func newTestWindow() *ratelimit.Window {
	return ratelimit.NewWindow(ratelimit.Config{PerMinute: 10000, PerSecond: 10000}, zerolog.Nop())
}

// newTestClient returns a client against baseURL with a recording sleeper and
// no success jitter.
func newTestClient(t *testing.T, baseURL string, mutate func(*Config)) (*Client, *sleepRecorder) {
	t.Helper()

	cfg := DefaultConfig("test-key", "tank01-fantasy-stats.p.rapidapi.com")
	cfg.BaseURL = baseURL
	cfg.SuccessJitterMin = 0
	cfg.SuccessJitterMax = 0
	if mutate != nil {
		mutate(&cfg)
	}

	c, err := New(cfg, newTestWindow())
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	rec := &sleepRecorder{}
	c.SetSleeper(rec.Sleep)
	t.Cleanup(func() { _ = c.Close() })
	return c, rec
}

func playerParams(id string) url.Values {
	return url.Values{"playerID": {id}}
}

func TestNew_Validation(t *testing.T) {
	window := newTestWindow()

	tests := []struct {
		name     string
		mutate   func(*Config)
		window   *ratelimit.Window
		errorMsg string
	}{
		{
			name:   "valid config",
			window: window,
		},
		{
			name:     "missing key",
			mutate:   func(c *Config) { c.APIKey = "" },
			window:   window,
			errorMsg: "api key is required",
		},
		{
			name:     "missing host",
			mutate:   func(c *Config) { c.APIHost = "" },
			window:   window,
			errorMsg: "api host is required",
		},
		{
			name:     "nil window",
			errorMsg: "rate window is required",
		},
		{
			name:     "negative retries",
			mutate:   func(c *Config) { c.Retry.MaxRetries = -1 },
			window:   window,
			errorMsg: "max retries must be >= 0 (got -1)",
		},
		{
			name:     "negative rate limit retries",
			mutate:   func(c *Config) { c.MaxRateLimitRetries = -2 },
			window:   window,
			errorMsg: "max rate limit retries must be >= 0 (got -2)",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig("key", "host")
			if tt.mutate != nil {
				tt.mutate(&cfg)
			}

			c, err := New(cfg, tt.window)
			if tt.errorMsg != "" {
				if err == nil {
					t.Fatal("Expected error but got nil")
				}
				if err.Error() != tt.errorMsg {
					t.Errorf("Error message = %q, want %q", err.Error(), tt.errorMsg)
				}
				return
			}
			if err != nil {
				t.Fatalf("Unexpected error: %v", err)
			}
			if c == nil {
				t.Fatal("Client is nil")
			}
		})
	}
}

func TestNew_NormalisesConfig(t *testing.T) {
	cfg := Config{
		APIKey:  "key",
		APIHost: "host",
		BaseURL: "http://example.com/",
	}
	c, err := New(cfg, newTestWindow())
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}

	got := c.Config()
	if got.BaseURL != "http://example.com" {
		t.Errorf("BaseURL = %q, want trailing slash trimmed", got.BaseURL)
	}
	if got.UserAgent != DefaultUserAgent {
		t.Errorf("UserAgent = %q, want %q", got.UserAgent, DefaultUserAgent)
	}
	if got.RequestTimeout != 30*time.Second {
		t.Errorf("RequestTimeout = %v, want 30s", got.RequestTimeout)
	}
	if got.DefaultRetryAfter != 60*time.Second {
		t.Errorf("DefaultRetryAfter = %v, want 60s", got.DefaultRetryAfter)
	}
}

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig("key", "host")

	if cfg.BaseURL != DefaultBaseURL {
		t.Errorf("BaseURL = %q, want %q", cfg.BaseURL, DefaultBaseURL)
	}
	if cfg.Retry.MaxRetries != 5 {
		t.Errorf("Retry.MaxRetries = %d, want 5", cfg.Retry.MaxRetries)
	}
	if cfg.DefaultRetryAfter != 60*time.Second {
		t.Errorf("DefaultRetryAfter = %v, want 60s", cfg.DefaultRetryAfter)
	}
	if cfg.SuccessJitterMin != 100*time.Millisecond || cfg.SuccessJitterMax != 500*time.Millisecond {
		t.Errorf("success jitter = [%v, %v], want [100ms, 500ms]", cfg.SuccessJitterMin, cfg.SuccessJitterMax)
	}
	if got := cfg.FantasyPoints.Get("reb"); got != "1.25" {
		t.Errorf("FantasyPoints reb = %q, want 1.25", got)
	}
	if got := cfg.FantasyPoints.Get("TOV"); got != "-1" {
		t.Errorf("FantasyPoints TOV = %q, want -1", got)
	}
}

func TestGetJSON_Headers(t *testing.T) {
	mock := testutil.NewMockProvider()
	defer mock.Close()
	mock.SetPlayerResponses("1", testutil.NewGameLogResponse("MIL", 1))

	c, _ := newTestClient(t, mock.URL(), nil)

	if _, err := c.GetJSON(context.Background(), EndpointGamesForPlayer, playerParams("1")); err != nil {
		t.Fatalf("GetJSON() error = %v", err)
	}

	h := mock.LastRequestHeader()
	checks := map[string]string{
		"X-Rapidapi-Key":  "test-key",
		"X-Rapidapi-Host": "tank01-fantasy-stats.p.rapidapi.com",
		"User-Agent":      DefaultUserAgent,
		"Accept":          "application/json",
	}
	for name, want := range checks {
		if got := h.Get(name); got != want {
			t.Errorf("header %s = %q, want %q", name, got, want)
		}
	}
}

func TestGetJSON_RateLimitThenSuccess(t *testing.T) {
	mock := testutil.NewMockProvider()
	defer mock.Close()
	mock.SetPlayerResponses("42",
		testutil.NewRateLimitResponse("7"),
		testutil.NewGameLogResponse("BOS", 3),
	)

	c, rec := newTestClient(t, mock.URL(), nil)

	body, err := c.GetJSON(context.Background(), EndpointGamesForPlayer, playerParams("42"))
	if err != nil {
		t.Fatalf("GetJSON() error = %v, want success after 429", err)
	}
	if len(body) == 0 {
		t.Error("GetJSON() returned empty body")
	}
	if hits := mock.PlayerHits("42"); hits != 2 {
		t.Errorf("provider hits = %d, want 2", hits)
	}
	if got, want := rec.Sleeps(), []time.Duration{7 * time.Second}; !reflect.DeepEqual(got, want) {
		t.Errorf("sleeps = %v, want %v", got, want)
	}
}

func TestGetJSON_RateLimitDefaultRetryAfter(t *testing.T) {
	mock := testutil.NewMockProvider()
	defer mock.Close()
	mock.SetPlayerResponses("42",
		testutil.NewRateLimitResponse(""),
		testutil.NewGameLogResponse("BOS", 1),
	)

	c, rec := newTestClient(t, mock.URL(), nil)

	if _, err := c.GetJSON(context.Background(), EndpointGamesForPlayer, playerParams("42")); err != nil {
		t.Fatalf("GetJSON() error = %v", err)
	}
	if got, want := rec.Sleeps(), []time.Duration{60 * time.Second}; !reflect.DeepEqual(got, want) {
		t.Errorf("sleeps = %v, want %v", got, want)
	}
}

func TestGetJSON_RateLimitExhausted(t *testing.T) {
	mock := testutil.NewMockProvider()
	defer mock.Close()
	mock.SetPlayerResponses("42", testutil.NewRateLimitResponse("1"))

	c, rec := newTestClient(t, mock.URL(), func(cfg *Config) {
		cfg.MaxRateLimitRetries = 2
	})

	_, err := c.GetJSON(context.Background(), EndpointGamesForPlayer, playerParams("42"))
	if !errors.Is(err, ErrRateLimitExhausted) {
		t.Fatalf("error = %v, want ErrRateLimitExhausted", err)
	}

	var apiErr *APIError
	if !errors.As(err, &apiErr) {
		t.Fatalf("error %T is not *APIError", err)
	}
	if apiErr.StatusCode != http.StatusTooManyRequests {
		t.Errorf("StatusCode = %d, want 429", apiErr.StatusCode)
	}
	if hits := mock.PlayerHits("42"); hits != 3 {
		t.Errorf("provider hits = %d, want 3", hits)
	}
	if n := len(rec.Sleeps()); n != 2 {
		t.Errorf("sleeps = %d, want 2", n)
	}
}

func TestGetJSON_ServerErrorRetryExhausted(t *testing.T) {
	mock := testutil.NewMockProvider()
	defer mock.Close()
	mock.SetPlayerResponses("500", testutil.NewServerErrorResponse())

	c, rec := newTestClient(t, mock.URL(), nil)

	_, err := c.GetJSON(context.Background(), EndpointGamesForPlayer, playerParams("500"))
	if !errors.Is(err, ErrRetryExhausted) {
		t.Fatalf("error = %v, want ErrRetryExhausted", err)
	}

	var apiErr *APIError
	if !errors.As(err, &apiErr) || apiErr.StatusCode != http.StatusInternalServerError {
		t.Errorf("error should wrap the 500 APIError, got %v", err)
	}

	if hits := mock.PlayerHits("500"); hits != 6 {
		t.Errorf("provider hits = %d, want 6 (1 + 5 retries)", hits)
	}

	want := []time.Duration{
		500 * time.Millisecond,
		1 * time.Second,
		2 * time.Second,
		4 * time.Second,
		8 * time.Second,
	}
	if got := rec.Sleeps(); !reflect.DeepEqual(got, want) {
		t.Errorf("backoff = %v, want %v", got, want)
	}
}

func TestGetJSON_ServerErrorRecovers(t *testing.T) {
	mock := testutil.NewMockProvider()
	defer mock.Close()
	mock.SetPlayerResponses("7",
		testutil.MockResponse{StatusCode: http.StatusBadGateway},
		testutil.MockResponse{StatusCode: http.StatusServiceUnavailable},
		testutil.NewGameLogResponse("DEN", 2),
	)

	c, rec := newTestClient(t, mock.URL(), nil)

	if _, err := c.GetJSON(context.Background(), EndpointGamesForPlayer, playerParams("7")); err != nil {
		t.Fatalf("GetJSON() error = %v", err)
	}
	if hits := mock.PlayerHits("7"); hits != 3 {
		t.Errorf("provider hits = %d, want 3", hits)
	}
	want := []time.Duration{500 * time.Millisecond, 1 * time.Second}
	if got := rec.Sleeps(); !reflect.DeepEqual(got, want) {
		t.Errorf("backoff = %v, want %v", got, want)
	}
}

func TestGetJSON_NoRetryStatuses(t *testing.T) {
	tests := []struct {
		name   string
		status int
		class  ErrorClass
	}{
		{"not found", http.StatusNotFound, ErrorClassClient},
		{"forbidden", http.StatusForbidden, ErrorClassClient},
		{"not implemented", http.StatusNotImplemented, ErrorClassServer},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mock := testutil.NewMockProvider()
			defer mock.Close()
			mock.SetPlayerResponses("9", testutil.MockResponse{StatusCode: tt.status})

			c, rec := newTestClient(t, mock.URL(), nil)

			_, err := c.GetJSON(context.Background(), EndpointGamesForPlayer, playerParams("9"))
			var apiErr *APIError
			if !errors.As(err, &apiErr) {
				t.Fatalf("error = %v, want *APIError", err)
			}
			if apiErr.StatusCode != tt.status || apiErr.ErrorClass != tt.class {
				t.Errorf("APIError = %d/%s, want %d/%s", apiErr.StatusCode, apiErr.ErrorClass, tt.status, tt.class)
			}
			if hits := mock.PlayerHits("9"); hits != 1 {
				t.Errorf("provider hits = %d, want 1", hits)
			}
			if n := len(rec.Sleeps()); n != 0 {
				t.Errorf("sleeps = %d, want 0", n)
			}
		})
	}
}

func TestGetJSON_NetworkErrorRetried(t *testing.T) {
	mock := testutil.NewMockProvider()
	addr := mock.URL()
	mock.Close()

	c, rec := newTestClient(t, addr, func(cfg *Config) {
		cfg.Retry.MaxRetries = 2
	})

	_, err := c.GetJSON(context.Background(), EndpointGamesForPlayer, playerParams("1"))
	if !errors.Is(err, ErrRetryExhausted) {
		t.Fatalf("error = %v, want ErrRetryExhausted", err)
	}
	want := []time.Duration{500 * time.Millisecond, 1 * time.Second}
	if got := rec.Sleeps(); !reflect.DeepEqual(got, want) {
		t.Errorf("backoff = %v, want %v", got, want)
	}
}

func TestGetJSON_RequestTimeout(t *testing.T) {
	mock := testutil.NewMockProvider()
	defer mock.Close()
	slow := testutil.NewGameLogResponse("MIA", 1)
	slow.Delay = 300 * time.Millisecond
	mock.SetPlayerResponses("slow", slow)

	c, _ := newTestClient(t, mock.URL(), func(cfg *Config) {
		cfg.RequestTimeout = 50 * time.Millisecond
		cfg.Retry.MaxRetries = 0
	})

	_, err := c.GetJSON(context.Background(), EndpointGamesForPlayer, playerParams("slow"))
	if !errors.Is(err, ErrRetryExhausted) {
		t.Fatalf("error = %v, want ErrRetryExhausted after timeout", err)
	}
}

func TestGetJSON_ContextCancelled(t *testing.T) {
	mock := testutil.NewMockProvider()
	defer mock.Close()

	c, _ := newTestClient(t, mock.URL(), nil)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := c.GetJSON(ctx, EndpointGamesForPlayer, playerParams("1"))
	if !errors.Is(err, ErrContextCancelled) {
		t.Fatalf("error = %v, want ErrContextCancelled", err)
	}
	if n := mock.RequestCount(); n != 0 {
		t.Errorf("requests = %d, want 0", n)
	}
}

func TestGetJSON_AcquiresPerAttempt(t *testing.T) {
	mock := testutil.NewMockProvider()
	defer mock.Close()
	mock.SetPlayerResponses("3",
		testutil.NewServerErrorResponse(),
		testutil.NewRateLimitResponse("1"),
		testutil.NewGameLogResponse("PHX", 1),
	)

	window := newTestWindow()
	cfg := DefaultConfig("key", "host")
	cfg.BaseURL = mock.URL()
	c, err := New(cfg, window)
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	rec := &sleepRecorder{}
	c.SetSleeper(rec.Sleep)

	if _, err := c.GetJSON(context.Background(), EndpointGamesForPlayer, playerParams("3")); err != nil {
		t.Fatalf("GetJSON() error = %v", err)
	}
	if got := window.Snapshot().InMinute; got != 3 {
		t.Errorf("window requests = %d, want 3 (one per attempt)", got)
	}

	// The last sleep is the post-success jitter.
	sleeps := rec.Sleeps()
	if len(sleeps) != 3 {
		t.Fatalf("sleeps = %v, want backoff, Retry-After and jitter", sleeps)
	}
	if j := sleeps[2]; j < 100*time.Millisecond || j > 500*time.Millisecond {
		t.Errorf("success jitter = %v, want within [100ms, 500ms]", j)
	}
}

func TestGamesForPlayer(t *testing.T) {
	mock := testutil.NewMockProvider()
	defer mock.Close()

	var gotQuery url.Values
	mock.SetHandler(EndpointGamesForPlayer, func(w http.ResponseWriter, r *http.Request) {
		gotQuery = r.URL.Query()
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(testutil.GameLogBody("GSW", 4)))
	})

	c, _ := newTestClient(t, mock.URL(), func(cfg *Config) { cfg.Season = "2024" })

	games, err := c.GamesForPlayer(context.Background(), "28268405032")
	if err != nil {
		t.Fatalf("GamesForPlayer() error = %v", err)
	}
	if len(games) != 4 {
		t.Errorf("games = %d, want 4", len(games))
	}

	if gotQuery.Get("playerID") != "28268405032" {
		t.Errorf("playerID = %q", gotQuery.Get("playerID"))
	}
	if gotQuery.Get("season") != "2024" {
		t.Errorf("season = %q, want 2024", gotQuery.Get("season"))
	}
	if gotQuery.Get("fantasyPoints") != "true" || gotQuery.Get("ast") != "1.5" {
		t.Errorf("fantasy point params missing: %v", gotQuery)
	}
}

func TestGamesForPlayer_NoGames(t *testing.T) {
	bodies := map[string]string{
		"empty object": `{"statusCode":200,"body":{}}`,
		"empty list":   `{"statusCode":200,"body":[]}`,
		"string body":  `{"statusCode":200,"body":"no games"}`,
		"missing body": `{"statusCode":200}`,
	}

	for name, body := range bodies {
		t.Run(name, func(t *testing.T) {
			mock := testutil.NewMockProvider()
			defer mock.Close()
			mock.SetResponse(EndpointGamesForPlayer, testutil.MockResponse{StatusCode: http.StatusOK, Body: body})

			c, _ := newTestClient(t, mock.URL(), nil)

			_, err := c.GamesForPlayer(context.Background(), "1")
			if !errors.Is(err, ErrNoGames) {
				t.Errorf("error = %v, want ErrNoGames", err)
			}
		})
	}
}

func TestGamesForPlayer_Malformed(t *testing.T) {
	mock := testutil.NewMockProvider()
	defer mock.Close()
	mock.SetResponse(EndpointGamesForPlayer, testutil.MockResponse{StatusCode: http.StatusOK, Body: `not json`})

	c, _ := newTestClient(t, mock.URL(), nil)

	_, err := c.GamesForPlayer(context.Background(), "1")
	if !errors.Is(err, ErrMalformedResponse) {
		t.Errorf("error = %v, want ErrMalformedResponse", err)
	}
}

func TestPlayerList(t *testing.T) {
	mock := testutil.NewMockProvider()
	defer mock.Close()
	mock.SetResponse(EndpointPlayerList, testutil.MockResponse{
		StatusCode: http.StatusOK,
		Body:       testutil.PlayerListBody(map[string]string{"1": "BOS", "2": "LAL"}),
	})

	c, _ := newTestClient(t, mock.URL(), nil)

	players, err := c.PlayerList(context.Background())
	if err != nil {
		t.Fatalf("PlayerList() error = %v", err)
	}
	if len(players) != 2 {
		t.Errorf("players = %d, want 2", len(players))
	}
}

// setupTestRedis creates a test Redis client.
func setupTestRedis(t *testing.T) *redis.Client {
	t.Helper()

	client := redis.NewClient(&redis.Options{
		Addr: "localhost:6379",
		DB:   15,
	})

	ctx := context.Background()
	if err := client.Ping(ctx).Err(); err != nil {
		t.Skipf("Redis not available for testing: %v", err)
	}
	if err := client.FlushDB(ctx).Err(); err != nil {
		t.Fatalf("Failed to flush test DB: %v", err)
	}

	t.Cleanup(func() {
		client.FlushDB(context.Background())
		client.Close()
	})

	return client
}

func TestGetJSON_CacheHit(t *testing.T) {
	redisClient := setupTestRedis(t)

	mock := testutil.NewMockProvider()
	defer mock.Close()
	mock.SetPlayerResponses("11", testutil.NewGameLogResponse("CHI", 2))

	c, _ := newTestClient(t, mock.URL(), func(cfg *Config) {
		cfg.Cache = cache.NewManager(redisClient)
		cfg.CacheTTL = time.Minute
	})

	ctx := context.Background()
	first, err := c.GetJSON(ctx, EndpointGamesForPlayer, playerParams("11"))
	if err != nil {
		t.Fatalf("first GetJSON() error = %v", err)
	}
	second, err := c.GetJSON(ctx, EndpointGamesForPlayer, playerParams("11"))
	if err != nil {
		t.Fatalf("second GetJSON() error = %v", err)
	}

	if string(first) != string(second) {
		t.Error("cached body differs from fetched body")
	}
	if hits := mock.PlayerHits("11"); hits != 1 {
		t.Errorf("provider hits = %d, want 1", hits)
	}
}

func TestNew_Anonymous(t *testing.T) {
	mock := testutil.NewMockProvider()
	defer mock.Close()
	mock.SetResponse("/projections", testutil.MockResponse{StatusCode: http.StatusOK, Body: `{"data":[]}`})

	cfg := DefaultConfig("", "")
	cfg.BaseURL = mock.URL()
	cfg.Anonymous = true
	c, err := New(cfg, newTestWindow())
	if err != nil {
		t.Fatalf("New() anonymous error = %v", err)
	}
	defer c.Close()

	if _, err := c.GetJSON(context.Background(), "/projections", url.Values{"league_id": {"7"}}); err != nil {
		t.Fatalf("GetJSON() error = %v", err)
	}
	h := mock.LastRequestHeader()
	if h.Get("X-Rapidapi-Key") != "" || h.Get("X-Rapidapi-Host") != "" {
		t.Errorf("anonymous client sent RapidAPI headers: %v", h)
	}
}

func TestGetJSON_JitterInterruptedStillReturnsBody(t *testing.T) {
	mock := testutil.NewMockProvider()
	defer mock.Close()
	mock.SetPlayerResponses("5", testutil.NewGameLogResponse("PHI", 1))

	c, _ := newTestClient(t, mock.URL(), nil)
	var buf bytes.Buffer
	c.logger = zerolog.New(&buf).Level(zerolog.DebugLevel)
	c.SetSleeper(func(ctx context.Context, d time.Duration) error { return context.Canceled })

	body, err := c.GetJSON(context.Background(), EndpointGamesForPlayer, playerParams("5"))
	if err != nil {
		t.Fatalf("GetJSON() error = %v", err)
	}
	if len(body) == 0 {
		t.Error("GetJSON() returned empty body")
	}
	if !strings.Contains(buf.String(), "Success jitter interrupted") {
		t.Errorf("expected debug log for interrupted jitter, got %q", buf.String())
	}
}

func TestInjuryList(t *testing.T) {
	mock := testutil.NewMockProvider()
	defer mock.Close()

	var query url.Values
	mock.SetHandler(EndpointInjuryList, func(w http.ResponseWriter, r *http.Request) {
		query = r.URL.Query()
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(testutil.InjuryListBody(
			map[string]string{"playerID": "1", "designation": "Out"},
			map[string]string{"playerID": "2", "designation": "Day-To-Day"},
		)))
	})

	c, _ := newTestClient(t, mock.URL(), nil)

	reports, err := c.InjuryList(context.Background(), 3)
	if err != nil {
		t.Fatalf("InjuryList() error = %v", err)
	}
	if len(reports) != 2 {
		t.Errorf("reports = %d, want 2", len(reports))
	}
	if got := query.Get("numberOfDays"); got != "3" {
		t.Errorf("numberOfDays = %q, want 3", got)
	}
}

func TestInjuryList_Empty(t *testing.T) {
	mock := testutil.NewMockProvider()
	defer mock.Close()
	mock.SetResponse(EndpointInjuryList, testutil.MockResponse{StatusCode: http.StatusOK, Body: testutil.InjuryListBody()})

	c, _ := newTestClient(t, mock.URL(), nil)

	reports, err := c.InjuryList(context.Background(), 0)
	if err != nil {
		t.Fatalf("InjuryList() error = %v", err)
	}
	if len(reports) != 0 {
		t.Errorf("reports = %d, want 0", len(reports))
	}
}

func TestBettingOdds(t *testing.T) {
	mock := testutil.NewMockProvider()
	defer mock.Close()

	var query url.Values
	mock.SetHandler(EndpointBettingOdds, func(w http.ResponseWriter, r *http.Request) {
		query = r.URL.Query()
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(testutil.BettingOddsBody(
			[]string{"20250115_LAL@BOS", "20250115_GS@DEN"},
			map[string]testutil.OddsLine{"draftkings": {HomeSpread: "-4.5"}},
		)))
	})

	c, _ := newTestClient(t, mock.URL(), nil)

	games, err := c.BettingOdds(context.Background(), "20250115")
	if err != nil {
		t.Fatalf("BettingOdds() error = %v", err)
	}
	if len(games) != 2 {
		t.Errorf("games = %d, want 2", len(games))
	}
	if query.Get("gameDate") != "20250115" || query.Get("itemFormat") != "map" {
		t.Errorf("query = %v", query)
	}
}

func TestBettingOdds_NoGames(t *testing.T) {
	mock := testutil.NewMockProvider()
	defer mock.Close()

	c, _ := newTestClient(t, mock.URL(), nil)

	games, err := c.BettingOdds(context.Background(), "20250704")
	if err != nil {
		t.Fatalf("BettingOdds() error = %v", err)
	}
	if len(games) != 0 {
		t.Errorf("games = %d, want 0", len(games))
	}
}
