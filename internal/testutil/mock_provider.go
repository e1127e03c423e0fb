// Package testutil provides testing utilities for the Tank01 client.
package testutil

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sort"
	"strings"
	"sync"
	"time"
)

// MockResponse defines the behavior for a mock provider response.
type MockResponse struct {
	StatusCode int
	Body       string
	Headers    map[string]string
	Delay      time.Duration
}

// MockProvider is a configurable mock Tank01 server for testing.
//
// Game log responses can be set per player id; requests for unknown players
// fall through to the path handler, then to a default empty 200.
type MockProvider struct {
	server *httptest.Server

	mu        sync.Mutex
	handlers  map[string]http.HandlerFunc
	players   map[string][]MockResponse
	hits      map[string]int
	requests  int
	lastHeads http.Header
}

// NewMockProvider starts a new mock provider.
func NewMockProvider() *MockProvider {
	m := &MockProvider{
		handlers: make(map[string]http.HandlerFunc),
		players:  make(map[string][]MockResponse),
		hits:     make(map[string]int),
	}

	m.server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		playerID := r.URL.Query().Get("playerID")

		m.mu.Lock()
		m.requests++
		m.lastHeads = r.Header.Clone()
		if playerID != "" {
			m.hits[playerID]++
		}
		resp, scripted := m.nextPlayerResponse(playerID)
		handler, exists := m.handlers[r.URL.Path]
		m.mu.Unlock()

		switch {
		case scripted:
			writeResponse(w, resp)
		case exists:
			handler(w, r)
		default:
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusOK)
			_, _ = w.Write([]byte(`{"statusCode":200,"body":{}}`))
		}
	}))

	return m
}

// nextPlayerResponse pops the next scripted response for playerID. The last
// scripted response repeats. Caller holds mu.
func (m *MockProvider) nextPlayerResponse(playerID string) (MockResponse, bool) {
	script := m.players[playerID]
	if len(script) == 0 {
		return MockResponse{}, false
	}
	resp := script[0]
	if len(script) > 1 {
		m.players[playerID] = script[1:]
	}
	return resp, true
}

func writeResponse(w http.ResponseWriter, resp MockResponse) {
	if resp.Delay > 0 {
		time.Sleep(resp.Delay)
	}
	for key, value := range resp.Headers {
		w.Header().Set(key, value)
	}
	w.WriteHeader(resp.StatusCode)
	if resp.Body != "" {
		_, _ = w.Write([]byte(resp.Body))
	}
}

// URL returns the mock server URL.
func (m *MockProvider) URL() string {
	return m.server.URL
}

// Close shuts down the mock server.
func (m *MockProvider) Close() {
	m.server.Close()
}

// SetHandler sets a custom handler for a specific path.
func (m *MockProvider) SetHandler(path string, handler http.HandlerFunc) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.handlers[path] = handler
}

// SetResponse configures a fixed response for a path.
func (m *MockProvider) SetResponse(path string, resp MockResponse) {
	m.SetHandler(path, func(w http.ResponseWriter, r *http.Request) {
		writeResponse(w, resp)
	})
}

// SetPlayerResponses scripts the responses for one player id, in order.
// The last response repeats for any further request.
func (m *MockProvider) SetPlayerResponses(playerID string, responses ...MockResponse) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.players[playerID] = responses
}

// RequestCount returns the number of requests made to the server.
func (m *MockProvider) RequestCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.requests
}

// PlayerHits returns how many requests named playerID.
func (m *MockProvider) PlayerHits(playerID string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.hits[playerID]
}

// LastRequestHeader returns the headers of the most recent request.
func (m *MockProvider) LastRequestHeader() http.Header {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.lastHeads.Clone()
}

// GameLogBody builds a getNBAGamesForPlayer body with n games for a player of
// team. Games alternate home and away against BOS and LAL starting at
// 2024-10-22.
func GameLogBody(team string, n int) string {
	opponents := []string{"BOS", "LAL"}
	start := time.Date(2024, 10, 22, 0, 0, 0, 0, time.UTC)

	games := make(map[string]map[string]string, n)
	for i := 0; i < n; i++ {
		date := start.AddDate(0, 0, 2*i).Format("20060102")
		opp := opponents[i%len(opponents)]
		var id string
		if i%2 == 0 {
			id = fmt.Sprintf("%s_%s@%s", date, opp, team)
		} else {
			id = fmt.Sprintf("%s_%s@%s", date, team, opp)
		}
		games[id] = map[string]string{
			"gameID":        id,
			"teamAbv":       team,
			"pts":           fmt.Sprintf("%d", 10+i),
			"reb":           "5",
			"ast":           "4",
			"stl":           "1",
			"blk":           "0",
			"TOV":           "2",
			"mins":          "30",
			"fantasyPoints": "24.25",
		}
	}

	data, _ := json.Marshal(map[string]any{"statusCode": 200, "body": games})
	return string(data)
}

// PlayerListBody builds a getNBAPlayerList body from playerID → team pairs.
// Entries are emitted in player id order.
func PlayerListBody(teams map[string]string) string {
	ids := make([]string, 0, len(teams))
	for id := range teams {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	players := make([]map[string]string, 0, len(ids))
	for _, id := range ids {
		players = append(players, map[string]string{
			"playerID": id,
			"pos":      "G",
			"team":     teams[id],
			"longName": "Player " + id,
			"teamID":   "1",
		})
	}

	data, _ := json.Marshal(map[string]any{"statusCode": 200, "body": players})
	return string(data)
}

// NewGameLogResponse creates a 200 response with n games.
func NewGameLogResponse(team string, n int) MockResponse {
	return MockResponse{
		StatusCode: http.StatusOK,
		Body:       GameLogBody(team, n),
		Headers:    map[string]string{"Content-Type": "application/json"},
	}
}

// NewRateLimitResponse creates a 429 Too Many Requests response.
// An empty retryAfter omits the header.
func NewRateLimitResponse(retryAfter string) MockResponse {
	resp := MockResponse{
		StatusCode: http.StatusTooManyRequests,
		Body:       `{"message":"Too many requests"}`,
		Headers:    map[string]string{"Content-Type": "application/json"},
	}
	if retryAfter != "" {
		resp.Headers["Retry-After"] = retryAfter
	}
	return resp
}

// NewServerErrorResponse creates a 500 Internal Server Error response.
func NewServerErrorResponse() MockResponse {
	return MockResponse{
		StatusCode: http.StatusInternalServerError,
		Body:       `{"error":"Internal server error"}`,
		Headers:    map[string]string{"Content-Type": "application/json"},
	}
}

// NewNotFoundResponse creates a 404 Not Found response.
func NewNotFoundResponse() MockResponse {
	return MockResponse{
		StatusCode: http.StatusNotFound,
		Body:       `{"error":"Not found"}`,
		Headers:    map[string]string{"Content-Type": "application/json"},
	}
}

// InjuryListBody builds a getNBAInjuryList body from report entries, each a
// map of provider fields (playerID, designation, injDate, ...).
func InjuryListBody(reports ...map[string]string) string {
	if reports == nil {
		reports = []map[string]string{}
	}
	data, _ := json.Marshal(map[string]any{"statusCode": 200, "body": reports})
	return string(data)
}

// OddsLine is one bookmaker's line in a betting odds fixture.
type OddsLine struct {
	HomeSpread    string
	AwaySpread    string
	TotalOver     string
	TotalUnder    string
	HomeMoneyline string
	AwayMoneyline string
}

// BettingOddsBody builds a getNBABettingOdds body (itemFormat=map) with one
// game per id. Every game carries lines for the given bookmakers.
func BettingOddsBody(gameIDs []string, bookmakers map[string]OddsLine) string {
	games := make(map[string]map[string]any, len(gameIDs))
	for _, id := range gameIDs {
		away, home := "", ""
		if _, teams, ok := strings.Cut(id, "_"); ok {
			away, home, _ = strings.Cut(teams, "@")
		}
		game := map[string]any{
			"gameID":              id,
			"gameDate":            id[:8],
			"awayTeam":            away,
			"homeTeam":            home,
			"last_updated_e_time": "1736971200.0",
		}
		for book, line := range bookmakers {
			game[book] = map[string]string{
				"homeTeamSpread": line.HomeSpread,
				"awayTeamSpread": line.AwaySpread,
				"totalOver":      line.TotalOver,
				"totalUnder":     line.TotalUnder,
				"homeTeamMLOdds": line.HomeMoneyline,
				"awayTeamMLOdds": line.AwayMoneyline,
			}
		}
		games[id] = game
	}
	data, _ := json.Marshal(map[string]any{"statusCode": 200, "body": games})
	return string(data)
}

// ProjectionFixture is one PrizePicks projection with its player and stat
// average.
type ProjectionFixture struct {
	ID        string
	PlayerID  string
	Name      string
	Team      string
	StatType  string
	Line      float64
	Average   float64
	StartTime time.Time
}

// ProjectionsBody builds a PrizePicks /projections JSON:API document.
func ProjectionsBody(fixtures ...ProjectionFixture) string {
	data := make([]map[string]any, 0, len(fixtures))
	included := make([]map[string]any, 0, 2*len(fixtures))

	for _, f := range fixtures {
		data = append(data, map[string]any{
			"type": "projection",
			"id":   f.ID,
			"attributes": map[string]any{
				"line_score":  f.Line,
				"stat_type":   f.StatType,
				"start_time":  f.StartTime.Format(time.RFC3339),
				"status":      "pre_game",
				"description": "vs BOS",
				"game_id":     "game-" + f.ID,
				"odds_type":   "standard",
			},
			"relationships": map[string]any{
				"new_player":   map[string]any{"data": map[string]string{"type": "new_player", "id": f.PlayerID}},
				"stat_average": map[string]any{"data": map[string]string{"type": "stat_average", "id": "avg-" + f.ID}},
			},
		})
		included = append(included,
			map[string]any{
				"type": "new_player",
				"id":   f.PlayerID,
				"attributes": map[string]any{
					"display_name": f.Name,
					"team":         f.Team,
					"position":     "G",
					"image_url":    "https://img.example/" + f.PlayerID + ".png",
				},
			},
			map[string]any{
				"type": "stat_average",
				"id":   "avg-" + f.ID,
				"attributes": map[string]any{
					"average":   f.Average,
					"max_value": f.Average * 2,
				},
			},
		)
	}

	body, _ := json.Marshal(map[string]any{"data": data, "included": included})
	return string(body)
}
