// Package odds syncs per-game betting lines from the provider into storage.
//
// The provider reports every bookmaker it tracks per game; one line per game
// is kept, taken from the first bookmaker in Preference that has any value.
package odds

import (
	"context"
	"encoding/json"
	"fmt"
	"math"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/Sternrassler/nba-ingest/pkg/teams"
	"github.com/rs/zerolog/log"
)

// DateLayout is the provider's game date format.
const DateLayout = "20060102"

// Preference orders the bookmakers a line is taken from.
var Preference = []string{"draftkings", "fanduel", "betmgm", "bet365", "caesars_sportsbook"}

// GameOdds is the stored line for one game. Missing numbers are nil.
type GameOdds struct {
	GameID        string    `json:"game_id"`
	GameDate      string    `json:"game_date"`
	HomeTeam      string    `json:"home_team"`
	AwayTeam      string    `json:"away_team"`
	Bookmaker     string    `json:"bookmaker"`
	HomeSpread    *float64  `json:"home_spread"`
	AwaySpread    *float64  `json:"away_spread"`
	TotalOver     *float64  `json:"total_over"`
	TotalUnder    *float64  `json:"total_under"`
	HomeMoneyline *float64  `json:"home_moneyline"`
	AwayMoneyline *float64  `json:"away_moneyline"`
	LastUpdated   time.Time `json:"last_updated"`
}

type providerGame struct {
	GameID      string `json:"gameID"`
	GameDate    string `json:"gameDate"`
	HomeTeam    string `json:"homeTeam"`
	AwayTeam    string `json:"awayTeam"`
	LastUpdated string `json:"last_updated_e_time"`
}

type providerLine struct {
	HomeTeamSpread string `json:"homeTeamSpread"`
	AwayTeamSpread string `json:"awayTeamSpread"`
	TotalOver      string `json:"totalOver"`
	TotalUnder     string `json:"totalUnder"`
	HomeTeamMLOdds string `json:"homeTeamMLOdds"`
	AwayTeamMLOdds string `json:"awayTeamMLOdds"`
}

func (l providerLine) empty() bool {
	return number(l.HomeTeamSpread) == nil && number(l.AwayTeamSpread) == nil &&
		number(l.TotalOver) == nil && number(l.TotalUnder) == nil &&
		number(l.HomeTeamMLOdds) == nil && number(l.AwayTeamMLOdds) == nil
}

// Fetcher returns the raw odds for one game date, keyed by game id.
type Fetcher interface {
	BettingOdds(ctx context.Context, gameDate string) (map[string]json.RawMessage, error)
}

// Store persists game odds.
type Store interface {
	UpsertGameOdds(ctx context.Context, list []GameOdds) (int, error)
}

// Build converts one date's raw games into lines, ordered by game id. Games
// that are undecodable, lack teams or carry no line from a known bookmaker
// are skipped.
func Build(raw map[string]json.RawMessage) (list []GameOdds, skipped int) {
	ids := make([]string, 0, len(raw))
	for id := range raw {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	list = make([]GameOdds, 0, len(raw))
	for _, id := range ids {
		g, ok := buildGame(id, raw[id])
		if !ok {
			skipped++
			continue
		}
		list = append(list, g)
	}
	return list, skipped
}

func buildGame(key string, raw json.RawMessage) (GameOdds, bool) {
	var game providerGame
	if err := json.Unmarshal(raw, &game); err != nil {
		return GameOdds{}, false
	}
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(raw, &fields); err != nil {
		return GameOdds{}, false
	}
	if strings.TrimSpace(game.HomeTeam) == "" || strings.TrimSpace(game.AwayTeam) == "" {
		return GameOdds{}, false
	}

	for _, book := range Preference {
		data, ok := fields[book]
		if !ok {
			continue
		}
		var line providerLine
		if json.Unmarshal(data, &line) != nil || line.empty() {
			continue
		}

		id := strings.TrimSpace(game.GameID)
		if id == "" {
			id = key
		}
		return GameOdds{
			GameID:        id,
			GameDate:      gameDate(game.GameDate, id),
			HomeTeam:      teams.Normalize(game.HomeTeam),
			AwayTeam:      teams.Normalize(game.AwayTeam),
			Bookmaker:     book,
			HomeSpread:    number(line.HomeTeamSpread),
			AwaySpread:    number(line.AwayTeamSpread),
			TotalOver:     number(line.TotalOver),
			TotalUnder:    number(line.TotalUnder),
			HomeMoneyline: number(line.HomeTeamMLOdds),
			AwayMoneyline: number(line.AwayTeamMLOdds),
			LastUpdated:   epoch(game.LastUpdated),
		}, true
	}
	return GameOdds{}, false
}

// number parses a provider odds value such as "-4.5", "+150" or "PK".
// A pick'em spread is 0 and an even moneyline +100; blanks and anything else
// are nil.
func number(s string) *float64 {
	s = strings.ToUpper(strings.TrimSpace(s))
	switch s {
	case "PK":
		s = "0"
	case "EVEN":
		s = "100"
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil || math.IsNaN(v) || math.IsInf(v, 0) {
		return nil
	}
	return &v
}

// epoch parses fractional unix seconds.
func epoch(s string) time.Time {
	v, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
	if err != nil || v <= 0 {
		return time.Time{}
	}
	sec, frac := math.Modf(v)
	return time.Unix(int64(sec), int64(frac*1e9)).UTC()
}

// gameDate returns the YYYY-MM-DD date from the provider field, falling back
// to the game id prefix.
func gameDate(field, gameID string) string {
	for _, s := range []string{field, gameID} {
		if len(s) < 8 {
			continue
		}
		if t, err := time.Parse(DateLayout, s[:8]); err == nil {
			return t.Format("2006-01-02")
		}
	}
	return ""
}

// SyncResult reports an odds sync.
type SyncResult struct {
	Dates   int
	Games   int
	Stored  int
	Skipped int
}

// Sync fetches and stores the lines for each date (YYYYMMDD) in order,
// stopping at the first failure.
func Sync(ctx context.Context, fetcher Fetcher, store Store, dates ...string) (SyncResult, error) {
	var result SyncResult
	for _, date := range dates {
		if _, err := time.Parse(DateLayout, date); err != nil {
			return result, fmt.Errorf("invalid game date %q: want YYYYMMDD", date)
		}

		raw, err := fetcher.BettingOdds(ctx, date)
		if err != nil {
			return result, fmt.Errorf("fetch odds for %s: %w", date, err)
		}
		list, skipped := Build(raw)

		stored, err := store.UpsertGameOdds(ctx, list)
		if err != nil {
			return result, fmt.Errorf("store odds for %s: %w", date, err)
		}

		result.Dates++
		result.Games += len(raw)
		result.Stored += stored
		result.Skipped += skipped

		log.Debug().
			Str("component", "odds").
			Str("game_date", date).
			Int("games", len(raw)).
			Int("stored", stored).
			Msg("Odds date synced")
	}

	log.Info().
		Str("component", "odds").
		Int("dates", result.Dates).
		Int("games", result.Games).
		Int("stored", result.Stored).
		Int("skipped", result.Skipped).
		Msg("Odds synced")

	return result, nil
}

// Dates returns n consecutive YYYYMMDD dates starting at from.
func Dates(from time.Time, n int) []string {
	if n < 1 {
		n = 1
	}
	out := make([]string, n)
	for i := range out {
		out[i] = from.AddDate(0, 0, i).Format(DateLayout)
	}
	return out
}
