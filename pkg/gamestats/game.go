// Package gamestats turns Tank01 player game logs into enriched Game records
// and runs the per-player fetch, build and store pipeline.
package gamestats

import (
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/Sternrassler/nba-ingest/pkg/teams"
)

// ErrInvalidGameID is returned for ids not of the form YYYYMMDD_AWAY@HOME.
var ErrInvalidGameID = errors.New("invalid game id")

const gameDateLayout = "20060102"

// Game is one player's line in one game, enriched with the date, opponent and
// home flag derived from the game id.
type Game struct {
	GameID        string          `json:"game_id"`
	PlayerID      string          `json:"player_id"`
	Team          string          `json:"team"`
	Opponent      string          `json:"opponent"`
	GameDate      time.Time       `json:"game_date"`
	IsHome        bool            `json:"is_home"`
	Minutes       string          `json:"minutes"`
	Points        float64         `json:"points"`
	Rebounds      float64         `json:"rebounds"`
	Assists       float64         `json:"assists"`
	Steals        float64         `json:"steals"`
	Blocks        float64         `json:"blocks"`
	Turnovers     float64         `json:"turnovers"`
	FantasyPoints float64         `json:"fantasy_points"`
	Raw           json.RawMessage `json:"raw,omitempty"`
}

// ParseGameID splits a "YYYYMMDD_AWAY@HOME" id and resolves the opponent and
// home flag from team's point of view. Abbreviations are normalised, so "GS"
// and "GSW" compare equal. A team in neither slot is treated as away.
func ParseGameID(gameID, team string) (date time.Time, opponent string, isHome bool, err error) {
	datePart, teamsPart, ok := strings.Cut(gameID, "_")
	if !ok {
		return time.Time{}, "", false, fmt.Errorf("%w %q: missing '_'", ErrInvalidGameID, gameID)
	}

	date, err = time.Parse(gameDateLayout, datePart)
	if err != nil {
		return time.Time{}, "", false, fmt.Errorf("%w %q: %v", ErrInvalidGameID, gameID, err)
	}

	away, home, ok := strings.Cut(teamsPart, "@")
	if !ok || away == "" || home == "" {
		return time.Time{}, "", false, fmt.Errorf("%w %q: expected AWAY@HOME", ErrInvalidGameID, gameID)
	}
	away, home = teams.Normalize(away), teams.Normalize(home)
	team = teams.Normalize(team)

	isHome = team == home
	opponent = away
	if team == away {
		opponent = home
	}
	return date, opponent, isHome, nil
}

// number decodes provider stats sent either as JSON numbers or strings.
type number float64

func (n *number) UnmarshalJSON(data []byte) error {
	s := strings.Trim(string(data), `"`)
	s = strings.TrimSpace(s)
	if s == "" || s == "null" {
		*n = 0
		return nil
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return fmt.Errorf("parse stat %q: %w", s, err)
	}
	*n = number(f)
	return nil
}

// providerGame is the subset of a Tank01 game log entry we keep.
type providerGame struct {
	GameID        string `json:"gameID"`
	TeamAbv       string `json:"teamAbv"`
	Team          string `json:"team"`
	Mins          string `json:"mins"`
	Pts           number `json:"pts"`
	Reb           number `json:"reb"`
	Ast           number `json:"ast"`
	Stl           number `json:"stl"`
	Blk           number `json:"blk"`
	TOV           number `json:"TOV"`
	FantasyPoints number `json:"fantasyPoints"`
}

// BuildGames decodes and enriches a game log keyed by game id. Games are
// returned sorted by date, then id.
func BuildGames(playerID string, body map[string]json.RawMessage) ([]Game, error) {
	games := make([]Game, 0, len(body))

	for key, raw := range body {
		var pg providerGame
		if err := json.Unmarshal(raw, &pg); err != nil {
			return nil, fmt.Errorf("decode game %s: %w", key, err)
		}

		gameID := pg.GameID
		if gameID == "" {
			gameID = key
		}
		team := pg.TeamAbv
		if team == "" {
			team = pg.Team
		}

		date, opponent, isHome, err := ParseGameID(gameID, team)
		if err != nil {
			return nil, err
		}

		games = append(games, Game{
			GameID:        gameID,
			PlayerID:      playerID,
			Team:          teams.Normalize(team),
			Opponent:      opponent,
			GameDate:      date,
			IsHome:        isHome,
			Minutes:       pg.Mins,
			Points:        float64(pg.Pts),
			Rebounds:      float64(pg.Reb),
			Assists:       float64(pg.Ast),
			Steals:        float64(pg.Stl),
			Blocks:        float64(pg.Blk),
			Turnovers:     float64(pg.TOV),
			FantasyPoints: float64(pg.FantasyPoints),
			Raw:           raw,
		})
	}

	sort.Slice(games, func(i, j int) bool {
		if !games[i].GameDate.Equal(games[j].GameDate) {
			return games[i].GameDate.Before(games[j].GameDate)
		}
		return games[i].GameID < games[j].GameID
	})

	return games, nil
}
