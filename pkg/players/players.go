// Package players syncs the provider's player catalog into storage and
// supplies the player ids a game stats run works through.
package players

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/Sternrassler/nba-ingest/pkg/teams"
	"github.com/rs/zerolog/log"
)

// Player is one catalog entry.
type Player struct {
	PlayerID string `json:"player_id"`
	Name     string `json:"name"`
	Position string `json:"position"`
	Team     string `json:"team"`
	TeamID   string `json:"team_id"`
}

// providerPlayer is a Tank01 getNBAPlayerList entry.
type providerPlayer struct {
	PlayerID string `json:"playerID"`
	Pos      string `json:"pos"`
	Team     string `json:"team"`
	LongName string `json:"longName"`
	TeamID   string `json:"teamID"`
}

// Lister returns the raw player catalog.
type Lister interface {
	PlayerList(ctx context.Context) ([]json.RawMessage, error)
}

// Catalog stores players.
type Catalog interface {
	UpsertPlayers(ctx context.Context, players []Player) (int, error)
}

// Source supplies the player ids to fetch game logs for.
type Source interface {
	PlayerIDs(ctx context.Context) ([]string, error)
}

// Filter converts raw entries into players, skipping entries that are
// undecodable or miss any of id, position, team, name or team id.
func Filter(raw []json.RawMessage) (players []Player, skipped int) {
	players = make([]Player, 0, len(raw))
	for _, r := range raw {
		var p providerPlayer
		if err := json.Unmarshal(r, &p); err != nil {
			skipped++
			continue
		}
		if blank(p.PlayerID, p.Pos, p.Team, p.LongName, p.TeamID) {
			skipped++
			continue
		}
		players = append(players, Player{
			PlayerID: strings.TrimSpace(p.PlayerID),
			Name:     strings.TrimSpace(p.LongName),
			Position: strings.TrimSpace(p.Pos),
			Team:     teams.Normalize(p.Team),
			TeamID:   strings.TrimSpace(p.TeamID),
		})
	}
	return players, skipped
}

func blank(values ...string) bool {
	for _, v := range values {
		if strings.TrimSpace(v) == "" {
			return true
		}
	}
	return false
}

// SyncResult reports a catalog sync.
type SyncResult struct {
	Fetched int
	Stored  int
	Skipped int
}

// Sync fetches the catalog, filters it and upserts the valid players.
func Sync(ctx context.Context, lister Lister, catalog Catalog) (SyncResult, error) {
	raw, err := lister.PlayerList(ctx)
	if err != nil {
		return SyncResult{}, fmt.Errorf("fetch player list: %w", err)
	}

	valid, skipped := Filter(raw)
	result := SyncResult{Fetched: len(raw), Skipped: skipped}

	stored, err := catalog.UpsertPlayers(ctx, valid)
	if err != nil {
		return result, fmt.Errorf("store players: %w", err)
	}
	result.Stored = stored

	log.Info().
		Str("component", "players").
		Int("fetched", result.Fetched).
		Int("stored", result.Stored).
		Int("skipped", result.Skipped).
		Msg("Player catalog synced")

	return result, nil
}

// StaticSource serves a fixed list of ids.
type StaticSource []string

// PlayerIDs implements Source.
func (s StaticSource) PlayerIDs(ctx context.Context) ([]string, error) {
	return append([]string(nil), s...), nil
}
