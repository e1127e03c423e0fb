package store

import (
	"context"
	"sync"

	"github.com/Sternrassler/nba-ingest/pkg/gamestats"
	"github.com/Sternrassler/nba-ingest/pkg/players"
	"github.com/rs/zerolog/log"
)

// Fanout stores games to every sink in order. All sinks are attempted; the
// first error is returned.
type Fanout []gamestats.Sink

// StoreGames implements gamestats.Sink.
func (f Fanout) StoreGames(ctx context.Context, playerID string, games []gamestats.Game) error {
	var first error
	for i, s := range f {
		if err := s.StoreGames(ctx, playerID, games); err != nil {
			log.Warn().
				Err(err).
				Str("component", "store").
				Str("player_id", playerID).
				Int("sink", i).
				Msg("Sink failed")
			if first == nil {
				first = err
			}
		}
	}
	return first
}

// Catalogs upserts players into every catalog. The count reported is the
// first catalog's; all catalogs are attempted and the first error returned.
type Catalogs []players.Catalog

// UpsertPlayers implements players.Catalog.
func (c Catalogs) UpsertPlayers(ctx context.Context, list []players.Player) (int, error) {
	stored := 0
	var first error
	for i, cat := range c {
		n, err := cat.UpsertPlayers(ctx, list)
		if err != nil {
			log.Warn().Err(err).Str("component", "store").Int("catalog", i).Msg("Catalog failed")
			if first == nil {
				first = err
			}
			continue
		}
		if i == 0 {
			stored = n
		}
	}
	return stored, first
}

// Memory keeps games in process.
type Memory struct {
	mu    sync.Mutex
	games map[string][]gamestats.Game
}

// NewMemory creates an empty memory store.
func NewMemory() *Memory {
	return &Memory{games: make(map[string][]gamestats.Game)}
}

// StoreGames implements gamestats.Sink. Games replace any earlier set.
func (m *Memory) StoreGames(ctx context.Context, playerID string, games []gamestats.Game) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.games[playerID] = append([]gamestats.Game(nil), games...)
	return nil
}

// Games returns a copy of a player's games.
func (m *Memory) Games(playerID string) []gamestats.Game {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]gamestats.Game(nil), m.games[playerID]...)
}

// Players returns how many players have stored games.
func (m *Memory) Players() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.games)
}
