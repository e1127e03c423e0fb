package gamestats

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/Sternrassler/nba-ingest/pkg/batch"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// Fetcher returns a player's raw game log keyed by game id.
type Fetcher interface {
	GamesForPlayer(ctx context.Context, playerID string) (map[string]json.RawMessage, error)
}

// Sink durably stores one player's games.
type Sink interface {
	StoreGames(ctx context.Context, playerID string, games []Game) error
}

// SinkFunc adapts a function to Sink.
type SinkFunc func(ctx context.Context, playerID string, games []Game) error

// StoreGames implements Sink.
func (f SinkFunc) StoreGames(ctx context.Context, playerID string, games []Game) error {
	return f(ctx, playerID, games)
}

// Pipeline fetches, enriches and stores one player's game log. It implements
// batch.Processor; an item succeeds only if its games were stored.
type Pipeline struct {
	fetcher Fetcher
	sink    Sink
	logger  zerolog.Logger
}

// NewPipeline creates a pipeline.
func NewPipeline(fetcher Fetcher, sink Sink) *Pipeline {
	return &Pipeline{
		fetcher: fetcher,
		sink:    sink,
		logger:  log.With().Str("component", "gamestats").Logger(),
	}
}

// Fetch fetches and enriches a player's games without storing them.
func (p *Pipeline) Fetch(ctx context.Context, playerID string) ([]Game, error) {
	body, err := p.fetcher.GamesForPlayer(ctx, playerID)
	if err != nil {
		return nil, err
	}
	return BuildGames(playerID, body)
}

// Process implements batch.Processor.
func (p *Pipeline) Process(ctx context.Context, playerID string) batch.FetchResult {
	games, err := p.Fetch(ctx, playerID)
	if err != nil {
		p.logger.Debug().Err(err).Str("player_id", playerID).Msg("Fetch failed")
		return batch.Failed(playerID, err)
	}

	if err := p.sink.StoreGames(ctx, playerID, games); err != nil {
		p.logger.Error().
			Err(err).
			Str("player_id", playerID).
			Int("games", len(games)).
			Msg("Failed to store games")
		return batch.Failed(playerID, fmt.Errorf("store games: %w", err))
	}

	p.logger.Debug().
		Str("player_id", playerID).
		Int("games", len(games)).
		Msg("Stored games")
	return batch.Succeeded(playerID, len(games))
}
