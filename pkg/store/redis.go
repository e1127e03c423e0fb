package store

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/Sternrassler/nba-ingest/pkg/gamestats"
	"github.com/redis/go-redis/v9"
)

const (
	// DefaultGameTTL is how long per-game keys live.
	DefaultGameTTL = 7 * 24 * time.Hour

	// DefaultUpdateStream receives one entry per stored player.
	DefaultUpdateStream = "nba.games.updates"

	// DefaultStreamMaxLen caps the update stream (approximate trim).
	DefaultStreamMaxLen = 10000
)

// RedisWriter keeps hot copies of game lines in Redis and announces each
// stored player on a stream.
//
// Keys:
//
//	nba:game:{playerID}:{gameID}   game JSON, expires after TTL
//	nba:player:{playerID}:games    sorted set of game ids scored by date
type RedisWriter struct {
	client *redis.Client
	ttl    time.Duration
	stream string
	maxLen int64
}

// NewRedisWriter creates a writer with default TTL and stream.
func NewRedisWriter(client *redis.Client) *RedisWriter {
	return &RedisWriter{
		client: client,
		ttl:    DefaultGameTTL,
		stream: DefaultUpdateStream,
		maxLen: DefaultStreamMaxLen,
	}
}

// WithTTL sets the per-game key TTL.
func (w *RedisWriter) WithTTL(ttl time.Duration) *RedisWriter {
	w.ttl = ttl
	return w
}

// WithStream sets the update stream name.
func (w *RedisWriter) WithStream(stream string) *RedisWriter {
	w.stream = stream
	return w
}

func gameKey(playerID, gameID string) string {
	return fmt.Sprintf("nba:game:%s:%s", playerID, gameID)
}

func playerGamesKey(playerID string) string {
	return fmt.Sprintf("nba:player:%s:games", playerID)
}

// StoreGames writes every game and publishes one stream entry in a single
// pipeline.
func (w *RedisWriter) StoreGames(ctx context.Context, playerID string, games []gamestats.Game) error {
	pipe := w.client.TxPipeline()

	setKey := playerGamesKey(playerID)
	for _, g := range games {
		data, err := json.Marshal(g)
		if err != nil {
			return fmt.Errorf("marshaling game %s: %w", g.GameID, err)
		}
		pipe.Set(ctx, gameKey(playerID, g.GameID), data, w.ttl)
		pipe.ZAdd(ctx, setKey, redis.Z{Score: float64(g.GameDate.Unix()), Member: g.GameID})
	}
	if len(games) > 0 {
		pipe.Expire(ctx, setKey, w.ttl)
	}

	pipe.XAdd(ctx, &redis.XAddArgs{
		Stream: w.stream,
		MaxLen: w.maxLen,
		Approx: true,
		Values: map[string]interface{}{
			"player_id": playerID,
			"games":     len(games),
			"stored_at": time.Now().UTC().Format(time.RFC3339),
		},
	})

	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("redis store games for %s: %w", playerID, err)
	}
	return nil
}

// ReadGame returns one stored game.
func (w *RedisWriter) ReadGame(ctx context.Context, playerID, gameID string) (*gamestats.Game, error) {
	data, err := w.client.Get(ctx, gameKey(playerID, gameID)).Bytes()
	if err != nil {
		return nil, err
	}

	var g gamestats.Game
	if err := json.Unmarshal(data, &g); err != nil {
		return nil, fmt.Errorf("unmarshaling game: %w", err)
	}
	return &g, nil
}

// RecentGameIDs returns up to n game ids for a player, newest first.
func (w *RedisWriter) RecentGameIDs(ctx context.Context, playerID string, n int64) ([]string, error) {
	return w.client.ZRevRange(ctx, playerGamesKey(playerID), 0, n-1).Result()
}
