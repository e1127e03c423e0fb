package store

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/Sternrassler/nba-ingest/pkg/batch"
	"github.com/Sternrassler/nba-ingest/pkg/gamestats"
	"github.com/Sternrassler/nba-ingest/pkg/players"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

const postgresSchema = `
CREATE TABLE IF NOT EXISTS nba_players (
	player_id  TEXT PRIMARY KEY,
	name       TEXT NOT NULL,
	position   TEXT NOT NULL,
	team       TEXT NOT NULL,
	team_id    TEXT NOT NULL,
	updated_at TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE TABLE IF NOT EXISTS nba_player_games (
	player_id      TEXT NOT NULL,
	game_id        TEXT NOT NULL,
	game_date      DATE NOT NULL,
	team           TEXT NOT NULL,
	opponent       TEXT NOT NULL,
	is_home        BOOLEAN NOT NULL,
	minutes        TEXT NOT NULL DEFAULT '',
	points         DOUBLE PRECISION NOT NULL DEFAULT 0,
	rebounds       DOUBLE PRECISION NOT NULL DEFAULT 0,
	assists        DOUBLE PRECISION NOT NULL DEFAULT 0,
	steals         DOUBLE PRECISION NOT NULL DEFAULT 0,
	blocks         DOUBLE PRECISION NOT NULL DEFAULT 0,
	turnovers      DOUBLE PRECISION NOT NULL DEFAULT 0,
	fantasy_points DOUBLE PRECISION NOT NULL DEFAULT 0,
	raw            JSONB,
	updated_at     TIMESTAMPTZ NOT NULL DEFAULT now(),
	PRIMARY KEY (player_id, game_id)
);

CREATE INDEX IF NOT EXISTS nba_player_games_date_idx ON nba_player_games (game_date);

CREATE TABLE IF NOT EXISTS nba_ingest_runs (
	run_id        TEXT PRIMARY KEY,
	started_at    TIMESTAMPTZ NOT NULL,
	elapsed_ms    BIGINT NOT NULL,
	total         INTEGER NOT NULL,
	succeeded     INTEGER NOT NULL,
	failed        INTEGER NOT NULL,
	total_records INTEGER NOT NULL,
	errors        JSONB NOT NULL
);

CREATE TABLE IF NOT EXISTS nba_projections (
	projection_id TEXT PRIMARY KEY,
	player_id     TEXT NOT NULL,
	player_name   TEXT NOT NULL,
	team          TEXT NOT NULL,
	position      TEXT NOT NULL,
	stat_type     TEXT NOT NULL,
	line_score    DOUBLE PRECISION NOT NULL,
	average       DOUBLE PRECISION NOT NULL,
	max_value     DOUBLE PRECISION NOT NULL,
	game_id       TEXT NOT NULL,
	start_time    TIMESTAMPTZ NOT NULL,
	status        TEXT NOT NULL,
	description   TEXT NOT NULL,
	image_url     TEXT NOT NULL,
	odds_type     TEXT NOT NULL,
	updated_at    TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE INDEX IF NOT EXISTS nba_projections_start_idx ON nba_projections (start_time);

CREATE TABLE IF NOT EXISTS nba_injuries (
	player_id   TEXT PRIMARY KEY,
	designation TEXT NOT NULL,
	description TEXT NOT NULL,
	injury_date TEXT,
	return_date TEXT,
	updated_at  TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE TABLE IF NOT EXISTS nba_game_odds (
	game_id        TEXT PRIMARY KEY,
	game_date      TEXT NOT NULL,
	home_team      TEXT NOT NULL,
	away_team      TEXT NOT NULL,
	bookmaker      TEXT NOT NULL,
	home_spread    DOUBLE PRECISION,
	away_spread    DOUBLE PRECISION,
	total_over     DOUBLE PRECISION,
	total_under    DOUBLE PRECISION,
	home_moneyline DOUBLE PRECISION,
	away_moneyline DOUBLE PRECISION,
	last_updated   TIMESTAMPTZ,
	updated_at     TIMESTAMPTZ NOT NULL DEFAULT now()
);
`

const upsertGamePG = `
INSERT INTO nba_player_games (
	player_id, game_id, game_date, team, opponent, is_home, minutes,
	points, rebounds, assists, steals, blocks, turnovers, fantasy_points, raw, updated_at
) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, now())
ON CONFLICT (player_id, game_id) DO UPDATE SET
	game_date = EXCLUDED.game_date,
	team = EXCLUDED.team,
	opponent = EXCLUDED.opponent,
	is_home = EXCLUDED.is_home,
	minutes = EXCLUDED.minutes,
	points = EXCLUDED.points,
	rebounds = EXCLUDED.rebounds,
	assists = EXCLUDED.assists,
	steals = EXCLUDED.steals,
	blocks = EXCLUDED.blocks,
	turnovers = EXCLUDED.turnovers,
	fantasy_points = EXCLUDED.fantasy_points,
	raw = EXCLUDED.raw,
	updated_at = now()`

const upsertPlayerPG = `
INSERT INTO nba_players (player_id, name, position, team, team_id, updated_at)
VALUES ($1, $2, $3, $4, $5, now())
ON CONFLICT (player_id) DO UPDATE SET
	name = EXCLUDED.name,
	position = EXCLUDED.position,
	team = EXCLUDED.team,
	team_id = EXCLUDED.team_id,
	updated_at = now()`

// Postgres is the primary store backed by a pgx connection pool.
type Postgres struct {
	pool *pgxpool.Pool
}

// NewPostgres connects to databaseURL and verifies the connection.
func NewPostgres(ctx context.Context, databaseURL string) (*Postgres, error) {
	pool, err := pgxpool.New(ctx, databaseURL)
	if err != nil {
		return nil, fmt.Errorf("create pool: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping postgres: %w", err)
	}
	return &Postgres{pool: pool}, nil
}

// Close closes the pool.
func (p *Postgres) Close() {
	p.pool.Close()
}

// Ping checks the connection.
func (p *Postgres) Ping(ctx context.Context) error {
	return p.pool.Ping(ctx)
}

// EnsureSchema creates the tables if missing.
func (p *Postgres) EnsureSchema(ctx context.Context) error {
	if _, err := p.pool.Exec(ctx, postgresSchema); err != nil {
		return fmt.Errorf("ensure schema: %w", err)
	}
	return nil
}

// StoreGames upserts one player's games in a single transaction.
func (p *Postgres) StoreGames(ctx context.Context, playerID string, games []gamestats.Game) error {
	tx, err := p.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback(ctx) //nolint:errcheck

	b := &pgx.Batch{}
	for _, g := range games {
		b.Queue(upsertGamePG,
			playerID, g.GameID, g.GameDate, g.Team, g.Opponent, g.IsHome, g.Minutes,
			g.Points, g.Rebounds, g.Assists, g.Steals, g.Blocks, g.Turnovers, g.FantasyPoints,
			rawJSON(g.Raw))
	}
	if err := tx.SendBatch(ctx, b).Close(); err != nil {
		return fmt.Errorf("upsert games for %s: %w", playerID, err)
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit games for %s: %w", playerID, err)
	}
	return nil
}

// UpsertPlayers stores the catalog in one transaction.
func (p *Postgres) UpsertPlayers(ctx context.Context, list []players.Player) (int, error) {
	tx, err := p.pool.Begin(ctx)
	if err != nil {
		return 0, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback(ctx) //nolint:errcheck

	b := &pgx.Batch{}
	for _, pl := range list {
		b.Queue(upsertPlayerPG, pl.PlayerID, pl.Name, pl.Position, pl.Team, pl.TeamID)
	}
	if err := tx.SendBatch(ctx, b).Close(); err != nil {
		return 0, fmt.Errorf("upsert players: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return 0, fmt.Errorf("commit players: %w", err)
	}
	return len(list), nil
}

// PlayerIDs returns every catalog id in a stable order.
func (p *Postgres) PlayerIDs(ctx context.Context) ([]string, error) {
	rows, err := p.pool.Query(ctx, `SELECT player_id FROM nba_players ORDER BY player_id`)
	if err != nil {
		return nil, fmt.Errorf("query player ids: %w", err)
	}
	ids, err := pgx.CollectRows(rows, pgx.RowTo[string])
	if err != nil {
		return nil, fmt.Errorf("scan player ids: %w", err)
	}
	return ids, nil
}

// GameCount returns the stored games for a player.
func (p *Postgres) GameCount(ctx context.Context, playerID string) (int, error) {
	var n int
	err := p.pool.QueryRow(ctx, `SELECT count(*) FROM nba_player_games WHERE player_id = $1`, playerID).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("count games: %w", err)
	}
	return n, nil
}

// RecordRun stores a run summary.
func (p *Postgres) RecordRun(ctx context.Context, s batch.RunSummary) error {
	errs, err := json.Marshal(s.Errors)
	if err != nil {
		return fmt.Errorf("marshal run errors: %w", err)
	}

	_, err = p.pool.Exec(ctx, `
		INSERT INTO nba_ingest_runs (run_id, started_at, elapsed_ms, total, succeeded, failed, total_records, errors)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		ON CONFLICT (run_id) DO NOTHING`,
		s.RunID, s.StartedAt, s.Elapsed.Milliseconds(), s.Total, s.Succeeded, s.Failed, s.TotalRecords, string(errs))
	if err != nil {
		return fmt.Errorf("record run: %w", err)
	}
	return nil
}

// rawJSON returns raw as text for a JSONB column, or nil for NULL.
func rawJSON(raw json.RawMessage) any {
	if len(raw) == 0 {
		return nil
	}
	return string(raw)
}
