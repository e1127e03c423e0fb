package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/Sternrassler/nba-ingest/pkg/batch"
	"github.com/Sternrassler/nba-ingest/pkg/gamestats"
	"github.com/Sternrassler/nba-ingest/pkg/players"
	_ "github.com/mattn/go-sqlite3"
)

const sqliteSchema = `
CREATE TABLE IF NOT EXISTS nba_players (
	player_id  TEXT PRIMARY KEY,
	name       TEXT NOT NULL,
	position   TEXT NOT NULL,
	team       TEXT NOT NULL,
	team_id    TEXT NOT NULL,
	updated_at DATETIME NOT NULL
);

CREATE TABLE IF NOT EXISTS nba_player_games (
	player_id      TEXT NOT NULL,
	game_id        TEXT NOT NULL,
	game_date      TEXT NOT NULL,
	team           TEXT NOT NULL,
	opponent       TEXT NOT NULL,
	is_home        BOOLEAN NOT NULL,
	minutes        TEXT NOT NULL DEFAULT '',
	points         REAL NOT NULL DEFAULT 0,
	rebounds       REAL NOT NULL DEFAULT 0,
	assists        REAL NOT NULL DEFAULT 0,
	steals         REAL NOT NULL DEFAULT 0,
	blocks         REAL NOT NULL DEFAULT 0,
	turnovers      REAL NOT NULL DEFAULT 0,
	fantasy_points REAL NOT NULL DEFAULT 0,
	raw            TEXT,
	updated_at     DATETIME NOT NULL,
	PRIMARY KEY (player_id, game_id)
);

CREATE TABLE IF NOT EXISTS nba_ingest_runs (
	run_id        TEXT PRIMARY KEY,
	started_at    DATETIME NOT NULL,
	elapsed_ms    INTEGER NOT NULL,
	total         INTEGER NOT NULL,
	succeeded     INTEGER NOT NULL,
	failed        INTEGER NOT NULL,
	total_records INTEGER NOT NULL,
	errors        TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS nba_projections (
	projection_id TEXT PRIMARY KEY,
	player_id     TEXT NOT NULL,
	player_name   TEXT NOT NULL,
	team          TEXT NOT NULL,
	position      TEXT NOT NULL,
	stat_type     TEXT NOT NULL,
	line_score    REAL NOT NULL,
	average       REAL NOT NULL,
	max_value     REAL NOT NULL,
	game_id       TEXT NOT NULL,
	start_time    TEXT NOT NULL,
	status        TEXT NOT NULL,
	description   TEXT NOT NULL,
	image_url     TEXT NOT NULL,
	odds_type     TEXT NOT NULL,
	updated_at    DATETIME NOT NULL
);

CREATE INDEX IF NOT EXISTS nba_projections_start_idx ON nba_projections (start_time);

CREATE TABLE IF NOT EXISTS nba_injuries (
	player_id   TEXT PRIMARY KEY,
	designation TEXT NOT NULL,
	description TEXT NOT NULL,
	injury_date TEXT,
	return_date TEXT,
	updated_at  DATETIME NOT NULL
);

CREATE TABLE IF NOT EXISTS nba_game_odds (
	game_id        TEXT PRIMARY KEY,
	game_date      TEXT NOT NULL,
	home_team      TEXT NOT NULL,
	away_team      TEXT NOT NULL,
	bookmaker      TEXT NOT NULL,
	home_spread    REAL,
	away_spread    REAL,
	total_over     REAL,
	total_under    REAL,
	home_moneyline REAL,
	away_moneyline REAL,
	last_updated   DATETIME,
	updated_at     DATETIME NOT NULL
);
`

const upsertGameSQLite = `
INSERT INTO nba_player_games (
	player_id, game_id, game_date, team, opponent, is_home, minutes,
	points, rebounds, assists, steals, blocks, turnovers, fantasy_points, raw, updated_at
) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
ON CONFLICT (player_id, game_id) DO UPDATE SET
	game_date = excluded.game_date,
	team = excluded.team,
	opponent = excluded.opponent,
	is_home = excluded.is_home,
	minutes = excluded.minutes,
	points = excluded.points,
	rebounds = excluded.rebounds,
	assists = excluded.assists,
	steals = excluded.steals,
	blocks = excluded.blocks,
	turnovers = excluded.turnovers,
	fantasy_points = excluded.fantasy_points,
	raw = excluded.raw,
	updated_at = excluded.updated_at`

const upsertPlayerSQLite = `
INSERT INTO nba_players (player_id, name, position, team, team_id, updated_at)
VALUES (?, ?, ?, ?, ?, ?)
ON CONFLICT (player_id) DO UPDATE SET
	name = excluded.name,
	position = excluded.position,
	team = excluded.team,
	team_id = excluded.team_id,
	updated_at = excluded.updated_at`

// SQLite is a single-file store for local runs.
type SQLite struct {
	db *sql.DB
}

// OpenSQLite opens (or creates) the database at path and ensures the schema.
func OpenSQLite(ctx context.Context, path string) (*SQLite, error) {
	db, err := sql.Open("sqlite3", path+"?_busy_timeout=5000&_foreign_keys=on")
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	// One writer at a time; workers queue on the pool instead of SQLITE_BUSY.
	db.SetMaxOpenConns(1)

	s := &SQLite{db: db}
	if err := s.EnsureSchema(ctx); err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

// Close closes the database.
func (s *SQLite) Close() error {
	return s.db.Close()
}

// Ping checks the database handle.
func (s *SQLite) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// EnsureSchema creates the tables if missing.
func (s *SQLite) EnsureSchema(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, sqliteSchema); err != nil {
		return fmt.Errorf("ensure schema: %w", err)
	}
	return nil
}

// StoreGames upserts one player's games in a single transaction.
func (s *SQLite) StoreGames(ctx context.Context, playerID string, games []gamestats.Game) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	stmt, err := tx.PrepareContext(ctx, upsertGameSQLite)
	if err != nil {
		return fmt.Errorf("prepare upsert: %w", err)
	}
	defer stmt.Close()

	now := time.Now().UTC()
	for _, g := range games {
		var raw any
		if len(g.Raw) > 0 {
			raw = string(g.Raw)
		}
		if _, err := stmt.ExecContext(ctx,
			playerID, g.GameID, g.GameDate.Format("2006-01-02"), g.Team, g.Opponent, g.IsHome, g.Minutes,
			g.Points, g.Rebounds, g.Assists, g.Steals, g.Blocks, g.Turnovers, g.FantasyPoints,
			raw, now,
		); err != nil {
			return fmt.Errorf("upsert game %s for %s: %w", g.GameID, playerID, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit games for %s: %w", playerID, err)
	}
	return nil
}

// UpsertPlayers stores the catalog in one transaction.
func (s *SQLite) UpsertPlayers(ctx context.Context, list []players.Player) (int, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	now := time.Now().UTC()
	for _, p := range list {
		if _, err := tx.ExecContext(ctx, upsertPlayerSQLite,
			p.PlayerID, p.Name, p.Position, p.Team, p.TeamID, now); err != nil {
			return 0, fmt.Errorf("upsert player %s: %w", p.PlayerID, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("commit players: %w", err)
	}
	return len(list), nil
}

// PlayerIDs returns every catalog id in a stable order.
func (s *SQLite) PlayerIDs(ctx context.Context) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT player_id FROM nba_players ORDER BY player_id`)
	if err != nil {
		return nil, fmt.Errorf("query player ids: %w", err)
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scan player id: %w", err)
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

// Games returns a player's stored games ordered by date.
func (s *SQLite) Games(ctx context.Context, playerID string) ([]gamestats.Game, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT game_id, game_date, team, opponent, is_home, minutes,
		       points, rebounds, assists, steals, blocks, turnovers, fantasy_points
		FROM nba_player_games WHERE player_id = ? ORDER BY game_date, game_id`, playerID)
	if err != nil {
		return nil, fmt.Errorf("query games: %w", err)
	}
	defer rows.Close()

	var games []gamestats.Game
	for rows.Next() {
		g := gamestats.Game{PlayerID: playerID}
		var date string
		if err := rows.Scan(&g.GameID, &date, &g.Team, &g.Opponent, &g.IsHome, &g.Minutes,
			&g.Points, &g.Rebounds, &g.Assists, &g.Steals, &g.Blocks, &g.Turnovers, &g.FantasyPoints); err != nil {
			return nil, fmt.Errorf("scan game: %w", err)
		}
		if g.GameDate, err = time.Parse("2006-01-02", date); err != nil {
			return nil, fmt.Errorf("parse game date %q: %w", date, err)
		}
		games = append(games, g)
	}
	return games, rows.Err()
}

// RecordRun stores a run summary.
func (s *SQLite) RecordRun(ctx context.Context, sum batch.RunSummary) error {
	errs, err := json.Marshal(sum.Errors)
	if err != nil {
		return fmt.Errorf("marshal run errors: %w", err)
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT OR IGNORE INTO nba_ingest_runs (run_id, started_at, elapsed_ms, total, succeeded, failed, total_records, errors)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		sum.RunID, sum.StartedAt.UTC(), sum.Elapsed.Milliseconds(), sum.Total, sum.Succeeded, sum.Failed, sum.TotalRecords, string(errs))
	if err != nil {
		return fmt.Errorf("record run: %w", err)
	}
	return nil
}

// RunCount returns the number of recorded runs.
func (s *SQLite) RunCount(ctx context.Context) (int, error) {
	var n int
	if err := s.db.QueryRowContext(ctx, `SELECT count(*) FROM nba_ingest_runs`).Scan(&n); err != nil {
		return 0, fmt.Errorf("count runs: %w", err)
	}
	return n, nil
}
