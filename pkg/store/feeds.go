package store

import (
	"context"
	"fmt"
	"time"

	"github.com/Sternrassler/nba-ingest/pkg/injuries"
	"github.com/Sternrassler/nba-ingest/pkg/odds"
	"github.com/Sternrassler/nba-ingest/pkg/projections"
	"github.com/jackc/pgx/v5"
	"github.com/rs/zerolog/log"
)

const upsertProjectionPG = `
INSERT INTO nba_projections (
	projection_id, player_id, player_name, team, position, stat_type, line_score, average,
	max_value, game_id, start_time, status, description, image_url, odds_type, updated_at
) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, now())
ON CONFLICT (projection_id) DO UPDATE SET
	player_id = EXCLUDED.player_id,
	player_name = EXCLUDED.player_name,
	team = EXCLUDED.team,
	position = EXCLUDED.position,
	stat_type = EXCLUDED.stat_type,
	line_score = EXCLUDED.line_score,
	average = EXCLUDED.average,
	max_value = EXCLUDED.max_value,
	game_id = EXCLUDED.game_id,
	start_time = EXCLUDED.start_time,
	status = EXCLUDED.status,
	description = EXCLUDED.description,
	image_url = EXCLUDED.image_url,
	odds_type = EXCLUDED.odds_type,
	updated_at = now()`

const upsertProjectionSQLite = `
INSERT INTO nba_projections (
	projection_id, player_id, player_name, team, position, stat_type, line_score, average,
	max_value, game_id, start_time, status, description, image_url, odds_type, updated_at
) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
ON CONFLICT (projection_id) DO UPDATE SET
	player_id = excluded.player_id,
	player_name = excluded.player_name,
	team = excluded.team,
	position = excluded.position,
	stat_type = excluded.stat_type,
	line_score = excluded.line_score,
	average = excluded.average,
	max_value = excluded.max_value,
	game_id = excluded.game_id,
	start_time = excluded.start_time,
	status = excluded.status,
	description = excluded.description,
	image_url = excluded.image_url,
	odds_type = excluded.odds_type,
	updated_at = excluded.updated_at`

const upsertInjuryPG = `
INSERT INTO nba_injuries (player_id, designation, description, injury_date, return_date, updated_at)
VALUES ($1, $2, $3, $4, $5, now())
ON CONFLICT (player_id) DO UPDATE SET
	designation = EXCLUDED.designation,
	description = EXCLUDED.description,
	injury_date = EXCLUDED.injury_date,
	return_date = EXCLUDED.return_date,
	updated_at = now()`

const upsertInjurySQLite = `
INSERT INTO nba_injuries (player_id, designation, description, injury_date, return_date, updated_at)
VALUES (?, ?, ?, ?, ?, ?)
ON CONFLICT (player_id) DO UPDATE SET
	designation = excluded.designation,
	description = excluded.description,
	injury_date = excluded.injury_date,
	return_date = excluded.return_date,
	updated_at = excluded.updated_at`

const upsertOddsPG = `
INSERT INTO nba_game_odds (
	game_id, game_date, home_team, away_team, bookmaker, home_spread, away_spread,
	total_over, total_under, home_moneyline, away_moneyline, last_updated, updated_at
) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, now())
ON CONFLICT (game_id) DO UPDATE SET
	game_date = EXCLUDED.game_date,
	home_team = EXCLUDED.home_team,
	away_team = EXCLUDED.away_team,
	bookmaker = EXCLUDED.bookmaker,
	home_spread = EXCLUDED.home_spread,
	away_spread = EXCLUDED.away_spread,
	total_over = EXCLUDED.total_over,
	total_under = EXCLUDED.total_under,
	home_moneyline = EXCLUDED.home_moneyline,
	away_moneyline = EXCLUDED.away_moneyline,
	last_updated = EXCLUDED.last_updated,
	updated_at = now()`

const upsertOddsSQLite = `
INSERT INTO nba_game_odds (
	game_id, game_date, home_team, away_team, bookmaker, home_spread, away_spread,
	total_over, total_under, home_moneyline, away_moneyline, last_updated, updated_at
) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
ON CONFLICT (game_id) DO UPDATE SET
	game_date = excluded.game_date,
	home_team = excluded.home_team,
	away_team = excluded.away_team,
	bookmaker = excluded.bookmaker,
	home_spread = excluded.home_spread,
	away_spread = excluded.away_spread,
	total_over = excluded.total_over,
	total_under = excluded.total_under,
	home_moneyline = excluded.home_moneyline,
	away_moneyline = excluded.away_moneyline,
	last_updated = excluded.last_updated,
	updated_at = excluded.updated_at`

// sqliteTime is the start_time text form; fixed-width UTC so that string
// order is time order.
const sqliteTime = "2006-01-02T15:04:05Z"

func nullText(s string) any {
	if s == "" {
		return nil
	}
	return s
}

func nullTime(t time.Time) any {
	if t.IsZero() {
		return nil
	}
	return t.UTC()
}

// UpsertProjections stores prop lines in one transaction.
func (p *Postgres) UpsertProjections(ctx context.Context, list []projections.Projection) (int, error) {
	b := &pgx.Batch{}
	for _, pr := range list {
		b.Queue(upsertProjectionPG,
			pr.ProjectionID, pr.PlayerID, pr.PlayerName, pr.Team, pr.Position, pr.StatType, pr.LineScore, pr.Average,
			pr.MaxValue, pr.GameID, pr.StartTime, pr.Status, pr.Description, pr.ImageURL, pr.OddsType)
	}
	if err := p.sendBatch(ctx, b, "projections"); err != nil {
		return 0, err
	}
	return len(list), nil
}

// DeleteProjectionsBefore removes lines whose game started before cutoff.
func (p *Postgres) DeleteProjectionsBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	tag, err := p.pool.Exec(ctx, `DELETE FROM nba_projections WHERE start_time < $1`, cutoff)
	if err != nil {
		return 0, fmt.Errorf("delete projections: %w", err)
	}
	return tag.RowsAffected(), nil
}

// UpsertInjuries stores the latest report per player in one transaction.
func (p *Postgres) UpsertInjuries(ctx context.Context, list []injuries.Injury) (int, error) {
	b := &pgx.Batch{}
	for _, in := range list {
		b.Queue(upsertInjuryPG, in.PlayerID, in.Designation, in.Description, nullText(in.InjuryDate), nullText(in.ReturnDate))
	}
	if err := p.sendBatch(ctx, b, "injuries"); err != nil {
		return 0, err
	}
	return len(list), nil
}

// UpsertGameOdds stores one line per game in one transaction.
func (p *Postgres) UpsertGameOdds(ctx context.Context, list []odds.GameOdds) (int, error) {
	b := &pgx.Batch{}
	for _, g := range list {
		b.Queue(upsertOddsPG,
			g.GameID, g.GameDate, g.HomeTeam, g.AwayTeam, g.Bookmaker, g.HomeSpread, g.AwaySpread,
			g.TotalOver, g.TotalUnder, g.HomeMoneyline, g.AwayMoneyline, nullTime(g.LastUpdated))
	}
	if err := p.sendBatch(ctx, b, "game odds"); err != nil {
		return 0, err
	}
	return len(list), nil
}

// sendBatch runs b inside one transaction.
func (p *Postgres) sendBatch(ctx context.Context, b *pgx.Batch, what string) error {
	tx, err := p.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback(ctx) //nolint:errcheck

	if err := tx.SendBatch(ctx, b).Close(); err != nil {
		return fmt.Errorf("upsert %s: %w", what, err)
	}
	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit %s: %w", what, err)
	}
	return nil
}

// UpsertProjections stores prop lines in one transaction.
func (s *SQLite) UpsertProjections(ctx context.Context, list []projections.Projection) (int, error) {
	now := time.Now().UTC()
	err := s.execEach(ctx, upsertProjectionSQLite, len(list), func(i int) []any {
		pr := list[i]
		return []any{
			pr.ProjectionID, pr.PlayerID, pr.PlayerName, pr.Team, pr.Position, pr.StatType, pr.LineScore, pr.Average,
			pr.MaxValue, pr.GameID, pr.StartTime.UTC().Format(sqliteTime), pr.Status, pr.Description, pr.ImageURL, pr.OddsType, now,
		}
	})
	if err != nil {
		return 0, fmt.Errorf("upsert projections: %w", err)
	}
	return len(list), nil
}

// DeleteProjectionsBefore removes lines whose game started before cutoff.
func (s *SQLite) DeleteProjectionsBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	res, err := s.db.ExecContext(ctx, `DELETE FROM nba_projections WHERE start_time < ?`, cutoff.UTC().Format(sqliteTime))
	if err != nil {
		return 0, fmt.Errorf("delete projections: %w", err)
	}
	return res.RowsAffected()
}

// UpsertInjuries stores the latest report per player in one transaction.
func (s *SQLite) UpsertInjuries(ctx context.Context, list []injuries.Injury) (int, error) {
	now := time.Now().UTC()
	err := s.execEach(ctx, upsertInjurySQLite, len(list), func(i int) []any {
		in := list[i]
		return []any{in.PlayerID, in.Designation, in.Description, nullText(in.InjuryDate), nullText(in.ReturnDate), now}
	})
	if err != nil {
		return 0, fmt.Errorf("upsert injuries: %w", err)
	}
	return len(list), nil
}

// UpsertGameOdds stores one line per game in one transaction.
func (s *SQLite) UpsertGameOdds(ctx context.Context, list []odds.GameOdds) (int, error) {
	now := time.Now().UTC()
	err := s.execEach(ctx, upsertOddsSQLite, len(list), func(i int) []any {
		g := list[i]
		return []any{
			g.GameID, g.GameDate, g.HomeTeam, g.AwayTeam, g.Bookmaker, g.HomeSpread, g.AwaySpread,
			g.TotalOver, g.TotalUnder, g.HomeMoneyline, g.AwayMoneyline, nullTime(g.LastUpdated), now,
		}
	})
	if err != nil {
		return 0, fmt.Errorf("upsert game odds: %w", err)
	}
	return len(list), nil
}

// execEach runs query once per row inside one transaction.
func (s *SQLite) execEach(ctx context.Context, query string, n int, args func(i int) []any) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	stmt, err := tx.PrepareContext(ctx, query)
	if err != nil {
		return fmt.Errorf("prepare: %w", err)
	}
	defer stmt.Close()

	for i := 0; i < n; i++ {
		if _, err := stmt.ExecContext(ctx, args(i)...); err != nil {
			return fmt.Errorf("row %d: %w", i, err)
		}
	}
	return tx.Commit()
}

// Feeds writes the projection, injury and odds feeds to every relational
// backend. Counts are the first backend's; all backends are attempted and
// the first error returned.
type Feeds []FeedStore

// FeedStore is a backend that stores every feed.
type FeedStore interface {
	projections.Store
	injuries.Store
	odds.Store
}

// each calls fn for every backend and keeps the first backend's count.
func (f Feeds) each(feed string, fn func(FeedStore) (int64, error)) (int64, error) {
	var count int64
	var first error
	for i, s := range f {
		n, err := fn(s)
		if err != nil {
			log.Warn().Err(err).Str("component", "store").Str("feed", feed).Int("backend", i).Msg("Feed store failed")
			if first == nil {
				first = err
			}
			continue
		}
		if i == 0 {
			count = n
		}
	}
	return count, first
}

// UpsertProjections implements projections.Store.
func (f Feeds) UpsertProjections(ctx context.Context, list []projections.Projection) (int, error) {
	n, err := f.each("projections", func(s FeedStore) (int64, error) {
		n, err := s.UpsertProjections(ctx, list)
		return int64(n), err
	})
	return int(n), err
}

// DeleteProjectionsBefore implements projections.Store.
func (f Feeds) DeleteProjectionsBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	return f.each("projections", func(s FeedStore) (int64, error) {
		return s.DeleteProjectionsBefore(ctx, cutoff)
	})
}

// UpsertInjuries implements injuries.Store.
func (f Feeds) UpsertInjuries(ctx context.Context, list []injuries.Injury) (int, error) {
	n, err := f.each("injuries", func(s FeedStore) (int64, error) {
		n, err := s.UpsertInjuries(ctx, list)
		return int64(n), err
	})
	return int(n), err
}

// UpsertGameOdds implements odds.Store.
func (f Feeds) UpsertGameOdds(ctx context.Context, list []odds.GameOdds) (int, error) {
	n, err := f.each("odds", func(s FeedStore) (int64, error) {
		n, err := s.UpsertGameOdds(ctx, list)
		return int64(n), err
	})
	return int(n), err
}
