// Package projections syncs PrizePicks NBA player projections (prop lines)
// into storage and prunes lines whose game has started.
//
// PrizePicks answers with a JSON:API document: each projection in data[]
// points at its player (new_player) and stat average (stat_average) through
// relationships, and the referenced records are carried in included[].
package projections

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/Sternrassler/nba-ingest/pkg/teams"
	"github.com/rs/zerolog/log"
)

const (
	// BaseURL is the public PrizePicks partner API.
	BaseURL = "https://partner-api.prizepicks.com"
	// Endpoint lists projections.
	Endpoint = "/projections"
	// LeagueNBA is the PrizePicks league id for the NBA.
	LeagueNBA = "7"
	// DefaultPerPage is the page size requested when none is configured.
	DefaultPerPage = 250
)

// Projection is one stored prop line.
type Projection struct {
	ProjectionID string    `json:"projection_id"`
	PlayerID     string    `json:"player_id"`
	PlayerName   string    `json:"player_name"`
	Team         string    `json:"team"`
	Position     string    `json:"position"`
	StatType     string    `json:"stat_type"`
	LineScore    float64   `json:"line_score"`
	Average      float64   `json:"average"`
	MaxValue     float64   `json:"max_value"`
	GameID       string    `json:"game_id"`
	StartTime    time.Time `json:"start_time"`
	Status       string    `json:"status"`
	Description  string    `json:"description"`
	ImageURL     string    `json:"image_url"`
	OddsType     string    `json:"odds_type"`
}

type resourceRef struct {
	Type string `json:"type"`
	ID   string `json:"id"`
}

type relationship struct {
	Data *resourceRef `json:"data"`
}

type resource struct {
	Type          string                  `json:"type"`
	ID            string                  `json:"id"`
	Attributes    json.RawMessage         `json:"attributes"`
	Relationships map[string]relationship `json:"relationships"`
}

type document struct {
	Data     []resource `json:"data"`
	Included []resource `json:"included"`
}

type projectionAttrs struct {
	LineScore   flexFloat `json:"line_score"`
	StatType    string    `json:"stat_type"`
	StartTime   string    `json:"start_time"`
	Status      string    `json:"status"`
	Description string    `json:"description"`
	GameID      string    `json:"game_id"`
	OddsType    string    `json:"odds_type"`
}

type playerAttrs struct {
	DisplayName string `json:"display_name"`
	Team        string `json:"team"`
	Position    string `json:"position"`
	ImageURL    string `json:"image_url"`
}

type averageAttrs struct {
	Average  flexFloat `json:"average"`
	MaxValue flexFloat `json:"max_value"`
}

// flexFloat accepts a JSON number, a numeric string or null.
type flexFloat float64

func (f *flexFloat) UnmarshalJSON(b []byte) error {
	s := strings.Trim(strings.TrimSpace(string(b)), `"`)
	if s == "" || s == "null" {
		*f = 0
		return nil
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return err
	}
	*f = flexFloat(v)
	return nil
}

// Parse decodes a /projections document. Projections without an id, a
// resolvable player, a stat type or a valid start time are skipped.
func Parse(data []byte) (list []Projection, skipped int, err error) {
	var doc document
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, 0, fmt.Errorf("decode projections: %w", err)
	}

	playersByID := make(map[string]playerAttrs)
	averagesByID := make(map[string]averageAttrs)
	for _, inc := range doc.Included {
		switch inc.Type {
		case "new_player":
			var p playerAttrs
			if json.Unmarshal(inc.Attributes, &p) == nil {
				playersByID[inc.ID] = p
			}
		case "stat_average":
			var a averageAttrs
			if json.Unmarshal(inc.Attributes, &a) == nil {
				averagesByID[inc.ID] = a
			}
		}
	}

	list = make([]Projection, 0, len(doc.Data))
	for _, r := range doc.Data {
		var attrs projectionAttrs
		if r.ID == "" || json.Unmarshal(r.Attributes, &attrs) != nil || strings.TrimSpace(attrs.StatType) == "" {
			skipped++
			continue
		}
		start, err := time.Parse(time.RFC3339, attrs.StartTime)
		if err != nil {
			skipped++
			continue
		}
		playerID := relatedID(r, "new_player")
		player, ok := playersByID[playerID]
		if !ok || strings.TrimSpace(player.DisplayName) == "" {
			skipped++
			continue
		}
		avg := averagesByID[relatedID(r, "stat_average")]

		list = append(list, Projection{
			ProjectionID: r.ID,
			PlayerID:     playerID,
			PlayerName:   strings.TrimSpace(player.DisplayName),
			Team:         teams.Normalize(player.Team),
			Position:     player.Position,
			StatType:     strings.TrimSpace(attrs.StatType),
			LineScore:    float64(attrs.LineScore),
			Average:      float64(avg.Average),
			MaxValue:     float64(avg.MaxValue),
			GameID:       attrs.GameID,
			StartTime:    start.UTC(),
			Status:       attrs.Status,
			Description:  attrs.Description,
			ImageURL:     player.ImageURL,
			OddsType:     attrs.OddsType,
		})
	}
	return list, skipped, nil
}

func relatedID(r resource, name string) string {
	rel, ok := r.Relationships[name]
	if !ok || rel.Data == nil {
		return ""
	}
	return rel.Data.ID
}

// Fetcher performs the HTTP GET against the PrizePicks API.
type Fetcher interface {
	GetJSON(ctx context.Context, endpoint string, params url.Values) ([]byte, error)
}

// Store persists projections.
type Store interface {
	UpsertProjections(ctx context.Context, list []Projection) (int, error)
	DeleteProjectionsBefore(ctx context.Context, cutoff time.Time) (int64, error)
}

// Options tune a sync.
type Options struct {
	PerPage int
	// Now is the prune cutoff; zero means time.Now.
	Now time.Time
}

// SyncResult reports a projections sync.
type SyncResult struct {
	Deleted int64
	Fetched int
	Stored  int
	Skipped int
	Expired int
}

// Sync prunes projections that have started, fetches the current NBA board
// and stores every line that has not started yet. A failed prune is logged
// and the sync continues.
func Sync(ctx context.Context, fetcher Fetcher, store Store, opts Options) (SyncResult, error) {
	now := opts.Now
	if now.IsZero() {
		now = time.Now()
	}
	perPage := opts.PerPage
	if perPage <= 0 {
		perPage = DefaultPerPage
	}

	var result SyncResult
	deleted, err := store.DeleteProjectionsBefore(ctx, now)
	if err != nil {
		log.Warn().Err(err).Str("component", "projections").Msg("Failed to prune started projections")
	}
	result.Deleted = deleted

	params := url.Values{}
	params.Set("league_id", LeagueNBA)
	params.Set("per_page", strconv.Itoa(perPage))

	data, err := fetcher.GetJSON(ctx, Endpoint, params)
	if err != nil {
		return result, fmt.Errorf("fetch projections: %w", err)
	}

	list, skipped, err := Parse(data)
	if err != nil {
		return result, err
	}
	result.Fetched = len(list) + skipped
	result.Skipped = skipped

	upcoming := list[:0]
	for _, p := range list {
		if p.StartTime.Before(now) {
			result.Expired++
			continue
		}
		upcoming = append(upcoming, p)
	}

	stored, err := store.UpsertProjections(ctx, upcoming)
	if err != nil {
		return result, fmt.Errorf("store projections: %w", err)
	}
	result.Stored = stored

	log.Info().
		Str("component", "projections").
		Int64("deleted", result.Deleted).
		Int("fetched", result.Fetched).
		Int("stored", result.Stored).
		Int("skipped", result.Skipped).
		Int("expired", result.Expired).
		Msg("Projections synced")

	return result, nil
}
