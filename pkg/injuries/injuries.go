// Package injuries syncs the provider's NBA injury report into storage.
package injuries

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog/log"
)

// DefaultDays is the report window requested when none is given.
const DefaultDays = 7

// Injury is the latest report for one player.
type Injury struct {
	PlayerID    string `json:"player_id"`
	Designation string `json:"designation"`
	Description string `json:"description"`
	// InjuryDate and ReturnDate are YYYY-MM-DD, or empty when the provider
	// sent no valid date.
	InjuryDate string `json:"injury_date"`
	ReturnDate string `json:"return_date"`
}

type providerInjury struct {
	PlayerID      string `json:"playerID"`
	Designation   string `json:"designation"`
	Description   string `json:"description"`
	InjDate       string `json:"injDate"`
	InjReturnDate string `json:"injReturnDate"`
}

// Lister returns the raw injury reports.
type Lister interface {
	InjuryList(ctx context.Context, days int) ([]json.RawMessage, error)
}

// Store persists injuries.
type Store interface {
	UpsertInjuries(ctx context.Context, list []Injury) (int, error)
}

// Build converts raw reports into one injury per player. A later report for
// the same player replaces an earlier one; the player keeps the position of
// their first report. Undecodable reports and reports without a player id
// or designation are skipped.
func Build(raw []json.RawMessage) (list []Injury, skipped int) {
	index := make(map[string]int, len(raw))
	list = make([]Injury, 0, len(raw))

	for _, r := range raw {
		var p providerInjury
		if err := json.Unmarshal(r, &p); err != nil {
			skipped++
			continue
		}
		id := strings.TrimSpace(p.PlayerID)
		designation := strings.TrimSpace(p.Designation)
		if id == "" || designation == "" {
			skipped++
			continue
		}

		inj := Injury{
			PlayerID:    id,
			Designation: designation,
			Description: strings.TrimSpace(p.Description),
			InjuryDate:  isoDate(p.InjDate),
			ReturnDate:  isoDate(p.InjReturnDate),
		}
		if i, seen := index[id]; seen {
			list[i] = inj
			continue
		}
		index[id] = len(list)
		list = append(list, inj)
	}
	return list, skipped
}

// isoDate turns a provider YYYYMMDD date into YYYY-MM-DD.
func isoDate(s string) string {
	t, err := time.Parse("20060102", strings.TrimSpace(s))
	if err != nil {
		return ""
	}
	return t.Format("2006-01-02")
}

// SyncResult reports an injury sync.
type SyncResult struct {
	Fetched int
	Stored  int
	Skipped int
}

// Sync fetches the last days of reports and upserts the latest per player.
func Sync(ctx context.Context, lister Lister, store Store, days int) (SyncResult, error) {
	if days <= 0 {
		days = DefaultDays
	}

	raw, err := lister.InjuryList(ctx, days)
	if err != nil {
		return SyncResult{}, fmt.Errorf("fetch injury list: %w", err)
	}

	list, skipped := Build(raw)
	result := SyncResult{Fetched: len(raw), Skipped: skipped}

	stored, err := store.UpsertInjuries(ctx, list)
	if err != nil {
		return result, fmt.Errorf("store injuries: %w", err)
	}
	result.Stored = stored

	log.Info().
		Str("component", "injuries").
		Int("days", days).
		Int("fetched", result.Fetched).
		Int("stored", result.Stored).
		Int("skipped", result.Skipped).
		Msg("Injuries synced")

	return result, nil
}
