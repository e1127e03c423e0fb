package store

import (
	"context"
	"errors"
	"testing"

	"github.com/Sternrassler/nba-ingest/pkg/gamestats"
	"github.com/Sternrassler/nba-ingest/pkg/players"
)

func TestFanout(t *testing.T) {
	a, b := NewMemory(), NewMemory()
	errBoom := errors.New("boom")
	errLater := errors.New("later")

	failing := gamestats.SinkFunc(func(ctx context.Context, playerID string, games []gamestats.Game) error {
		return errBoom
	})
	failingLater := gamestats.SinkFunc(func(ctx context.Context, playerID string, games []gamestats.Game) error {
		return errLater
	})

	f := Fanout{a, failing, b, failingLater}
	err := f.StoreGames(context.Background(), "1", sampleGames("1"))
	if !errors.Is(err, errBoom) {
		t.Errorf("error = %v, want first error", err)
	}
	if len(a.Games("1")) != 2 || len(b.Games("1")) != 2 {
		t.Error("every sink should be attempted")
	}

	if err := (Fanout{a, b}).StoreGames(context.Background(), "2", nil); err != nil {
		t.Errorf("error = %v", err)
	}
	if a.Players() != 2 {
		t.Errorf("Players() = %d, want 2", a.Players())
	}
}

func TestMemory_Copies(t *testing.T) {
	m := NewMemory()
	games := sampleGames("1")
	_ = m.StoreGames(context.Background(), "1", games)

	games[0].Points = 0
	if got := m.Games("1")[0].Points; got != 28 {
		t.Errorf("stored game mutated through caller slice: points = %v", got)
	}
}

type catalogFunc func(ctx context.Context, list []players.Player) (int, error)

func (f catalogFunc) UpsertPlayers(ctx context.Context, list []players.Player) (int, error) {
	return f(ctx, list)
}

func TestCatalogs(t *testing.T) {
	list := []players.Player{{PlayerID: "1"}, {PlayerID: "2"}}
	errDown := errors.New("down")

	var calls int
	ok := catalogFunc(func(ctx context.Context, l []players.Player) (int, error) {
		calls++
		return len(l), nil
	})
	down := catalogFunc(func(ctx context.Context, l []players.Player) (int, error) {
		calls++
		return 0, errDown
	})

	n, err := Catalogs{ok, down, ok}.UpsertPlayers(context.Background(), list)
	if !errors.Is(err, errDown) {
		t.Errorf("error = %v, want %v", err, errDown)
	}
	if n != 2 {
		t.Errorf("stored = %d, want count of first catalog", n)
	}
	if calls != 3 {
		t.Errorf("calls = %d, every catalog should be attempted", calls)
	}
}
