package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"strconv"
)

// Provider endpoints.
const (
	EndpointGamesForPlayer = "/getNBAGamesForPlayer"
	EndpointPlayerList     = "/getNBAPlayerList"
	EndpointInjuryList     = "/getNBAInjuryList"
	EndpointBettingOdds    = "/getNBABettingOdds"
)

// envelope is the wrapper every Tank01 response uses.
type envelope struct {
	StatusCode int             `json:"statusCode"`
	Body       json.RawMessage `json:"body"`
}

func decodeEnvelope(data []byte) (json.RawMessage, error) {
	var env envelope
	if err := json.Unmarshal(data, &env); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedResponse, err)
	}
	return env.Body, nil
}

// GamesForPlayer returns the player's game log for the configured season,
// keyed by game id ("YYYYMMDD_AWAY@HOME"). A missing, non-object or empty
// body yields ErrNoGames.
func (c *Client) GamesForPlayer(ctx context.Context, playerID string) (map[string]json.RawMessage, error) {
	params := url.Values{}
	for k, v := range c.config.FantasyPoints {
		params[k] = append([]string(nil), v...)
	}
	params.Set("playerID", playerID)
	params.Set("season", c.config.Season)

	data, err := c.GetJSON(ctx, EndpointGamesForPlayer, params)
	if err != nil {
		return nil, err
	}

	body, err := decodeEnvelope(data)
	if err != nil {
		return nil, err
	}

	trimmed := bytes.TrimSpace(body)
	if len(trimmed) == 0 || trimmed[0] != '{' {
		return nil, ErrNoGames
	}

	var games map[string]json.RawMessage
	if err := json.Unmarshal(trimmed, &games); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedResponse, err)
	}
	if len(games) == 0 {
		return nil, ErrNoGames
	}
	return games, nil
}

// PlayerList returns the raw player catalog entries.
func (c *Client) PlayerList(ctx context.Context) ([]json.RawMessage, error) {
	data, err := c.GetJSON(ctx, EndpointPlayerList, nil)
	if err != nil {
		return nil, err
	}

	body, err := decodeEnvelope(data)
	if err != nil {
		return nil, err
	}

	var players []json.RawMessage
	if err := json.Unmarshal(body, &players); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedResponse, err)
	}
	return players, nil
}

// emptyBody reports whether an envelope body carries no data.
func emptyBody(body json.RawMessage) bool {
	switch string(bytes.TrimSpace(body)) {
	case "", "{}", "[]", `""`, "null":
		return true
	}
	return false
}

// InjuryList returns the injury reports of the last days days. An empty
// report is not an error.
func (c *Client) InjuryList(ctx context.Context, days int) ([]json.RawMessage, error) {
	params := url.Values{}
	if days > 0 {
		params.Set("numberOfDays", strconv.Itoa(days))
	}

	data, err := c.GetJSON(ctx, EndpointInjuryList, params)
	if err != nil {
		return nil, err
	}

	body, err := decodeEnvelope(data)
	if err != nil {
		return nil, err
	}
	if emptyBody(body) {
		return []json.RawMessage{}, nil
	}

	var injuries []json.RawMessage
	if err := json.Unmarshal(body, &injuries); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedResponse, err)
	}
	return injuries, nil
}

// BettingOdds returns the odds for every game on gameDate (YYYYMMDD), keyed
// by game id. A date without games yields an empty map.
func (c *Client) BettingOdds(ctx context.Context, gameDate string) (map[string]json.RawMessage, error) {
	params := url.Values{}
	params.Set("gameDate", gameDate)
	params.Set("itemFormat", "map")

	data, err := c.GetJSON(ctx, EndpointBettingOdds, params)
	if err != nil {
		return nil, err
	}

	body, err := decodeEnvelope(data)
	if err != nil {
		return nil, err
	}
	if emptyBody(body) {
		return map[string]json.RawMessage{}, nil
	}

	var games map[string]json.RawMessage
	if err := json.Unmarshal(body, &games); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedResponse, err)
	}
	return games, nil
}
