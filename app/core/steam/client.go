package steam

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/tidwall/gjson"
)

const defaultAPIRoot = "https://api.steampowered.com"

// Snapshot is the observed presence of one Steam account. Game is nil
// when the account is online but not in a game; offline accounts look
// the same (the summaries endpoint does not let us tell them apart).
type Snapshot struct {
	PersonaName string
	Game        *string
}

type Config struct {
	APIKey  string
	APIRoot string
	Timeout time.Duration
}

type Client struct {
	cfg  Config
	http *http.Client
}

func NewClient(cfg Config) *Client {
	if strings.TrimSpace(cfg.APIRoot) == "" {
		cfg.APIRoot = defaultAPIRoot
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 10 * time.Second
	}
	return &Client{cfg: cfg, http: &http.Client{Timeout: cfg.Timeout}}
}

// PlayerSummary fetches the current presence for one SteamID64.
// A (nil, nil) result means the API answered but had no data for the
// account; callers treat both that and an error as "unknown this cycle".
func (c *Client) PlayerSummary(ctx context.Context, steamID string) (*Snapshot, error) {
	query := url.Values{
		"key":      {c.cfg.APIKey},
		"steamids": {steamID},
	}
	endpoint := strings.TrimRight(c.cfg.APIRoot, "/") + "/ISteamUser/GetPlayerSummaries/v2/?" + query.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, err
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("steam api request for %s: %w", steamID, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode >= 300 {
		return nil, fmt.Errorf("steam api status=%d for %s", resp.StatusCode, steamID)
	}

	player := gjson.GetBytes(body, "response.players.0")
	if !player.Exists() {
		return nil, nil
	}

	snap := &Snapshot{PersonaName: player.Get("personaname").String()}
	if game := player.Get("gameextrainfo").String(); game != "" {
		snap.Game = &game
	}
	return snap, nil
}
