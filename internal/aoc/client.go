// Package aoc fetches and caches a private Advent of Code leaderboard.
// The AoC API asks clients to poll no more than once every 15 minutes, so
// commands read from the cache and a background loop refreshes it.
package aoc

import (
	"context"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/goccy/go-json"
)

const userAgent = "tortoise-guard community bot"

type Leaderboard struct {
	Event   string            `json:"event"`
	Members map[string]Member `json:"members"`
}

type Member struct {
	Name       string `json:"name"`
	Stars      int    `json:"stars"`
	LocalScore int    `json:"local_score"`
}

type Client struct {
	url           string
	sessionCookie string
	httpClient    *http.Client

	mu     sync.Mutex
	cached *Leaderboard
}

func NewClient(leaderboardID string, year int, sessionCookie string) *Client {
	return &Client{
		url: fmt.Sprintf("https://adventofcode.com/%d/leaderboard/private/view/%s.json",
			year, leaderboardID),
		sessionCookie: sessionCookie,
		httpClient:    &http.Client{Timeout: 15 * time.Second},
	}
}

// Refresh fetches the leaderboard and replaces the cache. The previous cache
// is kept on failure.
func (c *Client) Refresh(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.url, nil)
	if err != nil {
		return err
	}
	req.Header.Set("User-Agent", userAgent)
	req.AddCookie(&http.Cookie{Name: "session", Value: c.sessionCookie})

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("leaderboard fetch: status %d", resp.StatusCode)
	}

	var board Leaderboard
	if err := json.NewDecoder(resp.Body).Decode(&board); err != nil {
		return fmt.Errorf("leaderboard decode: %w", err)
	}

	c.mu.Lock()
	c.cached = &board
	c.mu.Unlock()
	return nil
}

// Cached returns the last successfully fetched leaderboard, or false before
// the first refresh completes.
func (c *Client) Cached() (*Leaderboard, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.cached == nil {
		return nil, false
	}
	return c.cached, true
}
