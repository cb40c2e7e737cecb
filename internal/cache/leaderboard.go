// Package cache provides an optional Redis read-through cache for the
// leaderboard query, which is the only hot read path hitting Postgres.
package cache

import (
	"context"
	"time"

	"tortoise-guard/internal/storage"

	"github.com/goccy/go-json"
	"github.com/redis/go-redis/v9"
)

type Leaderboard struct {
	client *redis.Client
	ttl    time.Duration
}

func NewLeaderboard(ctx context.Context, addr string, ttl time.Duration) (*Leaderboard, error) {
	client := redis.NewClient(&redis.Options{
		Addr:         addr,
		DialTimeout:  5 * time.Second,
		ReadTimeout:  3 * time.Second,
		WriteTimeout: 3 * time.Second,
	})
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, err
	}
	return &Leaderboard{client: client, ttl: ttl}, nil
}

func (c *Leaderboard) Close() error {
	return c.client.Close()
}

func (c *Leaderboard) Get(ctx context.Context, guildID string) ([]storage.LeaderboardEntry, bool) {
	data, err := c.client.Get(ctx, key(guildID)).Bytes()
	if err != nil {
		return nil, false
	}
	var entries []storage.LeaderboardEntry
	if err := json.Unmarshal(data, &entries); err != nil {
		return nil, false
	}
	return entries, true
}

func (c *Leaderboard) Set(ctx context.Context, guildID string, entries []storage.LeaderboardEntry) {
	data, err := json.Marshal(entries)
	if err != nil {
		return
	}
	c.client.Set(ctx, key(guildID), data, c.ttl)
}

// Invalidate drops the cached board after a points mutation.
func (c *Leaderboard) Invalidate(ctx context.Context, guildID string) {
	c.client.Del(ctx, key(guildID))
}

func key(guildID string) string {
	return "leaderboard:" + guildID
}
