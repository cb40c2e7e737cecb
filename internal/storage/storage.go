package storage

import (
	"context"

	"github.com/jackc/pgx/v5/pgxpool"
)

type Store struct {
	pool *pgxpool.Pool
}

func New(ctx context.Context, databaseURL string) (*Store, error) {
	pool, err := pgxpool.New(ctx, databaseURL)
	if err != nil {
		return nil, err
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, err
	}
	return &Store{pool: pool}, nil
}

func (s *Store) Close() {
	if s.pool != nil {
		s.pool.Close()
	}
}

var schema = []string{
	`CREATE TABLE IF NOT EXISTS points (
		guild_id TEXT NOT NULL,
		user_id  TEXT NOT NULL,
		points   INTEGER NOT NULL DEFAULT 0,
		PRIMARY KEY (guild_id, user_id)
	)`,
	`CREATE TABLE IF NOT EXISTS ban_records (
		user_id   TEXT NOT NULL,
		banned_at TIMESTAMPTZ NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS welcome_roles (
		guild_id  TEXT NOT NULL,
		user_id   TEXT NOT NULL,
		role_id   TEXT NOT NULL,
		remove_at TIMESTAMPTZ NOT NULL,
		PRIMARY KEY (guild_id, user_id, role_id)
	)`,
	`CREATE TABLE IF NOT EXISTS afk_status (
		guild_id TEXT NOT NULL,
		user_id  TEXT NOT NULL,
		until    TIMESTAMPTZ NOT NULL,
		reason   TEXT NOT NULL DEFAULT '',
		PRIMARY KEY (guild_id, user_id)
	)`,
}

func (s *Store) Migrate(ctx context.Context) error {
	for _, stmt := range schema {
		if _, err := s.pool.Exec(ctx, stmt); err != nil {
			return err
		}
	}
	return nil
}
