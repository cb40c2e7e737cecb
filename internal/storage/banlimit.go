package storage

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
)

// TryRecordBan enforces the rolling per-moderator ban cap. It prunes records
// older than the window, and either records this ban and returns true, or
// returns false when the moderator is at the cap.
func (s *Store) TryRecordBan(ctx context.Context, userID string, maxBans int, window time.Duration) (bool, error) {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return false, err
	}
	defer func() { _ = tx.Rollback(ctx) }()

	now := time.Now().UTC()
	cutoff := now.Add(-window)

	if _, err := tx.Exec(ctx, `DELETE FROM ban_records WHERE banned_at < $1`, cutoff); err != nil {
		return false, err
	}

	var count int
	if err := tx.QueryRow(ctx, `SELECT COUNT(*) FROM ban_records WHERE user_id = $1`, userID).Scan(&count); err != nil {
		return false, err
	}
	if count >= maxBans {
		return false, nil
	}

	if _, err := tx.Exec(ctx, `INSERT INTO ban_records (user_id, banned_at) VALUES ($1, $2)`, userID, now); err != nil {
		return false, err
	}
	return true, tx.Commit(ctx)
}

func isNoRows(err error) bool {
	return errors.Is(err, pgx.ErrNoRows)
}
