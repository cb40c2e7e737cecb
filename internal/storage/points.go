package storage

import "context"

type LeaderboardEntry struct {
	UserID string
	Points int
}

// AddPoints credits a member and returns the new total.
func (s *Store) AddPoints(ctx context.Context, guildID, userID string, amount int) (int, error) {
	var total int
	err := s.pool.QueryRow(ctx, `
		INSERT INTO points (guild_id, user_id, points)
		VALUES ($1, $2, $3)
		ON CONFLICT (guild_id, user_id)
		DO UPDATE SET points = points.points + EXCLUDED.points
		RETURNING points
	`, guildID, userID, amount).Scan(&total)
	return total, err
}

// RemovePoints debits a member, clamped at zero, and returns the new total.
func (s *Store) RemovePoints(ctx context.Context, guildID, userID string, amount int) (int, error) {
	var total int
	err := s.pool.QueryRow(ctx, `
		INSERT INTO points (guild_id, user_id, points)
		VALUES ($1, $2, 0)
		ON CONFLICT (guild_id, user_id)
		DO UPDATE SET points = GREATEST(points.points - $3, 0)
		RETURNING points
	`, guildID, userID, amount).Scan(&total)
	return total, err
}

func (s *Store) GetPoints(ctx context.Context, guildID, userID string) (int, error) {
	var total int
	err := s.pool.QueryRow(ctx, `
		SELECT COALESCE(points, 0) FROM points WHERE guild_id = $1 AND user_id = $2
	`, guildID, userID).Scan(&total)
	if err != nil {
		if isNoRows(err) {
			return 0, nil
		}
		return 0, err
	}
	return total, nil
}

func (s *Store) Leaderboard(ctx context.Context, guildID string, minPoints, limit int) ([]LeaderboardEntry, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT user_id, points
		FROM points
		WHERE guild_id = $1 AND points >= $2
		ORDER BY points DESC
		LIMIT $3
	`, guildID, minPoints, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var entries []LeaderboardEntry
	for rows.Next() {
		var entry LeaderboardEntry
		if err := rows.Scan(&entry.UserID, &entry.Points); err != nil {
			return nil, err
		}
		entries = append(entries, entry)
	}
	return entries, rows.Err()
}
