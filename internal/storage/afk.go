package storage

import (
	"context"
	"time"
)

type AFKStatus struct {
	GuildID string
	UserID  string
	Until   time.Time
	Reason  string
}

func (s *Store) SetAFK(ctx context.Context, guildID, userID string, until time.Time, reason string) error {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO afk_status (guild_id, user_id, until, reason)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (guild_id, user_id)
		DO UPDATE SET until = EXCLUDED.until, reason = EXCLUDED.reason
	`, guildID, userID, until, reason)
	return err
}

func (s *Store) GetAFK(ctx context.Context, guildID, userID string) (AFKStatus, bool, error) {
	status := AFKStatus{GuildID: guildID, UserID: userID}
	err := s.pool.QueryRow(ctx, `
		SELECT until, reason FROM afk_status WHERE guild_id = $1 AND user_id = $2
	`, guildID, userID).Scan(&status.Until, &status.Reason)
	if err != nil {
		if isNoRows(err) {
			return AFKStatus{}, false, nil
		}
		return AFKStatus{}, false, err
	}
	return status, true, nil
}

func (s *Store) RemoveAFK(ctx context.Context, guildID, userID string) error {
	_, err := s.pool.Exec(ctx, `DELETE FROM afk_status WHERE guild_id = $1 AND user_id = $2`, guildID, userID)
	return err
}

func (s *Store) ExpiredAFK(ctx context.Context, now time.Time) ([]AFKStatus, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT guild_id, user_id, until, reason FROM afk_status WHERE until <= $1
	`, now)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var expired []AFKStatus
	for rows.Next() {
		var status AFKStatus
		if err := rows.Scan(&status.GuildID, &status.UserID, &status.Until, &status.Reason); err != nil {
			return nil, err
		}
		expired = append(expired, status)
	}
	return expired, rows.Err()
}
