package storage

import (
	"context"
	"time"
)

type RoleRemoval struct {
	GuildID string
	UserID  string
	RoleID  string
}

// ScheduleRoleRemoval records that the member's temporary role should be
// removed at removeAt. Re-scheduling moves the deadline.
func (s *Store) ScheduleRoleRemoval(ctx context.Context, guildID, userID, roleID string, removeAt time.Time) error {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO welcome_roles (guild_id, user_id, role_id, remove_at)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (guild_id, user_id, role_id)
		DO UPDATE SET remove_at = EXCLUDED.remove_at
	`, guildID, userID, roleID, removeAt)
	return err
}

func (s *Store) DueRoleRemovals(ctx context.Context) ([]RoleRemoval, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT guild_id, user_id, role_id
		FROM welcome_roles
		WHERE remove_at <= NOW()
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var due []RoleRemoval
	for rows.Next() {
		var removal RoleRemoval
		if err := rows.Scan(&removal.GuildID, &removal.UserID, &removal.RoleID); err != nil {
			return nil, err
		}
		due = append(due, removal)
	}
	return due, rows.Err()
}

func (s *Store) DeleteRoleRemoval(ctx context.Context, guildID, userID, roleID string) error {
	_, err := s.pool.Exec(ctx, `
		DELETE FROM welcome_roles
		WHERE guild_id = $1 AND user_id = $2 AND role_id = $3
	`, guildID, userID, roleID)
	return err
}
