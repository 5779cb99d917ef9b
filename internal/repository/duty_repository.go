package repository

import (
	"context"

	"github.com/jackc/pgx/v5/pgxpool"
)

// DutyRepository tracks which moderators marked themselves on duty.
type DutyRepository interface {
	SetOnDuty(ctx context.Context, guildID, userID string, onDuty bool) error
	ListOnDuty(ctx context.Context, guildID string) ([]string, error)
}

type dutyRepository struct {
	pool *pgxpool.Pool
}

// NewDutyRepository instantiates repository.
func NewDutyRepository(pool *pgxpool.Pool) DutyRepository {
	return &dutyRepository{pool: pool}
}

func (r *dutyRepository) SetOnDuty(ctx context.Context, guildID, userID string, onDuty bool) error {
	const query = `
        INSERT INTO duty_status (guild_id, user_id, is_on_duty, updated_at)
        VALUES ($1,$2,$3,NOW())
        ON CONFLICT (guild_id, user_id) DO UPDATE SET
            is_on_duty=EXCLUDED.is_on_duty, updated_at=NOW()`
	_, err := r.pool.Exec(ctx, query, guildID, userID, onDuty)
	return err
}

func (r *dutyRepository) ListOnDuty(ctx context.Context, guildID string) ([]string, error) {
	const query = `SELECT user_id FROM duty_status WHERE guild_id=$1 AND is_on_duty ORDER BY updated_at`
	rows, err := r.pool.Query(ctx, query, guildID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var userIDs []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		userIDs = append(userIDs, id)
	}
	return userIDs, rows.Err()
}
