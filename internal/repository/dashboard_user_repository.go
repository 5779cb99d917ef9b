package repository

import (
	"context"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/spec-kit/ticketbox/internal/domain"
)

// DashboardUserRepository persists operator accounts for the staff HTTP API.
type DashboardUserRepository interface {
	Create(ctx context.Context, user *domain.DashboardUser) error
	GetByID(ctx context.Context, id string) (*domain.DashboardUser, error)
	GetByUsername(ctx context.Context, username string) (*domain.DashboardUser, error)
}

type dashboardUserRepository struct {
	pool *pgxpool.Pool
}

// NewDashboardUserRepository instantiates repository.
func NewDashboardUserRepository(pool *pgxpool.Pool) DashboardUserRepository {
	return &dashboardUserRepository{pool: pool}
}

func (r *dashboardUserRepository) Create(ctx context.Context, user *domain.DashboardUser) error {
	const query = `
        INSERT INTO dashboard_users (username, password_hash, role)
        VALUES ($1,$2,$3)
        RETURNING id, created_at, updated_at`
	return r.pool.QueryRow(ctx, query, user.Username, user.PasswordHash, user.Role).
		Scan(&user.ID, &user.CreatedAt, &user.UpdatedAt)
}

func (r *dashboardUserRepository) GetByID(ctx context.Context, id string) (*domain.DashboardUser, error) {
	const query = `
        SELECT id, username, password_hash, role, created_at, updated_at
        FROM dashboard_users WHERE id=$1`
	return r.fetchSingle(ctx, query, id)
}

func (r *dashboardUserRepository) GetByUsername(ctx context.Context, username string) (*domain.DashboardUser, error) {
	const query = `
        SELECT id, username, password_hash, role, created_at, updated_at
        FROM dashboard_users WHERE username=$1`
	return r.fetchSingle(ctx, query, username)
}

func (r *dashboardUserRepository) fetchSingle(ctx context.Context, query string, arg any) (*domain.DashboardUser, error) {
	var user domain.DashboardUser
	if err := r.pool.QueryRow(ctx, query, arg).Scan(
		&user.ID,
		&user.Username,
		&user.PasswordHash,
		&user.Role,
		&user.CreatedAt,
		&user.UpdatedAt,
	); err != nil {
		return nil, err
	}
	return &user, nil
}
