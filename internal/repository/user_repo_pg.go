package repository

import (
	"context"

	"github.com/Domenick1991/slotbooking/internal/domain"
	"github.com/jackc/pgx/v5/pgxpool"
)

type UserRepository interface {
	Create(ctx context.Context, name, apiToken string) (*domain.User, error)
	GetByToken(ctx context.Context, apiToken string) (*domain.User, error)
}

type PGUserRepository struct {
	db DBTX
}

func NewUserRepository(db *pgxpool.Pool) UserRepository {
	return &PGUserRepository{db: db}
}

func (r *PGUserRepository) Create(ctx context.Context, name, apiToken string) (*domain.User, error) {
	u := domain.User{Name: name, APIToken: apiToken}
	if err := r.db.QueryRow(ctx, `INSERT INTO users (name, api_token) VALUES ($1, $2) RETURNING id, created_at, updated_at`, name, apiToken).
		Scan(&u.ID, &u.CreatedAt, &u.UpdatedAt); err != nil {
		return nil, classify(err)
	}
	return &u, nil
}

func (r *PGUserRepository) GetByToken(ctx context.Context, apiToken string) (*domain.User, error) {
	var u domain.User
	if err := r.db.QueryRow(ctx, `SELECT id, name, api_token, created_at, updated_at FROM users WHERE api_token=$1`, apiToken).
		Scan(&u.ID, &u.Name, &u.APIToken, &u.CreatedAt, &u.UpdatedAt); err != nil {
		return nil, classify(err)
	}
	return &u, nil
}

var _ UserRepository = (*PGUserRepository)(nil)
