package repository

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
)

// AuthCode is the one-time value persisted with each issued session token,
// bound to the client context that produced it.
type AuthCode struct {
	ID        int64
	UserID    int64
	Code      string
	IP        string
	UserAgent string
	CreatedAt time.Time
}

// AuthCodeRepository persists one-time auth codes.
type AuthCodeRepository interface {
	Store(ctx context.Context, userID int64, code, ip, userAgent string) error
	GetByCode(ctx context.Context, code string) (*AuthCode, error)
}

type authCodeRepository struct {
	pool PgxPool
}

// NewAuthCodeRepository constructs repository.
func NewAuthCodeRepository(pool *pgxpool.Pool) AuthCodeRepository {
	return &authCodeRepository{pool: pool}
}

// NewAuthCodeRepositoryWithPool allows injecting any PgxPool implementation.
func NewAuthCodeRepositoryWithPool(pool PgxPool) AuthCodeRepository {
	return &authCodeRepository{pool: pool}
}

func (r *authCodeRepository) Store(ctx context.Context, userID int64, code, ip, userAgent string) error {
	const query = `
        INSERT INTO auth_codes (user_id, code, ip, user_agent)
        VALUES ($1, $2, $3, $4)`
	_, err := r.pool.Exec(ctx, query, userID, code, ip, userAgent)
	return err
}

func (r *authCodeRepository) GetByCode(ctx context.Context, code string) (*AuthCode, error) {
	const query = `
        SELECT id, user_id, code, ip, user_agent, created_at
        FROM auth_codes WHERE code=$1`
	var ac AuthCode
	if err := r.pool.QueryRow(ctx, query, code).Scan(
		&ac.ID,
		&ac.UserID,
		&ac.Code,
		&ac.IP,
		&ac.UserAgent,
		&ac.CreatedAt,
	); err != nil {
		return nil, err
	}
	return &ac, nil
}
