package repository

import (
	"context"
	"errors"

	"github.com/jackc/pgerrcode"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/spec-kit/auth-service/internal/domain"
)

// ErrDuplicateUsername is returned when an insert hits the unique username
// constraint. The constraint is the authoritative guard against the
// check-then-insert race under concurrent signups.
var ErrDuplicateUsername = errors.New("username already exists")

// PgxPool is the subset of pgxpool.Pool the repositories use.
type PgxPool interface {
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
}

// UserRepository defines persistence access for member accounts.
type UserRepository interface {
	FindByUsername(ctx context.Context, username string) (*domain.User, error)
	GetByID(ctx context.Context, id int64) (*domain.User, error)
	Insert(ctx context.Context, user *domain.User) error
}

type userRepository struct {
	pool PgxPool
}

// NewUserRepository returns a Postgres-backed implementation.
func NewUserRepository(pool *pgxpool.Pool) UserRepository {
	return &userRepository{pool: pool}
}

// NewUserRepositoryWithPool allows injecting any PgxPool implementation.
func NewUserRepositoryWithPool(pool PgxPool) UserRepository {
	return &userRepository{pool: pool}
}

func (r *userRepository) FindByUsername(ctx context.Context, username string) (*domain.User, error) {
	const query = `
        SELECT id, username, password_hash, domain, score, is_banned, created_at, updated_at
        FROM users WHERE username=$1`

	var user domain.User
	if err := r.pool.QueryRow(ctx, query, username).Scan(
		&user.ID,
		&user.Username,
		&user.PasswordHash,
		&user.Domain,
		&user.Score,
		&user.Banned,
		&user.CreatedAt,
		&user.UpdatedAt,
	); err != nil {
		return nil, err
	}
	return &user, nil
}

func (r *userRepository) GetByID(ctx context.Context, id int64) (*domain.User, error) {
	const query = `
        SELECT id, username, password_hash, domain, score, is_banned, created_at, updated_at
        FROM users WHERE id=$1`

	var user domain.User
	if err := r.pool.QueryRow(ctx, query, id).Scan(
		&user.ID,
		&user.Username,
		&user.PasswordHash,
		&user.Domain,
		&user.Score,
		&user.Banned,
		&user.CreatedAt,
		&user.UpdatedAt,
	); err != nil {
		return nil, err
	}
	return &user, nil
}

func (r *userRepository) Insert(ctx context.Context, user *domain.User) error {
	const query = `
        INSERT INTO users (username, password_hash, domain, score)
        VALUES ($1, $2, $3, $4)
        RETURNING id, is_banned, created_at, updated_at`

	err := r.pool.QueryRow(ctx, query,
		user.Username,
		user.PasswordHash,
		user.Domain,
		user.Score,
	).Scan(&user.ID, &user.Banned, &user.CreatedAt, &user.UpdatedAt)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == pgerrcode.UniqueViolation {
			return ErrDuplicateUsername
		}
		return err
	}
	return nil
}
