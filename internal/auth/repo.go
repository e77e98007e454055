package auth

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/lingvodoc/lingvodoc/internal/platform/db"
)

// ErrUserNotFound is returned when no account has the login.
var ErrUserNotFound = errors.New("auth: user not found")

// Repository defines persistence operations for auth module.
type Repository interface {
	FindByLogin(ctx context.Context, login string) (*User, error)
	// CreateClient registers a new client for the user. Every login gets its own
	// client, and authorization decisions are keyed by it.
	CreateClient(ctx context.Context, userID int64, browser bool) (int64, error)
}

// PGRepository implements Repository using PostgreSQL.
type PGRepository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs a PostgreSQL repository.
func NewRepository(pool *pgxpool.Pool) *PGRepository {
	return &PGRepository{pool: pool}
}

// FindByLogin fetches a user by login.
func (r *PGRepository) FindByLogin(ctx context.Context, login string) (*User, error) {
	const query = `SELECT id, login, password_hash, is_active FROM users WHERE login = $1`
	var user User
	err := r.pool.QueryRow(ctx, query, login).Scan(&user.ID, &user.Login, &user.PasswordHash, &user.IsActive)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrUserNotFound
		}
		return nil, fmt.Errorf("auth: find user: %w", err)
	}
	return &user, nil
}

// CreateClient inserts a client row and returns its id.
func (r *PGRepository) CreateClient(ctx context.Context, userID int64, browser bool) (int64, error) {
	var id int64
	err := db.WithTx(ctx, r.pool, func(tx pgx.Tx) error {
		return tx.QueryRow(ctx,
			`INSERT INTO client (user_id, is_browser_client, created_at) VALUES ($1, $2, now()) RETURNING id`,
			userID, browser,
		).Scan(&id)
	})
	if err != nil {
		return 0, fmt.Errorf("auth: create client: %w", err)
	}
	return id, nil
}

var _ Repository = (*PGRepository)(nil)
