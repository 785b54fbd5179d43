package users

import (
	"context"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/odyssey-erp/stockledger/internal/platform/db"
	"github.com/odyssey-erp/stockledger/internal/shared"
)

const usernameKey = "users_username_key"

// Repository provides PostgreSQL backed persistence.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs a repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// ListUsers returns all users.
func (r *Repository) ListUsers(ctx context.Context) ([]User, error) {
	rows, err := r.pool.Query(ctx, `SELECT id, username, role, email, created_at FROM users ORDER BY username`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var users []User
	for rows.Next() {
		var user User
		if err := rows.Scan(&user.ID, &user.Username, &user.Role, &user.Email, &user.CreatedAt); err != nil {
			return nil, err
		}
		users = append(users, user)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return users, nil
}

// InsertUser stores a new account with an already hashed password.
func (r *Repository) InsertUser(ctx context.Context, u User, passwordHash string) (User, error) {
	err := r.pool.QueryRow(ctx, `INSERT INTO users (username, password_hash, role, email) VALUES ($1, $2, $3, $4)
RETURNING id, created_at`, u.Username, passwordHash, string(u.Role), u.Email).Scan(&u.ID, &u.CreatedAt)
	if db.IsUniqueViolation(err, usernameKey) {
		return User{}, shared.DuplicateError{Entity: "user", Name: u.Username}
	}
	return u, err
}

// DeleteUser removes an account and returns its username. Authored items,
// edits and transactions keep their rows with the author cleared.
func (r *Repository) DeleteUser(ctx context.Context, id int64) (string, error) {
	var username string
	err := r.pool.QueryRow(ctx, `DELETE FROM users WHERE id = $1 RETURNING username`, id).Scan(&username)
	if db.IsNoRows(err) {
		return "", shared.ErrNotFound
	}
	return username, err
}
