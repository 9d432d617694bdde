// Package pgrepo stores users in PostgreSQL through a pgx connection pool.
package pgrepo

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jrsteele09/go-identity-service/users"
)

var _ users.UserRepo = (*UserRepo)(nil)

const uniqueViolation = "23505"

type UserRepo struct {
	db *DB
}

func NewUserRepo(db *DB) *UserRepo { return &UserRepo{db: db} }

const (
	qUserInsert = `
INSERT INTO users (username, password_hash)
VALUES ($1, $2)
RETURNING id, username, password_hash, created_at, updated_at;`

	qUserByID = `
SELECT id, username, password_hash, created_at, updated_at
FROM users
WHERE id = $1;`

	qUserByUsername = `
SELECT id, username, password_hash, created_at, updated_at
FROM users
WHERE username = $1;`

	qUserUpdate = `
UPDATE users
SET username      = COALESCE($2, username),
    password_hash = COALESCE($3, password_hash),
    updated_at    = NOW()
WHERE id = $1;`
)

func (r *UserRepo) Create(ctx context.Context, u *users.User) (*users.User, error) {
	ctx, cancel := r.db.withTimeout(ctx)
	defer cancel()

	var created users.User
	if err := scanUser(r.db.Pool.QueryRow(ctx, qUserInsert, u.Username, u.PasswordHash), &created); err != nil {
		if isUniqueViolation(err) {
			return nil, users.ErrConflict
		}
		return nil, fmt.Errorf("user insert: %w", err)
	}
	return &created, nil
}

func (r *UserRepo) FindByID(ctx context.Context, id int64) (*users.User, error) {
	ctx, cancel := r.db.withTimeout(ctx)
	defer cancel()

	var u users.User
	if err := scanUser(r.db.Pool.QueryRow(ctx, qUserByID, id), &u); err != nil {
		return nil, err
	}
	return &u, nil
}

func (r *UserRepo) FindByUsername(ctx context.Context, username string) (*users.User, error) {
	ctx, cancel := r.db.withTimeout(ctx)
	defer cancel()

	var u users.User
	if err := scanUser(r.db.Pool.QueryRow(ctx, qUserByUsername, username), &u); err != nil {
		return nil, err
	}
	return &u, nil
}

func (r *UserRepo) Update(ctx context.Context, id int64, update users.UserUpdate) error {
	ctx, cancel := r.db.withTimeout(ctx)
	defer cancel()

	tag, err := r.db.Pool.Exec(ctx, qUserUpdate, id, update.Username, update.PasswordHash)
	if err != nil {
		if isUniqueViolation(err) {
			return users.ErrConflict
		}
		return fmt.Errorf("user update: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return users.ErrNotFound
	}
	return nil
}

func (r *UserRepo) Ping(ctx context.Context) error {
	return r.db.Pool.Ping(ctx)
}

func scanUser(row pgx.Row, out *users.User) error {
	if err := row.Scan(&out.ID, &out.Username, &out.PasswordHash, &out.CreatedAt, &out.UpdatedAt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return users.ErrNotFound
		}
		return fmt.Errorf("scan user: %w", err)
	}
	return nil
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == uniqueViolation
}
