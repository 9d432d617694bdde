// Package sqliterepo stores users in a single SQLite file.
package sqliterepo

import (
	"context"
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/jrsteele09/go-identity-service/users"
	"github.com/pressly/goose/v3"
	"modernc.org/sqlite"
	sqlite3 "modernc.org/sqlite/lib"
)

//go:embed migrations/*.sql
var migrations embed.FS

var _ users.UserRepo = (*Store)(nil)

const (
	qUserInsert = `
INSERT INTO users (username, password_hash, created_at, updated_at)
VALUES (?, ?, ?, ?)
RETURNING id;`

	qUserByID = `
SELECT id, username, password_hash, created_at, updated_at
FROM users
WHERE id = ?;`

	qUserByUsername = `
SELECT id, username, password_hash, created_at, updated_at
FROM users
WHERE username = ?;`
)

// Store implements users.UserRepo over SQLite.
type Store struct {
	db      *sql.DB
	nowFunc func() time.Time
}

// Open opens (creating if needed) the SQLite database at path and applies migrations.
func Open(ctx context.Context, path string) (*Store, error) {
	if strings.TrimSpace(path) == "" {
		return nil, fmt.Errorf("[sqliterepo.Open] storage path is required")
	}

	cleanPath := filepath.Clean(path)
	if dir := filepath.Dir(cleanPath); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("[sqliterepo.Open] create data dir: %w", err)
		}
	}

	dsn := cleanPath + "?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)&_pragma=foreign_keys(ON)"
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("[sqliterepo.Open] open sqlite db: %w", err)
	}

	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("[sqliterepo.Open] ping sqlite db: %w", err)
	}

	if err := runMigrations(ctx, db); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("[sqliterepo.Open] run migrations: %w", err)
	}

	return &Store{db: db, nowFunc: time.Now}, nil
}

func runMigrations(ctx context.Context, db *sql.DB) error {
	goose.SetBaseFS(migrations)
	defer goose.SetBaseFS(nil)

	if err := goose.SetDialect("sqlite3"); err != nil {
		return err
	}
	return goose.UpContext(ctx, db, "migrations")
}

// Close releases the underlying database.
func (s *Store) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

func (s *Store) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

func (s *Store) FindByUsername(ctx context.Context, username string) (*users.User, error) {
	return scanUser(s.db.QueryRowContext(ctx, qUserByUsername, username))
}

func (s *Store) FindByID(ctx context.Context, id int64) (*users.User, error) {
	return scanUser(s.db.QueryRowContext(ctx, qUserByID, id))
}

func (s *Store) Create(ctx context.Context, user *users.User) (*users.User, error) {
	now := s.nowFunc().UTC()
	created := *user
	created.CreatedAt = fromMillis(toMillis(now))
	created.UpdatedAt = created.CreatedAt

	err := s.db.QueryRowContext(ctx, qUserInsert, user.Username, user.PasswordHash, toMillis(now), toMillis(now)).
		Scan(&created.ID)
	if err != nil {
		if isUniqueViolation(err) {
			return nil, users.ErrConflict
		}
		return nil, fmt.Errorf("user insert: %w", err)
	}
	return &created, nil
}

func (s *Store) Update(ctx context.Context, id int64, update users.UserUpdate) error {
	if update.IsEmpty() {
		_, err := s.FindByID(ctx, id)
		return err
	}

	sets := make([]string, 0, 3)
	args := make([]any, 0, 4)
	if update.Username != nil {
		sets = append(sets, "username = ?")
		args = append(args, *update.Username)
	}
	if update.PasswordHash != nil {
		sets = append(sets, "password_hash = ?")
		args = append(args, *update.PasswordHash)
	}
	sets = append(sets, "updated_at = ?")
	args = append(args, toMillis(s.nowFunc()), id)

	query := "UPDATE users SET " + strings.Join(sets, ", ") + " WHERE id = ?;"
	res, err := s.db.ExecContext(ctx, query, args...)
	if err != nil {
		if isUniqueViolation(err) {
			return users.ErrConflict
		}
		return fmt.Errorf("user update: %w", err)
	}

	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("user update rows affected: %w", err)
	}
	if n == 0 {
		return users.ErrNotFound
	}
	return nil
}

func scanUser(row *sql.Row) (*users.User, error) {
	var (
		u                users.User
		created, updated int64
	)
	if err := row.Scan(&u.ID, &u.Username, &u.PasswordHash, &created, &updated); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, users.ErrNotFound
		}
		return nil, fmt.Errorf("scan user: %w", err)
	}
	u.CreatedAt = fromMillis(created)
	u.UpdatedAt = fromMillis(updated)
	return &u, nil
}

func isUniqueViolation(err error) bool {
	var sqliteErr *sqlite.Error
	if errors.As(err, &sqliteErr) {
		return sqliteErr.Code() == sqlite3.SQLITE_CONSTRAINT_UNIQUE
	}
	return false
}

// toMillis normalizes timestamps into millisecond precision for storage.
func toMillis(value time.Time) int64 {
	return value.UTC().UnixMilli()
}

func fromMillis(value int64) time.Time {
	return time.UnixMilli(value).UTC()
}
