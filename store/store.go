// Package store persists draw participants and their assignments in SQLite.
package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sync"

	"github.com/mattn/go-sqlite3"
)

var (
	ErrNotFound              = errors.New("user not found")
	ErrUsernameTaken         = errors.New("username already exists")
	ErrDiscordIdTaken        = errors.New("discord account already linked")
	ErrLastAdmin             = errors.New("cannot delete the last admin user")
	ErrNotEnoughParticipants = errors.New("need at least 2 non-admin users for assignments")
	ErrInvalidAssignment     = errors.New("assignment is not a derangement of the participants")
)

const schema = `CREATE TABLE IF NOT EXISTS users
(
    id               INTEGER PRIMARY KEY AUTOINCREMENT,
    name             TEXT        NOT NULL,
    username         TEXT UNIQUE NOT NULL,
    password_hash    TEXT        NOT NULL,
    discord_id       TEXT UNIQUE,
    is_admin         BOOLEAN     NOT NULL DEFAULT 0,
    has_viewed       BOOLEAN     NOT NULL DEFAULT 0,
    assigned_user_id INTEGER REFERENCES users (id) ON DELETE SET NULL
);`

type Store struct {
	db *sql.DB

	// drawMu serialises generate-and-persist so two draws never interleave
	drawMu sync.Mutex
}

// Open opens or creates the database at path and makes sure the schema exists.
func Open(path string) (*Store, error) {
	dsn := fmt.Sprintf("file:%s?_busy_timeout=5000&_txlock=immediate&_foreign_keys=on", path)
	db, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", path, err)
	}
	if _, err := db.Exec(schema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("initialise database: %w", err)
	}
	return &Store{db: db}, nil
}

func (s *Store) Close() error {
	return s.db.Close()
}

type queryer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

func isUniqueViolation(err error) bool {
	var sqliteErr sqlite3.Error
	return errors.As(err, &sqliteErr) && sqliteErr.ExtendedCode == sqlite3.ErrConstraintUnique
}
