package store

import (
	"database/sql"
	"errors"
	"fmt"
	"strings"

	_ "github.com/mattn/go-sqlite3"
)

// ErrNotFound is returned when a folder or message does not exist.
var ErrNotFound = errors.New("not found")

// DB is the backend database.
type DB struct {
	*sql.DB
}

var pragmas = []string{
	"_journal_mode=WAL",
	"_busy_timeout=5000",
	// Media and link previews cascade with their message.
	"_foreign_keys=on",
}

// Open connects to the database at path. Call Upgrade before use.
func Open(path string) (*DB, error) {
	db, err := sql.Open("sqlite3", path+"?"+strings.Join(pragmas, "&"))
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", path, err)
	}
	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping %s: %w", path, err)
	}
	return &DB{db}, nil
}

func notFound(err error, what string) error {
	if errors.Is(err, sql.ErrNoRows) {
		return fmt.Errorf("%s: %w", what, ErrNotFound)
	}
	return err
}
