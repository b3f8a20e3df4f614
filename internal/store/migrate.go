package store

import (
	"errors"
	"fmt"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database/sqlite3"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	"github.com/matheus3301/stash/internal/store/migrations"
)

// Schema is the schema state left by Upgrade.
type Schema struct {
	Version uint
	// Applied is false when the schema was already current.
	Applied bool
}

// Upgrade applies the embedded migrations that have not run yet. A schema
// left dirty by an interrupted migration is reported as an error and not
// touched.
func (db *DB) Upgrade() (Schema, error) {
	src, err := iofs.New(migrations.FS, ".")
	if err != nil {
		return Schema{}, fmt.Errorf("migration source: %w", err)
	}
	drv, err := sqlite3.WithInstance(db.DB, &sqlite3.Config{})
	if err != nil {
		return Schema{}, fmt.Errorf("migration driver: %w", err)
	}
	m, err := migrate.NewWithInstance("iofs", src, "sqlite3", drv)
	if err != nil {
		return Schema{}, fmt.Errorf("migration instance: %w", err)
	}

	applied := true
	switch err := m.Up(); {
	case errors.Is(err, migrate.ErrNoChange):
		applied = false
	case err != nil:
		return Schema{}, fmt.Errorf("migration up: %w", err)
	}

	version, dirty, err := m.Version()
	if err != nil {
		return Schema{}, fmt.Errorf("migration version: %w", err)
	}
	if dirty {
		return Schema{}, fmt.Errorf("schema version %d is dirty", version)
	}
	return Schema{Version: version, Applied: applied}, nil
}
