package storage

import (
	"database/sql"
	"embed"
	"errors"
	"fmt"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database/sqlite"
	"github.com/golang-migrate/migrate/v4/source/iofs"
)

// Ledger schema: 1 creates members, entries, event_types, rules and
// book_meta; 2 seeds the default catalogs.
//
//go:embed migrations/*.sql
var ledgerMigrations embed.FS

// ErrDirtySchema means an earlier migration stopped part way and the
// database needs manual repair before the ledger can use it.
var ErrDirtySchema = errors.New("ledger schema is dirty")

// MigrateLedgerSchema applies pending ledger migrations to the database at
// dbPath and returns the resulting schema version.
func MigrateLedgerSchema(dbPath string) (uint, error) {
	// Own handle: the migrator closes it.
	conn, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return 0, fmt.Errorf("open ledger database for migration: %w", err)
	}
	defer conn.Close()

	driver, err := sqlite.WithInstance(conn, &sqlite.Config{})
	if err != nil {
		return 0, fmt.Errorf("sqlite migration driver: %w", err)
	}
	src, err := iofs.New(ledgerMigrations, "migrations")
	if err != nil {
		return 0, fmt.Errorf("embedded ledger migrations: %w", err)
	}
	m, err := migrate.NewWithInstance("iofs", src, "sqlite", driver)
	if err != nil {
		return 0, fmt.Errorf("ledger migrator: %w", err)
	}
	defer m.Close()

	if _, dirty, err := m.Version(); err == nil && dirty {
		return 0, ErrDirtySchema
	}
	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return 0, fmt.Errorf("apply ledger migrations: %w", err)
	}

	version, dirty, err := m.Version()
	if err != nil {
		return 0, fmt.Errorf("read ledger schema version: %w", err)
	}
	if dirty {
		return version, ErrDirtySchema
	}
	return version, nil
}
