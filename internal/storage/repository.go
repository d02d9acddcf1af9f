package storage

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"

	"clubfines/internal/core"
	applog "clubfines/internal/log"

	_ "modernc.org/sqlite"
)

// SQLiteRepository persists the ledger snapshot in a SQLite database.
// Save rewrites every table inside a single transaction.
type SQLiteRepository struct {
	db      *sql.DB
	version uint
	logger  *applog.Logger
}

func NewSQLiteRepository(dbPath string) (*SQLiteRepository, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
		return nil, fmt.Errorf("create db directory: %w", err)
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open sqlite database: %w", err)
	}
	// One writer; avoids SQLITE_BUSY between pooled connections.
	db.SetMaxOpenConns(1)

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	version, err := MigrateLedgerSchema(dbPath)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate %s: %w", dbPath, err)
	}

	r := &SQLiteRepository{
		db:      db,
		version: version,
		logger:  applog.NewLogger(applog.ComponentStorage),
	}
	r.logger.Debug("Ledger schema ready", "db_path", dbPath, "schema_version", version)
	return r, nil
}

// SchemaVersion reports the migration version applied when the repository opened.
func (r *SQLiteRepository) SchemaVersion() uint { return r.version }

func (r *SQLiteRepository) Close() error {
	if r.db != nil {
		return r.db.Close()
	}
	return nil
}

// Load implements sheets.SnapshotLoader.
func (r *SQLiteRepository) Load(ctx context.Context) (core.Snapshot, error) {
	var snap core.Snapshot

	rows, err := r.db.QueryContext(ctx, `SELECT name, total_fine FROM members ORDER BY position`)
	if err != nil {
		return snap, fmt.Errorf("query members: %w", err)
	}
	for rows.Next() {
		var m core.Member
		if err := rows.Scan(&m.Name, &m.TotalFine); err != nil {
			rows.Close()
			return snap, fmt.Errorf("scan member: %w", err)
		}
		snap.Members = append(snap.Members, m)
	}
	if err := closeRows(rows); err != nil {
		return snap, fmt.Errorf("read members: %w", err)
	}

	rows, err = r.db.QueryContext(ctx, `SELECT id, date, member, event_type, violation, amount FROM entries ORDER BY position`)
	if err != nil {
		return snap, fmt.Errorf("query entries: %w", err)
	}
	for rows.Next() {
		var (
			e    core.Entry
			date string
		)
		if err := rows.Scan(&e.ID, &date, &e.Member, &e.EventType, &e.Violation, &e.Amount); err != nil {
			rows.Close()
			return snap, fmt.Errorf("scan entry: %w", err)
		}
		if date != "" {
			if e.Date, err = core.ParseDate(date); err != nil {
				rows.Close()
				return snap, fmt.Errorf("entry %d: %w", e.ID, err)
			}
		}
		snap.Entries = append(snap.Entries, e)
	}
	if err := closeRows(rows); err != nil {
		return snap, fmt.Errorf("read entries: %w", err)
	}

	rows, err = r.db.QueryContext(ctx, `SELECT name FROM event_types ORDER BY position`)
	if err != nil {
		return snap, fmt.Errorf("query event types: %w", err)
	}
	for rows.Next() {
		var et core.EventType
		if err := rows.Scan(&et.Name); err != nil {
			rows.Close()
			return snap, fmt.Errorf("scan event type: %w", err)
		}
		snap.EventTypes = append(snap.EventTypes, et)
	}
	if err := closeRows(rows); err != nil {
		return snap, fmt.Errorf("read event types: %w", err)
	}

	rows, err = r.db.QueryContext(ctx, `SELECT violation, amount FROM rules ORDER BY position`)
	if err != nil {
		return snap, fmt.Errorf("query rules: %w", err)
	}
	for rows.Next() {
		var rule core.Rule
		if err := rows.Scan(&rule.Violation, &rule.Amount); err != nil {
			rows.Close()
			return snap, fmt.Errorf("scan rule: %w", err)
		}
		snap.Rules = append(snap.Rules, rule)
	}
	if err := closeRows(rows); err != nil {
		return snap, fmt.Errorf("read rules: %w", err)
	}

	return snap, nil
}

// Save implements sheets.SnapshotSaver. Either every table is replaced or none is.
func (r *SQLiteRepository) Save(ctx context.Context, snap core.Snapshot) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback()

	for _, table := range []string{"members", "entries", "event_types", "rules"} {
		if _, err := tx.ExecContext(ctx, "DELETE FROM "+table); err != nil {
			return fmt.Errorf("clear %s: %w", table, err)
		}
	}

	for i, m := range snap.Members {
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO members (position, name, total_fine) VALUES (?, ?, ?)`,
			i, m.Name, m.TotalFine); err != nil {
			return fmt.Errorf("insert member %q: %w", m.Name, err)
		}
	}
	for i, e := range snap.Entries {
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO entries (id, position, date, member, event_type, violation, amount) VALUES (?, ?, ?, ?, ?, ?, ?)`,
			e.ID, i, e.Date.String(), e.Member, e.EventType, e.Violation, e.Amount); err != nil {
			return fmt.Errorf("insert entry %d: %w", e.ID, err)
		}
	}
	for i, et := range snap.EventTypes {
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO event_types (position, name) VALUES (?, ?)`, i, et.Name); err != nil {
			return fmt.Errorf("insert event type %q: %w", et.Name, err)
		}
	}
	for i, rule := range snap.Rules {
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO rules (position, violation, amount) VALUES (?, ?, ?)`,
			i, rule.Violation, rule.Amount); err != nil {
			return fmt.Errorf("insert rule %q: %w", rule.Violation, err)
		}
	}
	if _, err := tx.ExecContext(ctx,
		`UPDATE book_meta SET revision = revision + 1, updated_at = CURRENT_TIMESTAMP WHERE id = 1`); err != nil {
		return fmt.Errorf("bump revision: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit: %w", err)
	}

	r.logger.DebugContext(ctx, "Snapshot saved to SQLite",
		applog.FieldOperation, applog.OpSave,
		"members", len(snap.Members),
		"entries", len(snap.Entries))
	return nil
}

// Revision returns a counter bumped by every successful Save.
func (r *SQLiteRepository) Revision(ctx context.Context) (int64, error) {
	var rev int64
	if err := r.db.QueryRowContext(ctx, `SELECT revision FROM book_meta WHERE id = 1`).Scan(&rev); err != nil {
		return 0, fmt.Errorf("read revision: %w", err)
	}
	return rev, nil
}

func closeRows(rows *sql.Rows) error {
	if err := rows.Err(); err != nil {
		rows.Close()
		return err
	}
	return rows.Close()
}
