package storage

import (
	"database/sql"
	"fmt"
	"log/slog"
)

// Migration represents a database schema migration.
type Migration struct {
	Version int
	Name    string
	Up      func(*sql.Tx) error
}

// allMigrations defines all migrations in order.
var allMigrations = []Migration{
	{
		Version: 1,
		Name:    "initial_schema",
		Up:      migration001InitialSchema,
	},
	{
		Version: 2,
		Name:    "add_skip_records_table",
		Up:      migration002AddSkipRecordsTable,
	},
	{
		Version: 3,
		Name:    "add_match_indexes",
		Up:      migration003AddMatchIndexes,
	},
}

// runMigrations executes all pending migrations.
func (s *Storage) runMigrations() error {
	if err := s.ensureMigrationsTable(); err != nil {
		return fmt.Errorf("failed to create migrations table: %w", err)
	}

	applied, err := s.getAppliedMigrations()
	if err != nil {
		return fmt.Errorf("failed to get applied migrations: %w", err)
	}

	for _, migration := range allMigrations {
		if applied[migration.Version] {
			continue
		}

		slog.Info("running migration", "version", migration.Version, "name", migration.Name)

		tx, err := s.db.Begin()
		if err != nil {
			return fmt.Errorf("failed to begin transaction for migration %d: %w", migration.Version, err)
		}

		if err := migration.Up(tx); err != nil {
			_ = tx.Rollback()
			return fmt.Errorf("migration %d (%s) failed: %w", migration.Version, migration.Name, err)
		}

		if _, err := tx.Exec(
			`INSERT INTO schema_migrations (version, name) VALUES (?, ?)`,
			migration.Version, migration.Name,
		); err != nil {
			_ = tx.Rollback()
			return fmt.Errorf("failed to record migration %d: %w", migration.Version, err)
		}

		if err := tx.Commit(); err != nil {
			return fmt.Errorf("failed to commit migration %d: %w", migration.Version, err)
		}
	}

	return nil
}

func (s *Storage) ensureMigrationsTable() error {
	_, err := s.db.Exec(`
		CREATE TABLE IF NOT EXISTS schema_migrations (
			version INTEGER PRIMARY KEY,
			name TEXT NOT NULL,
			applied_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
		)
	`)
	return err
}

func (s *Storage) getAppliedMigrations() (map[int]bool, error) {
	rows, err := s.db.Query(`SELECT version FROM schema_migrations`)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	applied := make(map[int]bool)
	for rows.Next() {
		var version int
		if err := rows.Scan(&version); err != nil {
			return nil, err
		}
		applied[version] = true
	}

	return applied, rows.Err()
}

func migration001InitialSchema(tx *sql.Tx) error {
	_, err := tx.Exec(`
		CREATE TABLE IF NOT EXISTS receipts (
			id TEXT PRIMARY KEY,
			merchant TEXT NOT NULL DEFAULT '',
			amount TEXT,
			date TIMESTAMP,
			category TEXT NOT NULL DEFAULT '',
			statement_id TEXT NOT NULL DEFAULT '',
			is_matched INTEGER NOT NULL DEFAULT 0,
			matched_charge_id TEXT,
			created_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP
		);

		CREATE TABLE IF NOT EXISTS charges (
			id TEXT PRIMARY KEY,
			description TEXT NOT NULL,
			amount TEXT NOT NULL,
			date TIMESTAMP NOT NULL,
			card_member TEXT NOT NULL DEFAULT '',
			category TEXT NOT NULL DEFAULT '',
			statement_id TEXT NOT NULL DEFAULT '',
			is_matched INTEGER NOT NULL DEFAULT 0,
			receipt_id TEXT,
			is_personal_expense INTEGER NOT NULL DEFAULT 0,
			no_receipt_required INTEGER NOT NULL DEFAULT 0,
			is_non_amex INTEGER NOT NULL DEFAULT 0
		);
	`)
	return err
}

func migration002AddSkipRecordsTable(tx *sql.Tx) error {
	// merchant_similarity is deliberately TEXT: skip records are an
	// append-only analytics log and the exported format keeps the value
	// exactly as computed.
	_, err := tx.Exec(`
		CREATE TABLE IF NOT EXISTS skip_records (
			id TEXT PRIMARY KEY,
			receipt_id TEXT NOT NULL,
			charge_id TEXT NOT NULL,
			merchant_similarity TEXT NOT NULL DEFAULT '0',
			amount_diff REAL NOT NULL DEFAULT 0,
			date_diff INTEGER NOT NULL DEFAULT 0,
			skip_reason TEXT NOT NULL DEFAULT '',
			skipped_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP
		);

		CREATE INDEX IF NOT EXISTS idx_skip_records_skipped_at
			ON skip_records(skipped_at);
	`)
	return err
}

func migration003AddMatchIndexes(tx *sql.Tx) error {
	_, err := tx.Exec(`
		CREATE INDEX IF NOT EXISTS idx_receipts_unmatched
			ON receipts(is_matched, statement_id);

		CREATE INDEX IF NOT EXISTS idx_charges_unmatched
			ON charges(is_matched, statement_id);
	`)
	return err
}
