package db

import (
	"database/sql"
	"fmt"

	_ "github.com/mattn/go-sqlite3"
	"github.com/rs/zerolog/log"
)

const schemaVersion = 1

var migrations = []string{
	// 1: key/value settings store
	`CREATE TABLE IF NOT EXISTS settings (
		key        TEXT PRIMARY KEY,
		value      REAL NOT NULL,
		updated_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP
	)`,
}

// Open opens the sqlite database at path and brings its schema up to date.
func Open(path string) (*sql.DB, error) {
	dsn := path
	if path != ":memory:" {
		dsn += "?_busy_timeout=5000&_journal_mode=WAL"
	}
	conn, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	// one writer; sqlite serializes anyway and :memory: is per-connection
	conn.SetMaxOpenConns(1)

	if err := ApplyMigrations(conn); err != nil {
		conn.Close()
		return nil, err
	}
	return conn, nil
}

// ApplyMigrations runs every migration newer than the stored user_version.
func ApplyMigrations(conn *sql.DB) error {
	var version int
	if err := conn.QueryRow(`PRAGMA user_version`).Scan(&version); err != nil {
		return fmt.Errorf("read schema version: %w", err)
	}

	for i := version; i < len(migrations) && i < schemaVersion; i++ {
		tx, err := StartTransaction(conn)
		if err != nil {
			return err
		}
		if _, err := tx.Exec(migrations[i]); err != nil {
			RollbackTransaction(tx)
			return fmt.Errorf("apply migration %d: %w", i+1, err)
		}
		if _, err := tx.Exec(fmt.Sprintf(`PRAGMA user_version = %d`, i+1)); err != nil {
			RollbackTransaction(tx)
			return fmt.Errorf("bump schema version to %d: %w", i+1, err)
		}
		if err := CommitTransaction(tx); err != nil {
			return err
		}
		log.Info().Int("version", i+1).Msg("Applied database migration")
	}
	return nil
}

// SeedDefaults inserts values for keys that have never been written. Existing
// values are left alone so operator changes survive restarts.
func SeedDefaults(conn *sql.DB, defaults map[string]float64) error {
	tx, err := StartTransaction(conn)
	if err != nil {
		return err
	}
	defer RollbackTransaction(tx)

	seeded := 0
	for key, value := range defaults {
		res, err := tx.Exec(`INSERT OR IGNORE INTO settings (key, value) VALUES (?, ?)`, key, value)
		if err != nil {
			return fmt.Errorf("seed %s: %w", key, err)
		}
		if n, _ := res.RowsAffected(); n > 0 {
			seeded++
		}
	}

	if err := CommitTransaction(tx); err != nil {
		return err
	}
	if seeded > 0 {
		log.Info().Int("seeded", seeded).Msg("Database seeded with default settings")
	}
	return nil
}
