package db

import (
	"database/sql"
	"fmt"
)

// StartTransaction starts a new database transaction.
func StartTransaction(db *sql.DB) (*sql.Tx, error) {
	tx, err := db.Begin()
	if err != nil {
		return nil, fmt.Errorf("failed to start transaction: %w", err)
	}
	return tx, nil
}

// CommitTransaction commits the given transaction.
func CommitTransaction(tx *sql.Tx) error {
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

// RollbackTransaction rolls back the given transaction. Rolling back a
// committed transaction is a no-op.
func RollbackTransaction(tx *sql.Tx) {
	tx.Rollback()
}

func SaveSettingWithTx(tx *sql.Tx, key string, value float64) error {
	_, err := tx.Exec(`INSERT INTO settings (key, value, updated_at) VALUES (?, ?, CURRENT_TIMESTAMP)
		ON CONFLICT(key) DO UPDATE SET value = excluded.value, updated_at = excluded.updated_at`, key, value)
	if err != nil {
		return fmt.Errorf("save setting %s: %w", key, err)
	}
	return nil
}

// SaveSettings writes every value in one transaction: either all of them are
// stored or none are.
func SaveSettings(db *sql.DB, values map[string]float64) error {
	tx, err := StartTransaction(db)
	if err != nil {
		return err
	}
	for key, value := range values {
		if err := SaveSettingWithTx(tx, key, value); err != nil {
			RollbackTransaction(tx)
			return err
		}
	}
	return CommitTransaction(tx)
}
