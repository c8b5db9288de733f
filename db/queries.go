package db

import (
	"database/sql"
	"errors"
	"fmt"
)

// LoadSetting returns the stored value for key. The bool is false when the
// key has never been written.
func LoadSetting(db *sql.DB, key string) (float64, bool, error) {
	var value float64
	err := db.QueryRow(`SELECT value FROM settings WHERE key = ?`, key).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, false, nil
	}
	if err != nil {
		return 0, false, fmt.Errorf("load setting %s: %w", key, err)
	}
	return value, true, nil
}

func LoadAllSettings(db *sql.DB) (map[string]float64, error) {
	rows, err := db.Query(`SELECT key, value FROM settings ORDER BY key`)
	if err != nil {
		return nil, fmt.Errorf("query settings: %w", err)
	}
	defer rows.Close()

	settings := make(map[string]float64)
	for rows.Next() {
		var key string
		var value float64
		if err := rows.Scan(&key, &value); err != nil {
			return nil, fmt.Errorf("scan setting: %w", err)
		}
		settings[key] = value
	}
	return settings, rows.Err()
}
