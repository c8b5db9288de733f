package db

import (
	"fmt"

	"github.com/thatsimonsguy/radiant-controller/internal/model"
)

func SetZoneSetpointCLI(dbPath string, zoneID int, setpoint float64) error {
	if err := model.ValidateZoneID(zoneID); err != nil {
		return err
	}
	return SetSettingCLI(dbPath, model.SetpointKey(zoneID), setpoint)
}

func SetSettingCLI(dbPath, key string, value float64) error {
	if err := model.ValidateSetting(key, value); err != nil {
		return err
	}
	conn, err := Open(dbPath)
	if err != nil {
		return err
	}
	defer conn.Close()

	return SaveSettings(conn, map[string]float64{key: value})
}

func ShowSettingsCLI(dbPath string) (map[string]float64, error) {
	conn, err := Open(dbPath)
	if err != nil {
		return nil, err
	}
	defer conn.Close()

	settings, err := LoadAllSettings(conn)
	if err != nil {
		return nil, fmt.Errorf("show settings: %w", err)
	}
	return settings, nil
}
