package db

import (
	"database/sql"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/thatsimonsguy/radiant-controller/internal/model"
)

func openTestDB(t *testing.T) *sql.DB {
	t.Helper()
	conn, err := Open(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })
	return conn
}

func TestApplyMigrationsIdempotent(t *testing.T) {
	conn := openTestDB(t)
	require.NoError(t, ApplyMigrations(conn))

	var version int
	require.NoError(t, conn.QueryRow(`PRAGMA user_version`).Scan(&version))
	assert.Equal(t, schemaVersion, version)
}

func TestLoadSetting_Missing(t *testing.T) {
	conn := openTestDB(t)

	_, ok, err := LoadSetting(conn, model.SetpointKey(1))
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestSaveSettings_Upsert(t *testing.T) {
	conn := openTestDB(t)

	require.NoError(t, SaveSettings(conn, map[string]float64{
		model.SetpointKey(1): 21.5,
		model.KeyHysteresis:  0.5,
	}))
	require.NoError(t, SaveSettings(conn, map[string]float64{model.SetpointKey(1): 22}))

	v, ok, err := LoadSetting(conn, model.SetpointKey(1))
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, 22.0, v)

	all, err := LoadAllSettings(conn)
	require.NoError(t, err)
	assert.Len(t, all, 2)
}

func TestSaveSettings_AllOrNothing(t *testing.T) {
	conn := openTestDB(t)
	require.NoError(t, SaveSettings(conn, map[string]float64{model.SetpointKey(2): 20}))

	_, err := conn.Exec(`CREATE TRIGGER reject_hysteresis BEFORE INSERT ON settings
		WHEN NEW.key = 'hysteresis' BEGIN SELECT RAISE(ABORT, 'rejected'); END`)
	require.NoError(t, err)

	err = SaveSettings(conn, map[string]float64{
		model.SetpointKey(2): 25,
		model.KeyHysteresis:  1,
	})
	require.Error(t, err)

	v, _, err := LoadSetting(conn, model.SetpointKey(2))
	require.NoError(t, err)
	assert.Equal(t, 20.0, v, "failed batch must not leave a partial write")
}

func TestSeedDefaults_KeepsExisting(t *testing.T) {
	conn := openTestDB(t)
	require.NoError(t, SaveSettings(conn, map[string]float64{model.SetpointKey(3): 24}))

	require.NoError(t, SeedDefaults(conn, map[string]float64{
		model.SetpointKey(3): 20,
		model.SetpointKey(4): 20,
	}))

	all, err := LoadAllSettings(conn)
	require.NoError(t, err)
	assert.Equal(t, 24.0, all[model.SetpointKey(3)])
	assert.Equal(t, 20.0, all[model.SetpointKey(4)])
}

func TestCLIHelpers(t *testing.T) {
	path := filepath.Join(t.TempDir(), "radiant.db")

	require.NoError(t, SetZoneSetpointCLI(path, 5, 23.5))
	require.NoError(t, SetSettingCLI(path, model.KeyPumpStopDelay, 45))

	assert.ErrorIs(t, SetZoneSetpointCLI(path, 9, 20), model.ErrUnknownZone)
	assert.ErrorIs(t, SetZoneSetpointCLI(path, 1, 31), model.ErrSetpointOutOfRange)
	assert.ErrorIs(t, SetSettingCLI(path, "nope", 1), model.ErrUnknownSetting)

	settings, err := ShowSettingsCLI(path)
	require.NoError(t, err)
	assert.Equal(t, map[string]float64{
		model.SetpointKey(5):   23.5,
		model.KeyPumpStopDelay: 45,
	}, settings)
}
