package model

import (
	"fmt"
	"time"
)

// NumZones is the fixed number of independently controlled heating circuits.
const NumZones = 7

const (
	SetpointMin float64 = 10
	SetpointMax float64 = 30

	// WarningScore is the display-only threshold for a zone in trouble.
	WarningScore  = 50
	MaxErrorScore = 100
)

type DisplayState string

const (
	DisplayIdle          DisplayState = "idle"
	DisplayHeating       DisplayState = "heating"
	DisplayWarning       DisplayState = "warning"
	DisplaySensorMissing DisplayState = "sensor_missing"
	DisplaySensorError   DisplayState = "sensor_error"
	DisplayDisabled      DisplayState = "disabled"
)

// Zone is one heating circuit. Zones live in a fixed array owned by the
// control loop and are addressed by ID 1..NumZones.
type Zone struct {
	ID           int          `json:"id"`
	Label        string       `json:"label"`
	Setpoint     float64      `json:"setpoint"`
	Temperature  *float64     `json:"current_temperature"`
	CallingHeat  bool         `json:"calling_for_heat"`
	ValveOpen    bool         `json:"valve_confirmed_open"`
	RelayOn      bool         `json:"relay_command"`
	ErrorScore   int          `json:"error_score"`
	Disabled     bool         `json:"disabled"`
	Sensor       Sensor       `json:"sensor"`
	DisplayState DisplayState `json:"display_state"`
	History      []float64    `json:"history"`
}

// TemperatureOK returns the current reading, or false when the sensor is unavailable.
func (z Zone) TemperatureOK() (float64, bool) {
	if z.Temperature == nil {
		return 0, false
	}
	return *z.Temperature, true
}

type Sensor struct {
	Address string `json:"address"`
}

type Pump struct {
	Demand  bool   `json:"demand"`
	RelayOn bool   `json:"relay_on"`
	History []bool `json:"history"`
}

// Settings are the global tunables shared across zones.
type Settings struct {
	Hysteresis        float64
	PumpStartDelay    time.Duration
	PumpStopDelay     time.Duration
	ErrorDisableDelay time.Duration
}

// Setting keys used by the persistence store.
const (
	KeyHysteresis          = "hysteresis"
	KeyPumpStartDelay      = "pump_start_delay_seconds"
	KeyPumpStopDelay       = "pump_stop_delay_seconds"
	KeyErrorDisableMinutes = "error_disable_minutes"
)

func SetpointKey(zoneID int) string {
	return fmt.Sprintf("zone_%d_setpoint", zoneID)
}

type ScanState string

const (
	ScanIdle      ScanState = "idle"
	ScanScanning  ScanState = "scanning"
	ScanReporting ScanState = "reporting"
)

// DiscoveredSensor is one entry of a bus scan. Reading is nil when the device
// could not be read.
type DiscoveredSensor struct {
	Index   int      `json:"index"`
	Address string   `json:"address"`
	Reading *float64 `json:"last_reading"`
	Error   string   `json:"error,omitempty"`
}

type ScanReport struct {
	ID          string             `json:"id"`
	StartedAt   time.Time          `json:"started_at"`
	CompletedAt time.Time          `json:"completed_at"`
	Count       int                `json:"discovered_sensor_count"`
	Sensors     []DiscoveredSensor `json:"sensors"`
	Error       string             `json:"error,omitempty"`
}

// Snapshot is a consistent copy of controller state taken between ticks.
type Snapshot struct {
	Timestamp         time.Time      `json:"timestamp"`
	Zones             [NumZones]Zone `json:"zones"`
	Pump              Pump           `json:"pump"`
	Hysteresis        float64        `json:"hysteresis"`
	PumpStartDelaySec float64        `json:"pump_start_delay_seconds"`
	PumpStopDelaySec  float64        `json:"pump_stop_delay_seconds"`
	ErrorDisableMin   float64        `json:"error_disable_minutes"`
	AnyValveOpen      bool           `json:"any_valve_open"`
	ActiveZones       int            `json:"active_zone_count"`
	ScanState         ScanState      `json:"scan_state"`
	LastScan          *ScanReport    `json:"last_scan,omitempty"`
}

// Zone returns the zone with the given 1-based ID.
func (s *Snapshot) Zone(id int) (Zone, bool) {
	if id < 1 || id > NumZones {
		return Zone{}, false
	}
	return s.Zones[id-1], true
}
