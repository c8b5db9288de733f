package config

import (
	"bytes"
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"gopkg.in/yaml.v3"

	"github.com/thatsimonsguy/radiant-controller/internal/model"
)

type Zone struct {
	ID        int     `json:"id" yaml:"id"`
	Label     string  `json:"label" yaml:"label"`
	Sensor    string  `json:"sensor" yaml:"sensor"` // 1-Wire address, e.g. 28-00000a1b2c3d
	RelayLine *int    `json:"relay_line" yaml:"relay_line"`
	ValveLine *int    `json:"valve_line" yaml:"valve_line"`
	Setpoint  float64 `json:"setpoint" yaml:"setpoint"`
}

type Pump struct {
	RelayLine         *int    `json:"relay_line" yaml:"relay_line"`
	StartDelaySeconds float64 `json:"start_delay_seconds" yaml:"start_delay_seconds"`
	StopDelaySeconds  float64 `json:"stop_delay_seconds" yaml:"stop_delay_seconds"`
}

type Thermostat struct {
	Hysteresis float64 `json:"hysteresis" yaml:"hysteresis"`
}

type Failsafe struct {
	ErrorDisableMinutes float64 `json:"error_disable_minutes" yaml:"error_disable_minutes"`
}

type GPIO struct {
	Chip            string `json:"chip" yaml:"chip"`
	RelayActiveHigh *bool  `json:"relay_active_high" yaml:"relay_active_high"`
	ValveActiveLow  *bool  `json:"valve_active_low" yaml:"valve_active_low"`
	ValveDebounceMs int    `json:"valve_debounce_ms" yaml:"valve_debounce_ms"`
	SafeMode        bool   `json:"safe_mode" yaml:"safe_mode"`
	// Simulate runs against in-memory lines instead of the GPIO chip.
	Simulate bool `json:"simulate" yaml:"simulate"`
}

type OneWire struct {
	DevicesPath    string `json:"devices_path" yaml:"devices_path"`
	PollSeconds    int    `json:"poll_seconds" yaml:"poll_seconds"`
	MaxScanDevices int    `json:"max_scan_devices" yaml:"max_scan_devices"`
}

type Datadog struct {
	Enabled   bool     `json:"enabled" yaml:"enabled"`
	AgentAddr string   `json:"agent_addr" yaml:"agent_addr"`
	Namespace string   `json:"namespace" yaml:"namespace"`
	Tags      []string `json:"tags" yaml:"tags"`
}

type MQTT struct {
	Broker         string `json:"broker" yaml:"broker"`
	ClientID       string `json:"client_id" yaml:"client_id"`
	Topic          string `json:"topic" yaml:"topic"`
	Username       string `json:"username" yaml:"username"`
	Password       string `json:"password" yaml:"password"`
	PublishSeconds int    `json:"publish_seconds" yaml:"publish_seconds"`
}

type Config struct {
	ConfigFile string        `json:"-" yaml:"-"`
	DBPath     string        `json:"-" yaml:"-"`
	LogLevel   zerolog.Level `json:"-" yaml:"-"`

	LogFile                string `json:"log_file" yaml:"log_file"`
	TickMillis             int    `json:"tick_millis" yaml:"tick_millis"`
	PersistDebounceMs      int    `json:"persist_debounce_ms" yaml:"persist_debounce_ms"`
	HistoryIntervalSeconds int    `json:"history_interval_seconds" yaml:"history_interval_seconds"`
	APIPort                int    `json:"api_port" yaml:"api_port"`
	NtfyTopic              string `json:"ntfy_topic" yaml:"ntfy_topic"`

	Zones      []Zone     `json:"zones" yaml:"zones"`
	Pump       Pump       `json:"pump" yaml:"pump"`
	Thermostat Thermostat `json:"thermostat" yaml:"thermostat"`
	Failsafe   Failsafe   `json:"failsafe" yaml:"failsafe"`
	GPIO       GPIO       `json:"gpio" yaml:"gpio"`
	OneWire    OneWire    `json:"onewire" yaml:"onewire"`
	Datadog    Datadog    `json:"datadog" yaml:"datadog"`
	MQTT       MQTT       `json:"mqtt" yaml:"mqtt"`
}

func Load() Config {
	var configFile, dbPath, logLevel string

	flag.StringVar(&configFile, "config-file", "config.yaml", "Path to controller config file (.yaml, .yml or .json)")
	flag.StringVar(&dbPath, "db", "data/radiant.db", "Path to sqlite settings database")
	flag.StringVar(&logLevel, "log-level", "info", "Log level (debug, info, warn, error)")
	flag.Parse()

	cfg := LoadFile(configFile)
	cfg.DBPath = dbPath
	cfg.LogLevel = parseLogLevel(logLevel)
	return cfg
}

// LoadFile reads, defaults and validates a config file. Any problem panics.
func LoadFile(path string) Config {
	data, err := os.ReadFile(path)
	if err != nil {
		panic("Failed to load config file: " + err.Error())
	}

	cfg, err := decode(data, filepath.Ext(path))
	if err != nil {
		panic("Failed to parse config file: " + err.Error())
	}
	cfg.ConfigFile = path

	cfg.applyDefaults()
	cfg.validate()
	return cfg
}

func decode(data []byte, ext string) (Config, error) {
	var cfg Config
	switch strings.ToLower(ext) {
	case ".yaml", ".yml":
		dec := yaml.NewDecoder(bytes.NewReader(data))
		dec.KnownFields(true)
		if err := dec.Decode(&cfg); err != nil {
			return cfg, fmt.Errorf("yaml: %w", err)
		}
	default:
		dec := json.NewDecoder(bytes.NewReader(data))
		dec.DisallowUnknownFields()
		if err := dec.Decode(&cfg); err != nil {
			return cfg, fmt.Errorf("json: %w", err)
		}
	}
	return cfg, nil
}

func parseLogLevel(level string) zerolog.Level {
	switch level {
	case "debug":
		return zerolog.DebugLevel
	case "warn":
		return zerolog.WarnLevel
	case "error":
		return zerolog.ErrorLevel
	default:
		return zerolog.InfoLevel
	}
}

func (cfg *Config) applyDefaults() {
	defaults := model.DefaultSettings()

	if cfg.TickMillis == 0 {
		cfg.TickMillis = 250
	}
	if cfg.PersistDebounceMs == 0 {
		cfg.PersistDebounceMs = 2000
	}
	if cfg.HistoryIntervalSeconds == 0 {
		cfg.HistoryIntervalSeconds = 30
	}
	if cfg.APIPort == 0 {
		cfg.APIPort = 8080
	}
	if cfg.Pump.StartDelaySeconds == 0 {
		cfg.Pump.StartDelaySeconds = defaults.PumpStartDelay.Seconds()
	}
	if cfg.Pump.StopDelaySeconds == 0 {
		cfg.Pump.StopDelaySeconds = defaults.PumpStopDelay.Seconds()
	}
	if cfg.Thermostat.Hysteresis == 0 {
		cfg.Thermostat.Hysteresis = defaults.Hysteresis
	}
	if cfg.Failsafe.ErrorDisableMinutes == 0 {
		cfg.Failsafe.ErrorDisableMinutes = defaults.ErrorDisableDelay.Minutes()
	}
	if cfg.GPIO.Chip == "" {
		cfg.GPIO.Chip = "gpiochip0"
	}
	if cfg.GPIO.RelayActiveHigh == nil {
		t := true
		cfg.GPIO.RelayActiveHigh = &t
	}
	if cfg.GPIO.ValveActiveLow == nil {
		t := true
		cfg.GPIO.ValveActiveLow = &t
	}
	if cfg.GPIO.ValveDebounceMs == 0 {
		cfg.GPIO.ValveDebounceMs = 50
	}
	if cfg.OneWire.DevicesPath == "" {
		cfg.OneWire.DevicesPath = "/sys/bus/w1/devices"
	}
	if cfg.OneWire.PollSeconds == 0 {
		cfg.OneWire.PollSeconds = 5
	}
	if cfg.OneWire.MaxScanDevices == 0 {
		cfg.OneWire.MaxScanDevices = 30
	}
	if cfg.Datadog.AgentAddr == "" {
		cfg.Datadog.AgentAddr = "127.0.0.1:8125"
	}
	if cfg.Datadog.Namespace == "" {
		cfg.Datadog.Namespace = "radiant."
	}
	if cfg.MQTT.ClientID == "" {
		cfg.MQTT.ClientID = "radiant-controller"
	}
	if cfg.MQTT.Topic == "" {
		cfg.MQTT.Topic = "radiant/status"
	}
	if cfg.MQTT.PublishSeconds == 0 {
		cfg.MQTT.PublishSeconds = 10
	}
	for i := range cfg.Zones {
		if cfg.Zones[i].Setpoint == 0 {
			cfg.Zones[i].Setpoint = 20
		}
		if cfg.Zones[i].Label == "" {
			cfg.Zones[i].Label = fmt.Sprintf("Zone %d", cfg.Zones[i].ID)
		}
	}
}

func (cfg *Config) validate() {
	var (
		missingFields []string
		usedLines     = map[int]string{}
		conflicts     []string
		invalid       []string
	)

	claim := func(name string, line *int) {
		if line == nil {
			missingFields = append(missingFields, name)
			return
		}
		if other, exists := usedLines[*line]; exists {
			conflicts = append(conflicts, fmt.Sprintf("%s and %s both use line %d", name, other, *line))
			return
		}
		usedLines[*line] = name
	}

	if len(cfg.Zones) != model.NumZones {
		invalid = append(invalid, fmt.Sprintf("expected %d zones, got %d", model.NumZones, len(cfg.Zones)))
	}
	for i, z := range cfg.Zones {
		prefix := fmt.Sprintf("zones[%d]", i)
		if z.ID != i+1 {
			invalid = append(invalid, fmt.Sprintf("%s.id must be %d, got %d", prefix, i+1, z.ID))
		}
		if err := model.ValidateSetpoint(z.Setpoint); err != nil {
			invalid = append(invalid, prefix+".setpoint: "+err.Error())
		}
		claim(prefix+".relay_line", z.RelayLine)
		claim(prefix+".valve_line", z.ValveLine)
	}
	claim("pump.relay_line", cfg.Pump.RelayLine)

	for key, v := range cfg.Settings().Values() {
		if err := model.ValidateSetting(key, v); err != nil {
			invalid = append(invalid, err.Error())
		}
	}
	if cfg.TickMillis < 10 || cfg.TickMillis > 1000 {
		invalid = append(invalid, fmt.Sprintf("tick_millis must be within [10, 1000], got %d", cfg.TickMillis))
	}

	if len(missingFields) > 0 {
		panic("Missing required GPIO config fields: " + strings.Join(missingFields, ", "))
	}
	if len(conflicts) > 0 {
		panic("Conflicting GPIO lines: " + strings.Join(conflicts, ", "))
	}
	if len(invalid) > 0 {
		panic("Invalid config: " + strings.Join(invalid, "; "))
	}
}

// Settings are the configured defaults for the global tunables. Persisted
// values override them at startup.
func (cfg *Config) Settings() model.Settings {
	return model.Settings{
		Hysteresis:        cfg.Thermostat.Hysteresis,
		PumpStartDelay:    time.Duration(cfg.Pump.StartDelaySeconds * float64(time.Second)),
		PumpStopDelay:     time.Duration(cfg.Pump.StopDelaySeconds * float64(time.Second)),
		ErrorDisableDelay: time.Duration(cfg.Failsafe.ErrorDisableMinutes * float64(time.Minute)),
	}
}

func (cfg *Config) Tick() time.Duration {
	return time.Duration(cfg.TickMillis) * time.Millisecond
}

func (cfg *Config) RelayLines() []int {
	lines := make([]int, 0, len(cfg.Zones)+1)
	for _, z := range cfg.Zones {
		lines = append(lines, *z.RelayLine)
	}
	return append(lines, *cfg.Pump.RelayLine)
}

func (cfg *Config) ValveLines() map[int]int {
	lines := make(map[int]int, len(cfg.Zones))
	for _, z := range cfg.Zones {
		lines[z.ID] = *z.ValveLine
	}
	return lines
}

func (cfg *Config) SensorAddresses() map[int]string {
	addrs := make(map[int]string, len(cfg.Zones))
	for _, z := range cfg.Zones {
		addrs[z.ID] = z.Sensor
	}
	return addrs
}
