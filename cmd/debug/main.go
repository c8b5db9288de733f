package main

import (
	"flag"
	"fmt"
	"os"
	"sort"

	"github.com/thatsimonsguy/radiant-controller/db"
	"github.com/thatsimonsguy/radiant-controller/internal/config"
	"github.com/thatsimonsguy/radiant-controller/system/startup"
)

func main() {
	DebugCLI()
}

func DebugCLI() {
	var dbPath, command, key, configFile string
	var zoneID int
	var value float64
	var opts startup.Options

	flag.StringVar(&dbPath, "db", "data/radiant.db", "Path to the SQLite database file")
	flag.StringVar(&command, "cmd", "", "Command to run: set-zone-setpoint, set-setting, show-settings, install-service")
	flag.IntVar(&zoneID, "zone", 0, "Zone ID (1-7) for zone commands")
	flag.StringVar(&key, "key", "", "Setting key for set-setting")
	flag.Float64Var(&value, "value", 0, "Value for set-zone-setpoint or set-setting")
	flag.StringVar(&configFile, "config-file", "config.yaml", "Controller config file for install-service")
	flag.StringVar(&opts.User, "user", "radiant", "Service user for install-service")
	flag.StringVar(&opts.WorkingDir, "workdir", "/opt/radiant-controller", "Service working directory")
	flag.StringVar(&opts.Binary, "binary", "/opt/radiant-controller/radiant-controller", "Controller binary path")
	flag.StringVar(&opts.BootScriptPath, "boot-script", "/usr/local/bin/radiant-relays-off.sh", "Boot script path")
	flag.StringVar(&opts.BootServicePath, "boot-service", "/etc/systemd/system/radiant-relays-off.service", "Boot unit path")
	flag.StringVar(&opts.MainServicePath, "main-service", "/etc/systemd/system/radiant-controller.service", "Controller unit path")
	help := flag.Bool("help", false, "Show help")
	flag.Parse()

	if *help || command == "" {
		fmt.Println("\nUsage of radiant-debug:")
		flag.PrintDefaults()
		os.Exit(0)
	}

	var err error
	switch command {
	case "set-zone-setpoint":
		err = db.SetZoneSetpointCLI(dbPath, zoneID, value)
	case "set-setting":
		if key == "" {
			fmt.Println("Error: setting key is required")
			os.Exit(1)
		}
		err = db.SetSettingCLI(dbPath, key, value)
	case "show-settings":
		var settings map[string]float64
		settings, err = db.ShowSettingsCLI(dbPath)
		if err == nil {
			printSettings(settings)
		}
	case "install-service":
		cfg := config.LoadFile(configFile)
		opts.Chip = cfg.GPIO.Chip
		opts.RelayLines = cfg.RelayLines()
		opts.RelayActiveHigh = *cfg.GPIO.RelayActiveHigh
		opts.ConfigFile = configFile
		opts.DBPath = dbPath
		err = startup.Install(opts)
	default:
		fmt.Println("Invalid command")
		os.Exit(1)
	}

	if err != nil {
		fmt.Printf("Command %s failed: %v\n", command, err)
		os.Exit(1)
	}
	fmt.Printf("Command %s completed successfully\n", command)
}

func printSettings(settings map[string]float64) {
	keys := make([]string, 0, len(settings))
	for k := range settings {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		fmt.Printf("  %-28s %g\n", k, settings[k])
	}
}
