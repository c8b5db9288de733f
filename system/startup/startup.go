// Package startup writes the boot-time relay script and the systemd units
// that run the controller.
package startup

import (
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"sort"
	"strings"
)

type Options struct {
	Chip            string
	RelayLines      []int
	RelayActiveHigh bool

	BootScriptPath  string
	BootServicePath string
	MainServicePath string

	User       string
	WorkingDir string
	Binary     string
	ConfigFile string
	DBPath     string
}

// WriteBootScript writes a script that drives every relay line to its
// de-energised level before the controller starts.
func WriteBootScript(o Options) error {
	off := 0
	if !o.RelayActiveHigh {
		off = 1
	}

	lines := append([]int(nil), o.RelayLines...)
	sort.Ints(lines)

	var assignments []string
	for _, l := range lines {
		assignments = append(assignments, fmt.Sprintf("%d=%d", l, off))
	}

	script := []string{
		"#!/bin/bash",
		"",
		"# Radiant controller relays off at boot",
		"",
		fmt.Sprintf("gpioset %s %s", o.Chip, strings.Join(assignments, " ")),
		"",
	}
	if err := os.MkdirAll(filepath.Dir(o.BootScriptPath), 0755); err != nil {
		return err
	}
	return os.WriteFile(o.BootScriptPath, []byte(strings.Join(script, "\n")), 0755)
}

func InstallBootService(o Options) error {
	unit := fmt.Sprintf(`[Unit]
Description=Drive radiant zone relays off at boot
After=local-fs.target

[Service]
Type=oneshot
Environment=PATH=/usr/local/bin:/usr/bin:/bin
ExecStart=%s
RemainAfterExit=true

[Install]
WantedBy=multi-user.target
`, o.BootScriptPath)

	return os.WriteFile(o.BootServicePath, []byte(unit), 0644)
}

func InstallControllerService(o Options) error {
	bootUnit := filepath.Base(o.BootServicePath)

	unit := fmt.Sprintf(`[Unit]
Description=Radiant floor heating controller
After=%s network-online.target
Requires=%s

[Service]
Type=simple
User=%s
WorkingDirectory=%s
ExecStart=%s -config-file %s -db %s
Restart=on-failure
RestartSec=5s

[Install]
WantedBy=multi-user.target
`, bootUnit, bootUnit, o.User, o.WorkingDir, o.Binary, o.ConfigFile, o.DBPath)

	return os.WriteFile(o.MainServicePath, []byte(unit), 0644)
}

// Install writes the boot script and both units.
func Install(o Options) error {
	if err := WriteBootScript(o); err != nil {
		return fmt.Errorf("write boot script: %w", err)
	}
	if err := InstallBootService(o); err != nil {
		return fmt.Errorf("install boot service: %w", err)
	}
	if err := InstallControllerService(o); err != nil {
		return fmt.Errorf("install controller service: %w", err)
	}
	return nil
}

func RunBootScript(path string) error {
	cmd := exec.Command("/bin/bash", path)
	cmd.Stdout = os.Stdout
	cmd.Stderr = os.Stderr
	return cmd.Run()
}
