// Package onewire reads DS18B20-style temperature sensors exposed by the
// Linux w1 sysfs driver. The bus is shared between the temperature poller and
// the discovery scanner. The Bus mutex is held for one listing or one
// conversion at a time, never for a whole scan.
package onewire

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"sync"
)

const DefaultDevicesPath = "/sys/bus/w1/devices"

var (
	ErrCRC       = errors.New("crc check failed")
	ErrMalformed = errors.New("temperature data missing or malformed")
)

// Device is one enumerated bus address and the outcome of reading it.
type Device struct {
	Address string
	Celsius float64
	Err     error
}

type Bus struct {
	devicesPath string
	mu          sync.Mutex
	readFile    func(name string) ([]byte, error)
}

func NewBus(devicesPath string) *Bus {
	if devicesPath == "" {
		devicesPath = DefaultDevicesPath
	}
	return &Bus{devicesPath: devicesPath, readFile: os.ReadFile}
}

// List returns the addresses of all slave devices currently on the bus.
func (b *Bus) List() ([]string, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.list()
}

func (b *Bus) list() ([]string, error) {
	entries, err := os.ReadDir(b.devicesPath)
	if err != nil {
		return nil, fmt.Errorf("read w1 devices: %w", err)
	}

	var addrs []string
	for _, e := range entries {
		name := e.Name()
		if strings.HasPrefix(name, "w1_bus_master") || !strings.Contains(name, "-") {
			continue
		}
		addrs = append(addrs, name)
	}
	sort.Strings(addrs)
	return addrs, nil
}

// ReadTemperature performs one conversion on the given address.
func (b *Bus) ReadTemperature(address string) (float64, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.read(address)
}

func (b *Bus) read(address string) (float64, error) {
	data, err := b.readFile(filepath.Join(b.devicesPath, address, "w1_slave"))
	if err != nil {
		return 0, fmt.Errorf("read sensor %s: %w", address, err)
	}
	c, err := ParseW1Slave(data)
	if err != nil {
		return 0, fmt.Errorf("sensor %s: %w", address, err)
	}
	return c, nil
}

// Enumerate lists up to max devices and reads one conversion from each. A
// failing address is recorded on its Device and does not stop the scan. The
// bus is released between conversions so zone polling interleaves with it.
func (b *Bus) Enumerate(max int) ([]Device, error) {
	addrs, err := b.List()
	if err != nil {
		return nil, err
	}
	if max > 0 && len(addrs) > max {
		addrs = addrs[:max]
	}

	devices := make([]Device, 0, len(addrs))
	for _, addr := range addrs {
		c, err := b.ReadTemperature(addr)
		devices = append(devices, Device{Address: addr, Celsius: c, Err: err})
	}
	return devices, nil
}

// ParseW1Slave decodes the two-line w1_slave format:
//
//	72 01 4b 46 7f ff 0e 10 57 : crc=57 YES
//	72 01 4b 46 7f ff 0e 10 57 t=23125
func ParseW1Slave(data []byte) (float64, error) {
	lines := strings.Split(strings.TrimSpace(string(data)), "\n")
	if len(lines) < 2 {
		return 0, ErrMalformed
	}
	if !strings.HasSuffix(strings.TrimSpace(lines[0]), "YES") {
		return 0, ErrCRC
	}

	parts := strings.Split(lines[1], "t=")
	if len(parts) != 2 {
		return 0, ErrMalformed
	}

	milliC, err := strconv.Atoi(strings.TrimSpace(parts[1]))
	if err != nil {
		return 0, fmt.Errorf("%w: %v", ErrMalformed, err)
	}
	return float64(milliC) / 1000.0, nil
}
