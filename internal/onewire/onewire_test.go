package onewire

import (
	"fmt"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeSensor(t *testing.T, root, addr, contents string) {
	t.Helper()
	dir := filepath.Join(root, addr)
	require.NoError(t, os.MkdirAll(dir, 0o755))
	if contents != "" {
		require.NoError(t, os.WriteFile(filepath.Join(dir, "w1_slave"), []byte(contents), 0o644))
	}
}

func goodReading(milliC string) string {
	return "72 01 4b 46 7f ff 0e 10 57 : crc=57 YES\n72 01 4b 46 7f ff 0e 10 57 t=" + milliC + "\n"
}

func TestParseW1Slave(t *testing.T) {
	c, err := ParseW1Slave([]byte(goodReading("23125")))
	require.NoError(t, err)
	assert.InDelta(t, 23.125, c, 0.0001)

	c, err = ParseW1Slave([]byte(goodReading("-1250")))
	require.NoError(t, err)
	assert.InDelta(t, -1.25, c, 0.0001)

	_, err = ParseW1Slave([]byte("72 01 4b 46 7f ff 0e 10 57 : crc=57 NO\n72 01 t=23125\n"))
	assert.ErrorIs(t, err, ErrCRC)

	_, err = ParseW1Slave([]byte("garbage"))
	assert.ErrorIs(t, err, ErrMalformed)

	_, err = ParseW1Slave([]byte("x : crc=00 YES\nx t=abc\n"))
	assert.ErrorIs(t, err, ErrMalformed)
}

func TestBus_ListSkipsBusMaster(t *testing.T) {
	root := t.TempDir()
	writeSensor(t, root, "28-00000b1c2d3e", goodReading("20000"))
	writeSensor(t, root, "28-00000a1b2c3d", goodReading("21000"))
	require.NoError(t, os.MkdirAll(filepath.Join(root, "w1_bus_master1"), 0o755))

	addrs, err := NewBus(root).List()
	require.NoError(t, err)
	assert.Equal(t, []string{"28-00000a1b2c3d", "28-00000b1c2d3e"}, addrs)
}

func TestBus_EnumerateRecordsUnreadable(t *testing.T) {
	root := t.TempDir()
	writeSensor(t, root, "28-000000000001", goodReading("20500"))
	writeSensor(t, root, "28-000000000002", goodReading("21500"))
	writeSensor(t, root, "28-000000000003", "bad : crc=ff NO\nbad t=0\n")
	writeSensor(t, root, "28-000000000004", goodReading("22500"))

	devices, err := NewBus(root).Enumerate(30)
	require.NoError(t, err)
	require.Len(t, devices, 4)

	assert.NoError(t, devices[0].Err)
	assert.InDelta(t, 20.5, devices[0].Celsius, 0.001)
	assert.ErrorIs(t, devices[2].Err, ErrCRC)
	assert.NoError(t, devices[3].Err)
}

func TestBus_EnumerateLimit(t *testing.T) {
	root := t.TempDir()
	for _, a := range []string{"28-01", "28-02", "28-03"} {
		writeSensor(t, root, a, goodReading("20000"))
	}

	devices, err := NewBus(root).Enumerate(2)
	require.NoError(t, err)
	assert.Len(t, devices, 2)
}

func TestBus_MissingDevicesDir(t *testing.T) {
	_, err := NewBus(filepath.Join(t.TempDir(), "nope")).Enumerate(30)
	assert.Error(t, err)
}

func TestBus_EnumerateReleasesBusBetweenConversions(t *testing.T) {
	root := t.TempDir()
	for i := 1; i <= 7; i++ {
		writeSensor(t, root, fmt.Sprintf("28-00000000000%d", i), goodReading("20000"))
	}

	const conversion = 20 * time.Millisecond
	bus := NewBus(root)
	bus.readFile = func(name string) ([]byte, error) {
		time.Sleep(conversion)
		return os.ReadFile(name)
	}

	done := make(chan []Device)
	go func() {
		devices, err := bus.Enumerate(30)
		assert.NoError(t, err)
		done <- devices
	}()
	time.Sleep(conversion + conversion/2)

	begin := time.Now()
	c, err := bus.ReadTemperature("28-000000000001")
	waited := time.Since(begin)
	require.NoError(t, err)
	assert.Equal(t, 20.0, c)
	assert.Less(t, waited, 4*conversion, "a zone read waits for one conversion, not the whole scan")

	devices := <-done
	assert.Len(t, devices, 7)
}
