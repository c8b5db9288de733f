//go:build !linux

package gpio

import "errors"

// ChipLines is not available on non-Linux platforms.
type ChipLines struct{}

func OpenChip(name string, relays []int, relayActiveHigh bool, valves []int, valveActiveLow bool) (*ChipLines, error) {
	return nil, errors.New("gpio: not supported on this platform (requires Linux)")
}

func (c *ChipLines) Set(offset int, active bool) error {
	return errors.New("gpio: not supported")
}

func (c *ChipLines) Get(offset int) (bool, error) {
	return false, errors.New("gpio: not supported")
}

func (c *ChipLines) Close() error {
	return nil
}
