//go:build linux

package gpio

import (
	"fmt"

	"github.com/warthog618/go-gpiocdev"
)

const consumer = "radiant-controller"

// ChipLines drives relays and reads valve inputs through the Linux GPIO
// character device.
type ChipLines struct {
	chip    *gpiocdev.Chip
	outputs map[int]*gpiocdev.Line
	inputs  map[int]*gpiocdev.Line
}

// OpenChip requests relay lines as outputs, initially inactive, and valve
// lines as biased inputs. Active-low lines are inverted by the kernel so
// callers always see logical values.
func OpenChip(name string, relays []int, relayActiveHigh bool, valves []int, valveActiveLow bool) (*ChipLines, error) {
	chip, err := gpiocdev.NewChip(name, gpiocdev.WithConsumer(consumer))
	if err != nil {
		return nil, fmt.Errorf("open gpio chip %s: %w", name, err)
	}

	c := &ChipLines{
		chip:    chip,
		outputs: make(map[int]*gpiocdev.Line, len(relays)),
		inputs:  make(map[int]*gpiocdev.Line, len(valves)),
	}

	for _, offset := range relays {
		opts := []gpiocdev.LineReqOption{gpiocdev.AsOutput(0)}
		if !relayActiveHigh {
			opts = append(opts, gpiocdev.AsActiveLow)
		}
		line, err := chip.RequestLine(offset, opts...)
		if err != nil {
			c.Close()
			return nil, fmt.Errorf("request relay line %d: %w", offset, err)
		}
		c.outputs[offset] = line
	}

	for _, offset := range valves {
		opts := []gpiocdev.LineReqOption{gpiocdev.AsInput}
		if valveActiveLow {
			// end switch closes to ground
			opts = append(opts, gpiocdev.WithPullUp, gpiocdev.AsActiveLow)
		} else {
			opts = append(opts, gpiocdev.WithPullDown)
		}
		line, err := chip.RequestLine(offset, opts...)
		if err != nil {
			c.Close()
			return nil, fmt.Errorf("request valve line %d: %w", offset, err)
		}
		c.inputs[offset] = line
	}

	return c, nil
}

func (c *ChipLines) Set(offset int, active bool) error {
	line, ok := c.outputs[offset]
	if !ok {
		return fmt.Errorf("line %d not requested as output", offset)
	}
	v := 0
	if active {
		v = 1
	}
	return line.SetValue(v)
}

func (c *ChipLines) Get(offset int) (bool, error) {
	line, ok := c.inputs[offset]
	if !ok {
		line, ok = c.outputs[offset]
	}
	if !ok {
		return false, fmt.Errorf("line %d not requested", offset)
	}
	v, err := line.Value()
	if err != nil {
		return false, fmt.Errorf("read line %d: %w", offset, err)
	}
	return v == 1, nil
}

// Close drives every relay inactive, returns all lines to pulled-down inputs
// and releases the chip.
func (c *ChipLines) Close() error {
	var errs []error

	for offset, line := range c.outputs {
		if err := line.SetValue(0); err != nil {
			errs = append(errs, fmt.Errorf("deactivate relay line %d: %w", offset, err))
		}
		if err := line.Reconfigure(gpiocdev.AsInput, gpiocdev.WithPullDown); err != nil {
			errs = append(errs, fmt.Errorf("reconfigure relay line %d: %w", offset, err))
		}
		if err := line.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close relay line %d: %w", offset, err))
		}
	}
	for offset, line := range c.inputs {
		if err := line.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close valve line %d: %w", offset, err))
		}
	}
	if c.chip != nil {
		if err := c.chip.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close chip: %w", err))
		}
	}

	if len(errs) > 0 {
		return fmt.Errorf("close errors: %v", errs)
	}
	return nil
}
