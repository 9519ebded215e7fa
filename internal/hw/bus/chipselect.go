// Package bus provides the concrete register-bus and sensor-bus transports
// for the ArduCAM driver: go-rpio and periph.io on Linux hosts, TinyGo
// drivers on microcontrollers, and an in-memory MockBoard.
package bus

import (
	"fmt"

	"github.com/cjeanneret/ArduGo/internal/hw/arducam"
	"github.com/cjeanneret/ArduGo/internal/hw/gpio"
)

// ChipSelect frames every transaction of an inner register bus with an
// active-low GPIO chip-select line.
type ChipSelect struct {
	inner arducam.RegisterBus
	gpio  gpio.Driver
	pin   int
}

// NewChipSelect configures pin as an output, parks it high and returns the
// wrapped bus.
func NewChipSelect(inner arducam.RegisterBus, g gpio.Driver, pin int) (*ChipSelect, error) {
	if err := g.SetupPin(pin, gpio.Output); err != nil {
		return nil, fmt.Errorf("chip select pin %d: %w: %v", pin, arducam.ErrPin, err)
	}
	if err := g.WritePin(pin, gpio.High); err != nil {
		return nil, fmt.Errorf("chip select pin %d: %w: %v", pin, arducam.ErrPin, err)
	}
	return &ChipSelect{inner: inner, gpio: g, pin: pin}, nil
}

// Transact pulls CS low, runs the inner transaction and releases CS. CS is
// released even when the inner transaction fails.
func (c *ChipSelect) Transact(w, r []byte) error {
	if err := c.gpio.WritePin(c.pin, gpio.Low); err != nil {
		return fmt.Errorf("chip select pin %d: %w: %v", c.pin, arducam.ErrPin, err)
	}
	txErr := c.inner.Transact(w, r)
	if err := c.gpio.WritePin(c.pin, gpio.High); err != nil && txErr == nil {
		return fmt.Errorf("chip select pin %d: %w: %v", c.pin, arducam.ErrPin, err)
	}
	return txErr
}

func (c *ChipSelect) String() string {
	return fmt.Sprintf("%v (cs=%d)", c.inner, c.pin)
}

// duplex runs a write-then-read transaction over a full-duplex exchange:
// w is padded with zeros for len(r) clock cycles and the tail of the
// received bytes is copied into r.
func duplex(w, r []byte, exchange func(tx, rx []byte) error) error {
	tx := make([]byte, len(w)+len(r))
	copy(tx, w)
	rx := make([]byte, len(tx))
	if err := exchange(tx, rx); err != nil {
		return err
	}
	copy(r, rx[len(w):])
	return nil
}
