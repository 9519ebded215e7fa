// Package gpio drives the discrete lines around the camera. On the
// ArduCAM Mini that is the chip-select of the ArduChip when it is wired to
// a plain GPIO rather than to a hardware CE pin.
package gpio

import (
	"errors"
	"fmt"
	"sync"

	"github.com/cjeanneret/ArduGo/internal/debug"
)

// MaxPin is the highest BCM line exposed on the 40-pin header.
const MaxPin = 27

// ErrInvalidPin is returned for a line outside 0..MaxPin.
var ErrInvalidPin = errors.New("gpio: invalid pin")

// Level is the electrical state of a line.
type Level bool

const (
	Low  Level = false
	High Level = true
)

func (l Level) String() string {
	if l {
		return "HIGH"
	}
	return "LOW"
}

type PinMode int

const (
	Input PinMode = iota
	Output
)

func (m PinMode) String() string {
	switch m {
	case Input:
		return "in"
	case Output:
		return "out"
	}
	return fmt.Sprintf("PinMode(%d)", int(m))
}

// Driver controls GPIO lines.
type Driver interface {
	SetupPin(pin int, mode PinMode) error
	WritePin(pin int, level Level) error
	ReadPin(pin int) (Level, error)
	Close() error
}

// NewDriver returns a MockDriver when mock is set, else the go-rpio driver.
func NewDriver(mock bool) (Driver, error) {
	if mock {
		debug.Info("Using MOCK GPIO driver (development mode)")
		return &MockDriver{}, nil
	}
	return NewRPiDriver()
}

func checkPin(pin int) error {
	if pin < 0 || pin > MaxPin {
		return fmt.Errorf("%w: %d (want 0-%d)", ErrInvalidPin, pin, MaxPin)
	}
	return nil
}

// MockDriver keeps line levels in memory. Lines that were never set up
// are rejected, so tests catch a missing SetupPin.
type MockDriver struct {
	mu     sync.Mutex
	modes  map[int]PinMode
	levels map[int]Level
	writes int
}

func (m *MockDriver) SetupPin(pin int, mode PinMode) error {
	if err := checkPin(pin); err != nil {
		return err
	}
	debug.GPIO("SetupPin", pin, mode)
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.modes == nil {
		m.modes = make(map[int]PinMode)
	}
	m.modes[pin] = mode
	return nil
}

func (m *MockDriver) WritePin(pin int, level Level) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if mode, ok := m.modes[pin]; !ok || mode != Output {
		return fmt.Errorf("gpio: pin %d is not an output", pin)
	}
	debug.GPIO("WritePin", pin, level)
	if m.levels == nil {
		m.levels = make(map[int]Level)
	}
	m.levels[pin] = level
	m.writes++
	return nil
}

// ReadPin returns the last level written to pin, Low if never written.
func (m *MockDriver) ReadPin(pin int) (Level, error) {
	if err := checkPin(pin); err != nil {
		return Low, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	l := m.levels[pin]
	debug.GPIO("ReadPin", pin, l)
	return l, nil
}

// writeCount returns how many level changes were driven.
func (m *MockDriver) writeCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.writes
}

func (m *MockDriver) Close() error {
	debug.Trace("GPIO Close (mock)")
	return nil
}
