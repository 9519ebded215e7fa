package gpio

import (
	"fmt"
	"sync"

	"github.com/cjeanneret/ArduGo/internal/debug"
	"github.com/stianeikeland/go-rpio/v4"
)

// The BCM register mapping is shared by the GPIO driver and the rpio SPI
// bus; it is unmapped when the last user releases it.
var (
	mapMu    sync.Mutex
	mapUsers int
)

// AcquireRPio maps the BCM peripherals on first use.
// Requires a Raspberry Pi with access to /dev/gpiomem or root.
func AcquireRPio() error {
	mapMu.Lock()
	defer mapMu.Unlock()
	if mapUsers == 0 {
		if err := rpio.Open(); err != nil {
			return fmt.Errorf("failed to open GPIO: %w (are you running on a Raspberry Pi?)", err)
		}
		debug.Verbose("BCM peripherals mapped")
	}
	mapUsers++
	return nil
}

// ReleaseRPio drops one reference and unmaps on the last one.
func ReleaseRPio() error {
	mapMu.Lock()
	defer mapMu.Unlock()
	if mapUsers == 0 {
		return nil
	}
	mapUsers--
	if mapUsers > 0 {
		return nil
	}
	debug.Verbose("BCM peripherals unmapped")
	return rpio.Close()
}

// RPiDriver drives BCM GPIO lines through go-rpio.
type RPiDriver struct {
	mu   sync.Mutex
	pins map[int]rpio.Pin
}

// NewRPiDriver maps the GPIO block.
func NewRPiDriver() (*RPiDriver, error) {
	debug.Info("Initializing GPIO via go-rpio")
	if err := AcquireRPio(); err != nil {
		return nil, err
	}
	return &RPiDriver{pins: make(map[int]rpio.Pin)}, nil
}

func (r *RPiDriver) SetupPin(pin int, mode PinMode) error {
	if err := checkPin(pin); err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.setup(pin, mode)
}

func (r *RPiDriver) setup(pin int, mode PinMode) error {
	debug.GPIO("SetupPin", pin, mode)
	p := rpio.Pin(pin)
	switch mode {
	case Input:
		p.Input()
	case Output:
		p.Output()
	default:
		return fmt.Errorf("unknown pin mode: %d", mode)
	}
	r.pins[pin] = p
	return nil
}

// pin returns a configured line, setting it up in mode on first use.
func (r *RPiDriver) pin(pin int, mode PinMode) (rpio.Pin, error) {
	if err := checkPin(pin); err != nil {
		return 0, err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if p, ok := r.pins[pin]; ok {
		return p, nil
	}
	if err := r.setup(pin, mode); err != nil {
		return 0, err
	}
	return r.pins[pin], nil
}

func (r *RPiDriver) WritePin(pin int, level Level) error {
	p, err := r.pin(pin, Output)
	if err != nil {
		return err
	}
	debug.GPIO("WritePin", pin, level)
	p.Write(rpio.State(boolToState(level)))
	return nil
}

func (r *RPiDriver) ReadPin(pin int) (Level, error) {
	p, err := r.pin(pin, Input)
	if err != nil {
		return Low, err
	}
	level := Level(p.Read() == rpio.High)
	debug.GPIO("ReadPin", pin, level)
	return level, nil
}

// Close parks every used line as an input, then releases the mapping.
func (r *RPiDriver) Close() error {
	r.mu.Lock()
	for pin, p := range r.pins {
		debug.Trace("GPIO %d released", pin)
		p.Input()
	}
	r.pins = map[int]rpio.Pin{}
	r.mu.Unlock()
	return ReleaseRPio()
}

func boolToState(l Level) uint8 {
	if l == High {
		return 1
	}
	return 0
}
