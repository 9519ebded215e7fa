package arducam

import (
	"errors"
	"fmt"
)

// Error kinds reported by the driver. Every failure returned by a Camera
// method matches exactly one of them with errors.Is.
var (
	ErrRegisterBus = errors.New("arducam: register bus transfer failed")
	ErrSensorBus   = errors.New("arducam: sensor bus transfer failed")
	ErrPin         = errors.New("arducam: pin operation failed")
	ErrOutOfBounds = errors.New("arducam: value out of bounds")
)

// BusError describes a failed transaction. Unwrap yields the kind only,
// the transport's own error is kept as text.
type BusError struct {
	Kind error
	Op   string
	Reg  byte
	Err  error
}

func (e *BusError) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("%v (%s reg 0x%02x)", e.Kind, e.Op, e.Reg)
	}
	return fmt.Sprintf("%v (%s reg 0x%02x): %v", e.Kind, e.Op, e.Reg, e.Err)
}

func (e *BusError) Unwrap() error { return e.Kind }

// busError maps a transport failure to a kind. Transports that drive a
// chip-select line report pin failures by wrapping ErrPin.
func busError(kind error, op string, reg byte, err error) error {
	if errors.Is(err, ErrPin) {
		kind = ErrPin
	}
	return &BusError{Kind: kind, Op: op, Reg: reg, Err: err}
}
