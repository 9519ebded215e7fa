package bus

import (
	"fmt"

	"github.com/cjeanneret/ArduGo/internal/hw/arducam"
	"tinygo.org/x/drivers"
)

// drivers.I2C already has the SensorBus shape, so a TinyGo machine.I2C can
// be handed to arducam.New directly.
var _ arducam.SensorBus = drivers.I2C(nil)

// TinySPI is a register bus over a TinyGo drivers.SPI (machine.SPI on a
// board). TinyGo's SPI has no chip-select; wrap it with NewChipSelect or
// pass a select func.
type TinySPI struct {
	spi      drivers.SPI
	selectFn func(selected bool) error
}

// NewTinySPI wraps spi. sel, if not nil, is called with true before and
// false after every transaction; with machine.Pin cs that is
// func(on bool) error { cs.Set(!on); return nil }.
func NewTinySPI(spi drivers.SPI, sel func(selected bool) error) *TinySPI {
	return &TinySPI{spi: spi, selectFn: sel}
}

// Transact sends w byte by byte, then clocks len(r) bytes in.
func (t *TinySPI) Transact(w, r []byte) error {
	if t.selectFn != nil {
		if err := t.selectFn(true); err != nil {
			return fmt.Errorf("chip select: %w: %v", arducam.ErrPin, err)
		}
		defer func() { _ = t.selectFn(false) }()
	}
	for _, b := range w {
		if _, err := t.spi.Transfer(b); err != nil {
			return err
		}
	}
	if len(r) == 0 {
		return nil
	}
	return t.spi.Tx(nil, r)
}

func (t *TinySPI) String() string { return "tinygo SPI" }
