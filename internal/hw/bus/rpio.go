package bus

import (
	"fmt"

	"github.com/cjeanneret/ArduGo/internal/debug"
	"github.com/cjeanneret/ArduGo/internal/hw/gpio"
	"github.com/stianeikeland/go-rpio/v4"
)

// RPiSPIConfig selects the BCM SPI0 settings.
type RPiSPIConfig struct {
	ChipSelect uint8 // hardware CE line: 0 or 1
	SpeedHz    int
	Mode       uint8 // SPI mode 0-3
}

// RPiSPI is a register bus on the Raspberry Pi SPI0 block, driven through
// go-rpio's memory-mapped registers.
type RPiSPI struct {
	cfg RPiSPIConfig
}

// OpenRPiSPI maps the BCM peripherals and claims SPI0. The kernel spidev
// driver must be disabled (raspi-config) for go-rpio to own the block.
func OpenRPiSPI(cfg RPiSPIConfig) (*RPiSPI, error) {
	debug.Info("Initializing SPI0 via go-rpio (CE%d, %d Hz, mode %d)", cfg.ChipSelect, cfg.SpeedHz, cfg.Mode)

	if err := gpio.AcquireRPio(); err != nil {
		return nil, err
	}
	if err := rpio.SpiBegin(rpio.Spi0); err != nil {
		_ = gpio.ReleaseRPio()
		return nil, fmt.Errorf("spi begin: %w", err)
	}
	rpio.SpiChipSelect(cfg.ChipSelect)
	rpio.SpiMode(cfg.Mode>>1&1, cfg.Mode&1)
	if cfg.SpeedHz > 0 {
		rpio.SpiSpeed(cfg.SpeedHz)
	}

	return &RPiSPI{cfg: cfg}, nil
}

// Transact exchanges w plus len(r) padding bytes in one CE-framed burst.
func (s *RPiSPI) Transact(w, r []byte) error {
	return duplex(w, r, func(tx, rx []byte) error {
		rpio.SpiExchange(tx)
		copy(rx, tx)
		return nil
	})
}

// Close releases the SPI0 pins and drops this bus's peripheral mapping.
func (s *RPiSPI) Close() error {
	rpio.SpiEnd(rpio.Spi0)
	return gpio.ReleaseRPio()
}

func (s *RPiSPI) String() string {
	return fmt.Sprintf("rpio SPI0.%d", s.cfg.ChipSelect)
}
