package main

import (
	"errors"
	"fmt"
	"io"
	"strings"

	"periph.io/x/conn/v3/physic"
	"periph.io/x/conn/v3/spi"

	"github.com/cjeanneret/ArduGo/internal/config"
	"github.com/cjeanneret/ArduGo/internal/debug"
	"github.com/cjeanneret/ArduGo/internal/hw/arducam"
	"github.com/cjeanneret/ArduGo/internal/hw/bus"
	"github.com/cjeanneret/ArduGo/internal/hw/gpio"
)

// hardware holds the two buses and everything that must be closed on exit.
type hardware struct {
	regs    arducam.RegisterBus
	sensor  arducam.SensorBus
	closers []io.Closer
}

// Close releases resources in reverse order of opening.
func (h *hardware) Close() error {
	var errs []error
	for i := len(h.closers) - 1; i >= 0; i-- {
		if err := h.closers[i].Close(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// openHardware builds the register and sensor buses from cfg. With
// defaults.mock_hw both buses are served by one MockBoard.
func openHardware(cfg *config.Config) (*hardware, error) {
	h := &hardware{}
	var board *bus.MockBoard
	mockBoard := func() *bus.MockBoard {
		if board == nil {
			debug.Info("Using MOCK ArduCAM board (development mode)")
			board = bus.NewMockBoard()
		}
		return board
	}

	regDriver, sensorDriver := cfg.RegisterBus.Driver, cfg.SensorBus.Driver
	if cfg.Defaults.MockHW {
		regDriver, sensorDriver = "mock", "mock"
	}

	switch regDriver {
	case "rpio":
		s, err := bus.OpenRPiSPI(bus.RPiSPIConfig{
			ChipSelect: chipSelectLine(cfg.RegisterBus.Device),
			SpeedHz:    cfg.RegisterBus.SpeedHz,
			Mode:       uint8(cfg.RegisterBus.Mode),
		})
		if err != nil {
			return nil, err
		}
		h.regs = s
		h.closers = append(h.closers, s)
	case "periph":
		s, err := bus.OpenPeriphSPI(cfg.RegisterBus.Device, physic.Frequency(cfg.RegisterBus.SpeedHz)*physic.Hertz, spi.Mode(cfg.RegisterBus.Mode))
		if err != nil {
			return nil, err
		}
		h.regs = s
		h.closers = append(h.closers, s)
	case "mock":
		h.regs = mockBoard()
	default:
		return nil, fmt.Errorf("unsupported register bus driver: %s", regDriver)
	}

	if cfg.RegisterBus.CSPin > 0 {
		g, err := gpio.NewDriver(regDriver == "mock")
		if err != nil {
			_ = h.Close()
			return nil, fmt.Errorf("init GPIO failed: %w", err)
		}
		h.closers = append(h.closers, g)
		cs, err := bus.NewChipSelect(h.regs, g, cfg.RegisterBus.CSPin)
		if err != nil {
			_ = h.Close()
			return nil, err
		}
		debug.Value("Chip-select pin", cfg.RegisterBus.CSPin)
		h.regs = cs
	}

	switch sensorDriver {
	case "periph":
		b, err := bus.OpenPeriphI2C(cfg.SensorBus.Device, physic.Frequency(cfg.SensorBus.SpeedHz)*physic.Hertz)
		if err != nil {
			_ = h.Close()
			return nil, err
		}
		h.sensor = b
		h.closers = append(h.closers, b)
	case "mock":
		h.sensor = mockBoard()
	default:
		_ = h.Close()
		return nil, fmt.Errorf("unsupported sensor bus driver: %s", sensorDriver)
	}

	return h, nil
}

// chipSelectLine extracts the CE index from a device name such as
// "SPI0.1" or "/dev/spidev0.1". It defaults to CE0.
func chipSelectLine(device string) uint8 {
	if i := strings.LastIndexByte(device, '.'); i >= 0 && i+1 < len(device) && device[i+1] == '1' {
		return 1
	}
	return 0
}
