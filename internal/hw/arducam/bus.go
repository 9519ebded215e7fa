package arducam

import (
	"time"

	"github.com/cjeanneret/ArduGo/internal/debug"
	"github.com/cjeanneret/ArduGo/internal/hw/ov2640"
)

// ArduChip registers and commands.
const (
	RegTest1     byte = 0x00 // scratch register
	RegFIFO      byte = 0x04 // FIFO control
	RegReset     byte = 0x07 // soft reset (bit 7)
	RegTrigger   byte = 0x41 // capture status
	RegFIFOSize1 byte = 0x42 // FIFO length, bits 0-7
	RegFIFOSize2 byte = 0x43 // FIFO length, bits 8-15
	RegFIFOSize3 byte = 0x44 // FIFO length, bits 16-22

	FIFOClearMask byte = 0x01
	FIFOStartMask byte = 0x02
	FIFOBurst     byte = 0x3C
	CapDoneMask   byte = 0x08
	WriteFlag     byte = 0x80

	// MaxFIFOLength is the largest count the length registers can encode.
	MaxFIFOLength uint32 = 0x7FFFFF
)

// OV2640 addressing.
const (
	SensorAddr       uint16 = 0x60 >> 1
	RegChipIDHigh    byte   = 0x0A
	RegChipIDLow     byte   = 0x0B
	RegCOM7          byte   = 0x12 // bit 7 = system reset
	RegCOM10         byte   = 0x15
	sensorResetValue byte   = 0x80
)

// RegisterBus is a chip-selected SPI link to the ArduChip. Transact writes
// w and then reads len(r) bytes as a single framed transaction.
type RegisterBus interface {
	Transact(w, r []byte) error
}

// SensorBus is an I2C bus. It matches periph's i2c.Bus and TinyGo's
// drivers.I2C.
type SensorBus interface {
	Tx(addr uint16, w, r []byte) error
}

// Delayer blocks for a fixed period.
type Delayer interface {
	Delay(d time.Duration)
}

// SleepDelayer delays with time.Sleep.
type SleepDelayer struct{}

func (SleepDelayer) Delay(d time.Duration) { time.Sleep(d) }

// registerBus encodes the ArduChip address convention on top of a
// RegisterBus: bit 7 set for writes, cleared for reads.
type registerBus struct {
	bus RegisterBus
}

func (b registerBus) write(addr, v byte) error {
	w := []byte{addr | WriteFlag, v}
	debug.Bus("spi", "write", w[0], w[1:])
	if err := b.bus.Transact(w, nil); err != nil {
		return busError(ErrRegisterBus, "write", addr, err)
	}
	return nil
}

func (b registerBus) read(addr byte) (byte, error) {
	var buf [1]byte
	if err := b.bus.Transact([]byte{addr & 0x7F}, buf[:]); err != nil {
		return 0, busError(ErrRegisterBus, "read", addr, err)
	}
	debug.Bus("spi", "read", addr&0x7F, buf[:])
	return buf[0], nil
}

func (b registerBus) burst(out []byte) error {
	debug.Bus("spi", "burst", FIFOBurst, nil)
	if err := b.bus.Transact([]byte{FIFOBurst}, out); err != nil {
		return busError(ErrRegisterBus, "burst", FIFOBurst, err)
	}
	return nil
}

// sensorBus issues 8-bit register / 8-bit value transfers to the OV2640.
type sensorBus struct {
	bus SensorBus
}

func (s sensorBus) write(reg, v byte) error {
	debug.Bus("i2c", "write", reg, []byte{v})
	if err := s.bus.Tx(SensorAddr, []byte{reg & 0xFF, v & 0xFF}, nil); err != nil {
		return busError(ErrSensorBus, "write", reg, err)
	}
	return nil
}

func (s sensorBus) read(reg byte, out []byte) error {
	if err := s.bus.Tx(SensorAddr, []byte{reg & 0xFF}, out); err != nil {
		return busError(ErrSensorBus, "read", reg, err)
	}
	debug.Bus("i2c", "read", reg, out)
	return nil
}

// writeTable applies regs in order and stops at the first failure.
func (s sensorBus) writeTable(regs []ov2640.Reg) error {
	for _, r := range regs {
		if err := s.write(r.Addr, r.Val); err != nil {
			return err
		}
	}
	return nil
}
