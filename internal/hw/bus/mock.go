package bus

import (
	"bytes"
	"fmt"
	"image"
	"image/color"
	"image/jpeg"
	"sync"

	"github.com/cjeanneret/ArduGo/internal/debug"
	"github.com/cjeanneret/ArduGo/internal/hw/arducam"
	"github.com/cjeanneret/ArduGo/internal/hw/ov2640"
)

// fifoPadding is the number of filler bytes the mock leaves after the JPEG
// end marker, as the real FIFO does.
const fifoPadding = 8

// MockBoard simulates an ArduCAM Mini 2MP on both buses: the ArduChip
// register file and FIFO behind Transact, the OV2640 register banks behind
// Tx. A capture renders a test-pattern JPEG at the size programmed into the
// DSP zoom registers.
type MockBoard struct {
	mu sync.Mutex

	arduchip [0x80]byte
	banks    [2][256]byte
	bank     byte
	chipID   [2]byte

	fifo     []byte
	polls    int
	captures int

	// DoneAfterPolls delays the capture-done bit until the trigger
	// register has been read this many times after a start.
	DoneAfterPolls int
	// FailRegisterBus and FailSensorBus make every transaction fail.
	FailRegisterBus bool
	FailSensorBus   bool
}

// NewMockBoard returns a board that answers with the OV2640 rev 2 id.
func NewMockBoard() *MockBoard {
	return &MockBoard{chipID: arducam.ChipIDOV2640Rev2}
}

// SetChipID changes the id reported by the sensor.
func (m *MockBoard) SetChipID(id [2]byte) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.chipID = id
}

// Captures returns how many captures were started.
func (m *MockBoard) Captures() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.captures
}

// OutputSize returns the frame size programmed into the DSP.
func (m *MockBoard) OutputSize() (width, height int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.outputSize()
}

func (m *MockBoard) outputSize() (int, int) {
	dsp := m.banks[ov2640.BankDSP]
	hi := dsp[0x5c]
	w := (int(dsp[0x5a]) | int(hi&0x03)<<8) * 4
	h := (int(dsp[0x5b]) | int(hi>>2&0x01)<<8) * 4
	return w, h
}

// Transact implements the ArduChip side.
func (m *MockBoard) Transact(w, r []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.FailRegisterBus {
		return fmt.Errorf("mock: spi transfer failed")
	}
	if len(w) == 0 {
		return fmt.Errorf("mock: empty spi transaction")
	}

	cmd := w[0]
	switch {
	case cmd == arducam.FIFOBurst:
		n := copy(r, m.fifo)
		clear(r[n:])
		return nil
	case cmd&arducam.WriteFlag != 0:
		if len(w) < 2 {
			return fmt.Errorf("mock: write to 0x%02x without value", cmd&0x7F)
		}
		return m.writeArduChip(cmd&0x7F, w[1])
	default:
		if len(r) > 0 {
			r[0] = m.readArduChip(cmd)
		}
		return nil
	}
}

func (m *MockBoard) writeArduChip(reg, v byte) error {
	switch reg {
	case arducam.RegFIFO:
		if v&arducam.FIFOClearMask != 0 {
			m.fifo = nil
			m.arduchip[arducam.RegTrigger] &^= arducam.CapDoneMask
		}
		if v&arducam.FIFOStartMask != 0 {
			frame, err := m.render()
			if err != nil {
				return err
			}
			m.fifo = append(frame, make([]byte, fifoPadding)...)
			m.polls = 0
			m.captures++
		}
	case arducam.RegReset:
		if v&0x80 != 0 {
			m.fifo = nil
			m.arduchip = [0x80]byte{}
		}
	default:
		m.arduchip[reg] = v
	}
	return nil
}

func (m *MockBoard) readArduChip(reg byte) byte {
	n := len(m.fifo)
	switch reg {
	case arducam.RegTrigger:
		if m.fifo != nil {
			m.polls++
			if m.polls > m.DoneAfterPolls {
				m.arduchip[reg] |= arducam.CapDoneMask
			}
		}
		return m.arduchip[reg]
	case arducam.RegFIFOSize1:
		return byte(n)
	case arducam.RegFIFOSize2:
		return byte(n >> 8)
	case arducam.RegFIFOSize3:
		return byte(n>>16) & 0x7F
	default:
		return m.arduchip[reg]
	}
}

// Tx implements the OV2640 side.
func (m *MockBoard) Tx(addr uint16, w, r []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.FailSensorBus {
		return fmt.Errorf("mock: i2c transfer failed")
	}
	if addr != arducam.SensorAddr {
		return fmt.Errorf("mock: no ack from i2c address 0x%02x", addr)
	}
	switch {
	case len(w) == 2:
		if w[0] == ov2640.BankSelect {
			m.bank = w[1] & 0x01
			return nil
		}
		m.banks[m.bank][w[0]] = w[1]
	case len(w) == 1 && len(r) > 0:
		r[0] = m.readSensor(w[0])
	default:
		return fmt.Errorf("mock: unsupported i2c transfer (w=%d r=%d)", len(w), len(r))
	}
	return nil
}

func (m *MockBoard) readSensor(reg byte) byte {
	if m.bank == ov2640.BankSensor {
		switch reg {
		case arducam.RegChipIDHigh:
			return m.chipID[0]
		case arducam.RegChipIDLow:
			return m.chipID[1]
		}
	}
	return m.banks[m.bank][reg]
}

// render encodes a gradient frame stamped with the capture number.
func (m *MockBoard) render() ([]byte, error) {
	w, h := m.outputSize()
	if w == 0 || h == 0 {
		w, h = 320, 240
	}
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	shade := uint8(m.captures * 32)
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.SetRGBA(x, y, color.RGBA{R: uint8(x * 255 / w), G: uint8(y * 255 / h), B: shade, A: 0xFF})
		}
	}
	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, img, &jpeg.Options{Quality: 75}); err != nil {
		return nil, fmt.Errorf("mock: encode frame: %w", err)
	}
	debug.Trace("mock: rendered %dx%d frame (%d bytes)", w, h, buf.Len())
	return buf.Bytes(), nil
}

func (m *MockBoard) String() string { return "mock-arducam" }
