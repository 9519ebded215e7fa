package arducam

import "github.com/cjeanneret/ArduGo/internal/hw/ov2640"

// TestPattern is written to the scratch register by the link check.
const TestPattern byte = 0x52

// Known OV2640 product ids (PIDH, PIDL).
var (
	ChipIDOV2640Rev1 = [2]byte{0x26, 0x41}
	ChipIDOV2640Rev2 = [2]byte{0x26, 0x42}
)

// Diagnostics is the outcome of Probe.
type Diagnostics struct {
	ScratchWritten byte
	ScratchRead    byte
	ChipID         [2]byte
	Connected      bool
}

// ScratchOK reports whether the scratch register echoed the test pattern.
func (d Diagnostics) ScratchOK() bool { return d.ScratchWritten == d.ScratchRead }

// SensorChipID selects sensor bank 1 and reads the two product id
// registers.
func (c *Camera) SensorChipID() ([2]byte, error) {
	var id [2]byte
	if err := c.sensor.write(ov2640.BankSelect, ov2640.BankSensor); err != nil {
		return id, err
	}
	if err := c.sensor.read(RegChipIDHigh, id[0:1]); err != nil {
		return id, err
	}
	if err := c.sensor.read(RegChipIDLow, id[1:2]); err != nil {
		return id, err
	}
	return id, nil
}

// Probe runs the link check: scratch register echo over SPI, then the
// sensor id over I2C.
//
// Connected is (scratch ok AND rev1 id) OR rev2 id: a revision-2 id alone
// counts as connected even when the scratch echo fails.
func (c *Camera) Probe() (Diagnostics, error) {
	d := Diagnostics{ScratchWritten: TestPattern}
	if err := c.regs.write(RegTest1, TestPattern); err != nil {
		return d, err
	}
	v, err := c.regs.read(RegTest1)
	if err != nil {
		return d, err
	}
	d.ScratchRead = v

	id, err := c.SensorChipID()
	if err != nil {
		return d, err
	}
	d.ChipID = id
	d.Connected = (d.ScratchOK() && id == ChipIDOV2640Rev1) || id == ChipIDOV2640Rev2
	return d, nil
}

// IsConnected reports the Connected field of Probe.
func (c *Camera) IsConnected() (bool, error) {
	d, err := c.Probe()
	if err != nil {
		return false, err
	}
	return d.Connected, nil
}
