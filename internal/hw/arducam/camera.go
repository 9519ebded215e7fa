// Package arducam drives the legacy ArduCAM Mini 2MP camera: an ArduChip
// FIFO controller on SPI and an OV2640 sensor on I2C.
//
// A Camera is synchronous and does no locking. Callers that share one
// across goroutines must serialize access.
package arducam

import (
	"fmt"
	"time"

	"github.com/cjeanneret/ArduGo/internal/debug"
	"github.com/cjeanneret/ArduGo/internal/hw/ov2640"
)

// resetDelay is the pause after each step of the reset pulse.
const resetDelay = 100 * time.Millisecond

// Camera is one physical ArduCAM module.
type Camera struct {
	regs       registerBus
	sensor     sensorBus
	resolution Resolution
	format     ImageFormat
}

// New returns a Camera on the given buses. It does not touch the hardware;
// call Init before capturing.
func New(regs RegisterBus, sensor SensorBus, res Resolution, format ImageFormat) *Camera {
	return &Camera{
		regs:       registerBus{bus: regs},
		sensor:     sensorBus{bus: sensor},
		resolution: res,
		format:     format,
	}
}

// Resolution returns the current output size.
func (c *Camera) Resolution() Resolution { return c.resolution }

// Format returns the output encoding.
func (c *Camera) Format() ImageFormat { return c.format }

// Init resets both chips and loads the JPEG configuration for the current
// resolution. The first failing transfer aborts the sequence and leaves the
// sensor partially configured.
func (c *Camera) Init(d Delayer) error {
	debug.Verbose("ArduCAM: resetting ArduChip")
	if err := c.regs.write(RegReset, 0x80); err != nil {
		return err
	}
	d.Delay(resetDelay)
	if err := c.regs.write(RegReset, 0x00); err != nil {
		return err
	}
	d.Delay(resetDelay)

	debug.Verbose("ArduCAM: resetting OV2640")
	if err := c.sensor.write(ov2640.BankSelect, ov2640.BankSensor); err != nil {
		return err
	}
	d.Delay(resetDelay)
	if err := c.sensor.write(RegCOM7, sensorResetValue); err != nil {
		return err
	}
	d.Delay(resetDelay)

	debug.Verbose("ArduCAM: loading %s tables", c.format)
	for _, tbl := range [][]ov2640.Reg{ov2640.JPEGInit, ov2640.YUV422, ov2640.JPEG} {
		if err := c.sensor.writeTable(tbl); err != nil {
			return err
		}
	}
	if err := c.sensor.write(ov2640.BankSelect, ov2640.BankSensor); err != nil {
		return err
	}
	if err := c.sensor.write(RegCOM10, 0x00); err != nil {
		return err
	}

	return c.sendResolution()
}

// SetResolution stores res and pushes its table. It does not replay the
// bootstrap tables, so Init must have run for the image to be valid.
func (c *Camera) SetResolution(res Resolution) error {
	c.resolution = res
	return c.sendResolution()
}

func (c *Camera) sendResolution() error {
	tbl, err := resolutionTable(c.resolution)
	if err != nil {
		return err
	}
	debug.Verbose("ArduCAM: applying %s table (%d registers)", c.resolution, len(tbl))
	return c.sensor.writeTable(tbl)
}

// String renders the camera state for diagnostics.
func (c *Camera) String() string {
	return fmt.Sprintf("Arducam{Spi: %v, I2C: %v, Resolution: %v, Image format: %v}",
		c.regs.bus, c.sensor.bus, c.resolution, c.format)
}
