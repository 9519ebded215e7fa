package arducam

// StartCapture clears the FIFO and triggers a single capture.
func (c *Camera) StartCapture() error {
	if err := c.flushFIFO(); err != nil {
		return err
	}
	return c.regs.write(RegFIFO, FIFOStartMask)
}

// IsCaptureDone reports whether the capture-done bit is set. It has no
// side effect and may be polled freely.
func (c *Camera) IsCaptureDone() (bool, error) {
	v, err := c.regs.read(RegTrigger)
	if err != nil {
		return false, err
	}
	return v&CapDoneMask != 0, nil
}

// ReadCapturedImage burst-reads exactly len(out) bytes from the FIFO and
// then clears it. If out is shorter than FIFOLength the image is cut.
func (c *Camera) ReadCapturedImage(out []byte) error {
	if err := c.regs.burst(out); err != nil {
		return err
	}
	return c.flushFIFO()
}

// FIFOLength returns the byte count the ArduChip reports for the FIFO.
// Before a capture the value is whatever the hardware holds.
func (c *Camera) FIFOLength() (uint32, error) {
	low, err := c.regs.read(RegFIFOSize1)
	if err != nil {
		return 0, err
	}
	mid, err := c.regs.read(RegFIFOSize2)
	if err != nil {
		return 0, err
	}
	high, err := c.regs.read(RegFIFOSize3)
	if err != nil {
		return 0, err
	}
	n := uint32(high&0x7F)<<16 | uint32(mid)<<8 | uint32(low)
	return n & MaxFIFOLength, nil
}

func (c *Camera) flushFIFO() error {
	return c.regs.write(RegFIFO, FIFOClearMask)
}
