package ov2640

// Output size tables, JPEG mode. Each call to the builders returns a fresh
// slice so every resolution owns its own table.
var (
	JPEG160x120   = svgaWindow(0x92, 0x28, 0x1e)
	JPEG176x144   = svgaWindow(0x92, 0x2c, 0x24)
	JPEG320x240   = svgaWindow(0x89, 0x50, 0x3c)
	JPEG352x288   = svgaWindow(0x89, 0x58, 0x48)
	JPEG640x480   = uxgaWindow(0x89, 0xa0, 0x78, 0x00, 0x04)
	JPEG800x600   = uxgaWindow(0x89, 0xc8, 0x96, 0x00, 0x02)
	JPEG1024x768  = uxgaWindow(0x00, 0x00, 0xc0, 0x01, 0x02)
	JPEG1280x1024 = uxgaWindow(0x00, 0x40, 0x00, 0x05, 0x02)
	JPEG1600x1200 = uxgaWindow(0x00, 0x90, 0x2c, 0x05, 0x02)
)

// svgaWindow builds a table for the small sizes: the sensor runs in SVGA
// mode and the DSP scales down. ctrl is the DSP divider (reg 0x50),
// zw and zh the output width and height divided by 4 (regs 0x5a, 0x5b).
func svgaWindow(ctrl, zw, zh byte) []Reg {
	return []Reg{
		{0xff, 0x01}, {0x12, 0x40}, {0x17, 0x11}, {0x18, 0x43}, {0x19, 0x00},
		{0x1a, 0x4b}, {0x32, 0x09}, {0x4f, 0xca}, {0x50, 0xa8}, {0x5a, 0x23},
		{0x6d, 0x00}, {0x39, 0x12}, {0x35, 0xda}, {0x22, 0x1a}, {0x37, 0xc3},
		{0x23, 0x00}, {0x34, 0xc0}, {0x36, 0x1a}, {0x06, 0x88}, {0x07, 0xc0},
		{0x0d, 0x87}, {0x0e, 0x41}, {0x4c, 0x00},
		{0xff, 0x00}, {0xe0, 0x04}, {0xc0, 0x64}, {0xc1, 0x4b}, {0x86, 0x35},
		{0x50, ctrl}, {0x51, 0xc8}, {0x52, 0x96}, {0x53, 0x00}, {0x54, 0x00},
		{0x55, 0x00}, {0x57, 0x00}, {0x5a, zw}, {0x5b, zh}, {0x5c, 0x00},
		{0xe0, 0x00},
	}
}

// uxgaWindow builds a table for 640x480 and up: the sensor runs in UXGA
// mode. zhi carries the high bits of the output size (reg 0x5c) and pclk
// the DVP clock divider (reg 0xd3).
func uxgaWindow(ctrl, zw, zh, zhi, pclk byte) []Reg {
	return []Reg{
		{0xff, 0x01}, {0x11, 0x01}, {0x12, 0x00}, {0x17, 0x11}, {0x18, 0x75},
		{0x32, 0x36}, {0x19, 0x01}, {0x1a, 0x97}, {0x03, 0x0f}, {0x37, 0x40},
		{0x4f, 0xbb}, {0x50, 0x9c}, {0x5a, 0x57}, {0x6d, 0x80}, {0x3d, 0x34},
		{0x39, 0x02}, {0x35, 0x88}, {0x22, 0x0a}, {0x37, 0x40}, {0x34, 0xa0},
		{0x06, 0x02}, {0x0d, 0xb7}, {0x0e, 0x01},
		{0xff, 0x00}, {0xe0, 0x04}, {0xc0, 0xc8}, {0xc1, 0x96}, {0x86, 0x3d},
		{0x50, ctrl}, {0x51, 0x90}, {0x52, 0x2c}, {0x53, 0x00}, {0x54, 0x00},
		{0x55, 0x88}, {0x57, 0x00}, {0x5a, zw}, {0x5b, zh}, {0x5c, zhi},
		{0xd3, pclk}, {0xe0, 0x00},
	}
}
