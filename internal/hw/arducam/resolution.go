package arducam

import (
	"fmt"
	"strings"

	"github.com/cjeanneret/ArduGo/internal/hw/ov2640"
)

// Resolution is one of the fixed JPEG output sizes of the OV2640.
type Resolution int

const (
	Res160x120 Resolution = iota
	Res176x144
	Res320x240
	Res352x288
	Res640x480
	Res800x600
	Res1024x768
	Res1280x1024
	Res1600x1200
)

var resolutionSizes = [...][2]int{
	Res160x120:   {160, 120},
	Res176x144:   {176, 144},
	Res320x240:   {320, 240},
	Res352x288:   {352, 288},
	Res640x480:   {640, 480},
	Res800x600:   {800, 600},
	Res1024x768:  {1024, 768},
	Res1280x1024: {1280, 1024},
	Res1600x1200: {1600, 1200},
}

// Resolutions lists every supported resolution, smallest first.
func Resolutions() []Resolution {
	out := make([]Resolution, len(resolutionSizes))
	for i := range resolutionSizes {
		out[i] = Resolution(i)
	}
	return out
}

// Valid reports whether r is one of the defined resolutions.
func (r Resolution) Valid() bool {
	return r >= 0 && int(r) < len(resolutionSizes)
}

// Size returns the output width and height in pixels.
func (r Resolution) Size() (width, height int) {
	if !r.Valid() {
		return 0, 0
	}
	s := resolutionSizes[r]
	return s[0], s[1]
}

func (r Resolution) String() string {
	if !r.Valid() {
		return fmt.Sprintf("Resolution(%d)", int(r))
	}
	w, h := r.Size()
	return fmt.Sprintf("%dx%d", w, h)
}

// ParseResolution parses a "WIDTHxHEIGHT" string such as "320x240".
func ParseResolution(s string) (Resolution, error) {
	norm := strings.ToLower(strings.TrimSpace(s))
	for _, r := range Resolutions() {
		if r.String() == norm {
			return r, nil
		}
	}
	return 0, fmt.Errorf("%w: unsupported resolution %q", ErrOutOfBounds, s)
}

// ImageFormat is the sensor output encoding. Only JPEG is wired.
type ImageFormat int

const (
	JPEG ImageFormat = iota
)

func (f ImageFormat) String() string {
	switch f {
	case JPEG:
		return "JPEG"
	default:
		return fmt.Sprintf("ImageFormat(%d)", int(f))
	}
}

// ParseImageFormat parses a format name, case-insensitively.
func ParseImageFormat(s string) (ImageFormat, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "jpeg", "jpg":
		return JPEG, nil
	default:
		return 0, fmt.Errorf("%w: unsupported image format %q", ErrOutOfBounds, s)
	}
}

// resolutionTable maps a resolution to its sensor table.
func resolutionTable(r Resolution) ([]ov2640.Reg, error) {
	switch r {
	case Res160x120:
		return ov2640.JPEG160x120, nil
	case Res176x144:
		return ov2640.JPEG176x144, nil
	case Res320x240:
		return ov2640.JPEG320x240, nil
	case Res352x288:
		return ov2640.JPEG352x288, nil
	case Res640x480:
		return ov2640.JPEG640x480, nil
	case Res800x600:
		return ov2640.JPEG800x600, nil
	case Res1024x768:
		return ov2640.JPEG1024x768, nil
	case Res1280x1024:
		return ov2640.JPEG1280x1024, nil
	case Res1600x1200:
		return ov2640.JPEG1600x1200, nil
	default:
		return nil, fmt.Errorf("%w: %v", ErrOutOfBounds, r)
	}
}
