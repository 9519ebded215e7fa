package camera

import (
	"bytes"
	"context"
	"errors"
)

// Camera is the high-level interface used by the rest of the application.
// It represents an abstract "camera", regardless of how it's wired.
type Camera interface {
	// Shoot captures a single frame and returns its JPEG bytes.
	Shoot(ctx context.Context) ([]byte, error)
}

// ErrNotJPEG is returned when the captured data holds no JPEG start marker.
var ErrNotJPEG = errors.New("camera: no JPEG start marker in frame")

var (
	jpegSOI = []byte{0xFF, 0xD8}
	jpegEOI = []byte{0xFF, 0xD9}
)

// TrimJPEG cuts data to the first SOI..EOI span. The FIFO holds filler
// before and after the image. If no EOI follows the SOI the frame was
// truncated; the tail from SOI is returned with truncated set.
func TrimJPEG(data []byte) (frame []byte, truncated bool, err error) {
	start := bytes.Index(data, jpegSOI)
	if start < 0 {
		return nil, false, ErrNotJPEG
	}
	end := bytes.Index(data[start+len(jpegSOI):], jpegEOI)
	if end < 0 {
		return data[start:], true, nil
	}
	return data[start : start+len(jpegSOI)+end+len(jpegEOI)], false, nil
}
