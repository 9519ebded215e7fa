package capture

import (
	"bytes"
	"fmt"
	"image/jpeg"
	"time"

	"github.com/google/uuid"
)

// Frame is one captured JPEG image with its metadata.
type Frame struct {
	ID         uuid.UUID `json:"id"`
	Seq        int       `json:"seq"`
	TakenAt    time.Time `json:"taken_at"`
	Resolution string    `json:"resolution"`
	Width      int       `json:"width"`
	Height     int       `json:"height"`
	Size       int       `json:"size"`
	Data       []byte    `json:"-"`
}

// NewFrame wraps data. Width and Height are read from the JPEG header and
// stay 0 for a frame that does not decode (a truncated read, for instance).
func NewFrame(seq int, takenAt time.Time, resolution string, data []byte) *Frame {
	f := &Frame{
		ID:         uuid.New(),
		Seq:        seq,
		TakenAt:    takenAt,
		Resolution: resolution,
		Size:       len(data),
		Data:       data,
	}
	if cfg, err := jpeg.DecodeConfig(bytes.NewReader(data)); err == nil {
		f.Width, f.Height = cfg.Width, cfg.Height
		if f.Resolution == "" {
			f.Resolution = fmt.Sprintf("%dx%d", cfg.Width, cfg.Height)
		}
	}
	return f
}

// Decoded reports whether the JPEG header could be parsed.
func (f *Frame) Decoded() bool {
	return f.Width > 0 && f.Height > 0
}
