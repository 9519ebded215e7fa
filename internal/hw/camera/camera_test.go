package camera

import (
	"bytes"
	"context"
	"errors"
	"image/jpeg"
	"testing"
	"time"

	"github.com/cjeanneret/ArduGo/internal/hw/arducam"
	"github.com/cjeanneret/ArduGo/internal/hw/bus"
)

type noDelay struct{}

func (noDelay) Delay(time.Duration) {}

func newMockCamera(t *testing.T, res arducam.Resolution, bufferSize int) (*ArduCAMMini, *bus.MockBoard) {
	t.Helper()
	board := bus.NewMockBoard()
	cam := NewArduCAMMini(arducam.New(board, board, res, arducam.JPEG), time.Microsecond, time.Second, bufferSize)
	if err := cam.Init(noDelay{}); err != nil {
		t.Fatalf("Init: %v", err)
	}
	return cam, board
}

// ---------- TrimJPEG ----------

func TestTrimJPEG(t *testing.T) {
	cases := []struct {
		name      string
		in        []byte
		want      []byte
		truncated bool
	}{
		{"exact", []byte{0xFF, 0xD8, 0x01, 0xFF, 0xD9}, []byte{0xFF, 0xD8, 0x01, 0xFF, 0xD9}, false},
		{"padding_after", []byte{0xFF, 0xD8, 0x01, 0xFF, 0xD9, 0x00, 0x00}, []byte{0xFF, 0xD8, 0x01, 0xFF, 0xD9}, false},
		{"filler_before", []byte{0x00, 0x55, 0xFF, 0xD8, 0xFF, 0xD9}, []byte{0xFF, 0xD8, 0xFF, 0xD9}, false},
		{"no_end", []byte{0xFF, 0xD8, 0x01, 0x02}, []byte{0xFF, 0xD8, 0x01, 0x02}, true},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got, truncated, err := TrimJPEG(tc.in)
			if err != nil {
				t.Fatalf("TrimJPEG: %v", err)
			}
			if !bytes.Equal(got, tc.want) {
				t.Errorf("frame = % x, want % x", got, tc.want)
			}
			if truncated != tc.truncated {
				t.Errorf("truncated = %v, want %v", truncated, tc.truncated)
			}
		})
	}
}

func TestTrimJPEG_NoStartMarker(t *testing.T) {
	if _, _, err := TrimJPEG([]byte{0x00, 0x01, 0xFF, 0xD9}); !errors.Is(err, ErrNotJPEG) {
		t.Errorf("err = %v, want ErrNotJPEG", err)
	}
}

// ---------- ArduCAMMini ----------

func TestArduCAMMini_ShootReturnsDecodableFrame(t *testing.T) {
	cam, board := newMockCamera(t, arducam.Res320x240, 0)
	board.DoneAfterPolls = 3

	frame, err := cam.Shoot(context.Background())
	if err != nil {
		t.Fatalf("Shoot: %v", err)
	}
	cfg, err := jpeg.DecodeConfig(bytes.NewReader(frame))
	if err != nil {
		t.Fatalf("DecodeConfig: %v", err)
	}
	if cfg.Width != 320 || cfg.Height != 240 {
		t.Errorf("frame = %dx%d, want 320x240", cfg.Width, cfg.Height)
	}
	if !bytes.HasSuffix(frame, []byte{0xFF, 0xD9}) {
		t.Error("frame should end at the EOI marker")
	}
	if board.Captures() != 1 {
		t.Errorf("captures = %d, want 1", board.Captures())
	}
}

func TestArduCAMMini_SmallBufferTruncates(t *testing.T) {
	cam, _ := newMockCamera(t, arducam.Res320x240, 64)

	frame, err := cam.Shoot(context.Background())
	if err != nil {
		t.Fatalf("Shoot: %v", err)
	}
	if len(frame) != 64 {
		t.Errorf("len = %d, want 64", len(frame))
	}
}

func TestArduCAMMini_Timeout(t *testing.T) {
	board := bus.NewMockBoard()
	board.DoneAfterPolls = 1 << 30
	cam := NewArduCAMMini(arducam.New(board, board, arducam.Res160x120, arducam.JPEG), time.Millisecond, 20*time.Millisecond, 0)

	_, err := cam.Shoot(context.Background())
	if !errors.Is(err, ErrCaptureTimeout) {
		t.Errorf("err = %v, want ErrCaptureTimeout", err)
	}
}

func TestArduCAMMini_ContextCancelled(t *testing.T) {
	board := bus.NewMockBoard()
	board.DoneAfterPolls = 1 << 30
	cam := NewArduCAMMini(arducam.New(board, board, arducam.Res160x120, arducam.JPEG), time.Millisecond, 0, 0)

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	if _, err := cam.Shoot(ctx); !errors.Is(err, context.DeadlineExceeded) {
		t.Errorf("err = %v, want context.DeadlineExceeded", err)
	}
}

func TestArduCAMMini_BusFailure(t *testing.T) {
	cam, board := newMockCamera(t, arducam.Res160x120, 0)
	board.FailRegisterBus = true

	if _, err := cam.Shoot(context.Background()); !errors.Is(err, arducam.ErrRegisterBus) {
		t.Errorf("err = %v, want ErrRegisterBus", err)
	}
}

// lengthBus reports a finished capture with a fixed FIFO length and counts
// burst reads.
type lengthBus struct {
	length [3]byte // FIFO_SIZE1..3
	bursts int
}

func (b *lengthBus) Transact(w, r []byte) error {
	switch {
	case w[0] == arducam.FIFOBurst:
		b.bursts++
	case w[0]&arducam.WriteFlag != 0:
	case len(r) > 0:
		switch w[0] {
		case arducam.RegTrigger:
			r[0] = arducam.CapDoneMask
		case arducam.RegFIFOSize1:
			r[0] = b.length[0]
		case arducam.RegFIFOSize2:
			r[0] = b.length[1]
		case arducam.RegFIFOSize3:
			r[0] = b.length[2]
		}
	}
	return nil
}

func TestArduCAMMini_FIFOLengthOutOfBounds(t *testing.T) {
	cases := []struct {
		name   string
		length [3]byte
	}{
		{"empty", [3]byte{0x00, 0x00, 0x00}},
		{"one_past_max", [3]byte{0x00, 0x00, 0x06}},
		{"all_bits", [3]byte{0xFF, 0xFF, 0xFF}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			regs := &lengthBus{length: tc.length}
			cam := NewArduCAMMini(arducam.New(regs, bus.NewMockBoard(), arducam.Res320x240, arducam.JPEG), time.Microsecond, time.Second, 0)

			_, err := cam.Shoot(context.Background())
			if !errors.Is(err, arducam.ErrOutOfBounds) {
				t.Errorf("err = %v, want ErrOutOfBounds", err)
			}
			if regs.bursts != 0 {
				t.Errorf("bursts = %d, want 0", regs.bursts)
			}
		})
	}
}

func TestArduCAMMini_FIFOLengthAtMax(t *testing.T) {
	regs := &lengthBus{length: [3]byte{0xFF, 0xFF, 0x05}}
	cam := NewArduCAMMini(arducam.New(regs, bus.NewMockBoard(), arducam.Res320x240, arducam.JPEG), time.Microsecond, time.Second, 0)

	// The burst returns zeros, so the frame has no JPEG marker.
	_, err := cam.Shoot(context.Background())
	if !errors.Is(err, ErrNotJPEG) {
		t.Errorf("err = %v, want ErrNotJPEG", err)
	}
	if regs.bursts != 1 {
		t.Errorf("bursts = %d, want 1", regs.bursts)
	}
}

func TestArduCAMMini_SetResolution(t *testing.T) {
	cam, board := newMockCamera(t, arducam.Res320x240, 0)
	if err := cam.SetResolution(arducam.Res640x480); err != nil {
		t.Fatalf("SetResolution: %v", err)
	}
	if cam.Resolution() != arducam.Res640x480 {
		t.Errorf("Resolution = %v", cam.Resolution())
	}
	if w, h := board.OutputSize(); w != 640 || h != 480 {
		t.Errorf("OutputSize = %dx%d", w, h)
	}
}

func TestArduCAMMini_Probe(t *testing.T) {
	cam, _ := newMockCamera(t, arducam.Res320x240, 0)
	d, err := cam.Probe()
	if err != nil {
		t.Fatalf("Probe: %v", err)
	}
	if !d.Connected || !d.ScratchOK() {
		t.Errorf("Diagnostics = %+v", d)
	}
}

func TestArduCAMMini_ImplementsCamera(t *testing.T) {
	var _ Camera = &ArduCAMMini{} // compile-time check
}
