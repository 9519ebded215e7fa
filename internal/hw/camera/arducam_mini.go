package camera

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/cjeanneret/ArduGo/internal/debug"
	"github.com/cjeanneret/ArduGo/internal/hw/arducam"
)

// MaxFIFOSize is the frame buffer of the ArduCAM Mini 2MP (384 KiB).
const MaxFIFOSize = 0x5FFFF

// ErrCaptureTimeout is returned when the done bit does not come up in time.
var ErrCaptureTimeout = errors.New("camera: capture timed out")

// ArduCAMMini is a Camera backed by the ArduCAM Mini 2MP driver.
// It owns the polling policy the driver leaves to its caller:
// 1. StartCapture
// 2. Poll IsCaptureDone every PollInterval until Timeout
// 3. Read FIFOLength and check it against MaxFIFOSize
// 4. Burst-read the frame and trim it to the JPEG markers
//
// All methods are serialized; the driver itself does no locking.
type ArduCAMMini struct {
	mu           sync.Mutex
	dev          *arducam.Camera
	pollInterval time.Duration
	timeout      time.Duration
	bufferSize   int // fixed read size; 0 = use the reported FIFO length
}

// NewArduCAMMini wraps dev. bufferSize fixes the burst-read length; frames
// longer than it are cut. Use 0 to read exactly what the FIFO reports.
func NewArduCAMMini(dev *arducam.Camera, pollInterval, timeout time.Duration, bufferSize int) *ArduCAMMini {
	if pollInterval <= 0 {
		pollInterval = time.Millisecond
	}
	return &ArduCAMMini{
		dev:          dev,
		pollInterval: pollInterval,
		timeout:      timeout,
		bufferSize:   bufferSize,
	}
}

// Init resets the module and loads the configured resolution.
func (a *ArduCAMMini) Init(d arducam.Delayer) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	debug.Verbose("Camera: initializing %v", a.dev)
	return a.dev.Init(d)
}

// Probe runs the link check.
func (a *ArduCAMMini) Probe() (arducam.Diagnostics, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.dev.Probe()
}

// SetResolution switches the output size between shots.
func (a *ArduCAMMini) SetResolution(r arducam.Resolution) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	debug.Verbose("Camera: switching to %s", r)
	return a.dev.SetResolution(r)
}

// Resolution returns the current output size.
func (a *ArduCAMMini) Resolution() arducam.Resolution {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.dev.Resolution()
}

// Shoot captures one frame.
func (a *ArduCAMMini) Shoot(ctx context.Context) ([]byte, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	debug.Verbose("Camera: starting capture")
	if err := a.dev.StartCapture(); err != nil {
		return nil, fmt.Errorf("start capture: %w", err)
	}
	if err := a.waitDone(ctx); err != nil {
		return nil, err
	}

	length, err := a.dev.FIFOLength()
	if err != nil {
		return nil, fmt.Errorf("read fifo length: %w", err)
	}
	debug.Verbose("Camera: FIFO holds %d bytes", length)
	if length == 0 {
		return nil, fmt.Errorf("%w: empty FIFO", arducam.ErrOutOfBounds)
	}
	if length > MaxFIFOSize {
		return nil, fmt.Errorf("%w: FIFO length %d exceeds %d", arducam.ErrOutOfBounds, length, MaxFIFOSize)
	}

	size := int(length)
	if a.bufferSize > 0 {
		if size > a.bufferSize {
			debug.Verbose("Camera: frame of %d bytes cut to %d-byte buffer", size, a.bufferSize)
		}
		size = a.bufferSize
	}
	buf := make([]byte, size)
	if err := a.dev.ReadCapturedImage(buf); err != nil {
		return nil, fmt.Errorf("read frame: %w", err)
	}

	frame, truncated, err := TrimJPEG(buf)
	if err != nil {
		return nil, err
	}
	if truncated {
		debug.Info("Camera: frame has no JPEG end marker (%d bytes kept)", len(frame))
	}
	return frame, nil
}

// waitDone polls the done bit until it is set, ctx ends or the timeout
// elapses. A zero timeout waits for ctx only.
func (a *ArduCAMMini) waitDone(ctx context.Context) error {
	var deadline <-chan time.Time
	if a.timeout > 0 {
		t := time.NewTimer(a.timeout)
		defer t.Stop()
		deadline = t.C
	}
	ticker := time.NewTicker(a.pollInterval)
	defer ticker.Stop()

	polls := 0
	for {
		done, err := a.dev.IsCaptureDone()
		if err != nil {
			return fmt.Errorf("poll capture: %w", err)
		}
		polls++
		if done {
			debug.Trace("Camera: capture done after %d polls", polls)
			return nil
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-deadline:
			return fmt.Errorf("%w after %v (%d polls)", ErrCaptureTimeout, a.timeout, polls)
		case <-ticker.C:
		}
	}
}
