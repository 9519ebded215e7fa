package capture

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/cjeanneret/ArduGo/internal/debug"
	"github.com/cjeanneret/ArduGo/internal/hw/arducam"
	"github.com/cjeanneret/ArduGo/internal/hw/camera"
)

// Resizer is implemented by cameras whose output size can change between
// shots (camera.ArduCAMMini).
type Resizer interface {
	SetResolution(r arducam.Resolution) error
	Resolution() arducam.Resolution
}

// Sequence contains the high-level capture logic: single shots and
// timed series, with every frame handed to the sinks.
type Sequence struct {
	camera camera.Camera
	sinks  []Sink
	seq    int
}

func NewSequence(c camera.Camera, sinks ...Sink) *Sequence {
	return &Sequence{camera: c, sinks: sinks}
}

// SeriesParams defines a timed series.
type SeriesParams struct {
	Count      int           // frames to take
	Interval   time.Duration // delay between the end of a shot and the next one
	Resolution string        // optional, e.g. "640x480"; empty keeps the current one
}

// RunSeries shoots p.Count frames. A camera error aborts the series; sink
// errors are logged and returned together once the series is over. It
// returns the number of frames captured.
func (s *Sequence) RunSeries(ctx context.Context, p SeriesParams) (int, error) {
	if p.Count < 1 {
		return 0, fmt.Errorf("count must be at least 1, got %d", p.Count)
	}
	if p.Resolution != "" {
		if err := s.applyResolution(p.Resolution); err != nil {
			return 0, err
		}
	}

	debug.Section("Capture series")
	debug.Value("Frames", p.Count)
	debug.Value("Interval", p.Interval)

	var sinkErrs []error
	for i := 0; i < p.Count; i++ {
		select {
		case <-ctx.Done():
			return i, ctx.Err()
		default:
		}

		if i > 0 && p.Interval > 0 {
			timer := time.NewTimer(p.Interval)
			select {
			case <-ctx.Done():
				timer.Stop()
				return i, ctx.Err()
			case <-timer.C:
			}
		}

		debug.Live("Shooting frame %d/%d", i+1, p.Count)
		f, err := s.Shoot(ctx)
		if err != nil {
			return i, fmt.Errorf("frame %d/%d: %w", i+1, p.Count, err)
		}
		sinkErrs = append(sinkErrs, s.dispatch(ctx, f)...)
	}

	debug.Info("Series complete: %d frames", p.Count)
	return p.Count, errors.Join(sinkErrs...)
}

// Shoot takes one frame without dispatching it.
func (s *Sequence) Shoot(ctx context.Context) (*Frame, error) {
	data, err := s.camera.Shoot(ctx)
	if err != nil {
		return nil, err
	}
	s.seq++
	res := ""
	if r, ok := s.camera.(Resizer); ok {
		res = r.Resolution().String()
	}
	f := NewFrame(s.seq, time.Now(), res, data)
	debug.Frame(f.Seq, f.Size, f.Resolution)
	if !f.Decoded() {
		debug.Verbose("Frame %d: JPEG header did not decode", f.Seq)
	}
	return f, nil
}

func (s *Sequence) dispatch(ctx context.Context, f *Frame) []error {
	var errs []error
	for _, sink := range s.sinks {
		if err := sink.Write(ctx, f); err != nil {
			debug.Error(fmt.Errorf("frame %d: sink %T: %w", f.Seq, sink, err))
			errs = append(errs, err)
		}
	}
	return errs
}

func (s *Sequence) applyResolution(name string) error {
	r, ok := s.camera.(Resizer)
	if !ok {
		return fmt.Errorf("camera %T has a fixed resolution", s.camera)
	}
	res, err := arducam.ParseResolution(name)
	if err != nil {
		return err
	}
	if res == r.Resolution() {
		return nil
	}
	return r.SetResolution(res)
}
