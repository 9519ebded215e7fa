package capture

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/cjeanneret/ArduGo/internal/debug"
)

// Sink receives every frame of a series.
type Sink interface {
	Write(ctx context.Context, f *Frame) error
}

// FileSink stores frames as <dir>/<time>_<seq>.jpg.
type FileSink struct {
	dir string
}

// NewFileSink creates dir if needed.
func NewFileSink(dir string) (*FileSink, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create output dir: %w", err)
	}
	return &FileSink{dir: dir}, nil
}

// Path returns the file name used for f.
func (s *FileSink) Path(f *Frame) string {
	name := fmt.Sprintf("%s_%04d.jpg", f.TakenAt.Format("20060102-150405.000"), f.Seq)
	return filepath.Join(s.dir, name)
}

func (s *FileSink) Write(_ context.Context, f *Frame) error {
	path := s.Path(f)
	if err := os.WriteFile(path, f.Data, 0o644); err != nil {
		return fmt.Errorf("write frame: %w", err)
	}
	debug.Verbose("Frame %d saved to %s", f.Seq, path)
	return nil
}

// FramePublisher is the part of publish.MQTTPublisher used by MQTTSink.
type FramePublisher interface {
	PublishFrame(ctx context.Context, jpeg []byte) error
	PublishMeta(ctx context.Context, doc []byte) error
}

// MQTTSink publishes the frame metadata as JSON, then the JPEG bytes.
type MQTTSink struct {
	pub FramePublisher
}

func NewMQTTSink(pub FramePublisher) *MQTTSink {
	return &MQTTSink{pub: pub}
}

func (s *MQTTSink) Write(ctx context.Context, f *Frame) error {
	doc, err := json.Marshal(f)
	if err != nil {
		return fmt.Errorf("marshal frame metadata: %w", err)
	}
	if err := s.pub.PublishMeta(ctx, doc); err != nil {
		return err
	}
	return s.pub.PublishFrame(ctx, f.Data)
}

// Latest keeps the most recent frame in memory.
type Latest struct {
	mu    sync.RWMutex
	frame *Frame
}

func (l *Latest) Write(_ context.Context, f *Frame) error {
	l.mu.Lock()
	l.frame = f
	l.mu.Unlock()
	return nil
}

// Get returns the last frame written, or nil.
func (l *Latest) Get() *Frame {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.frame
}
