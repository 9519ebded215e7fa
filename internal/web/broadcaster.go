package web

import (
	"context"
	"encoding/json"
	"strings"
	"sync"
	"time"

	"github.com/cjeanneret/ArduGo/internal/logic/capture"
)

// historySize is how many past events a new subscriber is replayed.
const historySize = 16

// StatusEvent represents a single status message for SSE.
type StatusEvent struct {
	Time  string      `json:"t"`
	Level string      `json:"l,omitempty"`
	Msg   string      `json:"msg"`
	Frame *FrameEvent `json:"frame,omitempty"`
}

// FrameEvent tells clients a new frame is available at /frame/latest.jpg.
type FrameEvent struct {
	ID         string `json:"id"`
	Seq        int    `json:"seq"`
	Size       int    `json:"size"`
	Resolution string `json:"resolution"`
}

// StatusBroadcaster distributes status messages to multiple SSE clients.
type StatusBroadcaster struct {
	mu      sync.RWMutex
	clients map[chan string]struct{}
	history []string
}

// NewStatusBroadcaster creates a new broadcaster.
func NewStatusBroadcaster() *StatusBroadcaster {
	return &StatusBroadcaster{
		clients: make(map[chan string]struct{}),
	}
}

// Subscribe returns a channel that receives broadcast messages and a cleanup function.
// The channel starts with the most recent events. The caller must call the
// returned cleanup when done (e.g. on client disconnect).
func (b *StatusBroadcaster) Subscribe() (<-chan string, func()) {
	ch := make(chan string, 64)
	b.mu.Lock()
	for _, msg := range b.history {
		ch <- msg
	}
	b.clients[ch] = struct{}{}
	b.mu.Unlock()

	unsub := func() {
		b.mu.Lock()
		delete(b.clients, ch)
		b.mu.Unlock()
		close(ch)
	}
	return ch, unsub
}

// Broadcast sends a message to all subscribed clients.
// Messages are sent as JSON: {"t":"...","l":"info","msg":"..."}
// Slow clients may miss messages (non-blocking, buffered).
func (b *StatusBroadcaster) Broadcast(level, msg string) {
	b.send(StatusEvent{Level: level, Msg: msg})
}

// BroadcastMsg is a convenience for level "info".
func (b *StatusBroadcaster) BroadcastMsg(msg string) {
	b.Broadcast("info", msg)
}

// BroadcastFrame announces a captured frame. Frame events are not kept in
// the replay history.
func (b *StatusBroadcaster) BroadcastFrame(f *capture.Frame) {
	b.send(StatusEvent{
		Level: "frame",
		Msg:   "frame " + f.ID.String(),
		Frame: &FrameEvent{ID: f.ID.String(), Seq: f.Seq, Size: f.Size, Resolution: f.Resolution},
	})
}

func (b *StatusBroadcaster) send(evt StatusEvent) {
	evt.Time = time.Now().Format(time.RFC3339)
	data, err := json.Marshal(evt)
	if err != nil {
		return
	}
	payload := string(data)

	b.mu.Lock()
	defer b.mu.Unlock()
	if evt.Frame == nil {
		b.history = append(b.history, payload)
		if len(b.history) > historySize {
			b.history = b.history[len(b.history)-historySize:]
		}
	}
	for ch := range b.clients {
		select {
		case ch <- payload:
		default:
			// channel full, skip
		}
	}
}

// Write implements capture.Sink so the broadcaster can follow a series.
func (b *StatusBroadcaster) Write(_ context.Context, f *capture.Frame) error {
	b.BroadcastFrame(f)
	return nil
}

// BroadcastWriter implements io.Writer; each Write broadcasts the content to SSE clients.
func BroadcastWriter(b *StatusBroadcaster) *broadcastWriter {
	return &broadcastWriter{b: b}
}

// broadcastWriter wraps StatusBroadcaster as io.Writer for use with debug.SetOutput.
type broadcastWriter struct {
	b *StatusBroadcaster
}

func (w *broadcastWriter) Write(p []byte) (n int, err error) {
	msg := strings.TrimSpace(string(p))
	if msg != "" {
		w.b.BroadcastMsg(msg)
	}
	return len(p), nil
}
