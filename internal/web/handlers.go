package web

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"log"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/cjeanneret/ArduGo/internal/hw/arducam"
	"github.com/cjeanneret/ArduGo/internal/logic/capture"
	"github.com/cjeanneret/ArduGo/internal/publish"
)

const (
	// MaxBodyBytes caps the POST /capture request body.
	MaxBodyBytes = 1 << 20
	// MaxCount and MaxIntervalMs bound a series started from the web.
	MaxCount      = 100
	MaxIntervalMs = 60_000

	defaultCooldown = 2 * time.Second
)

// Overrides holds series parameters that override config defaults.
type Overrides struct {
	Count      int    `json:"count"`
	IntervalMs int    `json:"interval_ms"`
	Resolution string `json:"resolution"` // empty keeps the current one
}

// ValidateOverrides checks a series request.
func ValidateOverrides(o Overrides) error {
	if o.Count < 1 || o.Count > MaxCount {
		return fmt.Errorf("count must be between 1 and %d, got %d", MaxCount, o.Count)
	}
	if o.IntervalMs < 0 || o.IntervalMs > MaxIntervalMs {
		return fmt.Errorf("interval_ms must be between 0 and %d, got %d", MaxIntervalMs, o.IntervalMs)
	}
	if o.Resolution != "" {
		if _, err := arducam.ParseResolution(o.Resolution); err != nil {
			return err
		}
	}
	return nil
}

// RunCaptureFunc runs a series with the given overrides.
// It is called from the POST /capture handler in a goroutine.
type RunCaptureFunc func(ctx context.Context, overrides Overrides) error

// FormConfig holds default values for the capture form (from config).
type FormConfig struct {
	Count       int      `json:"count"`
	IntervalMs  int      `json:"interval_ms"`
	Resolution  string   `json:"resolution"`
	Resolutions []string `json:"resolutions"`
}

// FrameStore returns the most recent frame, or nil.
type FrameStore interface {
	Get() *capture.Frame
}

// PublisherStats reports the MQTT publisher counters.
type PublisherStats interface {
	Stats() publish.Stats
}

// Handlers holds dependencies for HTTP handlers.
type Handlers struct {
	Broadcaster  *StatusBroadcaster
	RunCapture   RunCaptureFunc
	FormDefaults FormConfig
	Frames       FrameStore
	Publisher    PublisherStats // nil when MQTT is off
	Cooldown     time.Duration  // minimum delay between two series starts

	runningMu sync.Mutex
	running   bool
	lastStart time.Time
	lastErr   string
	baseCtx   context.Context
	staticFS  fs.FS
}

// NewHandlers creates handlers with the given dependencies.
// If runCapture is nil, POST /capture will return 503 Service Unavailable.
func NewHandlers(broadcaster *StatusBroadcaster, runCapture RunCaptureFunc, formDefaults FormConfig, frames FrameStore, staticFS fs.FS) *Handlers {
	return &Handlers{
		Broadcaster:  broadcaster,
		RunCapture:   runCapture,
		FormDefaults: formDefaults,
		Frames:       frames,
		Cooldown:     defaultCooldown,
		baseCtx:      context.Background(),
		staticFS:     staticFS,
	}
}

// HandleConfig returns the form default values (from config) as JSON.
func (h *Handlers) HandleConfig(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.FormDefaults)
}

// ServeIndex serves the main HTML page (root path only).
func (h *Handlers) ServeIndex(w http.ResponseWriter, r *http.Request) {
	data, err := fs.ReadFile(h.staticFS, "index.html")
	if err != nil {
		http.Error(w, "not found", http.StatusNotFound)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.Write(data)
}

// HandleCapture handles POST /capture to start a series.
func (h *Handlers) HandleCapture(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, MaxBodyBytes)
	var overrides Overrides
	if err := json.NewDecoder(r.Body).Decode(&overrides); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			http.Error(w, "request body too large", http.StatusBadRequest)
			return
		}
		http.Error(w, "invalid JSON", http.StatusBadRequest)
		return
	}
	// A zero count keeps the configured one.
	check := overrides
	if check.Count == 0 {
		check.Count = h.FormDefaults.Count
	}
	if err := ValidateOverrides(check); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	if h.RunCapture == nil {
		http.Error(w, "capture not configured", http.StatusServiceUnavailable)
		return
	}

	h.runningMu.Lock()
	if h.running {
		h.runningMu.Unlock()
		http.Error(w, "capture already in progress", http.StatusConflict)
		return
	}
	if !h.lastStart.IsZero() && time.Since(h.lastStart) < h.Cooldown {
		h.runningMu.Unlock()
		http.Error(w, "too many requests", http.StatusTooManyRequests)
		return
	}
	h.running = true
	h.lastStart = time.Now()
	h.lastErr = ""
	ctx := h.baseCtx
	h.runningMu.Unlock()

	// Run in goroutine; clear running when done
	go func() {
		err := h.RunCapture(ctx, overrides)

		h.runningMu.Lock()
		h.running = false
		if err != nil {
			h.lastErr = err.Error()
		}
		h.runningMu.Unlock()

		if err != nil {
			h.Broadcaster.Broadcast("error", "Capture failed: "+err.Error())
			log.Printf("capture failed: %v", err)
		} else {
			h.Broadcaster.Broadcast("info", "Series complete")
		}
	}()

	writeJSON(w, http.StatusAccepted, map[string]string{"status": "started"})
}

// StatusResponse is returned by GET /status.
type StatusResponse struct {
	Running   bool           `json:"running"`
	LastError string         `json:"last_error,omitempty"`
	LastFrame int            `json:"last_frame,omitempty"`
	MQTT      *publish.Stats `json:"mqtt,omitempty"`
}

// HandleStatus reports whether a series is running, and the MQTT counters
// when a publisher is attached.
func (h *Handlers) HandleStatus(w http.ResponseWriter, r *http.Request) {
	h.runningMu.Lock()
	resp := StatusResponse{Running: h.running, LastError: h.lastErr}
	h.runningMu.Unlock()
	if h.Frames != nil {
		if f := h.Frames.Get(); f != nil {
			resp.LastFrame = f.Seq
		}
	}
	if h.Publisher != nil {
		st := h.Publisher.Stats()
		resp.MQTT = &st
	}
	writeJSON(w, http.StatusOK, resp)
}

// HandleLatestFrame serves the most recent JPEG. The frame id is the ETag.
func (h *Handlers) HandleLatestFrame(w http.ResponseWriter, r *http.Request) {
	var f *capture.Frame
	if h.Frames != nil {
		f = h.Frames.Get()
	}
	if f == nil {
		http.Error(w, "no frame captured yet", http.StatusNotFound)
		return
	}

	etag := `"` + f.ID.String() + `"`
	w.Header().Set("ETag", etag)
	w.Header().Set("Cache-Control", "no-cache")
	if r.Header.Get("If-None-Match") == etag {
		w.WriteHeader(http.StatusNotModified)
		return
	}
	w.Header().Set("Content-Type", "image/jpeg")
	w.Header().Set("Content-Length", strconv.Itoa(len(f.Data)))
	w.Header().Set("X-Frame-Seq", strconv.Itoa(f.Seq))
	w.Header().Set("X-Frame-Resolution", f.Resolution)
	w.Write(f.Data)
}

// HandleStatusStream handles GET /status/stream for SSE.
func (h *Handlers) HandleStatusStream(w http.ResponseWriter, r *http.Request) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "streaming not supported", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("X-Accel-Buffering", "no") // nginx

	ch, unsub := h.Broadcaster.Subscribe()
	defer unsub()

	// Send initial comment to establish connection
	w.Write([]byte(": connected\n\n"))
	flusher.Flush()

	// Heartbeat while idle
	ticker := time.NewTicker(30 * time.Second)
	defer ticker.Stop()

	for {
		select {
		case msg, ok := <-ch:
			if !ok {
				return
			}
			w.Write([]byte("data: " + msg + "\n\n"))
			flusher.Flush()

		case <-ticker.C:
			w.Write([]byte(": heartbeat\n\n"))
			flusher.Flush()

		case <-r.Context().Done():
			return
		}
	}
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}
