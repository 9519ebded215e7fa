package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"log"
	"os"
	"os/signal"
	"path/filepath"
	"strconv"
	"syscall"
	"time"

	"github.com/cjeanneret/ArduGo/internal/config"
	"github.com/cjeanneret/ArduGo/internal/debug"
	"github.com/cjeanneret/ArduGo/internal/hw/arducam"
	"github.com/cjeanneret/ArduGo/internal/hw/camera"
	"github.com/cjeanneret/ArduGo/internal/logic/capture"
	"github.com/cjeanneret/ArduGo/internal/publish"
	"github.com/cjeanneret/ArduGo/internal/web"
)

func main() {
	// CLI flags
	webPort := &webPortFlag{defaultPort: 8080}
	flag.Var(webPort, "web", "start web server on port; -web= for default 8080, -web 8980 for custom port")
	cfgPath := flag.String("config", filepath.Join("configs", "default.yaml"), "path to config file")
	count := flag.Int("count", 0, "override number of frames (1-100)")
	interval := flag.Duration("interval", 0, "override delay between frames (max 60s)")
	resolution := flag.String("resolution", "", "override resolution, e.g. 640x480")
	outDir := flag.String("out", "", "override output directory")
	probe := flag.Bool("probe", false, "check the SPI and I2C links, print diagnostics and exit")
	flag.Parse()

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	// Load configuration
	if err := config.ValidateConfigPath(*cfgPath); err != nil {
		log.Fatalf("invalid config path: %v", err)
	}
	cfg, err := config.Load(*cfgPath)
	if err != nil {
		log.Fatalf("load config failed: %v", err)
	}

	// Validate CLI overrides (only non-zero values are applied; zero means "use config default")
	cliOverrides := web.Overrides{Count: *count, IntervalMs: int(*interval / time.Millisecond), Resolution: *resolution}
	if err := validateCLIOverrides(cliOverrides); err != nil {
		log.Fatalf("invalid CLI override: %v", err)
	}
	applyOverrides(cfg, cliOverrides)
	if *outDir != "" {
		cfg.Capture.OutputDir = *outDir
	}

	// Initialize debug system
	debug.Init(cfg.Defaults.DebugLevel)
	debug.Section("Initialization")
	debug.Value("Config path", *cfgPath)
	debug.Value("Debug level", cfg.Defaults.DebugLevel)
	debug.Value("Mock hardware", cfg.Defaults.MockHW)

	debug.Step(1, "Opening buses")
	hw, err := openHardware(cfg)
	if err != nil {
		log.Fatalf("open buses failed: %v", err)
	}
	defer func() {
		if err := hw.Close(); err != nil {
			log.Printf("closing buses failed: %v", err)
		}
	}()
	debug.PrintStruct("Register bus config", cfg.RegisterBus)
	debug.PrintStruct("Sensor bus config", cfg.SensorBus)

	format, _ := arducam.ParseImageFormat(cfg.Camera.Format)
	dev := arducam.New(hw.regs, hw.sensor, cfg.Resolution(), format)
	cam := camera.NewArduCAMMini(dev, cfg.PollInterval(), cfg.CaptureTimeout(), cfg.Capture.BufferBytes)
	debug.Value("Camera", dev)

	if *probe {
		d, err := cam.Probe()
		if err != nil {
			log.Fatalf("probe failed: %v", err)
		}
		printDiagnostics(os.Stdout, dev, d)
		if !d.Connected {
			os.Exit(1)
		}
		return
	}

	debug.Step(2, "Initializing camera")
	if err := cam.Init(arducam.SleepDelayer{}); err != nil {
		log.Fatalf("init camera failed: %v", err)
	}
	d, err := cam.Probe()
	if err != nil {
		log.Fatalf("probe failed: %v", err)
	}
	if !d.Connected {
		log.Fatalf("camera not detected (chip id % x, scratch 0x%02x/0x%02x)", d.ChipID, d.ScratchWritten, d.ScratchRead)
	}
	debug.Info("OV2640 detected (chip id % x)", d.ChipID)

	debug.Step(3, "Setting up frame sinks")
	latest := &capture.Latest{}
	fileSink, err := capture.NewFileSink(cfg.Capture.OutputDir)
	if err != nil {
		log.Fatalf("init output failed: %v", err)
	}
	debug.Value("Output dir", cfg.Capture.OutputDir)
	sinks := []capture.Sink{latest, fileSink}

	var pub *publish.MQTTPublisher
	if cfg.MQTT.Enabled {
		pub = publish.NewMQTTPublisher(mqttConfig(cfg))
		if err := pub.Connect(ctx); err != nil {
			log.Fatalf("mqtt failed: %v", err)
		}
		defer pub.Disconnect()
		sinks = append(sinks, capture.NewMQTTSink(pub))
		debug.Value("MQTT topic", cfg.MQTT.Topic)
	}

	if port := webPort.port(); port > 0 {
		webAddr := fmt.Sprintf(":%d", port)
		broadcaster := web.NewStatusBroadcaster()
		debug.SetOutput(io.MultiWriter(os.Stdout, web.BroadcastWriter(broadcaster)))

		seq := capture.NewSequence(cam, append(sinks, broadcaster)...)
		runCapture := func(ctx context.Context, overrides web.Overrides) error {
			return executeSeries(ctx, seq, cfg, overrides)
		}
		srv := web.NewServer(webAddr, broadcaster, runCapture, formDefaults(cfg), latest)
		if pub != nil {
			srv.SetPublisher(pub)
		}
		if err := srv.Run(ctx); err != nil {
			log.Fatalf("web server: %v", err)
		}
		return
	}

	// Run one series with current config (already has CLI overrides applied)
	seq := capture.NewSequence(cam, sinks...)
	if err := executeSeries(ctx, seq, cfg, web.Overrides{}); err != nil {
		log.Fatalf("capture failed: %v", err)
	}
}

// executeSeries runs a capture series with the given config and overrides.
// Overrides are applied to a copy of the config.
func executeSeries(ctx context.Context, seq *capture.Sequence, baseCfg *config.Config, overrides web.Overrides) error {
	cfg := applyOverridesToCopy(baseCfg, overrides)

	params := capture.SeriesParams{
		Count:      cfg.Capture.Count,
		Interval:   cfg.SeriesInterval(),
		Resolution: overrides.Resolution,
	}
	debug.Summary(fmt.Sprintf("Series: %d frame(s) every %v", params.Count, params.Interval))

	n, err := seq.RunSeries(ctx, params)
	if err != nil {
		return fmt.Errorf("after %d frame(s): %w", n, err)
	}
	debug.Section("Series Complete")
	return nil
}

// validateCLIOverrides checks that non-zero CLI overrides are within valid ranges.
// Zero values are ignored (they mean "use config default").
func validateCLIOverrides(o web.Overrides) error {
	if o.Count == 0 {
		o.Count = 1
	}
	return web.ValidateOverrides(o)
}

// applyOverrides mutates cfg with overrides. Only non-zero override values are applied.
func applyOverrides(cfg *config.Config, overrides web.Overrides) {
	if overrides.Count > 0 {
		cfg.Capture.Count = overrides.Count
	}
	if overrides.IntervalMs > 0 {
		cfg.Capture.IntervalMs = overrides.IntervalMs
	}
	if overrides.Resolution != "" {
		cfg.Camera.Resolution = overrides.Resolution
	}
}

// applyOverridesToCopy returns a new config with overrides applied.
// Zero values in overrides mean "use base config".
func applyOverridesToCopy(baseCfg *config.Config, overrides web.Overrides) *config.Config {
	cfg := *baseCfg
	applyOverrides(&cfg, overrides)
	return &cfg
}

func formDefaults(cfg *config.Config) web.FormConfig {
	fc := web.FormConfig{
		Count:      cfg.Capture.Count,
		IntervalMs: cfg.Capture.IntervalMs,
		Resolution: cfg.Resolution().String(),
	}
	for _, r := range arducam.Resolutions() {
		fc.Resolutions = append(fc.Resolutions, r.String())
	}
	return fc
}

func mqttConfig(cfg *config.Config) publish.Config {
	return publish.Config{
		Broker:   cfg.MQTT.Broker,
		ClientID: cfg.MQTT.ClientID,
		Username: cfg.MQTT.Username,
		Password: cfg.MQTT.Password,
		Topic:    cfg.MQTT.Topic,
		QoS:      byte(cfg.MQTT.QoS),
		Retained: cfg.MQTT.Retained,
		Base64:   cfg.MQTT.Base64,
	}
}

func printDiagnostics(w io.Writer, dev *arducam.Camera, d arducam.Diagnostics) {
	fmt.Fprintf(w, "%v\n", dev)
	fmt.Fprintf(w, "  scratch register: wrote 0x%02x, read 0x%02x (ok=%v)\n", d.ScratchWritten, d.ScratchRead, d.ScratchOK())
	fmt.Fprintf(w, "  sensor chip id:   %02x %02x\n", d.ChipID[0], d.ChipID[1])
	fmt.Fprintf(w, "  connected:        %v\n", d.Connected)
}

// webPortFlag implements flag.Value for -web. 0 disables the server; -web= selects the default port.
type webPortFlag struct {
	val         int
	defaultPort int
}

func (w *webPortFlag) String() string {
	if w.val == 0 {
		return "0"
	}
	return strconv.Itoa(w.val)
}

func (w *webPortFlag) Set(s string) error {
	if s == "" {
		w.val = w.defaultPort
		return nil
	}
	v, err := strconv.Atoi(s)
	if err != nil {
		return err
	}
	if v <= 0 || v > 65535 {
		return fmt.Errorf("port must be 1-65535, got %d", v)
	}
	w.val = v
	return nil
}

func (w *webPortFlag) port() int { return w.val }
