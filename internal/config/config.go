package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	"gopkg.in/yaml.v3"

	"github.com/cjeanneret/ArduGo/internal/hw/arducam"
	"github.com/cjeanneret/ArduGo/internal/hw/camera"
	"github.com/cjeanneret/ArduGo/internal/hw/gpio"
)

// MaxConfigFileBytes caps the size of a config file.
const MaxConfigFileBytes = 1 << 20

// CameraConfig describes the sensor output.
type CameraConfig struct {
	Resolution string `yaml:"resolution"` // e.g., "320x240"
	Format     string `yaml:"format"`     // only "jpeg"
}

// RegisterBusConfig describes the SPI link to the ArduChip.
type RegisterBusConfig struct {
	Driver  string `yaml:"driver"`   // "rpio", "periph" or "mock"
	Device  string `yaml:"device"`   // periph port name, e.g., "SPI0.0"
	SpeedHz int    `yaml:"speed_hz"` // clock, default 4 MHz
	Mode    int    `yaml:"mode"`     // SPI mode 0-3
	CSPin   int    `yaml:"cs_pin"`   // BCM pin for software chip-select. 0 = hardware CE.
}

// SensorBusConfig describes the I2C link to the OV2640.
type SensorBusConfig struct {
	Driver  string `yaml:"driver"` // "periph" or "mock"
	Device  string `yaml:"device"` // periph bus name, e.g., "1"
	SpeedHz int    `yaml:"speed_hz"`
}

// CaptureConfig holds the polling policy and series defaults.
type CaptureConfig struct {
	PollIntervalMs int    `yaml:"poll_interval_ms"`
	TimeoutMs      int    `yaml:"timeout_ms"`
	BufferBytes    int    `yaml:"buffer_bytes"` // fixed read size; 0 = FIFO length
	Count          int    `yaml:"count"`
	IntervalMs     int    `yaml:"interval_ms"`
	OutputDir      string `yaml:"output_dir"`
}

// MQTTConfig enables publishing of every frame.
type MQTTConfig struct {
	Enabled  bool   `yaml:"enabled"`
	Broker   string `yaml:"broker"` // host:port
	ClientID string `yaml:"client_id"`
	Username string `yaml:"username"`
	Password string `yaml:"password"`
	Topic    string `yaml:"topic"`
	QoS      int    `yaml:"qos"`
	Retained bool   `yaml:"retained"`
	Base64   bool   `yaml:"base64"`
}

// DefaultsConfig contains generic parameters.
type DefaultsConfig struct {
	DebugLevel int  `yaml:"debug_level"` // debug level 0-4 (0=off, 1=info, 2=live, 3=verbose, 4=trace)
	MockHW     bool `yaml:"mock_hw"`     // simulated board on both buses (dev/test)
}

// Config aggregates all application configuration.
type Config struct {
	Camera      CameraConfig      `yaml:"camera"`
	RegisterBus RegisterBusConfig `yaml:"register_bus"`
	SensorBus   SensorBusConfig   `yaml:"sensor_bus"`
	Capture     CaptureConfig     `yaml:"capture"`
	MQTT        MQTTConfig        `yaml:"mqtt"`
	Defaults    DefaultsConfig    `yaml:"defaults"`
}

// ValidateConfigPath checks that path names a .yaml file directly inside a
// configs/ directory.
func ValidateConfigPath(path string) error {
	if path == "" {
		return fmt.Errorf("config path is empty")
	}
	if filepath.Ext(path) != ".yaml" {
		return fmt.Errorf("config file must have .yaml extension: %s", path)
	}
	abs, err := filepath.Abs(path)
	if err != nil {
		return fmt.Errorf("resolve config path: %w", err)
	}
	if filepath.Base(filepath.Dir(abs)) != "configs" {
		return fmt.Errorf("config file must be in a configs/ directory: %s", path)
	}
	return nil
}

// Load reads a YAML file and returns the configuration.
func Load(path string) (*Config, error) {
	info, err := os.Stat(path)
	if err != nil {
		return nil, fmt.Errorf("read config file: %w", err)
	}
	if info.Size() > MaxConfigFileBytes {
		return nil, fmt.Errorf("config file too large: %d bytes (max %d)", info.Size(), MaxConfigFileBytes)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config file: %w", err)
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("unmarshal yaml: %w", err)
	}

	cfg.applyDefaults()
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) applyDefaults() {
	if c.Camera.Resolution == "" {
		c.Camera.Resolution = "320x240"
	}
	if c.Camera.Format == "" {
		c.Camera.Format = "jpeg"
	}

	if c.RegisterBus.Driver == "" {
		c.RegisterBus.Driver = "rpio"
	}
	if c.RegisterBus.Device == "" {
		c.RegisterBus.Device = "SPI0.0"
	}
	if c.RegisterBus.SpeedHz <= 0 {
		c.RegisterBus.SpeedHz = 4_000_000
	}

	if c.SensorBus.Driver == "" {
		c.SensorBus.Driver = "periph"
	}
	if c.SensorBus.Device == "" {
		c.SensorBus.Device = "1"
	}
	if c.SensorBus.SpeedHz <= 0 {
		c.SensorBus.SpeedHz = 100_000
	}

	if c.Capture.PollIntervalMs <= 0 {
		c.Capture.PollIntervalMs = 1
	}
	if c.Capture.TimeoutMs <= 0 {
		c.Capture.TimeoutMs = 3000
	}
	if c.Capture.Count <= 0 {
		c.Capture.Count = 1
	}
	if c.Capture.OutputDir == "" {
		c.Capture.OutputDir = "captures"
	}

	if c.MQTT.Topic == "" {
		c.MQTT.Topic = "ardugo/frames"
	}
	if c.MQTT.ClientID == "" {
		c.MQTT.ClientID = "ardugo-" + uuid.New().String()[:8]
	}
}

func (c *Config) validate() error {
	if _, err := arducam.ParseResolution(c.Camera.Resolution); err != nil {
		return fmt.Errorf("camera.resolution: %w", err)
	}
	if _, err := arducam.ParseImageFormat(c.Camera.Format); err != nil {
		return fmt.Errorf("camera.format: %w", err)
	}

	switch c.RegisterBus.Driver {
	case "rpio", "periph", "mock":
	default:
		return fmt.Errorf("register_bus.driver must be rpio, periph or mock, got %q", c.RegisterBus.Driver)
	}
	if c.RegisterBus.Mode < 0 || c.RegisterBus.Mode > 3 {
		return fmt.Errorf("register_bus.mode must be between 0 and 3, got %d", c.RegisterBus.Mode)
	}
	if c.RegisterBus.CSPin < 0 || c.RegisterBus.CSPin > gpio.MaxPin {
		return fmt.Errorf("register_bus.cs_pin must be between 0 and %d, got %d", gpio.MaxPin, c.RegisterBus.CSPin)
	}
	switch c.SensorBus.Driver {
	case "periph", "mock":
	default:
		return fmt.Errorf("sensor_bus.driver must be periph or mock, got %q", c.SensorBus.Driver)
	}

	if c.Capture.BufferBytes < 0 || c.Capture.BufferBytes > camera.MaxFIFOSize {
		return fmt.Errorf("capture.buffer_bytes must be between 0 and %d, got %d", camera.MaxFIFOSize, c.Capture.BufferBytes)
	}
	if c.Capture.Count > 100 {
		return fmt.Errorf("capture.count must be between 1 and 100, got %d", c.Capture.Count)
	}
	if c.Capture.IntervalMs < 0 {
		return fmt.Errorf("capture.interval_ms must be >= 0, got %d", c.Capture.IntervalMs)
	}

	if c.MQTT.Enabled && c.MQTT.Broker == "" {
		return fmt.Errorf("mqtt.broker is required when mqtt is enabled")
	}
	if c.MQTT.QoS < 0 || c.MQTT.QoS > 2 {
		return fmt.Errorf("mqtt.qos must be 0, 1 or 2, got %d", c.MQTT.QoS)
	}
	return nil
}

// PollInterval returns the delay between two done-bit polls.
func (c *Config) PollInterval() time.Duration {
	return time.Duration(c.Capture.PollIntervalMs) * time.Millisecond
}

// CaptureTimeout returns how long a capture may take.
func (c *Config) CaptureTimeout() time.Duration {
	return time.Duration(c.Capture.TimeoutMs) * time.Millisecond
}

// SeriesInterval returns the delay between two frames of a series.
func (c *Config) SeriesInterval() time.Duration {
	return time.Duration(c.Capture.IntervalMs) * time.Millisecond
}

// Resolution returns the parsed camera resolution. Load has validated it.
func (c *Config) Resolution() arducam.Resolution {
	r, _ := arducam.ParseResolution(c.Camera.Resolution)
	return r
}
