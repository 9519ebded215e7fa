// Package publish pushes captured frames to an MQTT broker.
package publish

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"sync"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"

	"github.com/cjeanneret/ArduGo/internal/debug"
)

// ErrNotConnected is returned by Publish before Connect succeeded or after
// the broker link dropped.
var ErrNotConnected = errors.New("mqtt not connected")

// Config holds the broker settings.
type Config struct {
	Broker         string // host:port, tcp:// is prepended
	ClientID       string
	Username       string
	Password       string
	Topic          string // frames go to <Topic>/frame, metadata to <Topic>/meta
	QoS            byte
	Retained       bool
	Base64         bool // encode the JPEG payload
	ConnectTimeout time.Duration
	PublishTimeout time.Duration
}

// MQTTPublisher publishes frames and their metadata.
type MQTTPublisher struct {
	cfg    Config
	client mqtt.Client

	mu        sync.RWMutex
	published map[string]uint64
	errors    uint64
	connected bool
}

// NewMQTTPublisher creates a publisher. The broker is not contacted until
// Connect.
func NewMQTTPublisher(cfg Config) *MQTTPublisher {
	if cfg.ConnectTimeout <= 0 {
		cfg.ConnectTimeout = 5 * time.Second
	}
	if cfg.PublishTimeout <= 0 {
		cfg.PublishTimeout = 2 * time.Second
	}
	return &MQTTPublisher{cfg: cfg, published: make(map[string]uint64)}
}

// NewMQTTPublisherWithClient uses an existing client; Connect is still
// needed unless the client is already connected.
func NewMQTTPublisherWithClient(cfg Config, c mqtt.Client) *MQTTPublisher {
	p := NewMQTTPublisher(cfg)
	p.client = c
	p.connected = c.IsConnected()
	return p
}

// Connect establishes the broker connection. The client reconnects on its
// own afterwards.
func (p *MQTTPublisher) Connect(ctx context.Context) error {
	if p.client == nil {
		p.client = mqtt.NewClient(p.options())
	}

	debug.Verbose("MQTT: connecting to %s as %s", p.cfg.Broker, p.cfg.ClientID)
	token := p.client.Connect()
	if err := p.wait(ctx, token, p.cfg.ConnectTimeout); err != nil {
		return fmt.Errorf("mqtt connect %s: %w", p.cfg.Broker, err)
	}

	p.setConnected(true)
	return nil
}

func (p *MQTTPublisher) options() *mqtt.ClientOptions {
	opts := mqtt.NewClientOptions()
	opts.AddBroker(fmt.Sprintf("tcp://%s", p.cfg.Broker))
	opts.SetClientID(p.cfg.ClientID)
	if p.cfg.Username != "" {
		opts.SetUsername(p.cfg.Username)
		opts.SetPassword(p.cfg.Password)
	}
	opts.SetAutoReconnect(true)
	opts.SetConnectRetry(true)
	opts.SetConnectRetryInterval(2 * time.Second)
	opts.SetMaxReconnectInterval(30 * time.Second)

	opts.OnConnect = func(mqtt.Client) {
		p.setConnected(true)
		debug.Info("MQTT: connected to %s", p.cfg.Broker)
	}
	opts.OnConnectionLost = func(_ mqtt.Client, err error) {
		p.setConnected(false)
		debug.Info("MQTT: connection lost (%v), reconnecting", err)
	}
	return opts
}

// PublishFrame sends the JPEG bytes to <Topic>/frame.
func (p *MQTTPublisher) PublishFrame(ctx context.Context, jpeg []byte) error {
	payload := jpeg
	if p.cfg.Base64 {
		payload = make([]byte, base64.StdEncoding.EncodedLen(len(jpeg)))
		base64.StdEncoding.Encode(payload, jpeg)
	}
	return p.publish(ctx, p.cfg.Topic+"/frame", payload)
}

// PublishMeta sends a JSON document to <Topic>/meta.
func (p *MQTTPublisher) PublishMeta(ctx context.Context, doc []byte) error {
	return p.publish(ctx, p.cfg.Topic+"/meta", doc)
}

func (p *MQTTPublisher) publish(ctx context.Context, topic string, payload []byte) error {
	if !p.isConnected() {
		p.countError()
		return ErrNotConnected
	}

	token := p.client.Publish(topic, p.cfg.QoS, p.cfg.Retained, payload)
	if err := p.wait(ctx, token, p.cfg.PublishTimeout); err != nil {
		p.countError()
		return fmt.Errorf("publish %s: %w", topic, err)
	}

	p.mu.Lock()
	p.published[topic]++
	p.mu.Unlock()
	debug.Trace("MQTT: published %d bytes to %s", len(payload), topic)
	return nil
}

// wait blocks until the token completes, ctx ends or timeout elapses.
func (p *MQTTPublisher) wait(ctx context.Context, token mqtt.Token, timeout time.Duration) error {
	timer := time.NewTimer(timeout)
	defer timer.Stop()
	select {
	case <-token.Done():
		return token.Error()
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return fmt.Errorf("timeout after %v", timeout)
	}
}

// Disconnect closes the connection with a 250ms grace period.
func (p *MQTTPublisher) Disconnect() {
	if p.client != nil && p.client.IsConnected() {
		p.client.Disconnect(250)
		debug.Verbose("MQTT: disconnected")
	}
	p.setConnected(false)
}

// Stats contains publisher counters.
type Stats struct {
	Connected bool              `json:"connected"`
	Published map[string]uint64 `json:"published"`
	Errors    uint64            `json:"errors"`
}

// Stats returns a snapshot of the counters.
func (p *MQTTPublisher) Stats() Stats {
	p.mu.RLock()
	defer p.mu.RUnlock()

	published := make(map[string]uint64, len(p.published))
	for k, v := range p.published {
		published[k] = v
	}
	return Stats{Connected: p.connected, Published: published, Errors: p.errors}
}

func (p *MQTTPublisher) isConnected() bool {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.connected
}

func (p *MQTTPublisher) setConnected(v bool) {
	p.mu.Lock()
	p.connected = v
	p.mu.Unlock()
}

func (p *MQTTPublisher) countError() {
	p.mu.Lock()
	p.errors++
	p.mu.Unlock()
}
