package publish

import (
	"bytes"
	"context"
	"encoding/base64"
	"errors"
	"sync"
	"testing"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
)

// doneToken completes immediately with err.
type doneToken struct{ err error }

func (t doneToken) Wait() bool                     { return true }
func (t doneToken) WaitTimeout(time.Duration) bool { return true }
func (t doneToken) Error() error                   { return t.err }
func (t doneToken) Done() <-chan struct{} {
	ch := make(chan struct{})
	close(ch)
	return ch
}

// pendingToken never completes.
type pendingToken struct{}

func (pendingToken) Wait() bool                     { return false }
func (pendingToken) WaitTimeout(time.Duration) bool { return false }
func (pendingToken) Error() error                   { return nil }
func (pendingToken) Done() <-chan struct{}          { return make(chan struct{}) }

type message struct {
	topic    string
	qos      byte
	retained bool
	payload  []byte
}

// fakeClient records publishes. Unused Client methods panic via the nil
// embedded interface.
type fakeClient struct {
	mqtt.Client

	mu           sync.Mutex
	connected    bool
	connectErr   error
	publishErr   error
	hang         bool
	messages     []message
	disconnected bool
}

func (f *fakeClient) IsConnected() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.connected
}

func (f *fakeClient) Connect() mqtt.Token {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.connectErr == nil {
		f.connected = true
	}
	return doneToken{err: f.connectErr}
}

func (f *fakeClient) Disconnect(uint) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.connected = false
	f.disconnected = true
}

func (f *fakeClient) Publish(topic string, qos byte, retained bool, payload interface{}) mqtt.Token {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.hang {
		return pendingToken{}
	}
	f.messages = append(f.messages, message{topic, qos, retained, payload.([]byte)})
	return doneToken{err: f.publishErr}
}

func testConfig() Config {
	return Config{Broker: "localhost:1883", ClientID: "ardugo-test", Topic: "ardugo/cam0", QoS: 1}
}

func TestPublishBeforeConnect(t *testing.T) {
	p := NewMQTTPublisherWithClient(testConfig(), &fakeClient{})
	err := p.PublishFrame(context.Background(), []byte{0xFF, 0xD8})
	if !errors.Is(err, ErrNotConnected) {
		t.Fatalf("err = %v, want ErrNotConnected", err)
	}
	if p.Stats().Errors != 1 {
		t.Errorf("errors = %d, want 1", p.Stats().Errors)
	}
}

func TestConnectAndPublishFrame(t *testing.T) {
	c := &fakeClient{}
	p := NewMQTTPublisherWithClient(testConfig(), c)
	if err := p.Connect(context.Background()); err != nil {
		t.Fatalf("Connect: %v", err)
	}
	frame := []byte{0xFF, 0xD8, 0x01, 0xFF, 0xD9}
	if err := p.PublishFrame(context.Background(), frame); err != nil {
		t.Fatalf("PublishFrame: %v", err)
	}
	if err := p.PublishMeta(context.Background(), []byte(`{"seq":1}`)); err != nil {
		t.Fatalf("PublishMeta: %v", err)
	}

	if len(c.messages) != 2 {
		t.Fatalf("messages = %d, want 2", len(c.messages))
	}
	m := c.messages[0]
	if m.topic != "ardugo/cam0/frame" || m.qos != 1 || m.retained {
		t.Errorf("frame message = %+v", m)
	}
	if !bytes.Equal(m.payload, frame) {
		t.Errorf("payload = % x", m.payload)
	}
	if c.messages[1].topic != "ardugo/cam0/meta" {
		t.Errorf("meta topic = %s", c.messages[1].topic)
	}

	st := p.Stats()
	if !st.Connected || st.Published["ardugo/cam0/frame"] != 1 || st.Published["ardugo/cam0/meta"] != 1 {
		t.Errorf("stats = %+v", st)
	}
}

func TestPublishFrame_Base64(t *testing.T) {
	cfg := testConfig()
	cfg.Base64 = true
	c := &fakeClient{connected: true}
	p := NewMQTTPublisherWithClient(cfg, c)

	frame := []byte{0xFF, 0xD8, 0xFF, 0xD9}
	if err := p.PublishFrame(context.Background(), frame); err != nil {
		t.Fatalf("PublishFrame: %v", err)
	}
	if got := string(c.messages[0].payload); got != base64.StdEncoding.EncodeToString(frame) {
		t.Errorf("payload = %q", got)
	}
}

func TestConnectFailure(t *testing.T) {
	p := NewMQTTPublisherWithClient(testConfig(), &fakeClient{connectErr: errors.New("refused")})
	if err := p.Connect(context.Background()); err == nil {
		t.Fatal("expected connect error")
	}
	if p.Stats().Connected {
		t.Error("publisher should not report connected")
	}
}

func TestPublishErrorsAreCounted(t *testing.T) {
	c := &fakeClient{connected: true, publishErr: errors.New("broker rejected")}
	p := NewMQTTPublisherWithClient(testConfig(), c)

	if err := p.PublishFrame(context.Background(), []byte{0x00}); err == nil {
		t.Fatal("expected publish error")
	}
	if p.Stats().Errors != 1 {
		t.Errorf("errors = %d, want 1", p.Stats().Errors)
	}
}

func TestPublishTimeout(t *testing.T) {
	cfg := testConfig()
	cfg.PublishTimeout = 10 * time.Millisecond
	p := NewMQTTPublisherWithClient(cfg, &fakeClient{connected: true, hang: true})

	if err := p.PublishFrame(context.Background(), []byte{0x00}); err == nil {
		t.Fatal("expected timeout error")
	}
}

func TestPublishHonorsContext(t *testing.T) {
	cfg := testConfig()
	cfg.PublishTimeout = time.Minute
	p := NewMQTTPublisherWithClient(cfg, &fakeClient{connected: true, hang: true})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if err := p.PublishFrame(ctx, []byte{0x00}); !errors.Is(err, context.Canceled) {
		t.Errorf("err = %v, want context.Canceled", err)
	}
}

func TestDisconnect(t *testing.T) {
	c := &fakeClient{connected: true}
	p := NewMQTTPublisherWithClient(testConfig(), c)
	p.Disconnect()
	if !c.disconnected {
		t.Error("client Disconnect not called")
	}
	if p.Stats().Connected {
		t.Error("publisher still reports connected")
	}
}
