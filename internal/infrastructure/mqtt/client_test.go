package mqtt

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"sync"
	"testing"

	"github.com/nerrad567/gray-logic-busdecode/internal/infrastructure/config"
)

// testConfig returns a valid MQTT configuration for testing.
func testConfig() config.MQTTConfig {
	return config.MQTTConfig{
		Enabled: true,
		Broker: config.MQTTBrokerConfig{
			Host:     "127.0.0.1",
			Port:     1883,
			ClientID: "busdecode-test",
		},
		QoS:         1,
		TopicPrefix: "busdecode",
		Reconnect: config.MQTTReconnectConfig{
			InitialDelay: 1,
			MaxDelay:     5,
		},
	}
}

type recordingLogger struct {
	mu    sync.Mutex
	warns []string
}

func (l *recordingLogger) Error(msg string, _ ...any) {}

func (l *recordingLogger) Warn(msg string, _ ...any) {
	l.mu.Lock()
	l.warns = append(l.warns, msg)
	l.mu.Unlock()
}

// =============================================================================
// Option Tests
// =============================================================================

func TestBuildClientOptions(t *testing.T) {
	tests := []struct {
		name       string
		tls        bool
		username   string
		wantBroker string
	}{
		{"plain tcp", false, "", "tcp://127.0.0.1:1883"},
		{"tls with auth", true, "decoder", "ssl://127.0.0.1:1883"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := testConfig()
			cfg.Broker.TLS = tt.tls
			cfg.Auth.Username = tt.username
			cfg.Auth.Password = "secret"

			opts := buildClientOptions(cfg)

			if len(opts.Servers) != 1 || opts.Servers[0].String() != tt.wantBroker {
				t.Fatalf("Servers = %v, want [%s]", opts.Servers, tt.wantBroker)
			}
			if opts.ClientID != "busdecode-test" {
				t.Errorf("ClientID = %q", opts.ClientID)
			}
			if tt.username == "" && opts.Username != "" {
				t.Errorf("Username = %q, want empty", opts.Username)
			}
			if tt.username != "" && (opts.Username != tt.username || opts.Password != "secret") {
				t.Errorf("credentials = %q/%q", opts.Username, opts.Password)
			}
			if tt.tls && (opts.TLSConfig == nil || opts.TLSConfig.MinVersion != tlsMinVersion) {
				t.Errorf("TLSConfig = %+v, want MinVersion TLS1.2", opts.TLSConfig)
			}
			if !opts.AutoReconnect || !opts.CleanSession {
				t.Errorf("AutoReconnect=%v CleanSession=%v, want both true", opts.AutoReconnect, opts.CleanSession)
			}
		})
	}
}

func TestConfigureLWT(t *testing.T) {
	opts := buildClientOptions(testConfig())
	configureLWT(opts, NewTopics("site-a/knx"), "busdecode-test")

	if !opts.WillEnabled || !opts.WillRetained || opts.WillQos != 1 {
		t.Errorf("will enabled=%v retained=%v qos=%d", opts.WillEnabled, opts.WillRetained, opts.WillQos)
	}
	if opts.WillTopic != "site-a/knx/system/status" {
		t.Errorf("WillTopic = %q", opts.WillTopic)
	}

	var msg statusMessage
	if err := json.Unmarshal(opts.WillPayload, &msg); err != nil {
		t.Fatalf("will payload is not JSON: %v", err)
	}
	if msg.Status != statusOffline || msg.Reason != reasonUnexpected || msg.ClientID != "busdecode-test" {
		t.Errorf("will payload = %+v", msg)
	}
}

func TestBuildStatusPayload(t *testing.T) {
	payload := buildStatusPayload("busdecode-test", statusOnline, "")
	if strings.Contains(string(payload), "reason") {
		t.Errorf("online payload carries a reason: %s", payload)
	}

	var msg statusMessage
	if err := json.Unmarshal(payload, &msg); err != nil {
		t.Fatalf("Unmarshal() error = %v", err)
	}
	if msg.Status != statusOnline || msg.Timestamp == "" {
		t.Errorf("payload = %+v", msg)
	}
}

// =============================================================================
// Topic Tests
// =============================================================================

func TestTopicBuilders(t *testing.T) {
	topics := NewTopics("busdecode/")

	tests := []struct {
		name string
		got  string
		want string
	}{
		{"Telegram", topics.Telegram("rx", "1%2F2%2F3"), "busdecode/telegram/rx/1%2F2%2F3"},
		{"Control", topics.Control("tx"), "busdecode/control/tx"},
		{"Stats", topics.Stats("rx"), "busdecode/stats/rx"},
		{"SystemStatus", topics.SystemStatus(), "busdecode/system/status"},
		{"AllTelegrams", topics.AllTelegrams(), "busdecode/telegram/#"},
		{"zero value", Topics{}.Control("rx"), "busdecode/control/rx"},
		{"empty prefix", NewTopics("").SystemStatus(), "busdecode/system/status"},
		{"custom prefix", NewTopics("home/knx").Telegram("tx", "1.1.5"), "home/knx/telegram/tx/1.1.5"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if tt.got != tt.want {
				t.Errorf("got %q, want %q", tt.got, tt.want)
			}
		})
	}
}

// =============================================================================
// Disconnected Client Tests
// =============================================================================

func TestPublishValidation(t *testing.T) {
	c := &Client{cfg: testConfig()}

	tests := []struct {
		name    string
		topic   string
		payload []byte
		qos     byte
		wantErr error
	}{
		{"empty topic", "", []byte("{}"), 1, ErrInvalidTopic},
		{"invalid qos", "busdecode/control/rx", []byte("{}"), 3, ErrInvalidQoS},
		{"oversized payload", "busdecode/control/rx", make([]byte, maxPayloadSize+1), 1, ErrPublishFailed},
		{"not connected", "busdecode/control/rx", []byte("{}"), 1, ErrNotConnected},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := c.Publish(tt.topic, tt.payload, tt.qos, false)
			if !errors.Is(err, tt.wantErr) {
				t.Errorf("Publish() error = %v, want %v", err, tt.wantErr)
			}
		})
	}
}

func TestPublishJSONMarshalError(t *testing.T) {
	c := &Client{cfg: testConfig()}

	err := c.PublishJSON("busdecode/control/rx", map[string]any{"bad": make(chan int)})
	if !errors.Is(err, ErrPublishFailed) {
		t.Errorf("PublishJSON() error = %v, want ErrPublishFailed", err)
	}
	if err := c.PublishRetained("busdecode/stats/rx", map[string]int{"telegrams": 1}); !errors.Is(err, ErrNotConnected) {
		t.Errorf("PublishRetained() error = %v, want ErrNotConnected", err)
	}
}

func TestCloseNil(t *testing.T) {
	c := &Client{}
	if err := c.Close(); err != nil {
		t.Errorf("Close() on unconnected client error = %v", err)
	}
}

func TestHealthCheck(t *testing.T) {
	c := &Client{}

	if err := c.HealthCheck(context.Background()); !errors.Is(err, ErrNotConnected) {
		t.Errorf("HealthCheck() error = %v, want ErrNotConnected", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if err := c.HealthCheck(ctx); !errors.Is(err, context.Canceled) {
		t.Errorf("HealthCheck() with cancelled context error = %v", err)
	}
}

func TestDisconnectCallback(t *testing.T) {
	c := &Client{connected: true}
	logger := &recordingLogger{}
	c.SetLogger(logger)

	var gotErr error
	c.SetOnDisconnect(func(err error) { gotErr = err })

	lost := errors.New("broker went away")
	c.handleDisconnect(lost)

	if c.IsConnected() {
		t.Error("IsConnected() = true after disconnect")
	}
	if !errors.Is(gotErr, lost) {
		t.Errorf("callback error = %v, want %v", gotErr, lost)
	}
	if len(logger.warns) != 1 || logger.warns[0] != "MQTT connection lost" {
		t.Errorf("warnings = %v", logger.warns)
	}
}

func TestResolveClientID(t *testing.T) {
	if got := resolveClientID("decoder-rx"); got != "decoder-rx" {
		t.Errorf("resolveClientID(configured) = %q", got)
	}

	a, b := resolveClientID(""), resolveClientID("")
	if !strings.HasPrefix(a, clientIDPrefix) || len(a) != len(clientIDPrefix)+8 {
		t.Errorf("resolveClientID(\"\") = %q, want %s + 8 hex digits", a, clientIDPrefix)
	}
	if a == b {
		t.Errorf("generated client IDs collide: %q", a)
	}
}
