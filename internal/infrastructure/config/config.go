package config

import (
	"fmt"
	"os"
	"slices"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Accepted spellings for the decoder section, compared case-insensitively.
var (
	decoderDirections     = []string{"tx", "outbound", "rx", "inbound"}
	decoderAddressFormats = []string{"three_level", "three-level", "3", "two_level", "two-level", "2"}
)

// Config is the root configuration structure for the bus decoder.
// All configuration is loaded from YAML and can be overridden by environment variables.
type Config struct {
	Site      SiteConfig      `yaml:"site"`
	Decoder   DecoderConfig   `yaml:"decoder"`
	Source    SourceConfig    `yaml:"source"`
	Database  DatabaseConfig  `yaml:"database"`
	MQTT      MQTTConfig      `yaml:"mqtt"`
	InfluxDB  InfluxDBConfig  `yaml:"influxdb"`
	API       APIConfig       `yaml:"api"`
	WebSocket WebSocketConfig `yaml:"websocket"`
	Logging   LoggingConfig   `yaml:"logging"`
}

// SiteConfig identifies the installation being monitored.
type SiteConfig struct {
	ID   string `yaml:"id"`
	Name string `yaml:"name"`
}

// DecoderConfig contains the per-session decoder settings.
type DecoderConfig struct {
	// Direction is "tx" (host to transceiver) or "rx" (transceiver to host).
	Direction string `yaml:"direction"`

	// AddressFormat is "three_level" or "two_level" group addressing.
	AddressFormat string `yaml:"address_format"`

	// StaleTimeout discards a partial telegram after this inter-byte gap.
	// Zero disables the check.
	StaleTimeout time.Duration `yaml:"stale_timeout"`
}

// SourceConfig selects where bytes come from.
type SourceConfig struct {
	// Type is "serial" or "capture".
	Type    string              `yaml:"type"`
	Serial  SerialSourceConfig  `yaml:"serial"`
	Capture CaptureSourceConfig `yaml:"capture"`
}

// SerialSourceConfig contains serial port settings for a live TP-UART tap.
type SerialSourceConfig struct {
	Port     string `yaml:"port"`
	BaudRate int    `yaml:"baud_rate"`
	DataBits int    `yaml:"data_bits"`
	Parity   string `yaml:"parity"`
	StopBits int    `yaml:"stop_bits"`
}

// CaptureSourceConfig contains settings for replaying a logic-analyzer export.
type CaptureSourceConfig struct {
	Path string `yaml:"path"`
}

// DatabaseConfig contains SQLite database settings.
type DatabaseConfig struct {
	Enabled     bool   `yaml:"enabled"`
	Path        string `yaml:"path"`
	WALMode     bool   `yaml:"wal_mode"`
	BusyTimeout int    `yaml:"busy_timeout"`
}

// MQTTConfig contains MQTT broker connection settings.
type MQTTConfig struct {
	Enabled     bool                `yaml:"enabled"`
	Broker      MQTTBrokerConfig    `yaml:"broker"`
	Auth        MQTTAuthConfig      `yaml:"auth"`
	QoS         int                 `yaml:"qos"`
	TopicPrefix string              `yaml:"topic_prefix"`
	Reconnect   MQTTReconnectConfig `yaml:"reconnect"`
}

// MQTTBrokerConfig contains MQTT broker connection details.
type MQTTBrokerConfig struct {
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	TLS      bool   `yaml:"tls"`
	ClientID string `yaml:"client_id"`
}

// MQTTAuthConfig contains MQTT authentication credentials.
type MQTTAuthConfig struct {
	Username string `yaml:"username"`
	Password string `yaml:"password"`
}

// MQTTReconnectConfig contains MQTT reconnection settings.
type MQTTReconnectConfig struct {
	InitialDelay int `yaml:"initial_delay"`
	MaxDelay     int `yaml:"max_delay"`
	MaxAttempts  int `yaml:"max_attempts"`
}

// InfluxDBConfig contains InfluxDB connection settings.
type InfluxDBConfig struct {
	Enabled       bool   `yaml:"enabled"`
	URL           string `yaml:"url"`
	Token         string `yaml:"token"`
	Org           string `yaml:"org"`
	Bucket        string `yaml:"bucket"`
	BatchSize     int    `yaml:"batch_size"`
	FlushInterval int    `yaml:"flush_interval"`
}

// APIConfig contains HTTP API server settings.
type APIConfig struct {
	Enabled  bool             `yaml:"enabled"`
	Host     string           `yaml:"host"`
	Port     int              `yaml:"port"`
	TLS      TLSConfig        `yaml:"tls"`
	Timeouts APITimeoutConfig `yaml:"timeouts"`
	CORS     CORSConfig       `yaml:"cors"`
}

// TLSConfig contains TLS certificate settings.
type TLSConfig struct {
	Enabled  bool   `yaml:"enabled"`
	CertFile string `yaml:"cert_file"`
	KeyFile  string `yaml:"key_file"`
}

// APITimeoutConfig contains HTTP timeout settings (seconds).
type APITimeoutConfig struct {
	Read  int `yaml:"read"`
	Write int `yaml:"write"`
	Idle  int `yaml:"idle"`
}

// CORSConfig contains Cross-Origin Resource Sharing settings.
type CORSConfig struct {
	AllowedOrigins []string `yaml:"allowed_origins"`
}

// WebSocketConfig contains settings for the live telegram stream.
type WebSocketConfig struct {
	MaxMessageSize int `yaml:"max_message_size"`
	PingInterval   int `yaml:"ping_interval"`
	PongTimeout    int `yaml:"pong_timeout"`
}

// LoggingConfig contains logging settings.
type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
	Output string `yaml:"output"`
}

// Load reads configuration from a YAML file and applies environment variable overrides.
//
// The configuration loading order is:
//  1. Default values (hardcoded)
//  2. YAML file values (override defaults)
//  3. Environment variables (override file values)
//
// Environment variables follow the pattern: BUSDECODE_SECTION_KEY
// For example: BUSDECODE_DECODER_DIRECTION, BUSDECODE_SERIAL_PORT
//
// An empty path skips the file and loads defaults plus environment.
//
// Parameters:
//   - path: Path to the YAML configuration file
//
// Returns:
//   - *Config: Loaded and validated configuration
//   - error: If file cannot be read, parsed, or validation fails
func Load(path string) (*Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("reading config file: %w", err)
		}

		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parsing config file: %w", err)
		}
	}

	if err := applyEnvOverrides(cfg); err != nil {
		return nil, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}

	return cfg, nil
}

// Default returns a Config with sensible defaults.
//
// The serial defaults match a TP-UART transceiver: 19200 baud, 8 data bits,
// even parity, 1 stop bit.
func Default() *Config {
	return &Config{
		Site: SiteConfig{
			ID:   "site-001",
			Name: "KNX bus",
		},
		Decoder: DecoderConfig{
			Direction:     "rx",
			AddressFormat: "three_level",
		},
		Source: SourceConfig{
			Type: "serial",
			Serial: SerialSourceConfig{
				Port:     "/dev/ttyAMA0",
				BaudRate: 19200,
				DataBits: 8,
				Parity:   "even",
				StopBits: 1,
			},
		},
		Database: DatabaseConfig{
			Path:        "./data/busdecode.db",
			WALMode:     true,
			BusyTimeout: 5,
		},
		MQTT: MQTTConfig{
			Broker: MQTTBrokerConfig{
				Host:     "localhost",
				Port:     1883,
				ClientID: "busdecode",
			},
			QoS:         1,
			TopicPrefix: "busdecode",
			Reconnect: MQTTReconnectConfig{
				InitialDelay: 1,
				MaxDelay:     60,
				MaxAttempts:  0,
			},
		},
		InfluxDB: InfluxDBConfig{
			URL:           "http://localhost:8086",
			Org:           "busdecode",
			Bucket:        "knx",
			BatchSize:     100,
			FlushInterval: 10,
		},
		API: APIConfig{
			Host: "127.0.0.1",
			Port: 8080,
			Timeouts: APITimeoutConfig{
				Read:  30,
				Write: 30,
				Idle:  60,
			},
		},
		WebSocket: WebSocketConfig{
			MaxMessageSize: 8192,
			PingInterval:   30,
			PongTimeout:    10,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
			Output: "stderr",
		},
	}
}

// applyEnvOverrides applies environment variable overrides to the configuration.
// Environment variables follow the pattern: BUSDECODE_SECTION_KEY
func applyEnvOverrides(cfg *Config) error {
	// Decoder
	if v := os.Getenv("BUSDECODE_DECODER_DIRECTION"); v != "" {
		cfg.Decoder.Direction = v
	}
	if v := os.Getenv("BUSDECODE_DECODER_ADDRESS_FORMAT"); v != "" {
		cfg.Decoder.AddressFormat = v
	}
	if v := os.Getenv("BUSDECODE_DECODER_STALE_TIMEOUT"); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			return fmt.Errorf("parsing BUSDECODE_DECODER_STALE_TIMEOUT: %w", err)
		}
		cfg.Decoder.StaleTimeout = d
	}

	// Source
	if v := os.Getenv("BUSDECODE_SOURCE_TYPE"); v != "" {
		cfg.Source.Type = v
	}
	if v := os.Getenv("BUSDECODE_SERIAL_PORT"); v != "" {
		cfg.Source.Serial.Port = v
	}
	if v := os.Getenv("BUSDECODE_SERIAL_BAUD_RATE"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("parsing BUSDECODE_SERIAL_BAUD_RATE: %w", err)
		}
		cfg.Source.Serial.BaudRate = n
	}
	if v := os.Getenv("BUSDECODE_CAPTURE_PATH"); v != "" {
		cfg.Source.Capture.Path = v
	}

	// Database
	if v := os.Getenv("BUSDECODE_DATABASE_PATH"); v != "" {
		cfg.Database.Path = v
	}

	// MQTT
	if v := os.Getenv("BUSDECODE_MQTT_HOST"); v != "" {
		cfg.MQTT.Broker.Host = v
	}
	if v := os.Getenv("BUSDECODE_MQTT_USERNAME"); v != "" {
		cfg.MQTT.Auth.Username = v
	}
	if v := os.Getenv("BUSDECODE_MQTT_PASSWORD"); v != "" {
		cfg.MQTT.Auth.Password = v
	}

	// InfluxDB
	if v := os.Getenv("BUSDECODE_INFLUXDB_URL"); v != "" {
		cfg.InfluxDB.URL = v
	}
	if v := os.Getenv("BUSDECODE_INFLUXDB_TOKEN"); v != "" {
		cfg.InfluxDB.Token = v
	}

	// API
	if v := os.Getenv("BUSDECODE_API_HOST"); v != "" {
		cfg.API.Host = v
	}
	if v := os.Getenv("BUSDECODE_API_PORT"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("parsing BUSDECODE_API_PORT: %w", err)
		}
		cfg.API.Port = n
	}

	return nil
}

// Validate checks the configuration for errors.
//
// Returns:
//   - error: Description of every validation failure, or nil if valid
func (c *Config) Validate() error {
	var errs []string

	if c.Site.ID == "" {
		errs = append(errs, "site.id is required")
	}

	// Decoder validation
	if !oneOf(c.Decoder.Direction, decoderDirections) {
		errs = append(errs, "decoder.direction must be tx or rx")
	}
	if !oneOf(c.Decoder.AddressFormat, decoderAddressFormats) {
		errs = append(errs, "decoder.address_format must be three_level or two_level")
	}
	if c.Decoder.StaleTimeout < 0 {
		errs = append(errs, "decoder.stale_timeout must not be negative")
	}

	// Source validation
	switch c.Source.Type {
	case "serial":
		errs = append(errs, c.Source.Serial.validate()...)
	case "capture":
		if c.Source.Capture.Path == "" {
			errs = append(errs, "source.capture.path is required for capture sources")
		}
	default:
		errs = append(errs, "source.type must be serial or capture")
	}

	// Database validation
	if c.Database.Enabled && c.Database.Path == "" {
		errs = append(errs, "database.path is required")
	}

	// MQTT validation
	if c.MQTT.QoS < 0 || c.MQTT.QoS > 2 {
		errs = append(errs, "mqtt.qos must be 0, 1, or 2")
	}
	if c.MQTT.Enabled && c.MQTT.TopicPrefix == "" {
		errs = append(errs, "mqtt.topic_prefix is required")
	}

	// InfluxDB validation
	if c.InfluxDB.Enabled {
		if c.InfluxDB.URL == "" {
			errs = append(errs, "influxdb.url is required")
		}
		if c.InfluxDB.Bucket == "" {
			errs = append(errs, "influxdb.bucket is required")
		}
	}

	// API validation
	if c.API.Enabled {
		if c.API.Port < 0 || c.API.Port > 65535 {
			errs = append(errs, "api.port must be between 0 and 65535")
		}
		if c.API.TLS.Enabled && (c.API.TLS.CertFile == "" || c.API.TLS.KeyFile == "") {
			errs = append(errs, "api.tls.cert_file and api.tls.key_file are required when TLS is enabled")
		}
	}

	if len(errs) > 0 {
		return fmt.Errorf("configuration errors: %s", strings.Join(errs, "; "))
	}

	return nil
}

// validate checks serial port settings.
func (s SerialSourceConfig) validate() []string {
	var errs []string
	if s.Port == "" {
		errs = append(errs, "source.serial.port is required for serial sources")
	}
	if s.BaudRate <= 0 {
		errs = append(errs, "source.serial.baud_rate must be positive")
	}
	if s.DataBits != 0 && (s.DataBits < 5 || s.DataBits > 8) {
		errs = append(errs, "source.serial.data_bits must be between 5 and 8")
	}
	switch strings.ToLower(s.Parity) {
	case "", "none", "odd", "even", "mark", "space":
	default:
		errs = append(errs, "source.serial.parity must be none, odd, even, mark or space")
	}
	if s.StopBits != 0 && s.StopBits != 1 && s.StopBits != 2 {
		errs = append(errs, "source.serial.stop_bits must be 1 or 2")
	}
	return errs
}

// oneOf reports whether v, trimmed and lower-cased, is in allowed.
func oneOf(v string, allowed []string) bool {
	return slices.Contains(allowed, strings.ToLower(strings.TrimSpace(v)))
}
