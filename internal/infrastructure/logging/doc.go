// Package logging provides structured logging for the bus decoder.
//
// This package wraps Go's standard log/slog package to provide
// consistent, structured logging across the application.
//
// # Features
//
//   - JSON output for production (machine-parsable)
//   - Text output for development (human-readable)
//   - Default fields (service, version) on all log entries
//   - Level-based filtering (debug, info, warn, error)
//   - Thread-safe for concurrent use
//
// # Configuration
//
// Logging is configured via the LoggingConfig in the config file:
//
//	logging:
//	  level: "info"      # debug, info, warn, error
//	  format: "json"     # json, text
//	  output: "stderr"   # stdout, stderr
//
// Decoded output is written to stdout, so logs go to stderr unless
// configured otherwise.
//
// # Usage
//
//	logger := logging.New(cfg.Logging, "1.0.0")
//	logger.Info("source opened", "port", "/dev/ttyAMA0")
//	logger.Error("failed to connect", "error", err)
//
// # Security
//
// Never log MQTT passwords or InfluxDB tokens.
package logging
