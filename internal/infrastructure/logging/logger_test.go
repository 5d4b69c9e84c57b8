package logging

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"os"
	"strings"
	"testing"

	"github.com/nerrad567/gray-logic-busdecode/internal/infrastructure/config"
)

func TestOutputFor(t *testing.T) {
	tests := []struct {
		name string
		want io.Writer
	}{
		{"stdout", os.Stdout},
		{"STDOUT", os.Stdout},
		{" stdout ", os.Stdout},
		{"stderr", os.Stderr},
		{"", os.Stderr},
		{"/var/log/busdecode.log", os.Stderr},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := outputFor(tt.name); got != tt.want {
				t.Errorf("outputFor(%q) = %v, want %v", tt.name, got, tt.want)
			}
		})
	}
}

func TestNew_UsesConfiguredLevel(t *testing.T) {
	logger := New(config.LoggingConfig{Level: "error", Format: "text", Output: "stderr"}, "1.0.0")

	if logger.Enabled(context.Background(), slog.LevelWarn) {
		t.Error("warn enabled at error level")
	}
	if !logger.Enabled(context.Background(), slog.LevelError) {
		t.Error("error not enabled at error level")
	}
}

func TestParseLevel(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		expected slog.Level
	}{
		{
			name:     "debug level",
			input:    "debug",
			expected: slog.LevelDebug,
		},
		{
			name:     "info level",
			input:    "info",
			expected: slog.LevelInfo,
		},
		{
			name:     "warn level",
			input:    "warn",
			expected: slog.LevelWarn,
		},
		{
			name:     "warning level",
			input:    "warning",
			expected: slog.LevelWarn,
		},
		{
			name:     "error level",
			input:    "error",
			expected: slog.LevelError,
		},
		{
			name:     "unknown defaults to info",
			input:    "unknown",
			expected: slog.LevelInfo,
		},
		{
			name:     "empty defaults to info",
			input:    "",
			expected: slog.LevelInfo,
		},
		{
			name:     "case insensitive",
			input:    "DEBUG",
			expected: slog.LevelDebug,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := parseLevel(tt.input)
			if result != tt.expected {
				t.Errorf("parseLevel(%q) = %v, want %v", tt.input, result, tt.expected)
			}
		})
	}
}

func TestDefault(t *testing.T) {
	logger := Default()

	if !logger.Enabled(context.Background(), slog.LevelInfo) {
		t.Error("Default() logger drops info")
	}
	if logger.Enabled(context.Background(), slog.LevelDebug) {
		t.Error("Default() logger enables debug")
	}
}

func TestLogger_OutputContainsDefaultFields(t *testing.T) {
	var buf bytes.Buffer

	logger := NewWithWriter(config.LoggingConfig{Level: "info", Format: "json"}, "test", &buf)
	logger.Info("test message", "key", "value")

	var logEntry map[string]interface{}
	if err := json.Unmarshal(buf.Bytes(), &logEntry); err != nil {
		t.Fatalf("failed to parse JSON output: %v", err)
	}

	if logEntry["service"] != "busdecode" {
		t.Errorf("expected service='busdecode', got %v", logEntry["service"])
	}

	if logEntry["version"] != "test" {
		t.Errorf("expected version='test', got %v", logEntry["version"])
	}

	if logEntry["msg"] != "test message" {
		t.Errorf("expected msg='test message', got %v", logEntry["msg"])
	}

	if logEntry["key"] != "value" {
		t.Errorf("expected key='value', got %v", logEntry["key"])
	}
}

func TestLogger_TextFormatAndLevel(t *testing.T) {
	var buf bytes.Buffer

	logger := NewWithWriter(config.LoggingConfig{Level: "warn", Format: "text"}, "1.0.0", &buf)
	logger.Info("dropped")
	logger.Warn("kept", "telegrams", 3)

	output := buf.String()
	if strings.Contains(output, "dropped") {
		t.Error("info entry written at warn level")
	}
	if !strings.Contains(output, "msg=kept") || !strings.Contains(output, "telegrams=3") {
		t.Errorf("unexpected text output: %q", output)
	}
}

func TestNewWithWriter_FormatFallsBackToJSON(t *testing.T) {
	var buf bytes.Buffer

	logger := NewWithWriter(config.LoggingConfig{Level: "debug", Format: "logfmt"}, "1.0.0", &buf)
	logger.Debug("telegram decoded", "destination", "1/2/3")

	var entry map[string]interface{}
	if err := json.Unmarshal(buf.Bytes(), &entry); err != nil {
		t.Fatalf("output is not JSON: %v (%q)", err, buf.String())
	}
	if entry["level"] != "DEBUG" || entry["destination"] != "1/2/3" {
		t.Errorf("unexpected entry: %v", entry)
	}
}

func TestNewWithWriter_IgnoresConfiguredOutput(t *testing.T) {
	var buf bytes.Buffer

	logger := NewWithWriter(config.LoggingConfig{Level: "info", Format: "text", Output: "stdout"}, "1.0.0", &buf)
	logger.Info("source opened")

	if !strings.Contains(buf.String(), "msg=\"source opened\"") {
		t.Errorf("entry not written to the given writer: %q", buf.String())
	}
}

func TestLogger_WithAddsAttributes(t *testing.T) {
	var buf bytes.Buffer

	logger := NewWithWriter(config.LoggingConfig{Level: "info", Format: "json"}, "1.0.0", &buf)
	logger.With("component", "recorder").Info("telegram stored")

	var entry map[string]interface{}
	if err := json.Unmarshal(buf.Bytes(), &entry); err != nil {
		t.Fatalf("failed to parse JSON output: %v", err)
	}
	if entry["component"] != "recorder" || entry["service"] != "busdecode" {
		t.Errorf("unexpected entry: %v", entry)
	}
}

func TestDiscard(t *testing.T) {
	logger := Discard()

	if logger.Enabled(context.Background(), slog.LevelWarn) {
		t.Error("Discard() logger enabled below error")
	}
	// Nothing to observe; this must simply not panic.
	logger.Error("nowhere", "bytes", 0)
}
