// Package source delivers timestamped bytes to the decoder.
//
// Two sources are provided:
//   - CaptureSource replays an async-serial CSV export from a logic analyzer
//   - SerialSource reads a live TP-UART tap through a serial port
//
// Both implement Source and return io.EOF when the stream ends.
package source

import (
	"context"
	"fmt"
	"os"

	"github.com/nerrad567/gray-logic-busdecode/internal/infrastructure/config"
	"github.com/nerrad567/gray-logic-busdecode/internal/knx"
)

// Source types accepted in config.
const (
	TypeSerial  = "serial"
	TypeCapture = "capture"
)

// Source produces bytes in arrival order.
type Source interface {
	// Next blocks until the next byte is available. It returns io.EOF at
	// the end of the stream and ctx.Err() when ctx is cancelled.
	Next(ctx context.Context) (knx.TimestampedByte, error)

	// Close releases the underlying file or port.
	Close() error
}

// Open creates the source described by cfg.
//
// Parameters:
//   - cfg: Source section of the configuration
//
// Returns:
//   - Source: Ready to read
//   - error: ErrUnsupportedType, or an error opening the file or port
func Open(cfg config.SourceConfig) (Source, error) {
	switch cfg.Type {
	case TypeCapture:
		return OpenCapture(cfg.Capture.Path)
	case TypeSerial:
		opts := PortOptions{
			BaudRate: cfg.Serial.BaudRate,
			DataBits: cfg.Serial.DataBits,
			StopBits: cfg.Serial.StopBits,
			Parity:   cfg.Serial.Parity,
		}
		return OpenSerial(cfg.Serial.Port, opts)
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnsupportedType, cfg.Type)
	}
}

// OpenCapture opens a CSV capture file.
func OpenCapture(path string) (*CaptureSource, error) {
	f, err := os.Open(path) //nolint:gosec // path comes from trusted config or CLI
	if err != nil {
		return nil, fmt.Errorf("opening capture: %w", err)
	}
	src, err := NewCaptureSource(f)
	if err != nil {
		f.Close() //nolint:errcheck // Best effort cleanup on error path
		return nil, err
	}
	src.closer = f
	return src, nil
}
