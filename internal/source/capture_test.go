package source

import (
	"context"
	"errors"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"

	"github.com/nerrad567/gray-logic-busdecode/internal/infrastructure/config"
	"github.com/nerrad567/gray-logic-busdecode/internal/knx"
)

const analyzerExport = `name,type,start_time,duration,data
Async Serial,data,0.0001,0.00052,0xBC
Async Serial,error,0.0008,0.00052,
Async Serial,data,0.0015,0.00052,17
Async Serial,data,0.0021,0.00052,0x0a
`

func TestCaptureSource(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  []knx.TimestampedByte
	}{
		{
			name:  "start and duration with type column",
			input: analyzerExport,
			want: []knx.TimestampedByte{
				{Value: 0xBC, Start: 100 * time.Microsecond, End: 620 * time.Microsecond},
				{Value: 17, Start: 1500 * time.Microsecond, End: 2020 * time.Microsecond},
				{Value: 0x0A, Start: 2100 * time.Microsecond, End: 2620 * time.Microsecond},
			},
		},
		{
			name:  "start and end with value column",
			input: "Start_Time, End_Time, Value\n0.001,0.0015,0x03\n0.002,0.0025,\n0.003,0.0035,139\n",
			want: []knx.TimestampedByte{
				{Value: 0x03, Start: time.Millisecond, End: 1500 * time.Microsecond},
				{Value: 139, Start: 3 * time.Millisecond, End: 3500 * time.Microsecond},
			},
		},
		{
			name:  "byte order mark and header only",
			input: "\ufeffstart_time,duration,data\n",
			want:  nil,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			src, err := NewCaptureSource(strings.NewReader(tt.input))
			if err != nil {
				t.Fatalf("NewCaptureSource() error = %v", err)
			}
			defer src.Close() //nolint:errcheck // Test cleanup

			got, err := readAll(context.Background(), src)
			if err != nil {
				t.Fatalf("readAll() error = %v", err)
			}
			if diff := cmp.Diff(tt.want, got); diff != "" {
				t.Errorf("bytes mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestCaptureSourceHeaderErrors(t *testing.T) {
	tests := []struct {
		name  string
		input string
	}{
		{"empty", ""},
		{"no start", "end_time,data\n0.1,0x01\n"},
		{"no end or duration", "start_time,data\n0.1,0x01\n"},
		{"no data", "start_time,duration\n0.1,0.1\n"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewCaptureSource(strings.NewReader(tt.input))
			if !errors.Is(err, ErrMissingColumn) {
				t.Errorf("NewCaptureSource() error = %v, want ErrMissingColumn", err)
			}
		})
	}
}

func TestCaptureSourceRowErrors(t *testing.T) {
	tests := []struct {
		name string
		row  string
	}{
		{"bad hex", "0.1,0.1,0xZZ"},
		{"out of range", "0.1,0.1,256"},
		{"bad start", "soon,0.1,0x01"},
		{"bad duration", "0.1,NaN,0x01"},
		{"short row", "0.1"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			src, err := NewCaptureSource(strings.NewReader("start_time,duration,data\n" + tt.row + "\n"))
			if err != nil {
				t.Fatalf("NewCaptureSource() error = %v", err)
			}
			_, err = src.Next(context.Background())
			if tt.name == "short row" {
				// A row without a data cell carries no byte.
				if !errors.Is(err, io.EOF) {
					t.Errorf("Next() error = %v, want io.EOF", err)
				}
				return
			}
			if !errors.Is(err, ErrInvalidRow) {
				t.Errorf("Next() error = %v, want ErrInvalidRow", err)
			}
		})
	}
}

func TestCaptureSourceCancelled(t *testing.T) {
	src, err := NewCaptureSource(strings.NewReader(analyzerExport))
	if err != nil {
		t.Fatalf("NewCaptureSource() error = %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := src.Next(ctx); !errors.Is(err, context.Canceled) {
		t.Errorf("Next() error = %v, want context.Canceled", err)
	}
}

func TestOpen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "capture.csv")
	if err := os.WriteFile(path, []byte(analyzerExport), 0o600); err != nil {
		t.Fatalf("WriteFile() error = %v", err)
	}

	src, err := Open(config.SourceConfig{Type: TypeCapture, Capture: config.CaptureSourceConfig{Path: path}})
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	got, err := readAll(context.Background(), src)
	if err != nil || len(got) != 3 {
		t.Errorf("readAll() = %d bytes, %v; want 3", len(got), err)
	}
	if err := src.Close(); err != nil {
		t.Errorf("Close() error = %v", err)
	}

	if _, err := Open(config.SourceConfig{Type: "pcap"}); !errors.Is(err, ErrUnsupportedType) {
		t.Errorf("Open(pcap) error = %v, want ErrUnsupportedType", err)
	}
	if _, err := Open(config.SourceConfig{Type: TypeCapture, Capture: config.CaptureSourceConfig{Path: path + ".missing"}}); err == nil {
		t.Error("Open() of a missing capture error = nil")
	}
	_, err = Open(config.SourceConfig{Type: TypeSerial, Serial: config.SerialSourceConfig{Port: "/dev/null", DataBits: 9}})
	if !errors.Is(err, ErrInvalidPortOptions) {
		t.Errorf("Open(serial, 9 data bits) error = %v, want ErrInvalidPortOptions", err)
	}
}
