package source

import (
	"context"
	"errors"
	"io"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"go.bug.st/serial"

	"github.com/nerrad567/gray-logic-busdecode/internal/knx"
)

// chunk is one scripted result of Read.
type chunk struct {
	data []byte
	err  error
}

// fakePort replays scripted reads, then returns io.EOF.
type fakePort struct {
	reads   []chunk
	closes  int
	timeout time.Duration
}

func (p *fakePort) Read(buf []byte) (int, error) {
	if len(p.reads) == 0 {
		return 0, io.EOF
	}
	c := p.reads[0]
	p.reads = p.reads[1:]
	return copy(buf, c.data), c.err
}

func (p *fakePort) Close() error {
	p.closes++
	return nil
}

func (p *fakePort) SetReadTimeout(timeout time.Duration) error {
	p.timeout = timeout
	return nil
}

// fakeClock returns the given offsets from base, one per call.
func fakeClock(base time.Time, offsets ...time.Duration) func() time.Time {
	return func() time.Time {
		if len(offsets) == 0 {
			return base
		}
		off := offsets[0]
		offsets = offsets[1:]
		return base.Add(off)
	}
}

// 11000 baud makes one character exactly 1ms.
var msPerChar = PortOptions{BaudRate: 11000}

func newTestSource(port *fakePort, offsets ...time.Duration) *SerialSource {
	base := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
	s := NewSerialSource(port, msPerChar)
	s.opened = base
	s.now = fakeClock(base, offsets...)
	return s
}

func TestSerialSourceTimestamps(t *testing.T) {
	port := &fakePort{reads: []chunk{
		{data: []byte{0xBC, 0x11, 0x05}},
		{},
		{data: []byte{0x0A, 0x03}},
	}}
	s := newTestSource(port, 10*time.Millisecond, 10500*time.Microsecond)

	if port.timeout != pollInterval {
		t.Errorf("read timeout = %v, want %v", port.timeout, pollInterval)
	}

	got, err := readAll(context.Background(), s)
	if err != nil {
		t.Fatalf("readAll() error = %v", err)
	}

	ms := time.Millisecond
	want := []knx.TimestampedByte{
		{Value: 0xBC, Start: 7 * ms, End: 8 * ms},
		{Value: 0x11, Start: 8 * ms, End: 9 * ms},
		{Value: 0x05, Start: 9 * ms, End: 10 * ms},
		// The second read overlaps the first, so it starts where that ended.
		{Value: 0x0A, Start: 10 * ms, End: 11 * ms},
		{Value: 0x03, Start: 11 * ms, End: 12 * ms},
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("bytes mismatch (-want +got):\n%s", diff)
	}
}

func TestSerialSourceReadError(t *testing.T) {
	broken := errors.New("device unplugged")
	port := &fakePort{reads: []chunk{
		{data: []byte{0x01}, err: broken},
		{err: broken},
	}}
	s := newTestSource(port, 5*time.Millisecond, 6*time.Millisecond)

	b, err := s.Next(context.Background())
	if err != nil || b.Value != 0x01 {
		t.Fatalf("Next() = %+v, %v; want the byte delivered with the error", b, err)
	}
	if _, err := s.Next(context.Background()); !errors.Is(err, ErrRead) || !errors.Is(err, broken) {
		t.Errorf("Next() error = %v, want ErrRead wrapping the port error", err)
	}
}

func TestSerialSourceCancelled(t *testing.T) {
	s := newTestSource(&fakePort{reads: []chunk{{}, {}, {}}})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := s.Next(ctx); !errors.Is(err, context.Canceled) {
		t.Errorf("Next() error = %v, want context.Canceled", err)
	}
}

func TestSerialSourceClose(t *testing.T) {
	port := &fakePort{}
	s := newTestSource(port)

	if err := s.Close(); err != nil {
		t.Fatalf("Close() error = %v", err)
	}
	if err := s.Close(); err != nil {
		t.Fatalf("second Close() error = %v", err)
	}
	if port.closes != 1 {
		t.Errorf("port closed %d times, want 1", port.closes)
	}
}

func TestPortOptionsNormalize(t *testing.T) {
	tests := []struct {
		name    string
		in      PortOptions
		want    PortOptions
		wantErr bool
	}{
		{"defaults are TP-UART", PortOptions{}, PortOptions{BaudRate: 19200, DataBits: 8, StopBits: 1, Parity: "E"}, false},
		{"long parity names", PortOptions{BaudRate: 9600, Parity: " none "}, PortOptions{BaudRate: 9600, DataBits: 8, StopBits: 1, Parity: "N"}, false},
		{"odd two stop bits", PortOptions{Parity: "odd", StopBits: 2}, PortOptions{BaudRate: 19200, DataBits: 8, StopBits: 2, Parity: "O"}, false},
		{"mark", PortOptions{Parity: "mark"}, PortOptions{BaudRate: 19200, DataBits: 8, StopBits: 1, Parity: "M"}, false},
		{"bad data bits", PortOptions{DataBits: 9}, PortOptions{}, true},
		{"bad stop bits", PortOptions{StopBits: 3}, PortOptions{}, true},
		{"bad parity", PortOptions{Parity: "X"}, PortOptions{}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := tt.in.Normalize()
			if tt.wantErr {
				if !errors.Is(err, ErrInvalidPortOptions) {
					t.Errorf("Normalize() error = %v, want ErrInvalidPortOptions", err)
				}
				return
			}
			if err != nil {
				t.Fatalf("Normalize() error = %v", err)
			}
			if got != tt.want {
				t.Errorf("Normalize() = %+v, want %+v", got, tt.want)
			}
		})
	}
}

func TestPortOptionsSerialMode(t *testing.T) {
	mode, err := PortOptions{}.SerialMode()
	if err != nil {
		t.Fatalf("SerialMode() error = %v", err)
	}
	want := serial.Mode{BaudRate: 19200, DataBits: 8, Parity: serial.EvenParity, StopBits: serial.OneStopBit}
	if *mode != want {
		t.Errorf("SerialMode() = %+v, want %+v", *mode, want)
	}

	mode, err = PortOptions{Parity: "S", StopBits: 2}.SerialMode()
	if err != nil {
		t.Fatalf("SerialMode() error = %v", err)
	}
	if mode.Parity != serial.SpaceParity || mode.StopBits != serial.TwoStopBits {
		t.Errorf("SerialMode() = %+v", *mode)
	}

	if _, err := (PortOptions{StopBits: 5}).SerialMode(); err == nil {
		t.Error("SerialMode() with 5 stop bits error = nil")
	}
}

func TestPortOptionsCharTime(t *testing.T) {
	if got := msPerChar.CharTime(); got != time.Millisecond {
		t.Errorf("CharTime() at 11000 baud = %v, want 1ms", got)
	}
	if got := (PortOptions{}).CharTime(); got != 572916*time.Nanosecond {
		t.Errorf("CharTime() at 19200 baud = %v", got)
	}
}
