package source

import (
	"context"
	"fmt"
	"io"
	"strings"
	"sync"
	"time"

	"go.bug.st/serial"

	"github.com/nerrad567/gray-logic-busdecode/internal/knx"
)

// TP-UART line settings.
const (
	defaultBaudRate = 19200
	defaultDataBits = 8
	defaultStopBits = 1
	defaultParity   = "E"

	// bitsPerChar is start + 8 data + parity + stop.
	bitsPerChar = 11

	// pollInterval bounds how long a read blocks before ctx is rechecked.
	pollInterval = 100 * time.Millisecond

	readBufferSize = 64
)

// PortOptions describes the serial connection parameters.
type PortOptions struct {
	BaudRate int    `json:"baud_rate"`
	DataBits int    `json:"data_bits"`
	StopBits int    `json:"stop_bits"`
	Parity   string `json:"parity"`
}

// Normalize validates the options and applies TP-UART defaults for unset
// values. Parity is reduced to one of N, E, O, M or S.
func (o PortOptions) Normalize() (PortOptions, error) {
	opts := o

	if opts.BaudRate <= 0 {
		opts.BaudRate = defaultBaudRate
	}

	if opts.DataBits == 0 {
		opts.DataBits = defaultDataBits
	}
	if opts.DataBits < 5 || opts.DataBits > 8 {
		return opts, fmt.Errorf("%w: data bits %d must be between 5 and 8", ErrInvalidPortOptions, opts.DataBits)
	}

	if opts.StopBits == 0 {
		opts.StopBits = defaultStopBits
	}
	if opts.StopBits != 1 && opts.StopBits != 2 {
		return opts, fmt.Errorf("%w: stop bits %d must be 1 or 2", ErrInvalidPortOptions, opts.StopBits)
	}

	parity := strings.TrimSpace(strings.ToUpper(opts.Parity))
	if parity == "" {
		parity = defaultParity
	}

	switch parity {
	case "N", "NONE":
		parity = "N"
	case "E", "EVEN":
		parity = "E"
	case "O", "ODD":
		parity = "O"
	case "M", "MARK":
		parity = "M"
	case "S", "SPACE":
		parity = "S"
	default:
		return opts, fmt.Errorf("%w: parity %q (expected N, E, O, M or S)", ErrInvalidPortOptions, opts.Parity)
	}

	opts.Parity = parity
	return opts, nil
}

// SerialMode converts the options into the go.bug.st/serial mode.
func (o PortOptions) SerialMode() (*serial.Mode, error) {
	opts, err := o.Normalize()
	if err != nil {
		return nil, err
	}

	mode := &serial.Mode{
		BaudRate: opts.BaudRate,
		DataBits: opts.DataBits,
		StopBits: serial.OneStopBit,
	}
	if opts.StopBits == 2 {
		mode.StopBits = serial.TwoStopBits
	}

	switch opts.Parity {
	case "N":
		mode.Parity = serial.NoParity
	case "E":
		mode.Parity = serial.EvenParity
	case "O":
		mode.Parity = serial.OddParity
	case "M":
		mode.Parity = serial.MarkParity
	case "S":
		mode.Parity = serial.SpaceParity
	}

	return mode, nil
}

// CharTime is the duration of one character on the wire.
func (o PortOptions) CharTime() time.Duration {
	opts, err := o.Normalize()
	if err != nil {
		opts.BaudRate = defaultBaudRate
	}
	return time.Duration(bitsPerChar) * time.Second / time.Duration(opts.BaudRate)
}

// Port is the minimal interface needed from a serial port.
type Port interface {
	io.Reader
	io.Closer
}

// timeoutPort is implemented by ports that support read timeouts.
type timeoutPort interface {
	SetReadTimeout(timeout time.Duration) error
}

// SerialSource timestamps bytes read from a serial port.
//
// Times are offsets from when the source was created. All bytes returned
// by one read are taken to have arrived back to back, one character time
// apart, ending at the moment the read returned.
type SerialSource struct {
	port     Port
	charTime time.Duration
	now      func() time.Time
	opened   time.Time

	buf     []byte
	pending []knx.TimestampedByte
	lastEnd time.Duration

	closeOnce sync.Once
	closeErr  error
}

// OpenSerial opens the port at path with opts.
//
// Parameters:
//   - path: Device path such as /dev/ttyAMA0
//   - opts: Line settings; zero values use TP-UART defaults (19200 8E1)
//
// Returns:
//   - *SerialSource: Ready to read
//   - error: ErrInvalidPortOptions, or the error from opening the port
func OpenSerial(path string, opts PortOptions) (*SerialSource, error) {
	mode, err := opts.SerialMode()
	if err != nil {
		return nil, err
	}

	port, err := serial.Open(path, mode)
	if err != nil {
		return nil, fmt.Errorf("opening serial port %s: %w", path, err)
	}

	return NewSerialSource(port, opts), nil
}

// NewSerialSource wraps an already open port. If the port supports read
// timeouts, reads are bounded so cancellation is noticed promptly.
func NewSerialSource(port Port, opts PortOptions) *SerialSource {
	if tp, ok := port.(timeoutPort); ok {
		_ = tp.SetReadTimeout(pollInterval) //nolint:errcheck // Falls back to blocking reads
	}
	s := &SerialSource{
		port:     port,
		charTime: opts.CharTime(),
		now:      time.Now,
		buf:      make([]byte, readBufferSize),
	}
	s.opened = s.now()
	return s
}

// Next returns the next byte from the port.
//
// A read that returns no data (a timeout) is retried after checking ctx.
func (s *SerialSource) Next(ctx context.Context) (knx.TimestampedByte, error) {
	for len(s.pending) == 0 {
		if err := ctx.Err(); err != nil {
			return knx.TimestampedByte{}, err
		}

		n, err := s.port.Read(s.buf)
		if n > 0 {
			s.stamp(s.buf[:n], s.now().Sub(s.opened))
		}
		if err != nil && len(s.pending) == 0 {
			if isEOF(err) {
				return knx.TimestampedByte{}, io.EOF
			}
			return knx.TimestampedByte{}, fmt.Errorf("%w: %w", ErrRead, err)
		}
	}

	b := s.pending[0]
	s.pending = s.pending[1:]
	return b, nil
}

// stamp assigns times to a batch of bytes that arrived by elapsed.
func (s *SerialSource) stamp(data []byte, elapsed time.Duration) {
	start := elapsed - time.Duration(len(data))*s.charTime
	if start < s.lastEnd {
		start = s.lastEnd
	}
	for _, v := range data {
		end := start + s.charTime
		s.pending = append(s.pending, knx.TimestampedByte{Value: v, Start: start, End: end})
		start = end
	}
	s.lastEnd = start
}

// Close closes the port. Calling Close twice is safe.
func (s *SerialSource) Close() error {
	s.closeOnce.Do(func() {
		s.closeErr = s.port.Close()
	})
	return s.closeErr
}
