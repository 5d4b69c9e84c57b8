package knx

import (
	"fmt"
	"strings"
	"time"
)

// TimestampedByte is one byte delivered by the underlying signal decoder.
//
// Start and End are offsets from the start of the capture. They are carried
// through to every event so rendered annotations line up with the waveform.
type TimestampedByte struct {
	Value uint8
	Start time.Duration
	End   time.Duration
}

// Direction selects which framing rules apply to a stream.
type Direction int

const (
	// Outbound is traffic from the host to the transceiver (TX).
	Outbound Direction = iota

	// Inbound is traffic from the transceiver to the host (RX).
	Inbound
)

// String returns the short name used in config files and topics.
func (d Direction) String() string {
	switch d {
	case Outbound:
		return "tx"
	case Inbound:
		return "rx"
	default:
		return fmt.Sprintf("Direction(%d)", int(d))
	}
}

// ParseDirection parses "tx"/"outbound" or "rx"/"inbound" (case-insensitive).
func ParseDirection(s string) (Direction, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "tx", "outbound":
		return Outbound, nil
	case "rx", "inbound":
		return Inbound, nil
	default:
		return 0, fmt.Errorf("%w: %q (expected tx or rx)", ErrInvalidDirection, s)
	}
}

// AddressingMode selects how group destination addresses are shown.
type AddressingMode int

const (
	// ThreeLevel renders group addresses as main/middle/sub.
	ThreeLevel AddressingMode = iota

	// TwoLevel renders group addresses as main/sub.
	TwoLevel
)

// String returns the name used in config files.
func (m AddressingMode) String() string {
	switch m {
	case ThreeLevel:
		return "three_level"
	case TwoLevel:
		return "two_level"
	default:
		return fmt.Sprintf("AddressingMode(%d)", int(m))
	}
}

// ParseAddressingMode parses "three_level"/"3" or "two_level"/"2".
func ParseAddressingMode(s string) (AddressingMode, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "three_level", "three-level", "3":
		return ThreeLevel, nil
	case "two_level", "two-level", "2":
		return TwoLevel, nil
	default:
		return 0, fmt.Errorf("%w: %q (expected three_level or two_level)", ErrInvalidAddressingMode, s)
	}
}

// Options is the fixed per-session decoder configuration.
type Options struct {
	Direction      Direction
	AddressingMode AddressingMode

	// StaleTimeout discards a partially assembled telegram when the gap
	// between two consecutive bytes exceeds it. Zero disables the check.
	StaleTimeout time.Duration
}
