package knx

import "time"

// Single-byte control codes recognised at the start of a unit.
const (
	// ResetEvent is the inbound byte that, followed by BUSY, reports a busy bus.
	ResetEvent uint8 = 0

	// Outbound services.
	ResetCmd         uint8 = 1
	StateCmd         uint8 = 2
	BusyCmd          uint8 = 3
	QuitBusyCmd      uint8 = 4
	BusmonCmd        uint8 = 5
	AckInfo          uint8 = 16
	AckInfoAddressed uint8 = 17

	// AckConti is the inbound acknowledgement of a continued frame.
	AckConti uint8 = 139
)

// Framing constants.
const (
	// outboundBaseLength is header (7 bytes, each paired) plus marker and checksum.
	outboundBaseLength = 14 + 2

	// inboundBaseLength is header (7 bytes) plus checksum.
	inboundBaseLength = 7 + 1

	// outboundLengthOffset is the raw position of the routing field's second copy.
	outboundLengthOffset = 11

	// inboundLengthOffset is the raw position of the routing field.
	inboundLengthOffset = 5

	// lengthNibbleMask extracts the data length from the routing field.
	lengthNibbleMask = 0x0F
)

// outboundShortCommands maps outbound control codes to their labels.
var outboundShortCommands = map[uint8]string{
	ResetCmd:         "RESET",
	StateCmd:         "STATE",
	BusyCmd:          "BUSY",
	QuitBusyCmd:      "QUIT BUSY",
	BusmonCmd:        "BUS MON",
	AckInfo:          "ACK NO ADDR",
	AckInfoAddressed: "ACK ADDR",
}

// UnitKind distinguishes the two things an Assembler can emit.
type UnitKind int

const (
	// UnitShortCommand is a single-byte control code.
	UnitShortCommand UnitKind = iota

	// UnitTelegram is a complete buffered telegram.
	UnitTelegram
)

// Unit is a decoding unit emitted by the Assembler.
type Unit struct {
	Kind UnitKind

	// Label, Start and End are set for UnitShortCommand.
	Label string
	Start time.Duration
	End   time.Duration

	// Bytes holds the raw telegram for UnitTelegram. The slice is owned by
	// the caller.
	Bytes []TimestampedByte
}

// Assembler splits a byte stream into short commands and complete telegrams.
//
// It holds the state for exactly one stream and is not safe for concurrent
// use.
type Assembler struct {
	dir          Direction
	staleTimeout time.Duration

	buffered  []TimestampedByte
	prev      uint8
	hasPrev   bool
	byteCount int
	expected  int
	dataLen   int
	lastEnd   time.Duration
	abandoned int
}

// NewAssembler creates an Assembler for the given direction.
//
// Parameters:
//   - dir: Framing rules to apply
//   - staleTimeout: Maximum gap between bytes of one telegram (0 disables)
func NewAssembler(dir Direction, staleTimeout time.Duration) *Assembler {
	a := &Assembler{
		dir:          dir,
		staleTimeout: staleTimeout,
	}
	a.reset()
	return a
}

// Feed consumes one byte.
//
// Returns:
//   - Unit: The emitted unit, valid only when ok is true
//   - ok: True when the byte completed a short command or a telegram
func (a *Assembler) Feed(b TimestampedByte) (Unit, bool) {
	if a.isStale(b) {
		a.abandoned++
		a.reset()
	}
	a.lastEnd = b.End

	if label, ok := a.shortCommand(b.Value); ok {
		a.reset()
		return Unit{Kind: UnitShortCommand, Label: label, Start: b.Start, End: b.End}, true
	}

	a.buffered = append(a.buffered, b)

	switch {
	case a.dir == Outbound && a.byteCount == outboundLengthOffset:
		a.dataLen = int(b.Value & lengthNibbleMask)
		a.expected = outboundBaseLength + a.dataLen*2
	case a.dir == Inbound && a.byteCount == inboundLengthOffset:
		a.dataLen = int(b.Value & lengthNibbleMask)
		a.expected = inboundBaseLength + a.dataLen
	}

	if a.byteCount == a.expected-1 {
		unit := Unit{Kind: UnitTelegram, Bytes: a.buffered}
		a.buffered = nil
		a.reset()
		return unit, true
	}

	a.prev = b.Value
	a.hasPrev = true
	a.byteCount++
	return Unit{}, false
}

// shortCommand reports whether v, given the previous byte, is a control code.
func (a *Assembler) shortCommand(v uint8) (string, bool) {
	if a.dir == Outbound {
		if a.hasPrev {
			return "", false
		}
		label, ok := outboundShortCommands[v]
		return label, ok
	}

	if a.hasPrev && a.prev == ResetEvent && v == BusyCmd {
		return "BUSY", true
	}
	if !a.hasPrev && v == AckConti {
		return "ACK CONTI", true
	}
	return "", false
}

// isStale reports whether b arrives too long after the previous byte of a
// partially assembled unit.
func (a *Assembler) isStale(b TimestampedByte) bool {
	return a.staleTimeout > 0 && a.byteCount > 0 && b.Start-a.lastEnd > a.staleTimeout
}

// reset restarts assembly of a new unit.
func (a *Assembler) reset() {
	a.buffered = a.buffered[:0]
	a.hasPrev = false
	a.prev = 0
	a.byteCount = 0
	a.dataLen = 0
	a.expected = a.baseLength()
}

// baseLength returns the expected length before the nibble is read.
func (a *Assembler) baseLength() int {
	if a.dir == Outbound {
		return outboundBaseLength
	}
	return inboundBaseLength
}

// pendingStart returns the start time of the first buffered byte.
func (a *Assembler) pendingStart() time.Duration {
	if len(a.buffered) == 0 {
		return 0
	}
	return a.buffered[0].Start
}

// Direction returns the framing rules in use.
func (a *Assembler) Direction() Direction { return a.dir }

// ByteCount returns the number of bytes buffered for the current unit.
func (a *Assembler) ByteCount() int { return a.byteCount }

// ExpectedLength returns the raw length the current unit needs to complete.
func (a *Assembler) ExpectedLength() int { return a.expected }

// DataLength returns the length nibble read for the current unit (0 until read).
func (a *Assembler) DataLength() int { return a.dataLen }

// Abandoned returns how many partial units were discarded as stale.
func (a *Assembler) Abandoned() int { return a.abandoned }
