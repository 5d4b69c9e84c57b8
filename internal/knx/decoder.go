package knx

import (
	"fmt"
	"strings"
	"time"
)

// Telegram field offsets on the de-interleaved view.
const (
	offControl   = 0
	offSourceHi  = 1
	offSourceLo  = 2
	offDestHi    = 3
	offDestLo    = 4
	offRouting   = 5
	offCommand   = 6
	offData      = 7
	offExtraData = 8

	// headerLength is control + source(2) + destination(2) + routing + command.
	headerLength = 7
)

// Checksum constants.
const (
	bccSeed       uint8 = 0xFF
	dataEndMarker uint8 = 0x40
)

// Communication types (top two bits of the command byte).
const (
	unnumberedDataPacket  = 0b00
	numberedDataPacket    = 0b01
	unnumberedControlData = 0b10
	numberedControlData   = 0b11
)

// Data length values with a dedicated payload rendering.
const (
	dataLenNone   = 0
	dataLenShort  = 1
	dataLenBytes  = 2
	dataLenUint16 = 3
	dataLenUint24 = 4
	dataLenUint32 = 5
	dataLenString = 15

	shortDataMask = 0x3F
)

// commandNames maps the 4-bit application command code to its label.
var commandNames = [16]string{
	"VAL READ",
	"VAL RESPONSE",
	"VAL WRITE",
	"IND ADDR WRITE",
	"IND ADDR REQUEST",
	"IND ADDR RESPONSE",
	"ADC READ",
	"ADC RESPONSE",
	"MEM READ",
	"MEM RESPONSE",
	"MEM WRITE",
	"USER MESSAGE",
	"MASK READ",
	"MASK RESPONSE",
	"RESTART",
	"ESCAPE",
}

// CommandName returns the label for a 4-bit application command code.
func CommandName(code int) string {
	if code < 0 || code >= len(commandNames) {
		return "UNKNOWN"
	}
	return commandNames[code]
}

// Checksum verdict labels.
const (
	CRCCorrect    = "CRC correct"
	CRCNotCorrect = "CRC not correct"
)

// Telegram is the structured summary of one decoded telegram.
type Telegram struct {
	Direction Direction
	Start     time.Duration
	End       time.Duration

	// Control is the raw control field.
	Control uint8

	// Source is the sender's individual address.
	Source IndividualAddress

	// Destination is the destination as rendered ("1.1.5", "1/2/3" or "1/515").
	Destination string

	// IsGroup is true when the routing field marks a group destination.
	IsGroup bool

	// DataLength is the routing field's length nibble.
	DataLength int

	// Command is the command or status label, empty when none applies.
	Command string

	// Payload holds the data bytes starting at the byte after the command field.
	Payload []byte

	// CRCValid is the checksum verdict.
	CRCValid bool

	// Raw holds the undecoded byte values as received.
	Raw []byte

	// Events is the ordered annotation list.
	Events []Event
}

// DecodeTelegram decodes one complete telegram as emitted by the Assembler.
//
// Outbound telegrams are de-interleaved first: real byte i takes its value
// and start time from raw[2i] and its end time from raw[2i+1]. The last two
// raw bytes are the end marker and checksum.
//
// Parameters:
//   - raw: Complete telegram bytes in arrival order
//   - opts: Direction and addressing mode of the session
//
// Returns:
//   - *Telegram: Structured summary with the ordered event list
//   - error: ErrMalformedTelegram if raw does not hold exactly the fields its
//     routing byte declares
func DecodeTelegram(raw []TimestampedByte, opts Options) (*Telegram, error) {
	view, fields, check, err := splitTelegram(raw, opts.Direction)
	if err != nil {
		return nil, err
	}

	if len(fields) < headerLength {
		return nil, fmt.Errorf("%w: %d header bytes, need %d", ErrMalformedTelegram, len(fields), headerLength)
	}

	routing := view[offRouting].Value
	isGroup := routing>>7 == 1
	dataLen := int(routing & lengthNibbleMask)
	// Outbound telegrams are sized from the echo copy of the routing byte,
	// so the two copies can disagree.
	if len(fields) != headerLength+dataLen {
		return nil, fmt.Errorf("%w: data length %d needs %d bytes, have %d",
			ErrMalformedTelegram, dataLen, headerLength+dataLen, len(fields))
	}

	t := &Telegram{
		Direction:  opts.Direction,
		Start:      raw[0].Start,
		End:        raw[len(raw)-1].End,
		Control:    view[offControl].Value,
		Source:     IndividualAddressFromBytes(view[offSourceHi].Value, view[offSourceLo].Value),
		IsGroup:    isGroup,
		DataLength: dataLen,
		Raw:        values(raw),
		Events:     make([]Event, 0, headerLength),
	}
	if dataLen > 0 {
		t.Payload = values(fields[offData : offData+dataLen])
	}

	t.Events = append(t.Events, commandEvent(controlText(t.Control), view[offControl].Start, view[offControl].End))

	t.Events = append(t.Events, Event{
		Start: view[offSourceHi].Start,
		End:   view[offSourceLo].End,
		Fields: SourceAddress{
			Area:   t.Source.Area,
			Line:   t.Source.Line,
			Device: t.Source.Device,
		},
	})

	dest, destText := destinationEvent(view, isGroup, opts.AddressingMode)
	t.Destination = destText
	t.Events = append(t.Events, dest)

	t.Events = append(t.Events, commandEvent(routingText(isGroup, dataLen), view[offRouting].Start, view[offRouting].End))

	label, ok, err := commandLabel(view, isGroup)
	if err != nil {
		return nil, err
	}
	if ok {
		t.Command = label
	}
	t.Events = appendCommandAndPayload(t.Events, view, label, ok, dataLen)

	t.CRCValid = checksumValid(fields, check, opts.Direction)
	verdict := CRCNotCorrect
	if t.CRCValid {
		verdict = CRCCorrect
	}
	t.Events = append(t.Events, commandEvent(verdict, check[0].Start, check[len(check)-1].End))

	return t, nil
}

// splitTelegram returns the indexable view, the field region (everything
// the checksum covers) and the checksum bytes.
//
// For inbound telegrams the view includes the checksum byte so a command
// code can be read at offset 7 even when no data follows.
func splitTelegram(raw []TimestampedByte, dir Direction) (view, fields, check []TimestampedByte, err error) {
	n := len(raw)

	if dir == Inbound {
		if n < 1 {
			return nil, nil, nil, fmt.Errorf("%w: empty telegram", ErrMalformedTelegram)
		}
		return raw, raw[:n-1], raw[n-1:], nil
	}

	if n < 2 || (n-2)%2 != 0 {
		return nil, nil, nil, fmt.Errorf("%w: outbound telegram has %d raw bytes, need an even count of at least 2",
			ErrMalformedTelegram, n)
	}

	folded := make([]TimestampedByte, (n-2)/2)
	for i := range folded {
		folded[i] = TimestampedByte{
			Value: raw[2*i].Value,
			Start: raw[2*i].Start,
			End:   raw[2*i+1].End,
		}
	}
	return folded, folded, raw[n-2:], nil
}

// controlText renders the control field.
func controlText(ctrl uint8) string {
	var parts [3]string

	switch ctrl >> 6 {
	case 0b00:
		parts[0] = "Extended length"
	case 0b10:
		parts[0] = "Standard length"
	default:
		parts[0] = "Pool data"
	}

	if (ctrl>>5)&1 == 0 {
		parts[1] = "Repeat"
	} else {
		parts[1] = "No Repeat"
	}

	switch (ctrl >> 2) & 0b11 {
	case 0b00:
		parts[2] = "System priority"
	case 0b01:
		parts[2] = "High priority"
	case 0b10:
		parts[2] = "Alarm priority"
	default:
		parts[2] = "Normal priority"
	}

	return strings.Join(parts[:], "/")
}

// destinationEvent decodes offsets 3-4 and returns the event plus the
// plain address text.
func destinationEvent(view []TimestampedByte, isGroup bool, mode AddressingMode) (Event, string) {
	hi, lo := view[offDestHi], view[offDestLo]

	if mode == TwoLevel && isGroup {
		ga := TwoLevelGroupAddressFromBytes(hi.Value, lo.Value)
		return Event{
			Start:  hi.Start,
			End:    lo.End,
			Fields: DestAddress2Level{Area: ga.Main, Device: ga.Sub},
		}, ga.String()
	}

	var d DestAddress3Level
	var text string
	if isGroup {
		ga := GroupAddressFromBytes(hi.Value, lo.Value)
		d = DestAddress3Level{Area: ga.Main, Line: ga.Middle, Device: ga.Sub, Separator: "/"}
		text = ga.String()
	} else {
		ia := IndividualAddressFromBytes(hi.Value, lo.Value)
		d = DestAddress3Level{Area: ia.Area, Line: ia.Line, Device: ia.Device, Separator: "."}
		text = ia.String()
	}
	d.Broadcast = d.Area == 0 && d.Line == 0 && d.Device == 0

	return Event{Start: hi.Start, End: lo.End, Fields: d}, text
}

// routingText renders the routing field.
func routingText(isGroup bool, dataLen int) string {
	target := "Individual"
	if isGroup {
		target = "Group"
	}
	return fmt.Sprintf("%s/len: %d", target, dataLen)
}

// commandLabel decodes the command field. ok is false for control data
// whose status code has no label.
func commandLabel(view []TimestampedByte, isGroup bool) (label string, ok bool, err error) {
	cmd := view[offCommand].Value
	commType := cmd >> 6
	status := cmd & 0b11

	if !isGroup {
		switch commType {
		case unnumberedControlData:
			switch status {
			case 0:
				return "STATUS: OPEN", true, nil
			case 1:
				return "STATUS: BROKEN", true, nil
			}
			return "", false, nil
		case numberedControlData:
			switch status {
			case 2:
				return "STATUS: CONFIRM", true, nil
			case 3:
				return "STATUS: FAULT", true, nil
			}
			return "", false, nil
		}
	}

	if len(view) <= offData {
		return "", false, fmt.Errorf("%w: command code needs byte %d, have %d bytes",
			ErrMalformedTelegram, offData, len(view))
	}
	code := int(status)<<2 | int(view[offData].Value>>6)
	return CommandName(code), true, nil
}

// appendCommandAndPayload appends the command event and any payload events.
// Bounds were checked by DecodeTelegram.
func appendCommandAndPayload(events []Event, view []TimestampedByte, label string, hasLabel bool, dataLen int) []Event {
	cmd := view[offCommand]

	if dataLen == dataLenNone {
		if hasLabel {
			events = append(events, commandEvent(label, cmd.Start, cmd.End))
		}
		return events
	}

	short := view[offData].Value & shortDataMask
	if dataLen == dataLenShort {
		label += fmt.Sprintf(" / Data: %d (0x%02X / bxx%06b)", short, short, short)
	} else {
		label += fmt.Sprintf(" / Data: %d", short)
	}
	if hasLabel {
		events = append(events, commandEvent(label, cmd.Start, view[offData].End))
	}

	extra := view[offExtraData : offData+dataLen]
	switch dataLen {
	case dataLenBytes:
		for _, b := range extra {
			events = append(events, commandEvent(fmt.Sprintf("%d", b.Value), b.Start, b.End))
		}
	case dataLenUint16, dataLenUint24, dataLenUint32:
		var v uint32
		for _, b := range extra {
			v = v<<8 | uint32(b.Value)
		}
		events = append(events, commandEvent(fmt.Sprintf("%d", v), extra[0].Start, extra[len(extra)-1].End))
	case dataLenString:
		for _, b := range extra {
			if b.Value != 0 {
				events = append(events, commandEvent(string(rune(b.Value)), b.Start, b.End))
			}
		}
	}
	// Lengths 6-14 carry no further rendering.

	return events
}

// checksumValid validates the trailing checksum.
func checksumValid(fields, check []TimestampedByte, dir Direction) bool {
	bcc := Checksum(values(fields))

	if dir == Inbound {
		return check[0].Value == bcc
	}

	marker := dataEndMarker | uint8(len(fields)) //nolint:gosec // at most 22 real bytes
	return check[0].Value == marker && check[1].Value == bcc
}

// Checksum returns the XOR-fold block check character of data, seeded with
// 0xFF.
func Checksum(data []byte) uint8 {
	bcc := bccSeed
	for _, b := range data {
		bcc ^= b
	}
	return bcc
}

// values extracts the byte values of a timestamped sequence.
func values(bs []TimestampedByte) []byte {
	out := make([]byte, len(bs))
	for i, b := range bs {
		out[i] = b.Value
	}
	return out
}
