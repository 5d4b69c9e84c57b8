package knx

import (
	"testing"
	"time"
)

// byteTime is the spacing between consecutive test bytes (one TP-UART
// character at 19200 baud is about 573µs).
const byteTime = 600 * time.Microsecond

// stamp turns raw values into timestamped bytes starting at offset 0.
func stamp(vals ...uint8) []TimestampedByte {
	return stampFrom(0, vals...)
}

// stampFrom turns raw values into timestamped bytes starting at start.
func stampFrom(start time.Duration, vals ...uint8) []TimestampedByte {
	out := make([]TimestampedByte, len(vals))
	for i, v := range vals {
		s := start + time.Duration(i)*byteTime
		out[i] = TimestampedByte{Value: v, Start: s, End: s + byteTime - 50*time.Microsecond}
	}
	return out
}

// inboundFrame appends a correct checksum to fields.
func inboundFrame(fields ...uint8) []uint8 {
	out := append([]uint8{}, fields...)
	return append(out, Checksum(fields))
}

// outboundFrame duplicates every field byte and appends the end marker and
// checksum.
func outboundFrame(fields ...uint8) []uint8 {
	out := make([]uint8, 0, 2*len(fields)+2)
	for _, v := range fields {
		out = append(out, v, v)
	}
	return append(out, dataEndMarker|uint8(len(fields)), Checksum(fields)) //nolint:gosec // test frames are short
}

// echoRouting overwrites the echo copy of the routing byte in an outbound
// frame, the copy the assembler sizes the telegram from.
func echoRouting(frame []uint8, routing uint8) []uint8 {
	frame[outboundLengthOffset] = routing
	return frame
}

// feedAll feeds vals through a fresh session and fails on decoder errors.
func feedAll(t *testing.T, opts Options, vals []uint8) []Event {
	t.Helper()
	s := NewSession(opts)
	events, err := s.FeedAll(stamp(vals...))
	if err != nil {
		t.Fatalf("FeedAll() error = %v", err)
	}
	return events
}

// texts returns the rendered text of every event.
func texts(events []Event) []string {
	out := make([]string, len(events))
	for i, e := range events {
		out[i] = e.String()
	}
	return out
}
