package knx

import (
	"fmt"
	"time"
)

// EventKind identifies which field bundle an Event carries.
type EventKind int

const (
	// KindCommand is a free-text command, field or verdict annotation.
	KindCommand EventKind = iota

	// KindSourceAddress is the sender's individual address.
	KindSourceAddress

	// KindDestAddress3Level is an individual or 3-level group destination.
	KindDestAddress3Level

	// KindDestAddress2Level is a 2-level group destination.
	KindDestAddress2Level
)

// String returns the result type name used by renderers.
func (k EventKind) String() string {
	switch k {
	case KindCommand:
		return "cmd_str"
	case KindSourceAddress:
		return "source_addr_str"
	case KindDestAddress3Level:
		return "dist_addr_str"
	case KindDestAddress2Level:
		return "dist_2l_addr_str"
	default:
		return fmt.Sprintf("EventKind(%d)", int(k))
	}
}

// Fields is the kind-specific payload of an Event.
type Fields interface {
	Kind() EventKind
	String() string
}

// Event is one annotation produced by the decoder. Start and End span the
// bytes the annotation describes.
type Event struct {
	Start  time.Duration
	End    time.Duration
	Fields Fields
}

// Kind returns the kind of the event's field bundle.
func (e Event) Kind() EventKind {
	return e.Fields.Kind()
}

// String renders the event the way the analyzer UI shows it.
func (e Event) String() string {
	return e.Fields.String()
}

// Command is the field bundle of a KindCommand event.
type Command struct {
	Text string
}

// Kind implements Fields.
func (Command) Kind() EventKind { return KindCommand }

// String implements Fields.
func (c Command) String() string { return c.Text }

// SourceAddress is the field bundle of a KindSourceAddress event.
type SourceAddress struct {
	Area   uint8
	Line   uint8
	Device uint8
}

// Kind implements Fields.
func (SourceAddress) Kind() EventKind { return KindSourceAddress }

// String implements Fields.
func (s SourceAddress) String() string {
	return fmt.Sprintf("Source addr: %d.%d.%d", s.Area, s.Line, s.Device)
}

// broadcastSuffix is appended to the device part of a 0/0/0 destination.
const broadcastSuffix = " Broadcast"

// DestAddress3Level is the field bundle of a KindDestAddress3Level event.
// Separator is "." for individual and "/" for group destinations.
type DestAddress3Level struct {
	Area      uint8
	Line      uint8
	Device    uint8
	Separator string
	Broadcast bool
}

// Kind implements Fields.
func (DestAddress3Level) Kind() EventKind { return KindDestAddress3Level }

// DeviceText returns the device part as rendered, including the broadcast
// marker.
func (d DestAddress3Level) DeviceText() string {
	if d.Broadcast {
		return fmt.Sprintf("%d%s", d.Device, broadcastSuffix)
	}
	return fmt.Sprintf("%d", d.Device)
}

// String implements Fields.
func (d DestAddress3Level) String() string {
	return fmt.Sprintf("Destination addr: %d%s%d%s%s", d.Area, d.Separator, d.Line, d.Separator, d.DeviceText())
}

// DestAddress2Level is the field bundle of a KindDestAddress2Level event.
type DestAddress2Level struct {
	Area   uint8
	Device uint16
}

// Kind implements Fields.
func (DestAddress2Level) Kind() EventKind { return KindDestAddress2Level }

// String implements Fields.
func (d DestAddress2Level) String() string {
	return fmt.Sprintf("Destination addr: %d/%d", d.Area, d.Device)
}

// commandEvent builds a KindCommand event.
func commandEvent(text string, start, end time.Duration) Event {
	return Event{Start: start, End: end, Fields: Command{Text: text}}
}
