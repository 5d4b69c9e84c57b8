package knx

import (
	"fmt"
	"net/url"
)

// IndividualAddress identifies a physical device on the bus.
//
// Format: Area.Line.Device
//   - Area:   0-15 (4 bits)
//   - Line:   0-15 (4 bits)
//   - Device: 0-255 (8 bits)
type IndividualAddress struct {
	Area   uint8
	Line   uint8
	Device uint8
}

// GroupAddress is a group address in 3-level format.
//
// Format: Main/Middle/Sub
//   - Main:   0-31 (5 bits)
//   - Middle: 0-7  (3 bits)
//   - Sub:    0-255 (8 bits)
type GroupAddress struct {
	Main   uint8
	Middle uint8
	Sub    uint8
}

// TwoLevelGroupAddress is a group address in 2-level format.
//
// Format: Main/Sub
//   - Main: 0-31 (5 bits)
//   - Sub:  0-2047 (11 bits)
type TwoLevelGroupAddress struct {
	Main uint8
	Sub  uint16
}

// Bit masks for extracting address parts from the two raw address bytes.
const (
	iaAreaShift = 4
	iaLineMask  = 0x0F

	gaMainShift  = 3
	gaMiddleMask = 0x07

	ga2MainShift = 11
	ga2SubMask   = 0x07FF
)

// IndividualAddressFromBytes decodes an individual address from its high
// and low wire bytes.
func IndividualAddressFromBytes(hi, lo uint8) IndividualAddress {
	return IndividualAddress{
		Area:   hi >> iaAreaShift,
		Line:   hi & iaLineMask,
		Device: lo,
	}
}

// String returns the address in "1.1.5" form.
func (ia IndividualAddress) String() string {
	return fmt.Sprintf("%d.%d.%d", ia.Area, ia.Line, ia.Device)
}

// IsZero reports whether the address is 0.0.0.
func (ia IndividualAddress) IsZero() bool {
	return ia == IndividualAddress{}
}

// GroupAddressFromBytes decodes a 3-level group address from its high and
// low wire bytes.
//
// Layout: MMMM MSSS SSSS SSSS
func GroupAddressFromBytes(hi, lo uint8) GroupAddress {
	return GroupAddress{
		Main:   hi >> gaMainShift,
		Middle: hi & gaMiddleMask,
		Sub:    lo,
	}
}

// String returns the group address in "1/2/3" form.
func (ga GroupAddress) String() string {
	return fmt.Sprintf("%d/%d/%d", ga.Main, ga.Middle, ga.Sub)
}

// TwoLevelGroupAddressFromBytes decodes a 2-level group address from its
// high and low wire bytes.
func TwoLevelGroupAddressFromBytes(hi, lo uint8) TwoLevelGroupAddress {
	v := uint16(hi)<<8 | uint16(lo)
	return TwoLevelGroupAddress{
		Main: uint8(v >> ga2MainShift), //nolint:gosec // 16-11 = 5 bits remain
		Sub:  v & ga2SubMask,
	}
}

// String returns the group address in "1/515" form.
func (ga TwoLevelGroupAddress) String() string {
	return fmt.Sprintf("%d/%d", ga.Main, ga.Sub)
}

// URLEncode escapes an address string for use as a single MQTT topic level,
// where "/" is a level separator.
//
// Example: "1/2/3" → "1%2F2%2F3"
func URLEncode(addr string) string {
	return url.PathEscape(addr)
}
