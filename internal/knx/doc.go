// Package knx decodes the byte stream exchanged with a KNX TP-UART bus
// transceiver into structured protocol events.
//
// # Architecture
//
// Decoding happens in two stages, fed one byte at a time:
//
//	┌──────────────┐   byte   ┌─────────────┐ telegram ┌───────────────┐
//	│ Byte source  │─────────►│  Assembler  │─────────►│ DecodeTelegram│──► []Event
//	└──────────────┘          └─────────────┘          └───────────────┘
//
// The Assembler derives frame boundaries from content alone: single-byte
// control codes are reported immediately, everything else is buffered until
// the length nibble in the routing field says the telegram is complete.
// DecodeTelegram is a pure function over one complete telegram.
//
// Session couples both stages with the decoder configuration and is what a
// driving loop feeds.
//
// # Directions
//
// Outbound (TX) traffic is what the host sends to the transceiver. Every
// telegram byte travels as a pair, so the raw buffer is twice the telegram
// length plus a two-byte end marker and checksum. Inbound (RX) traffic is
// the plain L_Data frame followed by a one-byte checksum.
//
// # Example
//
//	s := knx.NewSession(knx.Options{
//	    Direction:      knx.Inbound,
//	    AddressingMode: knx.ThreeLevel,
//	})
//	for _, b := range bytes {
//	    res, err := s.Feed(b)
//	    if err != nil {
//	        continue // malformed telegram, session already reset
//	    }
//	    for _, ev := range res.Events {
//	        fmt.Println(ev)
//	    }
//	}
//
// # Thread Safety
//
// Session and Assembler are not safe for concurrent use. Use one instance
// per byte stream.
package knx
