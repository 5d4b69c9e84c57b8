package knx

import "errors"

// Domain errors for the KNX decoder package.
var (
	// ErrMalformedTelegram is returned when a telegram handed to the decoder
	// does not hold exactly the fields its own header declares.
	ErrMalformedTelegram = errors.New("knx: malformed telegram")

	// ErrInvalidDirection is returned when a direction name cannot be parsed.
	ErrInvalidDirection = errors.New("knx: invalid direction")

	// ErrInvalidAddressingMode is returned when an address format name
	// cannot be parsed.
	ErrInvalidAddressingMode = errors.New("knx: invalid addressing mode")
)
