package source

import (
	"errors"
	"io"
)

// Sentinel errors for byte sources.
var (
	// ErrUnsupportedType is returned for an unknown source type.
	ErrUnsupportedType = errors.New("source: unsupported type")

	// ErrMissingColumn is returned when a capture header lacks a required column.
	ErrMissingColumn = errors.New("source: capture is missing a required column")

	// ErrInvalidRow is returned for a capture row that cannot be parsed.
	ErrInvalidRow = errors.New("source: invalid capture row")

	// ErrInvalidPortOptions is returned for serial settings the port cannot use.
	ErrInvalidPortOptions = errors.New("source: invalid serial port options")

	// ErrRead is returned when the serial port read fails.
	ErrRead = errors.New("source: serial read failed")
)

func isEOF(err error) bool {
	return errors.Is(err, io.EOF)
}
