package source

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/nerrad567/gray-logic-busdecode/internal/knx"
)

// Column names recognised in a capture header (case-insensitive).
const (
	colStart    = "start_time"
	colEnd      = "end_time"
	colDuration = "duration"
	colData     = "data"
	colValue    = "value"
	colType     = "type"

	rowTypeData = "data"
)

// CaptureSource replays an async-serial analyzer export.
//
// The first row is a header. Columns are located by name: start_time,
// then end_time or duration, then data or value. Times are in seconds.
// Data is 0xNN hex or decimal. Rows whose type column is not "data", or
// whose data cell is empty (framing errors), are skipped.
type CaptureSource struct {
	r      *csv.Reader
	closer io.Closer
	line   int

	start    int
	end      int
	duration int
	data     int
	kind     int
}

// NewCaptureSource reads the header from r and returns a source positioned
// at the first data row.
func NewCaptureSource(r io.Reader) (*CaptureSource, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1
	cr.TrimLeadingSpace = true
	cr.ReuseRecord = true

	header, err := cr.Read()
	if err != nil {
		if errors.Is(err, io.EOF) {
			return nil, fmt.Errorf("%w: empty capture", ErrMissingColumn)
		}
		return nil, fmt.Errorf("reading capture header: %w", err)
	}

	s := &CaptureSource{r: cr, line: 1, start: -1, end: -1, duration: -1, data: -1, kind: -1}
	for i, name := range header {
		switch strings.ToLower(strings.TrimSpace(strings.TrimPrefix(name, "\ufeff"))) {
		case colStart:
			s.start = i
		case colEnd:
			s.end = i
		case colDuration:
			s.duration = i
		case colData, colValue:
			if s.data < 0 {
				s.data = i
			}
		case colType:
			s.kind = i
		}
	}

	switch {
	case s.start < 0:
		return nil, fmt.Errorf("%w: %s", ErrMissingColumn, colStart)
	case s.end < 0 && s.duration < 0:
		return nil, fmt.Errorf("%w: %s or %s", ErrMissingColumn, colEnd, colDuration)
	case s.data < 0:
		return nil, fmt.Errorf("%w: %s", ErrMissingColumn, colData)
	}
	return s, nil
}

// Next returns the next data byte. Cancellation is checked between rows.
func (s *CaptureSource) Next(ctx context.Context) (knx.TimestampedByte, error) {
	for {
		if err := ctx.Err(); err != nil {
			return knx.TimestampedByte{}, err
		}

		record, err := s.r.Read()
		if err != nil {
			if errors.Is(err, io.EOF) {
				return knx.TimestampedByte{}, io.EOF
			}
			return knx.TimestampedByte{}, fmt.Errorf("reading capture line %d: %w", s.line+1, err)
		}
		s.line++

		b, ok, err := s.parse(record)
		if err != nil {
			return knx.TimestampedByte{}, err
		}
		if ok {
			return b, nil
		}
	}
}

// parse converts one row. ok is false for rows that carry no byte.
func (s *CaptureSource) parse(record []string) (b knx.TimestampedByte, ok bool, err error) {
	if s.kind >= 0 && s.kind < len(record) {
		if kind := strings.TrimSpace(record[s.kind]); kind != "" && !strings.EqualFold(kind, rowTypeData) {
			return b, false, nil
		}
	}
	if s.data >= len(record) || strings.TrimSpace(record[s.data]) == "" {
		return b, false, nil
	}

	value, err := parseByte(record[s.data])
	if err != nil {
		return b, false, fmt.Errorf("%w: line %d: %w", ErrInvalidRow, s.line, err)
	}
	start, err := s.seconds(record, s.start)
	if err != nil {
		return b, false, err
	}

	var end time.Duration
	if s.end >= 0 {
		end, err = s.seconds(record, s.end)
	} else {
		var d time.Duration
		d, err = s.seconds(record, s.duration)
		end = start + d
	}
	if err != nil {
		return b, false, err
	}

	return knx.TimestampedByte{Value: value, Start: start, End: end}, true, nil
}

// seconds parses column col as seconds.
func (s *CaptureSource) seconds(record []string, col int) (time.Duration, error) {
	if col >= len(record) {
		return 0, fmt.Errorf("%w: line %d: missing time column", ErrInvalidRow, s.line)
	}
	f, err := strconv.ParseFloat(strings.TrimSpace(record[col]), 64)
	if err != nil || math.IsNaN(f) || math.IsInf(f, 0) {
		return 0, fmt.Errorf("%w: line %d: bad time %q", ErrInvalidRow, s.line, record[col])
	}
	return time.Duration(math.Round(f * float64(time.Second))), nil
}

// parseByte accepts 0xNN, 0XNN or a decimal 0..255.
func parseByte(cell string) (uint8, error) {
	cell = strings.TrimSpace(cell)
	base := 10
	if rest, ok := strings.CutPrefix(strings.ToLower(cell), "0x"); ok {
		cell, base = rest, 16
	}
	v, err := strconv.ParseUint(cell, base, 8)
	if err != nil {
		return 0, fmt.Errorf("bad data %q", cell)
	}
	return uint8(v), nil
}

// Close closes the underlying file, if any.
func (s *CaptureSource) Close() error {
	if s.closer == nil {
		return nil
	}
	return s.closer.Close()
}
