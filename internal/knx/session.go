package knx

import "time"

// Result is what a Session produces for one fed byte.
//
// Most bytes produce an empty Result. A short command yields one event and
// Short set to its label; a completed telegram yields the full event list
// and Telegram.
type Result struct {
	Direction Direction
	Events    []Event
	Telegram  *Telegram
	Short     string
}

// IsEmpty reports whether the byte produced nothing.
func (r Result) IsEmpty() bool {
	return len(r.Events) == 0 && r.Telegram == nil && r.Short == ""
}

// Stats counts what a Session has produced so far.
type Stats struct {
	Bytes         uint64
	Telegrams     uint64
	ShortCommands uint64
	CRCFailures   uint64
	Malformed     uint64
	Abandoned     uint64
}

// Session couples one Assembler with the decoder options of its stream.
type Session struct {
	opts      Options
	assembler *Assembler
	stats     Stats
}

// NewSession creates a Session for one byte stream.
func NewSession(opts Options) *Session {
	return &Session{
		opts:      opts,
		assembler: NewAssembler(opts.Direction, opts.StaleTimeout),
	}
}

// Feed consumes one byte and returns whatever it completed.
//
// A malformed telegram returns ErrMalformedTelegram. The assembler has
// already reset by then, so the caller can keep feeding.
func (s *Session) Feed(b TimestampedByte) (Result, error) {
	s.stats.Bytes++

	unit, ok := s.assembler.Feed(b)
	s.stats.Abandoned = uint64(s.assembler.Abandoned()) //nolint:gosec // counter is never negative
	if !ok {
		return Result{Direction: s.opts.Direction}, nil
	}

	if unit.Kind == UnitShortCommand {
		s.stats.ShortCommands++
		return Result{
			Direction: s.opts.Direction,
			Short:     unit.Label,
			Events:    []Event{commandEvent(unit.Label, unit.Start, unit.End)},
		}, nil
	}

	t, err := DecodeTelegram(unit.Bytes, s.opts)
	if err != nil {
		s.stats.Malformed++
		return Result{Direction: s.opts.Direction}, err
	}

	s.stats.Telegrams++
	if !t.CRCValid {
		s.stats.CRCFailures++
	}
	return Result{
		Direction: s.opts.Direction,
		Events:    t.Events,
		Telegram:  t,
	}, nil
}

// FeedAll feeds a whole byte sequence and returns every event in order.
// Malformed telegrams are skipped; the first such error is returned after
// the sequence has been consumed.
func (s *Session) FeedAll(bs []TimestampedByte) ([]Event, error) {
	var events []Event
	var firstErr error
	for _, b := range bs {
		res, err := s.Feed(b)
		if err != nil && firstErr == nil {
			firstErr = err
		}
		events = append(events, res.Events...)
	}
	return events, firstErr
}

// Options returns the session's decoder options.
func (s *Session) Options() Options { return s.opts }

// Assembler exposes the session's assembler for inspection.
func (s *Session) Assembler() *Assembler { return s.assembler }

// Stats returns a snapshot of the session counters.
func (s *Session) Stats() Stats { return s.stats }

// Pending reports whether a partial telegram is buffered, and since when.
func (s *Session) Pending() (time.Duration, bool) {
	if s.assembler.ByteCount() == 0 {
		return 0, false
	}
	return s.assembler.pendingStart(), true
}
