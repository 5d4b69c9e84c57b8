package monitor

import (
	"context"
	"time"

	"github.com/nerrad567/gray-logic-busdecode/internal/knx"
)

// TelegramStore is the part of recorder.Recorder the monitor uses.
type TelegramStore interface {
	RecordTelegram(ctx context.Context, t *knx.Telegram) error
	RecordControl(ctx context.Context, dir knx.Direction, label string, start, end time.Duration) error
}

// RecorderSink persists telegrams and control codes.
type RecorderSink struct {
	store TelegramStore
}

// NewRecorderSink creates a sink backed by store.
func NewRecorderSink(store TelegramStore) *RecorderSink {
	return &RecorderSink{store: store}
}

// Handle implements Sink.
func (s *RecorderSink) Handle(ctx context.Context, res knx.Result) error {
	switch {
	case res.Telegram != nil:
		return s.store.RecordTelegram(ctx, res.Telegram)
	case res.Short != "":
		start, end := span(res.Events)
		return s.store.RecordControl(ctx, res.Direction, res.Short, start, end)
	default:
		return nil
	}
}

// span returns the first start and last end of events.
func span(events []knx.Event) (start, end time.Duration) {
	if len(events) == 0 {
		return 0, 0
	}
	return events[0].Start, events[len(events)-1].End
}
