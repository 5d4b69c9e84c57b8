package monitor

import (
	"context"
	"io"
	"sync"
	"time"

	"github.com/nerrad567/gray-logic-busdecode/internal/infrastructure/influxdb"
	"github.com/nerrad567/gray-logic-busdecode/internal/infrastructure/mqtt"
	"github.com/nerrad567/gray-logic-busdecode/internal/knx"
)

// groupWriteFrame is an inbound VAL WRITE from 1.1.5 to 1/2/3 with its
// checksum appended.
func groupWriteFrame() []uint8 {
	fields := []uint8{0xBC, 0x11, 0x05, 0x0A, 0x03, 0xE1, 0x00, 0x81}
	return append(fields, knx.Checksum(fields))
}

// sliceSource replays values one millisecond apart, then returns err
// (io.EOF when nil).
type sliceSource struct {
	bytes  []knx.TimestampedByte
	err    error
	closed bool
}

func newSliceSource(vals ...uint8) *sliceSource {
	s := &sliceSource{}
	for i, v := range vals {
		start := time.Duration(i) * time.Millisecond
		s.bytes = append(s.bytes, knx.TimestampedByte{Value: v, Start: start, End: start + 500*time.Microsecond})
	}
	return s
}

func (s *sliceSource) Next(ctx context.Context) (knx.TimestampedByte, error) {
	if err := ctx.Err(); err != nil {
		return knx.TimestampedByte{}, err
	}
	if len(s.bytes) == 0 {
		if s.err != nil {
			return knx.TimestampedByte{}, s.err
		}
		return knx.TimestampedByte{}, io.EOF
	}
	b := s.bytes[0]
	s.bytes = s.bytes[1:]
	return b, nil
}

func (s *sliceSource) Close() error {
	s.closed = true
	return nil
}

// blockingSource never produces a byte.
type blockingSource struct{}

func (blockingSource) Next(ctx context.Context) (knx.TimestampedByte, error) {
	<-ctx.Done()
	return knx.TimestampedByte{}, ctx.Err()
}

func (blockingSource) Close() error { return nil }

// published is one message seen by fakePublisher.
type published struct {
	topic    string
	msg      any
	retained bool
}

type fakePublisher struct {
	mu   sync.Mutex
	msgs []published
	err  error
}

func (p *fakePublisher) PublishJSON(topic string, v any) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.msgs = append(p.msgs, published{topic: topic, msg: v})
	return p.err
}

func (p *fakePublisher) PublishRetained(topic string, v any) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.msgs = append(p.msgs, published{topic: topic, msg: v, retained: true})
	return p.err
}

func (p *fakePublisher) Topics() mqtt.Topics { return mqtt.NewTopics("busdecode") }

type fakeMetrics struct {
	mu        sync.Mutex
	telegrams []influxdb.TelegramMetric
	controls  []influxdb.ControlMetric
	sessions  []influxdb.SessionMetric
}

func (m *fakeMetrics) WriteTelegram(t influxdb.TelegramMetric) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.telegrams = append(m.telegrams, t)
}

func (m *fakeMetrics) WriteControl(c influxdb.ControlMetric) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.controls = append(m.controls, c)
}

func (m *fakeMetrics) WriteSession(s influxdb.SessionMetric) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sessions = append(m.sessions, s)
}

type controlRecord struct {
	dir        knx.Direction
	label      string
	start, end time.Duration
}

type fakeStore struct {
	telegrams []*knx.Telegram
	controls  []controlRecord
	err       error
}

func (s *fakeStore) RecordTelegram(_ context.Context, t *knx.Telegram) error {
	s.telegrams = append(s.telegrams, t)
	return s.err
}

func (s *fakeStore) RecordControl(_ context.Context, dir knx.Direction, label string, start, end time.Duration) error {
	s.controls = append(s.controls, controlRecord{dir, label, start, end})
	return s.err
}

type countingLogger struct {
	mu                   sync.Mutex
	infos, warns, errors []string
}

func (l *countingLogger) Info(msg string, _ ...any) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.infos = append(l.infos, msg)
}

func (l *countingLogger) Warn(msg string, _ ...any) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.warns = append(l.warns, msg)
}

func (l *countingLogger) Error(msg string, _ ...any) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.errors = append(l.errors, msg)
}
