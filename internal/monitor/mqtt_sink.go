package monitor

import (
	"context"
	"encoding/hex"
	"fmt"
	"time"

	"github.com/nerrad567/gray-logic-busdecode/internal/infrastructure/mqtt"
	"github.com/nerrad567/gray-logic-busdecode/internal/knx"
)

// Publisher is the part of mqtt.Client the MQTT sink uses.
type Publisher interface {
	PublishJSON(topic string, v any) error
	PublishRetained(topic string, v any) error
	Topics() mqtt.Topics
}

// TelegramMessage is published for every decoded telegram.
// Topic: {prefix}/telegram/{direction}/{escaped destination}
type TelegramMessage struct {
	// Timestamp is when the telegram was published (UTC).
	Timestamp time.Time `json:"timestamp"`

	Direction   string `json:"direction"`
	Source      string `json:"source"`
	Destination string `json:"destination"`
	IsGroup     bool   `json:"is_group"`

	// Command is the command or status label, omitted when none applies.
	Command string `json:"command,omitempty"`

	DataLength int    `json:"data_len"`
	Payload    string `json:"payload,omitempty"`
	CRCValid   bool   `json:"crc_ok"`
	Raw        string `json:"raw"`

	// StartNs and EndNs are capture offsets of the telegram.
	StartNs int64 `json:"start_ns"`
	EndNs   int64 `json:"end_ns"`

	// Events are the rendered annotations in order.
	Events []string `json:"events"`
}

// ControlMessage is published for every short control code.
// Topic: {prefix}/control/{direction}
type ControlMessage struct {
	Timestamp time.Time `json:"timestamp"`
	Direction string    `json:"direction"`
	Label     string    `json:"label"`
	StartNs   int64     `json:"start_ns"`
	EndNs     int64     `json:"end_ns"`
}

// StatsMessage is the retained session snapshot.
// Topic: {prefix}/stats/{direction}
type StatsMessage struct {
	Timestamp     time.Time `json:"timestamp"`
	Direction     string    `json:"direction"`
	Bytes         uint64    `json:"bytes"`
	Telegrams     uint64    `json:"telegrams"`
	ShortCommands uint64    `json:"short_commands"`
	CRCFailures   uint64    `json:"crc_failures"`
	Malformed     uint64    `json:"malformed"`
	Abandoned     uint64    `json:"abandoned"`
}

// MQTTSink publishes decoded traffic as JSON.
type MQTTSink struct {
	pub Publisher
	now func() time.Time
}

// NewMQTTSink creates a sink publishing through pub.
func NewMQTTSink(pub Publisher) *MQTTSink {
	return &MQTTSink{pub: pub, now: time.Now}
}

// Handle implements Sink.
func (s *MQTTSink) Handle(_ context.Context, res knx.Result) error {
	topics := s.pub.Topics()
	dir := res.Direction.String()

	switch {
	case res.Telegram != nil:
		msg := NewTelegramMessage(res.Telegram, s.now())
		topic := topics.Telegram(dir, knx.URLEncode(res.Telegram.Destination))
		if err := s.pub.PublishJSON(topic, msg); err != nil {
			return fmt.Errorf("publishing telegram: %w", err)
		}
	case res.Short != "":
		msg := NewControlMessage(res, s.now())
		if err := s.pub.PublishJSON(topics.Control(dir), msg); err != nil {
			return fmt.Errorf("publishing control code: %w", err)
		}
	}
	return nil
}

// ReportStats implements StatsReporter.
func (s *MQTTSink) ReportStats(_ context.Context, dir knx.Direction, stats knx.Stats) error {
	msg := NewStatsMessage(dir, stats, s.now())
	if err := s.pub.PublishRetained(s.pub.Topics().Stats(dir.String()), msg); err != nil {
		return fmt.Errorf("publishing stats: %w", err)
	}
	return nil
}

// NewTelegramMessage builds the MQTT message for a decoded telegram.
func NewTelegramMessage(t *knx.Telegram, now time.Time) TelegramMessage {
	events := make([]string, len(t.Events))
	for i, ev := range t.Events {
		events[i] = ev.String()
	}
	return TelegramMessage{
		Timestamp:   now.UTC(),
		Direction:   t.Direction.String(),
		Source:      t.Source.String(),
		Destination: t.Destination,
		IsGroup:     t.IsGroup,
		Command:     t.Command,
		DataLength:  t.DataLength,
		Payload:     hex.EncodeToString(t.Payload),
		CRCValid:    t.CRCValid,
		Raw:         hex.EncodeToString(t.Raw),
		StartNs:     t.Start.Nanoseconds(),
		EndNs:       t.End.Nanoseconds(),
		Events:      events,
	}
}

// NewControlMessage builds the message for a short control code result.
func NewControlMessage(res knx.Result, now time.Time) ControlMessage {
	start, end := span(res.Events)
	return ControlMessage{
		Timestamp: now.UTC(),
		Direction: res.Direction.String(),
		Label:     res.Short,
		StartNs:   start.Nanoseconds(),
		EndNs:     end.Nanoseconds(),
	}
}

// NewStatsMessage builds the session snapshot message.
func NewStatsMessage(dir knx.Direction, stats knx.Stats, now time.Time) StatsMessage {
	return StatsMessage{
		Timestamp:     now.UTC(),
		Direction:     dir.String(),
		Bytes:         stats.Bytes,
		Telegrams:     stats.Telegrams,
		ShortCommands: stats.ShortCommands,
		CRCFailures:   stats.CRCFailures,
		Malformed:     stats.Malformed,
		Abandoned:     stats.Abandoned,
	}
}
