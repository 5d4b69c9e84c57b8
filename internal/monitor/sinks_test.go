package monitor

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"

	"github.com/nerrad567/gray-logic-busdecode/internal/knx"
)

// decodeGroupWrite decodes groupWriteFrame with millisecond spacing.
func decodeGroupWrite(t *testing.T) knx.Result {
	t.Helper()
	s := knx.NewSession(knx.Options{Direction: knx.Inbound})
	var last knx.Result
	for i, v := range groupWriteFrame() {
		start := time.Duration(i) * time.Millisecond
		res, err := s.Feed(knx.TimestampedByte{Value: v, Start: start, End: start + 500*time.Microsecond})
		if err != nil {
			t.Fatalf("Feed() error = %v", err)
		}
		if !res.IsEmpty() {
			last = res
		}
	}
	if last.Telegram == nil {
		t.Fatal("frame did not decode to a telegram")
	}
	return last
}

func shortResult(dir knx.Direction, label string) knx.Result {
	return knx.Result{
		Direction: dir,
		Short:     label,
		Events: []knx.Event{{
			Start:  2 * time.Millisecond,
			End:    2500 * time.Microsecond,
			Fields: knx.Command{Text: label},
		}},
	}
}

func TestPrinterText(t *testing.T) {
	var out bytes.Buffer
	p, err := NewPrinter(&out, "")
	if err != nil {
		t.Fatalf("NewPrinter() error = %v", err)
	}

	if err := p.Handle(context.Background(), shortResult(knx.Outbound, "RESET")); err != nil {
		t.Fatalf("Handle() error = %v", err)
	}
	if got, want := out.String(), "0.002000 0.002500  RESET\n"; got != want {
		t.Errorf("output = %q, want %q", got, want)
	}
}

func TestPrinterJSON(t *testing.T) {
	var out bytes.Buffer
	p, err := NewPrinter(&out, "JSON")
	if err != nil {
		t.Fatalf("NewPrinter() error = %v", err)
	}

	res := decodeGroupWrite(t)
	if err := p.Handle(context.Background(), res); err != nil {
		t.Fatalf("Handle() error = %v", err)
	}

	dec := json.NewDecoder(&out)
	var lines []eventLine
	for dec.More() {
		var l eventLine
		if err := dec.Decode(&l); err != nil {
			t.Fatalf("Decode() error = %v", err)
		}
		lines = append(lines, l)
	}
	if len(lines) != len(res.Events) {
		t.Fatalf("got %d lines, want %d", len(lines), len(res.Events))
	}

	want := eventLine{
		Direction: "rx",
		Type:      "source_addr_str",
		StartNs:   int64(time.Millisecond),
		EndNs:     int64(2500 * time.Microsecond),
		Text:      "Source addr: 1.1.5",
	}
	if diff := cmp.Diff(want, lines[1]); diff != "" {
		t.Errorf("source line mismatch (-want +got):\n%s", diff)
	}
	if lines[2].Type != "dist_addr_str" || lines[2].Text != "Destination addr: 1/2/3" {
		t.Errorf("destination line = %+v", lines[2])
	}
}

func TestNewPrinterUnknownFormat(t *testing.T) {
	if _, err := NewPrinter(&bytes.Buffer{}, "xml"); err == nil {
		t.Error("NewPrinter(xml) error = nil")
	}
}

func TestRecorderSink(t *testing.T) {
	store := &fakeStore{}
	sink := NewRecorderSink(store)
	ctx := context.Background()

	res := decodeGroupWrite(t)
	if err := sink.Handle(ctx, res); err != nil {
		t.Fatalf("Handle(telegram) error = %v", err)
	}
	if err := sink.Handle(ctx, shortResult(knx.Inbound, "ACK CONTI")); err != nil {
		t.Fatalf("Handle(short) error = %v", err)
	}
	if err := sink.Handle(ctx, knx.Result{Direction: knx.Inbound}); err != nil {
		t.Fatalf("Handle(empty) error = %v", err)
	}

	if len(store.telegrams) != 1 || store.telegrams[0] != res.Telegram {
		t.Errorf("telegrams = %v", store.telegrams)
	}
	want := []controlRecord{{knx.Inbound, "ACK CONTI", 2 * time.Millisecond, 2500 * time.Microsecond}}
	if diff := cmp.Diff(want, store.controls, cmp.AllowUnexported(controlRecord{})); diff != "" {
		t.Errorf("controls mismatch (-want +got):\n%s", diff)
	}

	store.err = errors.New("locked")
	if err := sink.Handle(ctx, res); !errors.Is(err, store.err) {
		t.Errorf("Handle() error = %v, want store error", err)
	}
}

func TestMQTTSink(t *testing.T) {
	pub := &fakePublisher{}
	sink := NewMQTTSink(pub)
	fixed := time.Date(2026, 3, 1, 9, 0, 0, 0, time.FixedZone("CET", 3600))
	sink.now = func() time.Time { return fixed }

	res := decodeGroupWrite(t)
	if err := sink.Handle(context.Background(), res); err != nil {
		t.Fatalf("Handle() error = %v", err)
	}
	if len(pub.msgs) != 1 {
		t.Fatalf("published %d messages, want 1", len(pub.msgs))
	}
	if pub.msgs[0].topic != "busdecode/telegram/rx/1%2F2%2F3" || pub.msgs[0].retained {
		t.Errorf("topic = %q retained = %v", pub.msgs[0].topic, pub.msgs[0].retained)
	}

	msg, ok := pub.msgs[0].msg.(TelegramMessage)
	if !ok {
		t.Fatalf("message type = %T", pub.msgs[0].msg)
	}
	if msg.Source != "1.1.5" || msg.Destination != "1/2/3" || !msg.IsGroup || msg.Command != "VAL WRITE" || !msg.CRCValid {
		t.Errorf("message = %+v", msg)
	}
	if msg.Raw != "bc11050a03e100813e" {
		t.Errorf("Raw = %q", msg.Raw)
	}
	if !msg.Timestamp.Equal(fixed) || msg.Timestamp.Location() != time.UTC {
		t.Errorf("Timestamp = %v, want %v in UTC", msg.Timestamp, fixed)
	}
	if len(msg.Events) != 6 || msg.Events[5] != knx.CRCCorrect {
		t.Errorf("Events = %v", msg.Events)
	}

	pub.err = errors.New("not connected")
	if err := sink.Handle(context.Background(), shortResult(knx.Outbound, "RESET")); !errors.Is(err, pub.err) {
		t.Errorf("Handle() error = %v, want publisher error", err)
	}
	last := pub.msgs[len(pub.msgs)-1]
	if last.topic != "busdecode/control/tx" {
		t.Errorf("control topic = %q", last.topic)
	}
	if c, ok := last.msg.(ControlMessage); !ok || c.Label != "RESET" || c.StartNs != int64(2*time.Millisecond) {
		t.Errorf("control message = %+v", last.msg)
	}
}

func TestMQTTSinkReportStats(t *testing.T) {
	pub := &fakePublisher{}
	sink := NewMQTTSink(pub)

	stats := knx.Stats{Bytes: 20, Telegrams: 2, CRCFailures: 1}
	if err := sink.ReportStats(context.Background(), knx.Outbound, stats); err != nil {
		t.Fatalf("ReportStats() error = %v", err)
	}

	got := pub.msgs[0]
	if got.topic != "busdecode/stats/tx" || !got.retained {
		t.Errorf("topic = %q retained = %v", got.topic, got.retained)
	}
	msg := got.msg.(StatsMessage)
	if msg.Bytes != 20 || msg.Telegrams != 2 || msg.CRCFailures != 1 || msg.Direction != "tx" {
		t.Errorf("stats message = %+v", msg)
	}
}

func TestTelegramMessageJSON(t *testing.T) {
	res := decodeGroupWrite(t)
	msg := NewTelegramMessage(res.Telegram, time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC))

	data, err := json.Marshal(msg)
	if err != nil {
		t.Fatalf("Marshal() error = %v", err)
	}
	var fields map[string]any
	if err := json.Unmarshal(data, &fields); err != nil {
		t.Fatalf("Unmarshal() error = %v", err)
	}

	for _, key := range []string{"timestamp", "direction", "source", "destination", "is_group", "command", "data_len", "crc_ok", "raw", "start_ns", "end_ns", "events"} {
		if _, ok := fields[key]; !ok {
			t.Errorf("JSON is missing %q: %s", key, data)
		}
	}
	if fields["timestamp"] != "2026-03-01T09:00:00Z" {
		t.Errorf("timestamp = %v", fields["timestamp"])
	}
}

func TestMetricsSink(t *testing.T) {
	metrics := &fakeMetrics{}
	sink := NewMetricsSink(metrics)

	res := decodeGroupWrite(t)
	if err := sink.Handle(context.Background(), res); err != nil {
		t.Fatalf("Handle() error = %v", err)
	}
	if err := sink.Handle(context.Background(), shortResult(knx.Inbound, "BUSY")); err != nil {
		t.Fatalf("Handle() error = %v", err)
	}
	if err := sink.ReportStats(context.Background(), knx.Inbound, knx.Stats{Telegrams: 1}); err != nil {
		t.Fatalf("ReportStats() error = %v", err)
	}

	tm := metrics.telegrams[0]
	if tm.Direction != "rx" || tm.Command != "VAL WRITE" || !tm.CRCValid || !tm.IsGroup ||
		tm.DataLength != 1 || tm.Events != 6 || tm.RawLength != 9 {
		t.Errorf("telegram metric = %+v", tm)
	}
	if metrics.controls[0].Label != "BUSY" {
		t.Errorf("control metric = %+v", metrics.controls[0])
	}
	if metrics.sessions[0].Telegrams != 1 || metrics.sessions[0].Direction != "rx" {
		t.Errorf("session metric = %+v", metrics.sessions[0])
	}
}
