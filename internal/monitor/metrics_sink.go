package monitor

import (
	"context"
	"time"

	"github.com/nerrad567/gray-logic-busdecode/internal/infrastructure/influxdb"
	"github.com/nerrad567/gray-logic-busdecode/internal/knx"
)

// MetricsWriter is the part of influxdb.Client the metrics sink uses.
type MetricsWriter interface {
	WriteTelegram(m influxdb.TelegramMetric)
	WriteControl(m influxdb.ControlMetric)
	WriteSession(m influxdb.SessionMetric)
}

// MetricsSink writes one point per telegram or control code.
type MetricsSink struct {
	w   MetricsWriter
	now func() time.Time
}

// NewMetricsSink creates a sink writing through w.
func NewMetricsSink(w MetricsWriter) *MetricsSink {
	return &MetricsSink{w: w, now: time.Now}
}

// Handle implements Sink. Writes are batched by the client, so Handle never
// fails.
func (s *MetricsSink) Handle(_ context.Context, res knx.Result) error {
	dir := res.Direction.String()

	switch {
	case res.Telegram != nil:
		t := res.Telegram
		s.w.WriteTelegram(influxdb.TelegramMetric{
			Time:       s.now(),
			Direction:  dir,
			Command:    t.Command,
			CRCValid:   t.CRCValid,
			IsGroup:    t.IsGroup,
			DataLength: t.DataLength,
			Events:     len(t.Events),
			RawLength:  len(t.Raw),
		})
	case res.Short != "":
		s.w.WriteControl(influxdb.ControlMetric{
			Time:      s.now(),
			Direction: dir,
			Label:     res.Short,
		})
	}
	return nil
}

// ReportStats implements StatsReporter.
func (s *MetricsSink) ReportStats(_ context.Context, dir knx.Direction, stats knx.Stats) error {
	s.w.WriteSession(influxdb.SessionMetric{
		Time:          s.now(),
		Direction:     dir.String(),
		Bytes:         stats.Bytes,
		Telegrams:     stats.Telegrams,
		ShortCommands: stats.ShortCommands,
		CRCFailures:   stats.CRCFailures,
		Malformed:     stats.Malformed,
		Abandoned:     stats.Abandoned,
	})
	return nil
}
