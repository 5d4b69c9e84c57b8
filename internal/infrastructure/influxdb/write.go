package influxdb

import (
	"time"

	"github.com/influxdata/influxdb-client-go/v2/api/write"
)

// Measurement names.
const (
	measurementTelegram = "knx_telegram"
	measurementControl  = "knx_control"
	measurementSession  = "knx_session"
)

// CRC tag values.
const (
	crcOK  = "ok"
	crcBad = "bad"
)

// TelegramMetric describes one decoded telegram for the knx_telegram
// measurement. Tags stay low-cardinality; the destination is deliberately
// not a tag.
type TelegramMetric struct {
	Time       time.Time
	Direction  string
	Command    string
	CRCValid   bool
	IsGroup    bool
	DataLength int
	Events     int
	RawLength  int
}

// ControlMetric describes one single-byte control code.
type ControlMetric struct {
	Time      time.Time
	Direction string
	Label     string
}

// SessionMetric is a snapshot of a decoding session's counters.
type SessionMetric struct {
	Time          time.Time
	Direction     string
	Bytes         uint64
	Telegrams     uint64
	ShortCommands uint64
	CRCFailures   uint64
	Malformed     uint64
	Abandoned     uint64
}

// WriteTelegram writes a knx_telegram point.
//
// The write is non-blocking; data is batched and sent asynchronously.
func (c *Client) WriteTelegram(m TelegramMetric) {
	c.writePoint(telegramPoint(m))
}

// WriteControl writes a knx_control point.
func (c *Client) WriteControl(m ControlMetric) {
	c.writePoint(controlPoint(m))
}

// WriteSession writes a knx_session point with the session counters.
func (c *Client) WriteSession(m SessionMetric) {
	c.writePoint(sessionPoint(m))
}

// WritePoint writes a custom point with full control over tags and fields.
//
// Parameters:
//   - measurement: The measurement name (table)
//   - tags: Key-value pairs for indexing (low cardinality)
//   - fields: Key-value pairs for the actual data
//   - timestamp: The time for this data point
func (c *Client) WritePoint(measurement string, tags map[string]string, fields map[string]interface{}, timestamp time.Time) {
	c.writePoint(write.NewPoint(measurement, tags, fields, timestamp))
}

// writePoint hands a point to the batching write API when connected.
func (c *Client) writePoint(p *write.Point) {
	if !c.IsConnected() {
		return
	}
	c.writeAPI.WritePoint(p)
}

func telegramPoint(m TelegramMetric) *write.Point {
	crc := crcOK
	if !m.CRCValid {
		crc = crcBad
	}
	command := m.Command
	if command == "" {
		command = "none"
	}

	return write.NewPoint(
		measurementTelegram,
		map[string]string{
			"direction": m.Direction,
			"command":   command,
			"crc":       crc,
			"group":     boolTag(m.IsGroup),
		},
		map[string]interface{}{
			"data_len":   m.DataLength,
			"events":     m.Events,
			"raw_length": m.RawLength,
		},
		pointTime(m.Time),
	)
}

func controlPoint(m ControlMetric) *write.Point {
	return write.NewPoint(
		measurementControl,
		map[string]string{
			"direction": m.Direction,
			"label":     m.Label,
		},
		map[string]interface{}{
			"count": 1,
		},
		pointTime(m.Time),
	)
}

func sessionPoint(m SessionMetric) *write.Point {
	return write.NewPoint(
		measurementSession,
		map[string]string{
			"direction": m.Direction,
		},
		map[string]interface{}{
			"bytes":          m.Bytes,
			"telegrams":      m.Telegrams,
			"short_commands": m.ShortCommands,
			"crc_failures":   m.CRCFailures,
			"malformed":      m.Malformed,
			"abandoned":      m.Abandoned,
		},
		pointTime(m.Time),
	)
}

func boolTag(b bool) string {
	if b {
		return "true"
	}
	return "false"
}

// pointTime defaults a zero time to now.
func pointTime(t time.Time) time.Time {
	if t.IsZero() {
		return time.Now()
	}
	return t
}
