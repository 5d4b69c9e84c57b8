// Package monitor drives a byte source through a decoding session and fans
// the results out to sinks.
//
// One goroutine pulls bytes from the source and feeds the session; a second
// hands every non-empty knx.Result to the sinks in order. When a stats
// interval is set, a third periodically reports session counters to sinks
// that implement StatsReporter.
//
// Sinks:
//   - Printer writes events as text or JSON lines
//   - RecorderSink stores telegrams and control codes in SQLite
//   - MQTTSink publishes JSON messages
//   - MetricsSink writes InfluxDB points
//
// Malformed telegrams and sink failures are logged and counted; they never
// stop the monitor. Run returns nil at the end of the stream or when the
// context is cancelled.
package monitor
