package monitor

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/nerrad567/gray-logic-busdecode/internal/knx"
	"github.com/nerrad567/gray-logic-busdecode/internal/source"
)

// resultBuffer decouples the reader from slow sinks.
const resultBuffer = 256

// Sink receives every non-empty result in stream order.
type Sink interface {
	Handle(ctx context.Context, res knx.Result) error
}

// StatsReporter is implemented by sinks that publish session counters.
type StatsReporter interface {
	ReportStats(ctx context.Context, dir knx.Direction, stats knx.Stats) error
}

// Logger is the logging interface used by the monitor.
type Logger interface {
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}

// SinkFunc adapts a function to Sink.
type SinkFunc func(ctx context.Context, res knx.Result) error

// Handle implements Sink.
func (f SinkFunc) Handle(ctx context.Context, res knx.Result) error {
	return f(ctx, res)
}

// Monitor couples one source with one session.
//
// Thread Safety: Stats and SinkErrors may be called while Run is active.
type Monitor struct {
	src   source.Source
	sinks []Sink

	logger        Logger
	statsInterval time.Duration

	mu         sync.Mutex
	session    *knx.Session
	sinkErrors uint64
}

// New creates a monitor reading src with the given decoder options.
func New(src source.Source, opts knx.Options, sinks ...Sink) *Monitor {
	return &Monitor{
		src:     src,
		sinks:   sinks,
		session: knx.NewSession(opts),
	}
}

// SetLogger sets the logger for the monitor.
func (m *Monitor) SetLogger(logger Logger) {
	m.logger = logger
}

// SetStatsInterval enables periodic stats reports. Zero disables them; a
// final report is always sent when Run returns.
func (m *Monitor) SetStatsInterval(d time.Duration) {
	m.statsInterval = d
}

// Run reads the source until it ends, ctx is cancelled, or the source fails.
//
// Results already read when ctx is cancelled are still delivered to the
// sinks.
//
// Parameters:
//   - ctx: Context for cancellation
//
// Returns:
//   - error: nil at end of stream or on cancellation, otherwise the source error
func (m *Monitor) Run(ctx context.Context) error {
	eg, egCtx := errgroup.WithContext(ctx)
	results := make(chan knx.Result, resultBuffer)
	done := make(chan struct{})

	eg.Go(func() error {
		defer close(results)
		return m.read(egCtx, results)
	})

	eg.Go(func() error {
		defer close(done)
		// Sinks see a context that survives cancellation so buffered
		// results are flushed.
		m.dispatch(context.WithoutCancel(egCtx), results)
		return nil
	})

	if m.statsInterval > 0 {
		eg.Go(func() error {
			ticker := time.NewTicker(m.statsInterval)
			defer ticker.Stop()
			for {
				select {
				case <-done:
					return nil
				case <-ticker.C:
					m.reportStats(egCtx)
				}
			}
		})
	}

	m.log("monitor started", "direction", m.session.Options().Direction.String())
	err := eg.Wait()
	m.warnPending()
	m.reportStats(context.WithoutCancel(ctx))

	stats := m.Stats()
	m.log("monitor stopped",
		"bytes", stats.Bytes,
		"telegrams", stats.Telegrams,
		"short_commands", stats.ShortCommands,
		"crc_failures", stats.CRCFailures,
		"malformed", stats.Malformed,
	)
	return err
}

// read pulls bytes and feeds the session.
func (m *Monitor) read(ctx context.Context, results chan<- knx.Result) error {
	for {
		b, err := m.src.Next(ctx)
		if err != nil {
			if errors.Is(err, io.EOF) || errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
				return nil
			}
			return fmt.Errorf("reading source: %w", err)
		}

		m.mu.Lock()
		res, err := m.session.Feed(b)
		m.mu.Unlock()

		if err != nil {
			m.warn("malformed telegram discarded", "error", err, "end", b.End)
			continue
		}
		if res.IsEmpty() {
			continue
		}

		select {
		case results <- res:
		case <-ctx.Done():
			return nil
		}
	}
}

// warnPending logs a telegram the stream ended in the middle of. Its bytes
// are never decoded.
func (m *Monitor) warnPending() {
	m.mu.Lock()
	since, ok := m.session.Pending()
	buffered := m.session.Assembler().ByteCount()
	m.mu.Unlock()

	if ok {
		m.warn("partial telegram abandoned", "start", since, "bytes", buffered)
	}
}

// dispatch hands each result to every sink in order.
func (m *Monitor) dispatch(ctx context.Context, results <-chan knx.Result) {
	for res := range results {
		for _, sink := range m.sinks {
			if err := sink.Handle(ctx, res); err != nil {
				m.mu.Lock()
				m.sinkErrors++
				m.mu.Unlock()
				m.logError("sink failed", "sink", fmt.Sprintf("%T", sink), "error", err)
			}
		}
	}
}

// reportStats sends a stats snapshot to every StatsReporter sink.
func (m *Monitor) reportStats(ctx context.Context) {
	stats := m.Stats()
	dir := m.session.Options().Direction
	for _, sink := range m.sinks {
		r, ok := sink.(StatsReporter)
		if !ok {
			continue
		}
		if err := r.ReportStats(ctx, dir, stats); err != nil {
			m.logError("stats report failed", "sink", fmt.Sprintf("%T", sink), "error", err)
		}
	}
}

// Stats returns a snapshot of the session counters.
func (m *Monitor) Stats() knx.Stats {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.session.Stats()
}

// SinkErrors returns how many sink calls have failed.
func (m *Monitor) SinkErrors() uint64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.sinkErrors
}

func (m *Monitor) log(msg string, args ...any) {
	if m.logger != nil {
		m.logger.Info(msg, args...)
	}
}

func (m *Monitor) warn(msg string, args ...any) {
	if m.logger != nil {
		m.logger.Warn(msg, args...)
	}
}

func (m *Monitor) logError(msg string, args ...any) {
	if m.logger != nil {
		m.logger.Error(msg, args...)
	}
}
