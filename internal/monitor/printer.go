package monitor

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"sync"
	"time"

	"github.com/nerrad567/gray-logic-busdecode/internal/knx"
)

// Output formats accepted by NewPrinter.
const (
	FormatText = "text"
	FormatJSON = "json"
)

// Printer writes events to an io.Writer, one line per event.
//
// Text lines are "start end  text" with times in seconds. JSON lines carry
// the direction, result type, times in nanoseconds and the text.
type Printer struct {
	mu     sync.Mutex
	w      io.Writer
	format string
}

// eventLine is the JSON form of one event.
type eventLine struct {
	Direction string `json:"direction"`
	Type      string `json:"type"`
	StartNs   int64  `json:"start_ns"`
	EndNs     int64  `json:"end_ns"`
	Text      string `json:"text"`
}

// NewPrinter creates a printer. An empty format means text.
func NewPrinter(w io.Writer, format string) (*Printer, error) {
	switch strings.ToLower(format) {
	case "", FormatText:
		format = FormatText
	case FormatJSON:
		format = FormatJSON
	default:
		return nil, fmt.Errorf("unknown output format %q (expected text or json)", format)
	}
	return &Printer{w: w, format: format}, nil
}

// Handle implements Sink.
func (p *Printer) Handle(_ context.Context, res knx.Result) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	for _, ev := range res.Events {
		if err := p.writeEvent(res.Direction, ev); err != nil {
			return fmt.Errorf("writing event: %w", err)
		}
	}
	return nil
}

func (p *Printer) writeEvent(dir knx.Direction, ev knx.Event) error {
	if p.format == FormatJSON {
		line, err := json.Marshal(eventLine{
			Direction: dir.String(),
			Type:      ev.Kind().String(),
			StartNs:   ev.Start.Nanoseconds(),
			EndNs:     ev.End.Nanoseconds(),
			Text:      ev.String(),
		})
		if err != nil {
			return err
		}
		_, err = fmt.Fprintf(p.w, "%s\n", line)
		return err
	}

	_, err := fmt.Fprintf(p.w, "%s %s  %s\n", seconds(ev.Start), seconds(ev.End), ev.String())
	return err
}

// seconds renders d as seconds with microsecond resolution.
func seconds(d time.Duration) string {
	return fmt.Sprintf("%.6f", d.Seconds())
}
