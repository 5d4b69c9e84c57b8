// Package recorder persists decoded telegrams to SQLite.
//
// Every telegram is appended to the telegrams log, and the devices and
// group addresses it mentions are upserted into knx_devices and
// knx_group_addresses. Over time this builds an inventory of what is
// active on the bus without any manual configuration.
//
// The schema lives in the migrations package.
package recorder

import (
	"context"
	"database/sql"
	"encoding/hex"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/nerrad567/gray-logic-busdecode/internal/knx"
)

// ErrNotStarted is returned when recording before Start or after Stop.
var ErrNotStarted = errors.New("recorder: not started")

// responseCommand marks a group address as answering reads.
const responseCommand = "VAL RESPONSE"

// Logger is the logging interface used by the recorder.
type Logger interface {
	Info(msg string, args ...any)
}

// Recorder writes telegrams and discovered addresses to the database.
//
// Thread Safety: All methods are safe for concurrent use.
type Recorder struct {
	db     *sql.DB
	logger Logger
	now    func() time.Time

	mu            sync.Mutex
	telegramStmt  *sql.Stmt
	controlStmt   *sql.Stmt
	deviceStmt    *sql.Stmt
	groupAddrStmt *sql.Stmt
}

// New creates a recorder. The database must already be migrated.
func New(db *sql.DB) *Recorder {
	return &Recorder{
		db:  db,
		now: time.Now,
	}
}

// SetLogger sets the logger for the recorder.
func (r *Recorder) SetLogger(logger Logger) {
	r.logger = logger
}

// Start prepares the insert and upsert statements.
// Calling Start on a started recorder is a no-op.
func (r *Recorder) Start(ctx context.Context) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.telegramStmt != nil {
		return nil
	}

	stmts := []struct {
		dst   **sql.Stmt
		query string
	}{
		{&r.telegramStmt, `
			INSERT INTO telegrams (recorded_at, direction, start_ns, end_ns, source, destination,
				is_group, command, data_len, payload_hex, crc_ok, raw_hex)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		`},
		{&r.controlStmt, `
			INSERT INTO control_events (recorded_at, direction, label, start_ns, end_ns)
			VALUES (?, ?, ?, ?, ?)
		`},
		{&r.deviceStmt, `
			INSERT INTO knx_devices (individual_address, first_seen, last_seen, message_count)
			VALUES (?, ?, ?, 1)
			ON CONFLICT(individual_address) DO UPDATE SET
				last_seen = excluded.last_seen,
				message_count = message_count + 1
		`},
		{&r.groupAddrStmt, `
			INSERT INTO knx_group_addresses (group_address, first_seen, last_seen, message_count, last_command, has_read_response)
			VALUES (?, ?, ?, 1, ?, ?)
			ON CONFLICT(group_address) DO UPDATE SET
				last_seen = excluded.last_seen,
				message_count = message_count + 1,
				last_command = excluded.last_command,
				has_read_response = MAX(has_read_response, excluded.has_read_response)
		`},
	}

	for _, s := range stmts {
		stmt, err := r.db.PrepareContext(ctx, s.query)
		if err != nil {
			r.closeStatements()
			return fmt.Errorf("preparing recorder statement: %w", err)
		}
		*s.dst = stmt
	}

	r.log("telegram recorder started")
	return nil
}

// Stop closes the prepared statements. Calling Stop twice is safe.
func (r *Recorder) Stop() {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.telegramStmt == nil {
		return
	}
	r.closeStatements()
	r.log("telegram recorder stopped")
}

// closeStatements releases every prepared statement. Caller holds mu.
func (r *Recorder) closeStatements() {
	for _, s := range []**sql.Stmt{&r.telegramStmt, &r.controlStmt, &r.deviceStmt, &r.groupAddrStmt} {
		if *s != nil {
			(*s).Close() //nolint:errcheck // Best effort on shutdown
			*s = nil
		}
	}
}

// RecordTelegram stores one decoded telegram and upserts the addresses it
// mentions, all in one transaction.
//
// The source device is recorded unless it is 0.0.0. A group destination is
// recorded as a group address; an individual destination is recorded as a
// device unless it is the 0.0.0 broadcast.
//
// Parameters:
//   - ctx: Context for cancellation
//   - t: Decoded telegram
//
// Returns:
//   - error: ErrNotStarted, or a database error
func (r *Recorder) RecordTelegram(ctx context.Context, t *knx.Telegram) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.telegramStmt == nil {
		return ErrNotStarted
	}

	now := r.now().Unix()

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("starting transaction: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck // Rollback is no-op after commit

	if _, err := tx.StmtContext(ctx, r.telegramStmt).ExecContext(ctx,
		now,
		t.Direction.String(),
		t.Start.Nanoseconds(),
		t.End.Nanoseconds(),
		t.Source.String(),
		t.Destination,
		boolInt(t.IsGroup),
		t.Command,
		t.DataLength,
		hex.EncodeToString(t.Payload),
		boolInt(t.CRCValid),
		hex.EncodeToString(t.Raw),
	); err != nil {
		return fmt.Errorf("recording telegram: %w", err)
	}

	devStmt := tx.StmtContext(ctx, r.deviceStmt)
	if !t.Source.IsZero() {
		if _, err := devStmt.ExecContext(ctx, t.Source.String(), now, now); err != nil {
			return fmt.Errorf("recording source device: %w", err)
		}
	}

	switch {
	case t.IsGroup:
		isResponse := t.Command == responseCommand
		if _, err := tx.StmtContext(ctx, r.groupAddrStmt).ExecContext(ctx,
			t.Destination, now, now, t.Command, boolInt(isResponse),
		); err != nil {
			return fmt.Errorf("recording group address: %w", err)
		}
	case t.Destination != "0.0.0":
		if _, err := devStmt.ExecContext(ctx, t.Destination, now, now); err != nil {
			return fmt.Errorf("recording destination device: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("committing telegram: %w", err)
	}
	return nil
}

// RecordControl stores a single-byte control code such as "ACK CONTI".
func (r *Recorder) RecordControl(ctx context.Context, dir knx.Direction, label string, start, end time.Duration) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.controlStmt == nil {
		return ErrNotStarted
	}

	if _, err := r.controlStmt.ExecContext(ctx,
		r.now().Unix(), dir.String(), label, start.Nanoseconds(), end.Nanoseconds(),
	); err != nil {
		return fmt.Errorf("recording control event: %w", err)
	}
	return nil
}

// boolInt maps a bool to SQLite's 0/1.
func boolInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

// log logs an info message if logger is set.
func (r *Recorder) log(msg string, keysAndValues ...any) {
	if r.logger != nil {
		r.logger.Info(msg, keysAndValues...)
	}
}
