package recorder

import (
	"context"
	"fmt"
	"time"
)

// Device is a row of knx_devices.
type Device struct {
	Address      string    `json:"address"`
	FirstSeen    time.Time `json:"first_seen"`
	LastSeen     time.Time `json:"last_seen"`
	MessageCount int       `json:"message_count"`
}

// GroupAddress is a row of knx_group_addresses.
type GroupAddress struct {
	Address         string    `json:"address"`
	FirstSeen       time.Time `json:"first_seen"`
	LastSeen        time.Time `json:"last_seen"`
	MessageCount    int       `json:"message_count"`
	LastCommand     string    `json:"last_command"`
	HasReadResponse bool      `json:"has_read_response"`
}

// TelegramRow is a row of the telegrams log.
type TelegramRow struct {
	ID          int64         `json:"id"`
	RecordedAt  time.Time     `json:"recorded_at"`
	Direction   string        `json:"direction"`
	Start       time.Duration `json:"start_ns"`
	End         time.Duration `json:"end_ns"`
	Source      string        `json:"source"`
	Destination string        `json:"destination"`
	IsGroup     bool          `json:"is_group"`
	Command     string        `json:"command"`
	DataLength  int           `json:"data_len"`
	PayloadHex  string        `json:"payload"`
	CRCValid    bool          `json:"crc_ok"`
	RawHex      string        `json:"raw"`
}

// Devices returns every discovered device, most recently seen first.
func (r *Recorder) Devices(ctx context.Context) ([]Device, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT individual_address, first_seen, last_seen, message_count
		FROM knx_devices
		ORDER BY last_seen DESC, individual_address
	`)
	if err != nil {
		return nil, fmt.Errorf("querying devices: %w", err)
	}
	defer rows.Close()

	var devices []Device
	for rows.Next() {
		var d Device
		var first, last int64
		if err := rows.Scan(&d.Address, &first, &last, &d.MessageCount); err != nil {
			return nil, fmt.Errorf("scanning device: %w", err)
		}
		d.FirstSeen = time.Unix(first, 0)
		d.LastSeen = time.Unix(last, 0)
		devices = append(devices, d)
	}
	return devices, rows.Err()
}

// GroupAddresses returns every discovered group address, most recently seen
// first.
func (r *Recorder) GroupAddresses(ctx context.Context) ([]GroupAddress, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT group_address, first_seen, last_seen, message_count, last_command, has_read_response
		FROM knx_group_addresses
		ORDER BY last_seen DESC, group_address
	`)
	if err != nil {
		return nil, fmt.Errorf("querying group addresses: %w", err)
	}
	defer rows.Close()

	var gas []GroupAddress
	for rows.Next() {
		var ga GroupAddress
		var first, last int64
		var hasResponse int
		if err := rows.Scan(&ga.Address, &first, &last, &ga.MessageCount, &ga.LastCommand, &hasResponse); err != nil {
			return nil, fmt.Errorf("scanning group address: %w", err)
		}
		ga.FirstSeen = time.Unix(first, 0)
		ga.LastSeen = time.Unix(last, 0)
		ga.HasReadResponse = hasResponse == 1
		gas = append(gas, ga)
	}
	return gas, rows.Err()
}

// RecentTelegrams returns up to limit telegrams, newest first.
func (r *Recorder) RecentTelegrams(ctx context.Context, limit int) ([]TelegramRow, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, recorded_at, direction, start_ns, end_ns, source, destination,
			is_group, command, data_len, payload_hex, crc_ok, raw_hex
		FROM telegrams
		ORDER BY id DESC
		LIMIT ?
	`, limit)
	if err != nil {
		return nil, fmt.Errorf("querying telegrams: %w", err)
	}
	defer rows.Close()

	var out []TelegramRow
	for rows.Next() {
		var t TelegramRow
		var recorded, start, end int64
		var isGroup, crcOK int
		if err := rows.Scan(&t.ID, &recorded, &t.Direction, &start, &end, &t.Source, &t.Destination,
			&isGroup, &t.Command, &t.DataLength, &t.PayloadHex, &crcOK, &t.RawHex); err != nil {
			return nil, fmt.Errorf("scanning telegram: %w", err)
		}
		t.RecordedAt = time.Unix(recorded, 0)
		t.Start = time.Duration(start)
		t.End = time.Duration(end)
		t.IsGroup = isGroup == 1
		t.CRCValid = crcOK == 1
		out = append(out, t)
	}
	return out, rows.Err()
}

// DeviceCount returns the number of discovered devices.
func (r *Recorder) DeviceCount(ctx context.Context) (int, error) {
	return r.count(ctx, "knx_devices")
}

// GroupAddressCount returns the number of discovered group addresses.
func (r *Recorder) GroupAddressCount(ctx context.Context) (int, error) {
	return r.count(ctx, "knx_group_addresses")
}

// TelegramCount returns the number of logged telegrams.
func (r *Recorder) TelegramCount(ctx context.Context) (int, error) {
	return r.count(ctx, "telegrams")
}

// ControlEventCount returns the number of logged control codes.
func (r *Recorder) ControlEventCount(ctx context.Context) (int, error) {
	return r.count(ctx, "control_events")
}

// count runs COUNT(*) on one of the recorder's own tables.
func (r *Recorder) count(ctx context.Context, table string) (int, error) {
	var n int
	err := r.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM "+table).Scan(&n) //nolint:gosec // table is a constant
	return n, err
}
