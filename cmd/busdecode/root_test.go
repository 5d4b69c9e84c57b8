package main

import (
	"errors"
	"testing"
	"time"

	"github.com/nerrad567/gray-logic-busdecode/internal/infrastructure/config"
	"github.com/nerrad567/gray-logic-busdecode/internal/knx"
)

func TestDecoderOptions(t *testing.T) {
	tests := []struct {
		name    string
		cfg     config.DecoderConfig
		want    knx.Options
		wantErr error
	}{
		{
			name: "tx two level",
			cfg:  config.DecoderConfig{Direction: "tx", AddressFormat: "two_level", StaleTimeout: 50 * time.Millisecond},
			want: knx.Options{Direction: knx.Outbound, AddressingMode: knx.TwoLevel, StaleTimeout: 50 * time.Millisecond},
		},
		{
			name: "aliases",
			cfg:  config.DecoderConfig{Direction: "Inbound", AddressFormat: "3"},
			want: knx.Options{Direction: knx.Inbound, AddressingMode: knx.ThreeLevel},
		},
		{
			name:    "unknown direction",
			cfg:     config.DecoderConfig{Direction: "both", AddressFormat: "three_level"},
			wantErr: knx.ErrInvalidDirection,
		},
		{
			name:    "unknown address format",
			cfg:     config.DecoderConfig{Direction: "rx", AddressFormat: "four_level"},
			wantErr: knx.ErrInvalidAddressingMode,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := decoderOptions(tt.cfg)
			if tt.wantErr != nil {
				if !errors.Is(err, tt.wantErr) {
					t.Fatalf("decoderOptions() error = %v, want %v", err, tt.wantErr)
				}
				return
			}
			if err != nil {
				t.Fatalf("decoderOptions() error = %v", err)
			}
			if got != tt.want {
				t.Errorf("decoderOptions() = %+v, want %+v", got, tt.want)
			}
		})
	}
}
