package iso7816

import (
	"strings"
	"testing"
)

func TestNewInstruction(t *testing.T) {
	tests := []struct {
		name    string
		ins     InsCode
		wantErr bool
		check   func(Instruction) bool
	}{
		{
			name: "Standard SELECT (A4)",
			ins:  0xA4,
			check: func(i Instruction) bool {
				return i.Raw == INS_SELECT && !i.IsBERTLV
			},
		},
		{
			name: "Read Binary BER-TLV (B1)",
			ins:  0b1011_0001,
			check: func(i Instruction) bool {
				return i.Raw == INS_READ_BINARY_BER && i.IsBERTLV
			},
		},
		{
			name: "Reader direct (00)",
			ins:  0x00,
			check: func(i Instruction) bool {
				return i.Raw == INS_READER_DIRECT
			},
		},
		{
			name:    "Invalid INS 6X",
			ins:     0x6A,
			wantErr: true,
		},
		{
			name:    "Invalid INS 9X",
			ins:     0x90,
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := NewInstruction(tt.ins)
			if (err != nil) != tt.wantErr {
				t.Fatalf("NewInstruction(0x%02X) error = %v, wantErr %v", byte(tt.ins), err, tt.wantErr)
			}
			if tt.wantErr {
				return
			}
			if !tt.check(got) {
				t.Errorf("NewInstruction(0x%02X) = %+v, check failed", byte(tt.ins), got)
			}
		})
	}
}

func TestInstruction_Verbose(t *testing.T) {
	tests := []struct {
		ins      InsCode
		contains string
	}{
		{INS_MANAGE_SESSION, "MANAGE SESSION"},
		{INS_GET_DATA, "GET DATA"},
		{0x12, "InsCode(0x12)"},
	}

	for _, tt := range tests {
		i, err := NewInstruction(tt.ins)
		if err != nil {
			t.Fatalf("NewInstruction: %v", err)
		}
		if got := i.Verbose(); !strings.Contains(got, tt.contains) {
			t.Errorf("Verbose(0x%02X) = %q; want containing %q", byte(tt.ins), got, tt.contains)
		}
	}
}
