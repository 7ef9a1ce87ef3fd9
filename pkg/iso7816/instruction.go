package iso7816

import (
	"fmt"

	"github.com/gregLibert/menkyo-reader/pkg/bits"
)

// Instruction Byte (INS) Logic according to ISO/IEC 7816-4.
//
// Bit 1 of an interindustry INS often flags a BER-TLV data field
// (READ BINARY B0 vs B1). INS values 6X and 9X are reserved for the
// transport layer and are rejected.

// InsCode is a typed representation of the instruction byte.
type InsCode byte

// Instruction codes used by the enrollment reader. The reader-side codes
// (0x00, 0xC2) only have this meaning under CLA FF.
const (
	INS_READER_DIRECT   InsCode = 0x00 // FF 00: reader escape / direct FeliCa command
	INS_VERIFY          InsCode = 0x20
	INS_SELECT          InsCode = 0xA4
	INS_READ_BINARY     InsCode = 0xB0
	INS_READ_BINARY_BER InsCode = 0xB1
	INS_READ_RECORD     InsCode = 0xB2
	INS_GET_RESPONSE    InsCode = 0xC0
	INS_MANAGE_SESSION  InsCode = 0xC2 // FF C2: PC/SC transparent session
	INS_GET_DATA        InsCode = 0xCA
	INS_UPDATE_BINARY   InsCode = 0xD6
)

var insNames = map[InsCode]string{
	INS_READER_DIRECT:   "READER DIRECT",
	INS_VERIFY:          "VERIFY",
	INS_SELECT:          "SELECT",
	INS_READ_BINARY:     "READ BINARY",
	INS_READ_BINARY_BER: "READ BINARY (BER-TLV)",
	INS_READ_RECORD:     "READ RECORD",
	INS_GET_RESPONSE:    "GET RESPONSE",
	INS_MANAGE_SESSION:  "MANAGE SESSION",
	INS_GET_DATA:        "GET DATA",
	INS_UPDATE_BINARY:   "UPDATE BINARY",
}

func (i InsCode) String() string {
	if name, ok := insNames[i]; ok {
		return name
	}
	return fmt.Sprintf("InsCode(0x%02X)", byte(i))
}

// Instruction represents the parsed ISO 7816-4 Instruction byte (INS).
type Instruction struct {
	Raw      InsCode
	IsBERTLV bool
}

// NewInstruction creates an Instruction object with validation.
func NewInstruction(ins InsCode) (Instruction, error) {
	highNibble := byte(ins) & 0xF0
	if highNibble == 0x60 || highNibble == 0x90 {
		return Instruction{}, fmt.Errorf("invalid INS 0x%02X: 6X and 9X are reserved", byte(ins))
	}

	return Instruction{
		Raw:      ins,
		IsBERTLV: bits.IsSet(byte(ins), 1),
	}, nil
}

// mustInstruction is for the package's own constructors, whose codes are known valid.
func mustInstruction(ins InsCode) Instruction {
	i, err := NewInstruction(ins)
	if err != nil {
		panic(err)
	}
	return i
}

// Verbose returns a human-readable description of the instruction.
func (i Instruction) Verbose() string {
	return fmt.Sprintf("INS: 0x%02X | Command: %s", byte(i.Raw), i.Raw)
}
