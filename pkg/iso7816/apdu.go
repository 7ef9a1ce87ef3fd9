package iso7816

import (
	"bytes"
	"fmt"
)

// COMMAND APDU (C-APDU):
// Header CLA INS P1 P2, optionally followed by Lc + Data and/or Le.
//
// ENCODING CASES (ISO 7816-3):
// - Case 1: Header only.
// - Case 2: Header + Le.
// - Case 3: Header + Lc + Data.
// - Case 4: Header + Lc + Data + Le.
//
// Extended length is used as soon as Nc > 255 or Ne > 256.
//
// RESPONSE APDU (R-APDU):
// Optional data followed by the mandatory SW1 SW2 trailer.

// APDU Limits according to ISO 7816-3.
const (
	// MaxShortLc is the maximum data length (Nc) encodable in Short Length mode.
	MaxShortLc = 255

	// MaxShortLe is the maximum Ne in Short Length mode. 0x00 encodes 256.
	MaxShortLe = 256

	// MaxExtendedLc is the limit for Lc in Extended mode.
	MaxExtendedLc = 65535

	// MaxExtendedLe is the maximum Ne in Extended mode. 0x0000 encodes 65536.
	MaxExtendedLe = 65536
)

// CommandAPDU represents a command sent to the card or to the reader.
type CommandAPDU struct {
	Class       Class
	Instruction Instruction
	P1, P2      byte
	Data        []byte
	Ne          int // Expected response length (0 means none)
}

// NewCommandAPDU creates a basic command.
func NewCommandAPDU(cla Class, ins Instruction, p1, p2 byte, data []byte, ne int) *CommandAPDU {
	return &CommandAPDU{
		Class:       cla,
		Instruction: ins,
		P1:          p1,
		P2:          p2,
		Data:        data,
		Ne:          ne,
	}
}

// Bytes encodes the CommandAPDU into its byte representation (C-APDU).
func (c *CommandAPDU) Bytes() ([]byte, error) {
	nc := len(c.Data)
	ne := c.Ne

	if nc > MaxExtendedLc {
		return nil, fmt.Errorf("data too long: %d bytes", nc)
	}
	if ne < 0 || ne > MaxExtendedLe {
		return nil, fmt.Errorf("invalid Ne: %d", ne)
	}

	class, err := c.Class.Encode()
	if err != nil {
		return nil, fmt.Errorf("failed to encode Class: %w", err)
	}

	buf := new(bytes.Buffer)
	buf.Write([]byte{class, byte(c.Instruction.Raw), c.P1, c.P2})

	extended := nc > MaxShortLc || ne > MaxShortLe

	if nc > 0 {
		if extended {
			buf.Write([]byte{0x00, byte(nc >> 8), byte(nc)})
		} else {
			buf.WriteByte(byte(nc))
		}
		buf.Write(c.Data)
	}

	if ne > 0 {
		switch {
		case !extended:
			// 256 wraps to 0x00
			buf.WriteByte(byte(ne))
		default:
			// Case 2E needs the 00 marker to tell Le apart from Lc.
			if nc == 0 {
				buf.WriteByte(0x00)
			}
			// 65536 wraps to 0x0000
			buf.Write([]byte{byte(ne >> 8), byte(ne)})
		}
	}

	return buf.Bytes(), nil
}

// String returns a readable representation of the command meta-data.
func (c *CommandAPDU) String() string {
	return fmt.Sprintf("%s | P1: %02X, P2: %02X | Lc: %d | Le: %d",
		c.Instruction.Verbose(), c.P1, c.P2, len(c.Data), c.Ne)
}

// ResponseAPDU represents the reply from the card (R-APDU).
type ResponseAPDU struct {
	Data   []byte
	Status StatusWord
}

// ParseResponseAPDU splits a raw reply into data and status word.
// The input must contain at least 2 bytes (SW1, SW2).
func ParseResponseAPDU(raw []byte) (*ResponseAPDU, error) {
	if len(raw) < 2 {
		return nil, fmt.Errorf("response too short: length %d", len(raw))
	}

	n := len(raw) - 2
	data := make([]byte, n)
	copy(data, raw[:n])

	return &ResponseAPDU{
		Data:   data,
		Status: NewStatusWord(raw[n], raw[n+1]),
	}, nil
}

// String returns a readable representation of the response.
func (r *ResponseAPDU) String() string {
	return fmt.Sprintf("Data (%d bytes) | Status: %s", len(r.Data), r.Status.Verbose())
}
