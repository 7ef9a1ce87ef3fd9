package iso7816

import (
	"fmt"

	"github.com/gregLibert/menkyo-reader/pkg/bits"
)

// Class Byte (CLA) Structure according to ISO/IEC 7816-4.
//
// Bit 8: Proprietary (1) or Interindustry (0).
// Bit 7: Type of Interindustry (0=First, 1=Further).
// Bit 5: Command Chaining (0=Last/Only, 1=More follow).
//
// 1. First Interindustry Class (00xx xxxx):
//    - Bits 4-3: Secure Messaging.
//    - Bits 2-1: Logical Channel number (0-3).
//
// 2. Further Interindustry Class (01xx xxxx):
//    - Bit 6: Secure Messaging.
//    - Bits 4-1: Logical Channel number minus 4 (channels 4-19).
//
// CLA 0xFF is invalid for the card itself. PC/SC Part 3 reuses it for
// pseudo-APDUs consumed by the reader, so it decodes as the reader class.

// ReaderCLA is the class byte of PC/SC reader pseudo-APDUs.
const ReaderCLA byte = 0xFF

// SecureMessaging defines the security level applied to the APDU.
type SecureMessaging int

const (
	SMNone         SecureMessaging = 0
	SMProprietary  SecureMessaging = 1
	SMHeaderNoProc SecureMessaging = 2
	SMHeaderAuth   SecureMessaging = 3
)

// Class represents the parsed CLA byte.
type Class struct {
	Raw             byte
	IsProprietary   bool
	IsReader        bool // CLA FF, handled by the reader firmware
	IsChained       bool
	SecureMessaging SecureMessaging
	Channel         uint8 // Logical channel number (0-19)
}

// InterindustryClass returns CLA 00: basic channel, no SM, no chaining.
func InterindustryClass() Class {
	return Class{}
}

// ReaderClass returns the PC/SC pseudo-APDU class (CLA FF).
func ReaderClass() Class {
	return Class{Raw: ReaderCLA, IsProprietary: true, IsReader: true}
}

// NewClass creates a Class object by decoding a raw CLA byte.
func NewClass(cla byte) (Class, error) {
	if cla == ReaderCLA {
		return ReaderClass(), nil
	}

	c := Class{Raw: cla}

	if bits.IsSet(cla, 8) {
		c.IsProprietary = true
		return c, nil
	}

	c.IsChained = bits.IsSet(cla, 5)

	if !bits.IsSet(cla, 7) {
		c.SecureMessaging = SecureMessaging(bits.GetRange(cla, 4, 3))
		c.Channel = bits.GetRange(cla, 2, 1)
	} else {
		if bits.IsSet(cla, 6) {
			c.SecureMessaging = SMHeaderNoProc
		}
		c.Channel = bits.GetRange(cla, 4, 1) + 4
	}

	return c, nil
}

// Encode converts the Class object back to its byte representation.
func (c *Class) Encode() (byte, error) {
	if c.IsProprietary {
		return c.Raw, nil
	}

	if c.Channel > 19 {
		return 0, fmt.Errorf("channel %d out of range (max 19)", c.Channel)
	}

	var res byte
	if c.IsChained {
		res = bits.Set(res, 5)
	}

	if c.Channel <= 3 {
		res |= byte(c.SecureMessaging) << 2
		res |= c.Channel
		return res, nil
	}

	if c.SecureMessaging == SMProprietary || c.SecureMessaging == SMHeaderAuth {
		return 0, fmt.Errorf("SM indicator %d not supported for channel %d", c.SecureMessaging, c.Channel)
	}

	res = bits.Set(res, 7)
	if c.SecureMessaging != SMNone {
		res = bits.Set(res, 6)
	}
	res |= c.Channel - 4

	return res, nil
}

// Verbose returns a one-line description of the CLA byte.
func (c Class) Verbose() string {
	switch {
	case c.IsReader:
		return "Class: Reader pseudo-APDU (0xFF)"
	case c.IsProprietary:
		return fmt.Sprintf("Class: Proprietary (0x%02X)", c.Raw)
	}

	chaining := "last"
	if c.IsChained {
		chaining = "chained"
	}
	return fmt.Sprintf("Class: Interindustry | Channel: %d | SM: %d | %s", c.Channel, c.SecureMessaging, chaining)
}
