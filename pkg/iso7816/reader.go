package iso7816

// READER PSEUDO-APDUs (PC/SC Part 3):
// Commands with CLA 'FF' never reach the card. The reader firmware answers
// them itself, or translates them into the contactless protocol in use.
//
// - GET DATA (INS 'CA'): P1 '00' returns the card UID, P1 '01' the
//   historical bytes / proprietary identifier.
// - MANAGE SESSION (INS 'C2'): opens and closes a transparent session,
//   the data field is a list of session data objects.
// - DIRECT (INS '00'): forwards the data field to the contactless chip
//   as-is, used here for FeliCa polling.

// Session data object tags carried by MANAGE SESSION.
const (
	SessionStart    byte = 0x81
	SessionEnd      byte = 0x82
	SessionTurnOnRF byte = 0x84
)

// GET DATA selectors (P1).
const (
	GetDataUID        byte = 0x00
	GetDataHistorical byte = 0x01
)

// GetData asks the reader for card identification data. The full short Le
// is requested, which reads as 00 on the wire.
func GetData(p1 byte) *CommandAPDU {
	return NewCommandAPDU(ReaderClass(), mustInstruction(INS_GET_DATA), p1, 0x00, nil, MaxShortLe)
}

// ManageSession sends a transparent session command with the given data objects.
func ManageSession(objects ...byte) *CommandAPDU {
	return NewCommandAPDU(ReaderClass(), mustInstruction(INS_MANAGE_SESSION), 0x00, 0x00, objects, 0)
}

// StartSession opens a transparent session (FF C2 00 00 01 81).
func StartSession() *CommandAPDU {
	return ManageSession(SessionStart)
}

// StartTransparent turns the RF field on inside the session (FF C2 00 00 02 84 00).
func StartTransparent() *CommandAPDU {
	return ManageSession(SessionTurnOnRF, 0x00)
}

// EndSession closes the transparent session (FF C2 00 00 02 82 00).
func EndSession() *CommandAPDU {
	return ManageSession(SessionEnd, 0x00)
}

// ReaderDirect forwards data to the contactless chip.
func ReaderDirect(p1, p2 byte, data []byte) *CommandAPDU {
	return NewCommandAPDU(ReaderClass(), mustInstruction(INS_READER_DIRECT), p1, p2, data, 0)
}
