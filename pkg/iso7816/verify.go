package iso7816

// VERIFY (INS '20'):
// Sent without a data field, VERIFY does not present a PIN. The card only
// reports the verification status of the referenced PIN: 9000 when already
// verified, 63CX with X remaining tries otherwise.

// PINLocal1 is the first DF-specific PIN reference (P2, bit 8 set).
const PINLocal1 byte = 0x81

// VerifyRetryCounter builds the empty VERIFY used to read the counter of ref.
func VerifyRetryCounter(cla Class, ref byte) *CommandAPDU {
	return NewCommandAPDU(cla, mustInstruction(INS_VERIFY), 0x00, ref, nil, 0)
}
