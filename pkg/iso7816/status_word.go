package iso7816

import (
	"fmt"

	"github.com/gregLibert/menkyo-reader/pkg/bits"
)

// Dynamic Status Word Logic:
//
// 1. '61XX': Process completed, XX bytes available through GET RESPONSE.
// 2. '6CXX': Wrong length, XX is the correct Le.
// 3. '63CX': Counter. The lower nibble of SW2 is a counter value, for
//    VERIFY it is the number of remaining tries.

// StatusWord represents the two-byte status response (SW1-SW2).
type StatusWord uint16

// NewStatusWord creates a StatusWord instance from two separate bytes.
func NewStatusWord(sw1, sw2 byte) StatusWord {
	return StatusWord(uint16(sw1)<<8 | uint16(sw2))
}

// SW1 returns the first byte (high byte) of the status word.
func (sw StatusWord) SW1() byte {
	return byte(sw >> 8)
}

// SW2 returns the second byte (low byte) of the status word.
func (sw StatusWord) SW2() byte {
	return byte(sw)
}

// IsCounter checks if the status carries a counter (63CX).
func (sw StatusWord) IsCounter() bool {
	if sw.SW1() != 0x63 {
		return false
	}
	return bits.High(sw.SW2()) == 0x0C
}

// Counter returns X of a 63CX status word.
func (sw StatusWord) Counter() (int, bool) {
	if !sw.IsCounter() {
		return 0, false
	}
	return int(bits.Low(sw.SW2())), true
}

// IsSuccess returns true for 9000 and for 61XX (data still available).
func (sw StatusWord) IsSuccess() bool {
	return sw == SW_NO_ERROR || sw.SW1() == 0x61
}

// IsWarning returns true if the status indicates a warning (62XX or 63XX).
func (sw StatusWord) IsWarning() bool {
	sw1 := sw.SW1()
	return sw1 == 0x62 || sw1 == 0x63
}

// IsError returns true if the status indicates an execution error (64XX to 6FXX).
func (sw StatusWord) IsError() bool {
	sw1 := sw.SW1()
	return sw1 >= 0x64 && sw1 <= 0x6F
}

func (sw StatusWord) String() string {
	if name, ok := statusNames[sw]; ok {
		return name
	}
	return fmt.Sprintf("StatusWord(0x%04X)", uint16(sw))
}

// Verbose returns a human-readable description of the status word.
func (sw StatusWord) Verbose() string {
	if n, ok := sw.Counter(); ok {
		return fmt.Sprintf("[%04X] Warning: counter = %d", uint16(sw), n)
	}

	switch sw.SW1() {
	case 0x61:
		return fmt.Sprintf("[%04X] Process completed, %d bytes available", uint16(sw), sw.SW2())
	case 0x6C:
		return fmt.Sprintf("[%04X] Wrong length, correct Le is %d", uint16(sw), sw.SW2())
	}

	if name, ok := statusNames[sw]; ok {
		return fmt.Sprintf("[%04X] %s", uint16(sw), name)
	}
	return fmt.Sprintf("[%04X] %s", uint16(sw), sw.genericCategoryDescription())
}

// genericCategoryDescription provides a fallback description based on SW1.
func (sw StatusWord) genericCategoryDescription() string {
	switch sw.SW1() {
	case 0x62:
		return "Warning: NV memory unchanged"
	case 0x63:
		return "Warning: NV memory changed"
	case 0x64:
		return "Execution Error: NV memory unchanged"
	case 0x65:
		return "Execution Error: NV memory changed"
	case 0x66:
		return "Execution Error: Security issue"
	case 0x68:
		return "Checking Error: Function not supported"
	case 0x69:
		return "Checking Error: Command not allowed"
	case 0x6A:
		return "Checking Error: Wrong parameters"
	default:
		return "Unknown Status"
	}
}

// Status Word codes defined in ISO/IEC 7816-4 and PC/SC Part 3.
const (
	SW_NO_ERROR             StatusWord = 0x9000
	SW_WARN_EOF_REACHED     StatusWord = 0x6282
	SW_WARN_NV_CHANGED      StatusWord = 0x6300
	SW_WARN_COUNTER_0       StatusWord = 0x63C0
	SW_ERR_EXEC_NO_INFO     StatusWord = 0x6400
	SW_ERR_MEMORY           StatusWord = 0x6581
	SW_ERR_WRONG_LENGTH     StatusWord = 0x6700
	SW_ERR_CHECKING         StatusWord = 0x6800
	SW_ERR_NOT_ALLOWED      StatusWord = 0x6900
	SW_ERR_INCOMPAT_FILE    StatusWord = 0x6981
	SW_ERR_SECURITY         StatusWord = 0x6982
	SW_ERR_AUTH_BLOCKED     StatusWord = 0x6983
	SW_ERR_COND_OF_USE      StatusWord = 0x6985
	SW_ERR_NO_CURRENT_EF    StatusWord = 0x6986
	SW_ERR_FUNC_NOT_SUPP    StatusWord = 0x6A81
	SW_ERR_FILE_NOT_FOUND   StatusWord = 0x6A82
	SW_ERR_RECORD_NOT_FOUND StatusWord = 0x6A83
	SW_ERR_P1P2             StatusWord = 0x6A86
	SW_ERR_REF_NOT_FOUND    StatusWord = 0x6A88
	SW_ERR_WRONG_P1P2       StatusWord = 0x6B00
	SW_ERR_INS_INVALID      StatusWord = 0x6D00
	SW_ERR_CLA_NOT_SUPP     StatusWord = 0x6E00
	SW_ERR_UNKNOWN          StatusWord = 0x6F00
)

var statusNames = map[StatusWord]string{
	SW_NO_ERROR:             "SW_NO_ERROR",
	SW_WARN_EOF_REACHED:     "SW_WARN_EOF_REACHED",
	SW_WARN_NV_CHANGED:      "SW_WARN_NV_CHANGED",
	SW_ERR_EXEC_NO_INFO:     "SW_ERR_EXEC_NO_INFO",
	SW_ERR_MEMORY:           "SW_ERR_MEMORY",
	SW_ERR_WRONG_LENGTH:     "SW_ERR_WRONG_LENGTH",
	SW_ERR_CHECKING:         "SW_ERR_CHECKING",
	SW_ERR_NOT_ALLOWED:      "SW_ERR_NOT_ALLOWED",
	SW_ERR_INCOMPAT_FILE:    "SW_ERR_INCOMPAT_FILE",
	SW_ERR_SECURITY:         "SW_ERR_SECURITY",
	SW_ERR_AUTH_BLOCKED:     "SW_ERR_AUTH_BLOCKED",
	SW_ERR_COND_OF_USE:      "SW_ERR_COND_OF_USE",
	SW_ERR_NO_CURRENT_EF:    "SW_ERR_NO_CURRENT_EF",
	SW_ERR_FUNC_NOT_SUPP:    "SW_ERR_FUNC_NOT_SUPP",
	SW_ERR_FILE_NOT_FOUND:   "SW_ERR_FILE_NOT_FOUND",
	SW_ERR_RECORD_NOT_FOUND: "SW_ERR_RECORD_NOT_FOUND",
	SW_ERR_P1P2:             "SW_ERR_P1P2",
	SW_ERR_REF_NOT_FOUND:    "SW_ERR_REF_NOT_FOUND",
	SW_ERR_WRONG_P1P2:       "SW_ERR_WRONG_P1P2",
	SW_ERR_INS_INVALID:      "SW_ERR_INS_INVALID",
	SW_ERR_CLA_NOT_SUPP:     "SW_ERR_CLA_NOT_SUPP",
	SW_ERR_UNKNOWN:          "SW_ERR_UNKNOWN",
}
