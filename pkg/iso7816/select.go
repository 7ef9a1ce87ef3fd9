package iso7816

import "fmt"

// SELECT (INS 'A4'):
// P1 tells how the file is targeted, P2 what the card returns (bits 4-3)
// and which occurrence is meant (bits 2-1). Driver license cards are
// navigated by file identifier only: MF first, then the EF under it.

// SelectionMethod is the P1 of SELECT.
type SelectionMethod byte

const (
	SelectByFileID         SelectionMethod = 0x00
	SelectChildDF          SelectionMethod = 0x01
	SelectEFUnderCurrentDF SelectionMethod = 0x02
	SelectParentDF         SelectionMethod = 0x03
	SelectByDFName         SelectionMethod = 0x04
)

var selectionNames = map[SelectionMethod]string{
	SelectByFileID:         "by file ID",
	SelectChildDF:          "child DF",
	SelectEFUnderCurrentDF: "EF under current DF",
	SelectParentDF:         "parent DF",
	SelectByDFName:         "by DF name",
}

func (s SelectionMethod) String() string {
	if name, ok := selectionNames[s]; ok {
		return name
	}
	return fmt.Sprintf("SelectionMethod(0x%02X)", byte(s))
}

// FileOccurrence is bits 2-1 of the SELECT P2.
type FileOccurrence byte

const (
	FirstOrOnlyOccurrence FileOccurrence = 0x00
	LastOccurrence        FileOccurrence = 0x01
	NextOccurrence        FileOccurrence = 0x02
	PreviousOccurrence    FileOccurrence = 0x03
)

// SelectionControl is bits 4-3 of the SELECT P2.
type SelectionControl byte

const (
	ReturnFCI    SelectionControl = 0x00
	ReturnFCP    SelectionControl = 0x04
	ReturnFMD    SelectionControl = 0x08
	ReturnNoData SelectionControl = 0x0C
)

// NewSelectCommand builds a SELECT. A command carrying data never asks for
// a response (T=0 cannot send Lc and Le together). Without data the full
// short Le is requested unless ctrl is ReturnNoData.
func NewSelectCommand(cla Class, method SelectionMethod, occ FileOccurrence, ctrl SelectionControl, data []byte) *CommandAPDU {
	ne := 0
	if len(data) == 0 && ctrl != ReturnNoData {
		ne = MaxShortLe
	}
	return NewCommandAPDU(cla, mustInstruction(INS_SELECT), byte(method), byte(ctrl)|byte(occ), data, ne)
}

// SelectMF selects the Master File with a header-only command (00 A4 00 00).
// Driver license cards reject a SELECT MF carrying Le.
func SelectMF(cla Class) *CommandAPDU {
	return NewCommandAPDU(cla, mustInstruction(INS_SELECT), byte(SelectByFileID), 0x00, nil, 0)
}

// SelectEF selects an elementary file under the current DF by its 2-byte
// identifier, without response data (P1 02, P2 0C).
func SelectEF(cla Class, fid uint16) *CommandAPDU {
	return NewSelectCommand(cla, SelectEFUnderCurrentDF, FirstOrOnlyOccurrence, ReturnNoData, []byte{byte(fid >> 8), byte(fid)})
}
