package iso7816

import (
	"fmt"
	"strings"

	"github.com/gregLibert/menkyo-reader/pkg/tlv"
)

// READ BINARY (INS 'B0'):
// Reads Ne bytes of the current transparent EF starting at a 15-bit offset.
// With bit 8 of P1 clear, P1-P2 hold the offset. With bit 8 set, bits 5-1
// of P1 carry a short EF identifier and P2 the offset (not used here).

// ReadBinary reads ne bytes at offset in the currently selected EF.
func ReadBinary(cla Class, offset uint16, ne int) *CommandAPDU {
	return NewCommandAPDU(
		cla,
		mustInstruction(INS_READ_BINARY),
		byte(offset>>8)&0x7F,
		byte(offset),
		nil,
		ne,
	)
}

// ReadBinaryResult is the content returned by a READ BINARY command.
type ReadBinaryResult struct {
	Offset uint16
	Data   []byte
}

// NewReadBinaryResult pairs a successful response with the offset it was read from.
func NewReadBinaryResult(offset uint16, resp *ResponseAPDU) (*ReadBinaryResult, error) {
	if resp == nil {
		return nil, fmt.Errorf("no response")
	}
	if !resp.Status.IsSuccess() {
		return nil, fmt.Errorf("read binary failed: %s", resp.Status.Verbose())
	}
	return &ReadBinaryResult{Offset: offset, Data: resp.Data}, nil
}

// Describe returns a multi-line dump of the content. BER-TLV content is
// decoded when it parses, otherwise the raw bytes are shown.
func (r *ReadBinaryResult) Describe() string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "READ BINARY @%04X (%d bytes)\n", r.Offset, len(r.Data))

	if desc, err := tlv.Describe(r.Data); err == nil && desc != "" {
		sb.WriteString(desc)
		return sb.String()
	}

	fmt.Fprintf(&sb, "  Raw: %X\n", r.Data)
	return sb.String()
}
