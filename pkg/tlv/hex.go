package tlv

import (
	"encoding/hex"
	"fmt"
	"strings"
)

var hexCleaner = strings.NewReplacer(" ", "", "\t", "", "\n", "", ":", "")

// Hex builds a byte slice from hex fragments such as "00 A4 02 0C".
// Whitespace and colons are ignored. It panics on malformed input and is
// meant for literals.
func Hex(parts ...string) []byte {
	clean := hexCleaner.Replace(strings.Join(parts, ""))

	data, err := hex.DecodeString(clean)
	if err != nil {
		panic(fmt.Sprintf("invalid input '%s': %v", clean, err))
	}
	return data
}

// Spaced renders data as uppercase hex bytes separated by spaces.
func Spaced(data []byte) string {
	if len(data) == 0 {
		return ""
	}
	var sb strings.Builder
	sb.Grow(len(data) * 3)
	for i, b := range data {
		if i > 0 {
			sb.WriteByte(' ')
		}
		fmt.Fprintf(&sb, "%02X", b)
	}
	return sb.String()
}
