package tlv

import (
	"fmt"
	"reflect"
	"strings"

	"github.com/moov-io/bertlv"
)

// Describe decodes data and returns one indented line per object, for
// debug logs. It returns an error when data is not valid BER-TLV.
func Describe(data []byte) (string, error) {
	packets, err := bertlv.Decode(data)
	if err != nil {
		return "", err
	}
	var sb strings.Builder
	describePackets(&sb, packets, 1)
	return sb.String(), nil
}

func describePackets(sb *strings.Builder, packets []bertlv.TLV, depth int) {
	indent := strings.Repeat("  ", depth)
	for _, p := range packets {
		if len(p.TLVs) > 0 {
			fmt.Fprintf(sb, "%s%s:\n", indent, strings.ToUpper(p.Tag))
			describePackets(sb, p.TLVs, depth+1)
			continue
		}
		fmt.Fprintf(sb, "%s%s: %X\n", indent, strings.ToUpper(p.Tag), p.Value)
	}
}

// WriteStructFields appends one "prefix.Field (tag): value" line per
// non-empty []byte field of s, followed by the Unknown objects. The
// `fmt` struct tag selects the rendering: "ascii", "bcd" or hex (default).
// No trailing newline is written.
func WriteStructFields(sb *strings.Builder, prefix string, s interface{}) {
	v := reflect.ValueOf(s)
	if v.Kind() == reflect.Ptr {
		if v.IsNil() {
			return
		}
		v = v.Elem()
	}
	t := v.Type()

	var lines []string
	for i := 0; i < t.NumField(); i++ {
		f := v.Field(i)
		sf := t.Field(i)

		switch {
		case f.Type() == unknownType:
			for _, p := range f.Interface().([]bertlv.TLV) {
				lines = append(lines, fmt.Sprintf("    - %s.Unknown Tag %s: %X", prefix, strings.ToUpper(p.Tag), rawValue(p)))
			}
		case isByteSlice(f) && f.Len() > 0:
			name := sf.Name
			if tag := sf.Tag.Get("tlv"); tag != "" {
				name = fmt.Sprintf("%s (%s)", name, tag)
			}
			lines = append(lines, fmt.Sprintf("    - %s.%s: %s", prefix, name, formatValue(f.Bytes(), sf.Tag.Get("fmt"))))
		}
	}

	if len(lines) == 0 {
		return
	}
	if sb.Len() > 0 {
		sb.WriteString("\n")
	}
	sb.WriteString(strings.Join(lines, "\n"))
}

func formatValue(data []byte, format string) string {
	switch format {
	case "ascii":
		return fmt.Sprintf("%X (%q)", data, MakeSafeASCII(data))
	case "bcd":
		// packed BCD reads the same as its hex digits
		return fmt.Sprintf("%X (BCD)", data)
	default:
		return fmt.Sprintf("%X", data)
	}
}

// MakeSafeASCII replaces non-printable bytes with '.'.
func MakeSafeASCII(data []byte) string {
	return strings.Map(func(r rune) rune {
		if r >= 32 && r <= 126 {
			return r
		}
		return '.'
	}, string(data))
}
