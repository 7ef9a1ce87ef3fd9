package tlv

import (
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/moov-io/bertlv"
)

type describedFile struct {
	Version []byte `tlv:"C1" fmt:"ascii"`
	Expiry  []byte `tlv:"C3" fmt:"bcd"`
	Raw     []byte
	Empty   []byte `tlv:"C9"`
	Unknown []bertlv.TLV
}

func TestWriteStructFields(t *testing.T) {
	f := describedFile{
		Version: []byte{'0', '0', '8', 0x00},
		Expiry:  Hex("20290115"),
		Raw:     Hex("CAFE"),
		Unknown: []bertlv.TLV{{Tag: "DF01", Value: Hex("1234")}},
	}

	tests := []struct {
		name  string
		input interface{}
		want  []string
	}{
		{
			name:  "Pointer",
			input: &f,
			want: []string{
				`    - CD.Version (C1): 30303800 ("008.")`,
				"    - CD.Expiry (C3): 20290115 (BCD)",
				"    - CD.Raw: CAFE",
				"    - CD.Unknown Tag DF01: 1234",
			},
		},
		{
			name:  "Nil pointer",
			input: (*describedFile)(nil),
			want:  []string{""},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var sb strings.Builder
			WriteStructFields(&sb, "CD", tt.input)
			if diff := cmp.Diff(tt.want, strings.Split(sb.String(), "\n")); diff != "" {
				t.Errorf("Mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestWriteStructFields_Separator(t *testing.T) {
	var sb strings.Builder
	sb.WriteString("header")
	WriteStructFields(&sb, "CD", describedFile{Raw: Hex("01")})
	if got := sb.String(); got != "header\n    - CD.Raw: 01" {
		t.Errorf("got %q", got)
	}
}

func TestDescribe(t *testing.T) {
	got, err := Describe(Hex("C1 01 08", "A5 03 8201FF"))
	if err != nil {
		t.Fatalf("Describe failed: %v", err)
	}
	want := "  C1: 08\n  A5:\n    82: FF\n"
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("Describe mismatch (-want +got):\n%s", diff)
	}

	if _, err := Describe(Hex("C1 09 00")); err == nil {
		t.Error("expected error for truncated data")
	}
}

func TestMakeSafeASCII(t *testing.T) {
	if got := MakeSafeASCII([]byte{0x41, 0x42, 0x00, 0x1F, 0x7F, 0x43}); got != "AB...C" {
		t.Errorf("MakeSafeASCII() = %q, want %q", got, "AB...C")
	}
}
