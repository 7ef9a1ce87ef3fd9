// Package license decodes the common data element (EF 2F01) of a Japanese
// driver's license card.
//
// The element is a 17-byte BER-TLV sequence:
//
//	C1 03 <format version, 3 bytes>
//	C2 04 <issue date, BCD YYYYMMDD>
//	C3 04 <expiry date, BCD YYYYMMDD>
package license

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/gregLibert/menkyo-reader/pkg/bits"
	"github.com/gregLibert/menkyo-reader/pkg/tlv"
	"github.com/moov-io/bertlv"
)

// CommonDataFID is the file identifier of the common data element.
const CommonDataFID uint16 = 0x2F01

// CommonDataLength is the size of the element as read with READ BINARY.
const CommonDataLength = 17

// JST is the zone the card dates are expressed in.
var JST = time.FixedZone("JST", 9*60*60)

// ErrInvalidDate is returned when a date field is not packed BCD YYYYMMDD.
var ErrInvalidDate = errors.New("invalid BCD date")

// CommonData is the decoded common data element.
type CommonData struct {
	SpecVersion []byte `tlv:"C1" fmt:"ascii"`
	IssueDate   []byte `tlv:"C2" fmt:"bcd"`
	ExpiryDate  []byte `tlv:"C3" fmt:"bcd"`
	Unknown     []bertlv.TLV
}

// ParseCommonData decodes raw and checks that both dates are present.
func ParseCommonData(raw []byte) (*CommonData, error) {
	var cd CommonData
	if err := tlv.Unmarshal(raw, &cd); err != nil {
		return nil, fmt.Errorf("common data: %w", err)
	}
	if len(cd.IssueDate) == 0 || len(cd.ExpiryDate) == 0 {
		return nil, fmt.Errorf("common data: missing date fields")
	}
	return &cd, nil
}

// Version returns the format version as text.
func (cd *CommonData) Version() string {
	return strings.TrimSpace(tlv.MakeSafeASCII(cd.SpecVersion))
}

// Issued returns the issue date at midnight JST.
func (cd *CommonData) Issued() (time.Time, error) {
	return ParseBCDDate(cd.IssueDate)
}

// Expires returns the expiry date at midnight JST.
func (cd *CommonData) Expires() (time.Time, error) {
	return ParseBCDDate(cd.ExpiryDate)
}

// Expired reports whether the license is past its expiry date at now.
// The license stays valid through the whole expiry day.
func (cd *CommonData) Expired(now time.Time) (bool, error) {
	exp, err := cd.Expires()
	if err != nil {
		return false, err
	}
	return !now.In(JST).Before(exp.AddDate(0, 0, 1)), nil
}

// Describe lists the fields for debug logs.
func (cd *CommonData) Describe() string {
	var sb strings.Builder
	sb.WriteString("License common data:")
	tlv.WriteStructFields(&sb, "CommonData", cd)
	return sb.String()
}

// ParseBCDDate decodes a 4-byte packed BCD YYYYMMDD date.
func ParseBCDDate(b []byte) (time.Time, error) {
	if len(b) != 4 {
		return time.Time{}, fmt.Errorf("%w: length %d", ErrInvalidDate, len(b))
	}

	digits := make([]int, 0, 8)
	for _, x := range b {
		hi, lo := bits.High(x), bits.Low(x)
		if hi > 9 || lo > 9 {
			return time.Time{}, fmt.Errorf("%w: %X", ErrInvalidDate, b)
		}
		digits = append(digits, int(hi), int(lo))
	}

	year := digits[0]*1000 + digits[1]*100 + digits[2]*10 + digits[3]
	month := digits[4]*10 + digits[5]
	day := digits[6]*10 + digits[7]

	t := time.Date(year, time.Month(month), day, 0, 0, 0, 0, JST)
	// time.Date normalizes 2024-02-30 into March
	if t.Year() != year || int(t.Month()) != month || t.Day() != day {
		return time.Time{}, fmt.Errorf("%w: %X", ErrInvalidDate, b)
	}
	return t, nil
}
