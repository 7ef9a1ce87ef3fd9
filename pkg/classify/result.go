package classify

import (
	"fmt"

	"github.com/gregLibert/menkyo-reader/pkg/license"
)

// CardType is the category a card was classified into.
type CardType string

const (
	CarInspection CardType = "car_inspection"
	DriverLicense CardType = "driver_license"
	Other         CardType = "other"
)

func (t CardType) String() string { return string(t) }

// Result is the outcome of one classification.
type Result struct {
	Type CardType
	ATR  []byte

	// UID is the reply of the final GET DATA, whatever its status.
	UID []byte

	// DueDate is the uppercase hex of the common data element, license only.
	DueDate string

	// Attempts is the remaining PIN tries, license only. Empty when the
	// card did not report a counter.
	Attempts string

	// CommonData is the decoded due-date record, nil when it did not decode.
	CommonData *license.CommonData
}

// Detail returns the "<due date>,<attempts>" string handed to enrollment.
func (r *Result) Detail() string {
	return fmt.Sprintf("%s,%s", r.DueDate, r.Attempts)
}
