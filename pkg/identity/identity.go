// Package identity turns a classification into the identifier handed to
// enrollment, and filters the double insertion some readers report for a
// single tap.
package identity

import (
	"fmt"
	"sync"

	"github.com/gregLibert/menkyo-reader/pkg/classify"
)

// None is the "no identity" sentinel.
const None = ""

// Derive returns the canonical identifier of r: hex(ATR) followed by the
// due date for a driver's license, hex of the UID fallback otherwise.
// Hex is uppercase without separators.
func Derive(r *classify.Result) string {
	if r == nil {
		return None
	}
	if r.Type == classify.DriverLicense {
		return fmt.Sprintf("%X%s", r.ATR, r.DueDate)
	}
	return fmt.Sprintf("%X", r.UID)
}

// Dedup holds the last reported identifier. The zero value is ready to use
// and starts empty.
type Dedup struct {
	mu   sync.Mutex
	last string
}

// Filter returns None when id repeats the previous report, id otherwise.
// The slot keeps what was reported, so a suppressed repeat lets the next
// identical tap through: [A, A, A] reports [A, "", A].
func (d *Dedup) Filter(id string) string {
	d.mu.Lock()
	defer d.mu.Unlock()

	if id == d.last {
		id = None
	}
	d.last = id
	return id
}

// Last returns the current slot value.
func (d *Dedup) Last() string {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.last
}
