package classify

import (
	"errors"
	"fmt"

	"github.com/gregLibert/menkyo-reader/pkg/iso7816"
)

// ErrProtocolMismatch matches every *ProtocolError with errors.Is.
var ErrProtocolMismatch = errors.New("protocol mismatch")

// ProtocolError reports a card reply that has the right status but not
// the expected shape.
type ProtocolError struct {
	Step   string
	Status iso7816.StatusWord
	Length int
	Want   int
}

func (e *ProtocolError) Error() string {
	return fmt.Sprintf("%s: %s: got %d bytes with %04X, want %d",
		ErrProtocolMismatch, e.Step, e.Length, uint16(e.Status), e.Want)
}

// Is makes errors.Is(err, ErrProtocolMismatch) hold for any ProtocolError.
func (e *ProtocolError) Is(target error) bool { return target == ErrProtocolMismatch }
