package session

import (
	"errors"
	"fmt"
)

// ErrTransport matches every *TransportError with errors.Is.
var ErrTransport = errors.New("transport failure")

// ErrClosed is wrapped when the session was already closed.
var ErrClosed = errors.New("session closed")

// TransportError reports a failure of the reader or the link to the card:
// connect, transmit (including a reply shorter than a status word) or
// disconnect.
type TransportError struct {
	Op  string
	Err error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("%s: %s: %v", ErrTransport, e.Op, e.Err)
}

func (e *TransportError) Unwrap() error { return e.Err }

// Is makes errors.Is(err, ErrTransport) hold for any TransportError.
func (e *TransportError) Is(target error) bool { return target == ErrTransport }
