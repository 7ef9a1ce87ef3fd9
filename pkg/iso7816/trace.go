package iso7816

import (
	"fmt"
	"strings"

	"github.com/gregLibert/menkyo-reader/pkg/tlv"
)

// TRACE:
// Every exchange of a session is recorded as a Transaction: the raw
// command bytes as written to the reader and the parsed reply. A Trace is
// the ordered list of those exchanges for one card, kept for debug logging
// and for tests that assert the exact command sequence.

// Transaction represents a completed Command-Response pair.
type Transaction struct {
	Command  []byte
	Response *ResponseAPDU
	Err      error // transport failure, Response is nil
}

// IsSuccess checks if the transaction ended with a successful status.
// It returns false if the response is missing.
func (t *Transaction) IsSuccess() bool {
	if t.Response == nil {
		return false
	}
	return t.Response.Status.IsSuccess()
}

// String renders the exchange as "> C-APDU < data SW".
func (t *Transaction) String() string {
	switch {
	case t.Err != nil:
		return fmt.Sprintf("> %s < error: %v", tlv.Spaced(t.Command), t.Err)
	case t.Response == nil:
		return fmt.Sprintf("> %s < (no response)", tlv.Spaced(t.Command))
	case len(t.Response.Data) == 0:
		return fmt.Sprintf("> %s < %04X", tlv.Spaced(t.Command), uint16(t.Response.Status))
	default:
		return fmt.Sprintf("> %s < %s %04X", tlv.Spaced(t.Command), tlv.Spaced(t.Response.Data), uint16(t.Response.Status))
	}
}

// Trace is a sequence of transactions in the order they were sent.
type Trace []Transaction

// Last returns the final transaction of the trace.
// Returns nil if the trace is empty.
func (t Trace) Last() *Transaction {
	if len(t) == 0 {
		return nil
	}
	return &t[len(t)-1]
}

// IsSuccess checks if the final transaction in the trace was successful.
func (t Trace) IsSuccess() bool {
	last := t.Last()
	if last == nil {
		return false
	}
	return last.IsSuccess()
}

// String returns one line per transaction.
func (t Trace) String() string {
	lines := make([]string, len(t))
	for i := range t {
		lines[i] = t[i].String()
	}
	return strings.Join(lines, "\n")
}
