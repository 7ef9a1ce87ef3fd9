// Package session runs APDU exchanges against one inserted card.
//
// A Session is opened on a CardHandle, records every exchange in an
// iso7816.Trace and is closed exactly once, whatever happened in between.
// It performs no retries and no automatic GET RESPONSE chaining: each
// Transmit is a single round trip.
package session

import (
	"errors"
	"fmt"
	"sync"

	"github.com/gregLibert/menkyo-reader/pkg/iso7816"
	"github.com/sirupsen/logrus"
)

// CardHandle is the hardware side of an inserted card, as handed over by
// the reader monitor.
type CardHandle interface {
	// ATR returns the Answer-To-Reset captured at insertion.
	ATR() []byte
	Connect() error
	Transmit(cmd []byte) ([]byte, error)
	Disconnect() error
}

// Session is one card conversation. It is not safe for concurrent use,
// except for Close which may be called from any goroutine.
type Session struct {
	handle CardHandle
	atr    []byte
	log    *logrus.Entry

	mu     sync.Mutex
	closed bool
	trace  iso7816.Trace
}

// Option configures a Session.
type Option func(*Session)

// WithLogger sets the entry used for per-exchange debug logs.
func WithLogger(l *logrus.Entry) Option {
	return func(s *Session) { s.log = l }
}

// Open connects to the card behind h and captures its ATR.
func Open(h CardHandle, opts ...Option) (*Session, error) {
	if h == nil {
		return nil, &TransportError{Op: "connect", Err: errors.New("no card handle")}
	}

	s := &Session{handle: h, log: logrus.WithField("component", "session")}
	for _, o := range opts {
		o(s)
	}

	if err := h.Connect(); err != nil {
		return nil, &TransportError{Op: "connect", Err: err}
	}

	atr := h.ATR()
	s.atr = append([]byte(nil), atr...)
	s.log.WithField("atr", fmt.Sprintf("%X", s.atr)).Debug("card session opened")
	return s, nil
}

// ATR returns a copy of the Answer-To-Reset.
func (s *Session) ATR() []byte {
	return append([]byte(nil), s.atr...)
}

// Transmit sends cmd and splits the reply into data and status bytes.
func (s *Session) Transmit(cmd []byte) (data []byte, sw1, sw2 byte, err error) {
	resp, err := s.exchange(cmd)
	if err != nil {
		return nil, 0, 0, err
	}
	return resp.Data, resp.Status.SW1(), resp.Status.SW2(), nil
}

// Send encodes cmd and transmits it.
func (s *Session) Send(cmd *iso7816.CommandAPDU) (*iso7816.ResponseAPDU, error) {
	raw, err := cmd.Bytes()
	if err != nil {
		return nil, fmt.Errorf("encode %s: %w", cmd.Instruction.Raw, err)
	}
	return s.exchange(raw)
}

func (s *Session) exchange(cmd []byte) (*iso7816.ResponseAPDU, error) {
	s.mu.Lock()
	closed := s.closed
	s.mu.Unlock()
	if closed {
		return nil, &TransportError{Op: "transmit", Err: ErrClosed}
	}

	raw, err := s.handle.Transmit(cmd)
	var resp *iso7816.ResponseAPDU
	if err == nil {
		resp, err = iso7816.ParseResponseAPDU(raw)
	}

	tx := iso7816.Transaction{Command: append([]byte(nil), cmd...), Response: resp}
	if err != nil {
		err = &TransportError{Op: "transmit", Err: err}
		tx.Err = err
	}

	s.mu.Lock()
	s.trace = append(s.trace, tx)
	s.mu.Unlock()

	s.log.Debug(tx.String())
	return resp, err
}

// Last returns the most recent exchange, or nil before the first one.
func (s *Session) Last() *iso7816.Transaction {
	s.mu.Lock()
	defer s.mu.Unlock()
	last := s.trace.Last()
	if last == nil {
		return nil
	}
	tx := *last
	return &tx
}

// Trace returns a copy of every exchange so far.
func (s *Session) Trace() iso7816.Trace {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append(iso7816.Trace(nil), s.trace...)
}

// Closed reports whether Close has been called.
func (s *Session) Closed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closed
}

// Close disconnects the card. Only the first call reaches the hardware,
// later calls return nil.
func (s *Session) Close() error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil
	}
	s.closed = true
	s.mu.Unlock()

	if err := s.handle.Disconnect(); err != nil {
		return &TransportError{Op: "disconnect", Err: err}
	}
	s.log.Debug("card session closed")
	return nil
}
