// Package pcsc connects the dispatcher to PC/SC readers through
// github.com/ebfe/scard: it watches readers for card presence changes and
// hands out card handles that implement session.CardHandle.
package pcsc

import (
	"fmt"
	"time"

	"github.com/ebfe/scard"
)

// ScardCard abstracts scard.Card for testing.
type ScardCard interface {
	Status() (*scard.CardStatus, error)
	Transmit([]byte) ([]byte, error)
	Disconnect(scard.Disposition) error
}

// ScardContext abstracts scard.Context for testing.
type ScardContext interface {
	ListReaders() ([]string, error)
	GetStatusChange([]scard.ReaderState, time.Duration) error
	Connect(string, scard.ShareMode, scard.Protocol) (ScardCard, error)
	Release() error
}

type realContext struct {
	ctx *scard.Context
}

// EstablishContext opens a PC/SC context on the local resource manager.
func EstablishContext() (ScardContext, error) {
	ctx, err := scard.EstablishContext()
	if err != nil {
		return nil, fmt.Errorf("failed to establish scard context: %w", err)
	}
	return &realContext{ctx: ctx}, nil
}

func (r *realContext) ListReaders() ([]string, error) {
	readers, err := r.ctx.ListReaders()
	if err != nil {
		return nil, fmt.Errorf("failed to list readers: %w", err)
	}
	return readers, nil
}

func (r *realContext) GetStatusChange(rs []scard.ReaderState, timeout time.Duration) error {
	if err := r.ctx.GetStatusChange(rs, timeout); err != nil {
		return fmt.Errorf("failed to get status change: %w", err)
	}
	return nil
}

func (r *realContext) Connect(reader string, mode scard.ShareMode, proto scard.Protocol) (ScardCard, error) {
	card, err := r.ctx.Connect(reader, mode, proto)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to reader: %w", err)
	}
	return card, nil
}

func (r *realContext) Release() error {
	if err := r.ctx.Release(); err != nil {
		return fmt.Errorf("failed to release context: %w", err)
	}
	return nil
}
