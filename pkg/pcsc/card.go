package pcsc

import (
	"errors"
	"sync"

	"github.com/ebfe/scard"
)

// ErrNotConnected is returned by Transmit before Connect or after Disconnect.
var ErrNotConnected = errors.New("card not connected")

// Card is a card present in a reader. It implements session.CardHandle.
type Card struct {
	ctx    ScardContext
	reader string

	mu   sync.Mutex
	atr  []byte
	card ScardCard
}

func newCard(ctx ScardContext, reader string, atr []byte) *Card {
	return &Card{ctx: ctx, reader: reader, atr: append([]byte(nil), atr...)}
}

// Reader returns the name of the reader holding the card.
func (c *Card) Reader() string { return c.reader }

// ATR returns the Answer-To-Reset, refreshed on Connect.
func (c *Card) ATR() []byte {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]byte(nil), c.atr...)
}

// Connect opens a shared T=0/T=1 connection. Connecting twice is a no-op.
func (c *Card) Connect() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.card != nil {
		return nil
	}

	card, err := c.ctx.Connect(c.reader, scard.ShareShared, scard.ProtocolT0|scard.ProtocolT1)
	if err != nil {
		return err
	}
	c.card = card

	if st, err := card.Status(); err == nil && len(st.Atr) > 0 {
		c.atr = append([]byte(nil), st.Atr...)
	}
	return nil
}

func (c *Card) Transmit(cmd []byte) ([]byte, error) {
	c.mu.Lock()
	card := c.card
	c.mu.Unlock()
	if card == nil {
		return nil, ErrNotConnected
	}
	return card.Transmit(cmd)
}

// Disconnect leaves the card powered so other applications can use it.
// It is a no-op when not connected.
func (c *Card) Disconnect() error {
	c.mu.Lock()
	card := c.card
	c.card = nil
	c.mu.Unlock()
	if card == nil {
		return nil
	}
	return card.Disconnect(scard.LeaveCard)
}
