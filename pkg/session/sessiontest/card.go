// Package sessiontest provides a scripted CardHandle for tests.
package sessiontest

import (
	"errors"
	"fmt"
	"sync"

	"github.com/gregLibert/menkyo-reader/pkg/tlv"
)

// ErrNoScript is returned for commands the card was not scripted to answer.
var ErrNoScript = errors.New("no scripted reply")

// Card answers commands from a table keyed by the command hex. It is safe
// for concurrent use.
type Card struct {
	Atr []byte

	// ConnectErr and DisconnectErr are returned by the matching calls.
	ConnectErr    error
	DisconnectErr error

	// Default is the reply for unscripted commands. When nil they fail
	// with ErrNoScript.
	Default []byte

	mu          sync.Mutex
	replies     map[string][]byte
	failures    map[string]error
	sent        [][]byte
	connects    int
	disconnects int
}

// NewCard returns a card presenting atr (hex).
func NewCard(atr string) *Card {
	return &Card{
		Atr:      tlv.Hex(atr),
		replies:  make(map[string][]byte),
		failures: make(map[string]error),
	}
}

func key(cmd []byte) string {
	return fmt.Sprintf("%X", cmd)
}

func normalize(hexCmd string) string {
	return key(tlv.Hex(hexCmd))
}

// Reply scripts the raw response (data followed by SW1 SW2) for cmd.
func (c *Card) Reply(cmd, resp string) *Card {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.replies[normalize(cmd)] = tlv.Hex(resp)
	delete(c.failures, normalize(cmd))
	return c
}

// Fail scripts a transport failure for cmd.
func (c *Card) Fail(cmd string, err error) *Card {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.failures[normalize(cmd)] = err
	return c
}

func (c *Card) ATR() []byte { return c.Atr }

func (c *Card) Connect() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.connects++
	return c.ConnectErr
}

func (c *Card) Transmit(cmd []byte) ([]byte, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.sent = append(c.sent, append([]byte(nil), cmd...))

	k := key(cmd)
	if err, ok := c.failures[k]; ok {
		return nil, err
	}
	if r, ok := c.replies[k]; ok {
		return append([]byte(nil), r...), nil
	}
	if c.Default != nil {
		return append([]byte(nil), c.Default...), nil
	}
	return nil, fmt.Errorf("%w: %s", ErrNoScript, k)
}

func (c *Card) Disconnect() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.disconnects++
	return c.DisconnectErr
}

// Sent returns the commands received so far, as uppercase hex.
func (c *Card) Sent() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]string, len(c.sent))
	for i, s := range c.sent {
		out[i] = key(s)
	}
	return out
}

// Connects returns how many times Connect was called.
func (c *Card) Connects() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.connects
}

// Disconnects returns how many times Disconnect was called.
func (c *Card) Disconnects() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.disconnects
}
