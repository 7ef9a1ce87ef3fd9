package pcsc

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/ebfe/scard"
	"github.com/gregLibert/menkyo-reader/pkg/session"
	"github.com/sirupsen/logrus"
)

// pnpNotification is the pseudo reader PC/SC uses to signal reader changes.
const pnpNotification = `\\?PnP?\Notification`

// Observer receives presence changes, once per poll that saw any.
type Observer interface {
	Update(added, removed []session.CardHandle)
}

// Selector picks the readers to watch.
type Selector struct {
	// Index selects one reader by position in the reader list, -1 for all.
	Index int
	// Name keeps only readers whose name contains it (case-insensitive).
	Name string
}

// Monitor tracks card presence on the selected readers.
type Monitor struct {
	ctx     ScardContext
	sel     Selector
	timeout time.Duration
	log     *logrus.Entry

	states map[string]scard.StateFlag
	cards  map[string]*Card
}

// NewMonitor returns a Monitor blocking up to timeout per poll.
func NewMonitor(ctx ScardContext, sel Selector, timeout time.Duration, log *logrus.Entry) *Monitor {
	if log == nil {
		log = logrus.WithField("component", "pcsc")
	}
	return &Monitor{
		ctx:     ctx,
		sel:     sel,
		timeout: timeout,
		log:     log,
		states:  make(map[string]scard.StateFlag),
		cards:   make(map[string]*Card),
	}
}

// Readers returns the readers the selector keeps.
func (m *Monitor) Readers() ([]string, error) {
	all, err := m.ctx.ListReaders()
	if errors.Is(err, scard.ErrNoReadersAvailable) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return m.sel.filter(all), nil
}

func (s Selector) filter(all []string) []string {
	var named []string
	for _, r := range all {
		if r == pnpNotification || isSAM(r) {
			continue
		}
		if s.Name != "" && !strings.Contains(strings.ToLower(r), strings.ToLower(s.Name)) {
			continue
		}
		named = append(named, r)
	}

	if s.Index < 0 {
		return named
	}
	if s.Index >= len(named) {
		return nil
	}
	return named[s.Index : s.Index+1]
}

// isSAM reports whether the reader is a secure access module slot of a
// dual-interface reader, which never holds an enrollment card.
func isSAM(reader string) bool {
	return strings.Contains(strings.ToUpper(reader), "SAM")
}

// Poll waits for a state change on the selected readers and returns the
// cards that appeared and disappeared. A timeout yields no change.
func (m *Monitor) Poll() (added, removed []session.CardHandle, err error) {
	readers, err := m.Readers()
	if err != nil {
		return nil, nil, err
	}

	// readers that went away take their card with them
	keep := make(map[string]bool, len(readers))
	for _, r := range readers {
		keep[r] = true
	}
	for r, c := range m.cards {
		if !keep[r] {
			removed = append(removed, c)
			delete(m.cards, r)
			delete(m.states, r)
		}
	}

	if len(readers) == 0 {
		return nil, removed, nil
	}

	rs := make([]scard.ReaderState, len(readers))
	for i, r := range readers {
		rs[i] = scard.ReaderState{Reader: r, CurrentState: m.states[r]}
	}

	if err := m.ctx.GetStatusChange(rs, m.timeout); err != nil {
		if errors.Is(err, scard.ErrTimeout) {
			return nil, removed, nil
		}
		return nil, removed, err
	}

	for _, st := range rs {
		m.states[st.Reader] = st.EventState &^ scard.StateChanged
		present := st.EventState&scard.StatePresent != 0 && st.EventState&scard.StateMute == 0
		card, tracked := m.cards[st.Reader]

		switch {
		case present && !tracked:
			c := newCard(m.ctx, st.Reader, st.Atr)
			m.cards[st.Reader] = c
			added = append(added, c)
			m.log.WithFields(logrus.Fields{"reader": st.Reader, "atr": fmt.Sprintf("%X", st.Atr)}).Info("card inserted")
		case !present && tracked:
			delete(m.cards, st.Reader)
			removed = append(removed, card)
			m.log.WithField("reader", st.Reader).Info("card removed")
		}
	}
	return added, removed, nil
}

// Run polls until ctx is done and forwards every change to obs. Poll
// errors are logged and retried after the poll timeout. An Update in
// progress is never interrupted.
func (m *Monitor) Run(ctx context.Context, obs Observer) error {
	for {
		if err := ctx.Err(); err != nil {
			return nil
		}

		added, removed, err := m.Poll()
		if len(added) > 0 || len(removed) > 0 {
			obs.Update(added, removed)
		}
		if err != nil {
			m.log.WithError(err).Warn("reader poll failed")
		}

		// no reader blocked us, wait before asking again
		if err != nil || len(m.states) == 0 {
			select {
			case <-ctx.Done():
				return nil
			case <-time.After(m.timeout):
			}
		}
	}
}

// Close releases the PC/SC context.
func (m *Monitor) Close() error {
	return m.ctx.Release()
}
