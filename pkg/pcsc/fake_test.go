package pcsc

import (
	"fmt"
	"sync"
	"time"

	"github.com/ebfe/scard"
)

type fakeCard struct {
	atr          []byte
	sent         [][]byte
	dispositions []scard.Disposition
}

func (f *fakeCard) Status() (*scard.CardStatus, error) {
	return &scard.CardStatus{Atr: f.atr}, nil
}

func (f *fakeCard) Transmit(cmd []byte) ([]byte, error) {
	f.sent = append(f.sent, cmd)
	return []byte{0x90, 0x00}, nil
}

func (f *fakeCard) Disconnect(d scard.Disposition) error {
	f.dispositions = append(f.dispositions, d)
	return nil
}

// fakeContext replays one scripted list of reader states per poll.
type fakeContext struct {
	mu       sync.Mutex
	readers  []string
	listErr  error
	polls    []map[string]scard.ReaderState
	pollErrs []error
	seen     [][]scard.ReaderState
	card     *fakeCard
	connects []string
	protos   []scard.Protocol
	released bool
}

func (f *fakeContext) ListReaders() ([]string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.readers, f.listErr
}

func (f *fakeContext) GetStatusChange(rs []scard.ReaderState, _ time.Duration) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	input := make([]scard.ReaderState, len(rs))
	copy(input, rs)
	f.seen = append(f.seen, input)

	if len(f.pollErrs) > 0 {
		err := f.pollErrs[0]
		f.pollErrs = f.pollErrs[1:]
		if err != nil {
			return fmt.Errorf("failed to get status change: %w", err)
		}
	}
	if len(f.polls) == 0 {
		return fmt.Errorf("failed to get status change: %w", scard.ErrTimeout)
	}

	next := f.polls[0]
	f.polls = f.polls[1:]
	for i := range rs {
		if st, ok := next[rs[i].Reader]; ok {
			rs[i].EventState = st.EventState
			rs[i].Atr = st.Atr
		}
	}
	return nil
}

func (f *fakeContext) Connect(reader string, _ scard.ShareMode, proto scard.Protocol) (ScardCard, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.connects = append(f.connects, reader)
	f.protos = append(f.protos, proto)
	return f.card, nil
}

func (f *fakeContext) Release() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.released = true
	return nil
}

func present(atr []byte) scard.ReaderState {
	return scard.ReaderState{EventState: scard.StateChanged | scard.StatePresent, Atr: atr}
}

func empty() scard.ReaderState {
	return scard.ReaderState{EventState: scard.StateChanged | scard.StateEmpty}
}
