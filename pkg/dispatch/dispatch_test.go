package dispatch

import (
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gregLibert/menkyo-reader/pkg/identity"
	"github.com/gregLibert/menkyo-reader/pkg/session"
	"github.com/gregLibert/menkyo-reader/pkg/session/sessiontest"
	"github.com/sirupsen/logrus"
	logtest "github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	licenseATR = "3B 88 80 01 00 00 00 00 91 81 C1 00 D8"
	otherATR   = "3B 8F 80 01 80 4F 0C A0 00 00 03 06 11 00 3B 00 00 00 00 42"
	dueDate    = "C1 03 303038 C2 04 20190312 C3 04 20290415"
)

var testAlerts = Alerts{
	RecoveryStart: "recovery start",
	Tone:          "tone",
	Completed:     "completed",
	Retap:         "retap",
}

type call struct {
	Method string
	Args   []string
}

type recorder struct {
	mu       sync.Mutex
	calls    []call
	messages []string
}

func (r *recorder) Setup(identifier, cardType, detail string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.calls = append(r.calls, call{"Setup", []string{identifier, cardType, detail}})
}

func (r *recorder) Sound(text string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.calls = append(r.calls, call{"Sound", []string{text}})
}

func (r *recorder) SoundAlert(text string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.calls = append(r.calls, call{"SoundAlert", []string{text}})
}

func (r *recorder) LogMessage(text string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.messages = append(r.messages, text)
}

func (r *recorder) Calls() []call {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]call(nil), r.calls...)
}

func (r *recorder) count(method string) int {
	n := 0
	for _, c := range r.Calls() {
		if c.Method == method {
			n++
		}
	}
	return n
}

var alertSequence = []call{
	{"Sound", []string{"recovery start"}},
	{"SoundAlert", []string{"tone"}},
	{"SoundAlert", []string{"completed"}},
	{"SoundAlert", []string{"retap"}},
}

func scripted(atr string) *sessiontest.Card {
	return sessiontest.NewCard(atr).
		Reply("FF C2 00 00 01 81", "90 00").
		Reply("FF C2 00 00 02 84 00", "90 00").
		Reply("FF CA 01 00 00", "6A 81").
		Reply("FF 00 50 00 02 FF FF", "90 00").
		Reply("FF CA 00 00 00", "01 02 03 04 90 00").
		Reply("00 A4 00 00", "90 00").
		Reply("00 20 00 81", "63 C3").
		Reply("00 A4 02 0C 02 2F 01", "90 00").
		Reply("00 B0 00 00 11", dueDate+" 90 00").
		Reply("FF C2 00 00 02 82 00", "90 00")
}

func newDispatcher(cfg Config) (*Dispatcher, *recorder, *identity.Dedup) {
	logger, _ := logtest.NewNullLogger()
	rec := &recorder{}
	dedup := &identity.Dedup{}
	if cfg.Alerts == (Alerts{}) {
		cfg.Alerts = testAlerts
	}
	return New(cfg, rec, rec, dedup, logrus.NewEntry(logger)), rec, dedup
}

func handles(cards ...*sessiontest.Card) []session.CardHandle {
	out := make([]session.CardHandle, len(cards))
	for i, c := range cards {
		out[i] = c
	}
	return out
}

func TestUpdate_DriverLicense(t *testing.T) {
	var states []State
	d, rec, dedup := newDispatcher(Config{
		OnTransition: func(_, to State) { states = append(states, to) },
	})
	card := scripted(licenseATR)

	d.Update(handles(card), nil)

	wantID := "3B888001000000009181C100D8" + "C103303038C20420190312C30420290415"
	require.Equal(t, []call{
		{"Setup", []string{wantID, "driver_license", "C103303038C20420190312C30420290415,3"}},
	}, rec.Calls())
	assert.Equal(t, wantID, dedup.Last())
	assert.Equal(t, []State{Probing, Reporting, Closing, Idle}, states)
	assert.Equal(t, Idle, d.State())

	sent := card.Sent()
	assert.Equal(t, "FFC20000028200", sent[len(sent)-1], "select end closes the cycle")
	assert.Equal(t, 1, card.Disconnects())
	assert.Contains(t, rec.messages, wantID)
}

func TestUpdate_OtherCardUsesUID(t *testing.T) {
	d, rec, _ := newDispatcher(Config{})

	d.Update(handles(scripted(otherATR)), nil)

	require.Len(t, rec.Calls(), 1)
	assert.Equal(t, call{"Setup", []string{"01020304", "other", ","}}, rec.Calls()[0])
}

func TestUpdate_DuplicateTapSuppressed(t *testing.T) {
	d, rec, _ := newDispatcher(Config{})

	for i := 0; i < 3; i++ {
		d.Update(handles(scripted(otherATR)), nil)
	}

	var ids []string
	for _, c := range rec.Calls() {
		ids = append(ids, c.Args[0])
	}
	assert.Equal(t, []string{"01020304", "", "01020304"}, ids)
}

func TestUpdate_FaultDuringDueDateRead(t *testing.T) {
	var states []State
	d, rec, dedup := newDispatcher(Config{
		OnTransition: func(_, to State) { states = append(states, to) },
	})
	card := scripted(licenseATR).Fail("00 B0 00 00 11", errors.New("card removed"))

	d.Update(handles(card), nil)

	assert.Zero(t, rec.count("Setup"), "no enrollment on fault")
	assert.Equal(t, alertSequence, rec.Calls(), "alert sequence exactly once")
	assert.Equal(t, []State{Probing, Fault, Idle}, states)
	assert.Equal(t, 1, card.Disconnects(), "session force-closed")
	assert.Empty(t, dedup.Last())

	for _, sent := range card.Sent() {
		assert.NotEqual(t, "FFC20000028200", sent, "no select end after a fault")
	}
}

func TestUpdate_FaultLogsTrace(t *testing.T) {
	logger, hook := logtest.NewNullLogger()
	logger.SetLevel(logrus.DebugLevel)
	rec := &recorder{}
	d := New(Config{Alerts: testAlerts}, rec, rec, &identity.Dedup{}, logrus.NewEntry(logger))
	card := scripted(licenseATR).Fail("00 B0 00 00 11", errors.New("card removed"))

	d.Update(handles(card), nil)

	var dump *logrus.Entry
	for _, e := range hook.AllEntries() {
		if strings.HasPrefix(e.Message, "apdu trace of the failed card") {
			dump = e
		}
	}
	require.NotNil(t, dump, "fault logs the exchanges of the card")
	assert.Equal(t, 8, dump.Data["exchanges"])
	assert.Equal(t, false, dump.Data["last_ok"])
	assert.Contains(t, dump.Message, "> FF C2 00 00 01 81 < 9000")
	assert.Contains(t, dump.Message, "> 00 B0 00 00 11 < error:")
}

func TestUpdate_ProtocolMismatch(t *testing.T) {
	d, rec, _ := newDispatcher(Config{})
	card := scripted(licenseATR).Reply("00 B0 00 00 11", "C1 03 303038 90 00")

	d.Update(handles(card), nil)

	assert.Zero(t, rec.count("Setup"))
	assert.Equal(t, alertSequence, rec.Calls())
	assert.Contains(t, rec.messages[len(rec.messages)-1], "(protocol)")
}

func TestUpdate_ConnectFailure(t *testing.T) {
	d, rec, _ := newDispatcher(Config{})
	card := scripted(licenseATR)
	card.ConnectErr = errors.New("sharing violation")

	d.Update(handles(card), nil)

	assert.Equal(t, alertSequence, rec.Calls())
	assert.Equal(t, 1, card.Disconnects(), "handle force-disconnected")
	assert.Equal(t, Idle, d.State())
}

func TestUpdate_CloseErrorsSwallowed(t *testing.T) {
	d, rec, _ := newDispatcher(Config{})
	card := scripted(otherATR).Fail("FF C2 00 00 02 82 00", errors.New("gone"))
	card.DisconnectErr = errors.New("gone")

	d.Update(handles(card), nil)

	assert.Equal(t, 1, rec.count("Setup"))
	assert.Zero(t, rec.count("Sound"), "closing failures do not fault")
	assert.Equal(t, Idle, d.State())
}

func TestUpdate_PanicIsAFault(t *testing.T) {
	logger, _ := logtest.NewNullLogger()
	rec := &recorder{}
	d := New(Config{Alerts: testAlerts}, rec, panicker{rec}, &identity.Dedup{}, logrus.NewEntry(logger))
	card := scripted(otherATR)

	assert.NotPanics(t, func() { d.Update(handles(card), nil) })
	assert.Equal(t, alertSequence, rec.Calls())
	assert.Equal(t, 1, card.Disconnects())
}

type panicker struct{ *recorder }

func (panicker) Setup(string, string, string) { panic("backend down") }

func TestUpdate_BatchPolicy(t *testing.T) {
	failing := func() *sessiontest.Card {
		return scripted(otherATR).Fail("FF CA 01 00 00", errors.New("removed"))
	}

	t.Run("Default aborts batch", func(t *testing.T) {
		d, rec, _ := newDispatcher(Config{})
		next, gone := scripted(otherATR), scripted(otherATR)

		d.Update(handles(failing(), next), handles(gone))

		assert.Zero(t, rec.count("Setup"))
		assert.Equal(t, 1, rec.count("Sound"), "one fault sequence")
		assert.Empty(t, next.Sent(), "second card not probed")
		assert.Zero(t, gone.Disconnects(), "removed list dropped")
	})

	t.Run("Continue after fault", func(t *testing.T) {
		d, rec, _ := newDispatcher(Config{ContinueOnFault: true})
		next, gone := scripted(otherATR), scripted(otherATR)

		d.Update(handles(failing(), next), handles(gone))

		assert.Equal(t, 1, rec.count("Setup"))
		assert.Equal(t, 1, rec.count("Sound"))
		assert.Equal(t, 1, gone.Disconnects())
	})
}

func TestUpdate_Removed(t *testing.T) {
	d, rec, dedup := newDispatcher(Config{})
	d.Update(handles(scripted(otherATR)), nil)
	card := scripted(otherATR)

	d.Update(nil, handles(card))

	assert.Equal(t, 1, card.Disconnects())
	assert.Equal(t, "01020304", dedup.Last(), "removal does not touch dedup")
	assert.Contains(t, rec.messages, "remove card")
}

// blockingCard holds the due-date read until release is closed.
type blockingCard struct {
	*sessiontest.Card
	reached chan struct{}
	release chan struct{}
}

func (b *blockingCard) Transmit(cmd []byte) ([]byte, error) {
	if len(cmd) == 5 && cmd[0] == 0x00 && cmd[1] == 0xB0 {
		close(b.reached)
		<-b.release
	}
	return b.Card.Transmit(cmd)
}

func TestUpdate_RemovedDuringProbingIsSerialized(t *testing.T) {
	d, rec, dedup := newDispatcher(Config{})
	probing := &blockingCard{
		Card:    scripted(licenseATR),
		reached: make(chan struct{}),
		release: make(chan struct{}),
	}
	other := scripted(otherATR)

	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		d.Update([]session.CardHandle{probing}, nil)
	}()

	<-probing.reached
	removedDone := make(chan struct{})
	go func() {
		defer wg.Done()
		d.Update(nil, handles(other))
		close(removedDone)
	}()

	select {
	case <-removedDone:
		t.Fatal("removed notification ran while a card was probing")
	case <-time.After(50 * time.Millisecond):
	}
	assert.Zero(t, other.Disconnects())

	close(probing.release)
	wg.Wait()

	require.Equal(t, 1, rec.count("Setup"))
	assert.Equal(t, rec.Calls()[0].Args[0], dedup.Last())
	assert.Equal(t, 1, other.Disconnects())
}

func TestState_String(t *testing.T) {
	assert.Equal(t, "probing", Probing.String())
	assert.Equal(t, "fault", Fault.String())
	assert.Equal(t, "unknown", State(42).String())
}
