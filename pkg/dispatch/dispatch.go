// Package dispatch receives reader notifications and runs each inserted
// card through session, classification, identity and enrollment.
//
// Notifications are serialized: Update holds a lock for the whole batch,
// so at most one card session is open and the dedup slot is only touched
// by one card at a time. A failure while probing or reporting moves the
// dispatcher to Fault, which force-closes the card, plays the operator
// alert sequence and returns to Idle. Nothing is restarted.
package dispatch

import (
	"errors"
	"fmt"
	"sync"

	"github.com/gregLibert/menkyo-reader/pkg/classify"
	"github.com/gregLibert/menkyo-reader/pkg/identity"
	"github.com/gregLibert/menkyo-reader/pkg/session"
	"github.com/sirupsen/logrus"
)

// Logger records operator-facing messages. It must not fail.
type Logger interface {
	LogMessage(text string)
}

// Enroller is the enrollment backend. Calls are fire-and-forget.
type Enroller interface {
	Setup(identifier, cardType, detail string)
	Sound(text string)
	SoundAlert(text string)
}

// Alerts are the texts played when a card fails.
type Alerts struct {
	RecoveryStart string
	Tone          string
	Completed     string
	Retap         string
}

// Config holds the dispatcher settings.
type Config struct {
	Alerts Alerts

	// ContinueOnFault keeps processing the rest of a batch after a card
	// failed. The zero value drops the remaining added and removed cards
	// of that notification.
	ContinueOnFault bool

	// OnTransition, when set, is called on every state change with the
	// dispatcher lock held. It must not call back into the Dispatcher.
	OnTransition func(from, to State)
}

// Dispatcher drives the insertion cycle. It implements the reader
// monitor's observer.
type Dispatcher struct {
	cfg        Config
	logger     Logger
	enroller   Enroller
	classifier *classify.Classifier
	dedup      *identity.Dedup
	log        *logrus.Entry

	mu      sync.Mutex
	state   State
	handle  session.CardHandle
	current *session.Session
}

// New returns a Dispatcher. dedup is the process-wide slot and must not be nil.
func New(cfg Config, logger Logger, enroller Enroller, dedup *identity.Dedup, log *logrus.Entry) *Dispatcher {
	if log == nil {
		log = logrus.WithField("component", "dispatch")
	}
	return &Dispatcher{
		cfg:        cfg,
		logger:     logger,
		enroller:   enroller,
		classifier: classify.New(log.WithField("component", "classify")),
		dedup:      dedup,
		log:        log,
	}
}

// State returns the current state.
func (d *Dispatcher) State() State {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.state
}

// Update handles one reader notification. Added cards go through the full
// cycle in order, then removed cards are disconnected.
func (d *Dispatcher) Update(added, removed []session.CardHandle) {
	d.mu.Lock()
	defer d.mu.Unlock()

	for _, h := range added {
		if err := d.process(h); err != nil {
			d.fault(err)
			if !d.cfg.ContinueOnFault {
				d.log.WithField("skipped_removed", len(removed)).Warn("dropping the rest of the notification")
				return
			}
		}
	}

	for _, h := range removed {
		d.logger.LogMessage("remove card")
		d.reset()
		if err := h.Disconnect(); err != nil {
			d.log.WithError(err).Debug("disconnect of removed card failed")
		}
		d.transition(Idle)
	}
}

// process runs one card from Probing to Idle. Panics from collaborators
// are turned into errors so they go through Fault like any other failure.
func (d *Dispatcher) process(h session.CardHandle) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("panic: %v", r)
		}
	}()

	d.transition(Probing)
	d.handle = h

	s, err := session.Open(h, session.WithLogger(d.log.WithField("component", "session")))
	if err != nil {
		return err
	}
	d.current = s
	d.logger.LogMessage("start trans")

	res, err := d.classifier.Classify(s)
	if err != nil {
		return err
	}

	d.transition(Reporting)
	if res.Type == classify.DriverLicense {
		d.logger.LogMessage("driver license")
	} else {
		d.logger.LogMessage("not driver license")
	}

	id := d.dedup.Filter(identity.Derive(res))
	d.logger.LogMessage(id)
	d.enroller.Setup(id, res.Type.String(), res.Detail())
	d.logger.LogMessage("enrolled card")
	d.log.WithFields(logrus.Fields{
		"identity":  id,
		"card_type": res.Type,
		"detail":    res.Detail(),
	}).Info("card enrolled")

	d.transition(Closing)
	d.closeCard(true)
	d.logger.LogMessage("select end")
	d.transition(Idle)
	return nil
}

// fault runs the Fault sequence for err.
func (d *Dispatcher) fault(err error) {
	d.transition(Fault)

	kind := errorKind(err)
	d.log.WithError(err).WithField("kind", kind).Error("card processing failed")
	d.logger.LogMessage(fmt.Sprintf("card processing failed (%s): %v", kind, err))

	if d.current != nil {
		trace := d.current.Trace()
		d.log.WithFields(logrus.Fields{
			"exchanges": len(trace),
			"last_ok":   trace.IsSuccess(),
		}).Debugf("apdu trace of the failed card:\n%s", trace)
	}

	d.enroller.Sound(d.cfg.Alerts.RecoveryStart)
	d.closeCard(false)
	d.enroller.SoundAlert(d.cfg.Alerts.Tone)
	d.enroller.SoundAlert(d.cfg.Alerts.Completed)
	d.enroller.SoundAlert(d.cfg.Alerts.Retap)

	d.transition(Idle)
}

// closeCard releases the current card, best effort. With endSession the
// transparent session is closed first. Errors are logged only.
func (d *Dispatcher) closeCard(endSession bool) {
	defer d.reset()

	if d.current == nil {
		if d.handle != nil {
			if err := d.handle.Disconnect(); err != nil {
				d.log.WithError(err).Debug("force disconnect failed")
			}
		}
		return
	}

	if endSession {
		if _, _, _, err := d.current.Transmit(classify.CmdEndTransparent.Bytes); err != nil {
			d.log.WithError(err).Debug("end transparent session failed")
		}
	}
	if err := d.current.Close(); err != nil {
		d.log.WithError(err).Debug("card disconnect failed")
	}
}

// reset clears the per-insertion state.
func (d *Dispatcher) reset() {
	d.current = nil
	d.handle = nil
}

func (d *Dispatcher) transition(to State) {
	from := d.state
	d.state = to
	d.log.WithFields(logrus.Fields{"from": from, "to": to}).Trace("state change")
	if d.cfg.OnTransition != nil {
		d.cfg.OnTransition(from, to)
	}
}

func errorKind(err error) string {
	switch {
	case errors.Is(err, session.ErrTransport):
		return "transport"
	case errors.Is(err, classify.ErrProtocolMismatch):
		return "protocol"
	default:
		return "unexpected"
	}
}
