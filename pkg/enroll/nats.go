package enroll

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

// Subject suffixes appended to the configured prefix.
const (
	SubjectSetup = "setup"
	SubjectSound = "sound"
	SubjectAlert = "alert"
)

// Publisher is the part of *nats.Conn the backend uses.
type Publisher interface {
	Publish(subj string, data []byte) error
}

// Event is the JSON payload published for every call.
type Event struct {
	EventID    string    `json:"event_id"`
	ReaderID   string    `json:"reader_id"`
	Identifier string    `json:"identifier,omitempty"`
	CardType   string    `json:"card_type,omitempty"`
	Detail     string    `json:"detail,omitempty"`
	Text       string    `json:"text,omitempty"`
	Timestamp  time.Time `json:"timestamp"`
}

// NATSBackend publishes events on <prefix>.setup, <prefix>.sound and
// <prefix>.alert.
type NATSBackend struct {
	pub      Publisher
	prefix   string
	readerID string
	log      *logrus.Entry

	now func() time.Time
}

// NewNATSBackend returns a backend publishing through pub under prefix.
func NewNATSBackend(pub Publisher, prefix, readerID string, log *logrus.Entry) *NATSBackend {
	if log == nil {
		log = logrus.WithField("component", "enroll")
	}
	return &NATSBackend{
		pub:      pub,
		prefix:   prefix,
		readerID: readerID,
		log:      log,
		now:      time.Now,
	}
}

func (b *NATSBackend) Setup(identifier, cardType, detail string) {
	b.publish(SubjectSetup, Event{Identifier: identifier, CardType: cardType, Detail: detail})
}

func (b *NATSBackend) Sound(text string) {
	b.publish(SubjectSound, Event{Text: text})
}

func (b *NATSBackend) SoundAlert(text string) {
	b.publish(SubjectAlert, Event{Text: text})
}

func (b *NATSBackend) publish(kind string, ev Event) {
	ev.EventID = uuid.NewString()
	ev.ReaderID = b.readerID
	ev.Timestamp = b.now().UTC()

	subject := b.prefix + "." + kind
	log := b.log.WithFields(logrus.Fields{"subject": subject, "event_id": ev.EventID})

	data, err := json.Marshal(ev)
	if err != nil {
		log.WithError(err).Error("encode event")
		return
	}
	if err := b.pub.Publish(subject, data); err != nil {
		log.WithError(err).Error("publish event")
		return
	}
	log.Debug("event published")
}
