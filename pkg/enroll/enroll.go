// Package enroll delivers classified cards and operator alerts to the
// enrollment backend.
package enroll

import (
	"fmt"

	"github.com/gregLibert/menkyo-reader/pkg/config"
	"github.com/nats-io/nats.go"
	"github.com/sirupsen/logrus"
)

// Backend is what the dispatcher calls. Calls never fail; delivery errors
// are logged by the implementation.
type Backend interface {
	Setup(identifier, cardType, detail string)
	Sound(text string)
	SoundAlert(text string)
}

// LogBackend only logs. It is the default when no broker is configured.
type LogBackend struct {
	log *logrus.Entry
}

// NewLogBackend returns a backend writing every call to log.
func NewLogBackend(log *logrus.Entry) *LogBackend {
	if log == nil {
		log = logrus.WithField("component", "enroll")
	}
	return &LogBackend{log: log}
}

func (b *LogBackend) Setup(identifier, cardType, detail string) {
	b.log.WithFields(logrus.Fields{
		"identifier": identifier,
		"card_type":  cardType,
		"detail":     detail,
	}).Info("setup")
}

func (b *LogBackend) Sound(text string) {
	b.log.WithField("text", text).Info("sound")
}

func (b *LogBackend) SoundAlert(text string) {
	b.log.WithField("text", text).Warn("sound alert")
}

// New builds the backend selected by cfg. The returned close function
// drains the broker connection, if any.
func New(cfg config.EnrollConfig, readerID string, log *logrus.Entry) (Backend, func(), error) {
	switch cfg.Backend {
	case config.BackendNATS:
		conn, err := Connect(cfg.NATSURL, cfg.NATSToken)
		if err != nil {
			return nil, nil, err
		}
		b := NewNATSBackend(conn, cfg.SubjectPrefix, readerID, log)
		return b, func() { _ = conn.Drain() }, nil
	case config.BackendLog, "":
		return NewLogBackend(log), func() {}, nil
	default:
		return nil, nil, fmt.Errorf("unknown enroll backend %q", cfg.Backend)
	}
}

// Connect opens a NATS connection, authenticated with token when set.
func Connect(url, token string) (*nats.Conn, error) {
	opts := []nats.Option{
		nats.Name("menkyo-reader"),
	}
	if token != "" {
		opts = append(opts, nats.Token(token))
	}

	conn, err := nats.Connect(url, opts...)
	if err != nil {
		return nil, fmt.Errorf("nats connect %s: %w", url, err)
	}
	return conn, nil
}
