// Package logging configures logrus for the reader process and provides
// the operator message log used by the dispatcher.
package logging

import (
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/gregLibert/menkyo-reader/pkg/config"
	"github.com/sirupsen/logrus"
)

// Setup applies cfg to logger. When cfg.File is set, output goes to both
// stderr and the file, which is opened in append mode. The returned closer
// releases the file and is never nil.
func Setup(logger *logrus.Logger, cfg config.LogConfig) (io.Closer, error) {
	level, err := logrus.ParseLevel(cfg.Level)
	if err != nil {
		return nopCloser{}, fmt.Errorf("log level: %w", err)
	}
	logger.SetLevel(level)

	switch cfg.Format {
	case "json":
		logger.SetFormatter(&logrus.JSONFormatter{})
	default:
		logger.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	}

	if cfg.File == "" {
		logger.SetOutput(os.Stderr)
		return nopCloser{}, nil
	}

	if dir := filepath.Dir(cfg.File); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nopCloser{}, fmt.Errorf("create log folder: %w", err)
		}
	}
	f, err := os.OpenFile(cfg.File, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return nopCloser{}, fmt.Errorf("open log file: %w", err)
	}
	logger.SetOutput(io.MultiWriter(os.Stderr, f))
	return f, nil
}

type nopCloser struct{}

func (nopCloser) Close() error { return nil }

// MessageLogger writes operator messages as info entries.
type MessageLogger struct {
	log *logrus.Entry
}

// NewMessageLogger returns a MessageLogger on log, or on the standard
// logger when log is nil.
func NewMessageLogger(log *logrus.Entry) *MessageLogger {
	if log == nil {
		log = logrus.WithField("component", "operator")
	}
	return &MessageLogger{log: log}
}

// LogMessage records text. It never fails.
func (m *MessageLogger) LogMessage(text string) {
	m.log.Info(text)
}
