// Package config loads the reader settings from YAML, an optional .env file
// and the environment, in that order of precedence (last wins).
package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

type Config struct {
	Reader   ReaderConfig   `yaml:"reader"`
	Log      LogConfig      `yaml:"log"`
	Enroll   EnrollConfig   `yaml:"enroll"`
	Dispatch DispatchConfig `yaml:"dispatch"`
	Alerts   AlertsConfig   `yaml:"alerts"`
}

type ReaderConfig struct {
	// Index picks one reader from the filtered list, -1 watches all.
	Index        int           `yaml:"index"`
	Name         string        `yaml:"name"`
	ID           string        `yaml:"id"`
	PollInterval time.Duration `yaml:"poll_interval"`
}

type LogConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
	File   string `yaml:"file"`
}

type EnrollConfig struct {
	Backend       string `yaml:"backend"`
	NATSURL       string `yaml:"nats_url"`
	NATSToken     string `yaml:"nats_token"`
	SubjectPrefix string `yaml:"subject_prefix"`
}

type DispatchConfig struct {
	// ContinueOnFault keeps processing the rest of a notification after a
	// card failed. Off by default: a fault drops the rest of the batch.
	ContinueOnFault bool `yaml:"continue_on_fault"`
}

type AlertsConfig struct {
	RecoveryStart string `yaml:"recovery_start"`
	Tone          string `yaml:"tone"`
	Completed     string `yaml:"completed"`
	Retap         string `yaml:"retap"`
}

const (
	BackendLog  = "log"
	BackendNATS = "nats"
)

// Default returns the settings used when nothing overrides them.
func Default() *Config {
	return &Config{
		Reader: ReaderConfig{
			Index:        -1,
			ID:           "default",
			PollInterval: time.Second,
		},
		Log: LogConfig{
			Level:  "info",
			Format: "text",
		},
		Enroll: EnrollConfig{
			Backend:       BackendLog,
			NATSURL:       "nats://localhost:4222",
			SubjectPrefix: "menkyo",
		},
		Alerts: AlertsConfig{
			RecoveryStart: "再起動を開始します",
			Tone:          "nc302124",
			Completed:     "再起動が完了しました",
			Retap:         "再度ＩＣをかざしてください",
		},
	}
}

// Load reads path over the defaults. Unknown keys are an error. An empty
// path returns the defaults.
func Load(path string) (*Config, error) {
	cfg := Default()
	if path == "" {
		return cfg, nil
	}

	content, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}

	dec := yaml.NewDecoder(bytes.NewReader(content))
	dec.KnownFields(true)
	if err := dec.Decode(cfg); err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("parse config yaml: %w", err)
	}
	return cfg, nil
}

// LoadEnvFile loads path into the process environment without overriding
// variables already set. A missing file is not an error.
func LoadEnvFile(path string) error {
	if path == "" {
		return nil
	}
	if err := godotenv.Load(path); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil
		}
		return fmt.Errorf("load env file: %w", err)
	}
	return nil
}

// ApplyEnv overrides the settings with the environment read through lookup
// (os.LookupEnv in production).
func (c *Config) ApplyEnv(lookup func(string) (string, bool)) error {
	str := map[string]*string{
		"READER_ID":      &c.Reader.ID,
		"READER_NAME":    &c.Reader.Name,
		"ENROLL_BACKEND": &c.Enroll.Backend,
		"NATS_URL":       &c.Enroll.NATSURL,
		"NATS_TOKEN":     &c.Enroll.NATSToken,
		"LOG_LEVEL":      &c.Log.Level,
	}
	for key, dst := range str {
		if v, ok := lookup(key); ok && v != "" {
			*dst = v
		}
	}

	if v, ok := lookup("READER_INDEX"); ok && v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("READER_INDEX: %w", err)
		}
		c.Reader.Index = n
	}
	return nil
}

// Validate checks the settings are usable.
func (c *Config) Validate() error {
	if c.Reader.PollInterval <= 0 {
		return fmt.Errorf("config.reader.poll_interval must be > 0")
	}
	if c.Reader.Index < -1 {
		return fmt.Errorf("config.reader.index must be >= -1")
	}
	if strings.TrimSpace(c.Reader.ID) == "" {
		return fmt.Errorf("config.reader.id is required")
	}

	switch c.Log.Format {
	case "text", "json":
	default:
		return fmt.Errorf("config.log.format must be text or json, got %q", c.Log.Format)
	}

	switch c.Enroll.Backend {
	case BackendLog:
	case BackendNATS:
		if strings.TrimSpace(c.Enroll.NATSURL) == "" {
			return fmt.Errorf("config.enroll.nats_url is required for the nats backend")
		}
		if strings.TrimSpace(c.Enroll.SubjectPrefix) == "" {
			return fmt.Errorf("config.enroll.subject_prefix is required for the nats backend")
		}
	default:
		return fmt.Errorf("config.enroll.backend must be %s or %s, got %q", BackendLog, BackendNATS, c.Enroll.Backend)
	}
	return nil
}
