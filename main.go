package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/gregLibert/menkyo-reader/pkg/config"
	"github.com/gregLibert/menkyo-reader/pkg/dispatch"
	"github.com/gregLibert/menkyo-reader/pkg/enroll"
	"github.com/gregLibert/menkyo-reader/pkg/identity"
	"github.com/gregLibert/menkyo-reader/pkg/logging"
	"github.com/gregLibert/menkyo-reader/pkg/pcsc"
	log "github.com/sirupsen/logrus"
	"gopkg.in/alecthomas/kingpin.v2"
)

var (
	app        = kingpin.New("menkyo-reader", "Watches PC/SC readers and enrolls inserted driver licenses and vehicle inspection cards.")
	configPath = app.Flag("config", "Path to the YAML configuration file.").Short('c').String()
	envFile    = app.Flag("env-file", "Optional .env file loaded before reading the environment.").Default(".env").String()
	readerName = app.Flag("reader", "Only watch readers whose name contains this text.").String()

	runCmd     = app.Command("run", "Watch the readers and process inserted cards.").Default()
	readersCmd = app.Command("readers", "List the readers that would be watched and exit.")
)

func main() {
	cmd := kingpin.MustParse(app.Parse(os.Args[1:]))

	// the log file is already closed here, report through kingpin on stderr
	if err := execute(cmd); err != nil {
		app.Fatalf("%v", err)
	}
}

// execute runs cmd. Its deferred cleanups complete before main exits.
func execute(cmd string) error {
	cfg, err := loadConfig()
	if err != nil {
		return fmt.Errorf("configuration: %w", err)
	}

	closer, err := logging.Setup(log.StandardLogger(), cfg.Log)
	if err != nil {
		return fmt.Errorf("logging: %w", err)
	}
	defer closer.Close()

	ctx, err := pcsc.EstablishContext()
	if err != nil {
		return fmt.Errorf("pcsc: %w", err)
	}
	monitor := pcsc.NewMonitor(ctx,
		pcsc.Selector{Index: cfg.Reader.Index, Name: cfg.Reader.Name},
		cfg.Reader.PollInterval,
		log.WithField("component", "pcsc"))
	defer func() {
		if err := monitor.Close(); err != nil {
			log.Warnf("failed to release context: %v", err)
		}
	}()

	switch cmd {
	case readersCmd.FullCommand():
		return listReaders(monitor)
	case runCmd.FullCommand():
		if err := serve(cfg, monitor); err != nil {
			return fmt.Errorf("reader stopped: %w", err)
		}
		return nil
	default:
		return fmt.Errorf("unrecognized command %q", cmd)
	}
}

func loadConfig() (*config.Config, error) {
	cfg, err := config.Load(*configPath)
	if err != nil {
		return nil, err
	}
	if err := config.LoadEnvFile(*envFile); err != nil {
		return nil, err
	}
	if err := cfg.ApplyEnv(os.LookupEnv); err != nil {
		return nil, err
	}
	if *readerName != "" {
		cfg.Reader.Name = *readerName
	}
	return cfg, cfg.Validate()
}

func listReaders(m *pcsc.Monitor) error {
	names, err := m.Readers()
	if err != nil {
		return fmt.Errorf("list readers: %w", err)
	}
	if len(names) == 0 {
		fmt.Println("No reader found.")
		return nil
	}
	for i, name := range names {
		fmt.Printf("%d: %s\n", i, name)
	}
	return nil
}

func serve(cfg *config.Config, m *pcsc.Monitor) error {
	readerLog := log.WithField("reader_id", cfg.Reader.ID)

	backend, closeBackend, err := enroll.New(cfg.Enroll, cfg.Reader.ID, readerLog.WithField("component", "enroll"))
	if err != nil {
		return err
	}
	defer closeBackend()

	d := dispatch.New(dispatch.Config{
		Alerts: dispatch.Alerts{
			RecoveryStart: cfg.Alerts.RecoveryStart,
			Tone:          cfg.Alerts.Tone,
			Completed:     cfg.Alerts.Completed,
			Retap:         cfg.Alerts.Retap,
		},
		ContinueOnFault: cfg.Dispatch.ContinueOnFault,
		OnTransition: func(from, to dispatch.State) {
			readerLog.WithField("component", "dispatch").Debugf("state %s -> %s", from, to)
		},
	},
		logging.NewMessageLogger(readerLog.WithField("component", "operator")),
		backend,
		&identity.Dedup{},
		readerLog.WithField("component", "dispatch"))

	sigCtx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	readerLog.WithField("backend", cfg.Enroll.Backend).Info("watching readers")
	return m.Run(sigCtx, d)
}
