package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/google/uuid"

	"github.com/gazelink-data/gazelink/internal/command"
	"github.com/gazelink-data/gazelink/internal/config"
	"github.com/gazelink-data/gazelink/internal/db"
	"github.com/gazelink-data/gazelink/internal/detect"
	"github.com/gazelink-data/gazelink/internal/dsp"
	"github.com/gazelink-data/gazelink/internal/eventlog"
	"github.com/gazelink-data/gazelink/internal/monitoring"
	"github.com/gazelink-data/gazelink/internal/serialmux"
	"github.com/gazelink-data/gazelink/internal/version"
)

var (
	configPath = flag.String("config", "", "Path to a pipeline config file (.json)")
	devMode    = flag.Bool("dev", false, "Replay fixtures.txt instead of opening the serial device")
	fixtures   = flag.String("fixtures", "fixtures.txt", "Fixture file replayed in dev mode")
	device     = flag.String("device", "", "Serial device path (overrides config)")
	dbPath     = flag.String("db", "", "SQLite database path (overrides config)")
	logDir     = flag.String("log-dir", "", "Event log directory (overrides config)")
)

// sessionHistory adapts the SQLite store to the detector's history
// interface, tagging every row with the run's session ID.
type sessionHistory struct {
	store     *db.Store
	sessionID string
}

func (h *sessionHistory) RecordDetection(kind string, trigger float64, emitted bool, reason string, at time.Time) {
	err := h.store.RecordEvent(db.Event{
		SessionID: h.sessionID,
		Kind:      kind,
		Trigger:   trigger,
		Emitted:   emitted,
		Reason:    reason,
		At:        at,
	})
	if err != nil {
		monitoring.Logf("failed to record event: %v", err)
	}
}

func (h *sessionHistory) RecordParseError(line, message string, at time.Time) {
	err := h.store.RecordParseError(db.ParseError{
		SessionID: h.sessionID,
		Line:      line,
		Error:     message,
		At:        at,
	})
	if err != nil {
		monitoring.Logf("failed to record parse error: %v", err)
	}
}

func main() {
	flag.Parse()

	monitoring.Logf("gazelink %s starting", version.String())

	cfg := config.Empty()
	if *configPath != "" {
		var err error
		cfg, err = config.Load(*configPath)
		if err != nil {
			log.Fatalf("failed to load config: %v", err)
		}
	}
	if *device != "" {
		cfg.SerialDevice = device
	}
	if *dbPath != "" {
		cfg.DatabasePath = dbPath
	}
	if *logDir != "" {
		cfg.EventLogDir = logDir
	}

	var port serialmux.Porter
	if *devMode {
		data, err := os.ReadFile(*fixtures)
		if err != nil {
			log.Fatalf("failed to read fixtures: %v", err)
		}
		sampleRate := cfg.GetSampleRateHz()
		interval := time.Duration(float64(time.Second) / sampleRate)
		port = serialmux.NewReplayPort(data, interval)
	} else {
		var err error
		port, err = serialmux.Open(cfg.GetSerialDevice(), serialmux.PortOptions{
			BaudRate:    cfg.GetBaudRate(),
			ReadTimeout: cfg.GetReadTimeout(),
		})
		if err != nil {
			log.Fatalf("failed to open serial device: %v", err)
		}
	}

	mux := serialmux.New(port)
	defer mux.Close()

	store, err := db.Open(cfg.GetDatabasePath())
	if err != nil {
		log.Fatalf("failed to open database: %v", err)
	}
	defer store.Close()

	session := db.Session{
		ID:         uuid.NewString(),
		StartedAt:  time.Now(),
		Channels:   cfg.GetChannels(),
		SampleRate: cfg.GetSampleRateHz(),
	}
	if err := store.CreateSession(session); err != nil {
		log.Fatalf("failed to record session: %v", err)
	}
	monitoring.Logf("session %s started", session.ID)

	if err := os.MkdirAll(cfg.GetEventLogDir(), 0o755); err != nil {
		log.Fatalf("failed to create event log directory: %v", err)
	}
	events := eventlog.New(cfg.GetEventLogDir())
	defer events.Close()

	sink := command.NewSink(16)
	err = sink.Register("stdout", command.ConsumerFunc(func(cmd command.Command) error {
		_, err := fmt.Printf("%s (%.3f)\n", cmd.Kind, cmd.Trigger)
		return err
	}))
	if err != nil {
		log.Fatalf("failed to register consumer: %v", err)
	}

	detector, err := detect.New(detect.Config{
		Channels:     cfg.GetChannels(),
		WindowLength: cfg.GetWindowLength(),
		Chain: dsp.ChainParams{
			Order:            cfg.GetFilterOrder(),
			BandpassLowHz:    cfg.GetBandpassLowHz(),
			BandpassHighHz:   cfg.GetBandpassHighHz(),
			NotchHz:          cfg.GetNotchHz(),
			NotchHalfWidthHz: cfg.GetNotchHalfWidthHz(),
			SampleRateHz:     cfg.GetSampleRateHz(),
		},
		NeutralMin:       cfg.GetNeutralMin(),
		NeutralMax:       cfg.GetNeutralMax(),
		ExcursionPosMin:  cfg.GetExcursionPosMin(),
		ExcursionPosMax:  cfg.GetExcursionPosMax(),
		ExcursionNegLow:  cfg.GetExcursionNegLow(),
		ExcursionNegHigh: cfg.GetExcursionNegHigh(),
		InitialDelay:     cfg.GetInitialDelay(),
		PrintDelay:       cfg.GetPrintDelay(),
		EyeOpenDuration:  cfg.GetEyeOpenDuration(),
		BlinkCooldown:    cfg.GetBlinkCooldown(),
	}, sink, events, &sessionHistory{store: store, sessionID: session.ID})
	if err != nil {
		log.Fatalf("failed to build detector: %v", err)
	}

	var wg sync.WaitGroup
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Serial port reader: assembles lines and fans them out.
	wg.Add(1)
	go func() {
		defer wg.Done()
		if err := mux.Monitor(ctx); err != nil && err != context.Canceled {
			monitoring.Logf("serial monitor failed: %v", err)
		}
		monitoring.Logf("serial monitor stopped")
	}()

	// Detector: consumes the line stream, drives the arming state machine.
	wg.Add(1)
	go func() {
		defer wg.Done()
		id, lines := mux.Subscribe()
		defer mux.Unsubscribe(id)
		if err := detector.Run(ctx, lines); err != nil && err != context.Canceled {
			monitoring.Logf("detector stopped: %v", err)
		}
		monitoring.Logf("detector routine terminated")
	}()

	// Sink: delivers gated commands to the active consumer.
	wg.Add(1)
	go func() {
		defer wg.Done()
		sink.Run(ctx)
		monitoring.Logf("command sink terminated")
	}()

	wg.Wait()
	monitoring.Logf("shutdown complete")
}
