// Command feeder-device runs the fish feeder daemon.
//
// It drives the servo and button, keeps the feeding schedule in the RTC's
// battery-backed RAM, and serves the binary control protocol on TCP.
// Optional collaborators announce the device on the LAN, set the clock from
// NTP, publish MQTT notifications and expose Prometheus metrics.
//
// Usage:
//
//	feeder-device [flags]
//
// Flags:
//
//	-config string      Configuration file path (YAML)
//	-port int           Listen port (overrides config)
//	-log-level string   Log level: debug, info, warn, error (overrides config)
//	-simulate           Use in-process fakes instead of GPIO and I2C
//	-interactive        Start the interactive console
//	-event-log string   Write the CBOR event log to this path
//	-state-dir string   Directory for persisted state (overrides config)
//	-reset              Clear persisted device state before starting
//
// Examples:
//
//	# Run on a Raspberry Pi with the system config
//	feeder-device -config /etc/fishfeeder/feeder.yaml
//
//	# Try it on a laptop
//	feeder-device -simulate -interactive -log-level debug
package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"sync"
	"syscall"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/fishfeeder/feeder-go/cmd/feeder-device/interactive"
	"github.com/fishfeeder/feeder-go/internal/config"
	"github.com/fishfeeder/feeder-go/pkg/discovery"
	feederlog "github.com/fishfeeder/feeder-go/pkg/log"
	"github.com/fishfeeder/feeder-go/pkg/metrics"
	"github.com/fishfeeder/feeder-go/pkg/notify"
	"github.com/fishfeeder/feeder-go/pkg/persistence"
	"github.com/fishfeeder/feeder-go/pkg/service"
	"github.com/fishfeeder/feeder-go/pkg/servo"
	"github.com/fishfeeder/feeder-go/pkg/timesync"
)

// Flags holds command line overrides.
type Flags struct {
	ConfigFile  string
	Port        int
	LogLevel    string
	Simulate    bool
	Interactive bool
	EventLog    string
	StateDir    string
	Reset       bool
}

var flags Flags

func init() {
	flag.StringVar(&flags.ConfigFile, "config", "", "Configuration file path (YAML)")
	flag.IntVar(&flags.Port, "port", 0, "Listen port (overrides config)")
	flag.StringVar(&flags.LogLevel, "log-level", "", "Log level: debug, info, warn, error")
	flag.BoolVar(&flags.Simulate, "simulate", false, "Use in-process fakes instead of GPIO and I2C")
	flag.BoolVar(&flags.Interactive, "interactive", false, "Start the interactive console")
	flag.StringVar(&flags.EventLog, "event-log", "", "Write the CBOR event log to this path")
	flag.StringVar(&flags.StateDir, "state-dir", "", "Directory for persisted state")
	flag.BoolVar(&flags.Reset, "reset", false, "Clear persisted device state before starting")
}

func main() {
	flag.Parse()

	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "feeder-device: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	out := &switchWriter{w: os.Stderr}
	logger := newLogger(out, cfg.Log)
	slog.SetDefault(logger)

	logger.Info("fish feeder starting",
		"name", cfg.Device.Name,
		"port", cfg.Network.Port,
		"simulate", cfg.Hardware.Simulate)

	if err := os.MkdirAll(cfg.Device.StateDir, 0o755); err != nil {
		return fmt.Errorf("create state dir: %w", err)
	}

	hw, err := openHardware(cfg, logger)
	if err != nil {
		return err
	}
	defer hw.Close()

	// Event log: slog always, CBOR file when configured.
	eventLoggers := []feederlog.Logger{feederlog.NewSlogAdapter(logger.With("component", "events"))}
	if cfg.Log.EventLog != "" {
		fileLogger, err := feederlog.NewFileLogger(cfg.Log.EventLog)
		if err != nil {
			return fmt.Errorf("open event log: %w", err)
		}
		defer fileLogger.Close()
		eventLoggers = append(eventLoggers, fileLogger)
		logger.Info("event log enabled", "path", fileLogger.Path())
	}

	svcConfig := service.DefaultDeviceConfig()
	svcConfig.Name = cfg.Device.Name
	svcConfig.Version = cfg.Device.Version
	svcConfig.ListenAddress = fmt.Sprintf(":%d", cfg.Network.Port)
	svcConfig.ConnTimeout = cfg.Network.ConnTimeout
	svcConfig.PollInterval = cfg.RTC.PollInterval
	svcConfig.Servo = servo.Config{
		StopPulse:     cfg.Servo.StopPulse,
		DispensePulse: cfg.Servo.DispensePulse,
		Settle:        cfg.Servo.Settle,
		Debounce:      cfg.Servo.Debounce,
		ButtonRun:     cfg.Servo.ButtonRun,
		Tick:          cfg.Servo.Tick,
	}
	svcConfig.Logger = logger
	svcConfig.EventLogger = feederlog.NewMultiLogger(eventLoggers...)

	svc, err := service.NewDeviceService(hw.Hardware, svcConfig)
	if err != nil {
		return fmt.Errorf("create device service: %w", err)
	}

	stateStore := persistence.NewDeviceStateStore(filepath.Join(cfg.Device.StateDir, "state.json"))
	if flags.Reset {
		logger.Info("resetting persisted state")
		if err := stateStore.Clear(); err != nil {
			logger.Warn("failed to clear state", "error", err)
		}
	}
	svc.SetStateStore(stateStore)
	svc.OnEvent(func(e service.Event) { logEvent(logger, e) })

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if announcer := newAnnouncer(cfg, logger); announcer.Len() > 0 {
		svc.SetAnnouncer(announcer)
	}

	if cfg.TimeSync.Enabled {
		svc.SetSyncer(timesync.New(hw.RTC, timesync.Config{
			Server:        cfg.TimeSync.Server,
			Timeout:       cfg.TimeSync.Timeout,
			Attempts:      cfg.TimeSync.Attempts,
			RetryInterval: cfg.TimeSync.RetryInterval,
			Logger:        logger,
		}))
	}

	if cfg.MQTT.Enabled {
		notifier, err := newNotifier(ctx, cfg, logger)
		if err != nil {
			logger.Warn("mqtt notifications disabled", "error", err)
		} else {
			svc.SetNotifier(notifier)
		}
	}

	var metricsServer *metrics.Server
	if cfg.Metrics.Enabled {
		reg := prometheus.NewRegistry()
		m, err := metrics.New(reg)
		if err != nil {
			return fmt.Errorf("register metrics: %w", err)
		}
		svc.SetMetrics(m)

		metricsServer, err = metrics.Listen(cfg.Metrics.Address, metrics.Handler(reg, svc.Health), logger)
		if err != nil {
			return fmt.Errorf("metrics listener: %w", err)
		}
	}

	if err := svc.Start(ctx); err != nil {
		return fmt.Errorf("start service: %w", err)
	}
	logger.Info("service started", "state", svc.State().String(), "port", svc.Port())

	var wg sync.WaitGroup
	if metricsServer != nil {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := metricsServer.Serve(ctx); err != nil {
				logger.Error("metrics server failed", "error", err)
			}
		}()
		logger.Info("metrics listening", "addr", metricsServer.Addr().String())
	}

	if flags.Interactive {
		console, err := interactive.New(svc, hw.SimButton)
		if err != nil {
			return fmt.Errorf("create console: %w", err)
		}
		// Route logs through readline so they do not clobber the prompt.
		out.Set(console.Stdout())
		go console.Run(ctx, cancel)
	}

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-sigCh:
		logger.Info("received signal", "signal", sig.String())
	case <-ctx.Done():
	}

	logger.Info("shutting down")
	cancel()

	if err := svc.Stop(); err != nil {
		logger.Error("stopping service", "error", err)
	}
	wg.Wait()

	out.Set(os.Stderr)
	logger.Info("goodbye")
	return nil
}

func loadConfig() (*config.Config, error) {
	cfg := config.Default()
	if flags.ConfigFile != "" {
		loaded, err := config.Load(flags.ConfigFile)
		if err != nil {
			return nil, err
		}
		cfg = loaded
	}

	if flags.Port != 0 {
		cfg.Network.Port = flags.Port
	}
	if flags.LogLevel != "" {
		cfg.Log.Level = flags.LogLevel
	}
	if flags.Simulate {
		cfg.Hardware.Simulate = true
	}
	if flags.EventLog != "" {
		cfg.Log.EventLog = flags.EventLog
	}
	if flags.StateDir != "" {
		cfg.Device.StateDir = flags.StateDir
	}

	if err := config.Validate(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

func newLogger(w io.Writer, cfg config.LogConfig) *slog.Logger {
	opts := &slog.HandlerOptions{Level: cfg.SlogLevel()}
	if cfg.Level == "debug" {
		opts.AddSource = true
	}
	if cfg.Format == "json" {
		return slog.New(slog.NewJSONHandler(w, opts))
	}
	return slog.New(slog.NewTextHandler(w, opts))
}

func newAnnouncer(cfg *config.Config, logger *slog.Logger) *discovery.Group {
	var members []discovery.Announcer
	if cfg.Beacon.Enabled {
		members = append(members, discovery.NewBeacon(discovery.BeaconConfig{
			Group:    cfg.Beacon.Group,
			TTL:      cfg.Beacon.TTL,
			Interval: cfg.Beacon.Interval,
			Logger:   logger,
		}))
	}
	if cfg.MDNS.Enabled {
		adv := discovery.DefaultAdvertiserConfig()
		adv.Interface = cfg.MDNS.Interface
		members = append(members, discovery.NewMDNSAdvertiser(adv))
	}
	return discovery.NewGroup(logger, members...)
}

func newNotifier(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*notify.Notifier, error) {
	device := cfg.MQTT.ClientID
	if device == "" {
		device = cfg.Device.Name
	}
	pub, err := notify.Dial(ctx, notify.MQTTConfig{
		Broker:      cfg.MQTT.Broker,
		ClientID:    cfg.MQTT.ClientID,
		Username:    cfg.MQTT.Username,
		Password:    cfg.MQTT.Password,
		QoS:         cfg.MQTT.QoS,
		WillTopic:   notify.StatusTopic(cfg.MQTT.TopicPrefix, device),
		WillPayload: notify.StatusOffline,
		Logger:      logger,
	})
	if err != nil {
		return nil, err
	}
	return notify.New(pub, notify.Config{
		Device:      device,
		TopicPrefix: cfg.MQTT.TopicPrefix,
		Logger:      logger,
	}), nil
}

func logEvent(logger *slog.Logger, event service.Event) {
	switch event.Type {
	case service.EventFeeding, service.EventManualRun:
		logger.Info("[EVENT] feeding",
			"source", event.Source.String(),
			"slot", event.Slot,
			"duration", event.Duration,
			"started", event.Started)
	case service.EventScheduleChanged:
		logger.Info("[EVENT] schedule changed", "slot", event.Slot)
	case service.EventClockSynced:
		logger.Info("[EVENT] clock synced")
	case service.EventHardwareFault:
		logger.Error("[EVENT] hardware fault", "op", event.Op, "error", event.Error)
	}
}

// switchWriter is an io.Writer whose target can be replaced while logging.
type switchWriter struct {
	mu sync.Mutex
	w  io.Writer
}

func (s *switchWriter) Write(p []byte) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.w.Write(p)
}

func (s *switchWriter) Set(w io.Writer) {
	s.mu.Lock()
	s.w = w
	s.mu.Unlock()
}
