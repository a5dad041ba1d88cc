package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/fishfeeder/feeder-go/pkg/version"
)

// Default returns the configuration used when no file is given.
func Default() *Config {
	return &Config{
		Device: DeviceConfig{
			Name:     "Fish Feeder",
			Version:  version.Build,
			StateDir: "/var/lib/fishfeeder",
		},
		Hardware: HardwareConfig{
			ServoPin:   "GPIO21",
			ButtonPin:  "GPIO20",
			RTCAddress: 0x68,
		},
		Servo: ServoConfig{
			StopPulse:     1500 * time.Microsecond,
			DispensePulse: 700 * time.Microsecond,
			Settle:        300 * time.Millisecond,
			Debounce:      30 * time.Millisecond,
			ButtonRun:     300 * time.Millisecond,
			Tick:          time.Millisecond,
		},
		RTC: RTCConfig{
			Attempts:        10,
			RetryInterval:   time.Millisecond,
			BreakerFailures: 5,
			BreakerOpenFor:  30 * time.Second,
			PollInterval:    250 * time.Millisecond,
		},
		Network: NetworkConfig{
			Port:        2390,
			ConnTimeout: 300 * time.Millisecond,
		},
		Beacon: BeaconConfig{
			Enabled:  true,
			Group:    "226.1.1.1:5050",
			TTL:      3,
			Interval: time.Second,
		},
		MDNS: MDNSConfig{Enabled: true},
		TimeSync: TimeSyncConfig{
			Enabled:       true,
			Server:        "pool.ntp.org",
			Timeout:       5 * time.Second,
			Attempts:      4,
			RetryInterval: time.Second,
		},
		MQTT: MQTTConfig{
			Broker:      "tcp://localhost:1883",
			ClientID:    "fishfeeder",
			TopicPrefix: "fishfeeder",
		},
		Metrics: MetricsConfig{Address: ":9090"},
		Log:     LogConfig{Level: "info", Format: "text"},
	}
}

// Parse decodes YAML over the defaults and validates the result.
// Unknown keys are rejected.
func Parse(data []byte) (*Config, error) {
	cfg := Default()
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(cfg); err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("parse config: %w", err)
	}
	if err := Validate(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Load reads and parses the file at path.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}
	cfg, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return cfg, nil
}

// SlogLevel returns the configured level, defaulting to info.
func (l LogConfig) SlogLevel() slog.Level {
	switch strings.ToLower(l.Level) {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
