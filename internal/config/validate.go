package config

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

// Validate checks configuration correctness. It does not mutate cfg.
func Validate(cfg *Config) error {
	var errs []error
	fail := func(format string, args ...any) {
		errs = append(errs, fmt.Errorf(format, args...))
	}

	if cfg.Device.Name == "" {
		fail("device.name is required")
	} else if len(cfg.Device.Name) > 63 {
		fail("device.name must be at most 63 bytes")
	}

	if !cfg.Hardware.Simulate {
		if cfg.Hardware.ServoPin == "" {
			fail("hardware.servo_pin is required unless simulating")
		}
		if cfg.Hardware.RTCAddress == 0 || cfg.Hardware.RTCAddress > 0x7F {
			fail("hardware.rtc_address %#x is not a 7-bit I2C address", cfg.Hardware.RTCAddress)
		}
	}

	s := cfg.Servo
	for name, d := range map[string]time.Duration{
		"servo.stop_pulse":     s.StopPulse,
		"servo.dispense_pulse": s.DispensePulse,
	} {
		if d < 500*time.Microsecond || d > 2500*time.Microsecond {
			fail("%s %v outside 500µs..2.5ms", name, d)
		}
	}
	if s.Settle < 0 || s.Debounce <= 0 || s.ButtonRun <= 0 || s.Tick <= 0 {
		fail("servo timings must be positive")
	}

	if cfg.RTC.Attempts < 1 {
		fail("rtc.attempts must be at least 1")
	}
	if cfg.RTC.BreakerFailures < 1 {
		fail("rtc.breaker_failures must be at least 1")
	}
	if cfg.RTC.PollInterval <= 0 || cfg.RTC.PollInterval > 20*time.Second {
		fail("rtc.poll_interval must be in (0, 20s] to observe every minute")
	}

	if cfg.Network.Port < 0 || cfg.Network.Port > 65535 {
		fail("network.port %d out of range", cfg.Network.Port)
	}
	if cfg.Network.ConnTimeout <= 0 {
		fail("network.conn_timeout must be positive")
	}

	if cfg.Beacon.Enabled {
		if cfg.Beacon.Group == "" {
			fail("beacon.group is required when the beacon is enabled")
		}
		if cfg.Beacon.TTL < 1 || cfg.Beacon.TTL > 255 {
			fail("beacon.ttl must be 1..255")
		}
		if cfg.Beacon.Interval <= 0 {
			fail("beacon.interval must be positive")
		}
	}

	if cfg.TimeSync.Enabled {
		if cfg.TimeSync.Server == "" {
			fail("timesync.server is required when sync is enabled")
		}
		if cfg.TimeSync.Attempts < 1 {
			fail("timesync.attempts must be at least 1")
		}
	}

	if cfg.MQTT.Enabled {
		if cfg.MQTT.Broker == "" {
			fail("mqtt.broker is required when mqtt is enabled")
		}
		if cfg.MQTT.QoS > 2 {
			fail("mqtt.qos must be 0, 1 or 2")
		}
	}

	if cfg.Metrics.Enabled && cfg.Metrics.Address == "" {
		fail("metrics.address is required when metrics are enabled")
	}

	switch strings.ToLower(cfg.Log.Level) {
	case "debug", "info", "warn", "error":
	default:
		fail("log.level %q is not one of debug, info, warn, error", cfg.Log.Level)
	}
	switch cfg.Log.Format {
	case "text", "json":
	default:
		fail("log.format %q is not text or json", cfg.Log.Format)
	}

	return errors.Join(errs...)
}
