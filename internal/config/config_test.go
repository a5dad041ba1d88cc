package config

import (
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultIsValid(t *testing.T) {
	require.NoError(t, Validate(Default()))
}

func TestParseOverridesDefaults(t *testing.T) {
	cfg, err := Parse([]byte(`
device:
  name: Aquarium
hardware:
  simulate: true
servo:
  settle: 500ms
network:
  port: 4000
mqtt:
  enabled: true
  broker: tcp://broker:1883
log:
  level: debug
`))
	require.NoError(t, err)

	assert.Equal(t, "Aquarium", cfg.Device.Name)
	assert.True(t, cfg.Hardware.Simulate)
	assert.Equal(t, 500*time.Millisecond, cfg.Servo.Settle)
	assert.Equal(t, 30*time.Millisecond, cfg.Servo.Debounce, "unset keys keep defaults")
	assert.Equal(t, 4000, cfg.Network.Port)
	assert.Equal(t, 300*time.Millisecond, cfg.Network.ConnTimeout)
	assert.True(t, cfg.MQTT.Enabled)
	assert.Equal(t, slog.LevelDebug, cfg.Log.SlogLevel())
}

func TestParseEmpty(t *testing.T) {
	cfg, err := Parse(nil)
	require.NoError(t, err)
	assert.Equal(t, Default(), cfg)
}

func TestParseRejectsUnknownKeys(t *testing.T) {
	_, err := Parse([]byte("network:\n  prot: 1\n"))
	assert.Error(t, err)
}

func TestLoad(t *testing.T) {
	path := filepath.Join(t.TempDir(), "feeder.yaml")
	require.NoError(t, os.WriteFile(path, []byte("network:\n  port: 2391\n"), 0o600))

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, 2391, cfg.Network.Port)

	_, err = Load(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.ErrorIs(t, err, os.ErrNotExist)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
		want   string
	}{
		{"empty name", func(c *Config) { c.Device.Name = "" }, "device.name"},
		{"no servo pin", func(c *Config) { c.Hardware.ServoPin = "" }, "hardware.servo_pin"},
		{"bad rtc address", func(c *Config) { c.Hardware.RTCAddress = 0x80 }, "rtc_address"},
		{"pulse too long", func(c *Config) { c.Servo.DispensePulse = 3 * time.Millisecond }, "servo.dispense_pulse"},
		{"no attempts", func(c *Config) { c.RTC.Attempts = 0 }, "rtc.attempts"},
		{"slow poll", func(c *Config) { c.RTC.PollInterval = time.Minute }, "rtc.poll_interval"},
		{"port", func(c *Config) { c.Network.Port = 70000 }, "network.port"},
		{"beacon ttl", func(c *Config) { c.Beacon.TTL = 0 }, "beacon.ttl"},
		{"mqtt broker", func(c *Config) { c.MQTT.Enabled = true; c.MQTT.Broker = "" }, "mqtt.broker"},
		{"qos", func(c *Config) { c.MQTT.Enabled = true; c.MQTT.QoS = 3 }, "mqtt.qos"},
		{"log level", func(c *Config) { c.Log.Level = "loud" }, "log.level"},
		{"log format", func(c *Config) { c.Log.Format = "xml" }, "log.format"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(cfg)
			err := Validate(cfg)
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.want)
		})
	}
}

func TestValidateSimulateSkipsPins(t *testing.T) {
	cfg := Default()
	cfg.Hardware.Simulate = true
	cfg.Hardware.ServoPin = ""
	cfg.Hardware.RTCAddress = 0
	assert.NoError(t, Validate(cfg))
}
