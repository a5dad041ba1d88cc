// Package config loads the feeder daemon configuration from YAML.
package config

import "time"

type Config struct {
	Device   DeviceConfig   `yaml:"device"`
	Hardware HardwareConfig `yaml:"hardware"`
	Servo    ServoConfig    `yaml:"servo"`
	RTC      RTCConfig      `yaml:"rtc"`
	Network  NetworkConfig  `yaml:"network"`
	Beacon   BeaconConfig   `yaml:"beacon"`
	MDNS     MDNSConfig     `yaml:"mdns"`
	TimeSync TimeSyncConfig `yaml:"timesync"`
	MQTT     MQTTConfig     `yaml:"mqtt"`
	Metrics  MetricsConfig  `yaml:"metrics"`
	Log      LogConfig      `yaml:"log"`
}

// ---- DEVICE ----

type DeviceConfig struct {
	Name    string `yaml:"name"`
	Version string `yaml:"version"`

	// StateDir holds persisted device state and, when simulating, the RTC.
	StateDir string `yaml:"state_dir"`
}

// ---- HARDWARE ----

type HardwareConfig struct {
	// Simulate replaces GPIO and I2C with in-process fakes.
	Simulate bool `yaml:"simulate"`

	ServoPin  string `yaml:"servo_pin"`
	ButtonPin string `yaml:"button_pin"` // empty disables the button

	I2CBus     string `yaml:"i2c_bus"` // empty selects the first bus
	RTCAddress uint16 `yaml:"rtc_address"`
}

// ---- SERVO ----

type ServoConfig struct {
	StopPulse     time.Duration `yaml:"stop_pulse"`
	DispensePulse time.Duration `yaml:"dispense_pulse"`
	Settle        time.Duration `yaml:"settle"`
	Debounce      time.Duration `yaml:"debounce"`
	ButtonRun     time.Duration `yaml:"button_run"`
	Tick          time.Duration `yaml:"tick"`
}

// ---- RTC ----

type RTCConfig struct {
	Attempts        int           `yaml:"attempts"`
	RetryInterval   time.Duration `yaml:"retry_interval"`
	BreakerFailures int           `yaml:"breaker_failures"`
	BreakerOpenFor  time.Duration `yaml:"breaker_open_for"`
	PollInterval    time.Duration `yaml:"poll_interval"`
}

// ---- NETWORK ----

type NetworkConfig struct {
	Port        int           `yaml:"port"`
	ConnTimeout time.Duration `yaml:"conn_timeout"`
}

type BeaconConfig struct {
	Enabled  bool          `yaml:"enabled"`
	Group    string        `yaml:"group"`
	TTL      int           `yaml:"ttl"`
	Interval time.Duration `yaml:"interval"`
}

type MDNSConfig struct {
	Enabled   bool   `yaml:"enabled"`
	Interface string `yaml:"interface"`
}

// ---- TIME SYNC ----

type TimeSyncConfig struct {
	Enabled       bool          `yaml:"enabled"`
	Server        string        `yaml:"server"`
	Timeout       time.Duration `yaml:"timeout"`
	Attempts      int           `yaml:"attempts"`
	RetryInterval time.Duration `yaml:"retry_interval"`
}

// ---- NOTIFICATIONS ----

type MQTTConfig struct {
	Enabled     bool   `yaml:"enabled"`
	Broker      string `yaml:"broker"`
	ClientID    string `yaml:"client_id"`
	Username    string `yaml:"username"`
	Password    string `yaml:"password"`
	TopicPrefix string `yaml:"topic_prefix"`
	QoS         byte   `yaml:"qos"`
}

type MetricsConfig struct {
	Enabled bool   `yaml:"enabled"`
	Address string `yaml:"address"`
}

// ---- LOGGING ----

type LogConfig struct {
	Level  string `yaml:"level"`  // debug, info, warn, error
	Format string `yaml:"format"` // text or json

	// EventLog is an optional path for the CBOR event log.
	EventLog string `yaml:"event_log"`
}
