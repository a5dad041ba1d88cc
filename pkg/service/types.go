package service

import (
	"errors"
	"log/slog"
	"time"

	"github.com/fishfeeder/feeder-go/pkg/hal"
	"github.com/fishfeeder/feeder-go/pkg/log"
	"github.com/fishfeeder/feeder-go/pkg/rtc"
	"github.com/fishfeeder/feeder-go/pkg/servo"
	"github.com/fishfeeder/feeder-go/pkg/transport"
)

// Service errors.
var (
	ErrNotStarted     = errors.New("service not started")
	ErrAlreadyStarted = errors.New("service already started")
	ErrInvalidConfig  = errors.New("invalid configuration")
)

// ServiceState represents the service state.
type ServiceState uint8

const (
	// StateIdle - service created but not started.
	StateIdle ServiceState = iota

	// StateStarting - service is starting up.
	StateStarting

	// StateRunning - service is running normally.
	StateRunning

	// StateStopping - service is shutting down.
	StateStopping

	// StateStopped - service has stopped.
	StateStopped
)

// String returns the state name.
func (s ServiceState) String() string {
	switch s {
	case StateIdle:
		return "IDLE"
	case StateStarting:
		return "STARTING"
	case StateRunning:
		return "RUNNING"
	case StateStopping:
		return "STOPPING"
	case StateStopped:
		return "STOPPED"
	default:
		return "UNKNOWN"
	}
}

// Hardware is what the device drives. Button may be nil.
type Hardware struct {
	RTC    rtc.Port
	Servo  hal.PWM
	Button hal.Input
}

// DeviceConfig configures a DeviceService.
type DeviceConfig struct {
	// Name is the device name used in announcements and notices.
	Name string

	// Version is reported in mDNS TXT records.
	Version string

	// ListenAddress is the control server address (e.g., ":2390").
	ListenAddress string

	// ConnTimeout bounds each control connection.
	ConnTimeout time.Duration

	// PollInterval is how often the clock is read.
	PollInterval time.Duration

	// Servo configures the actuator.
	Servo servo.Config

	// Logger is the operational logger (optional).
	Logger *slog.Logger

	// EventLogger records protocol and device events (optional).
	EventLogger log.Logger
}

// DefaultDeviceConfig returns a DeviceConfig with the standard timings.
func DefaultDeviceConfig() DeviceConfig {
	return DeviceConfig{
		Name:          "Fish Feeder",
		ListenAddress: ":2390",
		ConnTimeout:   transport.DefaultConnTimeout,
		PollInterval:  250 * time.Millisecond,
	}
}

// Validate checks if the device config is valid.
func (c *DeviceConfig) Validate() error {
	if c.Name == "" {
		return ErrInvalidConfig
	}
	if c.PollInterval < 0 || c.PollInterval > 20*time.Second {
		return ErrInvalidConfig
	}
	return nil
}

// EventType identifies a service event.
type EventType uint8

const (
	// EventFeeding - a scheduled slot came due.
	EventFeeding EventType = iota

	// EventManualRun - a client or the button requested a run.
	EventManualRun

	// EventScheduleChanged - a slot was set or erased, or storage was reset.
	EventScheduleChanged

	// EventServoState - the servo started or stopped.
	EventServoState

	// EventClockSynced - the clock was set from NTP.
	EventClockSynced

	// EventHardwareFault - an RTC operation failed.
	EventHardwareFault
)

// String returns the event type name.
func (e EventType) String() string {
	switch e {
	case EventFeeding:
		return "FEEDING"
	case EventManualRun:
		return "MANUAL_RUN"
	case EventScheduleChanged:
		return "SCHEDULE_CHANGED"
	case EventServoState:
		return "SERVO_STATE"
	case EventClockSynced:
		return "CLOCK_SYNCED"
	case EventHardwareFault:
		return "HARDWARE_FAULT"
	default:
		return "UNKNOWN"
	}
}

// Event represents a service event.
type Event struct {
	// Type is the event type.
	Type EventType

	// Source is what requested a run (feeding and manual run events).
	Source log.FeedingSource

	// Slot is the schedule slot, or -1 when not slot related.
	Slot int

	// Duration is the requested run time.
	Duration time.Duration

	// Started is false when a run was requested while one was in progress.
	Started bool

	// Servo is the new servo state (servo events).
	Servo servo.State

	// Op names the failed operation (hardware fault events).
	Op string

	// Error is set for hardware fault events.
	Error error
}

// EventHandler handles service events.
type EventHandler func(Event)
