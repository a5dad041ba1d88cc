// Package hal abstracts the feeder's hardware: a PWM servo output, a
// digital button input, and the I2C bus of the RTC chip.
//
// The periph implementations drive a Raspberry Pi class board. The fakes
// record every call and are used by tests and the simulator.
package hal

import (
	"errors"
	"time"
)

// ServoPeriod is the PWM period of a hobby servo (50 Hz).
const ServoPeriod = 20 * time.Millisecond

// ErrPinNotFound is returned when a named pin does not exist on the host.
var ErrPinNotFound = errors.New("pin not found")

// PWM is a servo drive output.
type PWM interface {
	// SetPulse drives the output with the given high time per period.
	SetPulse(width time.Duration) error

	// Halt releases the output.
	Halt() error
}

// Input is a digital input. Read returns true for a high level.
type Input interface {
	Read() (bool, error)
}
