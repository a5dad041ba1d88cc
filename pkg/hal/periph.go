package hal

import (
	"fmt"
	"time"

	"periph.io/x/conn/v3/gpio"
	"periph.io/x/conn/v3/gpio/gpioreg"
	"periph.io/x/conn/v3/i2c"
	"periph.io/x/conn/v3/i2c/i2creg"
	"periph.io/x/conn/v3/physic"
	"periph.io/x/host/v3"
)

// Init loads the periph host drivers. It must be called once before any
// pin or bus is opened.
func Init() error {
	if _, err := host.Init(); err != nil {
		return fmt.Errorf("periph host init: %w", err)
	}
	return nil
}

// PinPWM drives a servo on a PWM-capable GPIO pin.
type PinPWM struct {
	pin gpio.PinIO
}

var _ PWM = (*PinPWM)(nil)

// OpenPWM looks up a PWM pin by name (e.g. "GPIO12").
func OpenPWM(name string) (*PinPWM, error) {
	p := gpioreg.ByName(name)
	if p == nil {
		return nil, fmt.Errorf("%w: %s", ErrPinNotFound, name)
	}
	return &PinPWM{pin: p}, nil
}

// SetPulse sets the duty cycle for a 50 Hz period.
func (p *PinPWM) SetPulse(width time.Duration) error {
	return p.pin.PWM(pulseDuty(width), 50*physic.Hertz)
}

// Halt stops the PWM output.
func (p *PinPWM) Halt() error {
	return p.pin.Halt()
}

func pulseDuty(width time.Duration) gpio.Duty {
	if width <= 0 {
		return 0
	}
	if width >= ServoPeriod {
		return gpio.DutyMax
	}
	return gpio.Duty(int64(gpio.DutyMax) * int64(width) / int64(ServoPeriod))
}

// PinInput reads a GPIO pin with the internal pull-up enabled.
type PinInput struct {
	pin gpio.PinIO
}

var _ Input = (*PinInput)(nil)

// OpenInput looks up an input pin by name and configures its pull-up.
func OpenInput(name string) (*PinInput, error) {
	p := gpioreg.ByName(name)
	if p == nil {
		return nil, fmt.Errorf("%w: %s", ErrPinNotFound, name)
	}
	if err := p.In(gpio.PullUp, gpio.NoEdge); err != nil {
		return nil, fmt.Errorf("configure %s: %w", name, err)
	}
	return &PinInput{pin: p}, nil
}

// Read returns the current level.
func (p *PinInput) Read() (bool, error) {
	return p.pin.Read() == gpio.High, nil
}

// I2CRegisters exposes a register-addressed I2C peripheral.
// It implements rtc.Bus.
type I2CRegisters struct {
	bus i2c.BusCloser
	dev *i2c.Dev
}

// OpenI2C opens the named bus ("" for the first available) and binds the
// device address.
func OpenI2C(bus string, addr uint16) (*I2CRegisters, error) {
	b, err := i2creg.Open(bus)
	if err != nil {
		return nil, fmt.Errorf("open i2c bus %q: %w", bus, err)
	}
	return &I2CRegisters{bus: b, dev: &i2c.Dev{Bus: b, Addr: addr}}, nil
}

// ReadRegisters reads len(buf) registers starting at reg.
func (r *I2CRegisters) ReadRegisters(reg byte, buf []byte) error {
	return r.dev.Tx([]byte{reg}, buf)
}

// WriteRegisters writes data to registers starting at reg.
func (r *I2CRegisters) WriteRegisters(reg byte, data []byte) error {
	w := make([]byte, 0, len(data)+1)
	w = append(w, reg)
	w = append(w, data...)
	return r.dev.Tx(w, nil)
}

// Close releases the bus.
func (r *I2CRegisters) Close() error {
	return r.bus.Close()
}
