package rtc

import (
	"fmt"
	"sync"
)

// DS1307 register map.
const (
	// DS1307Addr is the fixed I2C address of the chip.
	DS1307Addr = 0x68

	regDateTime = 0x00
	regControl  = 0x07
	regRAM      = 0x08

	// Seconds register bit that halts the oscillator.
	clockHalt = 0x80

	// Hours register bit selecting 12-hour mode.
	hour12 = 0x40
)

// Bus reads and writes a block of consecutive chip registers.
type Bus interface {
	ReadRegisters(reg byte, buf []byte) error
	WriteRegisters(reg byte, data []byte) error
}

// DS1307 drives a Maxim DS1307 real-time clock over a register bus.
// Every access goes through a Guard, so transient bus errors are retried
// and a dead chip surfaces ErrHardwareFault.
type DS1307 struct {
	mu    sync.Mutex
	bus   Bus
	guard *Guard
}

var (
	_ Port       = (*DS1307)(nil)
	_ Oscillator = (*DS1307)(nil)
)

// NewDS1307 creates a driver. A nil guard uses DefaultGuardConfig.
func NewDS1307(bus Bus, guard *Guard) *DS1307 {
	if guard == nil {
		guard = NewGuard(DefaultGuardConfig())
	}
	return &DS1307{bus: bus, guard: guard}
}

func (d *DS1307) read(op string, reg byte, n int) ([]byte, error) {
	buf := make([]byte, n)
	err := d.guard.Do(op, func() error {
		return d.bus.ReadRegisters(reg, buf)
	})
	if err != nil {
		return nil, err
	}
	return buf, nil
}

func (d *DS1307) write(op string, reg byte, data []byte) error {
	return d.guard.Do(op, func() error {
		return d.bus.WriteRegisters(reg, data)
	})
}

// Now reads the current date-time.
func (d *DS1307) Now() (DateTime, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	regs, err := d.read("read datetime", regDateTime, 7)
	if err != nil {
		return DateTime{}, err
	}
	return decodeDateTime(regs), nil
}

// SetTime writes the date-time. The oscillator halt bit is preserved.
func (d *DS1307) SetTime(dt DateTime) error {
	if err := validateDateTime(dt); err != nil {
		return err
	}

	d.mu.Lock()
	defer d.mu.Unlock()

	sec, err := d.read("read seconds", regDateTime, 1)
	if err != nil {
		return err
	}
	regs := encodeDateTime(dt)
	regs[0] |= sec[0] & clockHalt
	return d.write("write datetime", regDateTime, regs)
}

// IsRunning reports whether the oscillator is running.
func (d *DS1307) IsRunning() (bool, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	sec, err := d.read("read seconds", regDateTime, 1)
	if err != nil {
		return false, err
	}
	return sec[0]&clockHalt == 0, nil
}

// Start clears the halt bit, keeping the seconds count.
func (d *DS1307) Start() error {
	return d.setHalt(false)
}

// Halt stops the oscillator.
func (d *DS1307) Halt() error {
	return d.setHalt(true)
}

func (d *DS1307) setHalt(halt bool) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	sec, err := d.read("read seconds", regDateTime, 1)
	if err != nil {
		return err
	}
	v := sec[0] &^ clockHalt
	if halt {
		v |= clockHalt
	}
	return d.write("write seconds", regDateTime, []byte{v})
}

// SquareWave writes the raw control register.
func (d *DS1307) SquareWave(control byte) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.write("write control", regControl, []byte{control})
}

// ReadNVRAM reads n bytes of RAM starting at addr.
func (d *DS1307) ReadNVRAM(addr, n int) ([]byte, error) {
	if err := checkRange(addr, n); err != nil {
		return nil, err
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.read("read nvram", byte(regRAM+addr), n)
}

// WriteNVRAM writes data to RAM starting at addr.
func (d *DS1307) WriteNVRAM(addr int, data []byte) error {
	if err := checkRange(addr, len(data)); err != nil {
		return err
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.write("write nvram", byte(regRAM+addr), data)
}

func validateDateTime(dt DateTime) error {
	switch {
	case dt.Year < 2000 || dt.Year > 2099:
		return fmt.Errorf("rtc: year %d outside 2000-2099", dt.Year)
	case dt.Month < 1 || dt.Month > 12:
		return fmt.Errorf("rtc: invalid month %d", dt.Month)
	case dt.Day < 1 || dt.Day > 31:
		return fmt.Errorf("rtc: invalid day %d", dt.Day)
	case dt.Weekday < 0 || dt.Weekday > 6:
		return fmt.Errorf("rtc: invalid weekday %d", dt.Weekday)
	case dt.Hour < 0 || dt.Hour > 23, dt.Minute < 0 || dt.Minute > 59, dt.Second < 0 || dt.Second > 59:
		return fmt.Errorf("rtc: invalid time %02d:%02d:%02d", dt.Hour, dt.Minute, dt.Second)
	}
	return nil
}

// encodeDateTime packs dt into registers 0-6. The chip counts weekdays 1-7.
func encodeDateTime(dt DateTime) []byte {
	return []byte{
		dec2bcd(dt.Second),
		dec2bcd(dt.Minute),
		dec2bcd(dt.Hour),
		byte(dt.Weekday + 1),
		dec2bcd(dt.Day),
		dec2bcd(dt.Month),
		dec2bcd(dt.Year - 2000),
	}
}

func decodeDateTime(regs []byte) DateTime {
	hour := 0
	if regs[2]&hour12 != 0 {
		hour = bcd2dec(regs[2]&0x1F) % 12
		if regs[2]&0x20 != 0 {
			hour += 12
		}
	} else {
		hour = bcd2dec(regs[2] & 0x3F)
	}

	return DateTime{
		Second:  bcd2dec(regs[0] &^ clockHalt),
		Minute:  bcd2dec(regs[1]),
		Hour:    hour,
		Weekday: (int(regs[3]&0x07) + 6) % 7,
		Day:     bcd2dec(regs[4]),
		Month:   bcd2dec(regs[5]),
		Year:    bcd2dec(regs[6]) + 2000,
	}
}
