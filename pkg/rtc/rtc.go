package rtc

import (
	"errors"
	"fmt"
	"time"
)

// NVRAMSize is the number of battery-backed bytes on the DS1307.
const NVRAMSize = 56

// Port errors.
var (
	// ErrHardwareFault indicates the chip could not be reached within the
	// retry budget, or the fault breaker is open.
	ErrHardwareFault = errors.New("rtc hardware fault")

	// ErrAddressRange indicates an NVRAM access outside the RAM window.
	ErrAddressRange = errors.New("nvram address out of range")
)

// Clock reads and sets the wall-clock time.
type Clock interface {
	Now() (DateTime, error)
	SetTime(dt DateTime) error
}

// NVRAM is byte-addressed non-volatile storage. Addresses are zero-based,
// relative to the start of RAM.
type NVRAM interface {
	ReadNVRAM(addr, n int) ([]byte, error)
	WriteNVRAM(addr int, data []byte) error
}

// Port is the combined clock and storage collaborator.
type Port interface {
	Clock
	NVRAM
}

// Oscillator is implemented by chips whose oscillator can be halted.
type Oscillator interface {
	IsRunning() (bool, error)
	Start() error
}

// DateTime is a calendar time as stored by the chip.
// Weekday is zero-based with Monday = 0.
type DateTime struct {
	Year    int
	Month   int
	Day     int
	Weekday int
	Hour    int
	Minute  int
	Second  int
}

var weekdayNames = [7]string{"Monday", "Tuesday", "Wednesday", "Thursday", "Friday", "Saturday", "Sunday"}

// FromTime converts a time.Time into a DateTime in t's location.
func FromTime(t time.Time) DateTime {
	return DateTime{
		Year:    t.Year(),
		Month:   int(t.Month()),
		Day:     t.Day(),
		Weekday: (int(t.Weekday()) + 6) % 7,
		Hour:    t.Hour(),
		Minute:  t.Minute(),
		Second:  t.Second(),
	}
}

// Time returns the DateTime as a time.Time in loc. A nil loc means UTC.
func (dt DateTime) Time(loc *time.Location) time.Time {
	if loc == nil {
		loc = time.UTC
	}
	return time.Date(dt.Year, time.Month(dt.Month), dt.Day, dt.Hour, dt.Minute, dt.Second, 0, loc)
}

// Format returns the time in ISO 8601 form.
func (dt DateTime) Format() string {
	return fmt.Sprintf("%04d-%02d-%02d %02d:%02d:%02d",
		dt.Year, dt.Month, dt.Day, dt.Hour, dt.Minute, dt.Second)
}

// WeekdayName returns the English weekday name.
func (dt DateTime) WeekdayName() string {
	if dt.Weekday < 0 || dt.Weekday >= len(weekdayNames) {
		return "Unknown"
	}
	return weekdayNames[dt.Weekday]
}

// String implements fmt.Stringer.
func (dt DateTime) String() string {
	return dt.WeekdayName() + " " + dt.Format()
}

func checkRange(addr, n int) error {
	if addr < 0 || n < 0 || addr+n > NVRAMSize {
		return fmt.Errorf("%w: addr=%d len=%d", ErrAddressRange, addr, n)
	}
	return nil
}

func dec2bcd(v int) byte {
	return byte((v/10)<<4 | (v % 10))
}

func bcd2dec(b byte) int {
	return int(b>>4)*10 + int(b&0x0F)
}
