package schedule

import (
	"fmt"
	"time"
)

// Unused is the byte value marking an empty slot field.
const Unused = 255

// DurationUnit is the time represented by one duration count.
const DurationUnit = 100 * time.Millisecond

// Slot is one daily feeding time. The zero value is not meaningful; use
// Empty or Scheduled.
//
// A slot read from storage keeps its raw bytes, so a corrupt triple
// survives a Decode/Bytes round trip unchanged and reports Valid() false.
type Slot struct {
	hour     byte
	minute   byte
	duration byte
}

// Empty returns the unused slot.
func Empty() Slot {
	return Slot{hour: Unused, minute: Unused, duration: Unused}
}

// Scheduled returns a slot feeding at hour:minute for duration units of
// 100 ms.
func Scheduled(hour, minute, duration byte) Slot {
	return Slot{hour: hour, minute: minute, duration: duration}
}

// Decode builds a slot from its storage form.
func Decode(b [3]byte) Slot {
	return Slot{hour: b[0], minute: b[1], duration: b[2]}
}

// Bytes returns the storage form {hour, minute, duration}.
func (s Slot) Bytes() [3]byte {
	return [3]byte{s.hour, s.minute, s.duration}
}

// IsUsed reports whether the slot holds a valid feeding time.
func (s Slot) IsUsed() bool {
	return s.hour < 24 && s.minute < 60 && s.duration > 0 && s.duration < Unused
}

// IsEmpty reports whether the slot is the unused sentinel.
func (s Slot) IsEmpty() bool {
	return s.hour == Unused && s.minute == Unused && s.duration == Unused
}

// Valid reports whether the slot is either empty or used.
func (s Slot) Valid() bool {
	return s.IsEmpty() || s.IsUsed()
}

// Hour returns the hour of day. Only meaningful when IsUsed.
func (s Slot) Hour() int { return int(s.hour) }

// Minute returns the minute. Only meaningful when IsUsed.
func (s Slot) Minute() int { return int(s.minute) }

// Units returns the raw duration count.
func (s Slot) Units() int { return int(s.duration) }

// Duration returns the servo run time.
func (s Slot) Duration() time.Duration {
	return time.Duration(s.duration) * DurationUnit
}

// MinuteOfDay returns hour*60+minute.
func (s Slot) MinuteOfDay() int {
	return int(s.hour)*60 + int(s.minute)
}

// String implements fmt.Stringer.
func (s Slot) String() string {
	switch {
	case s.IsEmpty():
		return "unused"
	case s.IsUsed():
		return fmt.Sprintf("%02d:%02d for %s", s.hour, s.minute, s.Duration())
	default:
		return fmt.Sprintf("invalid [%d %d %d]", s.hour, s.minute, s.duration)
	}
}
