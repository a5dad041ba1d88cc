package rtc

import (
	"errors"
	"testing"
	"time"
)

func TestFromTime(t *testing.T) {
	tests := []struct {
		name string
		in   time.Time
		want DateTime
	}{
		{
			name: "Monday",
			in:   time.Date(2026, 3, 2, 8, 30, 15, 0, time.UTC),
			want: DateTime{Year: 2026, Month: 3, Day: 2, Weekday: 0, Hour: 8, Minute: 30, Second: 15},
		},
		{
			name: "Sunday",
			in:   time.Date(2026, 3, 1, 23, 59, 59, 0, time.UTC),
			want: DateTime{Year: 2026, Month: 3, Day: 1, Weekday: 6, Hour: 23, Minute: 59, Second: 59},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := FromTime(tt.in)
			if got != tt.want {
				t.Errorf("FromTime() = %+v, want %+v", got, tt.want)
			}
			if !got.Time(nil).Equal(tt.in) {
				t.Errorf("Time() = %v, want %v", got.Time(nil), tt.in)
			}
		})
	}
}

func TestDateTimeFormat(t *testing.T) {
	dt := DateTime{Year: 2026, Month: 1, Day: 5, Weekday: 0, Hour: 7, Minute: 3, Second: 9}
	if got := dt.Format(); got != "2026-01-05 07:03:09" {
		t.Errorf("Format() = %q", got)
	}
	if got := dt.String(); got != "Monday 2026-01-05 07:03:09" {
		t.Errorf("String() = %q", got)
	}
	if got := (DateTime{Weekday: 9}).WeekdayName(); got != "Unknown" {
		t.Errorf("WeekdayName() = %q, want Unknown", got)
	}
}

func TestBCD(t *testing.T) {
	for v := 0; v < 100; v++ {
		if got := bcd2dec(dec2bcd(v)); got != v {
			t.Errorf("bcd2dec(dec2bcd(%d)) = %d", v, got)
		}
	}
	if dec2bcd(59) != 0x59 {
		t.Errorf("dec2bcd(59) = %#x, want 0x59", dec2bcd(59))
	}
}

func TestCheckRange(t *testing.T) {
	tests := []struct {
		addr, n int
		ok      bool
	}{
		{0, 56, true},
		{0, 54, true},
		{55, 1, true},
		{55, 2, false},
		{-1, 1, false},
		{0, 57, false},
	}
	for _, tt := range tests {
		err := checkRange(tt.addr, tt.n)
		if (err == nil) != tt.ok {
			t.Errorf("checkRange(%d, %d) = %v, want ok=%v", tt.addr, tt.n, err, tt.ok)
		}
		if err != nil && !errors.Is(err, ErrAddressRange) {
			t.Errorf("checkRange(%d, %d) error %v does not wrap ErrAddressRange", tt.addr, tt.n, err)
		}
	}
}
