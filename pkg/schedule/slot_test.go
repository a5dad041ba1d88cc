package schedule

import (
	"testing"
	"time"
)

func TestSlotClassification(t *testing.T) {
	tests := []struct {
		name  string
		slot  Slot
		used  bool
		empty bool
		valid bool
	}{
		{"empty", Empty(), false, true, true},
		{"scheduled", Scheduled(8, 30, 50), true, false, true},
		{"midnight", Scheduled(0, 0, 1), true, false, true},
		{"last minute", Scheduled(23, 59, 254), true, false, true},
		{"hour out of range", Scheduled(30, 10, 5), false, false, false},
		{"minute out of range", Scheduled(8, 60, 5), false, false, false},
		{"zero duration", Scheduled(8, 30, 0), false, false, false},
		{"sentinel duration", Scheduled(8, 30, 255), false, false, false},
		{"partial sentinel", Decode([3]byte{255, 255, 0}), false, false, false},
		{"cold chip", Decode([3]byte{0, 0, 0}), false, false, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.slot.IsUsed(); got != tt.used {
				t.Errorf("IsUsed() = %v, want %v", got, tt.used)
			}
			if got := tt.slot.IsEmpty(); got != tt.empty {
				t.Errorf("IsEmpty() = %v, want %v", got, tt.empty)
			}
			if got := tt.slot.Valid(); got != tt.valid {
				t.Errorf("Valid() = %v, want %v", got, tt.valid)
			}
		})
	}
}

func TestSlotDecodePreservesBytes(t *testing.T) {
	raw := [3]byte{30, 10, 5}
	if got := Decode(raw).Bytes(); got != raw {
		t.Errorf("Bytes() = %v, want %v", got, raw)
	}
	if got := Empty().Bytes(); got != [3]byte{255, 255, 255} {
		t.Errorf("Empty().Bytes() = %v", got)
	}
}

func TestSlotDuration(t *testing.T) {
	s := Scheduled(8, 30, 50)
	if s.Duration() != 5*time.Second {
		t.Errorf("Duration() = %v, want 5s", s.Duration())
	}
	if s.MinuteOfDay() != 510 {
		t.Errorf("MinuteOfDay() = %d, want 510", s.MinuteOfDay())
	}
	if s.String() != "08:30 for 5s" {
		t.Errorf("String() = %q", s.String())
	}
	if Empty().String() != "unused" {
		t.Errorf("Empty().String() = %q", Empty().String())
	}
}

func TestParse(t *testing.T) {
	if _, err := Parse(make([]byte, 53)); err == nil {
		t.Error("Parse() expected error for short input")
	}

	b := make([]byte, Size)
	for i := range b {
		b[i] = 255
	}
	b[6], b[7], b[8] = 8, 30, 50

	s, err := Parse(b)
	if err != nil {
		t.Fatalf("Parse() error = %v", err)
	}
	if s[2] != Scheduled(8, 30, 50) {
		t.Errorf("slot 2 = %v", s[2])
	}
	if !s[0].IsEmpty() || !s.Valid() {
		t.Errorf("schedule = %v", s)
	}
	if string(s.Bytes()) != string(b) {
		t.Error("Bytes() does not round trip")
	}
}

func TestCircularDistance(t *testing.T) {
	tests := []struct {
		a, b, want int
	}{
		{0, 0, 0},
		{23*60 + 58, 2, 4},
		{2, 23*60 + 58, 4},
		{0, 12 * 60, 12 * 60},
		{510, 515, 5},
		{23*60 + 58, 10, 12},
	}
	for _, tt := range tests {
		if got := circularDistance(tt.a, tt.b); got != tt.want {
			t.Errorf("circularDistance(%d, %d) = %d, want %d", tt.a, tt.b, got, tt.want)
		}
	}
}
