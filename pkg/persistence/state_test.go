package persistence

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestRTCStateStore(t *testing.T) {
	t.Run("LoadNonExistent", func(t *testing.T) {
		store := NewRTCStateStore(filepath.Join(t.TempDir(), "rtc.json"))

		got, err := store.Load()
		if err != nil {
			t.Fatalf("Load() error = %v", err)
		}
		if got != nil {
			t.Errorf("Load() = %v, want nil for non-existent file", got)
		}
	})

	t.Run("RoundTrip", func(t *testing.T) {
		store := NewRTCStateStore(filepath.Join(t.TempDir(), "sub", "rtc.json"))

		nvram := make([]byte, 56)
		nvram[0], nvram[1], nvram[2] = 8, 30, 50
		state := &RTCState{
			NVRAM:       nvram,
			ClockOffset: -90 * time.Minute,
			Halted:      true,
		}
		if err := store.Save(state); err != nil {
			t.Fatalf("Save() error = %v", err)
		}

		got, err := store.Load()
		if err != nil {
			t.Fatalf("Load() error = %v", err)
		}
		if got.Version != StateVersion {
			t.Errorf("Version = %d, want %d", got.Version, StateVersion)
		}
		if len(got.NVRAM) != 56 || got.NVRAM[0] != 8 || got.NVRAM[1] != 30 || got.NVRAM[2] != 50 {
			t.Errorf("NVRAM = %v, want prefix [8 30 50]", got.NVRAM[:3])
		}
		if got.ClockOffset != -90*time.Minute {
			t.Errorf("ClockOffset = %v, want -1h30m", got.ClockOffset)
		}
		if !got.Halted {
			t.Error("Halted = false, want true")
		}
		if got.SavedAt.IsZero() {
			t.Error("SavedAt should be set")
		}
	})

	t.Run("Clear", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "rtc.json")
		store := NewRTCStateStore(path)

		if err := store.Save(&RTCState{NVRAM: []byte{1}}); err != nil {
			t.Fatalf("Save() error = %v", err)
		}
		if err := store.Clear(); err != nil {
			t.Fatalf("Clear() error = %v", err)
		}
		if _, err := os.Stat(path); !os.IsNotExist(err) {
			t.Errorf("state file still exists after Clear()")
		}
		// Clearing twice is not an error.
		if err := store.Clear(); err != nil {
			t.Errorf("second Clear() error = %v", err)
		}
	})

	t.Run("CorruptFile", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "rtc.json")
		if err := os.WriteFile(path, []byte("{not json"), 0644); err != nil {
			t.Fatal(err)
		}
		store := NewRTCStateStore(path)
		if _, err := store.Load(); err == nil {
			t.Error("Load() expected error for corrupt file")
		}
	})
}

func TestDeviceStateStore(t *testing.T) {
	t.Run("LoadNonExistent", func(t *testing.T) {
		store := NewDeviceStateStore(filepath.Join(t.TempDir(), "state.json"))
		got, err := store.Load()
		if err != nil {
			t.Fatalf("Load() error = %v", err)
		}
		if got != nil {
			t.Errorf("Load() = %v, want nil", got)
		}
	})

	t.Run("FeedingRoundTrip", func(t *testing.T) {
		store := NewDeviceStateStore(filepath.Join(t.TempDir(), "state.json"))

		at := time.Date(2026, 3, 1, 8, 30, 0, 0, time.UTC)
		state := &DeviceState{
			LastFeeding: &FeedingRecord{Source: "schedule", Slot: 2, Duration: 5 * time.Second, At: at},
			LastSync:    at.Add(-time.Hour),
			Feedings:    map[string]uint64{"schedule": 3, "manual": 1},
		}
		if err := store.Save(state); err != nil {
			t.Fatalf("Save() error = %v", err)
		}

		got, err := store.Load()
		if err != nil {
			t.Fatalf("Load() error = %v", err)
		}
		if got.LastFeeding == nil {
			t.Fatal("LastFeeding = nil")
		}
		if got.LastFeeding.Slot != 2 || got.LastFeeding.Duration != 5*time.Second {
			t.Errorf("LastFeeding = %+v", got.LastFeeding)
		}
		if !got.LastFeeding.At.Equal(at) {
			t.Errorf("LastFeeding.At = %v, want %v", got.LastFeeding.At, at)
		}
		if !got.LastSync.Equal(at.Add(-time.Hour)) {
			t.Errorf("LastSync = %v", got.LastSync)
		}
		if got.Feedings["schedule"] != 3 || got.Feedings["manual"] != 1 {
			t.Errorf("Feedings = %v", got.Feedings)
		}
	})
}
