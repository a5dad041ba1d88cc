package rtc

import (
	"fmt"
	"log/slog"

	"github.com/fishfeeder/feeder-go/pkg/persistence"
)

// Simulated is a Memory RTC whose NVRAM and clock survive process restarts
// through a JSON state file. Every mutation is saved immediately.
type Simulated struct {
	*Memory
	store  *persistence.RTCStateStore
	logger *slog.Logger
}

var _ Port = (*Simulated)(nil)

// OpenSimulated loads the chip image from store, or starts with a cold chip
// at host time when no image exists.
func OpenSimulated(store *persistence.RTCStateStore, logger *slog.Logger) (*Simulated, error) {
	if logger == nil {
		logger = slog.Default()
	}
	s := &Simulated{Memory: NewMemory(), store: store, logger: logger}

	state, err := store.Load()
	if err != nil {
		return nil, fmt.Errorf("load rtc image: %w", err)
	}
	if state != nil {
		s.Memory.Restore(state.NVRAM, state.ClockOffset, state.Halted)
		logger.Info("rtc image restored", "path", store.Path(), "saved_at", state.SavedAt)
	}
	return s, nil
}

func (s *Simulated) save() {
	nvram, offset, halted := s.Memory.Snapshot()
	err := s.store.Save(&persistence.RTCState{
		NVRAM:       nvram,
		ClockOffset: offset,
		Halted:      halted,
	})
	if err != nil {
		s.logger.Error("rtc image save failed", "error", err)
	}
}

// SetTime sets the clock and saves the image.
func (s *Simulated) SetTime(dt DateTime) error {
	if err := s.Memory.SetTime(dt); err != nil {
		return err
	}
	s.save()
	return nil
}

// Start resumes the clock and saves the image.
func (s *Simulated) Start() error {
	if err := s.Memory.Start(); err != nil {
		return err
	}
	s.save()
	return nil
}

// WriteNVRAM writes RAM and saves the image.
func (s *Simulated) WriteNVRAM(addr int, data []byte) error {
	if err := s.Memory.WriteNVRAM(addr, data); err != nil {
		return err
	}
	s.save()
	return nil
}
