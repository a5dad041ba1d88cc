package schedule

import (
	"errors"
	"fmt"
	"sync"

	"github.com/fishfeeder/feeder-go/pkg/rtc"
)

// Slots is the number of schedule slots.
const Slots = 18

// slotSize is the number of NVRAM bytes per slot.
const slotSize = 3

// Size is the number of NVRAM bytes used by the schedule.
const Size = Slots * slotSize

// DefaultWindow is the imminence window used to suppress clock sync, in minutes.
const DefaultWindow = 5

const minutesPerDay = 24 * 60

// Schedule errors.
var (
	// ErrOutOfRange indicates a slot index outside [0, Slots).
	ErrOutOfRange = errors.New("slot index out of range")

	// ErrStorageCorrupt indicates stored slots failed the sanity scan.
	ErrStorageCorrupt = errors.New("schedule storage corrupt")
)

// Schedule is the full slot table in slot order.
type Schedule [Slots]Slot

// Bytes returns the 54-byte storage and wire form.
func (s Schedule) Bytes() []byte {
	out := make([]byte, 0, Size)
	for _, slot := range s {
		b := slot.Bytes()
		out = append(out, b[:]...)
	}
	return out
}

// Parse decodes a 54-byte schedule.
func Parse(b []byte) (Schedule, error) {
	var s Schedule
	if len(b) != Size {
		return s, fmt.Errorf("schedule: got %d bytes, want %d", len(b), Size)
	}
	for i := range s {
		s[i] = Decode([3]byte(b[i*slotSize : i*slotSize+slotSize]))
	}
	return s, nil
}

// Valid reports whether every slot is empty or used.
func (s Schedule) Valid() bool {
	for _, slot := range s {
		if !slot.Valid() {
			return false
		}
	}
	return true
}

// Store reads and writes schedule slots in RTC NVRAM. NVRAM is the only
// copy; nothing is cached. Safe for concurrent use.
type Store struct {
	mu   sync.Mutex
	ram  rtc.NVRAM
	base int
}

// NewStore creates a store using NVRAM starting at address 0.
func NewStore(ram rtc.NVRAM) *Store {
	return &Store{ram: ram}
}

func checkIndex(i int) error {
	if i < 0 || i >= Slots {
		return fmt.Errorf("%w: %d", ErrOutOfRange, i)
	}
	return nil
}

// Get reads slot i.
func (s *Store) Get(i int) (Slot, error) {
	if err := checkIndex(i); err != nil {
		return Slot{}, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	b, err := s.ram.ReadNVRAM(s.base+i*slotSize, slotSize)
	if err != nil {
		return Slot{}, fmt.Errorf("read slot %d: %w", i, err)
	}
	return Decode([3]byte(b)), nil
}

// Set writes slot i verbatim. Field values are not range checked.
func (s *Store) Set(i int, hour, minute, duration byte) error {
	return s.Put(i, Scheduled(hour, minute, duration))
}

// Put writes slot i.
func (s *Store) Put(i int, slot Slot) error {
	if err := checkIndex(i); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	b := slot.Bytes()
	if err := s.ram.WriteNVRAM(s.base+i*slotSize, b[:]); err != nil {
		return fmt.Errorf("write slot %d: %w", i, err)
	}
	return nil
}

// Erase resets slot i to unused.
func (s *Store) Erase(i int) error {
	return s.Put(i, Empty())
}

// All reads every slot in one NVRAM access.
func (s *Store) All() (Schedule, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	b, err := s.ram.ReadNVRAM(s.base, Size)
	if err != nil {
		return Schedule{}, fmt.Errorf("read schedule: %w", err)
	}
	return Parse(b)
}

// IsInitialized reports whether every stored slot is empty or used.
func (s *Store) IsInitialized() (bool, error) {
	err := s.Verify()
	if errors.Is(err, ErrStorageCorrupt) {
		return false, nil
	}
	return err == nil, err
}

// Verify returns ErrStorageCorrupt naming the first slot that is neither
// empty nor used.
func (s *Store) Verify() error {
	sched, err := s.All()
	if err != nil {
		return err
	}
	for i, slot := range sched {
		if !slot.Valid() {
			return fmt.Errorf("%w: slot %d holds %v", ErrStorageCorrupt, i, slot.Bytes())
		}
	}
	return nil
}

// Initialize sets every slot to unused.
func (s *Store) Initialize() error {
	var sched Schedule
	for i := range sched {
		sched[i] = Empty()
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.ram.WriteNVRAM(s.base, sched.Bytes()); err != nil {
		return fmt.Errorf("initialize schedule: %w", err)
	}
	return nil
}

// EnsureInitialized runs the startup sanity scan and reinitializes the
// schedule when it fails. It reports whether a reset happened.
func (s *Store) EnsureInitialized() (bool, error) {
	ok, err := s.IsInitialized()
	if err != nil {
		return false, err
	}
	if ok {
		return false, nil
	}
	if err := s.Initialize(); err != nil {
		return false, err
	}
	return true, nil
}

// AnyWithin reports whether a used slot lies within window minutes of
// hour:minute, measured around the clock.
func (s *Store) AnyWithin(hour, minute, window int) (bool, error) {
	sched, err := s.All()
	if err != nil {
		return false, err
	}

	now := hour*60 + minute
	for _, slot := range sched {
		if !slot.IsUsed() {
			continue
		}
		if circularDistance(now, slot.MinuteOfDay()) <= window {
			return true, nil
		}
	}
	return false, nil
}

func circularDistance(a, b int) int {
	d := (a - b) % minutesPerDay
	if d < 0 {
		d = -d
	}
	return min(d, minutesPerDay-d)
}
