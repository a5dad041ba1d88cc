package persistence

import (
	"encoding/json"
	"os"
	"path/filepath"
	"sync"
	"time"
)

// StateVersion is the current version of the state file format.
const StateVersion = 1

// RTCState is the persisted image of a simulated RTC chip.
type RTCState struct {
	// Version is the state file format version.
	Version int `json:"version"`

	// SavedAt is when the state was last saved.
	SavedAt time.Time `json:"saved_at"`

	// NVRAM is the battery-backed RAM content.
	NVRAM []byte `json:"nvram"`

	// ClockOffset is the chip time minus host time.
	ClockOffset time.Duration `json:"clock_offset"`

	// Halted is true when the oscillator was stopped.
	Halted bool `json:"halted,omitempty"`
}

// DeviceState contains the runtime record of a feeder device.
type DeviceState struct {
	// Version is the state file format version.
	Version int `json:"version"`

	// SavedAt is when the state was last saved.
	SavedAt time.Time `json:"saved_at"`

	// LastFeeding describes the most recent servo run.
	LastFeeding *FeedingRecord `json:"last_feeding,omitempty"`

	// LastSync is when the clock was last synchronised.
	LastSync time.Time `json:"last_sync,omitempty"`

	// Feedings counts servo runs by source ("schedule", "manual", "button").
	Feedings map[string]uint64 `json:"feedings,omitempty"`
}

// FeedingRecord describes a single servo run.
type FeedingRecord struct {
	// Source is what triggered the run.
	Source string `json:"source"`

	// Slot is the schedule slot for scheduled runs, -1 otherwise.
	Slot int `json:"slot"`

	// Duration is the requested run length.
	Duration time.Duration `json:"duration"`

	// At is when the run started.
	At time.Time `json:"at"`
}

// RTCStateStore manages persistence of a simulated RTC to a JSON file.
type RTCStateStore struct {
	mu   sync.Mutex
	path string
}

// NewRTCStateStore creates a new RTC state store.
func NewRTCStateStore(path string) *RTCStateStore {
	return &RTCStateStore{path: path}
}

// Path returns the state file path.
func (s *RTCStateStore) Path() string {
	return s.path
}

// Save persists the RTC state to disk.
func (s *RTCStateStore) Save(state *RTCState) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	state.Version = StateVersion
	if state.SavedAt.IsZero() {
		state.SavedAt = time.Now()
	}
	return writeJSON(s.path, state)
}

// Load reads the RTC state from disk.
// Returns nil, nil if the file doesn't exist.
func (s *RTCStateStore) Load() (*RTCState, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	state := &RTCState{}
	ok, err := readJSON(s.path, state)
	if !ok {
		return nil, err
	}
	return state, nil
}

// Clear removes the state file.
func (s *RTCStateStore) Clear() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return remove(s.path)
}

// DeviceStateStore manages persistence of device state to a JSON file.
type DeviceStateStore struct {
	mu   sync.Mutex
	path string
}

// NewDeviceStateStore creates a new device state store.
func NewDeviceStateStore(path string) *DeviceStateStore {
	return &DeviceStateStore{path: path}
}

// Save persists the device state to disk.
func (s *DeviceStateStore) Save(state *DeviceState) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	state.Version = StateVersion
	state.SavedAt = time.Now()
	return writeJSON(s.path, state)
}

// Load reads the device state from disk.
// Returns nil, nil if the file doesn't exist (empty state).
func (s *DeviceStateStore) Load() (*DeviceState, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	state := &DeviceState{}
	ok, err := readJSON(s.path, state)
	if !ok {
		return nil, err
	}
	return state, nil
}

// Clear removes the state file.
func (s *DeviceStateStore) Clear() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return remove(s.path)
}

func writeJSON(path string, v any) error {
	// Ensure parent directory exists
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return err
	}

	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}

	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0644); err != nil {
		return err
	}
	return os.Rename(tmp, path)
}

// readJSON returns false with a nil error when the file is missing.
func readJSON(path string, v any) (bool, error) {
	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	if err := json.Unmarshal(data, v); err != nil {
		return false, err
	}
	return true, nil
}

func remove(path string) error {
	err := os.Remove(path)
	if os.IsNotExist(err) {
		return nil
	}
	return err
}
