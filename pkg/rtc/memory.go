package rtc

import (
	"fmt"
	"sync"
	"time"
)

// Memory is an in-process RTC. The clock runs as an offset from the host
// clock and NVRAM starts zero-filled, which the schedule store treats as
// corrupt content on first boot.
type Memory struct {
	mu sync.Mutex

	nvram  [NVRAMSize]byte
	offset time.Duration
	halted bool
	frozen time.Time

	// now is the host clock. Tests replace it.
	now func() time.Time

	failures int
	reads    int
	writes   int
}

var (
	_ Port       = (*Memory)(nil)
	_ Oscillator = (*Memory)(nil)
)

// NewMemory creates a running in-memory RTC at host time (UTC).
func NewMemory() *Memory {
	return &Memory{now: time.Now}
}

// NewMemoryAt creates an in-memory RTC whose clock reads dt now and
// advances with the given host clock. A nil now uses time.Now.
func NewMemoryAt(dt DateTime, now func() time.Time) *Memory {
	if now == nil {
		now = time.Now
	}
	m := &Memory{now: now}
	m.offset = dt.Time(time.UTC).Sub(now().UTC())
	return m
}

// FailNext makes the next n operations fail with ErrHardwareFault.
func (m *Memory) FailNext(n int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.failures = n
}

// Counts returns the number of NVRAM reads and writes performed.
func (m *Memory) Counts() (reads, writes int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.reads, m.writes
}

// Snapshot returns a copy of NVRAM and the clock offset.
func (m *Memory) Snapshot() ([]byte, time.Duration, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	data := make([]byte, NVRAMSize)
	copy(data, m.nvram[:])
	return data, m.offset, m.halted
}

// Restore replaces NVRAM and clock state, e.g. from a persisted snapshot.
func (m *Memory) Restore(data []byte, offset time.Duration, halted bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.nvram = [NVRAMSize]byte{}
	copy(m.nvram[:], data)
	m.offset = offset
	m.halted = halted
	if halted {
		m.frozen = m.now().UTC().Add(offset)
	}
}

func (m *Memory) fault(op string) error {
	if m.failures > 0 {
		m.failures--
		return fmt.Errorf("%w: %s: injected", ErrHardwareFault, op)
	}
	return nil
}

func (m *Memory) current() time.Time {
	if m.halted {
		return m.frozen
	}
	return m.now().UTC().Add(m.offset)
}

// Now returns the current date-time.
func (m *Memory) Now() (DateTime, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.fault("now"); err != nil {
		return DateTime{}, err
	}
	return FromTime(m.current().Truncate(time.Second)), nil
}

// SetTime sets the clock.
func (m *Memory) SetTime(dt DateTime) error {
	if err := validateDateTime(dt); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.fault("set time"); err != nil {
		return err
	}
	t := dt.Time(time.UTC)
	if m.halted {
		m.frozen = t
		return nil
	}
	m.offset = t.Sub(m.now().UTC())
	return nil
}

// IsRunning reports whether the clock is advancing.
func (m *Memory) IsRunning() (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.fault("is running"); err != nil {
		return false, err
	}
	return !m.halted, nil
}

// Start resumes the clock from where it was halted.
func (m *Memory) Start() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.fault("start"); err != nil {
		return err
	}
	if m.halted {
		m.offset = m.frozen.Sub(m.now().UTC())
		m.halted = false
	}
	return nil
}

// Halt freezes the clock.
func (m *Memory) Halt() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if !m.halted {
		m.frozen = m.current()
		m.halted = true
	}
	return nil
}

// ReadNVRAM reads n bytes starting at addr.
func (m *Memory) ReadNVRAM(addr, n int) ([]byte, error) {
	if err := checkRange(addr, n); err != nil {
		return nil, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.fault("read nvram"); err != nil {
		return nil, err
	}
	m.reads++
	out := make([]byte, n)
	copy(out, m.nvram[addr:addr+n])
	return out, nil
}

// WriteNVRAM writes data starting at addr.
func (m *Memory) WriteNVRAM(addr int, data []byte) error {
	if err := checkRange(addr, len(data)); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.fault("write nvram"); err != nil {
		return err
	}
	m.writes++
	copy(m.nvram[addr:], data)
	return nil
}
