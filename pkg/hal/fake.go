package hal

import (
	"sync"
	"time"
)

// FakePWM records the pulses it is driven with.
type FakePWM struct {
	mu      sync.Mutex
	pulses  []time.Duration
	halted  bool
	halts   int
	failErr error
}

var _ PWM = (*FakePWM)(nil)

// NewFakePWM creates a halted fake output.
func NewFakePWM() *FakePWM {
	return &FakePWM{halted: true}
}

// SetPulse records width.
func (f *FakePWM) SetPulse(width time.Duration) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failErr != nil {
		return f.failErr
	}
	f.pulses = append(f.pulses, width)
	f.halted = false
	return nil
}

// Halt records a release.
func (f *FakePWM) Halt() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failErr != nil {
		return f.failErr
	}
	f.halted = true
	f.halts++
	return nil
}

// Fail makes every following call return err. A nil err clears it.
func (f *FakePWM) Fail(err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.failErr = err
}

// Pulses returns all recorded pulse widths.
func (f *FakePWM) Pulses() []time.Duration {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]time.Duration, len(f.pulses))
	copy(out, f.pulses)
	return out
}

// Halted reports whether the output is currently released.
func (f *FakePWM) Halted() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.halted
}

// Halts returns the number of Halt calls.
func (f *FakePWM) Halts() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.halts
}

// FakeInput is a settable digital input. It idles high like a pulled-up
// button.
type FakeInput struct {
	mu    sync.Mutex
	level bool
	err   error
}

var _ Input = (*FakeInput)(nil)

// NewFakeInput creates an input reading high.
func NewFakeInput() *FakeInput {
	return &FakeInput{level: true}
}

// Set changes the level.
func (f *FakeInput) Set(level bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.level = level
}

// Fail makes Read return err. A nil err clears it.
func (f *FakeInput) Fail(err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.err = err
}

// Read returns the level.
func (f *FakeInput) Read() (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return false, f.err
	}
	return f.level, nil
}
