package servo

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/fishfeeder/feeder-go/pkg/hal"
)

// Drive levels for a Feetech FS5106R continuous-rotation servo.
const (
	// StopPulse holds the servo still.
	StopPulse = 1500 * time.Microsecond

	// DispensePulse rotates clockwise to dispense.
	DispensePulse = 700 * time.Microsecond

	// DefaultSettle is how long the stop pulse is held before release.
	DefaultSettle = 300 * time.Millisecond

	// DefaultDebounce is how long a button reading must be stable.
	DefaultDebounce = 30 * time.Millisecond

	// DefaultButtonRun is the run time for a button press.
	DefaultButtonRun = 300 * time.Millisecond

	// DefaultTick is the actuation loop period.
	DefaultTick = time.Millisecond
)

// State is the actuator state.
type State uint8

const (
	// StateIdle indicates the servo is stopped and released.
	StateIdle State = iota

	// StateRunning indicates the servo is dispensing.
	StateRunning
)

// String returns a human-readable state name.
func (s State) String() string {
	switch s {
	case StateIdle:
		return "IDLE"
	case StateRunning:
		return "RUNNING"
	default:
		return "UNKNOWN"
	}
}

// Starter starts a servo run. Implemented by Actuator.
type Starter interface {
	Start(d time.Duration) bool
}

// Config configures an Actuator. Zero fields take their defaults.
type Config struct {
	StopPulse     time.Duration
	DispensePulse time.Duration
	Settle        time.Duration
	Debounce      time.Duration
	ButtonRun     time.Duration
	Tick          time.Duration

	Logger *slog.Logger

	// Now and Sleep replace the wall clock in tests.
	Now   func() time.Time
	Sleep func(time.Duration)
}

func (c *Config) applyDefaults() {
	if c.StopPulse == 0 {
		c.StopPulse = StopPulse
	}
	if c.DispensePulse == 0 {
		c.DispensePulse = DispensePulse
	}
	if c.Settle == 0 {
		c.Settle = DefaultSettle
	}
	if c.Debounce == 0 {
		c.Debounce = DefaultDebounce
	}
	if c.ButtonRun == 0 {
		c.ButtonRun = DefaultButtonRun
	}
	if c.Tick == 0 {
		c.Tick = DefaultTick
	}
	if c.Logger == nil {
		c.Logger = slog.Default()
	}
	if c.Now == nil {
		c.Now = time.Now
	}
	if c.Sleep == nil {
		c.Sleep = time.Sleep
	}
}

// Actuator owns the servo output and the button input.
type Actuator struct {
	cfg    Config
	out    hal.PWM
	button hal.Input
	logger *slog.Logger

	mu       sync.Mutex
	state    State
	deadline time.Time

	// Button state, touched only by Poll.
	raw        bool
	pressed    bool
	lastChange time.Time

	cbMu          sync.RWMutex
	onStateChange func(from, to State)
	onButton      func(started bool)
}

var _ Starter = (*Actuator)(nil)

// New creates an idle actuator. button may be nil when no button is fitted.
func New(out hal.PWM, button hal.Input, cfg Config) *Actuator {
	cfg.applyDefaults()
	a := &Actuator{
		cfg:    cfg,
		out:    out,
		button: button,
		logger: cfg.Logger,
		// Pulled-up input idles high.
		raw:        true,
		lastChange: cfg.Now(),
	}

	// A button held at power-up is not a press.
	if button != nil {
		if reading, err := button.Read(); err != nil {
			a.logger.Error("button read failed", "error", err)
		} else {
			a.raw = reading
			a.pressed = !reading
		}
	}
	return a
}

// OnStateChange sets a callback for state transitions. It runs outside the
// actuator lock.
func (a *Actuator) OnStateChange(fn func(from, to State)) {
	a.cbMu.Lock()
	defer a.cbMu.Unlock()
	a.onStateChange = fn
}

// OnButton sets a callback for debounced button presses. started reports
// whether the press began a run.
func (a *Actuator) OnButton(fn func(started bool)) {
	a.cbMu.Lock()
	defer a.cbMu.Unlock()
	a.onButton = fn
}

func (a *Actuator) notify(from, to State) {
	a.cbMu.RLock()
	fn := a.onStateChange
	a.cbMu.RUnlock()
	if fn != nil {
		fn(from, to)
	}
}

// Start begins a run of duration d. It returns false and does nothing if a
// run is already in progress.
func (a *Actuator) Start(d time.Duration) bool {
	a.mu.Lock()
	if a.state == StateRunning {
		a.mu.Unlock()
		return false
	}

	if err := a.out.SetPulse(a.cfg.DispensePulse); err != nil {
		a.logger.Error("servo drive failed", "pulse", a.cfg.DispensePulse, "error", err)
	}
	a.deadline = a.cfg.Now().Add(d)
	a.state = StateRunning
	a.mu.Unlock()

	a.logger.Debug("servo started", "duration", d)
	a.notify(StateIdle, StateRunning)
	return true
}

// Stop ends a run. The caller is blocked for the settle delay.
func (a *Actuator) Stop() {
	a.mu.Lock()
	if a.state != StateRunning {
		a.mu.Unlock()
		return
	}

	if err := a.out.SetPulse(a.cfg.StopPulse); err != nil {
		a.logger.Error("servo drive failed", "pulse", a.cfg.StopPulse, "error", err)
	}
	a.cfg.Sleep(a.cfg.Settle)
	if err := a.out.Halt(); err != nil {
		a.logger.Error("servo release failed", "error", err)
	}
	a.state = StateIdle
	a.deadline = time.Time{}
	a.mu.Unlock()

	a.logger.Debug("servo stopped")
	a.notify(StateRunning, StateIdle)
}

// Status returns the current state.
func (a *Actuator) Status() State {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.state
}

// Deadline returns the end of the current run, if running.
func (a *Actuator) Deadline() (time.Time, bool) {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.deadline, a.state == StateRunning
}

// Poll runs one control tick: it stops an expired run and samples the
// button. Poll must not be called concurrently with itself.
func (a *Actuator) Poll() {
	a.mu.Lock()
	expired := a.state == StateRunning && !a.cfg.Now().Before(a.deadline)
	a.mu.Unlock()
	if expired {
		a.Stop()
	}

	if a.button != nil && a.sampleButton() {
		started := a.Start(a.cfg.ButtonRun)
		a.cbMu.RLock()
		fn := a.onButton
		a.cbMu.RUnlock()
		if fn != nil {
			fn(started)
		}
	}
}

// sampleButton debounces the input and reports a new press.
func (a *Actuator) sampleButton() bool {
	reading, err := a.button.Read()
	if err != nil {
		a.logger.Error("button read failed", "error", err)
		return false
	}

	now := a.cfg.Now()
	if reading != a.raw {
		a.raw = reading
		a.lastChange = now
		return false
	}
	if now.Sub(a.lastChange) < a.cfg.Debounce {
		return false
	}

	// Pressed pulls the line low.
	pressed := !reading
	if pressed == a.pressed {
		return false
	}
	a.pressed = pressed
	return pressed
}

// Run polls every tick until ctx is cancelled. A run in progress is
// stopped before Run returns.
func (a *Actuator) Run(ctx context.Context) {
	ticker := time.NewTicker(a.cfg.Tick)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			a.Stop()
			return
		case <-ticker.C:
			a.Poll()
		}
	}
}
