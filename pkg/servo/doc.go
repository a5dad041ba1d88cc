// Package servo drives the feeder's continuous-rotation servo and reads its
// push button.
//
// The Actuator is a two-state machine:
//
//	Idle --Start(d)--> Running(deadline) --now >= deadline--> Idle
//
// Start while Running is a no-op; it never extends a run. Stopping drives
// the neutral pulse, waits a settle delay while still holding the lock, and
// then releases the output. Poll is called by the actuation loop every tick;
// it ends expired runs and debounces the button, whose press is equivalent
// to Start(ButtonRun).
//
// Hardware errors are logged and never returned.
package servo
