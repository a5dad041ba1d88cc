// Package rtc provides the clock and non-volatile memory port used by the
// feeder.
//
// The feeder keeps its schedule in the battery-backed RAM of a DS1307
// real-time clock. This package exposes that chip behind two small
// interfaces:
//
//	Clock  current date-time, set date-time
//	NVRAM  byte-addressed reads and writes relative to the start of RAM
//
// # Hardware Faults
//
// I2C transfers to the chip occasionally fail. Every bus access is retried a
// bounded number of times with a short constant backoff. When the budget is
// exhausted the operation fails with ErrHardwareFault instead of hanging.
// Repeated faults open a circuit breaker so that a dead chip is reported
// immediately until a probe succeeds again.
//
// # Implementations
//
//   - DS1307: the real chip driver over a register Bus
//   - Memory: in-memory chip for tests and simulation
//   - Simulated: Memory persisted to a state file between runs
package rtc
