// Package persistence provides runtime state persistence for the feeder.
//
// Two JSON state files are handled here: the simulated RTC image used by
// development runs without hardware (NVRAM bytes and clock offset), and the
// device runtime record (last feeding, last clock sync, counters) that the
// device service keeps across restarts. The schedule itself lives in RTC
// NVRAM and is never written here.
package persistence
