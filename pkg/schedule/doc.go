// Package schedule stores the feeder's 18 daily feeding slots in RTC NVRAM.
//
// Slot i occupies NVRAM bytes [3i, 3i+3) as {hour, minute, duration}, with
// duration in units of 100 ms. A slot whose three bytes are all 255 is
// unused. Any other combination outside hour<24, minute<60, 0<duration<255
// is corrupt; the startup scan resets the whole table when it finds one.
//
// The same 54-byte layout is used on the wire by the protocol package.
package schedule
