// Package timesync sets the real-time clock from an NTP server.
//
// A sync makes a bounded number of attempts and retries only when the
// query timed out; any other failure ends the sync at once. The device
// keeps running on the RTC's own time when a sync gives up.
package timesync
