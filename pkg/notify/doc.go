// Package notify publishes feeder activity to an MQTT broker.
//
// Notices are JSON documents queued by the device and published from a
// single goroutine, so a slow or absent broker never delays a feeding.
// When the queue is full new notices are dropped and counted.
//
// Topics:
//
//	<prefix>/<device>/feeding   servo runs (schedule, manual, button)
//	<prefix>/<device>/schedule  slot changes
//	<prefix>/<device>/status    "online" / "offline" (retained)
package notify
