// Package log provides structured event capture for the feeder.
//
// This package defines the Logger interface and Event types for recording
// what the device did at each layer: raw bytes on a control connection
// (transport), decoded requests (wire), and servo, clock and feeding
// activity (service). It is separate from operational logging (slog); the
// event log is a machine-readable trace for debugging and for the
// feeder-log tool.
//
// # Basic Usage
//
//	// For development: log to console via slog
//	cfg.EventLogger = log.NewSlogAdapter(slog.Default())
//
//	// On the device: write to a binary file
//	cfg.EventLogger, _ = log.NewFileLogger("/var/lib/feeder/events.flog")
//
//	// Both
//	cfg.EventLogger = log.NewMultiLogger(
//	    log.NewSlogAdapter(slog.Default()),
//	    fileLogger,
//	)
//
// # File Format
//
// Log files are a stream of CBOR-encoded events with integer keys and the
// .flog extension.
package log
