// Package protocol implements the feeder's binary control protocol.
//
// A client connects, sends exactly one request and, except for a manual
// run, receives the 54-byte schedule dump before the device closes the
// connection. There is no framing beyond fixed field lengths:
//
//	'u'                              query           -> dump
//	'c' slot hour minute duration    create slot     -> dump
//	'd' slot                         delete slot     -> dump
//	'm' units                        run units*100ms -> nothing
//
// Any other tag aborts the connection without a response. Requests are
// applied before the response is written, so a client always observes its
// own write in the dump.
package protocol
