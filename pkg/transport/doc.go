// Package transport runs the feeder's TCP control listener.
//
// Connections are handled strictly one at a time: the accept loop hands a
// connection to the Handler and only accepts the next one after it has
// been closed. Each connection gets an absolute deadline so a stalled
// client cannot hold the loop. Raw bytes in each direction and connection
// open/close are recorded as transport-layer events.
package transport
