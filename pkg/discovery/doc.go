// Package discovery makes a feeder findable on the local network.
//
// Two mechanisms are provided. The presence beacon sends the decimal
// control port as a UDP multicast datagram to 226.1.1.1:5050 once a second,
// which is what the feeder's phone app listens for. The mDNS advertiser
// registers a _fishfeeder._tcp service with name and version TXT records
// for tools that browse DNS-SD. Both implement Announcer so the device
// service can run either or both.
package discovery
