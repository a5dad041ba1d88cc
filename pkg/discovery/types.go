package discovery

import (
	"context"
	"errors"
	"time"
)

// mDNS constants.
const (
	// ServiceType is the DNS-SD service type of a feeder.
	ServiceType = "_fishfeeder._tcp"

	// Domain is the mDNS domain.
	Domain = "local"

	// MaxInstanceNameLen is the DNS label limit for instance names.
	MaxInstanceNameLen = 63
)

// TXT record keys.
const (
	TXTKeyName    = "name"
	TXTKeyVersion = "ver"
	TXTKeyProto   = "proto"
)

// Beacon defaults.
const (
	DefaultBeaconGroup    = "226.1.1.1:5050"
	DefaultBeaconTTL      = 3
	DefaultBeaconInterval = time.Second
)

// Discovery errors.
var (
	ErrInvalidName      = errors.New("invalid instance name")
	ErrMissingRequired  = errors.New("missing required TXT record")
	ErrInvalidTXTRecord = errors.New("invalid TXT record")
	ErrInvalidBeacon    = errors.New("invalid beacon payload")
)

// ServiceInfo describes the advertised device.
type ServiceInfo struct {
	// Name is the instance name, e.g. "Aquarium".
	Name string

	// Version is the firmware or build version.
	Version string

	// Protocol is the control protocol version, "major.minor".
	Protocol string

	// Port is the TCP control port.
	Port int
}

// Announcer advertises a device until stopped.
type Announcer interface {
	// Announce starts advertising info. It returns once advertising has
	// started; ctx bounds the advertisement's lifetime.
	Announce(ctx context.Context, info ServiceInfo) error

	// Stop ends advertising. It is safe to call more than once.
	Stop()
}

// Found is a feeder discovered on the network.
type Found struct {
	Name     string
	Version  string
	Protocol string
	Host     string
	Port     int

	// Addresses are the IPs the device was seen at.
	Addresses []string

	// Via is "beacon" or "mdns".
	Via string
}
