// Package version carries the build version and the control protocol
// version of the feeder.
package version

import (
	"fmt"
	"strconv"
	"strings"
)

// Build is the firmware build version. Release builds set it with
// -ldflags "-X github.com/fishfeeder/feeder-go/pkg/version.Build=1.4.0".
var Build = "dev"

// Protocol is the control protocol version implemented by this module.
const Protocol = "1.0"

// ProtocolVersion is a parsed "major.minor" protocol version.
type ProtocolVersion struct {
	Major uint16
	Minor uint16
}

// Parse parses a "major.minor" version string.
func Parse(s string) (ProtocolVersion, error) {
	major, minor, ok := strings.Cut(s, ".")
	if !ok || strings.Contains(minor, ".") {
		return ProtocolVersion{}, fmt.Errorf("invalid version %q: expected major.minor", s)
	}

	maj, err := strconv.ParseUint(major, 10, 16)
	if err != nil {
		return ProtocolVersion{}, fmt.Errorf("invalid version %q: bad major component", s)
	}
	mnr, err := strconv.ParseUint(minor, 10, 16)
	if err != nil {
		return ProtocolVersion{}, fmt.Errorf("invalid version %q: bad minor component", s)
	}

	return ProtocolVersion{Major: uint16(maj), Minor: uint16(mnr)}, nil
}

// Current returns the parsed Protocol.
func Current() ProtocolVersion {
	v, _ := Parse(Protocol)
	return v
}

// String returns the version as "major.minor".
func (v ProtocolVersion) String() string {
	return fmt.Sprintf("%d.%d", v.Major, v.Minor)
}

// Compatible reports whether a peer speaking other can be controlled. Only
// the major version has to match.
func (v ProtocolVersion) Compatible(other ProtocolVersion) bool {
	return v.Major == other.Major
}

// CompatibleWith parses peer and checks it against Protocol. An empty peer
// is a device predating version advertising and is accepted.
func CompatibleWith(peer string) (bool, error) {
	if peer == "" {
		return true, nil
	}
	v, err := Parse(peer)
	if err != nil {
		return false, err
	}
	return Current().Compatible(v), nil
}
