package discovery

import (
	"context"
	"fmt"
	"net"
	"sync"
	"time"

	"github.com/enbility/zeroconf/v3"
)

// AdvertiserConfig configures mDNS advertising.
type AdvertiserConfig struct {
	// Interface specifies which network interface to use.
	// Empty string means all interfaces.
	Interface string

	// TTL is the DNS record TTL. Default: 120 seconds.
	TTL time.Duration
}

// DefaultAdvertiserConfig returns the default advertiser configuration.
func DefaultAdvertiserConfig() AdvertiserConfig {
	return AdvertiserConfig{TTL: 120 * time.Second}
}

// MDNSAdvertiser registers the feeder service with zeroconf.
type MDNSAdvertiser struct {
	config AdvertiserConfig

	mu     sync.Mutex
	server *zeroconf.Server
}

var _ Announcer = (*MDNSAdvertiser)(nil)

// NewMDNSAdvertiser creates a new mDNS advertiser.
func NewMDNSAdvertiser(config AdvertiserConfig) *MDNSAdvertiser {
	return &MDNSAdvertiser{config: config}
}

func interfaces(name string) []net.Interface {
	if name == "" {
		return nil
	}
	iface, err := net.InterfaceByName(name)
	if err != nil {
		return nil
	}
	return []net.Interface{*iface}
}

// Announce registers the service, replacing any earlier registration.
func (a *MDNSAdvertiser) Announce(ctx context.Context, info ServiceInfo) error {
	if err := ValidateInstanceName(info.Name); err != nil {
		return err
	}
	if info.Port <= 0 {
		return fmt.Errorf("invalid port %d", info.Port)
	}

	a.mu.Lock()
	defer a.mu.Unlock()

	if a.server != nil {
		a.server.Shutdown()
		a.server = nil
	}

	var opts []zeroconf.ServerOption
	if a.config.TTL > 0 {
		opts = append(opts, zeroconf.TTL(uint32(a.config.TTL.Seconds())))
	}

	server, err := zeroconf.Register(
		info.Name,
		ServiceType,
		Domain,
		info.Port,
		TXTRecordsToStrings(EncodeTXT(info)),
		interfaces(a.config.Interface),
		opts...,
	)
	if err != nil {
		return fmt.Errorf("failed to register service: %w", err)
	}
	a.server = server

	go func() {
		<-ctx.Done()
		a.Stop()
	}()
	return nil
}

// Update replaces the TXT records of the running registration.
func (a *MDNSAdvertiser) Update(info ServiceInfo) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.server != nil {
		a.server.SetText(TXTRecordsToStrings(EncodeTXT(info)))
	}
}

// Stop withdraws the registration.
func (a *MDNSAdvertiser) Stop() {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.server != nil {
		a.server.Shutdown()
		a.server = nil
	}
}

// BrowserConfig configures mDNS browsing.
type BrowserConfig struct {
	// Interface restricts browsing to one network interface.
	Interface string
}

// MDNSBrowser finds feeders over DNS-SD.
type MDNSBrowser struct {
	config BrowserConfig
}

// NewMDNSBrowser creates a new mDNS browser.
func NewMDNSBrowser(config BrowserConfig) *MDNSBrowser {
	return &MDNSBrowser{config: config}
}

// Browse reports feeders until ctx is done. Entries for the same instance
// seen on several interfaces are merged; each instance is sent once.
func (b *MDNSBrowser) Browse(ctx context.Context) (<-chan Found, error) {
	out := make(chan Found)
	entries := make(chan *zeroconf.ServiceEntry)
	removed := make(chan *zeroconf.ServiceEntry)

	var opts []zeroconf.ClientOption
	if ifaces := interfaces(b.config.Interface); ifaces != nil {
		opts = append(opts, zeroconf.SelectIfaces(ifaces))
	}

	go func() {
		defer close(out)
		seen := make(map[string]bool)
		for {
			select {
			case entry, ok := <-entries:
				if !ok {
					return
				}
				found, ok := entryToFound(entry)
				if !ok || seen[entry.Instance] {
					continue
				}
				seen[entry.Instance] = true
				select {
				case out <- found:
				case <-ctx.Done():
					return
				}
			case <-removed:
			case <-ctx.Done():
				return
			}
		}
	}()

	go func() {
		_ = zeroconf.Browse(ctx, ServiceType, Domain, entries, removed, opts...)
	}()

	return out, nil
}

func entryToFound(entry *zeroconf.ServiceEntry) (Found, bool) {
	info, err := DecodeTXT(StringsToTXTRecords(entry.Text))
	if err != nil {
		return Found{}, false
	}

	addrs := make([]string, 0, len(entry.AddrIPv4)+len(entry.AddrIPv6))
	for _, ip := range entry.AddrIPv4 {
		addrs = append(addrs, ip.String())
	}
	for _, ip := range entry.AddrIPv6 {
		addrs = append(addrs, ip.String())
	}

	return Found{
		Name:      info.Name,
		Version:   info.Version,
		Protocol:  info.Protocol,
		Host:      entry.HostName,
		Port:      entry.Port,
		Addresses: addrs,
		Via:       "mdns",
	}, true
}
