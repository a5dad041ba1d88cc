package discovery

import (
	"context"
	"fmt"
	"log/slog"
	"net"
	"strconv"
	"strings"
	"sync"
	"time"

	"golang.org/x/net/ipv4"
)

// BeaconConfig configures the presence beacon.
type BeaconConfig struct {
	// Group is the multicast destination (default 226.1.1.1:5050).
	Group string

	// TTL is the multicast hop limit (default 3).
	TTL int

	// Interval between datagrams (default 1s).
	Interval time.Duration

	Logger *slog.Logger
}

// Beacon multicasts the control port once per interval.
type Beacon struct {
	config BeaconConfig
	logger *slog.Logger

	mu     sync.Mutex
	cancel context.CancelFunc
	done   chan struct{}
	sent   uint64
}

var _ Announcer = (*Beacon)(nil)

// NewBeacon creates a beacon. Zero config fields take their defaults.
func NewBeacon(config BeaconConfig) *Beacon {
	if config.Group == "" {
		config.Group = DefaultBeaconGroup
	}
	if config.TTL <= 0 {
		config.TTL = DefaultBeaconTTL
	}
	if config.Interval <= 0 {
		config.Interval = DefaultBeaconInterval
	}
	if config.Logger == nil {
		config.Logger = slog.Default()
	}
	return &Beacon{config: config, logger: config.Logger}
}

// EncodeBeacon returns the beacon payload for port.
func EncodeBeacon(port int) []byte {
	return []byte(strconv.Itoa(port))
}

// ParseBeacon returns the port announced in payload.
func ParseBeacon(payload []byte) (int, error) {
	port, err := strconv.Atoi(strings.TrimSpace(string(payload)))
	if err != nil || port <= 0 || port > 65535 {
		return 0, fmt.Errorf("%w: %q", ErrInvalidBeacon, payload)
	}
	return port, nil
}

// Announce starts sending beacons for info.Port until Stop or ctx ends.
func (b *Beacon) Announce(ctx context.Context, info ServiceInfo) error {
	dst, err := net.ResolveUDPAddr("udp4", b.config.Group)
	if err != nil {
		return fmt.Errorf("resolve beacon group: %w", err)
	}
	conn, err := net.ListenUDP("udp4", nil)
	if err != nil {
		return fmt.Errorf("open beacon socket: %w", err)
	}
	if err := ipv4.NewPacketConn(conn).SetMulticastTTL(b.config.TTL); err != nil {
		conn.Close()
		return fmt.Errorf("set multicast ttl: %w", err)
	}

	b.Stop()

	b.mu.Lock()
	loopCtx, cancel := context.WithCancel(ctx)
	b.cancel = cancel
	b.done = make(chan struct{})
	done := b.done
	b.mu.Unlock()

	go b.run(loopCtx, conn, dst, EncodeBeacon(info.Port), done)
	b.logger.Info("beacon started", "group", b.config.Group, "port", info.Port)
	return nil
}

func (b *Beacon) run(ctx context.Context, conn *net.UDPConn, dst *net.UDPAddr, payload []byte, done chan struct{}) {
	defer close(done)
	defer conn.Close()

	ticker := time.NewTicker(b.config.Interval)
	defer ticker.Stop()

	for {
		if _, err := conn.WriteToUDP(payload, dst); err != nil {
			b.logger.Debug("beacon send failed", "error", err)
		} else {
			b.mu.Lock()
			b.sent++
			b.mu.Unlock()
		}

		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}

// Sent returns the number of datagrams sent.
func (b *Beacon) Sent() uint64 {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.sent
}

// Stop ends the beacon and waits for the sender to exit.
func (b *Beacon) Stop() {
	b.mu.Lock()
	cancel, done := b.cancel, b.done
	b.cancel, b.done = nil, nil
	b.mu.Unlock()

	if cancel != nil {
		cancel()
		<-done
	}
}

// ListenBeacons reports feeders announcing on group until ctx is done.
// Each sender address and port is reported once.
func ListenBeacons(ctx context.Context, group string) (<-chan Found, error) {
	if group == "" {
		group = DefaultBeaconGroup
	}
	addr, err := net.ResolveUDPAddr("udp4", group)
	if err != nil {
		return nil, fmt.Errorf("resolve beacon group: %w", err)
	}
	conn, err := net.ListenMulticastUDP("udp4", nil, addr)
	if err != nil {
		return nil, fmt.Errorf("join beacon group: %w", err)
	}
	return listen(ctx, conn), nil
}

func listen(ctx context.Context, conn net.PacketConn) <-chan Found {
	out := make(chan Found)

	go func() {
		<-ctx.Done()
		conn.Close()
	}()

	go func() {
		defer close(out)
		seen := make(map[string]bool)
		buf := make([]byte, 64)
		for {
			n, from, err := conn.ReadFrom(buf)
			if err != nil {
				return
			}
			port, err := ParseBeacon(buf[:n])
			if err != nil {
				continue
			}
			host := from.String()
			if udp, ok := from.(*net.UDPAddr); ok {
				host = udp.IP.String()
			}
			key := net.JoinHostPort(host, strconv.Itoa(port))
			if seen[key] {
				continue
			}
			seen[key] = true

			select {
			case out <- Found{Host: host, Port: port, Addresses: []string{host}, Via: "beacon"}:
			case <-ctx.Done():
				return
			}
		}
	}()
	return out
}
