// Package client talks to a feeder over its control port. Each call opens
// a connection, sends one request and reads the reply.
package client

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"strconv"
	"time"

	"github.com/fishfeeder/feeder-go/pkg/protocol"
	"github.com/fishfeeder/feeder-go/pkg/schedule"
)

// DefaultTimeout bounds one request round trip.
const DefaultTimeout = 2 * time.Second

// ErrNoResponse is returned when the device closed the connection without
// a schedule dump, e.g. because it rejected the request.
var ErrNoResponse = errors.New("device sent no response")

// Client sends requests to one device.
type Client struct {
	addr    string
	timeout time.Duration
	dialer  net.Dialer
}

// Option configures a Client.
type Option func(*Client)

// WithTimeout sets the per-request deadline.
func WithTimeout(d time.Duration) Option {
	return func(c *Client) {
		if d > 0 {
			c.timeout = d
		}
	}
}

// New creates a client for addr ("host:port"). A bare host uses the
// default control port.
func New(addr string, opts ...Option) *Client {
	if _, _, err := net.SplitHostPort(addr); err != nil {
		addr = net.JoinHostPort(addr, strconv.Itoa(2390))
	}
	c := &Client{addr: addr, timeout: DefaultTimeout}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Addr returns the device address.
func (c *Client) Addr() string {
	return c.addr
}

// Do sends req. For requests answered with a dump it returns the parsed
// schedule; for a manual run the schedule is zero.
func (c *Client) Do(ctx context.Context, req protocol.Request) (schedule.Schedule, error) {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	conn, err := c.dialer.DialContext(ctx, "tcp", c.addr)
	if err != nil {
		return schedule.Schedule{}, fmt.Errorf("dial %s: %w", c.addr, err)
	}
	defer conn.Close()

	if deadline, ok := ctx.Deadline(); ok {
		_ = conn.SetDeadline(deadline)
	}

	if _, err := conn.Write(protocol.EncodeRequest(req)); err != nil {
		return schedule.Schedule{}, fmt.Errorf("send request: %w", err)
	}
	if !protocol.HasResponse(req) {
		return schedule.Schedule{}, nil
	}

	buf := make([]byte, protocol.ScheduleLen)
	if _, err := io.ReadFull(conn, buf); err != nil {
		if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
			return schedule.Schedule{}, ErrNoResponse
		}
		return schedule.Schedule{}, fmt.Errorf("read response: %w", err)
	}
	return protocol.DecodeSchedule(buf)
}

// Schedule fetches all slots.
func (c *Client) Schedule(ctx context.Context) (schedule.Schedule, error) {
	return c.Do(ctx, protocol.Query{})
}

// Set writes slot i and returns the updated schedule.
func (c *Client) Set(ctx context.Context, i int, hour, minute int, d time.Duration) (schedule.Schedule, error) {
	if i < 0 || i >= schedule.Slots {
		return schedule.Schedule{}, fmt.Errorf("%w: slot %d", schedule.ErrOutOfRange, i)
	}
	units, err := Units(d)
	if err != nil {
		return schedule.Schedule{}, err
	}
	return c.Do(ctx, protocol.CreateSlot{
		Slot:     byte(i),
		Hour:     byte(hour),
		Minute:   byte(minute),
		Duration: units,
	})
}

// Erase clears slot i and returns the updated schedule.
func (c *Client) Erase(ctx context.Context, i int) (schedule.Schedule, error) {
	if i < 0 || i >= schedule.Slots {
		return schedule.Schedule{}, fmt.Errorf("%w: slot %d", schedule.ErrOutOfRange, i)
	}
	return c.Do(ctx, protocol.DeleteSlot{Slot: byte(i)})
}

// Run asks the device to dispense for d.
func (c *Client) Run(ctx context.Context, d time.Duration) error {
	units, err := Units(d)
	if err != nil {
		return err
	}
	_, err = c.Do(ctx, protocol.ManualRun{Units: units})
	return err
}

// Units converts d to 100ms units, rounding to the nearest unit.
func Units(d time.Duration) (byte, error) {
	if d < 0 {
		return 0, fmt.Errorf("negative duration %v", d)
	}
	u := (d + schedule.DurationUnit/2) / schedule.DurationUnit
	if u > 254 {
		return 0, fmt.Errorf("duration %v exceeds %v", d, 254*schedule.DurationUnit)
	}
	return byte(u), nil
}
