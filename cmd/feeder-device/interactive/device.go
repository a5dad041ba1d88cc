// Package interactive provides the interactive console of feeder-device.
package interactive

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"github.com/chzyer/readline"

	"github.com/fishfeeder/feeder-go/pkg/client"
	"github.com/fishfeeder/feeder-go/pkg/hal"
	"github.com/fishfeeder/feeder-go/pkg/rtc"
	"github.com/fishfeeder/feeder-go/pkg/schedule"
	"github.com/fishfeeder/feeder-go/pkg/service"
)

// pressHold is how long the simulated button is held down.
const pressHold = 100 * time.Millisecond

// Device handles interactive mode for feeder-device.
type Device struct {
	svc    *service.DeviceService
	button *hal.FakeInput
	rl     *readline.Instance
	out    io.Writer
}

// New creates a console bound to stdin. button is the simulated button and
// may be nil on real hardware.
func New(svc *service.DeviceService, button *hal.FakeInput) (*Device, error) {
	rl, err := readline.NewEx(&readline.Config{
		Prompt:          "feeder> ",
		InterruptPrompt: "^C",
		EOFPrompt:       "exit",
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create readline: %w", err)
	}

	d := newDevice(svc, button, rl.Stdout())
	d.rl = rl
	return d, nil
}

func newDevice(svc *service.DeviceService, button *hal.FakeInput, out io.Writer) *Device {
	d := &Device{svc: svc, button: button, out: out}
	svc.OnEvent(d.handleEvent)
	return d
}

// Stdout returns a writer that properly coordinates with the readline input.
func (d *Device) Stdout() io.Writer {
	return d.out
}

// Run starts the interactive command loop.
func (d *Device) Run(ctx context.Context, cancel context.CancelFunc) {
	defer d.rl.Close()

	d.printHelp()

	for {
		select {
		case <-ctx.Done():
			return
		default:
		}

		line, err := d.rl.Readline()
		if err != nil {
			if errors.Is(err, readline.ErrInterrupt) {
				continue
			}
			fmt.Fprintln(d.out, "Exiting...")
			cancel()
			return
		}

		if quit := d.Exec(ctx, line); quit {
			fmt.Fprintln(d.out, "Exiting...")
			cancel()
			return
		}
	}
}

// Exec runs one command line. It returns true when the console should exit.
func (d *Device) Exec(ctx context.Context, line string) bool {
	parts := strings.Fields(strings.TrimSpace(line))
	if len(parts) == 0 {
		return false
	}
	cmd := strings.ToLower(parts[0])
	args := parts[1:]

	switch cmd {
	case "help", "?":
		d.printHelp()
	case "list", "l":
		d.cmdList()
	case "set", "s":
		d.cmdSet(args)
	case "erase", "e":
		d.cmdErase(args)
	case "run":
		d.cmdRun(args)
	case "stop":
		d.svc.Actuator().Stop()
		fmt.Fprintln(d.out, "OK")
	case "press":
		d.cmdPress()
	case "status":
		d.cmdStatus()
	case "time", "t":
		d.cmdTime(args)
	case "sync":
		d.cmdSync(ctx)
	case "quit", "exit", "q":
		return true
	default:
		fmt.Fprintf(d.out, "Unknown command: %s (type 'help' for commands)\n", cmd)
	}
	return false
}

func (d *Device) printHelp() {
	fmt.Fprintln(d.out, `
Feeder Commands:
  Schedule:
    list                     - Show all slots
    set <slot> <HH:MM> <dur> - Feed at HH:MM for dur (e.g. 800ms, 1.5s, 500)
    erase <slot>             - Clear a slot

  Servo:
    run <dur>                - Dispense now
    stop                     - Stop a run in progress
    press                    - Press the button (simulation only)

  Clock:
    time                     - Show the RTC time
    time <YYYY-MM-DD> <HH:MM:SS> - Set the RTC time
    sync                     - Set the RTC from NTP

  General:
    status                   - Show device status
    help                     - Show this help
    quit                     - Exit`)
}

func (d *Device) cmdList() {
	sched, err := d.svc.Store().All()
	if err != nil {
		fmt.Fprintf(d.out, "Error: %v\n", err)
		return
	}

	used := 0
	fmt.Fprintln(d.out, "\nSlot  Schedule")
	fmt.Fprintln(d.out, "----------------------------")
	for i, slot := range sched {
		if slot.IsUsed() {
			used++
		}
		fmt.Fprintf(d.out, "%4d  %s\n", i, slot)
	}
	fmt.Fprintf(d.out, "\n%d of %d slots used\n", used, schedule.Slots)
}

func (d *Device) cmdSet(args []string) {
	if len(args) != 3 {
		fmt.Fprintln(d.out, "Usage: set <slot> <HH:MM> <duration>")
		fmt.Fprintln(d.out, "  Example: set 0 08:30 800ms")
		return
	}

	slot, ok := d.parseSlot(args[0])
	if !ok {
		return
	}
	hour, minute, err := client.ParseClock(args[1])
	if err != nil {
		fmt.Fprintf(d.out, "Error: %v\n", err)
		return
	}
	dur, err := client.ParseDuration(args[2])
	if err != nil {
		fmt.Fprintf(d.out, "Error: %v\n", err)
		return
	}
	units, err := client.Units(dur)
	if err != nil {
		fmt.Fprintf(d.out, "Error: %v\n", err)
		return
	}

	if err := d.svc.SetSlot(slot, byte(hour), byte(minute), units); err != nil {
		fmt.Fprintf(d.out, "Set failed: %v\n", err)
		return
	}
	fmt.Fprintf(d.out, "Slot %d: %s\n", slot, schedule.Scheduled(byte(hour), byte(minute), units))
}

func (d *Device) cmdErase(args []string) {
	if len(args) != 1 {
		fmt.Fprintln(d.out, "Usage: erase <slot>")
		return
	}
	slot, ok := d.parseSlot(args[0])
	if !ok {
		return
	}
	if err := d.svc.EraseSlot(slot); err != nil {
		fmt.Fprintf(d.out, "Erase failed: %v\n", err)
		return
	}
	fmt.Fprintf(d.out, "Slot %d erased\n", slot)
}

func (d *Device) parseSlot(s string) (int, bool) {
	slot, err := strconv.Atoi(s)
	if err != nil || slot < 0 || slot >= schedule.Slots {
		fmt.Fprintf(d.out, "Invalid slot %q (0-%d)\n", s, schedule.Slots-1)
		return 0, false
	}
	return slot, true
}

func (d *Device) cmdRun(args []string) {
	if len(args) != 1 {
		fmt.Fprintln(d.out, "Usage: run <duration>")
		return
	}
	dur, err := client.ParseDuration(args[0])
	if err != nil || dur <= 0 {
		fmt.Fprintf(d.out, "Invalid duration %q\n", args[0])
		return
	}
	if !d.svc.ManualRun(dur) {
		fmt.Fprintln(d.out, "Servo busy, run ignored")
		return
	}
	fmt.Fprintf(d.out, "Dispensing for %s\n", dur)
}

func (d *Device) cmdPress() {
	if d.button == nil {
		fmt.Fprintln(d.out, "No simulated button (running on hardware)")
		return
	}
	go func() {
		d.button.Set(false)
		time.Sleep(pressHold)
		d.button.Set(true)
	}()
	fmt.Fprintln(d.out, "Button pressed")
}

func (d *Device) cmdStatus() {
	h := d.svc.Health()
	rec := d.svc.Record()

	fmt.Fprintln(d.out, "\nDevice Status:")
	fmt.Fprintln(d.out, "-------------------------------------------")
	fmt.Fprintf(d.out, "  Service:   %s\n", d.svc.State())
	fmt.Fprintf(d.out, "  Health:    %s\n", h.Status)
	fmt.Fprintf(d.out, "  Port:      %d\n", d.svc.Port())
	fmt.Fprintf(d.out, "  Servo:     %s\n", h.Servo)
	fmt.Fprintf(d.out, "  Clock:     %s\n", okString(h.ClockOK))
	fmt.Fprintf(d.out, "  Schedule:  %s\n", okString(h.ScheduleOK))
	fmt.Fprintf(d.out, "  MQTT:      %s\n", connString(h.MQTTConnected))
	if !h.LastSync.IsZero() {
		fmt.Fprintf(d.out, "  Last sync: %s\n", h.LastSync.Format(time.DateTime))
	}
	if f := rec.LastFeeding; f != nil {
		fmt.Fprintf(d.out, "  Last feed: %s %s (%s)\n", f.At.Format(time.DateTime), f.Duration, f.Source)
	}
	for source, n := range rec.Feedings {
		fmt.Fprintf(d.out, "  Feedings:  %-8s %d\n", source, n)
	}
}

func (d *Device) cmdTime(args []string) {
	clock := d.svc.Clock()

	if len(args) == 0 {
		now, err := clock.Now()
		if err != nil {
			fmt.Fprintf(d.out, "Error: %v\n", err)
			return
		}
		fmt.Fprintln(d.out, now)
		return
	}

	if len(args) != 2 {
		fmt.Fprintln(d.out, "Usage: time [<YYYY-MM-DD> <HH:MM:SS>]")
		return
	}
	t, err := time.Parse(time.DateTime, args[0]+" "+args[1])
	if err != nil {
		fmt.Fprintf(d.out, "Invalid time: %v\n", err)
		return
	}
	if err := clock.SetTime(rtc.FromTime(t)); err != nil {
		fmt.Fprintf(d.out, "Set time failed: %v\n", err)
		return
	}
	fmt.Fprintf(d.out, "Clock set to %s\n", rtc.FromTime(t))
}

func (d *Device) cmdSync(ctx context.Context) {
	ctx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	if err := d.svc.SyncClock(ctx); err != nil {
		fmt.Fprintf(d.out, "Sync failed: %v\n", err)
		return
	}
	fmt.Fprintln(d.out, "Clock synchronised")
}

func (d *Device) handleEvent(event service.Event) {
	switch event.Type {
	case service.EventFeeding:
		fmt.Fprintf(d.out, "\n[FEED] slot %d for %s\n", event.Slot, event.Duration)
	case service.EventManualRun:
		fmt.Fprintf(d.out, "\n[FEED] %s run for %s (started=%t)\n",
			strings.ToLower(event.Source.String()), event.Duration, event.Started)
	case service.EventHardwareFault:
		fmt.Fprintf(d.out, "\n[FAULT] %s: %v\n", event.Op, event.Error)
	}
}

func okString(ok bool) string {
	if ok {
		return "ok"
	}
	return "FAULT"
}

func connString(ok bool) string {
	if ok {
		return "connected"
	}
	return "not connected"
}
