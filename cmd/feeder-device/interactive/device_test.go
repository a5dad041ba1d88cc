package interactive

import (
	"bytes"
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fishfeeder/feeder-go/pkg/hal"
	"github.com/fishfeeder/feeder-go/pkg/rtc"
	"github.com/fishfeeder/feeder-go/pkg/service"
	"github.com/fishfeeder/feeder-go/pkg/servo"
)

type lockedBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *lockedBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *lockedBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}

func (b *lockedBuffer) Reset() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.buf.Reset()
}

type consoleFixture struct {
	console *Device
	svc     *service.DeviceService
	mem     *rtc.Memory
	pwm     *hal.FakePWM
	button  *hal.FakeInput
	out     *lockedBuffer
}

func newConsole(t *testing.T) *consoleFixture {
	t.Helper()
	f := &consoleFixture{
		mem:    rtc.NewMemory(),
		pwm:    hal.NewFakePWM(),
		button: hal.NewFakeInput(),
		out:    &lockedBuffer{},
	}

	cfg := service.DefaultDeviceConfig()
	cfg.ListenAddress = "127.0.0.1:0"
	cfg.Servo = servo.Config{Settle: time.Millisecond, Tick: time.Millisecond}

	svc, err := service.NewDeviceService(service.Hardware{RTC: f.mem, Servo: f.pwm, Button: f.button}, cfg)
	require.NoError(t, err)
	require.NoError(t, svc.Store().Initialize())

	f.svc = svc
	f.console = newDevice(svc, f.button, f.out)
	return f
}

func (f *consoleFixture) exec(line string) string {
	f.out.Reset()
	f.console.Exec(context.Background(), line)
	return f.out.String()
}

func TestSetAndList(t *testing.T) {
	f := newConsole(t)

	out := f.exec("set 0 08:30 800ms")
	assert.Contains(t, out, "Slot 0: 08:30 for 800ms")

	slot, err := f.svc.Store().Get(0)
	require.NoError(t, err)
	assert.Equal(t, 8, slot.Hour())
	assert.Equal(t, 30, slot.Minute())
	assert.Equal(t, 8, slot.Units())

	out = f.exec("list")
	assert.Contains(t, out, "08:30 for 800ms")
	assert.Contains(t, out, "1 of 18 slots used")
}

func TestSetRejectsBadInput(t *testing.T) {
	f := newConsole(t)

	assert.Contains(t, f.exec("set 18 08:30 500"), "Invalid slot")
	assert.Contains(t, f.exec("set 0 25:00 500"), "hour must be 0-23")
	assert.Contains(t, f.exec("set 0 08:30 60s"), "exceeds")
	assert.Contains(t, f.exec("set 0"), "Usage: set")

	slot, err := f.svc.Store().Get(0)
	require.NoError(t, err)
	assert.True(t, slot.IsEmpty())
}

func TestErase(t *testing.T) {
	f := newConsole(t)
	require.NoError(t, f.svc.SetSlot(3, 7, 0, 5))

	assert.Contains(t, f.exec("erase 3"), "Slot 3 erased")

	slot, err := f.svc.Store().Get(3)
	require.NoError(t, err)
	assert.True(t, slot.IsEmpty())
}

func TestRun(t *testing.T) {
	f := newConsole(t)

	assert.Contains(t, f.exec("run 1s"), "Dispensing for 1s")
	assert.Equal(t, servo.StateRunning, f.svc.Actuator().Status())
	assert.Contains(t, f.exec("run 1s"), "Servo busy")

	assert.Contains(t, f.exec("stop"), "OK")
	assert.Equal(t, servo.StateIdle, f.svc.Actuator().Status())

	assert.Contains(t, f.exec("run soon"), "Invalid duration")
}

func TestTime(t *testing.T) {
	f := newConsole(t)

	assert.Contains(t, f.exec("time 2024-06-03 12:34:56"), "Clock set")

	now, err := f.mem.Now()
	require.NoError(t, err)
	assert.Equal(t, 2024, now.Year)
	assert.Equal(t, 12, now.Hour)
	assert.Equal(t, 34, now.Minute)

	assert.Contains(t, f.exec("time"), "Monday")
	assert.Contains(t, f.exec("time tomorrow"), "Usage: time")
}

func TestPressWithoutSimulatedButton(t *testing.T) {
	f := newConsole(t)
	f.console.button = nil

	assert.Contains(t, f.exec("press"), "No simulated button")
}

func TestPressTogglesButton(t *testing.T) {
	f := newConsole(t)

	assert.Contains(t, f.exec("press"), "Button pressed")
	assert.Eventually(t, func() bool {
		level, _ := f.button.Read()
		return !level
	}, time.Second, time.Millisecond)
	assert.Eventually(t, func() bool {
		level, _ := f.button.Read()
		return level
	}, time.Second, time.Millisecond)
}

func TestSyncWithoutSyncer(t *testing.T) {
	f := newConsole(t)

	assert.Contains(t, f.exec("sync"), "Sync failed")
}

func TestStatus(t *testing.T) {
	f := newConsole(t)

	out := f.exec("status")
	assert.Contains(t, out, "Service:   IDLE")
	assert.Contains(t, out, "Schedule:  ok")
}

func TestQuitAndUnknown(t *testing.T) {
	f := newConsole(t)

	assert.False(t, f.console.Exec(context.Background(), ""))
	assert.Contains(t, f.exec("feed"), "Unknown command: feed")
	assert.True(t, f.console.Exec(context.Background(), "quit"))
}
