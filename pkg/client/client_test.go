package client

import (
	"net"
	"strconv"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fishfeeder/feeder-go/pkg/protocol"
	"github.com/fishfeeder/feeder-go/pkg/rtc"
	"github.com/fishfeeder/feeder-go/pkg/schedule"
	"github.com/fishfeeder/feeder-go/pkg/servo/mocks"
	"github.com/fishfeeder/feeder-go/pkg/transport"
)

func startDevice(t *testing.T) (*Client, *mocks.MockStarter) {
	t.Helper()
	store := schedule.NewStore(rtc.NewMemory())
	require.NoError(t, store.Initialize())

	starter := mocks.NewMockStarter(t)
	handler := protocol.NewHandler(store, starter, protocol.HandlerConfig{})

	srv, err := transport.NewServer(handler, transport.ServerConfig{Address: "127.0.0.1:0"})
	require.NoError(t, err)
	require.NoError(t, srv.Start(t.Context()))
	t.Cleanup(func() { _ = srv.Stop() })

	return New(srv.Addr().String(), WithTimeout(time.Second)), starter
}

func TestNewDefaultsPort(t *testing.T) {
	assert.Equal(t, "10.0.0.5:2390", New("10.0.0.5").Addr())
	assert.Equal(t, "10.0.0.5:4000", New("10.0.0.5:4000").Addr())
}

func TestScheduleRoundTrip(t *testing.T) {
	c, _ := startDevice(t)

	sched, err := c.Schedule(t.Context())
	require.NoError(t, err)
	for _, slot := range sched {
		assert.True(t, slot.IsEmpty())
	}

	sched, err = c.Set(t.Context(), 3, 8, 30, 500*time.Millisecond)
	require.NoError(t, err)
	assert.Equal(t, "08:30 for 500ms", sched[3].String())

	sched, err = c.Erase(t.Context(), 3)
	require.NoError(t, err)
	assert.True(t, sched[3].IsEmpty())
}

func TestRun(t *testing.T) {
	c, starter := startDevice(t)
	started := make(chan struct{})
	starter.EXPECT().Start(2 * time.Second).Run(func(time.Duration) { close(started) }).Return(true).Once()

	require.NoError(t, c.Run(t.Context(), 2*time.Second))
	select {
	case <-started:
	case <-time.After(time.Second):
		t.Fatal("servo not started")
	}
}

func TestSlotRangeCheckedLocally(t *testing.T) {
	c := New("127.0.0.1:1")
	_, err := c.Set(t.Context(), schedule.Slots, 1, 1, time.Second)
	assert.ErrorIs(t, err, schedule.ErrOutOfRange)
	_, err = c.Erase(t.Context(), -1)
	assert.ErrorIs(t, err, schedule.ErrOutOfRange)
}

func TestRejectedRequestHasNoResponse(t *testing.T) {
	c, _ := startDevice(t)
	_, err := c.Do(t.Context(), protocol.DeleteSlot{Slot: 200})
	assert.ErrorIs(t, err, ErrNoResponse)
}

func TestDialFailure(t *testing.T) {
	lis, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	port := lis.Addr().(*net.TCPAddr).Port
	lis.Close()

	_, err = New("127.0.0.1:" + strconv.Itoa(port)).Schedule(t.Context())
	assert.Error(t, err)
}

func TestUnits(t *testing.T) {
	tests := []struct {
		in      time.Duration
		want    byte
		wantErr bool
	}{
		{0, 0, false},
		{100 * time.Millisecond, 1, false},
		{149 * time.Millisecond, 1, false},
		{150 * time.Millisecond, 2, false},
		{25400 * time.Millisecond, 254, false},
		{25500 * time.Millisecond, 0, true},
		{-time.Second, 0, true},
	}
	for _, tt := range tests {
		got, err := Units(tt.in)
		if tt.wantErr {
			assert.Error(t, err, tt.in)
			continue
		}
		require.NoError(t, err, tt.in)
		assert.Equal(t, tt.want, got, tt.in)
	}
}
