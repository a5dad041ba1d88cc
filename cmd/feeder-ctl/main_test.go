package main

import (
	"bytes"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fishfeeder/feeder-go/pkg/discovery"
	"github.com/fishfeeder/feeder-go/pkg/protocol"
	"github.com/fishfeeder/feeder-go/pkg/rtc"
	"github.com/fishfeeder/feeder-go/pkg/schedule"
	"github.com/fishfeeder/feeder-go/pkg/servo/mocks"
	"github.com/fishfeeder/feeder-go/pkg/transport"
)

func startFeeder(t *testing.T) (string, *schedule.Store, *mocks.MockStarter) {
	t.Helper()
	store := schedule.NewStore(rtc.NewMemory())
	require.NoError(t, store.Initialize())

	starter := mocks.NewMockStarter(t)
	handler := protocol.NewHandler(store, starter, protocol.HandlerConfig{})

	srv, err := transport.NewServer(handler, transport.ServerConfig{Address: "127.0.0.1:0"})
	require.NoError(t, err)
	require.NoError(t, srv.Start(t.Context()))
	t.Cleanup(func() { _ = srv.Stop() })

	return srv.Addr().String(), store, starter
}

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	var out bytes.Buffer
	root := newRootCmd()
	root.SetOut(&out)
	root.SetErr(&out)
	root.SetArgs(args)
	err := root.ExecuteContext(t.Context())
	return out.String(), err
}

func TestSetListErase(t *testing.T) {
	addr, store, _ := startFeeder(t)

	out, err := execute(t, "--addr", addr, "set", "4", "19:05", "1.2s")
	require.NoError(t, err)
	assert.Contains(t, out, "Slot 4: 19:05 for 1.2s")

	slot, err := store.Get(4)
	require.NoError(t, err)
	assert.Equal(t, 12, slot.Units())

	out, err = execute(t, "--addr", addr, "list")
	require.NoError(t, err)
	assert.Contains(t, out, "   4  19:05 for 1.2s")
	assert.Contains(t, out, "1 of 18 slots used")
	assert.NotContains(t, out, "unused")

	out, err = execute(t, "--addr", addr, "list", "--all")
	require.NoError(t, err)
	assert.Contains(t, out, "unused")

	out, err = execute(t, "--addr", addr, "erase", "4")
	require.NoError(t, err)
	assert.Contains(t, out, "Slot 4 erased")

	slot, err = store.Get(4)
	require.NoError(t, err)
	assert.True(t, slot.IsEmpty())
}

func TestRunCommand(t *testing.T) {
	addr, _, starter := startFeeder(t)
	started := make(chan struct{})
	starter.EXPECT().Start(700 * time.Millisecond).Run(func(time.Duration) { close(started) }).Return(true).Once()

	out, err := execute(t, "--addr", addr, "run", "700")
	require.NoError(t, err)
	assert.Contains(t, out, "Run requested for 700ms")

	select {
	case <-started:
	case <-time.After(time.Second):
		t.Fatal("servo not started")
	}
}

func TestArgumentErrors(t *testing.T) {
	_, err := execute(t, "set", "18", "08:00", "500ms")
	assert.ErrorIs(t, err, schedule.ErrOutOfRange)

	_, err = execute(t, "set", "1", "8h", "500ms")
	assert.Error(t, err)

	_, err = execute(t, "erase")
	assert.Error(t, err)

	_, err = execute(t, "run", "30s")
	assert.Error(t, err)

	_, err = execute(t, "discover", "--beacon=false", "--mdns=false")
	assert.ErrorContains(t, err, "nothing to do")
}

func TestPrintFound(t *testing.T) {
	found := make(chan discovery.Found, 3)
	found <- discovery.Found{Name: "Aquarium", Version: "1.2.0", Protocol: "1.0", Host: "aquarium.local.", Port: 2390, Addresses: []string{"192.168.1.40"}, Via: "mdns"}
	found <- discovery.Found{Host: "192.168.1.41", Port: 2390, Addresses: []string{"192.168.1.41"}, Via: "beacon"}
	found <- discovery.Found{Name: "Pond", Protocol: "2.0", Host: "pond.local.", Port: 2390, Via: "mdns"}
	close(found)

	var out bytes.Buffer
	assert.Equal(t, 3, printFound(&out, found))

	lines := strings.Split(strings.TrimSpace(out.String()), "\n")
	require.Len(t, lines, 3)
	assert.Contains(t, lines[0], "Aquarium")
	assert.Contains(t, lines[0], "aquarium.local.:2390  [192.168.1.40]  v1.2.0")
	assert.NotContains(t, lines[0], "unsupported")
	assert.Contains(t, lines[1], "beacon -")
	assert.Contains(t, lines[2], "(protocol 2.0 unsupported)")
}

func TestMergeClosesWhenSourcesClose(t *testing.T) {
	a := make(chan discovery.Found, 1)
	b := make(chan discovery.Found, 1)
	a <- discovery.Found{Port: 1}
	b <- discovery.Found{Port: 2}
	close(a)
	close(b)

	var ports []int
	for f := range merge(a, b) {
		ports = append(ports, f.Port)
	}
	assert.ElementsMatch(t, []int{1, 2}, ports)
}
