package transport

import (
	"context"
	"errors"
	"io"
	"net"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fishfeeder/feeder-go/pkg/log"
)

type eventSink struct {
	mu     sync.Mutex
	events []log.Event
}

func (s *eventSink) Log(e log.Event) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.events = append(s.events, e)
}

func (s *eventSink) snapshot() []log.Event {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]log.Event(nil), s.events...)
}

func startServer(t *testing.T, h Handler, cfg ServerConfig) *Server {
	t.Helper()
	cfg.Address = "127.0.0.1:0"
	srv, err := NewServer(h, cfg)
	require.NoError(t, err)
	require.NoError(t, srv.Start(context.Background()))
	t.Cleanup(func() { _ = srv.Stop() })
	return srv
}

func echoOne(ctx context.Context, conn io.ReadWriter) error {
	buf := make([]byte, 1)
	if _, err := io.ReadFull(conn, buf); err != nil {
		return err
	}
	_, err := conn.Write([]byte{buf[0], buf[0]})
	return err
}

func TestNewServerRequiresHandler(t *testing.T) {
	_, err := NewServer(nil, ServerConfig{})
	assert.Error(t, err)
}

func TestServerDefaults(t *testing.T) {
	srv, err := NewServer(HandlerFunc(echoOne), ServerConfig{})
	require.NoError(t, err)
	assert.Equal(t, ":2390", srv.config.Address)
	assert.Equal(t, DefaultConnTimeout, srv.config.ConnTimeout)
	assert.Nil(t, srv.Addr())
	assert.Equal(t, 0, srv.Port())
}

func TestServerServesAndCloses(t *testing.T) {
	sink := &eventSink{}
	srv := startServer(t, HandlerFunc(echoOne), ServerConfig{EventLogger: sink})
	assert.NotZero(t, srv.Port())

	conn, err := net.Dial("tcp", srv.Addr().String())
	require.NoError(t, err)
	defer conn.Close()

	_, err = conn.Write([]byte{'u'})
	require.NoError(t, err)

	resp, err := io.ReadAll(conn)
	require.NoError(t, err, "server must close the connection")
	assert.Equal(t, []byte{'u', 'u'}, resp)

	require.Eventually(t, func() bool { return srv.Served() == 1 }, time.Second, 5*time.Millisecond)

	events := sink.snapshot()
	require.Len(t, events, 4)
	assert.Equal(t, "OPEN", events[0].StateChange.NewState)
	assert.Equal(t, log.DirectionIn, events[1].Direction)
	assert.Equal(t, []byte{'u'}, events[1].Frame.Data)
	assert.Equal(t, log.DirectionOut, events[2].Direction)
	assert.Equal(t, "CLOSED", events[3].StateChange.NewState)
	assert.NotEmpty(t, events[0].ConnectionID)
	assert.Equal(t, events[0].ConnectionID, events[3].ConnectionID)
}

func TestServerDeadline(t *testing.T) {
	var gotErr atomic.Value
	srv := startServer(t, HandlerFunc(echoOne), ServerConfig{
		ConnTimeout: 50 * time.Millisecond,
		OnError: func(_ string, err error) {
			gotErr.Store(err)
		},
	})

	conn, err := net.Dial("tcp", srv.Addr().String())
	require.NoError(t, err)
	defer conn.Close()

	// Send nothing; the server must give up and close.
	_ = conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	_, err = conn.Read(make([]byte, 1))
	assert.Error(t, err)

	require.Eventually(t, func() bool { return gotErr.Load() != nil }, time.Second, 5*time.Millisecond)
	var netErr net.Error
	assert.True(t, errors.As(gotErr.Load().(error), &netErr) && netErr.Timeout())
}

func TestServerIsSequential(t *testing.T) {
	var active, maxActive atomic.Int32
	release := make(chan struct{})

	h := HandlerFunc(func(ctx context.Context, conn io.ReadWriter) error {
		n := active.Add(1)
		if n > maxActive.Load() {
			maxActive.Store(n)
		}
		<-release
		active.Add(-1)
		return nil
	})
	srv := startServer(t, h, ServerConfig{ConnTimeout: time.Second})

	for i := 0; i < 3; i++ {
		conn, err := net.Dial("tcp", srv.Addr().String())
		require.NoError(t, err)
		defer conn.Close()
	}

	for i := 0; i < 3; i++ {
		release <- struct{}{}
	}
	require.Eventually(t, func() bool { return srv.Served() == 3 }, 2*time.Second, 5*time.Millisecond)
	assert.Equal(t, int32(1), maxActive.Load())
}

func TestServerStopIdempotent(t *testing.T) {
	srv := startServer(t, HandlerFunc(echoOne), ServerConfig{})
	require.NoError(t, srv.Stop())
	require.NoError(t, srv.Stop())
}

func TestServerDoubleStart(t *testing.T) {
	srv := startServer(t, HandlerFunc(echoOne), ServerConfig{})
	assert.Error(t, srv.Start(context.Background()))
}

// brokenListener fails every Accept until closed.
type brokenListener struct {
	accepts atomic.Int32
	closed  chan struct{}
	once    sync.Once
}

func newBrokenListener() *brokenListener {
	return &brokenListener{closed: make(chan struct{})}
}

func (l *brokenListener) Accept() (net.Conn, error) {
	l.accepts.Add(1)
	select {
	case <-l.closed:
		return nil, net.ErrClosed
	default:
		return nil, errors.New("accept: too many open files")
	}
}

func (l *brokenListener) Close() error {
	l.once.Do(func() { close(l.closed) })
	return nil
}

func (l *brokenListener) Addr() net.Addr {
	return &net.TCPAddr{IP: net.IPv4(127, 0, 0, 1), Port: DefaultPort}
}

func TestServerBacksOffOnAcceptErrors(t *testing.T) {
	ln := newBrokenListener()
	var errs atomic.Int32
	srv, err := NewServer(HandlerFunc(echoOne), ServerConfig{
		Listener: ln,
		OnError:  func(string, error) { errs.Add(1) },
	})
	require.NoError(t, err)
	require.NoError(t, srv.Start(context.Background()))

	time.Sleep(100 * time.Millisecond)
	require.NoError(t, srv.Stop())

	n := ln.accepts.Load()
	assert.Greater(t, n, int32(1), "accept retried")
	assert.Less(t, n, int32(50), "accept errors retried without delay")
	assert.InDelta(t, n, errs.Load(), 1, "each failed accept reported")
}
