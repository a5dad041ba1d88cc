package transport

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"sync"
	"sync/atomic"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/google/uuid"

	"github.com/fishfeeder/feeder-go/pkg/log"
)

// DefaultPort is the control port.
const DefaultPort = 2390

// DefaultConnTimeout bounds the lifetime of one control connection.
const DefaultConnTimeout = 300 * time.Millisecond

// Accept errors are retried with exponential backoff between these bounds.
const (
	acceptRetryMin = 5 * time.Millisecond
	acceptRetryMax = time.Second
)

// Handler serves one connection. The server closes the connection after
// HandleClient returns.
type Handler interface {
	HandleClient(ctx context.Context, conn io.ReadWriter) error
}

// HandlerFunc adapts a function to Handler.
type HandlerFunc func(ctx context.Context, conn io.ReadWriter) error

// HandleClient calls f.
func (f HandlerFunc) HandleClient(ctx context.Context, conn io.ReadWriter) error {
	return f(ctx, conn)
}

// ServerConfig configures a Server.
type ServerConfig struct {
	// Address to listen on (e.g., ":2390").
	Address string

	// Listener, if set, is used instead of listening on Address.
	Listener net.Listener

	// ConnTimeout is the per-connection deadline (default 300ms).
	ConnTimeout time.Duration

	// Logger for operational logging (optional).
	Logger *slog.Logger

	// EventLogger records connection and frame events (optional).
	EventLogger log.Logger

	// OnError is called for handler and accept errors (optional).
	OnError func(connID string, err error)
}

// Server accepts control connections and serves them sequentially.
type Server struct {
	config  ServerConfig
	handler Handler
	logger  *slog.Logger
	events  log.Logger

	listener net.Listener
	running  atomic.Bool
	served   atomic.Uint64
	cancel   context.CancelFunc
	wg       sync.WaitGroup
}

// NewServer creates a server.
func NewServer(handler Handler, config ServerConfig) (*Server, error) {
	if handler == nil {
		return nil, errors.New("handler is required")
	}
	if config.Address == "" {
		config.Address = fmt.Sprintf(":%d", DefaultPort)
	}
	if config.ConnTimeout <= 0 {
		config.ConnTimeout = DefaultConnTimeout
	}
	if config.Logger == nil {
		config.Logger = slog.Default()
	}
	return &Server{
		config:  config,
		handler: handler,
		logger:  config.Logger,
		events:  log.OrNoop(config.EventLogger),
	}, nil
}

// Start listens and begins accepting connections.
func (s *Server) Start(ctx context.Context) error {
	if s.running.Load() {
		return errors.New("server already running")
	}

	listener := s.config.Listener
	if listener == nil {
		var err error
		listener, err = net.Listen("tcp", s.config.Address)
		if err != nil {
			return fmt.Errorf("failed to listen: %w", err)
		}
	}
	s.listener = listener

	var loopCtx context.Context
	loopCtx, s.cancel = context.WithCancel(ctx)
	s.running.Store(true)

	s.wg.Add(1)
	go s.acceptLoop(loopCtx)

	s.logger.Info("control server listening", "addr", listener.Addr().String())
	return nil
}

// Stop closes the listener and waits for the current connection.
func (s *Server) Stop() error {
	if !s.running.Swap(false) {
		return nil
	}
	s.cancel()
	err := s.listener.Close()
	s.wg.Wait()
	return err
}

// Addr returns the listen address, or nil before Start.
func (s *Server) Addr() net.Addr {
	if s.listener != nil {
		return s.listener.Addr()
	}
	return nil
}

// Port returns the bound TCP port.
func (s *Server) Port() int {
	if addr, ok := s.Addr().(*net.TCPAddr); ok {
		return addr.Port
	}
	return 0
}

// Served returns the number of connections handled.
func (s *Server) Served() uint64 {
	return s.served.Load()
}

func (s *Server) acceptLoop(ctx context.Context) {
	defer s.wg.Done()

	bo := backoff.NewExponentialBackOff()
	bo.InitialInterval = acceptRetryMin
	bo.MaxInterval = acceptRetryMax
	bo.MaxElapsedTime = 0

	for s.running.Load() {
		conn, err := s.listener.Accept()
		if err != nil {
			if !s.running.Load() {
				return
			}
			s.reportError("", fmt.Errorf("accept error: %w", err))

			// Persistent errors such as EMFILE would otherwise spin.
			select {
			case <-ctx.Done():
				return
			case <-time.After(bo.NextBackOff()):
			}
			continue
		}
		bo.Reset()
		s.serve(ctx, conn)
	}
}

// serve handles conn to completion.
func (s *Server) serve(ctx context.Context, conn net.Conn) {
	id := uuid.New().String()
	remote := conn.RemoteAddr().String()
	info := log.ConnInfo{ID: id, RemoteAddr: remote}

	s.logState(info, "", "OPEN", "")
	_ = conn.SetDeadline(time.Now().Add(s.config.ConnTimeout))

	rc := &recordingConn{Conn: conn}
	err := s.handler.HandleClient(log.WithConn(ctx, info), rc)
	conn.Close()

	s.logFrame(info, log.DirectionIn, rc.in)
	s.logFrame(info, log.DirectionOut, rc.out)

	reason := ""
	if err != nil && !errors.Is(err, io.EOF) {
		reason = err.Error()
		s.reportError(id, err)
	}
	s.logState(info, "OPEN", "CLOSED", reason)
	s.served.Add(1)
}

func (s *Server) reportError(connID string, err error) {
	s.logger.Debug("control connection error", "conn_id", connID, "error", err)
	if s.config.OnError != nil {
		s.config.OnError(connID, err)
	}
}

func (s *Server) logState(info log.ConnInfo, from, to, reason string) {
	s.events.Log(log.Event{
		Timestamp:    time.Now(),
		ConnectionID: info.ID,
		RemoteAddr:   info.RemoteAddr,
		Layer:        log.LayerTransport,
		Category:     log.CategoryState,
		StateChange: &log.StateChangeEvent{
			Entity:   log.StateEntityConnection,
			OldState: from,
			NewState: to,
			Reason:   reason,
		},
	})
}

func (s *Server) logFrame(info log.ConnInfo, dir log.Direction, data []byte) {
	if len(data) == 0 {
		return
	}
	s.events.Log(log.Event{
		Timestamp:    time.Now(),
		ConnectionID: info.ID,
		RemoteAddr:   info.RemoteAddr,
		Direction:    dir,
		Layer:        log.LayerTransport,
		Category:     log.CategoryMessage,
		Frame:        &log.FrameEvent{Size: len(data), Data: data},
	})
}

// recordingConn keeps a copy of the bytes read and written.
type recordingConn struct {
	net.Conn
	in  []byte
	out []byte
}

func (c *recordingConn) Read(p []byte) (int, error) {
	n, err := c.Conn.Read(p)
	c.in = append(c.in, p[:n]...)
	return n, err
}

func (c *recordingConn) Write(p []byte) (int, error) {
	n, err := c.Conn.Write(p)
	c.out = append(c.out, p[:n]...)
	return n, err
}
