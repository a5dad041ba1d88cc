package metrics

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Health is the /healthz document.
type Health struct {
	Status        string    `json:"status"`
	Servo         string    `json:"servo"`
	ClockOK       bool      `json:"clock_ok"`
	ScheduleOK    bool      `json:"schedule_ok"`
	MQTTConnected bool      `json:"mqtt_connected"`
	LastSync      time.Time `json:"last_sync,omitzero"`
}

// HealthFunc reports current device health.
type HealthFunc func() Health

// Handler serves /metrics from gatherer and /healthz from health.
// A nil gatherer uses the default registry.
func Handler(gatherer prometheus.Gatherer, health HealthFunc) http.Handler {
	if gatherer == nil {
		gatherer = prometheus.DefaultGatherer
	}
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{}))
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		st := Health{Status: "ok"}
		if health != nil {
			st = health()
		}
		w.Header().Set("Content-Type", "application/json")
		if st.Status == "down" {
			w.WriteHeader(http.StatusServiceUnavailable)
		}
		_ = json.NewEncoder(w).Encode(st)
	})
	return mux
}

// Server is the HTTP endpoint for metrics and health.
type Server struct {
	srv    *http.Server
	lis    net.Listener
	logger *slog.Logger
}

// Listen binds addr and prepares the server.
func Listen(addr string, handler http.Handler, logger *slog.Logger) (*Server, error) {
	if logger == nil {
		logger = slog.Default()
	}
	lis, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, fmt.Errorf("listen metrics %s: %w", addr, err)
	}
	return &Server{
		srv:    &http.Server{Handler: handler, ReadHeaderTimeout: 5 * time.Second},
		lis:    lis,
		logger: logger,
	}, nil
}

// Addr returns the bound address.
func (s *Server) Addr() net.Addr {
	return s.lis.Addr()
}

// Serve runs until ctx is done, then shuts down.
func (s *Server) Serve(ctx context.Context) error {
	errCh := make(chan error, 1)
	go func() {
		errCh <- s.srv.Serve(s.lis)
	}()
	s.logger.Info("metrics listening", "addr", s.lis.Addr().String())

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := s.srv.Shutdown(shutdownCtx); err != nil && !errors.Is(err, http.ErrServerClosed) {
		s.logger.Warn("metrics shutdown failed", "error", err)
	}
	return nil
}
