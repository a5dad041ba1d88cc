package metrics

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMetricsRecord(t *testing.T) {
	reg := prometheus.NewRegistry()
	m, err := New(reg)
	require.NoError(t, err)

	m.ObserveFeeding("SCHEDULE", true)
	m.ObserveFeeding("SCHEDULE", true)
	m.ObserveFeeding("MANUAL", false)
	m.ObserveRequest("QUERY", 2*time.Millisecond, true)
	m.ObserveHardwareFault("read nvram")
	m.ObserveConnection()
	m.SetServoRunning(true)
	m.SetUsedSlots(3)
	at := time.Unix(1717400000, 0)
	m.ObserveSync("ok", at)
	m.ObserveSync("skipped", time.Time{})

	assert.Equal(t, 2.0, testutil.ToFloat64(m.feedingsTotal.WithLabelValues("SCHEDULE", "true")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.feedingsTotal.WithLabelValues("MANUAL", "false")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.requestsTotal.WithLabelValues("QUERY", "ok")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.hardwareFaultsTotal.WithLabelValues("read nvram")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.connectionsTotal))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.servoRunning))
	assert.Equal(t, 3.0, testutil.ToFloat64(m.scheduledSlots))
	assert.Equal(t, float64(at.Unix()), testutil.ToFloat64(m.lastSync))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.syncsTotal.WithLabelValues("skipped")))

	m.SetServoRunning(false)
	assert.Equal(t, 0.0, testutil.ToFloat64(m.servoRunning))
}

func TestNewReusesRegistered(t *testing.T) {
	reg := prometheus.NewRegistry()
	first, err := New(reg)
	require.NoError(t, err)
	second, err := New(reg)
	require.NoError(t, err)

	first.ObserveConnection()
	second.ObserveConnection()
	assert.Equal(t, 2.0, testutil.ToFloat64(first.connectionsTotal))
}

func TestHandler(t *testing.T) {
	reg := prometheus.NewRegistry()
	m, err := New(reg)
	require.NoError(t, err)
	m.ObserveConnection()

	srv := httptest.NewServer(Handler(reg, func() Health {
		return Health{Status: "degraded", Servo: "IDLE", ClockOK: true}
	}))
	defer srv.Close()

	resp, err := http.Get(srv.URL + "/metrics")
	require.NoError(t, err)
	body, _ := io.ReadAll(resp.Body)
	resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.True(t, strings.Contains(string(body), "fishfeeder_transport_connections_total 1"))

	resp, err = http.Get(srv.URL + "/healthz")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	var h Health
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&h))
	assert.Equal(t, "degraded", h.Status)
	assert.Equal(t, "IDLE", h.Servo)
}

func TestHealthDown(t *testing.T) {
	srv := httptest.NewServer(Handler(prometheus.NewRegistry(), func() Health {
		return Health{Status: "down"}
	}))
	defer srv.Close()

	resp, err := http.Get(srv.URL + "/healthz")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusServiceUnavailable, resp.StatusCode)
}

func TestServerServe(t *testing.T) {
	s, err := Listen("127.0.0.1:0", Handler(prometheus.NewRegistry(), nil), nil)
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(t.Context())
	done := make(chan error, 1)
	go func() { done <- s.Serve(ctx) }()

	require.Eventually(t, func() bool {
		resp, err := http.Get("http://" + s.Addr().String() + "/healthz")
		if err != nil {
			return false
		}
		resp.Body.Close()
		return resp.StatusCode == http.StatusOK
	}, 2*time.Second, 10*time.Millisecond)

	cancel()
	assert.NoError(t, <-done)
}
