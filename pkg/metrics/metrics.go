// Package metrics exposes feeder counters to Prometheus and serves a
// health endpoint.
package metrics

import (
	"errors"
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "fishfeeder"

// Metrics holds the device collectors.
type Metrics struct {
	feedingsTotal       *prometheus.CounterVec
	requestsTotal       *prometheus.CounterVec
	requestDuration     *prometheus.HistogramVec
	hardwareFaultsTotal *prometheus.CounterVec
	syncsTotal          *prometheus.CounterVec
	connectionsTotal    prometheus.Counter
	servoRunning        prometheus.Gauge
	scheduledSlots      prometheus.Gauge
	lastSync            prometheus.Gauge
}

// New creates and registers the collectors. A nil reg uses the default
// registerer. Collectors already registered are reused.
func New(reg prometheus.Registerer) (*Metrics, error) {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}

	m := &Metrics{
		feedingsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "feedings_total",
				Help:      "Servo runs requested, by source and whether the servo started.",
			},
			[]string{"source", "started"},
		),
		requestsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "protocol",
				Name:      "requests_total",
				Help:      "Client requests by kind and result.",
			},
			[]string{"kind", "result"},
		),
		requestDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Subsystem: "protocol",
				Name:      "request_duration_seconds",
				Help:      "Time to read, apply and answer a client request.",
				Buckets:   []float64{0.0005, 0.001, 0.0025, 0.005, 0.01, 0.025, 0.05, 0.1, 0.3},
			},
			[]string{"kind"},
		),
		hardwareFaultsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "rtc",
				Name:      "hardware_faults_total",
				Help:      "Clock or NVRAM operations that failed after retries.",
			},
			[]string{"op"},
		),
		syncsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "timesync",
				Name:      "syncs_total",
				Help:      "NTP sync attempts by result (ok, failed, skipped).",
			},
			[]string{"result"},
		),
		connectionsTotal: prometheus.NewCounter(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "transport",
				Name:      "connections_total",
				Help:      "Client connections served.",
			},
		),
		servoRunning: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Subsystem: "servo",
				Name:      "running",
				Help:      "1 while the dispenser servo is running.",
			},
		),
		scheduledSlots: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Subsystem: "schedule",
				Name:      "used_slots",
				Help:      "Number of schedule slots in use.",
			},
		),
		lastSync: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Subsystem: "timesync",
				Name:      "last_success_timestamp_seconds",
				Help:      "Unix time of the last successful clock sync.",
			},
		),
	}
	if err := m.register(reg); err != nil {
		return nil, err
	}
	return m, nil
}

func (m *Metrics) register(reg prometheus.Registerer) error {
	if err := registerOrReuse(reg, &m.feedingsTotal); err != nil {
		return fmt.Errorf("register feedings counter: %w", err)
	}
	if err := registerOrReuse(reg, &m.requestsTotal); err != nil {
		return fmt.Errorf("register requests counter: %w", err)
	}
	if err := registerOrReuse(reg, &m.requestDuration); err != nil {
		return fmt.Errorf("register request duration histogram: %w", err)
	}
	if err := registerOrReuse(reg, &m.hardwareFaultsTotal); err != nil {
		return fmt.Errorf("register hardware fault counter: %w", err)
	}
	if err := registerOrReuse(reg, &m.syncsTotal); err != nil {
		return fmt.Errorf("register sync counter: %w", err)
	}
	if err := registerOrReuse(reg, &m.connectionsTotal); err != nil {
		return fmt.Errorf("register connections counter: %w", err)
	}
	if err := registerOrReuse(reg, &m.servoRunning); err != nil {
		return fmt.Errorf("register servo gauge: %w", err)
	}
	if err := registerOrReuse(reg, &m.scheduledSlots); err != nil {
		return fmt.Errorf("register slots gauge: %w", err)
	}
	if err := registerOrReuse(reg, &m.lastSync); err != nil {
		return fmt.Errorf("register last sync gauge: %w", err)
	}
	return nil
}

func registerOrReuse[C prometheus.Collector](reg prometheus.Registerer, c *C) error {
	if err := reg.Register(*c); err != nil {
		var already prometheus.AlreadyRegisteredError
		if !errors.As(err, &already) {
			return err
		}
		existing, ok := already.ExistingCollector.(C)
		if !ok {
			return fmt.Errorf("collector type mismatch for %T", *c)
		}
		*c = existing
	}
	return nil
}

// ObserveFeeding counts a servo run request.
func (m *Metrics) ObserveFeeding(source string, started bool) {
	m.feedingsTotal.WithLabelValues(source, fmt.Sprint(started)).Inc()
}

// ObserveRequest records a handled client request.
func (m *Metrics) ObserveRequest(kind string, d time.Duration, ok bool) {
	result := "error"
	if ok {
		result = "ok"
	}
	m.requestsTotal.WithLabelValues(kind, result).Inc()
	m.requestDuration.WithLabelValues(kind).Observe(d.Seconds())
}

// ObserveHardwareFault counts a failed clock or NVRAM operation.
func (m *Metrics) ObserveHardwareFault(op string) {
	m.hardwareFaultsTotal.WithLabelValues(op).Inc()
}

// ObserveSync records a sync result: "ok", "failed" or "skipped".
func (m *Metrics) ObserveSync(result string, at time.Time) {
	m.syncsTotal.WithLabelValues(result).Inc()
	if result == "ok" {
		m.lastSync.Set(float64(at.Unix()))
	}
}

// ObserveConnection counts a served client connection.
func (m *Metrics) ObserveConnection() {
	m.connectionsTotal.Inc()
}

// SetServoRunning sets the servo gauge.
func (m *Metrics) SetServoRunning(running bool) {
	if running {
		m.servoRunning.Set(1)
	} else {
		m.servoRunning.Set(0)
	}
}

// SetUsedSlots sets the number of used schedule slots.
func (m *Metrics) SetUsedSlots(n int) {
	m.scheduledSlots.Set(float64(n))
}
