// Package metrics exports device session activity to Prometheus.
package metrics

import (
	"time"

	"github.com/btccom/hwsigner/session"
	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "hwsigner"

// Collector is a session.Observer recording state transitions
// and device round-trips.
type Collector struct {
	state       *prometheus.GaugeVec
	transitions *prometheus.CounterVec
	calls       *prometheus.HistogramVec
	failures    *prometheus.CounterVec
}

var _ session.Observer = (*Collector)(nil)

var states = []session.State{
	session.Disconnected,
	session.Connecting,
	session.Connected,
	session.Busy,
	session.Error,
}

// NewCollector returns a Collector registered with reg.
func NewCollector(reg prometheus.Registerer) (*Collector, error) {
	c := &Collector{
		state: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "sessions",
			Help:      "Number of device sessions per state.",
		}, []string{"state"}),
		transitions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "session_transitions_total",
			Help:      "Device session state transitions.",
		}, []string{"from", "to"}),
		calls: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "device_call_duration_seconds",
			Help:      "Duration of device round-trips, user confirmation included.",
			Buckets:   []float64{0.05, 0.1, 0.5, 1, 5, 15, 30, 60, 120, 300},
		}, []string{"operation"}),
		failures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "device_call_failures_total",
			Help:      "Device round-trips that returned an error.",
		}, []string{"operation"}),
	}

	for _, collector := range []prometheus.Collector{c.state, c.transitions, c.calls, c.failures} {
		if err := reg.Register(collector); err != nil {
			return nil, err
		}
	}

	for _, s := range states {
		c.state.WithLabelValues(s.String())
	}
	return c, nil
}

// Track accounts for a new session, which starts Disconnected.
func (c *Collector) Track() {
	c.state.WithLabelValues(session.Disconnected.String()).Inc()
}

// StateChanged implements session.Observer.
func (c *Collector) StateChanged(from, to session.State) {
	c.state.WithLabelValues(from.String()).Dec()
	c.state.WithLabelValues(to.String()).Inc()
	c.transitions.WithLabelValues(from.String(), to.String()).Inc()
}

// DeviceCall implements session.Observer.
func (c *Collector) DeviceCall(op session.Operation, elapsed time.Duration, err error) {
	c.calls.WithLabelValues(string(op)).Observe(elapsed.Seconds())
	if err != nil {
		c.failures.WithLabelValues(string(op)).Inc()
	}
}
