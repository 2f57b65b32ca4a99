package nnsession

import (
	"context"
	"errors"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/psichix/opennn-go/pkg/nnwire"
)

const metricsNamespace = "opennn_client"

// Metrics collects request counters for one or more sessions. A nil *Metrics
// records nothing.
type Metrics struct {
	inFlight *prometheus.GaugeVec
	requests *prometheus.CounterVec
	duration *prometheus.HistogramVec
}

// NewMetrics creates the collectors and registers them with reg if it is not
// nil.
func NewMetrics(reg prometheus.Registerer) (*Metrics, error) {
	m := &Metrics{
		inFlight: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: metricsNamespace,
			Name:      "requests_in_flight",
			Help:      "Requests sent and not yet settled.",
		}, []string{"type"}),
		requests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Name:      "requests_total",
			Help:      "Settled requests by type and outcome.",
		}, []string{"type", "outcome"}),
		duration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: metricsNamespace,
			Name:      "request_duration_seconds",
			Help:      "Time from send to settlement.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"type"}),
	}
	if reg != nil {
		for _, c := range []prometheus.Collector{m.inFlight, m.requests, m.duration} {
			if err := reg.Register(c); err != nil {
				return nil, err
			}
		}
	}
	return m, nil
}

func (m *Metrics) requestStarted(typ string) {
	if m == nil {
		return
	}
	m.inFlight.WithLabelValues(typ).Inc()
}

func (m *Metrics) requestFinished(typ, outcome string, took time.Duration) {
	if m == nil {
		return
	}
	m.inFlight.WithLabelValues(typ).Dec()
	m.requests.WithLabelValues(typ, outcome).Inc()
	m.duration.WithLabelValues(typ).Observe(took.Seconds())
}

func outcome(err error) string {
	switch {
	case err == nil:
		return "success"
	case nnwire.IsServerError(err):
		return "server_error"
	case errors.Is(err, ErrRequestTimeout):
		return "timeout"
	case errors.Is(err, ErrConnectionClosed):
		return "closed"
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return "abandoned"
	default:
		return "send_error"
	}
}
