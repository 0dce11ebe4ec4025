package adapter

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

const (
	outcomeSuccess        = "success"
	outcomeTransportError = "transport_error"
	outcomeRemoteError    = "remote_error"
)

// Metrics counts and times web service requests per function.
type Metrics struct {
	requests *prometheus.CounterVec
	duration *prometheus.HistogramVec
}

type metricsConfig struct {
	namespace string
	subsystem string
	buckets   []float64
	registry  prometheus.Registerer
}

type MetricsOption func(*metricsConfig)

func WithNamespace(namespace string) MetricsOption {
	return func(c *metricsConfig) {
		if namespace != "" {
			c.namespace = namespace
		}
	}
}

func WithHistogramBuckets(buckets []float64) MetricsOption {
	return func(c *metricsConfig) {
		if len(buckets) > 0 {
			c.buckets = buckets
		}
	}
}

// WithRegistry registers the collectors on reg.
func WithRegistry(reg prometheus.Registerer) MetricsOption {
	return func(c *metricsConfig) {
		c.registry = reg
	}
}

func NewMetrics(opts ...MetricsOption) *Metrics {
	cfg := metricsConfig{
		namespace: "moodlews",
		subsystem: "client",
		buckets:   prometheus.DefBuckets,
	}

	for _, opt := range opts {
		opt(&cfg)
	}

	m := &Metrics{
		requests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: cfg.namespace,
			Subsystem: cfg.subsystem,
			Name:      "requests_total",
			Help:      "Web service requests by function and outcome.",
		}, []string{"function", "outcome"}),
		duration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: cfg.namespace,
			Subsystem: cfg.subsystem,
			Name:      "request_duration_seconds",
			Help:      "Web service request latency by function.",
			Buckets:   cfg.buckets,
		}, []string{"function"}),
	}

	if cfg.registry != nil {
		cfg.registry.MustRegister(m.requests, m.duration)
	}

	return m
}

func (m *Metrics) Requests() *prometheus.CounterVec {
	return m.requests
}

func (m *Metrics) observe(function, outcome string, took time.Duration) {
	if m == nil {
		return
	}
	m.requests.WithLabelValues(function, outcome).Inc()
	m.duration.WithLabelValues(function).Observe(took.Seconds())
}
