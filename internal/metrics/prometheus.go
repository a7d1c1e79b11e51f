package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Collectors holds the Prometheus instruments for invocations.
type Collectors struct {
	latency *prometheus.HistogramVec
	payload *prometheus.HistogramVec
	results *prometheus.CounterVec
}

// NewCollectors registers the invocation instruments with reg.
func NewCollectors(reg prometheus.Registerer) *Collectors {
	c := &Collectors{
		latency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "sagemaker_vision_invoke_duration_seconds",
			Help:    "Latency of vision operations including the endpoint round trip.",
			Buckets: prometheus.DefBuckets,
		}, []string{"operation", "result"}),
		payload: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "sagemaker_vision_payload_bytes",
			Help:    "Size of the image payload sent to the endpoint.",
			Buckets: prometheus.ExponentialBuckets(16<<10, 2, 10),
		}, []string{"operation"}),
		results: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "sagemaker_vision_results_total",
			Help: "Classifications and detections returned.",
		}, []string{"operation"}),
	}
	reg.MustRegister(c.latency, c.payload, c.results)
	return c
}

// Observe records one invocation. It satisfies Observer.
func (c *Collectors) Observe(inv Invocation) {
	c.latency.WithLabelValues(inv.Operation, inv.Result).Observe(inv.Latency.Seconds())
	if inv.PayloadBytes > 0 {
		c.payload.WithLabelValues(inv.Operation).Observe(float64(inv.PayloadBytes))
	}
	c.results.WithLabelValues(inv.Operation).Add(float64(inv.ResultCount))
}
