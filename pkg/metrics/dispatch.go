package metrics

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// DispatchMetrics counts dispatch decisions and times webhook deliveries.
type DispatchMetrics struct {
	decisions *prometheus.CounterVec
	responses *prometheus.CounterVec
	latency   *prometheus.HistogramVec
}

// NewDispatchMetrics registers the dispatch metrics on the provided registerer.
// A nil registerer yields a no-op recorder.
func NewDispatchMetrics(reg prometheus.Registerer) *DispatchMetrics {
	if reg == nil {
		return &DispatchMetrics{}
	}
	decisions := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "sgtm_dispatch_decisions_total",
		Help: "Dispatch pipeline results by decision and skip reason.",
	}, []string{"decision", "reason"})
	responses := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "sgtm_webhook_responses_total",
		Help: "Webhook delivery results by HTTP status code (0 for connection failures).",
	}, []string{"code"})
	latency := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "sgtm_webhook_delivery_seconds",
		Help:    "Webhook delivery latency in seconds.",
		Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30},
	}, []string{"format"})
	reg.MustRegister(decisions, responses, latency)
	return &DispatchMetrics{
		decisions: decisions,
		responses: responses,
		latency:   latency,
	}
}

// IncDecision counts one pass through the dispatch pipeline.
func (d *DispatchMetrics) IncDecision(decision, reason string) {
	if d == nil || d.decisions == nil {
		return
	}
	d.decisions.WithLabelValues(normalizeLabel(decision), reason).Inc()
}

// ObserveDelivery records a finished delivery attempt.
func (d *DispatchMetrics) ObserveDelivery(format string, code int, duration time.Duration) {
	if d == nil || d.responses == nil {
		return
	}
	d.responses.WithLabelValues(strconv.Itoa(code)).Inc()
	d.latency.WithLabelValues(normalizeLabel(format)).Observe(duration.Seconds())
}
