package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// ReconciliationMetrics observes payment signals across the three update
// channels and the side effects applied on first success.
type ReconciliationMetrics struct {
	signals     *prometheus.CounterVec
	sideEffects *prometheus.CounterVec
	gatewayCall *prometheus.HistogramVec
}

// NewReconciliationMetrics registers the payment reconciliation metrics on
// the provided registerer.
func NewReconciliationMetrics(reg prometheus.Registerer) *ReconciliationMetrics {
	if reg == nil {
		return &ReconciliationMetrics{}
	}
	signals := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "payment_signals_total",
		Help: "Payment status signals by channel and race outcome.",
	}, []string{"channel", "status", "outcome"})
	sideEffects := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "payment_side_effects_total",
		Help: "Reconciliation side effects applied on payment success.",
	}, []string{"effect"})
	gatewayCall := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "gateway_call_duration_seconds",
		Help:    "Duration of payment gateway calls in seconds.",
		Buckets: prometheus.DefBuckets,
	}, []string{"operation"})
	reg.MustRegister(signals, sideEffects, gatewayCall)
	return &ReconciliationMetrics{
		signals:     signals,
		sideEffects: sideEffects,
		gatewayCall: gatewayCall,
	}
}

// ObserveSignal counts one incoming payment signal and whether it won the
// settlement race.
func (m *ReconciliationMetrics) ObserveSignal(channel, status string, won bool) {
	if m == nil || m.signals == nil {
		return
	}
	outcome := "noop"
	if won {
		outcome = "applied"
	}
	m.signals.WithLabelValues(normalizeLabel(channel), normalizeLabel(status), outcome).Inc()
}

// IncSideEffect counts one applied side effect (order confirm, coupon
// consume, cart clear).
func (m *ReconciliationMetrics) IncSideEffect(effect string) {
	if m == nil || m.sideEffects == nil {
		return
	}
	m.sideEffects.WithLabelValues(normalizeLabel(effect)).Inc()
}

// ObserveGatewayCall records one gateway round trip.
func (m *ReconciliationMetrics) ObserveGatewayCall(operation string, duration time.Duration) {
	if m == nil || m.gatewayCall == nil {
		return
	}
	m.gatewayCall.WithLabelValues(normalizeLabel(operation)).Observe(duration.Seconds())
}
