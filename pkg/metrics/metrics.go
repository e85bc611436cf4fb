package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
)

const namespace = "resumeforge"

// Metrics holds the collectors for credit and payment flows. It owns its
// registry so tests can build as many instances as they like.
type Metrics struct {
	Registry *prometheus.Registry

	creditOps       *prometheus.CounterVec
	ordersCreated   *prometheus.CounterVec
	verifications   *prometheus.CounterVec
	gatewayDuration *prometheus.HistogramVec
	reconcileRuns   *prometheus.CounterVec
	reconcileFixed  *prometheus.CounterVec
}

func New() *Metrics {
	reg := prometheus.NewRegistry()
	m := &Metrics{
		Registry: reg,
		creditOps: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "credit_operations_total",
			Help:      "Credit ledger operations by kind, store and outcome.",
		}, []string{"op", "store", "outcome"}),
		ordersCreated: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "orders_created_total",
			Help:      "Payment orders issued by plan and outcome.",
		}, []string{"plan", "outcome"}),
		verifications: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "payment_verifications_total",
			Help:      "Payment confirmations by outcome.",
		}, []string{"outcome"}),
		gatewayDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "gateway_request_duration_seconds",
			Help:      "Latency of payment gateway calls.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"provider", "call"}),
		reconcileRuns: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "reconcile_runs_total",
			Help:      "Reconciler sweeps by outcome.",
		}, []string{"outcome"}),
		reconcileFixed: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "reconcile_repairs_total",
			Help:      "Orders repaired by the reconciler, by action.",
		}, []string{"action"}),
	}

	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		m.creditOps,
		m.ordersCreated,
		m.verifications,
		m.gatewayDuration,
		m.reconcileRuns,
		m.reconcileFixed,
	)
	return m
}

// All recorders accept a nil receiver.

func (m *Metrics) CreditOp(op, store, outcome string) {
	if m == nil {
		return
	}
	m.creditOps.WithLabelValues(op, store, outcome).Inc()
}

func (m *Metrics) OrderCreated(plan, outcome string) {
	if m == nil {
		return
	}
	m.ordersCreated.WithLabelValues(plan, outcome).Inc()
}

func (m *Metrics) Verification(outcome string) {
	if m == nil {
		return
	}
	m.verifications.WithLabelValues(outcome).Inc()
}

func (m *Metrics) ObserveGateway(provider, call string, seconds float64) {
	if m == nil {
		return
	}
	m.gatewayDuration.WithLabelValues(provider, call).Observe(seconds)
}

func (m *Metrics) ReconcileRun(outcome string) {
	if m == nil {
		return
	}
	m.reconcileRuns.WithLabelValues(outcome).Inc()
}

func (m *Metrics) ReconcileRepair(action string) {
	if m == nil {
		return
	}
	m.reconcileFixed.WithLabelValues(action).Inc()
}
