package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

func TestCountersIncrement(t *testing.T) {
	m := New()

	m.CreditOp("deduct", "primary", "ok")
	m.CreditOp("deduct", "primary", "ok")
	m.Verification("granted")

	assert.Equal(t, 2.0, testutil.ToFloat64(m.creditOps.WithLabelValues("deduct", "primary", "ok")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.verifications.WithLabelValues("granted")))
}

func TestNilMetricsIsNoop(t *testing.T) {
	var m *Metrics
	assert.NotPanics(t, func() {
		m.CreditOp("deduct", "legacy", "error")
		m.ObserveGateway("razorpay", "create_order", 0.1)
	})
}

func TestSeparateRegistries(t *testing.T) {
	assert.NotPanics(t, func() {
		New()
		New()
	})
}
