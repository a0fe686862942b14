package metrics

import (
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCronJobMetrics(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewCronJobMetrics(reg)
	m.ObserveDuration("payment-reconcile", 250*time.Millisecond)
	m.IncSuccess("payment-reconcile")
	m.IncFailure("payment-reconcile")
	m.IncFailure("retention")

	assert.Equal(t, 1.0, testutil.ToFloat64(m.success.WithLabelValues("payment-reconcile")))
	assert.Equal(t, 2, testutil.CollectAndCount(m.failure))
	assert.Equal(t, 1, testutil.CollectAndCount(m.duration, "storefront_cron_job_duration_seconds"))
}

func TestCheckoutMetrics(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewCheckoutMetrics(reg)
	m.Observe("cart", CheckoutPlaced)
	m.Observe("cart", CheckoutPlaced)
	m.Observe("buy_now", CheckoutOutOfStock)
	m.ObserveOrderValue("cart", decimal.RequireFromString("42.50"))

	assert.Equal(t, 2.0, testutil.ToFloat64(m.attempts.WithLabelValues("cart", CheckoutPlaced)))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.attempts.WithLabelValues("buy_now", CheckoutOutOfStock)))

	families, err := reg.Gather()
	require.NoError(t, err)
	for _, family := range families {
		if family.GetName() == "storefront_checkout_order_value" {
			assert.Equal(t, 42.5, family.GetMetric()[0].GetHistogram().GetSampleSum())
			return
		}
	}
	t.Fatal("order value histogram not exported")
}

func TestOutboxMetrics(t *testing.T) {
	m := NewOutboxMetrics(prometheus.NewRegistry())
	m.IncPublished("order.created")
	m.IncFailed("order.created")
	m.IncDeadLettered("")

	assert.Equal(t, 1.0, testutil.ToFloat64(m.published.WithLabelValues("order.created")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.deadLettered.WithLabelValues("unknown")))
}

func TestHTTPMetricsUnknownRoute(t *testing.T) {
	m := NewHTTPMetrics(prometheus.NewRegistry())
	m.Observe("", "GET", 404, time.Millisecond)

	expected := `
# HELP storefront_http_requests_total HTTP requests by route, method and status.
# TYPE storefront_http_requests_total counter
storefront_http_requests_total{method="GET",route="unknown",status="404"} 1
`
	assert.NoError(t, testutil.CollectAndCompare(m.requests, strings.NewReader(expected)))
}

func TestNilRegistererDisablesMetrics(t *testing.T) {
	var cron *CronJobMetrics
	assert.NotPanics(t, func() {
		cron.IncSuccess("x")
		NewCronJobMetrics(nil).ObserveDuration("x", time.Second)
		NewCheckoutMetrics(nil).Observe("cart", CheckoutPlaced)
		NewOutboxMetrics(nil).IncFailed("x")
		NewHTTPMetrics(nil).Observe("/", "GET", 200, time.Second)
	})
}
