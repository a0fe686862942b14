package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/shopspring/decimal"
)

// Checkout outcomes.
const (
	CheckoutPlaced       = "placed"
	CheckoutOutOfStock   = "out_of_stock"
	CheckoutEmptyCart    = "empty_cart"
	CheckoutPaymentError = "payment_error"
	CheckoutFailed       = "failed"
)

// CheckoutMetrics counts checkout attempts by flow (cart, buy_now) and outcome.
type CheckoutMetrics struct {
	attempts   *prometheus.CounterVec
	orderValue *prometheus.HistogramVec
}

func NewCheckoutMetrics(reg prometheus.Registerer) *CheckoutMetrics {
	if reg == nil {
		return &CheckoutMetrics{}
	}
	attempts := prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "checkout",
		Name:      "attempts_total",
		Help:      "Checkout attempts by flow and outcome.",
	}, []string{"flow", "outcome"})
	orderValue := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: namespace,
		Subsystem: "checkout",
		Name:      "order_value",
		Help:      "Total paid per placed order, in major currency units.",
		Buckets:   []float64{10, 25, 50, 100, 250, 500, 1000, 2500},
	}, []string{"flow"})
	reg.MustRegister(attempts, orderValue)
	return &CheckoutMetrics{attempts: attempts, orderValue: orderValue}
}

func (m *CheckoutMetrics) Observe(flow, outcome string) {
	if m == nil || m.attempts == nil {
		return
	}
	m.attempts.WithLabelValues(normalizeLabel(flow), normalizeLabel(outcome)).Inc()
}

func (m *CheckoutMetrics) ObserveOrderValue(flow string, total decimal.Decimal) {
	if m == nil || m.orderValue == nil {
		return
	}
	m.orderValue.WithLabelValues(normalizeLabel(flow)).Observe(total.InexactFloat64())
}
