package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

type ServerMetrics struct {
	Requests  *prometheus.CounterVec
	LatencyMS *prometheus.HistogramVec
}

func NewServerMetrics(service string) *ServerMetrics {
	requests := prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "shop",
		Subsystem: service,
		Name:      "http_requests_total",
		Help:      "Total number of HTTP requests.",
	}, []string{"handler", "status"})
	latency := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "shop",
		Subsystem: service,
		Name:      "http_request_duration_ms",
		Help:      "HTTP request latency in milliseconds.",
		Buckets:   []float64{5, 10, 25, 50, 100, 250, 500, 1000, 2500, 5000},
	}, []string{"handler"})

	prometheus.MustRegister(requests, latency)
	return &ServerMetrics{Requests: requests, LatencyMS: latency}
}

// CheckoutMetrics counts checkout workflow outcomes. ReservationFailures in
// particular is the alert signal for orders left without reserved stock.
type CheckoutMetrics struct {
	OrdersCreated       *prometheus.CounterVec
	ReservationFailures prometheus.Counter
	PaymentsConfirmed   prometheus.Counter
	OrdersCancelled     prometheus.Counter
}

func NewCheckoutMetrics() *CheckoutMetrics {
	created := prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "shop",
		Subsystem: "checkout",
		Name:      "orders_created_total",
		Help:      "Total number of orders created.",
	}, []string{"payment_method"})
	reservationFailures := prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "shop",
		Subsystem: "checkout",
		Name:      "reservation_failures_total",
		Help:      "Inventory reservations that failed after validation.",
	})
	paymentsConfirmed := prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "shop",
		Subsystem: "checkout",
		Name:      "payments_confirmed_total",
		Help:      "Payment sessions confirmed as paid.",
	})
	ordersCancelled := prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "shop",
		Subsystem: "checkout",
		Name:      "orders_cancelled_total",
		Help:      "Orders cancelled with stock released.",
	})

	prometheus.MustRegister(created, reservationFailures, paymentsConfirmed, ordersCancelled)
	return &CheckoutMetrics{
		OrdersCreated:       created,
		ReservationFailures: reservationFailures,
		PaymentsConfirmed:   paymentsConfirmed,
		OrdersCancelled:     ordersCancelled,
	}
}

func Handler() http.Handler {
	return promhttp.Handler()
}
