package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

type OrderMetrics struct {
	OrdersCreated      prometheus.Counter
	OrdersCancelled    prometheus.Counter
	ReservationsDenied prometheus.Counter
	PaymentsSettled    *prometheus.CounterVec
	RequestLatencyMS   *prometheus.HistogramVec
}

func NewOrderMetrics() *OrderMetrics {
	ordersCreated := prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "ordercore",
		Name:      "orders_created_total",
		Help:      "Total number of orders created.",
	})
	ordersCancelled := prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "ordercore",
		Name:      "orders_cancelled_total",
		Help:      "Total number of orders cancelled.",
	})
	reservationsDenied := prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "ordercore",
		Name:      "stock_reservations_denied_total",
		Help:      "Total number of stock reservations denied for insufficient stock.",
	})
	paymentsSettled := prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "ordercore",
		Name:      "payments_settled_total",
		Help:      "Total number of payment settlements by outcome.",
	}, []string{"outcome"})
	latency := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "ordercore",
		Name:      "http_request_duration_ms",
		Help:      "HTTP request latency in milliseconds.",
		Buckets:   []float64{5, 10, 25, 50, 100, 250, 500, 1000, 2500, 5000},
	}, []string{"handler"})

	prometheus.MustRegister(ordersCreated, ordersCancelled, reservationsDenied, paymentsSettled, latency)
	return &OrderMetrics{
		OrdersCreated:      ordersCreated,
		OrdersCancelled:    ordersCancelled,
		ReservationsDenied: reservationsDenied,
		PaymentsSettled:    paymentsSettled,
		RequestLatencyMS:   latency,
	}
}

func Handler() http.Handler {
	return promhttp.Handler()
}
