package httpx

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/ordermgmt/ordercore/pkg/metrics"
)

// NewRouter wires the full HTTP surface. The metrics argument may be
// nil, in which case the /metrics endpoint and latency histogram are
// simply absent.
func NewRouter(handler *Handler, pool *pgxpool.Pool, m *metrics.OrderMetrics) http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	if m != nil {
		r.Use(latency(m))
	}

	r.Get("/healthz", healthz(pool))
	if m != nil {
		r.Handle("/metrics", metrics.Handler())
	}

	r.Route("/orders", func(r chi.Router) {
		r.Post("/", handler.createOrder)
		r.Get("/", handler.listOrders)
		r.Get("/stats", handler.orderStats)
		r.Get("/number/{number}", handler.getOrderByNumber)
		r.Get("/{id}", handler.getOrder)
		r.Post("/{id}/status", handler.updateOrderStatus)
		r.Post("/{id}/cancel", handler.cancelOrder)
	})

	r.Route("/payments", func(r chi.Router) {
		r.Post("/", handler.processPayment)
		r.Get("/order/{orderID}", handler.getPaymentByOrder)
		r.Post("/{id}/refund", handler.refundPayment)
	})

	return r
}

func latency(m *metrics.OrderMetrics) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			next.ServeHTTP(w, r)

			route := chi.RouteContext(r.Context()).RoutePattern()
			if route == "" {
				route = "unmatched"
			}
			m.RequestLatencyMS.WithLabelValues(route).Observe(float64(time.Since(start).Milliseconds()))
		})
	}
}

func healthz(pool *pgxpool.Pool) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()

		if err := pool.Ping(ctx); err != nil {
			writeJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "down"})
			return
		}
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	}
}
