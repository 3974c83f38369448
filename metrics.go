package basicauth

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	handshakesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{Name: "basicauth_handshakes_total", Help: "handshakes by result"},
		[]string{"result"},
	)

	authorizedCallsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{Name: "basicauth_authorized_calls_total", Help: "bearer-authorized calls by method and result"},
		[]string{"method", "result"},
	)
)

func init() {
	prometheus.MustRegister(handshakesTotal, authorizedCallsTotal)
}

// MetricsHandler serves /metrics and /healthz.
func MetricsHandler() http.Handler {
	r := chi.NewRouter()
	r.Method(http.MethodGet, "/metrics", promhttp.Handler())
	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	return r
}
