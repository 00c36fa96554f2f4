package api

import (
	"bufio"
	"net"
	"net/http"
	"strconv"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// metrics holds the server's Prometheus collectors. Each server owns its
// registry so multiple instances in one process do not collide.
type metrics struct {
	registry *prometheus.Registry
	requests *prometheus.CounterVec
	parses   *prometheus.CounterVec
	elements prometheus.Gauge
}

func newMetrics() *metrics {
	m := &metrics{
		registry: prometheus.NewRegistry(),
		requests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "cedarbib",
			Name:      "http_requests_total",
			Help:      "HTTP requests by route and status code.",
		}, []string{"route", "status"}),
		parses: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "cedarbib",
			Name:      "parses_total",
			Help:      "Bibliography parses by outcome.",
		}, []string{"outcome"}),
		elements: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "cedarbib",
			Name:      "elements",
			Help:      "Elements in the served bibliography.",
		}),
	}
	m.registry.MustRegister(m.requests, m.parses, m.elements)
	return m
}

func (m *metrics) handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// middleware counts requests by route and status.
func (m *metrics) middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rec, r)
		m.requests.WithLabelValues(r.URL.Path, strconv.Itoa(rec.status)).Inc()
	})
}

func (m *metrics) parseSuccess() {
	m.parses.WithLabelValues("success").Inc()
}

func (m *metrics) parseFailure() {
	m.parses.WithLabelValues("failure").Inc()
}

func (m *metrics) setElements(n int) {
	m.elements.Set(float64(n))
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(code int) {
	r.status = code
	r.ResponseWriter.WriteHeader(code)
}

// Hijack keeps WebSocket upgrades working through the middleware chain.
func (r *statusRecorder) Hijack() (net.Conn, *bufio.ReadWriter, error) {
	if hj, ok := r.ResponseWriter.(http.Hijacker); ok {
		return hj.Hijack()
	}
	return nil, nil, http.ErrNotSupported
}
