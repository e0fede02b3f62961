package obs

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Общие HTTP-метрики
var (
	httpInFlight = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "http_in_flight_requests",
		Help: "In-flight HTTP requests.",
	})

	httpRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "Total number of HTTP requests.",
		},
		[]string{"method", "path", "status"},
	)

	httpRequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "HTTP request latencies in seconds.",
			Buckets: prometheus.DefBuckets, // [0.005..10]
		},
		[]string{"method", "path", "status"},
	)

	// Billing fan-out counters: obligations written, and charges whose
	// fan-out did not complete (candidates for reconciliation).
	fanoutObligations = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "billing_fanout_obligations_total",
		Help: "Obligation rows created by charge fan-out.",
	})
	fanoutIncomplete = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "billing_fanout_incomplete_total",
		Help: "Charge fan-outs that left members without an obligation.",
	})

	sessionsIssued = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "auth_sessions_issued_total",
		Help: "Successful logins (token pairs issued).",
	})
)

// Init registers metrics in the default registry.
func Init() {
	prometheus.MustRegister(httpInFlight, httpRequestsTotal, httpRequestDuration,
		fanoutObligations, fanoutIncomplete, sessionsIssued)
}

// Хэндлер Prometheus.
func Handler() http.Handler {
	return promhttp.Handler()
}

// ObserveFanout records the outcome of one charge fan-out.
func ObserveFanout(obligations int, complete bool) {
	fanoutObligations.Add(float64(obligations))
	if !complete {
		fanoutIncomplete.Inc()
	}
}

// ObserveSessionIssued counts a successful login.
func ObserveSessionIssued() {
	sessionsIssued.Inc()
}

// Обёртка для измерения RPS/latency/в полёте.
func Instrument(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		path := CanonicalPath(r.URL.Path)
		method := r.Method

		httpInFlight.Inc()
		start := time.Now()

		sw := &statusWriter{ResponseWriter: w, code: 200}
		next.ServeHTTP(sw, r)

		duration := time.Since(start).Seconds()
		status := strconv.Itoa(sw.code)

		httpRequestDuration.WithLabelValues(method, path, status).Observe(duration)
		httpRequestsTotal.WithLabelValues(method, path, status).Inc()
		httpInFlight.Dec()
	})
}

// statusWriter — локальная копия, чтобы знать код ответа.
type statusWriter struct {
	http.ResponseWriter
	code int
}

func (w *statusWriter) WriteHeader(code int) {
	w.code = code
	w.ResponseWriter.WriteHeader(code)
}

// Flush keeps SSE responses streaming through the instrumented handler.
func (w *statusWriter) Flush() {
	if f, ok := w.ResponseWriter.(http.Flusher); ok {
		f.Flush()
	}
}
