package observability

import (
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics mengumpulkan metrik Prometheus untuk aplikasi.
type Metrics struct {
	registry        *prometheus.Registry
	handler         http.Handler
	requestsTotal   *prometheus.CounterVec
	requestDuration *prometheus.HistogramVec
	verifications   *prometheus.CounterVec
	issues          *prometheus.CounterVec
	visionFailures  prometheus.Counter
}

// NewMetrics menginisialisasi registry dan metrik dasar.
func NewMetrics() *Metrics {
	registry := prometheus.NewRegistry()
	requests := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "verity_http_requests_total",
		Help: "Jumlah permintaan HTTP berdasarkan route dan status.",
	}, []string{"route", "code"})
	duration := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "verity_http_request_duration_seconds",
		Help:    "Durasi permintaan HTTP per route.",
		Buckets: prometheus.DefBuckets,
	}, []string{"route"})
	verifications := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "verity_verifications_total",
		Help: "Jumlah verifikasi produk berdasarkan status akhir.",
	}, []string{"status"})
	issues := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "verity_verification_issues_total",
		Help: "Jumlah temuan verifikasi berdasarkan aturan dan tingkat keparahan.",
	}, []string{"rule", "severity"})
	visionFailures := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "verity_vision_failures_total",
		Help: "Jumlah kegagalan layanan pengenalan gambar.",
	})
	registry.MustRegister(requests, duration, verifications, issues, visionFailures)
	return &Metrics{
		registry:        registry,
		handler:         promhttp.HandlerFor(registry, promhttp.HandlerOpts{}),
		requestsTotal:   requests,
		requestDuration: duration,
		verifications:   verifications,
		issues:          issues,
		visionFailures:  visionFailures,
	}
}

// Handler mengembalikan http.Handler untuk endpoint /metrics.
func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			http.Error(w, http.StatusText(http.StatusServiceUnavailable), http.StatusServiceUnavailable)
		})
	}
	return m.handler
}

// Middleware mencatat metrik untuk setiap permintaan HTTP.
func (m *Metrics) Middleware(next http.Handler) http.Handler {
	if m == nil {
		return next
	}
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		recorder := statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(&recorder, r)
		route := routePattern(r)
		m.requestsTotal.WithLabelValues(route, strconv.Itoa(recorder.status)).Inc()
		m.requestDuration.WithLabelValues(route).Observe(time.Since(start).Seconds())
	})
}

// RecordVerification mencatat satu hasil verifikasi produk.
func (m *Metrics) RecordVerification(status string) {
	if m == nil {
		return
	}
	if status == "" {
		status = "unknown"
	}
	m.verifications.WithLabelValues(status).Inc()
}

// RecordIssue mencatat satu temuan verifikasi.
func (m *Metrics) RecordIssue(rule, severity string) {
	if m == nil {
		return
	}
	m.issues.WithLabelValues(rule, severity).Inc()
}

// RecordVisionFailure mencatat kegagalan deteksi konsep gambar.
func (m *Metrics) RecordVisionFailure() {
	if m == nil {
		return
	}
	m.visionFailures.Inc()
}

// Registerer mengekspos registry untuk pendaftaran metrik khusus.
func (m *Metrics) Registerer() prometheus.Registerer {
	if m == nil {
		return prometheus.DefaultRegisterer
	}
	return m.registry
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(status int) {
	r.status = status
	r.ResponseWriter.WriteHeader(status)
}

func routePattern(r *http.Request) string {
	if routeCtx := chi.RouteContext(r.Context()); routeCtx != nil {
		if pattern := routeCtx.RoutePattern(); pattern != "" {
			return pattern
		}
	}
	return "unknown"
}
