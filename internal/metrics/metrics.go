// Package metrics exposes Prometheus collectors for the HTTP API, the
// grading workflow and LLM analysis calls.
package metrics

import (
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	RequestCounter = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "assessor_http_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"method", "route", "status"},
	)

	RequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "assessor_http_request_duration_seconds",
			Help:    "Duration of HTTP requests",
			Buckets: []float64{0.01, 0.05, 0.1, 0.5, 1, 2, 5},
		},
		[]string{"method", "route"},
	)

	ResultsSubmitted = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "assessor_results_submitted_total",
		Help: "Results accepted for grading",
	})

	ResultsGraded = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "assessor_results_graded_total",
		Help: "Grading commits, re-grades included",
	})

	AnalysesInFlight = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "assessor_analyses_in_flight",
		Help: "Analysis requests currently running",
	})

	AnalysisOutcomes = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "assessor_analysis_outcomes_total",
			Help: "Finished analysis requests by outcome",
		},
		[]string{"outcome"},
	)

	LLMRequests = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "assessor_llm_requests_total",
			Help: "LLM provider calls by model, purpose and success",
		},
		[]string{"model", "purpose", "success"},
	)

	LLMDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "assessor_llm_request_duration_seconds",
			Help:    "Latency of LLM provider calls",
			Buckets: []float64{0.5, 1, 2, 5, 10, 30},
		},
		[]string{"model"},
	)

	LLMTokens = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "assessor_llm_tokens_total",
			Help: "Tokens consumed by LLM calls",
		},
		[]string{"model", "direction"},
	)
)

var initOnce sync.Once

// Init registers all collectors with the default registry. It is safe to
// call more than once.
func Init() {
	initOnce.Do(func() {
		prometheus.MustRegister(
			RequestCounter,
			RequestDuration,
			ResultsSubmitted,
			ResultsGraded,
			AnalysesInFlight,
			AnalysisOutcomes,
			LLMRequests,
			LLMDuration,
			LLMTokens,
		)
	})
}

// Middleware records request counts and durations labelled by chi route
// pattern, so path parameters do not explode cardinality.
func Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)

		route := "unmatched"
		if rctx := chi.RouteContext(r.Context()); rctx != nil {
			if p := rctx.RoutePattern(); p != "" {
				route = p
			}
		}
		status := ww.Status()
		if status == 0 {
			status = http.StatusOK
		}

		RequestCounter.WithLabelValues(r.Method, route, strconv.Itoa(status)).Inc()
		RequestDuration.WithLabelValues(r.Method, route).Observe(time.Since(start).Seconds())
	})
}

// Handler serves the default registry.
func Handler() http.Handler {
	return promhttp.Handler()
}
