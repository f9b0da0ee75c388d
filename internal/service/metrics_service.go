package service

import (
	"fmt"
	"net/http"
	"runtime"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// MetricsService encapsulates Prometheus instrumentation for the API.
type MetricsService struct {
	registry        *prometheus.Registry
	handler         http.Handler
	requestDuration *prometheus.HistogramVec
	requestTotal    *prometheus.CounterVec
	transitionTotal *prometheus.CounterVec
	assistantCalls  *prometheus.CounterVec
	assistantTime   prometheus.Observer
	reportJobs      *prometheus.CounterVec
}

// NewMetricsService registers the core Prometheus collectors.
func NewMetricsService() *MetricsService {
	registry := prometheus.NewRegistry()

	requestDuration := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "http_request_duration_seconds",
		Help:    "Duration of HTTP requests in seconds",
		Buckets: prometheus.DefBuckets,
	}, []string{"method", "path", "status"})

	requestTotal := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "http_requests_total",
		Help: "Total number of HTTP requests",
	}, []string{"method", "path", "status"})

	transitionTotal := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "project_transitions_total",
		Help: "Workflow transitions applied to projects",
	}, []string{"from", "to"})

	assistantCalls := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "assistant_requests_total",
		Help: "Calls forwarded to the assistant provider",
	}, []string{"mode", "outcome"})

	assistantTime := prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "assistant_request_duration_seconds",
		Help:    "Latency of assistant provider round trips",
		Buckets: []float64{0.5, 1, 2.5, 5, 10, 30, 60, 120},
	})

	reportJobs := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "report_jobs_total",
		Help: "Report generation jobs by terminal status",
	}, []string{"status"})

	goroutines := prometheus.NewGaugeFunc(prometheus.GaugeOpts{
		Name: "goroutines_total",
		Help: "Total number of goroutines",
	}, func() float64 {
		return float64(runtime.NumGoroutine())
	})

	registry.MustRegister(requestDuration, requestTotal, transitionTotal, assistantCalls, assistantTime, reportJobs, goroutines)

	return &MetricsService{
		registry:        registry,
		handler:         promhttp.HandlerFor(registry, promhttp.HandlerOpts{}),
		requestDuration: requestDuration,
		requestTotal:    requestTotal,
		transitionTotal: transitionTotal,
		assistantCalls:  assistantCalls,
		assistantTime:   assistantTime,
		reportJobs:      reportJobs,
	}
}

// Handler exposes the Prometheus scrape endpoint.
func (m *MetricsService) Handler() http.Handler {
	if m == nil {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusServiceUnavailable)
		})
	}
	return m.handler
}

// ObserveHTTPRequest records request metrics.
func (m *MetricsService) ObserveHTTPRequest(method, path string, status int, duration time.Duration) {
	if m == nil {
		return
	}
	labelStatus := fmt.Sprintf("%d", status)
	m.requestDuration.WithLabelValues(method, path, labelStatus).Observe(duration.Seconds())
	m.requestTotal.WithLabelValues(method, path, labelStatus).Inc()
}

// ObserveTransition counts one applied workflow edge.
func (m *MetricsService) ObserveTransition(from, to string) {
	if m == nil {
		return
	}
	m.transitionTotal.WithLabelValues(from, to).Inc()
}

// ObserveAssistantCall records the outcome and latency of an upstream call.
func (m *MetricsService) ObserveAssistantCall(mode string, err error, duration time.Duration) {
	if m == nil {
		return
	}
	outcome := "ok"
	if err != nil {
		outcome = "error"
	}
	m.assistantCalls.WithLabelValues(mode, outcome).Inc()
	m.assistantTime.Observe(duration.Seconds())
}

// ObserveReportJob counts a report job reaching a terminal status.
func (m *MetricsService) ObserveReportJob(status string) {
	if m == nil {
		return
	}
	m.reportJobs.WithLabelValues(status).Inc()
}
