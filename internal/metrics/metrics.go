// Package metrics registers the Prometheus collectors shared by the server
// and the workflow controller.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	workflowRuns = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "reframe_workflow_runs_total",
		Help: "Total number of workflow runs by final status",
	}, []string{"status"})

	workflowDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "reframe_workflow_duration_seconds",
		Help:    "Duration of workflow runs in seconds",
		Buckets: []float64{1, 5, 15, 30, 60, 120, 300, 600},
	}, []string{"status"})

	vendorRequests = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "reframe_vendor_requests_total",
		Help: "Total number of calls to upload and reframe vendors",
	}, []string{"vendor", "operation", "outcome"})

	httpRequests = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "reframe_http_requests_total",
		Help: "Total number of HTTP requests served",
	}, []string{"method", "code"})

	httpDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "reframe_http_request_duration_seconds",
		Help:    "Duration of HTTP requests in seconds",
		Buckets: prometheus.DefBuckets,
	}, []string{"method"})
)

// ObserveWorkflow records a finished workflow run.
func ObserveWorkflow(status string, d time.Duration) {
	workflowRuns.WithLabelValues(status).Inc()
	workflowDuration.WithLabelValues(status).Observe(d.Seconds())
}

// ObserveVendorCall records a single call to an upstream vendor.
func ObserveVendorCall(vendor, operation string, err error) {
	outcome := "ok"
	if err != nil {
		outcome = "error"
	}
	vendorRequests.WithLabelValues(vendor, operation, outcome).Inc()
}

// ObserveHTTP records a served HTTP request.
func ObserveHTTP(method string, code int, d time.Duration) {
	httpRequests.WithLabelValues(method, strconv.Itoa(code)).Inc()
	httpDuration.WithLabelValues(method).Observe(d.Seconds())
}

// Handler returns the Prometheus scrape handler.
func Handler() http.Handler {
	return promhttp.Handler()
}
