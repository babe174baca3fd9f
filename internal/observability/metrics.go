// README: Prometheus metrics for dispatch operations and HTTP traffic.
package observability

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	RequestsCreated     = promauto.NewCounter(prometheus.CounterOpts{Namespace: "lifeline", Name: "requests_created_total", Help: "Transport requests created"})
	Assignments         = promauto.NewCounter(prometheus.CounterOpts{Namespace: "lifeline", Name: "assignments_total", Help: "Successful driver assignments"})
	AssignmentConflicts = promauto.NewCounter(prometheus.CounterOpts{Namespace: "lifeline", Name: "assignment_conflicts_total", Help: "Assignments rejected because the driver was not available"})
	Completions         = promauto.NewCounter(prometheus.CounterOpts{Namespace: "lifeline", Name: "completions_total", Help: "Requests completed"})
	Cancellations       = promauto.NewCounter(prometheus.CounterOpts{Namespace: "lifeline", Name: "cancellations_total", Help: "Requests cancelled"})

	HTTPRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{Namespace: "lifeline", Name: "http_requests_total", Help: "Total HTTP requests handled"},
		[]string{"method", "path", "status"},
	)
	HTTPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "lifeline",
			Name:      "http_request_duration_seconds",
			Help:      "HTTP request latency distribution",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"method", "path", "status"},
	)
)
