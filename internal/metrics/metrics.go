// Package metrics provides Prometheus metrics for monitoring promptvault.
package metrics

import (
	"strconv"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/thebtf/promptvault/internal/apperr"
)

// Service operation metrics
var (
	// operationsTotal records service operations.
	// Labels:
	//   - operation: e.g. "prompt.update", "team.delete"
	//   - outcome: "ok" or the lower-cased failure kind (e.g. "forbidden")
	operationsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "promptvault_operations_total",
			Help: "Total number of service operations by outcome",
		},
		[]string{"operation", "outcome"},
	)

	// operationDuration records how long service operations take.
	operationDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "promptvault_operation_duration_seconds",
			Help:    "Duration of service operations in seconds",
			Buckets: []float64{0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1, 5},
		},
		[]string{"operation"},
	)

	// activityEntriesTotal records committed activity log entries by action.
	activityEntriesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "promptvault_activity_entries_total",
			Help: "Total number of activity log entries written",
		},
		[]string{"action"},
	)
)

// HTTP metrics
var (
	httpRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "promptvault_http_requests_total",
			Help: "Total number of HTTP requests by route and status code",
		},
		[]string{"method", "route", "status"},
	)

	sseClients = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "promptvault_sse_clients",
			Help: "Number of connected activity stream clients",
		},
	)
)

func init() {
	prometheus.MustRegister(operationsTotal)
	prometheus.MustRegister(operationDuration)
	prometheus.MustRegister(activityEntriesTotal)
	prometheus.MustRegister(httpRequestsTotal)
	prometheus.MustRegister(sseClients)
}

// Outcome returns the outcome label for an operation result.
func Outcome(err error) string {
	if err == nil {
		return "ok"
	}
	return strings.ToLower(string(apperr.KindOf(err)))
}

// ObserveOperation records the outcome and duration of a service operation
// that started at start.
func ObserveOperation(operation string, start time.Time, err error) {
	operationsTotal.WithLabelValues(operation, Outcome(err)).Inc()
	operationDuration.WithLabelValues(operation).Observe(time.Since(start).Seconds())
}

// RecordActivity records one committed activity entry.
func RecordActivity(action string) {
	activityEntriesTotal.WithLabelValues(action).Inc()
}

// RecordHTTPRequest records one served HTTP request.
func RecordHTTPRequest(method, route string, status int) {
	httpRequestsTotal.WithLabelValues(method, route, statusLabel(status)).Inc()
}

// SSEClientConnected increments the connected stream client gauge.
func SSEClientConnected() { sseClients.Inc() }

// SSEClientDisconnected decrements the connected stream client gauge.
func SSEClientDisconnected() { sseClients.Dec() }

func statusLabel(status int) string {
	if status == 0 {
		status = 200
	}
	return strconv.Itoa(status)
}
