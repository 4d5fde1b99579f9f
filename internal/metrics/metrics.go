// Package metrics holds the Prometheus collectors shared by the HTTP, storage
// and countdown layers.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "deletionportal"

var (
	httpRequestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: namespace,
		Name:      "http_request_duration_seconds",
		Help:      "HTTP request latency by method, route and status.",
		Buckets:   prometheus.DefBuckets,
	}, []string{"method", "path", "status"})

	dbQueryDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: namespace,
		Name:      "db_query_duration_seconds",
		Help:      "Database call latency by operation.",
		Buckets:   []float64{.0005, .001, .0025, .005, .01, .025, .05, .1, .25, .5, 1},
	}, []string{"op"})

	deletionOutcomes = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "deletion_operations_total",
		Help:      "Deletion request operations by operation and outcome.",
	}, []string{"operation", "outcome"})

	authEvents = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "auth_events_total",
		Help:      "Sign-in and sign-out events by outcome.",
	}, []string{"event"})

	outboxDeliveries = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "outbox_deliveries_total",
		Help:      "Outbox entries enqueued and delivery attempts by outcome.",
	}, []string{"outcome"})

	countdownTicks = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "countdown_ticks_total",
		Help:      "Countdown re-derivations, including the immediate one at start.",
	})

	countdownActive = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "countdown_active",
		Help:      "Countdown tickers currently running.",
	})

	countdownPanics = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "countdown_render_panics_total",
		Help:      "Render failures recovered inside the countdown ticker.",
	})
)

// ObserveRequest records an HTTP request.
func ObserveRequest(method, path string, status int, d time.Duration) {
	httpRequestDuration.WithLabelValues(method, path, strconv.Itoa(status)).Observe(d.Seconds())
}

// ObserveQuery records a database call.
func ObserveQuery(op string, d time.Duration) {
	dbQueryDuration.WithLabelValues(op).Observe(d.Seconds())
}

// DeletionOutcome counts a create/cancel/load result, e.g. ("create", "ok").
func DeletionOutcome(operation, outcome string) {
	deletionOutcomes.WithLabelValues(operation, outcome).Inc()
}

// AuthEvent counts a sign-in or sign-out event.
func AuthEvent(event string) {
	authEvents.WithLabelValues(event).Inc()
}

// OutboxDelivery counts an outbox transition: "enqueued", "sent", "retry" or "failed".
func OutboxDelivery(outcome string) {
	outboxDeliveries.WithLabelValues(outcome).Inc()
}

// CountdownTick counts one ticker re-derivation.
func CountdownTick() { countdownTicks.Inc() }

// CountdownStarted and CountdownStopped track running tickers.
func CountdownStarted() { countdownActive.Inc() }

// CountdownStopped decrements the running ticker gauge.
func CountdownStopped() { countdownActive.Dec() }

// CountdownPanic counts a recovered render failure.
func CountdownPanic() { countdownPanics.Inc() }

// Handler serves the default registry in the Prometheus text format.
func Handler() http.Handler {
	return promhttp.Handler()
}
