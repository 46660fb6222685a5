package metrics

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	once sync.Once

	httpRequests = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "trimly",
			Name:      "http_requests_total",
			Help:      "HTTP requests by method, route and status code.",
		},
		[]string{"method", "route", "status"},
	)

	httpDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "trimly",
			Name:      "http_request_duration_seconds",
			Help:      "HTTP request latency by route.",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"method", "route"},
	)

	slotsGenerated = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "trimly",
			Name:      "slots_generated_total",
			Help:      "Time slots materialized by the generator.",
		},
		[]string{"shift_type"},
	)

	bookingsCreated = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "trimly",
			Name:      "bookings_created_total",
			Help:      "Bookings successfully allocated.",
		},
	)

	bookingsCancelled = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "trimly",
			Name:      "bookings_cancelled_total",
			Help:      "Bookings cancelled by customers or owners.",
		},
	)

	allocationConflicts = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "trimly",
			Name:      "allocation_conflicts_total",
			Help:      "Booking allocations retried or rejected due to contention.",
		},
	)
)

// Register registers Prometheus metrics. Safe to call multiple times.
func Register() {
	once.Do(func() {
		prometheus.MustRegister(
			httpRequests,
			httpDuration,
			slotsGenerated,
			bookingsCreated,
			bookingsCancelled,
			allocationConflicts,
		)
	})
}

func ObserveHTTP(method, route, status string, seconds float64) {
	httpRequests.WithLabelValues(method, route, status).Inc()
	httpDuration.WithLabelValues(method, route).Observe(seconds)
}

func AddSlotsGenerated(shiftType string, n int) {
	slotsGenerated.WithLabelValues(shiftType).Add(float64(n))
}

func IncBookingsCreated() {
	bookingsCreated.Inc()
}

func IncBookingsCancelled() {
	bookingsCancelled.Inc()
}

func IncAllocationConflicts() {
	allocationConflicts.Inc()
}
