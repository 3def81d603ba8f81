package observability

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	RequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "seatres_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"route", "code", "method"},
	)

	LocksTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "seatres_locks_total",
			Help: "Seat lock attempts by outcome",
		},
		[]string{"outcome"}, // new, extended, conflict
	)

	BookingsTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "seatres_bookings_total",
			Help: "Total confirmed bookings",
		},
	)

	LocksExpiredTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "seatres_locks_expired_total",
			Help: "Total locks reclaimed after their TTL elapsed",
		},
	)

	RateLimitExceeded = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "seatres_rate_limit_exceeded_total",
			Help: "Total rate limit exceeded",
		},
	)
)
