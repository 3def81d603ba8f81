package http

import (
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/robertarktes/seat-reservation-service/internal/observability"
	"github.com/robertarktes/seat-reservation-service/internal/rateLimit"
)

func SetupRouter(h *Handlers, logger observability.Logger, rl *rateLimit.RateLimiter) *chi.Mux {
	r := chi.NewRouter()

	r.Use(middleware.Recoverer)
	r.Use(RequestIDMiddleware)
	r.Use(LoggerMiddleware(logger))
	r.Use(TracingMiddleware)
	r.Use(MetricsMiddleware)
	r.Use(RateLimitMiddleware(rl))

	r.Get("/v1/seats", h.ListSeats)
	r.Get("/v1/seats/{id}", h.GetSeat)
	r.Post("/v1/seats/{id}/lock", h.LockSeat)
	r.Post("/v1/seats/{id}/confirm", h.ConfirmSeat)
	r.Post("/v1/seats/{id}/release", h.ReleaseSeat)
	r.Get("/v1/bookings", h.ListBookings)
	r.Post("/v1/admin/reset", h.Reset)
	r.Get("/v1/healthz", h.Healthz)
	r.Get("/v1/readyz", h.Readyz)
	r.Get("/metrics", promhttp.Handler().ServeHTTP)

	return r
}
