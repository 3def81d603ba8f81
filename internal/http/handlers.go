package http

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/go-chi/chi/v5"
	"github.com/robertarktes/seat-reservation-service/internal/adapters/rabbit"
	"github.com/robertarktes/seat-reservation-service/internal/config"
	"github.com/robertarktes/seat-reservation-service/internal/domain"
	"github.com/robertarktes/seat-reservation-service/internal/idempotency"
	"github.com/robertarktes/seat-reservation-service/internal/observability"
	"github.com/robertarktes/seat-reservation-service/internal/registry"
)

type Handlers struct {
	cfg    *config.Config
	reg    *registry.Registry
	idemp  *idempotency.Idempotency
	events *rabbit.Publisher
	logger observability.Logger
	ready  func(r *http.Request) error
}

func NewHandlers(cfg *config.Config, reg *registry.Registry, idemp *idempotency.Idempotency, events *rabbit.Publisher, logger observability.Logger, ready func(r *http.Request) error) *Handlers {
	return &Handlers{
		cfg:    cfg,
		reg:    reg,
		idemp:  idemp,
		events: events,
		logger: logger,
		ready:  ready,
	}
}

func writeDomainError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, domain.ErrNotFound):
		http.Error(w, err.Error(), http.StatusNotFound)
	case errors.Is(err, domain.ErrConflict):
		http.Error(w, err.Error(), http.StatusConflict)
	case errors.Is(err, domain.ErrForbidden):
		http.Error(w, err.Error(), http.StatusForbidden)
	case errors.Is(err, domain.ErrPreconditionFailed):
		http.Error(w, err.Error(), http.StatusPreconditionFailed)
	case errors.Is(err, domain.ErrInvalidInput):
		http.Error(w, err.Error(), http.StatusBadRequest)
	default:
		http.Error(w, err.Error(), http.StatusInternalServerError)
	}
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) []byte {
	data, _ := json.Marshal(v)
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	w.Write(data)
	return data
}

func seatView(seat domain.Seat, now time.Time) map[string]interface{} {
	view := map[string]interface{}{
		"id":     seat.ID,
		"row":    seat.Row,
		"number": seat.Number,
		"status": seat.Status,
	}
	if seat.Holder != "" {
		view["holder"] = seat.Holder
	}
	if seat.Status == domain.StatusLocked {
		view["lock_acquired_at"] = seat.LockAcquiredAt.Format(time.RFC3339)
		view["lock_expires_at"] = seat.LockExpiresAt.Format(time.RFC3339)
		view["remaining_seconds"] = seat.RemainingLockSeconds(now)
	}
	if seat.Status == domain.StatusBooked {
		view["booked_at"] = seat.BookedAt.Format(time.RFC3339)
	}
	return view
}

func bookingView(b domain.Booking) map[string]interface{} {
	return map[string]interface{}{
		"booking_id": b.ID,
		"seat_id":    b.SeatID,
		"actor_id":   b.ActorID,
		"booked_at":  b.BookedAt.Format(time.RFC3339),
	}
}

type actorRequest struct {
	ActorID string `json:"actor_id"`
}

func decodeActor(r *http.Request) (string, error) {
	var req actorRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		return "", errors.Wrap(domain.ErrInvalidInput, "malformed request body")
	}
	return req.ActorID, nil
}

func (h *Handlers) ListSeats(w http.ResponseWriter, r *http.Request) {
	status := domain.SeatStatus(r.URL.Query().Get("status"))
	switch status {
	case "", domain.StatusAvailable, domain.StatusLocked, domain.StatusBooked:
	default:
		writeDomainError(w, errors.Wrapf(domain.ErrInvalidInput, "unknown status %q", status))
		return
	}
	actor := r.URL.Query().Get("actor")

	seats, counts := h.reg.List(status, actor)
	now := time.Now()
	views := make([]map[string]interface{}, 0, len(seats))
	for _, seat := range seats {
		views = append(views, seatView(seat, now))
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"seats": views,
		"counts": map[string]int{
			"available": counts.Available,
			"locked":    counts.Locked,
			"booked":    counts.Booked,
			"total":     counts.Total,
		},
	})
}

func (h *Handlers) GetSeat(w http.ResponseWriter, r *http.Request) {
	seat, err := h.reg.Get(chi.URLParam(r, "id"))
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, seatView(seat, time.Now()))
}

func (h *Handlers) LockSeat(w http.ResponseWriter, r *http.Request) {
	key := r.Header.Get("Idempotency-Key")
	existing, err := h.idemp.Get(r.Context(), key)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	if existing != nil {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(existing.Status)
		w.Write(existing.Result)
		return
	}

	actorID, err := decodeActor(r)
	if err != nil {
		writeDomainError(w, err)
		return
	}

	seatID := chi.URLParam(r, "id")
	res, err := h.reg.Lock(seatID, actorID)
	if err != nil {
		if errors.Is(err, domain.ErrConflict) {
			observability.LocksTotal.WithLabelValues("conflict").Inc()
		}
		writeDomainError(w, err)
		return
	}

	outcome, status := "new", http.StatusCreated
	if res.Extended {
		outcome, status = "extended", http.StatusOK
	}
	observability.LocksTotal.WithLabelValues(outcome).Inc()
	h.publishEvent(r, "seat.locked", map[string]interface{}{
		"seat_id":  seatID,
		"actor_id": actorID,
		"extended": res.Extended,
	})

	view := seatView(res.Seat, time.Now())
	view["extended"] = res.Extended
	data := writeJSON(w, status, view)

	if err := h.idemp.Set(r.Context(), key, idempotency.Response{Status: status, Result: data}); err != nil {
		h.logger.WithError(err).WithField("idempotency_key", key).Error("failed to store idempotent response")
	}
}

func (h *Handlers) ConfirmSeat(w http.ResponseWriter, r *http.Request) {
	key := r.Header.Get("Idempotency-Key")
	existing, err := h.idemp.Get(r.Context(), key)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	if existing != nil {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(existing.Status)
		w.Write(existing.Result)
		return
	}

	actorID, err := decodeActor(r)
	if err != nil {
		writeDomainError(w, err)
		return
	}

	seatID := chi.URLParam(r, "id")
	booking, err := h.reg.Confirm(seatID, actorID)
	if err != nil {
		writeDomainError(w, err)
		return
	}

	observability.BookingsTotal.Inc()
	h.publishEvent(r, "seat.booked", map[string]interface{}{
		"seat_id":    seatID,
		"actor_id":   actorID,
		"booking_id": booking.ID,
	})

	data := writeJSON(w, http.StatusCreated, bookingView(booking))
	if err := h.idemp.Set(r.Context(), key, idempotency.Response{Status: http.StatusCreated, Result: data}); err != nil {
		h.logger.WithError(err).WithField("idempotency_key", key).Error("failed to store idempotent response")
	}
}

func (h *Handlers) ReleaseSeat(w http.ResponseWriter, r *http.Request) {
	actorID, err := decodeActor(r)
	if err != nil {
		writeDomainError(w, err)
		return
	}

	seatID := chi.URLParam(r, "id")
	if err := h.reg.Release(seatID, actorID); err != nil {
		writeDomainError(w, err)
		return
	}

	h.publishEvent(r, "seat.released", map[string]interface{}{
		"seat_id":  seatID,
		"actor_id": actorID,
	})

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"seat_id":  seatID,
		"released": true,
	})
}

func (h *Handlers) ListBookings(w http.ResponseWriter, r *http.Request) {
	bookings := h.reg.Bookings(r.URL.Query().Get("actor"))
	views := make([]map[string]interface{}, 0, len(bookings))
	for _, b := range bookings {
		views = append(views, bookingView(b))
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"bookings": views})
}

// Reset wipes every seat back to AVAILABLE and drops booking records. It is
// exposed for test and maintenance workflows and is not a normal transition.
func (h *Handlers) Reset(w http.ResponseWriter, r *http.Request) {
	h.logger.Warn("resetting all seats")
	h.reg.Reset()
	writeJSON(w, http.StatusOK, map[string]interface{}{"reset": true})
}

func (h *Handlers) Healthz(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	w.Write([]byte("OK"))
}

func (h *Handlers) Readyz(w http.ResponseWriter, r *http.Request) {
	if h.ready != nil {
		if err := h.ready(r); err != nil {
			http.Error(w, err.Error(), http.StatusServiceUnavailable)
			return
		}
	}
	w.WriteHeader(http.StatusOK)
	w.Write([]byte("Ready"))
}

func (h *Handlers) publishEvent(r *http.Request, key string, payload map[string]interface{}) {
	if h.events == nil {
		return
	}
	if err := h.events.PublishJSON(r.Context(), key, payload); err != nil {
		h.logger.WithError(err).WithField("event", key).Error("failed to publish event")
	}
}
