// Package registry is the sole authority over seat state. Every operation
// takes the registry mutex, reclaims expired locks, then acts, so no caller
// ever observes a seat whose lock has silently timed out.
package registry

import (
	"sync"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/robertarktes/seat-reservation-service/internal/domain"
)

type LockResult struct {
	Seat     domain.Seat
	Extended bool
}

type Counts struct {
	Available int
	Locked    int
	Booked    int
	Total     int
}

type Registry struct {
	mu       sync.Mutex
	ttl      time.Duration
	now      func() time.Time
	order    []string
	seats    map[string]*domain.Seat
	bookings []domain.Booking

	onExpired func([]domain.Seat)
}

func New(rows, seatsPerRow int, ttl time.Duration) *Registry {
	return NewWithClock(rows, seatsPerRow, ttl, time.Now)
}

// NewWithClock injects the clock; tests use it to drive lock expiry
// deterministically.
func NewWithClock(rows, seatsPerRow int, ttl time.Duration, now func() time.Time) *Registry {
	grid := domain.NewSeatGrid(rows, seatsPerRow)
	r := &Registry{
		ttl:   ttl,
		now:   now,
		order: make([]string, 0, len(grid)),
		seats: make(map[string]*domain.Seat, len(grid)),
	}
	for i := range grid {
		seat := grid[i]
		r.order = append(r.order, seat.ID)
		r.seats[seat.ID] = &seat
	}
	return r
}

// OnExpired registers a hook invoked with the seats reclaimed by a sweep.
// The hook runs after the registry mutex is released and must not call back
// into the registry from the same goroutine expectation-free; it is intended
// for event publishing and metrics.
func (r *Registry) OnExpired(fn func([]domain.Seat)) {
	r.onExpired = fn
}

// TTL returns the configured lock time-to-live.
func (r *Registry) TTL() time.Duration {
	return r.ttl
}

// withSweep serializes fn against all other operations and runs the expiry
// sweep first. The sweep and fn execute as one atomic step under the mutex.
func (r *Registry) withSweep(fn func(now time.Time) error) error {
	r.mu.Lock()
	now := r.now()
	expired := r.sweepLocked(now)
	err := fn(now)
	r.mu.Unlock()
	r.notifyExpired(expired)
	return err
}

// sweepLocked reclaims every lock whose deadline has passed. Caller must
// hold r.mu.
func (r *Registry) sweepLocked(now time.Time) []domain.Seat {
	var expired []domain.Seat
	for _, id := range r.order {
		seat := r.seats[id]
		if seat.LockExpired(now) {
			clearSeat(seat)
			expired = append(expired, *seat)
		}
	}
	return expired
}

func (r *Registry) notifyExpired(expired []domain.Seat) {
	if len(expired) > 0 && r.onExpired != nil {
		r.onExpired(expired)
	}
}

func clearSeat(seat *domain.Seat) {
	seat.Status = domain.StatusAvailable
	seat.Holder = ""
	seat.LockAcquiredAt = time.Time{}
	seat.LockExpiresAt = time.Time{}
	seat.BookedAt = time.Time{}
}

// Lock acquires a temporary hold on the seat, or extends it when the actor
// already holds the lock. Extension moves the expiry to now+TTL but keeps
// the original acquisition time.
func (r *Registry) Lock(seatID, actorID string) (LockResult, error) {
	if actorID == "" {
		return LockResult{}, errors.Wrap(domain.ErrInvalidInput, "actor id is required")
	}
	var res LockResult
	err := r.withSweep(func(now time.Time) error {
		seat, ok := r.seats[seatID]
		if !ok {
			return errors.Wrapf(domain.ErrNotFound, "seat %s", seatID)
		}
		switch seat.Status {
		case domain.StatusBooked:
			return errors.Wrapf(domain.ErrConflict, "seat %s is already booked", seatID)
		case domain.StatusLocked:
			if seat.Holder != actorID {
				return errors.Wrapf(domain.ErrConflict,
					"seat %s is locked by another actor, retry in %ds",
					seatID, seat.RemainingLockSeconds(now))
			}
			seat.LockExpiresAt = now.Add(r.ttl)
			res = LockResult{Seat: *seat, Extended: true}
			return nil
		}
		seat.Status = domain.StatusLocked
		seat.Holder = actorID
		seat.LockAcquiredAt = now
		seat.LockExpiresAt = now.Add(r.ttl)
		res = LockResult{Seat: *seat}
		return nil
	})
	return res, err
}

// Confirm converts the actor's held lock into a permanent booking. The seat
// must be locked by the same actor; a seat that was never locked cannot be
// confirmed directly.
func (r *Registry) Confirm(seatID, actorID string) (domain.Booking, error) {
	if actorID == "" {
		return domain.Booking{}, errors.Wrap(domain.ErrInvalidInput, "actor id is required")
	}
	var booking domain.Booking
	err := r.withSweep(func(now time.Time) error {
		seat, ok := r.seats[seatID]
		if !ok {
			return errors.Wrapf(domain.ErrNotFound, "seat %s", seatID)
		}
		switch seat.Status {
		case domain.StatusBooked:
			return errors.Wrapf(domain.ErrConflict, "seat %s is already booked", seatID)
		case domain.StatusAvailable:
			return errors.Wrapf(domain.ErrPreconditionFailed, "seat %s is not locked", seatID)
		}
		if seat.Holder != actorID {
			return errors.Wrapf(domain.ErrForbidden, "seat %s is locked by another actor", seatID)
		}
		seat.Status = domain.StatusBooked
		seat.BookedAt = now
		seat.LockAcquiredAt = time.Time{}
		seat.LockExpiresAt = time.Time{}
		booking = domain.NewBooking(seatID, actorID, now)
		r.bookings = append(r.bookings, booking)
		return nil
	})
	return booking, err
}

// Release abandons the actor's held lock before it expires.
func (r *Registry) Release(seatID, actorID string) error {
	if actorID == "" {
		return errors.Wrap(domain.ErrInvalidInput, "actor id is required")
	}
	return r.withSweep(func(now time.Time) error {
		seat, ok := r.seats[seatID]
		if !ok {
			return errors.Wrapf(domain.ErrNotFound, "seat %s", seatID)
		}
		if seat.Status != domain.StatusLocked {
			return errors.Wrapf(domain.ErrPreconditionFailed, "seat %s is not locked", seatID)
		}
		if seat.Holder != actorID {
			return errors.Wrapf(domain.ErrForbidden, "seat %s is locked by another actor", seatID)
		}
		clearSeat(seat)
		return nil
	})
}

// Get returns a snapshot of one seat.
func (r *Registry) Get(seatID string) (domain.Seat, error) {
	var out domain.Seat
	err := r.withSweep(func(now time.Time) error {
		seat, ok := r.seats[seatID]
		if !ok {
			return errors.Wrapf(domain.ErrNotFound, "seat %s", seatID)
		}
		out = *seat
		return nil
	})
	return out, err
}

// List returns seats in grid order, optionally filtered by status and by
// actor (seats the actor currently locks or has booked), plus aggregate
// counts over the whole grid.
func (r *Registry) List(status domain.SeatStatus, actorID string) ([]domain.Seat, Counts) {
	var (
		seats  []domain.Seat
		counts Counts
	)
	_ = r.withSweep(func(now time.Time) error {
		for _, id := range r.order {
			seat := r.seats[id]
			switch seat.Status {
			case domain.StatusAvailable:
				counts.Available++
			case domain.StatusLocked:
				counts.Locked++
			case domain.StatusBooked:
				counts.Booked++
			}
			counts.Total++
			if status != "" && seat.Status != status {
				continue
			}
			if actorID != "" && seat.Holder != actorID {
				continue
			}
			seats = append(seats, *seat)
		}
		return nil
	})
	return seats, counts
}

// Bookings returns booking records, optionally filtered by actor, oldest
// first.
func (r *Registry) Bookings(actorID string) []domain.Booking {
	var out []domain.Booking
	_ = r.withSweep(func(now time.Time) error {
		for _, b := range r.bookings {
			if actorID != "" && b.ActorID != actorID {
				continue
			}
			out = append(out, b)
		}
		return nil
	})
	return out
}

// Reset forces every seat back to AVAILABLE and drops all booking records,
// regardless of current state. Destructive; intended for test and
// maintenance workflows only.
func (r *Registry) Reset() {
	r.mu.Lock()
	for _, id := range r.order {
		clearSeat(r.seats[id])
	}
	r.bookings = nil
	r.mu.Unlock()
}

// SweepExpired reclaims expired locks immediately and returns the seats
// that were reclaimed. The lazy per-operation sweep already guarantees
// correctness; this entry point exists for the background sweeper so expiry
// events are published close to the deadline instead of on the next request.
func (r *Registry) SweepExpired() []domain.Seat {
	r.mu.Lock()
	expired := r.sweepLocked(r.now())
	r.mu.Unlock()
	return expired
}
