package domain

import (
	"time"

	"github.com/google/uuid"
)

// Booking is the permanent claim produced when a held lock is confirmed.
type Booking struct {
	ID       uuid.UUID
	SeatID   string
	ActorID  string
	BookedAt time.Time
}

func NewBooking(seatID, actorID string, bookedAt time.Time) Booking {
	return Booking{
		ID:       uuid.New(),
		SeatID:   seatID,
		ActorID:  actorID,
		BookedAt: bookedAt,
	}
}
