package domain

import (
	"math"
	"strconv"
	"time"
)

type SeatStatus string

const (
	StatusAvailable SeatStatus = "AVAILABLE"
	StatusLocked    SeatStatus = "LOCKED"
	StatusBooked    SeatStatus = "BOOKED"
)

// Seat is one physical seat. Identity (ID, Row, Number) is fixed at
// construction; only Status, Holder and the timestamps change. Timestamp
// fields are zero whenever the matching status does not apply.
type Seat struct {
	ID             string
	Row            string
	Number         int
	Status         SeatStatus
	Holder         string
	LockAcquiredAt time.Time
	LockExpiresAt  time.Time
	BookedAt       time.Time
}

// LockExpired reports whether the seat holds a lock whose deadline has
// passed. Always false for seats that are not LOCKED.
func (s Seat) LockExpired(now time.Time) bool {
	return s.Status == StatusLocked && !now.Before(s.LockExpiresAt)
}

// RemainingLockSeconds returns the whole seconds left on the lock, rounded
// up. Zero for seats that are not LOCKED or whose lock has expired.
func (s Seat) RemainingLockSeconds(now time.Time) int {
	if s.Status != StatusLocked {
		return 0
	}
	rem := s.LockExpiresAt.Sub(now)
	if rem <= 0 {
		return 0
	}
	return int(math.Ceil(rem.Seconds()))
}

// NewSeatGrid builds the fixed seat inventory: rows x seatsPerRow seats,
// all AVAILABLE. Seat IDs are the row label followed by the 1-based seat
// number ("A1" .. "A10", "B1" ...). Order is row-major and stable.
func NewSeatGrid(rows, seatsPerRow int) []Seat {
	seats := make([]Seat, 0, rows*seatsPerRow)
	for r := 0; r < rows; r++ {
		label := RowLabel(r)
		for n := 1; n <= seatsPerRow; n++ {
			seats = append(seats, Seat{
				ID:     label + strconv.Itoa(n),
				Row:    label,
				Number: n,
				Status: StatusAvailable,
			})
		}
	}
	return seats
}

// RowLabel converts a zero-based row index to its letter label:
// 0..25 -> "A".."Z", 26 -> "AA", 27 -> "AB", and so on.
func RowLabel(i int) string {
	label := ""
	for i >= 0 {
		label = string(rune('A'+i%26)) + label
		i = i/26 - 1
	}
	return label
}
