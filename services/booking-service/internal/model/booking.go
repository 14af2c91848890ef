package model

import "time"

// Booking statuses. Pending and confirmed bookings block their slot;
// cancelled and storno ones free it for re-booking.
const (
	StatusPending   = "pending"
	StatusConfirmed = "confirmed"
	StatusCancelled = "cancelled"
	StatusStorno    = "storno"
)

func ValidStatus(s string) bool {
	switch s {
	case StatusPending, StatusConfirmed, StatusCancelled, StatusStorno:
		return true
	}
	return false
}

func BlockingStatus(s string) bool {
	return s == StatusPending || s == StatusConfirmed
}

// BlockingStatuses lists the statuses that occupy a slot. Must stay in step
// with the partial unique index on bookings.
func BlockingStatuses() []string {
	return []string{StatusPending, StatusConfirmed}
}

type Booking struct {
	ID            int64
	PublicRef     string
	ConsultantID  int64
	CustomerName  string
	CustomerEmail string
	BookingDate   string // YYYY-MM-DD
	BookingTime   string // HH:MM
	Status        string
	CreatedAt     time.Time
}
