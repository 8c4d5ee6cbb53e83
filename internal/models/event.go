package models

import (
	"time"

	"github.com/uptrace/bun"
)

type EventStatus string

const (
	EventScheduled   EventStatus = "scheduled"
	EventLive        EventStatus = "live"
	EventFullyBooked EventStatus = "fully-booked"
	EventCompleted   EventStatus = "completed"
	EventCancelled   EventStatus = "cancelled"
)

// Event is one scheduled occurrence of a club experience. The engine only
// ever mutates booked_seats and status; everything else is owned by the
// content-management side.
type Event struct {
	bun.BaseModel `bun:"table:events"`

	ID                string      `bun:"id,pk" json:"id"`
	ClubID            string      `bun:"club_id,notnull" json:"club_id"`
	Name              string      `bun:"name" json:"name"`
	StartTime         time.Time   `bun:"start_time,notnull" json:"start_time"`
	TotalSeats        int         `bun:"total_seats,notnull" json:"total_seats"`
	BookedSeats       int         `bun:"booked_seats,notnull,default:0" json:"booked_seats"`
	PricePerSeat      float64     `bun:"price_per_seat,notnull" json:"price_per_seat"`
	CancellationHours int         `bun:"cancellation_hours,notnull" json:"cancellation_hours"`
	Status            EventStatus `bun:"status,notnull" json:"status"`
	CreatedAt         time.Time   `bun:"created_at,notnull" json:"created_at"`
}

// AvailableSeats is a convenience for API responses; capacity enforcement
// happens in the inventory's conditional update, never here.
func (e *Event) AvailableSeats() int {
	left := e.TotalSeats - e.BookedSeats
	if left < 0 {
		return 0
	}
	return left
}

// BookingCutoff is the instant after which new bookings (and cancellations
// with a refund) are no longer accepted for this event.
func (e *Event) BookingCutoff() time.Time {
	return e.StartTime.Add(-time.Duration(e.CancellationHours) * time.Hour)
}
