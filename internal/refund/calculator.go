// Package refund computes cancellation refunds against a club's
// time-windowed policy. It is a pure function of its inputs and performs
// no I/O; the booking service is responsible for actually moving money
// and releasing seats.
package refund

import (
	"time"

	"ms-booking/internal/models"
)

// Compute returns the refund owed when booking is cancelled at now.
//
// The policy is binary: cancelling at or before the cutoff
// (event start minus cancellationHours) refunds the full total, cancelling
// after it refunds nothing.
func Compute(booking models.Booking, event models.Event, cancellationHours int, now time.Time) float64 {
	cutoff := event.StartTime.Add(-time.Duration(cancellationHours) * time.Hour)
	if now.After(cutoff) {
		return 0
	}
	return booking.TotalPrice
}
