package booking

import (
	"fmt"

	"ms-booking/internal/errs"
	"ms-booking/internal/models"
)

// validTransitions is the whole lifecycle. There is no way out of
// cancelled, and completed only moves to refunded (post-event goodwill).
var validTransitions = map[models.BookingStatus]map[models.BookingStatus]bool{
	models.BookingPending: {
		models.BookingConfirmed: true,
		models.BookingCancelled: true,
	},
	models.BookingConfirmed: {
		models.BookingCancelled: true,
		models.BookingCompleted: true,
	},
	models.BookingCompleted: {
		models.BookingRefunded: true,
	},
}

// CanTransition reports whether a booking may move from one status to
// another.
func CanTransition(from, to models.BookingStatus) bool {
	return validTransitions[from][to]
}

func transition(b *models.Booking, to models.BookingStatus) error {
	if !CanTransition(b.Status, to) {
		return fmt.Errorf("booking %s: %s -> %s: %w", b.ID, b.Status, to, errs.ErrInvalidTransition)
	}
	b.Status = to
	return nil
}
