// Package inventory is the single source of truth for seat availability.
// Reservation is one conditional UPDATE against the events row, so two
// concurrent requests for the last seat can never both succeed.
package inventory

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/uptrace/bun"

	"ms-booking/internal/errs"
	"ms-booking/internal/logger"
	"ms-booking/internal/models"
)

// Reservation is the token handed out by a successful TryReserve. The
// seats are already counted against the event at that point; the token
// only tracks whether they were confirmed or given back.
type Reservation struct {
	ID         string
	EventID    string
	GuestCount int

	settled bool
}

type Inventory struct {
	DB     *bun.DB
	Logger *logger.Logger

	now func() time.Time
}

func New(db *bun.DB, log *logger.Logger) *Inventory {
	return &Inventory{DB: db, Logger: log, now: time.Now}
}

// GetEvent fetches a single event row.
func (inv *Inventory) GetEvent(ctx context.Context, eventID string) (*models.Event, error) {
	var event models.Event
	err := inv.DB.NewSelect().
		Model(&event).
		Where("id = ?", eventID).
		Limit(1).
		Scan(ctx)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, errs.ErrEventNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("fetch event %s: %w", eventID, err)
	}
	return &event, nil
}

// TryReserve atomically claims guestCount seats on the event. The capacity
// check and the increment are a single UPDATE guarded by
// booked_seats + n <= total_seats, with the rows-affected count deciding
// the outcome; the status flips to fully-booked in the same statement.
func (inv *Inventory) TryReserve(ctx context.Context, eventID string, guestCount int) (*Reservation, error) {
	if guestCount < 1 {
		return nil, fmt.Errorf("guest count must be at least 1, got %d", guestCount)
	}

	event, err := inv.GetEvent(ctx, eventID)
	if err != nil {
		return nil, err
	}
	if event.Status == models.EventCompleted || event.Status == models.EventCancelled {
		return nil, errs.ErrEventClosed
	}
	if !inv.now().Before(event.BookingCutoff()) {
		return nil, errs.ErrEventClosed
	}

	res, err := inv.DB.NewUpdate().
		Model((*models.Event)(nil)).
		Set("booked_seats = booked_seats + ?", guestCount).
		Set("status = CASE WHEN booked_seats + ? >= total_seats THEN ? ELSE status END",
			guestCount, models.EventFullyBooked).
		Where("id = ?", eventID).
		Where("booked_seats + ? <= total_seats", guestCount).
		Exec(ctx)
	if err != nil {
		return nil, fmt.Errorf("reserve seats on event %s: %w", eventID, err)
	}
	rows, err := res.RowsAffected()
	if err != nil {
		return nil, fmt.Errorf("reserve seats on event %s: %w", eventID, err)
	}
	if rows == 0 {
		inv.Logger.LogInventory("RESERVE", eventID, fmt.Sprintf("rejected, %d seats not available", guestCount))
		return nil, errs.ErrSoldOut
	}

	inv.Logger.LogInventory("RESERVE", eventID, fmt.Sprintf("reserved %d seats", guestCount))
	return &Reservation{
		ID:         uuid.NewString(),
		EventID:    eventID,
		GuestCount: guestCount,
	}, nil
}

// Release gives guestCount seats back, floored at zero, and flips a
// fully-booked event back to live in the same statement.
func (inv *Inventory) Release(ctx context.Context, eventID string, guestCount int) error {
	_, err := inv.DB.NewUpdate().
		Model((*models.Event)(nil)).
		Set("booked_seats = CASE WHEN booked_seats > ? THEN booked_seats - ? ELSE 0 END",
			guestCount, guestCount).
		Set("status = CASE WHEN status = ? THEN ? ELSE status END",
			models.EventFullyBooked, models.EventLive).
		Where("id = ?", eventID).
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("release seats on event %s: %w", eventID, err)
	}
	inv.Logger.LogInventory("RELEASE", eventID, fmt.Sprintf("released %d seats", guestCount))
	return nil
}

// Confirm marks the reservation settled. The seats were already counted at
// TryReserve time, so this is bookkeeping only.
func (inv *Inventory) Confirm(res *Reservation) {
	if res != nil {
		res.settled = true
	}
}

// Abort gives a reservation's seats back. Calling it on a confirmed or
// already-aborted token is a no-op, so failure paths can abort
// unconditionally.
func (inv *Inventory) Abort(ctx context.Context, res *Reservation) error {
	if res == nil || res.settled {
		return nil
	}
	res.settled = true
	return inv.Release(ctx, res.EventID, res.GuestCount)
}
