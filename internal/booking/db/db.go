package db

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/uptrace/bun"

	"ms-booking/internal/errs"
	"ms-booking/internal/models"
)

type DB struct {
	Bun *bun.DB
}

// CreateBooking inserts a new booking row.
func (d *DB) CreateBooking(ctx context.Context, booking models.Booking) error {
	if _, err := d.Bun.NewInsert().Model(&booking).Exec(ctx); err != nil {
		return fmt.Errorf("insert booking %s: %w", booking.ID, err)
	}
	return nil
}

// GetBookingByID fetches one booking by its ID.
func (d *DB) GetBookingByID(ctx context.Context, id string) (*models.Booking, error) {
	var booking models.Booking
	err := d.Bun.NewSelect().
		Model(&booking).
		Where("id = ?", id).
		Limit(1).
		Scan(ctx)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, errs.ErrBookingNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("fetch booking %s: %w", id, err)
	}
	return &booking, nil
}

// UpdateBooking writes the mutable booking fields back.
func (d *DB) UpdateBooking(ctx context.Context, booking models.Booking) error {
	_, err := d.Bun.NewUpdate().
		Model(&booking).
		Column("status", "payment_status", "total_price", "coupon_code", "discount_type",
			"discount_amount", "payment_ref", "refund_amount", "cancellation_reason", "cancelled_at").
		Where("id = ?", booking.ID).
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("update booking %s: %w", booking.ID, err)
	}
	return nil
}

// GetBookingsByUser fetches all bookings for a user, newest first.
func (d *DB) GetBookingsByUser(ctx context.Context, userID string) ([]models.Booking, error) {
	var bookings []models.Booking
	err := d.Bun.NewSelect().
		Model(&bookings).
		Where("user_id = ?", userID).
		Order("created_at DESC").
		Scan(ctx)
	if err != nil {
		return nil, fmt.Errorf("fetch bookings for user %s: %w", userID, err)
	}
	if bookings == nil {
		bookings = []models.Booking{}
	}
	return bookings, nil
}

// CountActiveForEvent sums the guests of non-cancelled bookings on an
// event; used by the end-to-end consistency checks.
func (d *DB) CountActiveForEvent(ctx context.Context, eventID string) (int, error) {
	var total int
	err := d.Bun.NewSelect().
		ColumnExpr("COALESCE(SUM(guest_count), 0)").
		Model((*models.Booking)(nil)).
		Where("event_id = ?", eventID).
		Where("status IN (?)", bun.In([]models.BookingStatus{models.BookingPending, models.BookingConfirmed})).
		Scan(ctx, &total)
	if err != nil {
		return 0, fmt.Errorf("count active bookings for event %s: %w", eventID, err)
	}
	return total, nil
}
