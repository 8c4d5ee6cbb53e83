package db

import (
	"context"

	"github.com/uptrace/bun"

	"ms-booking/internal/models"
)

// Migrate creates the bookings table.
func Migrate(ctx context.Context, db *bun.DB) error {
	_, err := db.NewCreateTable().
		Model((*models.Booking)(nil)).
		IfNotExists().
		Exec(ctx)
	return err
}
