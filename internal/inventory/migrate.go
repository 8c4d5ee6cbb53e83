package inventory

import (
	"context"

	"github.com/uptrace/bun"

	"ms-booking/internal/models"
)

// Migrate creates the events table. Event rows themselves are written by
// the content-management side; the engine only needs the schema present.
func Migrate(ctx context.Context, db *bun.DB) error {
	_, err := db.NewCreateTable().
		Model((*models.Event)(nil)).
		IfNotExists().
		Exec(ctx)
	return err
}
