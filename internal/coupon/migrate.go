package coupon

import (
	"context"

	"github.com/uptrace/bun"

	"ms-booking/internal/models"
)

// Migrate creates the coupon tables.
func Migrate(ctx context.Context, db *bun.DB) error {
	for _, model := range []interface{}{
		(*models.Coupon)(nil),
		(*models.CouponEvent)(nil),
		(*models.CouponRedemption)(nil),
	} {
		if _, err := db.NewCreateTable().Model(model).IfNotExists().Exec(ctx); err != nil {
			return err
		}
	}
	return nil
}
