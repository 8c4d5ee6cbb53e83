package coupon_test

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/sqlitedialect"
	_ "github.com/uptrace/bun/driver/sqliteshim"

	"ms-booking/internal/coupon"
	"ms-booking/internal/errs"
	"ms-booking/internal/logger"
	"ms-booking/internal/models"
)

func setupTestDB(t *testing.T) *bun.DB {
	sqldb, err := sql.Open("sqlite", ":memory:")
	if err != nil {
		t.Fatalf("Failed to open in-memory database: %v", err)
	}
	sqldb.SetMaxOpenConns(1)

	bunDB := bun.NewDB(sqldb, sqlitedialect.New())
	if err := coupon.Migrate(context.Background(), bunDB); err != nil {
		t.Fatalf("Failed to create coupon tables: %v", err)
	}
	t.Cleanup(func() { bunDB.Close() })
	return bunDB
}

func seedCoupon(t *testing.T, db *bun.DB, cp models.Coupon) {
	if cp.ValidFrom.IsZero() {
		cp.ValidFrom = time.Now().Add(-24 * time.Hour)
	}
	if cp.ValidUntil.IsZero() {
		cp.ValidUntil = time.Now().Add(24 * time.Hour)
	}
	if cp.CreatedAt.IsZero() {
		cp.CreatedAt = time.Now()
	}
	_, err := db.NewInsert().Model(&cp).Exec(context.Background())
	assert.NoError(t, err)
}

func newLedger(db *bun.DB) *coupon.Ledger {
	return coupon.NewLedger(db, logger.NewNop())
}

func TestValidatePercentageDiscount(t *testing.T) {
	db := setupTestDB(t)
	seedCoupon(t, db, models.Coupon{
		Code: "SAVE10", DiscountType: models.DiscountPercentage, DiscountValue: 10,
		IsActive: true, Applicability: models.ApplicabilityAll,
	})
	ledger := newLedger(db)

	decision, err := ledger.Validate(context.Background(), "SAVE10", "user1", "ev1", 150, false)
	assert.NoError(t, err)
	assert.Equal(t, 15.0, decision.Amount)
	assert.Equal(t, models.DiscountPercentage, decision.Type)
}

func TestValidateIsCaseInsensitive(t *testing.T) {
	db := setupTestDB(t)
	seedCoupon(t, db, models.Coupon{
		Code: "SAVE10", DiscountType: models.DiscountPercentage, DiscountValue: 10,
		IsActive: true, Applicability: models.ApplicabilityAll,
	})
	ledger := newLedger(db)

	decision, err := ledger.Validate(context.Background(), "save10", "user1", "ev1", 100, false)
	assert.NoError(t, err)
	assert.Equal(t, 10.0, decision.Amount)
}

func TestValidatePercentageCappedByMaximumDiscount(t *testing.T) {
	db := setupTestDB(t)
	seedCoupon(t, db, models.Coupon{
		Code: "BIG50", DiscountType: models.DiscountPercentage, DiscountValue: 50,
		MaximumDiscount: 30, IsActive: true, Applicability: models.ApplicabilityAll,
	})
	ledger := newLedger(db)

	decision, err := ledger.Validate(context.Background(), "BIG50", "user1", "ev1", 200, false)
	assert.NoError(t, err)
	assert.Equal(t, 30.0, decision.Amount)
}

func TestValidateFixedNeverExceedsAmount(t *testing.T) {
	db := setupTestDB(t)
	seedCoupon(t, db, models.Coupon{
		Code: "FLAT40", DiscountType: models.DiscountFixed, DiscountValue: 40,
		IsActive: true, Applicability: models.ApplicabilityAll,
	})
	ledger := newLedger(db)

	decision, err := ledger.Validate(context.Background(), "FLAT40", "user1", "ev1", 25, false)
	assert.NoError(t, err)
	assert.Equal(t, 25.0, decision.Amount)
}

func TestValidateFailures(t *testing.T) {
	db := setupTestDB(t)
	now := time.Now()
	seedCoupon(t, db, models.Coupon{
		Code: "INACTIVE", DiscountType: models.DiscountFixed, DiscountValue: 5,
		IsActive: false, Applicability: models.ApplicabilityAll,
	})
	seedCoupon(t, db, models.Coupon{
		Code: "EXPIRED", DiscountType: models.DiscountFixed, DiscountValue: 5,
		IsActive: true, Applicability: models.ApplicabilityAll,
		ValidFrom: now.Add(-48 * time.Hour), ValidUntil: now.Add(-24 * time.Hour),
	})
	seedCoupon(t, db, models.Coupon{
		Code: "NOTYET", DiscountType: models.DiscountFixed, DiscountValue: 5,
		IsActive: true, Applicability: models.ApplicabilityAll,
		ValidFrom: now.Add(24 * time.Hour), ValidUntil: now.Add(48 * time.Hour),
	})
	seedCoupon(t, db, models.Coupon{
		Code: "MIN100", DiscountType: models.DiscountFixed, DiscountValue: 5,
		MinimumAmount: 100, IsActive: true, Applicability: models.ApplicabilityAll,
	})
	seedCoupon(t, db, models.Coupon{
		Code: "EXHAUSTED", DiscountType: models.DiscountFixed, DiscountValue: 5,
		UsageLimit: 3, UsedCount: 3, IsActive: true, Applicability: models.ApplicabilityAll,
	})
	seedCoupon(t, db, models.Coupon{
		Code: "MEMBERS", DiscountType: models.DiscountFixed, DiscountValue: 5,
		IsActive: true, Applicability: models.ApplicabilityMembersOnly,
	})
	ledger := newLedger(db)
	ctx := context.Background()

	_, err := ledger.Validate(ctx, "MISSING", "user1", "ev1", 100, false)
	assert.ErrorIs(t, err, errs.ErrCouponNotFound)

	_, err = ledger.Validate(ctx, "INACTIVE", "user1", "ev1", 100, false)
	assert.ErrorIs(t, err, errs.ErrCouponNotFound)

	_, err = ledger.Validate(ctx, "EXPIRED", "user1", "ev1", 100, false)
	assert.ErrorIs(t, err, errs.ErrCouponExpired)

	_, err = ledger.Validate(ctx, "NOTYET", "user1", "ev1", 100, false)
	assert.ErrorIs(t, err, errs.ErrCouponExpired)

	_, err = ledger.Validate(ctx, "MIN100", "user1", "ev1", 99, false)
	assert.ErrorIs(t, err, errs.ErrCouponBelowMinimum)

	_, err = ledger.Validate(ctx, "EXHAUSTED", "user1", "ev1", 100, false)
	assert.ErrorIs(t, err, errs.ErrCouponGlobalLimitReached)

	_, err = ledger.Validate(ctx, "MEMBERS", "user1", "ev1", 100, false)
	assert.ErrorIs(t, err, errs.ErrCouponNotApplicable)

	// The same coupon passes when the caller vouches for the user segment.
	_, err = ledger.Validate(ctx, "MEMBERS", "user1", "ev1", 100, true)
	assert.NoError(t, err)
}

func TestSeededInactiveCouponStaysInactive(t *testing.T) {
	db := setupTestDB(t)
	seedCoupon(t, db, models.Coupon{
		Code: "OFF", DiscountType: models.DiscountFixed, DiscountValue: 5,
		IsActive: false, Applicability: models.ApplicabilityAll,
	})

	// false must survive the round trip; a column default must never
	// overwrite it on insert.
	var cp models.Coupon
	err := db.NewSelect().Model(&cp).Where("code = ?", "OFF").Scan(context.Background())
	assert.NoError(t, err)
	assert.False(t, cp.IsActive)
}

func TestValidateSpecificEvents(t *testing.T) {
	db := setupTestDB(t)
	seedCoupon(t, db, models.Coupon{
		Code: "CHEFNIGHT", DiscountType: models.DiscountFixed, DiscountValue: 10,
		IsActive: true, Applicability: models.ApplicabilitySpecificEvents,
	})
	link := models.CouponEvent{Code: "CHEFNIGHT", EventID: "ev-special"}
	_, err := db.NewInsert().Model(&link).Exec(context.Background())
	assert.NoError(t, err)
	ledger := newLedger(db)

	_, err = ledger.Validate(context.Background(), "CHEFNIGHT", "user1", "ev-other", 100, false)
	assert.ErrorIs(t, err, errs.ErrCouponNotApplicable)

	decision, err := ledger.Validate(context.Background(), "CHEFNIGHT", "user1", "ev-special", 100, false)
	assert.NoError(t, err)
	assert.Equal(t, 10.0, decision.Amount)
}

func TestValidatePerUserLimit(t *testing.T) {
	db := setupTestDB(t)
	seedCoupon(t, db, models.Coupon{
		Code: "ONCE", DiscountType: models.DiscountFixed, DiscountValue: 5,
		UsageLimitPerUser: 1, IsActive: true, Applicability: models.ApplicabilityAll,
	})
	ledger := newLedger(db)
	ctx := context.Background()

	_, err := ledger.Validate(ctx, "ONCE", "user1", "ev1", 100, false)
	assert.NoError(t, err)

	assert.NoError(t, ledger.Consume(ctx, "ONCE", "user1", "booking1"))

	_, err = ledger.Validate(ctx, "ONCE", "user1", "ev1", 100, false)
	assert.ErrorIs(t, err, errs.ErrCouponUserLimitReached)

	// A different user is unaffected.
	_, err = ledger.Validate(ctx, "ONCE", "user2", "ev1", 100, false)
	assert.NoError(t, err)
}

func TestConsumeIsIdempotentPerBooking(t *testing.T) {
	db := setupTestDB(t)
	seedCoupon(t, db, models.Coupon{
		Code: "SAVE10", DiscountType: models.DiscountPercentage, DiscountValue: 10,
		UsageLimit: 10, IsActive: true, Applicability: models.ApplicabilityAll,
	})
	ledger := newLedger(db)
	ctx := context.Background()

	assert.NoError(t, ledger.Consume(ctx, "SAVE10", "user1", "booking1"))
	assert.NoError(t, ledger.Consume(ctx, "SAVE10", "user1", "booking1")) // retried commit

	var cp models.Coupon
	err := db.NewSelect().Model(&cp).Where("code = ?", "SAVE10").Scan(ctx)
	assert.NoError(t, err)
	assert.Equal(t, 1, cp.UsedCount)
}

func TestConsumeStopsAtGlobalLimit(t *testing.T) {
	db := setupTestDB(t)
	seedCoupon(t, db, models.Coupon{
		Code: "TWOONLY", DiscountType: models.DiscountFixed, DiscountValue: 5,
		UsageLimit: 2, IsActive: true, Applicability: models.ApplicabilityAll,
	})
	ledger := newLedger(db)
	ctx := context.Background()

	assert.NoError(t, ledger.Consume(ctx, "TWOONLY", "user1", "booking1"))
	assert.NoError(t, ledger.Consume(ctx, "TWOONLY", "user2", "booking2"))

	err := ledger.Consume(ctx, "TWOONLY", "user3", "booking3")
	assert.ErrorIs(t, err, errs.ErrCouponGlobalLimitReached)

	var cp models.Coupon
	err = db.NewSelect().Model(&cp).Where("code = ?", "TWOONLY").Scan(ctx)
	assert.NoError(t, err)
	assert.Equal(t, 2, cp.UsedCount)
}
