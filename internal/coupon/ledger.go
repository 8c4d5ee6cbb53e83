// Package coupon decides whether a discount code may be applied to a
// booking attempt and by how much, and owns the coupon's usage counter.
package coupon

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/uptrace/bun"

	"ms-booking/internal/errs"
	"ms-booking/internal/logger"
	"ms-booking/internal/models"
)

// DiscountDecision is the outcome of a successful validation. Validation
// never touches used_count; usage is charged only by Consume after the
// booking's payment succeeds.
type DiscountDecision struct {
	Code   string
	Type   models.DiscountType
	Amount float64
}

type Ledger struct {
	DB     *bun.DB
	Logger *logger.Logger

	now func() time.Time
}

func NewLedger(db *bun.DB, log *logger.Logger) *Ledger {
	return &Ledger{DB: db, Logger: log, now: time.Now}
}

// Validate checks code against its window, applicability, minimum amount
// and usage caps for a candidate booking amount. userEligible is the
// caller-supplied answer for segment-restricted coupons (new-users,
// members-only); the engine does not own user profiles.
func (l *Ledger) Validate(ctx context.Context, code, userID, eventID string, candidateAmount float64, userEligible bool) (*DiscountDecision, error) {
	cp, err := l.getByCode(ctx, code)
	if err != nil {
		return nil, err
	}
	if !cp.IsActive {
		return nil, errs.ErrCouponNotFound
	}

	now := l.now()
	if now.Before(cp.ValidFrom) || now.After(cp.ValidUntil) {
		return nil, errs.ErrCouponExpired
	}

	switch cp.Applicability {
	case models.ApplicabilitySpecificEvents:
		ok, err := l.appliesToEvent(ctx, cp.Code, eventID)
		if err != nil {
			return nil, err
		}
		if !ok {
			return nil, errs.ErrCouponNotApplicable
		}
	case models.ApplicabilityNewUsers, models.ApplicabilityMembersOnly:
		if !userEligible {
			return nil, errs.ErrCouponNotApplicable
		}
	}

	if candidateAmount < cp.MinimumAmount {
		return nil, errs.ErrCouponBelowMinimum
	}
	if cp.UsageLimit > 0 && cp.UsedCount >= cp.UsageLimit {
		return nil, errs.ErrCouponGlobalLimitReached
	}

	if cp.UsageLimitPerUser > 0 {
		prior, err := l.userRedemptions(ctx, cp.Code, userID)
		if err != nil {
			return nil, err
		}
		if prior >= cp.UsageLimitPerUser {
			return nil, errs.ErrCouponUserLimitReached
		}
	}

	amount := computeDiscount(cp, candidateAmount)
	l.Logger.LogCoupon("VALIDATE", cp.Code, fmt.Sprintf("discount %.2f on %.2f for user %s", amount, candidateAmount, userID))
	return &DiscountDecision{Code: cp.Code, Type: cp.DiscountType, Amount: amount}, nil
}

// computeDiscount applies the coupon's rule to the candidate amount. The
// discount never exceeds the amount it discounts.
func computeDiscount(cp *models.Coupon, candidateAmount float64) float64 {
	var amount float64
	switch cp.DiscountType {
	case models.DiscountPercentage:
		amount = candidateAmount * cp.DiscountValue / 100
		if cp.MaximumDiscount > 0 && amount > cp.MaximumDiscount {
			amount = cp.MaximumDiscount
		}
	case models.DiscountFixed:
		amount = cp.DiscountValue
	}
	if amount > candidateAmount {
		amount = candidateAmount
	}
	if amount < 0 {
		amount = 0
	}
	return amount
}

// Consume charges one use of code against its global cap, keyed by
// bookingID so a retried commit never double-counts. The increment is a
// conditional UPDATE guarded by used_count < usage_limit; the redemption
// row's unique (code, booking_id) pair backs up the in-transaction
// idempotency check.
func (l *Ledger) Consume(ctx context.Context, code, userID, bookingID string) error {
	code = strings.ToLower(code)
	return l.DB.RunInTx(ctx, &sql.TxOptions{}, func(ctx context.Context, tx bun.Tx) error {
		exists, err := tx.NewSelect().
			Model((*models.CouponRedemption)(nil)).
			Where("lower(code) = ?", code).
			Where("booking_id = ?", bookingID).
			Exists(ctx)
		if err != nil {
			return fmt.Errorf("check redemption for booking %s: %w", bookingID, err)
		}
		if exists {
			return nil
		}

		redemption := models.CouponRedemption{
			ID:        uuid.NewString(),
			Code:      code,
			UserID:    userID,
			BookingID: bookingID,
			CreatedAt: l.now(),
		}
		if _, err := tx.NewInsert().Model(&redemption).Exec(ctx); err != nil {
			return fmt.Errorf("record redemption for booking %s: %w", bookingID, err)
		}

		res, err := tx.NewUpdate().
			Model((*models.Coupon)(nil)).
			Set("used_count = used_count + 1").
			Where("lower(code) = ?", code).
			Where("(usage_limit <= 0 OR used_count < usage_limit)").
			Exec(ctx)
		if err != nil {
			return fmt.Errorf("increment usage for coupon %s: %w", code, err)
		}
		rows, err := res.RowsAffected()
		if err != nil {
			return fmt.Errorf("increment usage for coupon %s: %w", code, err)
		}
		if rows == 0 {
			return errs.ErrCouponGlobalLimitReached
		}

		l.Logger.LogCoupon("CONSUME", code, fmt.Sprintf("charged usage for booking %s", bookingID))
		return nil
	})
}

func (l *Ledger) getByCode(ctx context.Context, code string) (*models.Coupon, error) {
	var cp models.Coupon
	err := l.DB.NewSelect().
		Model(&cp).
		Where("lower(code) = lower(?)", code).
		Limit(1).
		Scan(ctx)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, errs.ErrCouponNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("fetch coupon %s: %w", code, err)
	}
	return &cp, nil
}

func (l *Ledger) appliesToEvent(ctx context.Context, code, eventID string) (bool, error) {
	ok, err := l.DB.NewSelect().
		Model((*models.CouponEvent)(nil)).
		Where("lower(code) = lower(?)", code).
		Where("event_id = ?", eventID).
		Exists(ctx)
	if err != nil {
		return false, fmt.Errorf("check coupon %s applicability: %w", code, err)
	}
	return ok, nil
}

func (l *Ledger) userRedemptions(ctx context.Context, code, userID string) (int, error) {
	count, err := l.DB.NewSelect().
		Model((*models.CouponRedemption)(nil)).
		Where("lower(code) = lower(?)", code).
		Where("user_id = ?", userID).
		Count(ctx)
	if err != nil {
		return 0, fmt.Errorf("count redemptions for coupon %s: %w", code, err)
	}
	return count, nil
}
