package models

import (
	"time"

	"github.com/uptrace/bun"
)

type DiscountType string

const (
	DiscountPercentage DiscountType = "percentage"
	DiscountFixed      DiscountType = "fixed"
)

type CouponApplicability string

const (
	ApplicabilityAll            CouponApplicability = "all"
	ApplicabilityNewUsers       CouponApplicability = "new-users"
	ApplicabilityMembersOnly    CouponApplicability = "members-only"
	ApplicabilitySpecificEvents CouponApplicability = "specific-events"
)

// Coupon is a discount rule. used_count is only ever mutated through the
// ledger's Consume, never written directly.
type Coupon struct {
	bun.BaseModel `bun:"table:coupons"`

	Code              string              `bun:"code,pk" json:"code"`
	DiscountType      DiscountType        `bun:"discount_type,notnull" json:"discount_type"`
	DiscountValue     float64             `bun:"discount_value,notnull" json:"discount_value"`
	MinimumAmount     float64             `bun:"minimum_amount,notnull,default:0" json:"minimum_amount"`
	MaximumDiscount   float64             `bun:"maximum_discount,nullzero" json:"maximum_discount,omitempty"` // 0 = uncapped
	UsageLimit        int                 `bun:"usage_limit,notnull,default:0" json:"usage_limit"`            // 0 = unlimited
	UsageLimitPerUser int                 `bun:"usage_limit_per_user,notnull,default:0" json:"usage_limit_per_user"`
	UsedCount         int                 `bun:"used_count,notnull,default:0" json:"used_count"`
	ValidFrom         time.Time           `bun:"valid_from,notnull" json:"valid_from"`
	ValidUntil        time.Time           `bun:"valid_until,notnull" json:"valid_until"`
	IsActive          bool                `bun:"is_active,notnull" json:"is_active"`
	Applicability     CouponApplicability `bun:"applicability,notnull,default:'all'" json:"applicability"`
	CreatedAt         time.Time           `bun:"created_at,notnull" json:"created_at"`

	// EventIDs is loaded from coupon_events when applicability is
	// specific-events; it is not a column.
	EventIDs []string `bun:"-" json:"event_ids,omitempty"`
}

// CouponEvent links a specific-events coupon to an event it applies to.
type CouponEvent struct {
	bun.BaseModel `bun:"table:coupon_events"`

	Code    string `bun:"code,pk" json:"code"`
	EventID string `bun:"event_id,pk" json:"event_id"`
}

// CouponRedemption records one successful application of a coupon to a
// booking. The (code, booking_id) pair is unique so a retried commit can
// never double-count usage.
type CouponRedemption struct {
	bun.BaseModel `bun:"table:coupon_redemptions"`

	ID        string    `bun:"id,pk" json:"id"`
	Code      string    `bun:"code,notnull,unique:coupon_redemptions_code_booking" json:"code"`
	UserID    string    `bun:"user_id,notnull" json:"user_id"`
	BookingID string    `bun:"booking_id,notnull,unique:coupon_redemptions_code_booking" json:"booking_id"`
	CreatedAt time.Time `bun:"created_at,notnull" json:"created_at"`
}
