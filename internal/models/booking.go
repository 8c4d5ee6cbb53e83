package models

import (
	"time"

	"github.com/uptrace/bun"
)

type BookingStatus string

const (
	BookingPending   BookingStatus = "pending"
	BookingConfirmed BookingStatus = "confirmed"
	BookingCancelled BookingStatus = "cancelled"
	BookingCompleted BookingStatus = "completed"
	BookingRefunded  BookingStatus = "refunded"
)

type PaymentStatus string

const (
	PaymentPending PaymentStatus = "pending"
	PaymentPaid    PaymentStatus = "paid"
	PaymentFailed  PaymentStatus = "failed"
	// PaymentRefundPending is persisted before the refund gateway call so a
	// retry after a crash can tell an initiated refund from an unstarted one.
	PaymentRefundPending PaymentStatus = "refund-pending"
	PaymentRefunded      PaymentStatus = "refunded"
)

// Booking is one guest party's reservation against an Event. It is owned
// exclusively by the booking service; inventory and the coupon ledger only
// return facts that get recorded here.
type Booking struct {
	bun.BaseModel `bun:"table:bookings"`

	ID            string        `bun:"id,pk" json:"id"`
	EventID       string        `bun:"event_id,notnull" json:"event_id"`
	UserID        string        `bun:"user_id,notnull" json:"user_id"`
	GuestCount    int           `bun:"guest_count,notnull" json:"guest_count"`
	Status        BookingStatus `bun:"status,notnull" json:"status"`
	PaymentStatus PaymentStatus `bun:"payment_status,notnull" json:"payment_status"`
	PricePerGuest float64       `bun:"price_per_guest,notnull" json:"price_per_guest"`
	TotalPrice    float64       `bun:"total_price,notnull" json:"total_price"`

	// Coupon snapshot, frozen at booking time so later coupon edits don't
	// change what the guest was charged.
	CouponCode     string  `bun:"coupon_code,nullzero" json:"coupon_code,omitempty"`
	DiscountType   string  `bun:"discount_type,nullzero" json:"discount_type,omitempty"`
	DiscountAmount float64 `bun:"discount_amount,nullzero" json:"discount_amount,omitempty"`

	PaymentRef         string    `bun:"payment_ref,nullzero" json:"payment_ref,omitempty"`
	RefundAmount       float64   `bun:"refund_amount,nullzero" json:"refund_amount,omitempty"`
	CancellationReason string    `bun:"cancellation_reason,nullzero" json:"cancellation_reason,omitempty"`
	ContactName        string    `bun:"contact_name" json:"contact_name"`
	ContactEmail       string    `bun:"contact_email" json:"contact_email"`
	CreatedAt          time.Time `bun:"created_at,notnull" json:"created_at"`
	CancelledAt        time.Time `bun:"cancelled_at,nullzero" json:"cancelled_at,omitempty"`
}

// BookingRequest is the POST /bookings payload. The user id never comes
// from the client; it is taken from the bearer token.
type BookingRequest struct {
	EventID      string `json:"event_id"`
	GuestCount   int    `json:"guest_count"`
	CouponCode   string `json:"coupon_code,omitempty"`
	ContactName  string `json:"contact_name"`
	ContactEmail string `json:"contact_email"`

	// CouponEligible is set by the calling layer for coupons restricted to
	// user segments (new-users, members-only); the engine does not own
	// user profiles.
	CouponEligible bool `json:"coupon_eligible,omitempty"`
}

type CancelRequest struct {
	Reason string `json:"reason,omitempty"`
}

// BookingEvent is the JSON payload published to Kafka when a booking is
// confirmed or cancelled; the notification service renders the email.
type BookingEvent struct {
	Type         string    `json:"type"`
	BookingID    string    `json:"booking_id"`
	EventID      string    `json:"event_id"`
	UserID       string    `json:"user_id"`
	GuestCount   int       `json:"guest_count"`
	TotalPrice   float64   `json:"total_price"`
	RefundAmount float64   `json:"refund_amount,omitempty"`
	ContactEmail string    `json:"contact_email"`
	CheckInQR    string    `json:"check_in_qr,omitempty"` // base64 PNG
	Timestamp    time.Time `json:"timestamp"`
}
