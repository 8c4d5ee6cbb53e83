package errs

import "errors"

// Error is a stable, code-carrying failure of the booking engine.
// The HTTP layer maps codes to status lines; callers match with errors.Is.
type Error struct {
	code    string
	message string
}

func (e *Error) Error() string { return e.message }

func (e *Error) Code() string { return e.code }

func newError(code, message string) *Error {
	return &Error{code: code, message: message}
}

var (
	ErrEventNotFound = newError("EVENT_NOT_FOUND", "event not found")
	ErrEventClosed   = newError("EVENT_CLOSED", "event is no longer accepting bookings")
	ErrSoldOut       = newError("SOLD_OUT", "not enough seats left for this event")

	ErrCouponNotFound           = newError("COUPON_NOT_FOUND", "coupon code not found")
	ErrCouponExpired            = newError("COUPON_EXPIRED", "coupon is outside its validity window")
	ErrCouponNotApplicable      = newError("COUPON_NOT_APPLICABLE", "coupon cannot be applied to this booking")
	ErrCouponBelowMinimum       = newError("COUPON_BELOW_MINIMUM", "booking amount is below the coupon minimum")
	ErrCouponGlobalLimitReached = newError("COUPON_GLOBAL_LIMIT_REACHED", "coupon usage limit has been reached")
	ErrCouponUserLimitReached   = newError("COUPON_USER_LIMIT_REACHED", "coupon per-user limit has been reached")

	ErrPaymentFailed     = newError("PAYMENT_FAILED", "payment was not captured")
	ErrInvalidTransition = newError("INVALID_TRANSITION", "booking is not in a state that allows this operation")
	ErrBookingNotFound   = newError("BOOKING_NOT_FOUND", "booking not found")
)

// CodeOf returns the stable code buried anywhere in err's chain, or
// "INTERNAL" when the failure is not part of the engine taxonomy.
func CodeOf(err error) string {
	var e *Error
	if errors.As(err, &e) {
		return e.Code()
	}
	return "INTERNAL"
}
