// Package booking owns the Booking entity's lifecycle and coordinates the
// seat inventory, the coupon ledger and the payment collaborator into one
// logical transaction. Creation is a saga, not an ACID transaction: every
// failure path after a successful reservation runs the compensating
// release before the error propagates.
package booking

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"ms-booking/internal/coupon"
	"ms-booking/internal/errs"
	"ms-booking/internal/inventory"
	"ms-booking/internal/logger"
	"ms-booking/internal/models"
	"ms-booking/internal/refund"
)

type DBLayer interface {
	CreateBooking(ctx context.Context, booking models.Booking) error
	GetBookingByID(ctx context.Context, id string) (*models.Booking, error)
	UpdateBooking(ctx context.Context, booking models.Booking) error
	GetBookingsByUser(ctx context.Context, userID string) ([]models.Booking, error)
}

type SeatInventory interface {
	GetEvent(ctx context.Context, eventID string) (*models.Event, error)
	TryReserve(ctx context.Context, eventID string, guestCount int) (*inventory.Reservation, error)
	Release(ctx context.Context, eventID string, guestCount int) error
	Confirm(res *inventory.Reservation)
	Abort(ctx context.Context, res *inventory.Reservation) error
}

type CouponLedger interface {
	Validate(ctx context.Context, code, userID, eventID string, candidateAmount float64, userEligible bool) (*coupon.DiscountDecision, error)
	Consume(ctx context.Context, code, userID, bookingID string) error
}

type PaymentGateway interface {
	Authorize(ctx context.Context, amount float64, currency string, metadata map[string]string) (string, error)
	Refund(ctx context.Context, reference string, amount float64) error
}

type EventPublisher interface {
	PublishBookingConfirmed(booking models.Booking) error
	PublishBookingCancelled(booking models.Booking) error
}

// IdempotencyStore claims a client-supplied key for a value. When the key
// was already claimed, the original value is returned with claimed=false.
// Release frees a claim whose operation failed so the key can be retried.
type IdempotencyStore interface {
	Claim(ctx context.Context, key, value string) (existing string, claimed bool, err error)
	Release(ctx context.Context, key string) error
}

type BookingService struct {
	DB          DBLayer
	Inventory   SeatInventory
	Coupons     CouponLedger
	Payments    PaymentGateway
	Publisher   EventPublisher
	Idempotency IdempotencyStore

	Currency       string
	PaymentTimeout time.Duration

	logger *logger.Logger
	now    func() time.Time
}

func NewBookingService(db DBLayer, inv SeatInventory, coupons CouponLedger, payments PaymentGateway,
	publisher EventPublisher, idem IdempotencyStore, currency string, paymentTimeout time.Duration,
	log *logger.Logger) *BookingService {
	if currency == "" {
		currency = "usd"
	}
	if paymentTimeout <= 0 {
		paymentTimeout = 30 * time.Second
	}
	return &BookingService{
		DB:             db,
		Inventory:      inv,
		Coupons:        coupons,
		Payments:       payments,
		Publisher:      publisher,
		Idempotency:    idem,
		Currency:       currency,
		PaymentTimeout: paymentTimeout,
		logger:         log,
		now:            time.Now,
	}
}

// CreateBookingInput carries everything the saga needs for one attempt.
type CreateBookingInput struct {
	EventID        string
	UserID         string
	GuestCount     int
	ContactName    string
	ContactEmail   string
	CouponCode     string
	CouponEligible bool
	IdempotencyKey string
}

// CreateBooking runs the booking saga:
// reserve seats -> validate coupon -> persist pending -> charge payment ->
// confirm + consume coupon. Every failure after the reserve aborts the
// reservation before returning.
func (s *BookingService) CreateBooking(ctx context.Context, input CreateBookingInput) (*models.Booking, error) {
	if input.GuestCount < 1 {
		return nil, fmt.Errorf("guest count must be at least 1, got %d", input.GuestCount)
	}
	if input.UserID == "" {
		return nil, errors.New("user id is required")
	}

	bookingID := uuid.NewString()

	// A replayed request with the same key returns the original booking
	// instead of reserving a second time.
	claimKey := ""
	if input.IdempotencyKey != "" {
		claimKey = "booking:create:" + input.IdempotencyKey
		existing, claimed, err := s.Idempotency.Claim(ctx, claimKey, bookingID)
		if err != nil {
			return nil, fmt.Errorf("idempotency claim: %w", err)
		}
		if !claimed {
			s.logger.LogBooking("CREATE", existing, "replayed idempotency key, returning existing booking")
			return s.DB.GetBookingByID(ctx, existing)
		}
	}

	// A failed attempt must not leave the key bound to a booking that never
	// confirmed; freeing it lets the client retry with the same key.
	releaseClaim := func() {
		if claimKey == "" {
			return
		}
		if err := s.Idempotency.Release(ctx, claimKey); err != nil {
			s.logger.Error("BOOKING", fmt.Sprintf("failed to release idempotency key %s: %v", claimKey, err))
		}
	}

	event, err := s.Inventory.GetEvent(ctx, input.EventID)
	if err != nil {
		releaseClaim()
		return nil, err
	}

	reservation, err := s.Inventory.TryReserve(ctx, input.EventID, input.GuestCount)
	if err != nil {
		releaseClaim()
		return nil, err
	}

	subtotal := float64(input.GuestCount) * event.PricePerSeat

	var decision *coupon.DiscountDecision
	if input.CouponCode != "" {
		decision, err = s.Coupons.Validate(ctx, input.CouponCode, input.UserID, input.EventID, subtotal, input.CouponEligible)
		if err != nil {
			// The booking must not be left half-reserved.
			if abortErr := s.Inventory.Abort(ctx, reservation); abortErr != nil {
				s.logger.Error("BOOKING", fmt.Sprintf("failed to abort reservation after coupon rejection: %v", abortErr))
			}
			releaseClaim()
			return nil, err
		}
	}

	total := subtotal
	booking := models.Booking{
		ID:            bookingID,
		EventID:       input.EventID,
		UserID:        input.UserID,
		GuestCount:    input.GuestCount,
		Status:        models.BookingPending,
		PaymentStatus: models.PaymentPending,
		PricePerGuest: event.PricePerSeat,
		ContactName:   input.ContactName,
		ContactEmail:  input.ContactEmail,
		CreatedAt:     s.now(),
	}
	if decision != nil {
		total -= decision.Amount
		if total < 0 {
			total = 0
		}
		booking.CouponCode = decision.Code
		booking.DiscountType = string(decision.Type)
		booking.DiscountAmount = decision.Amount
	}
	booking.TotalPrice = total

	if err := s.DB.CreateBooking(ctx, booking); err != nil {
		if abortErr := s.Inventory.Abort(ctx, reservation); abortErr != nil {
			s.logger.Error("BOOKING", fmt.Sprintf("failed to abort reservation after insert failure: %v", abortErr))
		}
		releaseClaim()
		return nil, err
	}
	s.logger.LogBooking("CREATE", bookingID, fmt.Sprintf("pending, %d guests, total %.2f", input.GuestCount, total))

	// Payment is the only external, potentially slow step; bound it so a
	// hung gateway resolves to cancelled + released, never a stuck pending.
	payCtx, cancel := context.WithTimeout(ctx, s.PaymentTimeout)
	defer cancel()

	reference, payErr := s.Payments.Authorize(payCtx, total, s.Currency, map[string]string{
		"booking_id": bookingID,
		"event_id":   input.EventID,
		"user_id":    input.UserID,
	})
	if payErr != nil {
		booking.Status = models.BookingCancelled
		booking.PaymentStatus = models.PaymentFailed
		booking.CancelledAt = s.now()
		if err := s.DB.UpdateBooking(ctx, booking); err != nil {
			s.logger.Error("BOOKING", fmt.Sprintf("failed to record payment failure on %s: %v", bookingID, err))
		}
		if abortErr := s.Inventory.Abort(ctx, reservation); abortErr != nil {
			s.logger.Error("BOOKING", fmt.Sprintf("failed to abort reservation after payment failure: %v", abortErr))
		}
		releaseClaim()
		s.logger.LogBooking("CREATE", bookingID, fmt.Sprintf("payment failed: %v", payErr))
		return nil, fmt.Errorf("%w: %v", errs.ErrPaymentFailed, payErr)
	}

	booking.Status = models.BookingConfirmed
	booking.PaymentStatus = models.PaymentPaid
	booking.PaymentRef = reference
	if err := s.DB.UpdateBooking(ctx, booking); err != nil {
		// Payment already captured; do not release seats. Surface the error
		// so the caller retries the commit with the same key.
		return nil, err
	}
	s.Inventory.Confirm(reservation)

	if decision != nil {
		if err := s.Coupons.Consume(ctx, decision.Code, input.UserID, bookingID); err != nil {
			s.logger.Error("COUPON", fmt.Sprintf("failed to consume %s for booking %s: %v", decision.Code, bookingID, err))
		}
	}

	s.publishConfirmed(booking)
	s.logger.LogBooking("CREATE", bookingID, "confirmed and paid")
	return &booking, nil
}

// CancelBooking cancels a pending or confirmed booking, refunding per the
// club's cancellation window and releasing the seats. Failures before any
// state change leave the booking untouched.
func (s *BookingService) CancelBooking(ctx context.Context, bookingID, userID, reason, idempotencyKey string) (*models.Booking, error) {
	booking, err := s.DB.GetBookingByID(ctx, bookingID)
	if err != nil {
		return nil, err
	}
	if userID != "" && booking.UserID != userID {
		return nil, errs.ErrBookingNotFound
	}

	if idempotencyKey != "" {
		_, claimed, err := s.Idempotency.Claim(ctx, "booking:cancel:"+idempotencyKey, bookingID)
		if err != nil {
			return nil, fmt.Errorf("idempotency claim: %w", err)
		}
		if !claimed && booking.Status == models.BookingCancelled {
			return booking, nil
		}
	}

	if !CanTransition(booking.Status, models.BookingCancelled) {
		return nil, fmt.Errorf("cancel booking %s in status %s: %w", bookingID, booking.Status, errs.ErrInvalidTransition)
	}

	event, err := s.Inventory.GetEvent(ctx, booking.EventID)
	if err != nil {
		return nil, err
	}

	refundAmount := refund.Compute(*booking, *event, event.CancellationHours, s.now())

	// The refund-pending marker is persisted before the gateway call so the
	// refund runs at most once per booking: a retry after a crash between
	// the call and the final write sees the marker and skips the gateway.
	if refundAmount > 0 && booking.PaymentStatus == models.PaymentPaid {
		booking.PaymentStatus = models.PaymentRefundPending
		if err := s.DB.UpdateBooking(ctx, *booking); err != nil {
			booking.PaymentStatus = models.PaymentPaid
			return nil, err
		}
		if err := s.Payments.Refund(ctx, booking.PaymentRef, refundAmount); err != nil {
			booking.PaymentStatus = models.PaymentPaid
			if uerr := s.DB.UpdateBooking(ctx, *booking); uerr != nil {
				s.logger.Error("BOOKING", fmt.Sprintf("failed to restore paid marker on %s: %v", bookingID, uerr))
			}
			return nil, fmt.Errorf("%w: refund: %v", errs.ErrPaymentFailed, err)
		}
		booking.PaymentStatus = models.PaymentRefunded
	} else if booking.PaymentStatus == models.PaymentRefundPending {
		s.logger.Warn("BOOKING", fmt.Sprintf("refund already initiated for %s, finalizing without a second gateway call", bookingID))
		booking.PaymentStatus = models.PaymentRefunded
	}

	if err := transition(booking, models.BookingCancelled); err != nil {
		return nil, err
	}
	booking.RefundAmount = refundAmount
	booking.CancellationReason = reason
	booking.CancelledAt = s.now()

	if err := s.DB.UpdateBooking(ctx, *booking); err != nil {
		return nil, err
	}
	if err := s.Inventory.Release(ctx, booking.EventID, booking.GuestCount); err != nil {
		s.logger.Error("BOOKING", fmt.Sprintf("failed to release seats for cancelled booking %s: %v", bookingID, err))
	}

	s.publishCancelled(*booking)
	s.logger.LogBooking("CANCEL", bookingID, fmt.Sprintf("refund %.2f", refundAmount))
	return booking, nil
}

// CompleteBooking marks a confirmed booking completed once the event has
// taken place.
func (s *BookingService) CompleteBooking(ctx context.Context, bookingID string) (*models.Booking, error) {
	booking, err := s.DB.GetBookingByID(ctx, bookingID)
	if err != nil {
		return nil, err
	}
	if err := transition(booking, models.BookingCompleted); err != nil {
		return nil, err
	}
	if err := s.DB.UpdateBooking(ctx, *booking); err != nil {
		return nil, err
	}
	s.logger.LogBooking("COMPLETE", bookingID, "marked completed")
	return booking, nil
}

// RefundCompleted issues a post-event goodwill refund of the full total on
// a completed booking.
func (s *BookingService) RefundCompleted(ctx context.Context, bookingID string) (*models.Booking, error) {
	booking, err := s.DB.GetBookingByID(ctx, bookingID)
	if err != nil {
		return nil, err
	}
	if !CanTransition(booking.Status, models.BookingRefunded) {
		return nil, fmt.Errorf("refund booking %s in status %s: %w", bookingID, booking.Status, errs.ErrInvalidTransition)
	}

	if booking.PaymentStatus == models.PaymentPaid && booking.TotalPrice > 0 {
		if err := s.Payments.Refund(ctx, booking.PaymentRef, booking.TotalPrice); err != nil {
			return nil, fmt.Errorf("%w: refund: %v", errs.ErrPaymentFailed, err)
		}
	}

	if err := transition(booking, models.BookingRefunded); err != nil {
		return nil, err
	}
	booking.PaymentStatus = models.PaymentRefunded
	booking.RefundAmount = booking.TotalPrice
	if err := s.DB.UpdateBooking(ctx, *booking); err != nil {
		return nil, err
	}
	s.logger.LogBooking("REFUND", bookingID, fmt.Sprintf("post-event refund %.2f", booking.TotalPrice))
	return booking, nil
}

func (s *BookingService) GetBooking(ctx context.Context, bookingID string) (*models.Booking, error) {
	return s.DB.GetBookingByID(ctx, bookingID)
}

func (s *BookingService) GetBookingsByUser(ctx context.Context, userID string) ([]models.Booking, error) {
	return s.DB.GetBookingsByUser(ctx, userID)
}

// Notification publishes are fire-and-forget: a broker outage must never
// roll back a booking.
func (s *BookingService) publishConfirmed(booking models.Booking) {
	if s.Publisher == nil {
		return
	}
	if err := s.Publisher.PublishBookingConfirmed(booking); err != nil {
		s.logger.Error("KAFKA", fmt.Sprintf("publish booking.confirmed for %s: %v", booking.ID, err))
	}
}

func (s *BookingService) publishCancelled(booking models.Booking) {
	if s.Publisher == nil {
		return
	}
	if err := s.Publisher.PublishBookingCancelled(booking); err != nil {
		s.logger.Error("KAFKA", fmt.Sprintf("publish booking.cancelled for %s: %v", booking.ID, err))
	}
}
