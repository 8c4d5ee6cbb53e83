package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"github.com/go-chi/chi/v5"

	"ms-booking/internal/auth"
	"ms-booking/internal/booking"
	"ms-booking/internal/errs"
	"ms-booking/internal/logger"
	"ms-booking/internal/models"
	"ms-booking/internal/utils"
)

// Service is what the handlers need from the booking lifecycle; the
// concrete *booking.BookingService is wired in main.
type Service interface {
	CreateBooking(ctx context.Context, input booking.CreateBookingInput) (*models.Booking, error)
	CancelBooking(ctx context.Context, bookingID, userID, reason, idempotencyKey string) (*models.Booking, error)
	CompleteBooking(ctx context.Context, bookingID string) (*models.Booking, error)
	RefundCompleted(ctx context.Context, bookingID string) (*models.Booking, error)
	GetBooking(ctx context.Context, bookingID string) (*models.Booking, error)
	GetBookingsByUser(ctx context.Context, userID string) ([]models.Booking, error)
}

type Handler struct {
	Bookings Service
	Logger   *logger.Logger
}

func NewHandler(bookings Service, log *logger.Logger) *Handler {
	return &Handler{Bookings: bookings, Logger: log}
}

func (h *Handler) Routes(r chi.Router) {
	r.Post("/bookings", h.CreateBooking)
	r.Get("/bookings/{bookingId}", h.GetBooking)
	r.Delete("/bookings/{bookingId}", h.CancelBooking)
	r.Post("/bookings/{bookingId}/complete", h.CompleteBooking)
	r.Post("/bookings/{bookingId}/refund", h.RefundBooking)
	r.Get("/users/me/bookings", h.ListMyBookings)
}

func (h *Handler) CreateBooking(w http.ResponseWriter, r *http.Request) {
	var req models.BookingRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, http.StatusBadRequest, "INVALID_REQUEST", "invalid booking JSON: "+err.Error())
		return
	}
	if req.EventID == "" || req.GuestCount < 1 {
		h.writeError(w, http.StatusBadRequest, "INVALID_REQUEST", "event_id and a guest_count of at least 1 are required")
		return
	}

	userID := auth.UserID(r.Context())
	h.Logger.Info("API", fmt.Sprintf("CreateBooking: event=%s user=%s guests=%d", req.EventID, userID, req.GuestCount))

	created, err := h.Bookings.CreateBooking(r.Context(), booking.CreateBookingInput{
		EventID:        req.EventID,
		UserID:         userID,
		GuestCount:     req.GuestCount,
		ContactName:    req.ContactName,
		ContactEmail:   req.ContactEmail,
		CouponCode:     req.CouponCode,
		CouponEligible: req.CouponEligible,
		IdempotencyKey: r.Header.Get("Idempotency-Key"),
	})
	if err != nil {
		h.writeEngineError(w, err)
		return
	}

	utils.WriteJSON(w, http.StatusCreated, utils.SuccessResponse("booking confirmed", created))
}

func (h *Handler) GetBooking(w http.ResponseWriter, r *http.Request) {
	bookingID := chi.URLParam(r, "bookingId")

	found, err := h.Bookings.GetBooking(r.Context(), bookingID)
	if err != nil {
		h.writeEngineError(w, err)
		return
	}
	if found.UserID != auth.UserID(r.Context()) {
		// Don't leak other users' bookings.
		h.writeError(w, http.StatusNotFound, errs.ErrBookingNotFound.Code(), errs.ErrBookingNotFound.Error())
		return
	}

	utils.WriteJSON(w, http.StatusOK, utils.SuccessResponse("booking", found))
}

func (h *Handler) CancelBooking(w http.ResponseWriter, r *http.Request) {
	bookingID := chi.URLParam(r, "bookingId")

	var req models.CancelRequest
	if r.Body != nil {
		_ = json.NewDecoder(r.Body).Decode(&req) // reason is optional
	}

	userID := auth.UserID(r.Context())
	h.Logger.Info("API", fmt.Sprintf("CancelBooking: booking=%s user=%s", bookingID, userID))

	cancelled, err := h.Bookings.CancelBooking(r.Context(), bookingID, userID, req.Reason, r.Header.Get("Idempotency-Key"))
	if err != nil {
		h.writeEngineError(w, err)
		return
	}

	utils.WriteJSON(w, http.StatusOK, utils.SuccessResponse("booking cancelled", cancelled))
}

func (h *Handler) CompleteBooking(w http.ResponseWriter, r *http.Request) {
	bookingID := chi.URLParam(r, "bookingId")

	completed, err := h.Bookings.CompleteBooking(r.Context(), bookingID)
	if err != nil {
		h.writeEngineError(w, err)
		return
	}
	utils.WriteJSON(w, http.StatusOK, utils.SuccessResponse("booking completed", completed))
}

func (h *Handler) RefundBooking(w http.ResponseWriter, r *http.Request) {
	bookingID := chi.URLParam(r, "bookingId")

	refunded, err := h.Bookings.RefundCompleted(r.Context(), bookingID)
	if err != nil {
		h.writeEngineError(w, err)
		return
	}
	utils.WriteJSON(w, http.StatusOK, utils.SuccessResponse("booking refunded", refunded))
}

func (h *Handler) ListMyBookings(w http.ResponseWriter, r *http.Request) {
	userID := auth.UserID(r.Context())

	bookings, err := h.Bookings.GetBookingsByUser(r.Context(), userID)
	if err != nil {
		h.writeEngineError(w, err)
		return
	}
	utils.WriteJSON(w, http.StatusOK, utils.SuccessResponse("bookings", bookings))
}

// statusFor maps each engine failure to a stable HTTP status; the JSON
// body additionally carries the taxonomy code for the rendering layer.
func statusFor(err error) int {
	switch {
	case errors.Is(err, errs.ErrEventNotFound),
		errors.Is(err, errs.ErrBookingNotFound),
		errors.Is(err, errs.ErrCouponNotFound):
		return http.StatusNotFound
	case errors.Is(err, errs.ErrSoldOut),
		errors.Is(err, errs.ErrEventClosed),
		errors.Is(err, errs.ErrInvalidTransition):
		return http.StatusConflict
	case errors.Is(err, errs.ErrCouponExpired),
		errors.Is(err, errs.ErrCouponBelowMinimum),
		errors.Is(err, errs.ErrCouponNotApplicable),
		errors.Is(err, errs.ErrCouponGlobalLimitReached),
		errors.Is(err, errs.ErrCouponUserLimitReached):
		return http.StatusUnprocessableEntity
	case errors.Is(err, errs.ErrPaymentFailed):
		return http.StatusPaymentRequired
	default:
		return http.StatusInternalServerError
	}
}

func (h *Handler) writeEngineError(w http.ResponseWriter, err error) {
	status := statusFor(err)
	code := errs.CodeOf(err)
	if status == http.StatusInternalServerError {
		h.Logger.Error("API", fmt.Sprintf("internal error: %v", err))
		h.writeError(w, status, code, "internal error")
		return
	}
	h.writeError(w, status, code, err.Error())
}

func (h *Handler) writeError(w http.ResponseWriter, status int, code, message string) {
	utils.WriteJSON(w, status, utils.ErrorResponse(message, code))
}
