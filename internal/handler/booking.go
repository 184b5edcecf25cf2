package handler

import (
	"crypto/subtle"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/cinebook/cinebook/internal/booking"
	"github.com/cinebook/cinebook/internal/repository"
)

// BookingHandler serves the booking lifecycle: creation, the payment
// confirmation callback and the caller's booking list.  All mutation
// goes through the ledger; the handler only translates HTTP.
type BookingHandler struct {
	Ledger        *booking.Ledger
	BookingRepo   *repository.BookingRepo
	PaymentSecret string
}

// NewBookingHandler constructs a BookingHandler.
func NewBookingHandler(ledger *booking.Ledger, bookingRepo *repository.BookingRepo, paymentSecret string) *BookingHandler {
	if ledger == nil || bookingRepo == nil {
		panic("nil dependency passed to NewBookingHandler")
	}
	return &BookingHandler{Ledger: ledger, BookingRepo: bookingRepo, PaymentSecret: paymentSecret}
}

type createBookingRequest struct {
	ShowID uint64   `json:"show_id" validate:"required,gt=0"`
	Seats  []string `json:"seats" validate:"required,min=1,dive,required"`
}

// CreateBooking handles POST /api/booking/create.  A seat conflict
// answers 409 with the taken labels so the client can re-render
// availability and let the user pick again.
func (h *BookingHandler) CreateBooking(c echo.Context) error {
	userID, err := getUserID(c)
	if err != nil {
		return fail(c, http.StatusUnauthorized, "unauthorized")
	}
	var body createBookingRequest
	if err := c.Bind(&body); err != nil {
		return fail(c, http.StatusBadRequest, "invalid request body")
	}
	if err := c.Validate(&body); err != nil {
		return fail(c, http.StatusBadRequest, "show_id and seats are required")
	}
	b, err := h.Ledger.CreateBooking(c.Request().Context(), userID, body.ShowID, body.Seats)
	if err != nil {
		return bookingError(c, err)
	}
	return c.JSON(http.StatusCreated, echo.Map{
		"success": true,
		"booking": echo.Map{
			"id":           b.ID,
			"show_id":      b.ShowID,
			"seats":        b.Seats,
			"amount_cents": b.AmountCents,
			"is_paid":      b.IsPaid,
			"created_at":   b.CreatedAt,
		},
	})
}

// MarkPaid handles POST /api/booking/:id/paid, the payment provider's
// completion callback.  It is authenticated by a shared webhook secret
// rather than a user token; the provider is not a user.  Idempotent.
func (h *BookingHandler) MarkPaid(c echo.Context) error {
	secret := c.Request().Header.Get("X-Payment-Secret")
	if subtle.ConstantTimeCompare([]byte(secret), []byte(h.PaymentSecret)) != 1 {
		return fail(c, http.StatusUnauthorized, "invalid payment secret")
	}
	id := c.Param("id")
	if id == "" {
		return fail(c, http.StatusBadRequest, "invalid booking id")
	}
	if err := h.Ledger.MarkPaid(c.Request().Context(), id); err != nil {
		return bookingError(c, err)
	}
	return c.JSON(http.StatusOK, echo.Map{"success": true, "message": "booking marked paid"})
}

// UserBookings handles GET /api/user/bookings: the caller's bookings,
// newest first, expanded with show and movie for display.
func (h *BookingHandler) UserBookings(c echo.Context) error {
	userID, err := getUserID(c)
	if err != nil {
		return fail(c, http.StatusUnauthorized, "unauthorized")
	}
	bookings, err := h.BookingRepo.ListByUser(c.Request().Context(), userID)
	if err != nil {
		return fail(c, http.StatusServiceUnavailable, "service unavailable")
	}
	return c.JSON(http.StatusOK, echo.Map{"success": true, "bookings": bookings})
}
