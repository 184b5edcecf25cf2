package handler // handler defines http handlers

import (
	"errors"
	"net/http"

	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"

	"github.com/cinebook/cinebook/internal/repository"
)

// getUserID extracts the identity-provider subject from echo.Context.
// JWTAuth stores it as a string; anything else means the middleware
// did not run.
func getUserID(c echo.Context) (string, error) {
	if s, ok := c.Get("user_id").(string); ok && s != "" {
		return s, nil
	}
	return "", errors.New("missing user_id in context")
}

// Validator adapts go-playground/validator to Echo's Validator
// interface so handlers can rely on struct tags after Bind.
type Validator struct {
	validate *validator.Validate
}

// NewValidator returns a Validator for e.Validator.
func NewValidator() *Validator {
	return &Validator{validate: validator.New()}
}

// Validate implements echo.Validator.
func (v *Validator) Validate(i interface{}) error {
	if err := v.validate.Struct(i); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	return nil
}

// fail writes the standard failure envelope.
func fail(c echo.Context, status int, msg string) error {
	return c.JSON(status, echo.Map{"success": false, "message": msg})
}

// bookingError maps ledger and repository errors onto the API's error
// taxonomy: validation 400, not-found 404, seat conflict 409 (with the
// conflicting labels), everything else 503 as a downstream failure.
func bookingError(c echo.Context, err error) error {
	switch {
	case errors.Is(err, repository.ErrNoSeats):
		return fail(c, http.StatusBadRequest, "no seats requested")
	case errors.Is(err, repository.ErrShowStarted):
		return fail(c, http.StatusBadRequest, "show already started")
	case errors.Is(err, repository.ErrShowNotFound):
		return fail(c, http.StatusNotFound, "show not found")
	case errors.Is(err, repository.ErrBookingNotFound):
		return fail(c, http.StatusNotFound, "booking not found")
	}
	if su, ok := repository.AsSeatsUnavailable(err); ok {
		return c.JSON(http.StatusConflict, echo.Map{
			"success": false,
			"message": su.Error(),
			"seats":   su.Seats,
		})
	}
	return fail(c, http.StatusServiceUnavailable, "service unavailable")
}
