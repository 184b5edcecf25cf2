// Package repository contains the data access layer.  This file defines
// error values shared across repositories so that handlers and services
// can distinguish failure scenarios: missing rows, seat conflicts and
// invalid engine input each map to a different HTTP response.
package repository

import (
	"errors"
	"fmt"
	"strings"
)

// ErrMovieNotFound indicates that a movie id is not present in the
// local metadata cache.  Handlers translate this into HTTP 404.
var ErrMovieNotFound = errors.New("movie not found")

// ErrShowNotFound indicates that a show was not located in the DB.
var ErrShowNotFound = errors.New("show not found")

// ErrBookingNotFound indicates that a booking id does not exist.
var ErrBookingNotFound = errors.New("booking not found")

// ErrShowStarted is returned when a booking is attempted on a show
// whose start time has already passed.  The seat engine itself does
// not enforce this; the booking flow does.
var ErrShowStarted = errors.New("show already started")

// ErrNoSeats is returned when a claim or booking names zero seats.
// Handlers translate this into HTTP 400.
var ErrNoSeats = errors.New("no seats requested")

// SeatsUnavailableError reports a seat claim that conflicted with
// existing occupancy.  Seats lists every requested label that was
// already taken so the client can re-render availability; nothing was
// claimed.
type SeatsUnavailableError struct {
	Seats []string
}

func (e *SeatsUnavailableError) Error() string {
	return fmt.Sprintf("seats unavailable: %s", strings.Join(e.Seats, ", "))
}

// AsSeatsUnavailable unwraps err into a SeatsUnavailableError when it
// is one, mirroring errors.As with a concrete return type.
func AsSeatsUnavailable(err error) (*SeatsUnavailableError, bool) {
	var su *SeatsUnavailableError
	if errors.As(err, &su) {
		return su, true
	}
	return nil, false
}
