package model

import "time"

// Booking records a user's purchase attempt for one or more seats on a
// single show.  A booking with IsPaid=false is a provisional hold: its
// seats are claimed in the show's occupied-seats table but the purchase
// has not been confirmed.  If payment does not arrive before the hold
// window elapses, the booking is deleted and its seats released.
//
// Fields:
//
//	ID          – UUID primary key; also the holder id in show_seats.
//	UserID      – identity-provider subject of the purchasing user.
//	ShowID      – show being booked.
//	Seats       – seat labels claimed by this booking, in request order.
//	AmountCents – show price × number of seats, fixed at creation.
//	IsPaid      – sticky payment flag; set once by the payment callback.
//	CreatedAt   – creation timestamp; the release deadline is derived
//	              from it.
type Booking struct {
	ID          string    // bookings.id
	UserID      string    // bookings.user_id
	ShowID      uint64    // bookings.show_id
	Seats       []string  // booking_seats.seat_label ordered by position
	AmountCents uint32    // bookings.amount_cents
	IsPaid      bool      // bookings.is_paid
	CreatedAt   time.Time // bookings.created_at
}
