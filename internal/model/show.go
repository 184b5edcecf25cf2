package model

import "time"

// Show represents a scheduled screening of a movie at a specific time
// and price.  The set of occupied seats for a show lives in its own
// table keyed by (show_id, seat_label); absence of a label there means
// the seat is free.  Shows are never deleted in normal operation —
// past shows simply drop out of the listings.
//
// Fields:
//
//	ID         – primary key identifier.
//	MovieID    – reference into the cached movie catalog.
//	StartAt    – when the screening begins (UTC).
//	PriceCents – price per seat in cents; always positive.
//	CreatedAt  – creation timestamp.
type Show struct {
	ID         uint64    // shows.id
	MovieID    string    // shows.movie_id
	StartAt    time.Time // shows.start_at
	PriceCents uint32    // shows.price_cents
	CreatedAt  time.Time // shows.created_at
}

// OccupiedSeat is one entry of a show's occupied-seats mapping: the
// seat label together with the booking currently holding or owning it.
// A row exists only while the owning booking is pending or paid.
type OccupiedSeat struct {
	ShowID    uint64 // show_seats.show_id
	SeatLabel string // show_seats.seat_label (e.g. "A1")
	HolderID  string // show_seats.holder_id (booking id)
}
