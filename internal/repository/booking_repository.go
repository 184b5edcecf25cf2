package repository

import (
	"context"
	"database/sql"
	"time"

	"github.com/cinebook/cinebook/internal/model"
)

// BookingDetail is a booking expanded with its show and movie for
// display on the "my bookings" page.
type BookingDetail struct {
	ID          string    `json:"id"`
	ShowID      uint64    `json:"show_id"`
	Seats       []string  `json:"seats"`
	AmountCents uint32    `json:"amount_cents"`
	IsPaid      bool      `json:"is_paid"`
	CreatedAt   time.Time `json:"created_at"`
	ShowStartAt time.Time `json:"show_start_at"`
	MovieID     string    `json:"movie_id"`
	MovieTitle  string    `json:"movie_title"`
	PosterURL   string    `json:"poster_url"`
}

// BookingRepo provides data access to bookings and their seat lists.
// Bookings are created and deleted only inside transactions shared with
// the seat engine, so the mutating methods take a *sql.Tx.
type BookingRepo struct {
	db *sql.DB
}

// NewBookingRepo returns a BookingRepo bound to the provided database.
func NewBookingRepo(db *sql.DB) *BookingRepo { return &BookingRepo{db: db} }

// CreateTx persists a booking and its ordered seat labels within the
// caller's transaction.  The booking id must be set by the caller (a
// UUID) because the same value doubles as the seat holder id.
func (r *BookingRepo) CreateTx(ctx context.Context, tx *sql.Tx, b *model.Booking) error {
	const ins = `INSERT INTO bookings (id, user_id, show_id, amount_cents, is_paid) VALUES (?, ?, ?, ?, ?)`
	if _, err := tx.ExecContext(ctx, ins, b.ID, b.UserID, b.ShowID, b.AmountCents, b.IsPaid); err != nil {
		return err
	}
	if len(b.Seats) == 0 {
		return ErrNoSeats
	}
	query := `INSERT INTO booking_seats (booking_id, seat_label, position) VALUES `
	args := make([]interface{}, 0, len(b.Seats)*3)
	for i, label := range b.Seats {
		if i > 0 {
			query += ","
		}
		query += "(?, ?, ?)"
		args = append(args, b.ID, label, i)
	}
	if _, err := tx.ExecContext(ctx, query, args...); err != nil {
		return err
	}
	// Read back the DB-assigned creation timestamp so the caller sees
	// the same value the release deadline is computed from.
	const sel = `SELECT created_at FROM bookings WHERE id = ?`
	return tx.QueryRowContext(ctx, sel, b.ID).Scan(&b.CreatedAt)
}

// GetForUpdateTx loads a booking with a row lock so the expiry handler
// and the payment callback serialize on it.  Seats are not populated;
// use SeatsTx.  Returns ErrBookingNotFound when absent.
func (r *BookingRepo) GetForUpdateTx(ctx context.Context, tx *sql.Tx, id string) (*model.Booking, error) {
	const q = `SELECT id, user_id, show_id, amount_cents, is_paid, created_at FROM bookings WHERE id = ? FOR UPDATE`
	var b model.Booking
	err := tx.QueryRowContext(ctx, q, id).Scan(&b.ID, &b.UserID, &b.ShowID, &b.AmountCents, &b.IsPaid, &b.CreatedAt)
	if err == sql.ErrNoRows {
		return nil, ErrBookingNotFound
	}
	if err != nil {
		return nil, err
	}
	return &b, nil
}

// SeatsTx returns the booking's seat labels in their original claim
// order, inside the caller's transaction.
func (r *BookingRepo) SeatsTx(ctx context.Context, tx *sql.Tx, bookingID string) ([]string, error) {
	const q = `SELECT seat_label FROM booking_seats WHERE booking_id = ? ORDER BY position ASC`
	rows, err := tx.QueryContext(ctx, q, bookingID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var seats []string
	for rows.Next() {
		var label string
		if err := rows.Scan(&label); err != nil {
			return nil, err
		}
		seats = append(seats, label)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return seats, nil
}

// DeleteTx removes a booking and its seat rows within the caller's
// transaction.  Deleting an already-absent booking is not an error.
func (r *BookingRepo) DeleteTx(ctx context.Context, tx *sql.Tx, id string) error {
	if _, err := tx.ExecContext(ctx, `DELETE FROM booking_seats WHERE booking_id = ?`, id); err != nil {
		return err
	}
	_, err := tx.ExecContext(ctx, `DELETE FROM bookings WHERE id = ?`, id)
	return err
}

// MarkPaid sets is_paid on a booking.  The flag is sticky: marking an
// already-paid booking again is a no-op, not an error.  Returns
// ErrBookingNotFound when the booking does not exist.
func (r *BookingRepo) MarkPaid(ctx context.Context, id string) error {
	res, err := r.db.ExecContext(ctx, `UPDATE bookings SET is_paid = 1 WHERE id = ?`, id)
	if err != nil {
		return err
	}
	if n, err := res.RowsAffected(); err == nil && n > 0 {
		return nil
	}
	// Zero rows affected: either already paid or missing.
	var one int
	err = r.db.QueryRowContext(ctx, `SELECT 1 FROM bookings WHERE id = ?`, id).Scan(&one)
	if err == sql.ErrNoRows {
		return ErrBookingNotFound
	}
	return err
}

// ListByUser returns all bookings for a user, newest first, each joined
// with its show and movie.  Seat labels are fetched per booking; the
// page sizes involved make a second query per row acceptable.
func (r *BookingRepo) ListByUser(ctx context.Context, userID string) ([]BookingDetail, error) {
	const q = `SELECT b.id, b.show_id, b.amount_cents, b.is_paid, b.created_at,
	                  s.start_at, m.id, m.title, m.poster_url
	           FROM bookings b
	           JOIN shows s ON s.id = b.show_id
	           JOIN movies m ON m.id = s.movie_id
	           WHERE b.user_id = ?
	           ORDER BY b.created_at DESC, b.id DESC`
	rows, err := r.db.QueryContext(ctx, q, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	details := []BookingDetail{}
	for rows.Next() {
		var d BookingDetail
		if err := rows.Scan(&d.ID, &d.ShowID, &d.AmountCents, &d.IsPaid, &d.CreatedAt,
			&d.ShowStartAt, &d.MovieID, &d.MovieTitle, &d.PosterURL); err != nil {
			return nil, err
		}
		details = append(details, d)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	const seatQ = `SELECT seat_label FROM booking_seats WHERE booking_id = ? ORDER BY position ASC`
	for i := range details {
		seatRows, err := r.db.QueryContext(ctx, seatQ, details[i].ID)
		if err != nil {
			return nil, err
		}
		for seatRows.Next() {
			var label string
			if err := seatRows.Scan(&label); err != nil {
				seatRows.Close()
				return nil, err
			}
			details[i].Seats = append(details[i].Seats, label)
		}
		if err := seatRows.Close(); err != nil {
			return nil, err
		}
	}
	return details, nil
}
