// Package booking implements the booking ledger: the lifecycle of a
// booking from provisional seat hold through payment or timed-out
// release.  All multi-step mutations run inside a single database
// transaction so a booking and its seat claims can never diverge.
package booking

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/cinebook/cinebook/internal/model"
	"github.com/cinebook/cinebook/internal/repository"
)

// ReleaseScheduler arms the deferred release check for a booking: it
// arranges for ExpireIfUnpaid(bookingID) to run once, at-least-once,
// after the hold window elapses, surviving process restarts.
type ReleaseScheduler interface {
	ScheduleRelease(ctx context.Context, bookingID string) error
}

// Ledger coordinates the show catalog, seat engine and booking store.
type Ledger struct {
	db        *sql.DB
	shows     *repository.ShowRepo
	seats     *repository.SeatRepo
	bookings  *repository.BookingRepo
	scheduler ReleaseScheduler
	log       *logrus.Logger
}

// NewLedger constructs a Ledger.  All dependencies must be non-nil
// except scheduler, which may be nil in tests.
func NewLedger(db *sql.DB, shows *repository.ShowRepo, seats *repository.SeatRepo, bookings *repository.BookingRepo, scheduler ReleaseScheduler, log *logrus.Logger) *Ledger {
	if db == nil || shows == nil || seats == nil || bookings == nil || log == nil {
		panic("nil dependency passed to NewLedger")
	}
	return &Ledger{db: db, shows: shows, seats: seats, bookings: bookings, scheduler: scheduler, log: log}
}

// CreateBooking claims the requested seats and persists a pending
// booking as one unit of work.  The claim and the booking insert share
// a transaction: if the insert fails the claim rolls back with it, so
// seats are never stranded.  Seat conflicts surface as
// *repository.SeatsUnavailableError without creating anything.  On
// success the deferred release check is armed; a scheduling failure is
// logged but does not fail the booking, because a stuck hold is an
// availability problem while a rolled-back paid booking would be a
// correctness one.
func (l *Ledger) CreateBooking(ctx context.Context, userID string, showID uint64, seatLabels []string) (*model.Booking, error) {
	seats := dedupe(seatLabels)
	if len(seats) == 0 {
		return nil, repository.ErrNoSeats
	}
	tx, err := l.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, err
	}
	committed := false
	defer func() {
		if !committed {
			_ = tx.Rollback()
		}
	}()
	show, err := l.shows.GetByIDTx(ctx, tx, showID)
	if err != nil {
		return nil, err
	}
	// The engine does not check show times; the booking flow does.
	if !show.StartAt.After(time.Now().UTC()) {
		return nil, repository.ErrShowStarted
	}
	b := &model.Booking{
		ID:          uuid.NewString(),
		UserID:      userID,
		ShowID:      showID,
		Seats:       seats,
		AmountCents: show.PriceCents * uint32(len(seats)),
		IsPaid:      false,
	}
	if err := l.seats.ClaimTx(ctx, tx, showID, seats, b.ID); err != nil {
		return nil, err
	}
	if err := l.bookings.CreateTx(ctx, tx, b); err != nil {
		return nil, err
	}
	if err := tx.Commit(); err != nil {
		return nil, err
	}
	committed = true

	if l.scheduler != nil {
		if err := l.scheduler.ScheduleRelease(ctx, b.ID); err != nil {
			l.log.WithError(err).WithField("booking_id", b.ID).
				Warn("failed to arm deferred release; seats stay held until payment")
		}
	}
	return b, nil
}

// MarkPaid records the external payment confirmation for a booking.
// The flag is sticky and the call is idempotent.
func (l *Ledger) MarkPaid(ctx context.Context, bookingID string) error {
	return l.bookings.MarkPaid(ctx, bookingID)
}

// ExpireIfUnpaid is the deferred release handler.  A missing booking or
// a paid booking is a no-op; otherwise the seats are released and then
// the booking is deleted, in that order, inside one transaction.  The
// whole sequence is idempotent, which makes at-least-once redelivery by
// the scheduler safe.  is_paid is re-read under a row lock immediately
// before acting, so a payment that lands first always wins.
func (l *Ledger) ExpireIfUnpaid(ctx context.Context, bookingID string) error {
	tx, err := l.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	committed := false
	defer func() {
		if !committed {
			_ = tx.Rollback()
		}
	}()
	b, err := l.bookings.GetForUpdateTx(ctx, tx, bookingID)
	if errors.Is(err, repository.ErrBookingNotFound) {
		return nil // already expired or never existed
	}
	if err != nil {
		return err
	}
	if b.IsPaid {
		return nil
	}
	seats, err := l.bookings.SeatsTx(ctx, tx, bookingID)
	if err != nil {
		return err
	}
	if err := l.seats.ReleaseTx(ctx, tx, b.ShowID, seats); err != nil {
		return err
	}
	if err := l.bookings.DeleteTx(ctx, tx, bookingID); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return err
	}
	committed = true
	l.log.WithFields(logrus.Fields{
		"booking_id": bookingID,
		"show_id":    b.ShowID,
		"seats":      seats,
	}).Info("released unpaid booking")
	return nil
}

// dedupe removes duplicate and empty labels while preserving the order
// of first occurrence.
func dedupe(labels []string) []string {
	out := make([]string, 0, len(labels))
	seen := make(map[string]struct{}, len(labels))
	for _, label := range labels {
		if label == "" {
			continue
		}
		if _, ok := seen[label]; ok {
			continue
		}
		seen[label] = struct{}{}
		out = append(out, label)
	}
	return out
}
