package booking

import (
	"context"
	"database/sql"
	"io"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/go-sql-driver/mysql"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cinebook/cinebook/internal/repository"
)

type stubScheduler struct {
	ids []string
	err error
}

func (s *stubScheduler) ScheduleRelease(ctx context.Context, bookingID string) error {
	s.ids = append(s.ids, bookingID)
	return s.err
}

func newTestLedger(t *testing.T) (*Ledger, sqlmock.Sqlmock, *stubScheduler) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	log := logrus.New()
	log.SetOutput(io.Discard)

	sched := &stubScheduler{}
	ledger := NewLedger(db,
		repository.NewShowRepo(db),
		repository.NewSeatRepo(db),
		repository.NewBookingRepo(db),
		sched, log)
	return ledger, mock, sched
}

func showRow(startAt time.Time, priceCents uint32) *sqlmock.Rows {
	return sqlmock.NewRows([]string{"id", "movie_id", "start_at", "price_cents", "created_at"}).
		AddRow(7, "mv-1", startAt, priceCents, time.Now().UTC())
}

func TestCreateBookingClaimsSeatsAndArmsRelease(t *testing.T) {
	ledger, mock, sched := newTestLedger(t)
	future := time.Now().UTC().Add(48 * time.Hour)

	mock.ExpectBegin()
	mock.ExpectQuery("FROM shows WHERE id").
		WithArgs(uint64(7)).
		WillReturnRows(showRow(future, 200))
	mock.ExpectExec("INSERT INTO show_seats").
		WithArgs(uint64(7), "A1", sqlmock.AnyArg(), uint64(7), "A2", sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(1, 2))
	mock.ExpectExec("INSERT INTO bookings").
		WithArgs(sqlmock.AnyArg(), "user-1", uint64(7), uint32(400), false).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec("INSERT INTO booking_seats").
		WithArgs(sqlmock.AnyArg(), "A1", 0, sqlmock.AnyArg(), "A2", 1).
		WillReturnResult(sqlmock.NewResult(0, 2))
	mock.ExpectQuery("SELECT created_at FROM bookings").
		WithArgs(sqlmock.AnyArg()).
		WillReturnRows(sqlmock.NewRows([]string{"created_at"}).AddRow(time.Now().UTC()))
	mock.ExpectCommit()

	b, err := ledger.CreateBooking(context.Background(), "user-1", 7, []string{"A1", "A2"})
	require.NoError(t, err)
	assert.Equal(t, uint32(400), b.AmountCents)
	assert.False(t, b.IsPaid)
	assert.Equal(t, []string{"A1", "A2"}, b.Seats)
	assert.NotEmpty(t, b.ID)

	require.Len(t, sched.ids, 1)
	assert.Equal(t, b.ID, sched.ids[0])
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestCreateBookingSeatConflictCreatesNothing(t *testing.T) {
	ledger, mock, sched := newTestLedger(t)
	future := time.Now().UTC().Add(48 * time.Hour)

	mock.ExpectBegin()
	mock.ExpectQuery("FROM shows WHERE id").
		WithArgs(uint64(7)).
		WillReturnRows(showRow(future, 200))
	mock.ExpectExec("INSERT INTO show_seats").
		WillReturnError(&mysql.MySQLError{Number: 1062, Message: "Duplicate entry"})
	mock.ExpectQuery("SELECT seat_label FROM show_seats").
		WithArgs(uint64(7), "A2", "A3").
		WillReturnRows(sqlmock.NewRows([]string{"seat_label"}).AddRow("A2"))
	mock.ExpectRollback()

	_, err := ledger.CreateBooking(context.Background(), "user-2", 7, []string{"A2", "A3"})
	su, ok := repository.AsSeatsUnavailable(err)
	require.True(t, ok, "expected SeatsUnavailableError, got %v", err)
	assert.Equal(t, []string{"A2"}, su.Seats)
	assert.Empty(t, sched.ids, "no release must be armed for a failed booking")
	// ExpectationsWereMet proves no booking insert was attempted.
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestCreateBookingRejectsPastShow(t *testing.T) {
	ledger, mock, sched := newTestLedger(t)
	past := time.Now().UTC().Add(-time.Hour)

	mock.ExpectBegin()
	mock.ExpectQuery("FROM shows WHERE id").
		WithArgs(uint64(7)).
		WillReturnRows(showRow(past, 200))
	mock.ExpectRollback()

	_, err := ledger.CreateBooking(context.Background(), "user-1", 7, []string{"A1"})
	assert.ErrorIs(t, err, repository.ErrShowStarted)
	assert.Empty(t, sched.ids)
}

func TestCreateBookingUnknownShow(t *testing.T) {
	ledger, mock, _ := newTestLedger(t)

	mock.ExpectBegin()
	mock.ExpectQuery("FROM shows WHERE id").
		WithArgs(uint64(99)).
		WillReturnError(sql.ErrNoRows)
	mock.ExpectRollback()

	_, err := ledger.CreateBooking(context.Background(), "user-1", 99, []string{"A1"})
	assert.ErrorIs(t, err, repository.ErrShowNotFound)
}

func TestCreateBookingDeduplicatesSeats(t *testing.T) {
	ledger, mock, _ := newTestLedger(t)
	future := time.Now().UTC().Add(48 * time.Hour)

	mock.ExpectBegin()
	mock.ExpectQuery("FROM shows WHERE id").
		WithArgs(uint64(7)).
		WillReturnRows(showRow(future, 200))
	mock.ExpectExec("INSERT INTO show_seats").
		WithArgs(uint64(7), "A1", sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectExec("INSERT INTO bookings").
		WithArgs(sqlmock.AnyArg(), "user-1", uint64(7), uint32(200), false).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec("INSERT INTO booking_seats").
		WithArgs(sqlmock.AnyArg(), "A1", 0).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectQuery("SELECT created_at FROM bookings").
		WithArgs(sqlmock.AnyArg()).
		WillReturnRows(sqlmock.NewRows([]string{"created_at"}).AddRow(time.Now().UTC()))
	mock.ExpectCommit()

	b, err := ledger.CreateBooking(context.Background(), "user-1", 7, []string{"A1", "A1", ""})
	require.NoError(t, err)
	assert.Equal(t, []string{"A1"}, b.Seats)
	assert.Equal(t, uint32(200), b.AmountCents)
}

func bookingRow(isPaid bool) *sqlmock.Rows {
	return sqlmock.NewRows([]string{"id", "user_id", "show_id", "amount_cents", "is_paid", "created_at"}).
		AddRow("bk-1", "user-1", 7, 400, isPaid, time.Now().UTC())
}

func TestExpireIfUnpaidReleasesSeatsThenDeletesBooking(t *testing.T) {
	ledger, mock, _ := newTestLedger(t)

	// sqlmock enforces expectation order, so this also proves the
	// seats are released before the booking rows are deleted.
	mock.ExpectBegin()
	mock.ExpectQuery("FROM bookings WHERE id = \\? FOR UPDATE").
		WithArgs("bk-1").
		WillReturnRows(bookingRow(false))
	mock.ExpectQuery("SELECT seat_label FROM booking_seats").
		WithArgs("bk-1").
		WillReturnRows(sqlmock.NewRows([]string{"seat_label"}).AddRow("A1").AddRow("A2"))
	mock.ExpectExec("DELETE FROM show_seats").
		WithArgs(uint64(7), "A1", "A2").
		WillReturnResult(sqlmock.NewResult(0, 2))
	mock.ExpectExec("DELETE FROM booking_seats").
		WithArgs("bk-1").
		WillReturnResult(sqlmock.NewResult(0, 2))
	mock.ExpectExec("DELETE FROM bookings").
		WithArgs("bk-1").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	require.NoError(t, ledger.ExpireIfUnpaid(context.Background(), "bk-1"))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestExpireIfUnpaidIsNoopWhenPaid(t *testing.T) {
	ledger, mock, _ := newTestLedger(t)

	mock.ExpectBegin()
	mock.ExpectQuery("FROM bookings WHERE id = \\? FOR UPDATE").
		WithArgs("bk-1").
		WillReturnRows(bookingRow(true))
	mock.ExpectRollback()

	require.NoError(t, ledger.ExpireIfUnpaid(context.Background(), "bk-1"))
	// No seat release and no delete were expected; verify nothing ran.
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestExpireIfUnpaidIsNoopWhenMissing(t *testing.T) {
	ledger, mock, _ := newTestLedger(t)

	mock.ExpectBegin()
	mock.ExpectQuery("FROM bookings WHERE id = \\? FOR UPDATE").
		WithArgs("gone").
		WillReturnError(sql.ErrNoRows)
	mock.ExpectRollback()

	require.NoError(t, ledger.ExpireIfUnpaid(context.Background(), "gone"))
}
