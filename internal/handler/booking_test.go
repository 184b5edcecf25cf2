package handler

import (
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/go-sql-driver/mysql"
	"github.com/labstack/echo/v4"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cinebook/cinebook/internal/booking"
	"github.com/cinebook/cinebook/internal/repository"
)

const testPaymentSecret = "webhook-secret"

func newBookingHandler(t *testing.T) (*BookingHandler, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	log := logrus.New()
	log.SetOutput(io.Discard)

	bookingRepo := repository.NewBookingRepo(db)
	ledger := booking.NewLedger(db,
		repository.NewShowRepo(db),
		repository.NewSeatRepo(db),
		bookingRepo, nil, log)
	return NewBookingHandler(ledger, bookingRepo, testPaymentSecret), mock
}

func doRequest(t *testing.T, h echo.HandlerFunc, req *http.Request, setup func(echo.Context)) *httptest.ResponseRecorder {
	t.Helper()
	e := echo.New()
	e.Validator = NewValidator()
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)
	if setup != nil {
		setup(c)
	}
	require.NoError(t, h(c))
	return rec
}

func TestCreateBookingRequiresAuth(t *testing.T) {
	h, _ := newBookingHandler(t)
	req := httptest.NewRequest(http.MethodPost, "/api/booking/create",
		strings.NewReader(`{"show_id":7,"seats":["A1"]}`))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)

	rec := doRequest(t, h.CreateBooking, req, nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestCreateBookingRejectsEmptySeats(t *testing.T) {
	h, _ := newBookingHandler(t)
	req := httptest.NewRequest(http.MethodPost, "/api/booking/create",
		strings.NewReader(`{"show_id":7,"seats":[]}`))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)

	rec := doRequest(t, h.CreateBooking, req, func(c echo.Context) {
		c.Set("user_id", "user-1")
	})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestCreateBookingSeatConflictAnswers409WithSeats(t *testing.T) {
	h, mock := newBookingHandler(t)
	future := time.Now().UTC().Add(24 * time.Hour)

	mock.ExpectBegin()
	mock.ExpectQuery("FROM shows WHERE id").
		WithArgs(uint64(7)).
		WillReturnRows(sqlmock.NewRows([]string{"id", "movie_id", "start_at", "price_cents", "created_at"}).
			AddRow(7, "mv-1", future, 200, time.Now().UTC()))
	mock.ExpectExec("INSERT INTO show_seats").
		WillReturnError(&mysql.MySQLError{Number: 1062, Message: "Duplicate entry"})
	mock.ExpectQuery("SELECT seat_label FROM show_seats").
		WithArgs(uint64(7), "A1", "A2").
		WillReturnRows(sqlmock.NewRows([]string{"seat_label"}).AddRow("A2"))
	mock.ExpectRollback()

	req := httptest.NewRequest(http.MethodPost, "/api/booking/create",
		strings.NewReader(`{"show_id":7,"seats":["A1","A2"]}`))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)

	rec := doRequest(t, h.CreateBooking, req, func(c echo.Context) {
		c.Set("user_id", "user-1")
	})
	require.Equal(t, http.StatusConflict, rec.Code)

	var body struct {
		Success bool     `json:"success"`
		Seats   []string `json:"seats"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.False(t, body.Success)
	assert.Equal(t, []string{"A2"}, body.Seats)
	require.NoError(t, mock.ExpectationsWereMet())
}

func markPaidRequest(secret, id string) (*http.Request, func(echo.Context)) {
	req := httptest.NewRequest(http.MethodPost, "/api/booking/"+id+"/paid", nil)
	if secret != "" {
		req.Header.Set("X-Payment-Secret", secret)
	}
	return req, func(c echo.Context) {
		c.SetParamNames("id")
		c.SetParamValues(id)
	}
}

func TestMarkPaidRejectsWrongSecret(t *testing.T) {
	h, mock := newBookingHandler(t)
	req, setup := markPaidRequest("wrong", "bk-1")

	rec := doRequest(t, h.MarkPaid, req, setup)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	require.NoError(t, mock.ExpectationsWereMet(), "invalid secret must not touch the database")
}

func TestMarkPaidUpdatesBooking(t *testing.T) {
	h, mock := newBookingHandler(t)
	mock.ExpectExec("UPDATE bookings SET is_paid").
		WithArgs("bk-1").
		WillReturnResult(sqlmock.NewResult(0, 1))

	req, setup := markPaidRequest(testPaymentSecret, "bk-1")
	rec := doRequest(t, h.MarkPaid, req, setup)
	assert.Equal(t, http.StatusOK, rec.Code)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestMarkPaidUnknownBookingAnswers404(t *testing.T) {
	h, mock := newBookingHandler(t)
	mock.ExpectExec("UPDATE bookings SET is_paid").
		WithArgs("gone").
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectQuery("SELECT 1 FROM bookings").
		WithArgs("gone").
		WillReturnRows(sqlmock.NewRows([]string{"1"}))

	req, setup := markPaidRequest(testPaymentSecret, "gone")
	rec := doRequest(t, h.MarkPaid, req, setup)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestUserBookingsListsCallerBookings(t *testing.T) {
	h, mock := newBookingHandler(t)
	created := time.Now().UTC().Add(-time.Hour)
	startAt := time.Now().UTC().Add(24 * time.Hour)

	mock.ExpectQuery("FROM bookings b").
		WithArgs("user-1").
		WillReturnRows(sqlmock.NewRows([]string{
			"id", "show_id", "amount_cents", "is_paid", "created_at",
			"start_at", "id", "title", "poster_url",
		}).AddRow("bk-1", 7, 400, true, created, startAt, "mv-1", "Arrival", "https://img/1.jpg"))
	mock.ExpectQuery("SELECT seat_label FROM booking_seats").
		WithArgs("bk-1").
		WillReturnRows(sqlmock.NewRows([]string{"seat_label"}).AddRow("A1").AddRow("A2"))

	req := httptest.NewRequest(http.MethodGet, "/api/user/bookings", nil)
	rec := doRequest(t, h.UserBookings, req, func(c echo.Context) {
		c.Set("user_id", "user-1")
	})
	require.Equal(t, http.StatusOK, rec.Code)

	var body struct {
		Success  bool                        `json:"success"`
		Bookings []repository.BookingDetail `json:"bookings"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	require.Len(t, body.Bookings, 1)
	assert.Equal(t, "Arrival", body.Bookings[0].MovieTitle)
	assert.Equal(t, []string{"A1", "A2"}, body.Bookings[0].Seats)
}
