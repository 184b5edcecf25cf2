package repository

import (
	"context"
	"database/sql"
	"errors"
	"strings"

	"github.com/go-sql-driver/mysql"
)

// SeatRepo is the reservation engine's persistence layer.  The
// occupied-seats mapping of a show is the show_seats table, one row per
// held or confirmed seat, protected by UNIQUE KEY (show_id, seat_label).
// Claims are a single multi-row INSERT: either every row lands or the
// duplicate key aborts the whole statement, which makes the database the
// serialization point between concurrent server instances.  There is no
// read-then-write anywhere in this file.
type SeatRepo struct {
	db *sql.DB
}

// NewSeatRepo returns a SeatRepo bound to the provided database.
func NewSeatRepo(db *sql.DB) *SeatRepo { return &SeatRepo{db: db} }

// DB exposes the underlying sql.DB so callers can begin transactions
// spanning multiple repositories.
func (r *SeatRepo) DB() *sql.DB { return r.db }

const mysqlErrDupEntry = 1062

// ClaimTx atomically inserts every label of seatLabels into the show's
// occupied-seats mapping under holderID, within the caller's
// transaction.  If any label is already occupied the statement fails as
// a whole and ClaimTx returns a SeatsUnavailableError naming the
// conflicting labels; no partial claim survives.  Labels must be
// deduplicated by the caller.  An empty set is ErrNoSeats.
func (r *SeatRepo) ClaimTx(ctx context.Context, tx *sql.Tx, showID uint64, seatLabels []string, holderID string) error {
	if len(seatLabels) == 0 {
		return ErrNoSeats
	}
	query := `INSERT INTO show_seats (show_id, seat_label, holder_id) VALUES `
	args := make([]interface{}, 0, len(seatLabels)*3)
	for i, label := range seatLabels {
		if i > 0 {
			query += ","
		}
		query += "(?, ?, ?)"
		args = append(args, showID, label, holderID)
	}
	if _, err := tx.ExecContext(ctx, query, args...); err != nil {
		var me *mysql.MySQLError
		if errors.As(err, &me) && me.Number == mysqlErrDupEntry {
			// The failed statement left no rows behind; the transaction
			// is still usable for reporting which labels are taken.
			taken, qErr := occupiedAmong(ctx, tx, showID, seatLabels)
			if qErr != nil {
				return qErr
			}
			return &SeatsUnavailableError{Seats: taken}
		}
		return err
	}
	return nil
}

// Claim is the single-statement variant of ClaimTx for callers that do
// not need a surrounding transaction.  A lone multi-row INSERT is
// already atomic.
func (r *SeatRepo) Claim(ctx context.Context, showID uint64, seatLabels []string, holderID string) error {
	if len(seatLabels) == 0 {
		return ErrNoSeats
	}
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	if err := r.ClaimTx(ctx, tx, showID, seatLabels, holderID); err != nil {
		_ = tx.Rollback()
		return err
	}
	return tx.Commit()
}

// ReleaseTx removes each of seatLabels from the show's occupied-seats
// mapping within the caller's transaction.  Deleting an absent label is
// not an error, so the operation is idempotent and safe to retry.
func (r *SeatRepo) ReleaseTx(ctx context.Context, tx *sql.Tx, showID uint64, seatLabels []string) error {
	if len(seatLabels) == 0 {
		return nil
	}
	query := `DELETE FROM show_seats WHERE show_id = ? AND seat_label IN (` + placeholders(len(seatLabels)) + `)`
	args := make([]interface{}, 0, len(seatLabels)+1)
	args = append(args, showID)
	for _, label := range seatLabels {
		args = append(args, label)
	}
	_, err := tx.ExecContext(ctx, query, args...)
	return err
}

// Release frees the given seats outside of any caller transaction.
func (r *SeatRepo) Release(ctx context.Context, showID uint64, seatLabels []string) error {
	if len(seatLabels) == 0 {
		return nil
	}
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	if err := r.ReleaseTx(ctx, tx, showID, seatLabels); err != nil {
		_ = tx.Rollback()
		return err
	}
	return tx.Commit()
}

// Confirm finalizes previously claimed seats.  At the seat level this
// is deliberately a no-op: the rows stay mapped to the same holder, and
// the authoritative confirmation signal is the booking's is_paid flag.
// The method exists to complete the engine's contract surface.
func (r *SeatRepo) Confirm(ctx context.Context, showID uint64, seatLabels []string) error {
	return nil
}

// SeatMap returns the current occupied-seats snapshot for a show as a
// seat-label -> holder-id mapping.  A show with no occupancy yields an
// empty (non-nil) map; show existence is the caller's concern.
func (r *SeatRepo) SeatMap(ctx context.Context, showID uint64) (map[string]string, error) {
	const q = `SELECT seat_label, holder_id FROM show_seats WHERE show_id = ?`
	rows, err := r.db.QueryContext(ctx, q, showID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	occupied := make(map[string]string)
	for rows.Next() {
		var label, holder string
		if err := rows.Scan(&label, &holder); err != nil {
			return nil, err
		}
		occupied[label] = holder
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return occupied, nil
}

// occupiedAmong returns, in request order, the labels from seatLabels
// that currently appear in the show's occupied-seats mapping.
func occupiedAmong(ctx context.Context, tx *sql.Tx, showID uint64, seatLabels []string) ([]string, error) {
	query := `SELECT seat_label FROM show_seats WHERE show_id = ? AND seat_label IN (` + placeholders(len(seatLabels)) + `)`
	args := make([]interface{}, 0, len(seatLabels)+1)
	args = append(args, showID)
	for _, label := range seatLabels {
		args = append(args, label)
	}
	rows, err := tx.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	takenSet := make(map[string]struct{})
	for rows.Next() {
		var label string
		if err := rows.Scan(&label); err != nil {
			return nil, err
		}
		takenSet[label] = struct{}{}
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	taken := make([]string, 0, len(takenSet))
	for _, label := range seatLabels {
		if _, ok := takenSet[label]; ok {
			taken = append(taken, label)
		}
	}
	return taken, nil
}

// placeholders renders n comma-separated "?" marks for IN clauses.
func placeholders(n int) string {
	return strings.TrimSuffix(strings.Repeat("?,", n), ",")
}
