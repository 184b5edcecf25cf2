package repository

import (
	"context"
	"database/sql"
	"time"

	"github.com/cinebook/cinebook/internal/model"
)

// ShowSummary is the catalog projection of a show joined with its cached
// movie metadata.  It is returned directly from listing endpoints, so it
// carries JSON tags.
type ShowSummary struct {
	ID         uint64    `json:"id"`
	MovieID    string    `json:"movie_id"`
	MovieTitle string    `json:"movie_title"`
	Genres     string    `json:"genres"`
	PosterURL  string    `json:"poster_url"`
	StartAt    time.Time `json:"start_at"`
	PriceCents uint32    `json:"price_cents"`
}

// ShowRepo manages persistence for shows.  Shows are written only by the
// admin add-show flow; every other access is a read.
type ShowRepo struct {
	db *sql.DB
}

// NewShowRepo constructs a ShowRepo with the given DB handle.
func NewShowRepo(db *sql.DB) *ShowRepo { return &ShowRepo{db: db} }

// DB exposes the underlying sql.DB.  It allows callers to begin
// transactions spanning multiple repositories.
func (r *ShowRepo) DB() *sql.DB { return r.db }

// Create inserts a new show and assigns the generated ID back to the
// struct.  StartAt is stored in UTC.
func (r *ShowRepo) Create(ctx context.Context, s *model.Show) error {
	const q = `INSERT INTO shows (movie_id, start_at, price_cents) VALUES (?, ?, ?)`
	res, err := r.db.ExecContext(ctx, q, s.MovieID, s.StartAt.UTC().Format("2006-01-02 15:04:05"), s.PriceCents)
	if err != nil {
		return err
	}
	id, err := res.LastInsertId()
	if err != nil {
		return err
	}
	s.ID = uint64(id)
	return nil
}

// GetByID retrieves a show by its ID.  It returns ErrShowNotFound if
// there is no matching row.
func (r *ShowRepo) GetByID(ctx context.Context, id uint64) (*model.Show, error) {
	const q = `SELECT id, movie_id, start_at, price_cents, created_at FROM shows WHERE id = ?`
	var s model.Show
	err := r.db.QueryRowContext(ctx, q, id).Scan(&s.ID, &s.MovieID, &s.StartAt, &s.PriceCents, &s.CreatedAt)
	if err == sql.ErrNoRows {
		return nil, ErrShowNotFound
	}
	if err != nil {
		return nil, err
	}
	return &s, nil
}

// GetByIDTx is GetByID inside the caller's transaction, used by the
// booking flow so the show it validates is the one it books against.
func (r *ShowRepo) GetByIDTx(ctx context.Context, tx *sql.Tx, id uint64) (*model.Show, error) {
	const q = `SELECT id, movie_id, start_at, price_cents, created_at FROM shows WHERE id = ?`
	var s model.Show
	err := tx.QueryRowContext(ctx, q, id).Scan(&s.ID, &s.MovieID, &s.StartAt, &s.PriceCents, &s.CreatedAt)
	if err == sql.ErrNoRows {
		return nil, ErrShowNotFound
	}
	if err != nil {
		return nil, err
	}
	return &s, nil
}

// ListUpcoming returns every show starting at or after now, joined with
// movie metadata, ordered by ascending start time.  Deduplication to
// one show per movie happens in the handler where it can be unit
// tested.
func (r *ShowRepo) ListUpcoming(ctx context.Context) ([]ShowSummary, error) {
	const q = `SELECT s.id, s.movie_id, m.title, m.genres, m.poster_url, s.start_at, s.price_cents
	           FROM shows s
	           JOIN movies m ON m.id = s.movie_id
	           WHERE s.start_at >= UTC_TIMESTAMP()
	           ORDER BY s.start_at ASC`
	rows, err := r.db.QueryContext(ctx, q)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []ShowSummary
	for rows.Next() {
		var s ShowSummary
		if err := rows.Scan(&s.ID, &s.MovieID, &s.MovieTitle, &s.Genres, &s.PosterURL, &s.StartAt, &s.PriceCents); err != nil {
			return nil, err
		}
		out = append(out, s)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return out, nil
}

// ListUpcomingByMovie returns all upcoming shows for one movie ordered
// by ascending start time, for the date/time picker.
func (r *ShowRepo) ListUpcomingByMovie(ctx context.Context, movieID string) ([]model.Show, error) {
	const q = `SELECT id, movie_id, start_at, price_cents, created_at
	           FROM shows
	           WHERE movie_id = ? AND start_at >= UTC_TIMESTAMP()
	           ORDER BY start_at ASC`
	rows, err := r.db.QueryContext(ctx, q, movieID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []model.Show
	for rows.Next() {
		var s model.Show
		if err := rows.Scan(&s.ID, &s.MovieID, &s.StartAt, &s.PriceCents, &s.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, s)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return out, nil
}
