package repository

import (
	"context"
	"database/sql"

	"github.com/cinebook/cinebook/internal/model"
)

// MovieRepo manages the local cache of movie metadata.  Rows are written
// once, when an admin first schedules a show for a movie, and re-read on
// every catalog request afterwards.
type MovieRepo struct {
	db *sql.DB
}

// NewMovieRepo constructs a MovieRepo with the given DB handle.
func NewMovieRepo(db *sql.DB) *MovieRepo { return &MovieRepo{db: db} }

// GetByID retrieves a cached movie by its provider id.  It returns
// ErrMovieNotFound when the movie has never been cached.
func (r *MovieRepo) GetByID(ctx context.Context, id string) (*model.Movie, error) {
	const q = `SELECT id, title, genres, poster_url, created_at FROM movies WHERE id = ?`
	var m model.Movie
	err := r.db.QueryRowContext(ctx, q, id).Scan(&m.ID, &m.Title, &m.Genres, &m.PosterURL, &m.CreatedAt)
	if err == sql.ErrNoRows {
		return nil, ErrMovieNotFound
	}
	if err != nil {
		return nil, err
	}
	return &m, nil
}

// Upsert stores a movie record, refreshing title, genres and poster when
// the provider id is already cached.  Re-adding a show for a known movie
// therefore picks up updated metadata instead of failing.
func (r *MovieRepo) Upsert(ctx context.Context, m *model.Movie) error {
	const q = `INSERT INTO movies (id, title, genres, poster_url) VALUES (?, ?, ?, ?)
	           ON DUPLICATE KEY UPDATE title = VALUES(title), genres = VALUES(genres), poster_url = VALUES(poster_url)`
	_, err := r.db.ExecContext(ctx, q, m.ID, m.Title, m.Genres, m.PosterURL)
	return err
}
