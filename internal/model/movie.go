package model

import "time"

// Movie is the locally cached record of a movie fetched from the
// external metadata provider.  The ID is the provider's identifier, so
// catalog entries and shows can always be traced back to their source.
// Only the fields needed for catalog display are stored; the provider
// remains the authority for everything else.
//
// Fields:
//
//	ID        – metadata-provider identifier (string, e.g. "tt4154796").
//	Title     – display title.
//	Genres    – comma-separated genre names.
//	PosterURL – poster image URL for the catalog page.
//	CreatedAt – when the movie was first cached locally.
type Movie struct {
	ID        string    // movies.id
	Title     string    // movies.title
	Genres    string    // movies.genres
	PosterURL string    // movies.poster_url
	CreatedAt time.Time // movies.created_at
}
