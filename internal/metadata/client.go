// Package metadata is the client for the external movie-metadata
// provider.  The provider is consulted when an admin browses candidate
// movies and once per movie when its first show is added; afterwards
// the local movies table serves catalog reads.
package metadata

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"time"
)

// ErrNotFound is returned when the provider has no movie for the id.
var ErrNotFound = errors.New("movie not found at metadata provider")

// ErrUnavailable is returned when the provider cannot be reached or
// answers with a server error.  Callers may retry with backoff.
var ErrUnavailable = errors.New("metadata provider unavailable")

// Movie is the provider's projection of a movie, reduced to the fields
// the booking application needs.
type Movie struct {
	ID        string   `json:"id"`
	Title     string   `json:"title"`
	Genres    []string `json:"genres"`
	PosterURL string   `json:"poster_url"`
}

// Client talks to the metadata provider over HTTP with an API key.
type Client struct {
	baseURL string
	apiKey  string
	http    *http.Client
}

// NewClient constructs a Client.  The timeout bounds every request so
// a slow provider surfaces as ErrUnavailable instead of a hang.
func NewClient(baseURL, apiKey string) *Client {
	return &Client{
		baseURL: baseURL,
		apiKey:  apiKey,
		http:    &http.Client{Timeout: 10 * time.Second},
	}
}

// NowPlaying lists the provider's currently running movies, the
// candidate set for the admin add-show form.
func (c *Client) NowPlaying(ctx context.Context) ([]Movie, error) {
	var out struct {
		Results []Movie `json:"results"`
	}
	if err := c.get(ctx, "/movies/now-playing", &out); err != nil {
		return nil, err
	}
	return out.Results, nil
}

// Movie fetches a single movie by provider id.
func (c *Client) Movie(ctx context.Context, id string) (*Movie, error) {
	var m Movie
	if err := c.get(ctx, "/movies/"+url.PathEscape(id), &m); err != nil {
		return nil, err
	}
	return &m, nil
}

func (c *Client) get(ctx context.Context, path string, dst interface{}) error {
	u := c.baseURL + path
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return err
	}
	q := req.URL.Query()
	q.Set("api_key", c.apiKey)
	req.URL.RawQuery = q.Encode()

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	defer func() { _ = resp.Body.Close() }()

	switch {
	case resp.StatusCode == http.StatusNotFound:
		return ErrNotFound
	case resp.StatusCode >= 500:
		return fmt.Errorf("%w: status %d", ErrUnavailable, resp.StatusCode)
	case resp.StatusCode != http.StatusOK:
		return fmt.Errorf("metadata provider returned status %d", resp.StatusCode)
	}
	if err := json.NewDecoder(resp.Body).Decode(dst); err != nil {
		return fmt.Errorf("decode metadata response: %w", err)
	}
	return nil
}
