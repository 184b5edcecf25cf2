package handler

import (
	"context"
	"errors"
	"net/http"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/sirupsen/logrus"

	"github.com/cinebook/cinebook/internal/metadata"
	"github.com/cinebook/cinebook/internal/model"
	"github.com/cinebook/cinebook/internal/queue"
	"github.com/cinebook/cinebook/internal/repository"
)

// showPublisher is the slice of the broker the show handler needs.
type showPublisher interface {
	PublishShowAdded(ctx context.Context, ev queue.ShowAddedEvent) error
}

// ShowHandler serves the public catalog and the admin show-management
// endpoints.  Public reads go straight to the repositories; the admin
// add-show flow additionally consults the metadata provider and emits a
// notification event.
type ShowHandler struct {
	MovieRepo *repository.MovieRepo
	ShowRepo  *repository.ShowRepo
	SeatRepo  *repository.SeatRepo
	Metadata  *metadata.Client
	Publisher showPublisher
	Log       *logrus.Logger
}

// NewShowHandler constructs a ShowHandler.  Publisher may be nil when
// the broker is not configured; the event is then skipped.
func NewShowHandler(movieRepo *repository.MovieRepo, showRepo *repository.ShowRepo, seatRepo *repository.SeatRepo, md *metadata.Client, pub showPublisher, log *logrus.Logger) *ShowHandler {
	if movieRepo == nil || showRepo == nil || seatRepo == nil || md == nil || log == nil {
		panic("nil dependency passed to NewShowHandler")
	}
	return &ShowHandler{MovieRepo: movieRepo, ShowRepo: showRepo, SeatRepo: seatRepo, Metadata: md, Publisher: pub, Log: log}
}

// NowPlayingSource handles GET /api/show/now-playing-source.  It proxies
// the metadata provider's currently running movies so the admin UI can
// offer them as candidates for scheduling.
func (h *ShowHandler) NowPlayingSource(c echo.Context) error {
	movies, err := h.Metadata.NowPlaying(c.Request().Context())
	if err != nil {
		if errors.Is(err, metadata.ErrUnavailable) {
			return fail(c, http.StatusServiceUnavailable, "metadata provider unavailable")
		}
		return fail(c, http.StatusBadGateway, "metadata provider error")
	}
	return c.JSON(http.StatusOK, echo.Map{"success": true, "movies": movies})
}

type addShowSlot struct {
	Date  string   `json:"date" validate:"required"`
	Times []string `json:"times" validate:"required,min=1,dive,required"`
}

type addShowRequest struct {
	MovieID    string        `json:"movie_id" validate:"required"`
	PriceCents uint32        `json:"price_cents" validate:"required,gt=0"`
	Shows      []addShowSlot `json:"shows" validate:"required,min=1,dive"`
}

// AddShow handles POST /api/show/add.  For every (date, time) pair it
// creates one show with an empty seat map.  On the first show for a
// movie, metadata is fetched from the provider and cached locally.
// A show.added event is published for the notification consumer; a
// publish failure is logged, not surfaced, since the shows themselves
// are already committed.
func (h *ShowHandler) AddShow(c echo.Context) error {
	var body addShowRequest
	if err := c.Bind(&body); err != nil {
		return fail(c, http.StatusBadRequest, "invalid request body")
	}
	if err := c.Validate(&body); err != nil {
		return fail(c, http.StatusBadRequest, "movie_id, price_cents and shows are required")
	}
	ctx := c.Request().Context()

	movie, err := h.MovieRepo.GetByID(ctx, body.MovieID)
	if errors.Is(err, repository.ErrMovieNotFound) {
		movie, err = h.cacheMovieFromProvider(ctx, body.MovieID)
		if errors.Is(err, metadata.ErrNotFound) {
			return fail(c, http.StatusNotFound, "movie not found")
		}
		if errors.Is(err, metadata.ErrUnavailable) {
			return fail(c, http.StatusServiceUnavailable, "metadata provider unavailable")
		}
	}
	if err != nil {
		return fail(c, http.StatusServiceUnavailable, "service unavailable")
	}

	// Parse every slot before creating anything so a malformed slot
	// rejects the whole request instead of half-applying it.
	var startTimes []time.Time
	for _, slot := range body.Shows {
		for _, t := range slot.Times {
			st, err := time.Parse("2006-01-02 15:04", slot.Date+" "+normalizeTime(t))
			if err != nil {
				return fail(c, http.StatusBadRequest, "invalid date or time: "+slot.Date+" "+t)
			}
			startTimes = append(startTimes, st.UTC())
		}
	}

	showIDs := make([]uint64, 0, len(startTimes))
	for _, st := range startTimes {
		show := &model.Show{MovieID: movie.ID, StartAt: st, PriceCents: body.PriceCents}
		if err := h.ShowRepo.Create(ctx, show); err != nil {
			return fail(c, http.StatusServiceUnavailable, "service unavailable")
		}
		showIDs = append(showIDs, show.ID)
	}

	if h.Publisher != nil {
		ev := queue.ShowAddedEvent{
			MovieID:      movie.ID,
			MovieTitle:   movie.Title,
			ShowIDs:      showIDs,
			FirstStartAt: startTimes[0].Format(time.RFC3339),
		}
		if err := h.Publisher.PublishShowAdded(ctx, ev); err != nil {
			h.Log.WithError(err).WithField("movie_id", movie.ID).Warn("failed to publish show.added event")
		}
	}
	return c.JSON(http.StatusCreated, echo.Map{"success": true, "message": "shows added"})
}

// ListShows handles GET /api/show/all: upcoming shows, one per movie,
// earliest first.
func (h *ShowHandler) ListShows(c echo.Context) error {
	shows, err := h.ShowRepo.ListUpcoming(c.Request().Context())
	if err != nil {
		return fail(c, http.StatusServiceUnavailable, "service unavailable")
	}
	return c.JSON(http.StatusOK, echo.Map{"success": true, "shows": firstShowPerMovie(shows)})
}

// ShowTimes handles GET /api/show/:movieId: upcoming showtimes for a
// movie grouped by calendar date.
func (h *ShowHandler) ShowTimes(c echo.Context) error {
	movieID := c.Param("movieId")
	ctx := c.Request().Context()
	movie, err := h.MovieRepo.GetByID(ctx, movieID)
	if errors.Is(err, repository.ErrMovieNotFound) {
		return fail(c, http.StatusNotFound, "movie not found")
	}
	if err != nil {
		return fail(c, http.StatusServiceUnavailable, "service unavailable")
	}
	shows, err := h.ShowRepo.ListUpcomingByMovie(ctx, movieID)
	if err != nil {
		return fail(c, http.StatusServiceUnavailable, "service unavailable")
	}
	return c.JSON(http.StatusOK, echo.Map{
		"success": true,
		"movie": echo.Map{
			"id":         movie.ID,
			"title":      movie.Title,
			"genres":     movie.Genres,
			"poster_url": movie.PosterURL,
		},
		"dateTime": groupShowTimes(shows),
	})
}

// SeatMap handles GET /api/show/seats/:showId: the current
// occupied-seats snapshot for the seat picker.
func (h *ShowHandler) SeatMap(c echo.Context) error {
	showID, err := strconv.ParseUint(c.Param("showId"), 10, 64)
	if err != nil || showID == 0 {
		return fail(c, http.StatusBadRequest, "invalid show id")
	}
	ctx := c.Request().Context()
	show, err := h.ShowRepo.GetByID(ctx, showID)
	if errors.Is(err, repository.ErrShowNotFound) {
		return fail(c, http.StatusNotFound, "show not found")
	}
	if err != nil {
		return fail(c, http.StatusServiceUnavailable, "service unavailable")
	}
	occupied, err := h.SeatRepo.SeatMap(ctx, showID)
	if err != nil {
		return fail(c, http.StatusServiceUnavailable, "service unavailable")
	}
	return c.JSON(http.StatusOK, echo.Map{
		"success":        true,
		"occupied_seats": occupied,
		"show": echo.Map{
			"id":          show.ID,
			"movie_id":    show.MovieID,
			"start_at":    show.StartAt,
			"price_cents": show.PriceCents,
		},
	})
}

func (h *ShowHandler) cacheMovieFromProvider(ctx context.Context, id string) (*model.Movie, error) {
	src, err := h.Metadata.Movie(ctx, id)
	if err != nil {
		return nil, err
	}
	m := &model.Movie{
		ID:        src.ID,
		Title:     src.Title,
		Genres:    strings.Join(src.Genres, ", "),
		PosterURL: src.PosterURL,
	}
	if err := h.MovieRepo.Upsert(ctx, m); err != nil {
		return nil, err
	}
	return m, nil
}

// firstShowPerMovie keeps the earliest show of each movie.  The input
// is already sorted by ascending start time, so the first occurrence
// wins and the overall ordering is preserved.
func firstShowPerMovie(shows []repository.ShowSummary) []repository.ShowSummary {
	out := make([]repository.ShowSummary, 0, len(shows))
	seen := make(map[string]struct{}, len(shows))
	for _, s := range shows {
		if _, ok := seen[s.MovieID]; ok {
			continue
		}
		seen[s.MovieID] = struct{}{}
		out = append(out, s)
	}
	return out
}

// showTime is one bookable slot on the date/time picker.
type showTime struct {
	Time   string `json:"time"`
	ShowID uint64 `json:"showId"`
}

// groupShowTimes buckets shows by calendar date.  Times are normalized
// to HH:MM 24-hour strings, so sorting them lexicographically is
// chronological order.
func groupShowTimes(shows []model.Show) map[string][]showTime {
	grouped := make(map[string][]showTime, len(shows))
	for _, s := range shows {
		st := s.StartAt.UTC()
		date := st.Format("2006-01-02")
		grouped[date] = append(grouped[date], showTime{Time: st.Format("15:04"), ShowID: s.ID})
	}
	for _, times := range grouped {
		sort.Slice(times, func(i, j int) bool { return times[i].Time < times[j].Time })
	}
	return grouped
}

// normalizeTime pads bare "H:MM" inputs to "HH:MM" so parsing and the
// lexicographic-equals-chronological property hold.
func normalizeTime(t string) string {
	t = strings.TrimSpace(t)
	if len(t) == 4 && t[1] == ':' {
		return "0" + t
	}
	return t
}
