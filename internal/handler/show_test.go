package handler

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/cinebook/cinebook/internal/model"
	"github.com/cinebook/cinebook/internal/repository"
)

func TestFirstShowPerMovieKeepsEarliest(t *testing.T) {
	// Input arrives sorted by start time ascending.
	in := []repository.ShowSummary{
		{ID: 1, MovieID: "mv-1"},
		{ID: 2, MovieID: "mv-2"},
		{ID: 3, MovieID: "mv-1"},
		{ID: 4, MovieID: "mv-3"},
		{ID: 5, MovieID: "mv-2"},
	}
	out := firstShowPerMovie(in)
	ids := make([]uint64, 0, len(out))
	for _, s := range out {
		ids = append(ids, s.ID)
	}
	assert.Equal(t, []uint64{1, 2, 4}, ids)
}

func TestGroupShowTimesBucketsByDate(t *testing.T) {
	at := func(s string) time.Time {
		ts, err := time.Parse(time.RFC3339, s)
		if err != nil {
			t.Fatalf("bad timestamp %q: %v", s, err)
		}
		return ts
	}
	shows := []model.Show{
		{ID: 10, StartAt: at("2026-09-01T21:30:00Z")},
		{ID: 11, StartAt: at("2026-09-01T18:00:00Z")},
		{ID: 12, StartAt: at("2026-09-02T18:00:00Z")},
	}
	grouped := groupShowTimes(shows)
	assert.Len(t, grouped, 2)
	assert.Equal(t, []showTime{
		{Time: "18:00", ShowID: 11},
		{Time: "21:30", ShowID: 10},
	}, grouped["2026-09-01"])
	assert.Equal(t, []showTime{{Time: "18:00", ShowID: 12}}, grouped["2026-09-02"])
}

func TestNormalizeTimePadsHour(t *testing.T) {
	assert.Equal(t, "09:30", normalizeTime("9:30"))
	assert.Equal(t, "18:00", normalizeTime("18:00"))
	assert.Equal(t, "09:30", normalizeTime("  9:30 "))
}
