package models

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFirstGenre(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{in: "Action|Drama", want: "Action"},
		{in: " | Comedy |Drama", want: "Comedy"},
		{in: "", want: ""},
		{in: "||", want: ""},
		{in: "Sci-Fi", want: "Sci-Fi"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, FirstGenre(tt.in), "input %q", tt.in)
	}
}

func TestMovieIDAcceptsNumbersAndStrings(t *testing.T) {
	var recs []MovieRecord
	err := json.Unmarshal([]byte(`[{"movie_id": 12}, {"movie_id": "34"}, {"movie_id": null}, {"movie_id": ""}]`), &recs)
	require.NoError(t, err)
	require.Len(t, recs, 4)
	assert.Equal(t, MovieID(12), recs[0].MovieID)
	assert.Equal(t, MovieID(34), recs[1].MovieID)
	assert.Zero(t, recs[2].MovieID)
	assert.Zero(t, recs[3].MovieID)

	var bad MovieRecord
	assert.Error(t, json.Unmarshal([]byte(`{"movie_id": "abc"}`), &bad))
}

func TestDisplayTitle(t *testing.T) {
	assert.Equal(t, "Heat", MovieRecord{Title: "Heat", Movie: "old"}.DisplayTitle())
	assert.Equal(t, "old", MovieRecord{Movie: "old"}.DisplayTitle())
	assert.Equal(t, "ID 7", MovieRecord{MovieID: 7}.DisplayTitle())
	assert.Equal(t, "Untitled", MovieRecord{}.DisplayTitle())
}

func TestActionResultDecodesBareArray(t *testing.T) {
	var res ActionResult
	require.NoError(t, json.Unmarshal([]byte(`[{"movie_id": 1, "title": "Alien"}]`), &res))
	require.Len(t, res.Ratings, 1)
	assert.Equal(t, "Alien", res.Ratings[0].Title)
}

func TestActionResultFailure(t *testing.T) {
	var res ActionResult
	require.NoError(t, json.Unmarshal([]byte(`{"ok": false, "error": "No rating provided."}`), &res))
	assert.True(t, res.Failed())
	assert.Equal(t, "No rating provided.", res.FailureMessage("fallback"))

	var okRes ActionResult
	require.NoError(t, json.Unmarshal([]byte(`{"ok": true, "message": "Rating saved."}`), &okRes))
	assert.False(t, okRes.Failed())
}

func TestStatisticsAliases(t *testing.T) {
	var res ActionResult
	require.NoError(t, json.Unmarshal([]byte(`{"stats": {"total": 3, "avg": 3.5, "top_genres": [{"name": "Drama", "count": 2}]}}`), &res))

	stats := res.StatisticsOrEmpty()
	assert.Equal(t, 3, stats.TotalRatings)
	assert.InDelta(t, 3.5, stats.AverageRating, 1e-9)
	require.Len(t, stats.TopGenres, 1)
	assert.Equal(t, "Drama", stats.TopGenres[0].Label())
}

func TestFindRating(t *testing.T) {
	four := 4.0
	res := ActionResult{Ratings: []MovieRecord{{MovieID: 3}, {MovieID: 9, Rating: &four}}}

	got, ok := res.FindRating(9)
	assert.True(t, ok)
	assert.Equal(t, 4, got)

	_, ok = res.FindRating(3)
	assert.False(t, ok)
}
