package models

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
)

// MovieID is a movie identifier as sent by the backend. The backend echoes
// ids back in whatever form it received them, so both 42 and "42" decode.
type MovieID int

func (id *MovieID) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if bytes.Equal(data, []byte("null")) {
		*id = 0
		return nil
	}
	if len(data) > 0 && data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		s = strings.TrimSpace(s)
		if s == "" {
			*id = 0
			return nil
		}
		n, err := strconv.Atoi(s)
		if err != nil {
			return fmt.Errorf("movie id %q is not numeric", s)
		}
		*id = MovieID(n)
		return nil
	}
	var f float64
	if err := json.Unmarshal(data, &f); err != nil {
		return err
	}
	*id = MovieID(int(f))
	return nil
}

func (id MovieID) String() string {
	return strconv.Itoa(int(id))
}

// MovieRecord is an immutable snapshot of a movie returned by the backend.
// Rating is present when the record comes from the user's ratings or a
// recommendation projection, Score when it comes from the content recommender
// and AvgRating when it comes from the catalog.
type MovieRecord struct {
	MovieID   MovieID  `json:"movie_id"`
	Title     string   `json:"title,omitempty"`
	Movie     string   `json:"movie,omitempty"`
	Year      int      `json:"year,omitempty"`
	Genres    string   `json:"genres,omitempty"`
	PosterURL string   `json:"poster_url,omitempty"`
	Rating    *float64 `json:"rating,omitempty"`
	Score     *float64 `json:"score,omitempty"`
	AvgRating *float64 `json:"avg_rating,omitempty"`
	Timestamp *int64   `json:"timestamp,omitempty"`
}

// DisplayTitle resolves the title the same way every view does.
func (m MovieRecord) DisplayTitle() string {
	switch {
	case m.Title != "":
		return m.Title
	case m.Movie != "":
		return m.Movie
	case m.MovieID != 0:
		return "ID " + m.MovieID.String()
	default:
		return "Untitled"
	}
}

// FirstGenre returns the first non-empty segment of a pipe-delimited genre list.
func FirstGenre(genres string) string {
	for _, g := range strings.Split(genres, "|") {
		if g = strings.TrimSpace(g); g != "" {
			return g
		}
	}
	return ""
}

// CatalogPage is one page of the /api/movies listing.
type CatalogPage struct {
	Items   []MovieRecord `json:"items"`
	Page    int           `json:"page"`
	Total   int           `json:"total"`
	HasPrev bool          `json:"has_prev"`
	HasNext bool          `json:"has_next"`
}

// RecommendationsResponse wraps the content recommender output.
type RecommendationsResponse struct {
	Items []MovieRecord `json:"items"`
	Error string        `json:"error,omitempty"`
}

// SearchResponse is the /api/movies/search payload.
type SearchResponse struct {
	Results []MovieRecord `json:"results"`
}

// GenresResponse is the /api/genres payload.
type GenresResponse struct {
	Genres []string `json:"genres"`
}
