package models

import (
	"bytes"
	"encoding/json"
)

// Session is the client's transient view of the server-side session.
type Session struct {
	Username string `json:"username"`
}

// LoggedIn reports whether the session carries a user.
func (s Session) LoggedIn() bool {
	return s.Username != ""
}

// Rating is a user rating submission.
type Rating struct {
	MovieID MovieID `json:"movie_id"`
	Rating  int     `json:"rating"`
}

const (
	MinRating = 1
	MaxRating = 5
)

// Valid reports whether the rating value is within 1..5.
func (r Rating) Valid() bool {
	return r.MovieID != 0 && r.Rating >= MinRating && r.Rating <= MaxRating
}

// GenreCount is one entry of the top genres statistic.
type GenreCount struct {
	Genre string `json:"genre"`
	Name  string `json:"name,omitempty"`
	Count int    `json:"count"`
}

// Label returns the genre name, whichever key the backend used.
func (g GenreCount) Label() string {
	if g.Genre != "" {
		return g.Genre
	}
	return g.Name
}

// Statistics aggregates a user's ratings.
type Statistics struct {
	TotalRatings  int          `json:"total_ratings"`
	Total         int          `json:"total,omitempty"`
	AverageRating float64      `json:"average_rating"`
	Avg           float64      `json:"avg,omitempty"`
	TopGenres     []GenreCount `json:"top_genres"`
}

// Normalized folds the short aliases into the canonical fields.
func (s Statistics) Normalized() Statistics {
	if s.TotalRatings == 0 {
		s.TotalRatings = s.Total
	}
	if s.AverageRating == 0 {
		s.AverageRating = s.Avg
	}
	s.Total, s.Avg = 0, 0
	return s
}

// ActionResult is the response of POST /api/button-click. Its shape depends
// on the action; the backend may also answer with a bare array of records.
type ActionResult struct {
	Ratings    []MovieRecord `json:"ratings,omitempty"`
	Message    string        `json:"message,omitempty"`
	Error      string        `json:"error,omitempty"`
	OK         *bool         `json:"ok,omitempty"`
	Source     string        `json:"source,omitempty"`
	Query      string        `json:"query,omitempty"`
	Username   string        `json:"username,omitempty"`
	Statistics *Statistics   `json:"statistics,omitempty"`
	Stats      *Statistics   `json:"stats,omitempty"`
}

type actionResultAlias ActionResult

func (r *ActionResult) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) > 0 && data[0] == '[' {
		var records []MovieRecord
		if err := json.Unmarshal(data, &records); err != nil {
			return err
		}
		*r = ActionResult{Ratings: records}
		return nil
	}
	var alias actionResultAlias
	if err := json.Unmarshal(data, &alias); err != nil {
		return err
	}
	*r = ActionResult(alias)
	return nil
}

// Failed reports an application error carried in a successful response.
func (r ActionResult) Failed() bool {
	return r.Error != "" || (r.OK != nil && !*r.OK)
}

// FailureMessage returns the message to show for a failed action.
func (r ActionResult) FailureMessage(fallback string) string {
	if r.Error != "" {
		return r.Error
	}
	return fallback
}

// StatisticsOrEmpty returns whichever statistics key was populated.
func (r ActionResult) StatisticsOrEmpty() Statistics {
	switch {
	case r.Statistics != nil:
		return r.Statistics.Normalized()
	case r.Stats != nil:
		return r.Stats.Normalized()
	default:
		return Statistics{}
	}
}

// FindRating returns the user's rating for a movie in a ratings list.
func (r ActionResult) FindRating(id MovieID) (int, bool) {
	for _, rec := range r.Ratings {
		if rec.MovieID == id && rec.Rating != nil {
			return int(*rec.Rating + 0.5), true
		}
	}
	return 0, false
}
