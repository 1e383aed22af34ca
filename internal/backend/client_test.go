package backend

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/cookiejar"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"movie-recommender-web/internal/models"
)

func newTestClient(t *testing.T, h http.Handler) *Client {
	t.Helper()
	srv := httptest.NewServer(h)
	t.Cleanup(srv.Close)
	jar, err := cookiejar.New(nil)
	require.NoError(t, err)
	return NewClient(srv.URL, jar, 0)
}

func TestSessionCookieRoundTrip(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("POST /login", func(w http.ResponseWriter, r *http.Request) {
		var body map[string]string
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		http.SetCookie(w, &http.Cookie{Name: "session", Value: body["username"], Path: "/"})
		_, _ = io.WriteString(w, `{"message": "logged in"}`)
	})
	mux.HandleFunc("GET /session", func(w http.ResponseWriter, r *http.Request) {
		username := ""
		if c, err := r.Cookie("session"); err == nil {
			username = c.Value
		}
		_ = json.NewEncoder(w).Encode(map[string]any{"username": username})
	})
	c := newTestClient(t, mux)
	ctx := context.Background()

	s, err := c.Session(ctx)
	require.NoError(t, err)
	assert.False(t, s.LoggedIn())

	require.NoError(t, c.Login(ctx, "alice"))

	s, err = c.Session(ctx)
	require.NoError(t, err)
	assert.Equal(t, "alice", s.Username)
}

func TestLoginErrorMessage(t *testing.T) {
	tests := []struct {
		name   string
		status int
		body   string
		want   string
	}{
		{name: "error field", status: 400, body: `{"error": "username required"}`, want: "username required"},
		{name: "message field", status: 500, body: `{"message": "db down"}`, want: "db down"},
		{name: "plain text", status: 502, body: `bad gateway`, want: "Bad Gateway"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
				_, _ = io.WriteString(w, tt.body)
			}))

			err := c.Login(context.Background(), "bob")

			var apiErr *APIError
			require.ErrorAs(t, err, &apiErr)
			assert.Equal(t, tt.status, apiErr.StatusCode)
			assert.Equal(t, tt.want, apiErr.Message)
			assert.True(t, IsStatus(err, tt.status))
		})
	}
}

func TestButtonClickSendsButtonAndPayload(t *testing.T) {
	var got map[string]any
	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, buttonClickPath, r.URL.Path)
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		_, _ = io.WriteString(w, `{"ok": true, "message": "Rating saved.", "ratings": [{"movie_id": "5", "rating": 4}]}`)
	}))

	res, err := c.ButtonClick(context.Background(), "add_rating_submit", map[string]any{"movie_id": 5, "rating": 4})
	require.NoError(t, err)

	assert.Equal(t, "add_rating_submit", got["button"])
	assert.EqualValues(t, 5, got["movie_id"])
	assert.Equal(t, "Rating saved.", res.Message)
	require.Len(t, res.Ratings, 1)
	assert.Equal(t, models.MovieID(5), res.Ratings[0].MovieID)
}

func TestContentRecommendationsErrorField(t *testing.T) {
	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "100", r.URL.Query().Get("k"))
		_, _ = io.WriteString(w, `{"items": [], "error": "no profile"}`)
	}))

	_, err := c.ContentRecommendations(context.Background(), 100)
	var apiErr *APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, "no profile", apiErr.Message)
}

func TestListMoviesQuery(t *testing.T) {
	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/movies", r.URL.Path)
		q := r.URL.Query()
		assert.Equal(t, "Action", q.Get("genre"))
		assert.Equal(t, "title", q.Get("sort"))
		assert.Equal(t, "asc", q.Get("dir"))
		assert.Equal(t, "2", q.Get("page"))
		assert.Equal(t, "20", q.Get("page_size"))
		_, _ = io.WriteString(w, `{"items": [{"movie_id": 1, "title": "Heat"}], "page": 2, "total": 41, "has_prev": true, "has_next": true}`)
	}))

	page, err := c.ListMovies(context.Background(), CatalogQuery{Genre: "Action", Sort: "title", Dir: "asc", Page: 2, PageSize: 20})
	require.NoError(t, err)
	assert.Equal(t, 2, page.Page)
	assert.Equal(t, 41, page.Total)
	assert.True(t, page.HasPrev)
	require.Len(t, page.Items, 1)
}

func TestUnreachableBackend(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	srv.Close()
	c := NewClient(srv.URL, nil, 0)

	_, err := c.Session(context.Background())
	assert.True(t, errors.Is(err, ErrUnavailable))
}

func TestMovieFillsMissingID(t *testing.T) {
	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/movies/42", r.URL.Path)
		_, _ = io.WriteString(w, `{"title": "Solaris", "poster_url": "http://img/42.jpg"}`)
	}))

	m, err := c.Movie(context.Background(), 42)
	require.NoError(t, err)
	assert.Equal(t, models.MovieID(42), m.MovieID)
	assert.Equal(t, "http://img/42.jpg", m.PosterURL)
}

func TestUserStatsNormalizes(t *testing.T) {
	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = io.WriteString(w, `{"total": 2, "avg": 4.5, "top_genres": [{"genre": "Drama", "count": 2}]}`)
	}))

	s, err := c.UserStats(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2, s.TotalRatings)
	assert.InDelta(t, 4.5, s.AverageRating, 1e-9)
}
