package dispatch

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"movie-recommender-web/internal/backend"
	"movie-recommender-web/internal/localstore"
	"movie-recommender-web/internal/models"
)

type fakeDisplay struct {
	message string
	err     string
	movies  []models.MovieRecord
	source  string
	stats   *models.Statistics
}

func (d *fakeDisplay) ShowMessage(text string) { d.message = text }
func (d *fakeDisplay) ShowError(text string)   { d.err = text }
func (d *fakeDisplay) ShowMovies(records []models.MovieRecord, source string) {
	d.movies, d.source = records, source
}
func (d *fakeDisplay) ShowStatistics(stats models.Statistics) { d.stats = &stats }

type staticSession string

func (s staticSession) Username(context.Context) string { return string(s) }

// fakeBackend serves /api/button-click with handler and counts calls.
func fakeBackend(t *testing.T, handler http.HandlerFunc) (*backend.Client, *atomic.Int32) {
	t.Helper()
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/api/button-click" {
			calls.Add(1)
		}
		handler(w, r)
	}))
	t.Cleanup(srv.Close)
	return backend.NewClient(srv.URL, nil, 0), &calls
}

func reply(body string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		_, _ = io.WriteString(w, body)
	}
}

func TestLoggedOutMakesNoRequest(t *testing.T) {
	client, calls := fakeBackend(t, reply(`{"ratings": []}`))
	storage := localstore.NewSessionStorage()
	d := New(client, staticSession(""), storage)
	display := &fakeDisplay{}

	_, err := d.Dispatch(context.Background(), ViewRatings, nil, display)

	assert.ErrorIs(t, err, ErrNotLoggedIn)
	assert.Equal(t, "Please log in to use this action.", display.message)
	assert.Zero(t, calls.Load())
	// remembered even though the gate refused it
	assert.Equal(t, ViewRatings, d.LastAction())
}

func TestRoutesMovies(t *testing.T) {
	var body map[string]any
	client, _ := fakeBackend(t, func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		_, _ = io.WriteString(w, `{"source": "recs", "ratings": [{"movie_id": 1, "title": "Heat", "rating": 4.2}]}`)
	})
	d := New(client, staticSession("alice"), localstore.NewSessionStorage())
	display := &fakeDisplay{}

	res, err := d.Dispatch(context.Background(), GetRecs, map[string]any{"k": 5}, display)
	require.NoError(t, err)

	assert.Equal(t, GetRecs, body["button"])
	assert.EqualValues(t, 5, body["k"])
	require.Len(t, display.movies, 1)
	assert.Equal(t, SourceRecs, display.source)
	assert.NotNil(t, res)
}

func TestRoutesBareArray(t *testing.T) {
	client, _ := fakeBackend(t, reply(`[{"movie_id": 3, "title": "Ran"}]`))
	d := New(client, staticSession("alice"), localstore.NewSessionStorage())
	display := &fakeDisplay{}

	_, err := d.Dispatch(context.Background(), ViewRatings, nil, display)
	require.NoError(t, err)
	require.Len(t, display.movies, 1)
	assert.Empty(t, display.source)
}

func TestRoutesStatistics(t *testing.T) {
	client, _ := fakeBackend(t, reply(`{"stats": {"total": 3, "avg": 4, "top_genres": [{"name": "Drama", "count": 3}]}}`))
	d := New(client, staticSession("alice"), localstore.NewSessionStorage())
	display := &fakeDisplay{}

	_, err := d.Dispatch(context.Background(), ViewStatistics, nil, display)
	require.NoError(t, err)
	require.NotNil(t, display.stats)
	assert.Equal(t, 3, display.stats.TotalRatings)
	assert.Equal(t, "Drama", display.stats.TopGenres[0].Label())
}

func TestEmptyResultMessages(t *testing.T) {
	tests := []struct {
		name string
		body string
		want string
	}{
		{"server message", `{"ok": true, "message": "Rating removed."}`, "Rating removed."},
		{"nothing", `{"ratings": []}`, "No movies to display."},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			client, _ := fakeBackend(t, reply(tt.body))
			d := New(client, staticSession("alice"), localstore.NewSessionStorage())
			display := &fakeDisplay{}

			_, err := d.Dispatch(context.Background(), RemoveRating, map[string]any{"movie_id": 1}, display)
			require.NoError(t, err)
			assert.Equal(t, tt.want, display.message)
		})
	}
}

func TestFailures(t *testing.T) {
	tests := []struct {
		name    string
		handler http.HandlerFunc
		want    string
	}{
		{
			name:    "application error in 2xx body",
			handler: reply(`{"ok": false, "error": "Movie not found"}`),
			want:    "Movie not found",
		},
		{
			name: "non-2xx with message",
			handler: func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(http.StatusBadRequest)
				_, _ = io.WriteString(w, `{"message": "bad rating"}`)
			},
			want: "bad rating",
		},
		{
			name: "non-2xx without body",
			handler: func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(http.StatusInternalServerError)
			},
			want: "Request failed.",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			client, _ := fakeBackend(t, tt.handler)
			d := New(client, staticSession("alice"), localstore.NewSessionStorage())
			display := &fakeDisplay{}

			res, err := d.Dispatch(context.Background(), AddRating, map[string]any{"movie_id": 1, "rating": 9}, display)
			assert.Error(t, err)
			assert.Nil(t, res)
			assert.Equal(t, tt.want, display.err)
		})
	}
}

func TestTransportFailure(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	srv.Close()
	d := New(backend.NewClient(srv.URL, nil, 0), staticSession("alice"), localstore.NewSessionStorage())
	display := &fakeDisplay{}

	_, err := d.Dispatch(context.Background(), ViewRatings, nil, display)
	assert.ErrorIs(t, err, backend.ErrUnavailable)
	assert.Equal(t, "Error contacting backend.", display.err)
}

func TestUnknownAction(t *testing.T) {
	client, calls := fakeBackend(t, reply(`{}`))
	d := New(client, staticSession("alice"), localstore.NewSessionStorage())

	_, err := d.Dispatch(context.Background(), "drop_tables", nil, &fakeDisplay{})
	assert.ErrorIs(t, err, ErrUnknownAction)
	assert.Zero(t, calls.Load())
}

func TestLoginGateBeforeUnknownAction(t *testing.T) {
	client, calls := fakeBackend(t, reply(`{}`))
	d := New(client, staticSession(""), localstore.NewSessionStorage())
	display := &fakeDisplay{}

	_, err := d.Dispatch(context.Background(), "drop_tables", nil, display)
	assert.ErrorIs(t, err, ErrNotLoggedIn)
	assert.Equal(t, "Please log in to use this action.", display.message)
	assert.Empty(t, display.err)
	assert.Zero(t, calls.Load())
}

func TestRefreshRerunsViews(t *testing.T) {
	client, calls := fakeBackend(t, reply(`{"ratings": [{"movie_id": 1}]}`))
	d := New(client, staticSession("alice"), localstore.NewSessionStorage())
	ctx := context.Background()

	ran, err := d.Refresh(ctx, &fakeDisplay{})
	require.NoError(t, err)
	assert.False(t, ran)

	_, err = d.Dispatch(ctx, ViewRatings, nil, &fakeDisplay{})
	require.NoError(t, err)
	display := &fakeDisplay{}
	ran, err = d.Refresh(ctx, display)
	require.NoError(t, err)
	assert.True(t, ran)
	assert.Len(t, display.movies, 1)
	assert.EqualValues(t, 2, calls.Load())

	// a mutation is never replayed
	_, err = d.Dispatch(ctx, AddRating, map[string]any{"movie_id": 1, "rating": 3}, &fakeDisplay{})
	require.NoError(t, err)
	ran, err = d.Refresh(ctx, &fakeDisplay{})
	require.NoError(t, err)
	assert.False(t, ran)
}

func TestFailureMessage(t *testing.T) {
	assert.Equal(t, "Please log in to use this action.", FailureMessage(ErrNotLoggedIn))
	assert.Equal(t, "Error contacting backend.", FailureMessage(fmt.Errorf("%w: dial", backend.ErrUnavailable)))
	assert.Equal(t, "Request failed.", FailureMessage(&backend.APIError{StatusCode: 502, Message: "Bad Gateway"}))
}

func TestKnownAndMutates(t *testing.T) {
	assert.True(t, Known("view_top_rated"))
	assert.True(t, Known(Search))
	assert.False(t, Known("login_button"))
	assert.True(t, Mutates(AddRating))
	assert.False(t, Mutates(ViewRatings))
}
