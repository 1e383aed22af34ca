package workspace

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"movie-recommender-web/internal/backend/backendtest"
	"movie-recommender-web/internal/config"
	"movie-recommender-web/internal/events"
	"movie-recommender-web/internal/localstore"
	"movie-recommender-web/internal/models"
	"movie-recommender-web/internal/pages"
)

func testOptions(url string) Options {
	return Options{
		BackendURL:     url,
		BackendTimeout: 5 * time.Second,
		UI: config.UIConfig{
			SearchDebounce:   time.Millisecond,
			RecommendationsK: 100,
			RecsPageSize:     30,
			CatalogPageSize:  20,
			AutocompleteSize: 8,
			SearchPageSize:   100,
		},
		Lists: localstore.NewLists(localstore.NewMemory()),
	}
}

func newWorkspace(t *testing.T, srv *backendtest.Server, id string) *Workspace {
	t.Helper()
	w, err := New(id, testOptions(srv.URL))
	require.NoError(t, err)
	t.Cleanup(w.Close)
	return w
}

func TestWorkspacesKeepSeparateSessions(t *testing.T) {
	srv := backendtest.New(t)
	ctx := context.Background()
	a := newWorkspace(t, srv, "a")
	b := newWorkspace(t, srv, "b")

	require.NoError(t, a.Session.Login(ctx, "alice"))
	require.NoError(t, b.Session.Login(ctx, "bob"))

	assert.Equal(t, "alice", a.Session.Username(ctx))
	assert.Equal(t, "bob", b.Session.Username(ctx))
}

func TestLogoutDropsRecommendations(t *testing.T) {
	srv := backendtest.New(t)
	score := 0.9
	srv.SetRecommendations([]models.MovieRecord{{MovieID: 1, Title: "Heat", Score: &score}})
	ctx := context.Background()
	w := newWorkspace(t, srv, "a")

	require.NoError(t, w.Session.Login(ctx, "alice"))
	items, err := w.Recs.Get(ctx)
	require.NoError(t, err)
	require.Len(t, items, 1)

	w.SetRateReturn("/browse")
	require.NoError(t, w.Session.Logout(ctx))

	_, cached := w.Recs.GetCached()
	assert.False(t, cached)
	assert.Equal(t, pages.HomePath, w.RateReturn())
}

func TestLoginSwitchesBrowseToRecommendations(t *testing.T) {
	srv := backendtest.New(t)
	ctx := context.Background()
	w := newWorkspace(t, srv, "a")

	_, err := w.Browse.Show(ctx, nil)
	require.NoError(t, err)
	assert.Equal(t, pages.ModeCatalog, w.Browse.Mode())

	require.NoError(t, w.Session.Login(ctx, "alice"))
	assert.Equal(t, pages.ModeRecs, w.Browse.Mode())
}

func TestCloseDetachesControllers(t *testing.T) {
	srv := backendtest.New(t)
	w, err := New("a", testOptions(srv.URL))
	require.NoError(t, err)
	require.Positive(t, w.Bus.RatingChanged.Len())

	w.Close()
	assert.Zero(t, w.Bus.RatingChanged.Len())
	assert.Zero(t, w.Bus.UserLoggedIn.Len())
	assert.Zero(t, w.Bus.UserLoggedOut.Len())
	assert.Zero(t, w.Bus.ListChanged.Len())
	w.Bus.RatingChanged.Publish(events.RatingChanged{MovieID: 1})
}

func TestLoginStatus(t *testing.T) {
	srv := backendtest.New(t)
	w := newWorkspace(t, srv, "a")

	w.SetLoginStatus("Enter a username.", true)
	msg, failed := w.LoginStatus()
	assert.Equal(t, "Enter a username.", msg)
	assert.True(t, failed)

	w.SetLoginStatus("Logged in", false)
	msg, failed = w.LoginStatus()
	assert.Equal(t, "Logged in", msg)
	assert.False(t, failed)
}

func TestManagerAcquireAndSweep(t *testing.T) {
	srv := backendtest.New(t)
	created := 0
	m := NewManager(time.Minute, func(id string) (*Workspace, error) {
		created++
		return New(id, testOptions(srv.URL))
	})
	t.Cleanup(m.Close)

	a, err := m.Acquire("a")
	require.NoError(t, err)
	again, err := m.Acquire("a")
	require.NoError(t, err)
	assert.Same(t, a, again)
	assert.Equal(t, 1, created)

	_, ok := m.Get("missing")
	assert.False(t, ok)

	_, err = m.Acquire("b")
	require.NoError(t, err)
	assert.Equal(t, 2, m.Len())

	assert.Zero(t, m.Sweep(time.Now()))
	assert.Equal(t, 2, m.Sweep(time.Now().Add(2*time.Minute)))
	assert.Zero(t, m.Len())
	assert.Zero(t, a.Bus.RatingChanged.Len())
}
