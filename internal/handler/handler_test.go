package handler

import (
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/gofiber/fiber/v3"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"movie-recommender-web/internal/backend/backendtest"
	"movie-recommender-web/internal/config"
	"movie-recommender-web/internal/localstore"
	"movie-recommender-web/internal/middleware"
	"movie-recommender-web/internal/models"
	"movie-recommender-web/internal/workspace"
)

var catalog = []models.MovieRecord{
	{MovieID: 1, Title: "Heat", Year: 1995, Genres: "Action|Crime"},
	{MovieID: 2, Title: "Ran", Year: 1985, Genres: "Drama|War"},
	{MovieID: 3, Title: "Alien", Year: 1979, Genres: "Horror|Sci-Fi"},
}

type client struct {
	t   *testing.T
	app *fiber.App
	srv *backendtest.Server
	sid string
}

func newClient(t *testing.T) *client {
	t.Helper()
	srv := backendtest.New(t, catalog...)
	lists := localstore.NewLists(localstore.NewMemory())
	m := workspace.NewManager(time.Minute, func(id string) (*workspace.Workspace, error) {
		return workspace.New(id, workspace.Options{
			BackendURL:     srv.URL,
			BackendTimeout: 5 * time.Second,
			UI: config.UIConfig{
				SearchDebounce:   time.Millisecond,
				RecommendationsK: 100,
				RecsPageSize:     30,
				CatalogPageSize:  2,
				AutocompleteSize: 8,
				SearchPageSize:   100,
			},
			Lists: lists,
		})
	})
	t.Cleanup(m.Close)

	app := fiber.New()
	app.Use(middleware.Session(m, false, time.Minute))
	Register(app)
	return &client{t: t, app: app, srv: srv, sid: uuid.NewString()}
}

func (c *client) do(method, target string, form url.Values) *http.Response {
	c.t.Helper()
	var body io.Reader
	if form != nil {
		body = strings.NewReader(form.Encode())
	}
	req := httptest.NewRequest(method, target, body)
	if form != nil {
		req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	}
	req.AddCookie(&http.Cookie{Name: middleware.SessionCookie, Value: c.sid})
	resp, err := c.app.Test(req)
	require.NoError(c.t, err)
	return resp
}

func (c *client) get(target string) *http.Response { return c.do(http.MethodGet, target, nil) }

func (c *client) post(target string, form url.Values) *http.Response {
	if form == nil {
		form = url.Values{}
	}
	return c.do(http.MethodPost, target, form)
}

func (c *client) page(target string) *goquery.Document {
	c.t.Helper()
	resp := c.get(target)
	require.Equal(c.t, http.StatusOK, resp.StatusCode, target)
	d, err := goquery.NewDocumentFromReader(resp.Body)
	require.NoError(c.t, err)
	return d
}

func (c *client) login(name string) {
	c.t.Helper()
	resp := c.post("/login", url.Values{"username": {name}})
	require.Equal(c.t, http.StatusSeeOther, resp.StatusCode)
}

func redirect(t *testing.T, resp *http.Response, status int, location string) {
	t.Helper()
	assert.Equal(t, status, resp.StatusCode)
	assert.Equal(t, location, resp.Header.Get("Location"))
}

func TestHealth(t *testing.T) {
	c := newClient(t)
	resp := c.get("/health")
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	body, _ := io.ReadAll(resp.Body)
	assert.JSONEq(t, `{"status":"ok","service":"movie-recommender-web"}`, string(body))
}

func TestMetricsAndStylesheet(t *testing.T) {
	c := newClient(t)
	assert.Equal(t, http.StatusOK, c.get("/metrics").StatusCode)

	resp := c.get("/static/style.css")
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, resp.Header.Get("Content-Type"), "text/css")
}

func TestLoginFlow(t *testing.T) {
	c := newClient(t)

	d := c.page("/")
	assert.Equal(t, 1, d.Find("#login_button").Length())

	resp := c.post("/login", url.Values{"username": {"  "}})
	redirect(t, resp, http.StatusSeeOther, "/")
	d = c.page("/")
	assert.Equal(t, "Enter a username.", d.Find("#login_status").Text())
	assert.True(t, d.Find("#login_status").HasClass("error"))

	c.login("alice")
	d = c.page("/")
	assert.Equal(t, "alice", d.Find("#nav_username").Text())
	assert.Equal(t, "Logged in", d.Find("#login_status").Text())
	assert.True(t, d.Find("body").HasClass("logged-in"))

	redirect(t, c.post("/logout", nil), http.StatusSeeOther, "/")
	d = c.page("/")
	assert.Equal(t, 1, d.Find("#login_button").Length())
}

func TestActionPostRedirectGet(t *testing.T) {
	c := newClient(t)

	redirect(t, c.post("/action/view_ratings_button", nil), http.StatusSeeOther, "/")
	assert.Equal(t, "Please log in to use this action.", c.page("/").Find("#action-output").Text())

	c.login("alice")
	redirect(t, c.post("/action/add_rating_submit", url.Values{"movie_id": {"2"}, "rating": {"4"}}), http.StatusSeeOther, "/")
	assert.Equal(t, "Rating saved.", c.page("/").Find("#action-output").Text())
	assert.Equal(t, 4, c.srv.Rating("alice", 2))

	c.post("/action/view_ratings_button", nil)
	d := c.page("/")
	assert.Equal(t, "Ran", d.Find("#action-output .movie-tile-title").Text())
	assert.Equal(t, "★ 4/5", d.Find("#action-output .movie-tile-rating").Text())
}

func TestBrowseCatalogWhenLoggedOut(t *testing.T) {
	c := newClient(t)

	d := c.page("/browse")
	assert.Equal(t, 2, d.Find(".movie-tile").Length())
	assert.Equal(t, "Total: 3", d.Find("#browseMeta").Text())

	redirect(t, c.get("/browse/page?n=2"), http.StatusSeeOther, "/browse?page=2")
	d = c.page("/browse?page=2")
	assert.Equal(t, "Alien", d.Find(".movie-tile-title").Text())

	redirect(t, c.get("/browse/back"), http.StatusFound, "/browse")
}

func TestBrowseNormalizesGenreURL(t *testing.T) {
	c := newClient(t)
	redirect(t, c.get("/browse?genre=Drama&sort=title&dir=asc&page=1"), http.StatusFound, "/browse?genre=Drama")

	d := c.page("/browse?genre=Drama")
	assert.Equal(t, "Ran", d.Find(".movie-tile-title").Text())
	assert.Equal(t, "Drama", d.Find("#genreSelect option[selected]").AttrOr("value", ""))
}

func TestBrowseFilters(t *testing.T) {
	c := newClient(t)
	resp := c.post("/browse/filters", url.Values{"genre": {"Action"}, "sort": {"year"}, "dir": {"desc"}})
	redirect(t, resp, http.StatusSeeOther, "/browse?dir=desc&genre=Action&sort=year")

	redirect(t, c.post("/browse/reset", nil), http.StatusFound, "/browse")
}

func TestBrowseRecommendationsWhenLoggedIn(t *testing.T) {
	c := newClient(t)
	score := 0.8
	c.srv.SetRecommendations([]models.MovieRecord{{MovieID: 3, Title: "Alien", Score: &score}})
	c.login("alice")

	d := c.page("/browse")
	assert.Equal(t, "Total recommendations: 1", d.Find("#browseMeta").Text())
	assert.Equal(t, "Alien", d.Find(".movie-tile-title").Text())
}

func TestProfileRequiresLogin(t *testing.T) {
	c := newClient(t)
	redirect(t, c.get("/profile"), http.StatusFound, "/?login=required")
	assert.Equal(t, "Please log in first.", c.page("/?login=required").Find("#login_status").Text())
}

func TestRatingModalFlow(t *testing.T) {
	c := newClient(t)
	c.login("alice")

	resp := c.get("/rate?movie_id=1&title=Heat&return=%2Fbrowse")
	redirect(t, resp, http.StatusSeeOther, "/browse")

	d := c.page("/")
	assert.Equal(t, "Heat", d.Find("#rating-modal-title").Text())
	assert.Equal(t, 0, d.Find("#rating-modal-remove").Length())

	redirect(t, c.post("/rate", url.Values{"rating": {"5"}}), http.StatusSeeOther, "/browse")
	assert.Equal(t, 5, c.srv.Rating("alice", 1))
	assert.Equal(t, 0, c.page("/").Find("#rating-modal").Length())

	c.get("/rate?movie_id=1&title=Heat")
	d = c.page("/")
	assert.Equal(t, "5", d.Find(`#rating-modal input[checked]`).AttrOr("value", ""))

	c.post("/rate/remove", nil)
	assert.Equal(t, 1, c.page("/").Find("#rating-modal .confirm-dialog").Length())
	c.post("/rate/remove", url.Values{"confirm": {"yes"}})
	assert.Zero(t, c.srv.Rating("alice", 1))
}

func TestRatingRequiresLogin(t *testing.T) {
	c := newClient(t)
	redirect(t, c.get("/rate?movie_id=1&return=%2Fsearch%3Fq%3Dheat"), http.StatusSeeOther, "/search?q=heat")
	d := c.page("/")
	assert.Equal(t, "Please log in to rate movies.", d.Find("#login_status").Text())
	assert.Equal(t, 0, d.Find("#rating-modal").Length())
}

func TestRatingReturnStaysLocal(t *testing.T) {
	c := newClient(t)
	c.login("alice")
	redirect(t, c.get("/rate?movie_id=1&return=https%3A%2F%2Fevil.example"), http.StatusSeeOther, "/")
}

func TestWatchlistRoundTrip(t *testing.T) {
	c := newClient(t)
	c.login("alice")

	c.get("/rate?movie_id=3&title=Alien&return=%2Fprofile%3Ftab%3Dwatchlist")
	redirect(t, c.post("/rate/watchlist", nil), http.StatusSeeOther, "/profile?tab=watchlist")
	redirect(t, c.post("/rate/close", nil), http.StatusSeeOther, "/profile?tab=watchlist")

	d := c.page("/profile?tab=watchlist")
	assert.Equal(t, "1", d.Find("#stat-watchlist").Text())
	assert.Equal(t, "Alien", d.Find("#watchlist-content .movie-tile-title").Text())

	d = c.page("/profile?tab=watchlist")
	require.Equal(t, 1, d.Find("#watchlist-content .movie-tile").Length())

	resp := c.post("/lists/watchlist/remove", url.Values{"movie_id": {"3"}, "title": {"Alien"}})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	d, err := goquery.NewDocumentFromReader(resp.Body)
	require.NoError(t, err)
	assert.Equal(t, `Remove "Alien" from watchlist?`, d.Find(".confirm-prompt").Text())

	resp = c.post("/lists/watchlist/remove", url.Values{"movie_id": {"3"}, "title": {"Alien"}, "confirm": {"yes"}})
	redirect(t, resp, http.StatusSeeOther, "/profile?tab=watchlist")
	assert.Equal(t, "0", c.page("/profile?tab=watchlist").Find("#stat-watchlist").Text())
}

func TestRemoveFromUnknownList(t *testing.T) {
	c := newClient(t)
	c.login("alice")
	assert.Equal(t, http.StatusNotFound, c.post("/lists/queue/remove", url.Values{"movie_id": {"1"}}).StatusCode)
	assert.Equal(t, http.StatusBadRequest, c.post("/lists/watchlist/remove", url.Values{"movie_id": {"x"}}).StatusCode)
}

func TestPageRenderChecksSessionOnce(t *testing.T) {
	c := newClient(t)
	c.login("alice")

	before := c.srv.Hits("/session")
	d := c.page("/search?q=he&login=required")
	assert.Equal(t, before+1, c.srv.Hits("/session"))
	assert.Equal(t, "Logged in", d.Find("#login_status").Text())
}

func TestSearchPages(t *testing.T) {
	c := newClient(t)

	d := c.page("/search?q=he")
	assert.Equal(t, "1 movie found", d.Find("#search-count").Text())
	assert.Equal(t, "he", d.Find("#search_input").AttrOr("value", ""))

	assert.Equal(t, http.StatusNoContent, c.get("/autocomplete?q=h").StatusCode)

	resp := c.get("/autocomplete?q=al")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	d, err := goquery.NewDocumentFromReader(resp.Body)
	require.NoError(t, err)
	assert.Equal(t, "Alien", d.Find(".autocomplete-item-title").Text())
}

func TestAPIPassthrough(t *testing.T) {
	c := newClient(t)
	resp := c.get("/api/genres")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	body, _ := io.ReadAll(resp.Body)
	assert.Contains(t, string(body), "Drama")
}
