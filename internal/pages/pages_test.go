package pages

import (
	"context"
	"net/http"
	"strings"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/PuerkitoBio/goquery"
	"github.com/stretchr/testify/require"

	"movie-recommender-web/internal/backend"
	"movie-recommender-web/internal/config"
	"movie-recommender-web/internal/models"
	"movie-recommender-web/internal/recs"
	"movie-recommender-web/internal/render"
)

type fakeBackend struct {
	mu sync.Mutex

	buttons   []string
	payloads  []map[string]any
	actions   map[string]*models.ActionResult
	actionErr map[string]error

	movies     map[models.MovieID]models.MovieRecord
	movieCalls []models.MovieID

	queries []backend.CatalogQuery
	catalog func(q backend.CatalogQuery) (*models.CatalogPage, error)

	searches []string
	limits   []int
	results  []models.MovieRecord
	searchErr error

	genres   []string
	stats    *models.Statistics
	statsErr error
}

func newFakeBackend() *fakeBackend {
	return &fakeBackend{
		actions:   map[string]*models.ActionResult{},
		actionErr: map[string]error{},
		movies:    map[models.MovieID]models.MovieRecord{},
		genres:    []string{"Action", "Drama"},
	}
}

func (f *fakeBackend) ButtonClick(_ context.Context, button string, payload map[string]any) (*models.ActionResult, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.buttons = append(f.buttons, button)
	f.payloads = append(f.payloads, payload)
	if err := f.actionErr[button]; err != nil {
		return nil, err
	}
	if r, ok := f.actions[button]; ok {
		copied := *r
		return &copied, nil
	}
	return &models.ActionResult{}, nil
}

func (f *fakeBackend) ListMovies(_ context.Context, q backend.CatalogQuery) (*models.CatalogPage, error) {
	f.mu.Lock()
	f.queries = append(f.queries, q)
	catalog := f.catalog
	f.mu.Unlock()
	if catalog != nil {
		return catalog(q)
	}
	return &models.CatalogPage{Page: q.Page}, nil
}

func (f *fakeBackend) Movie(_ context.Context, id models.MovieID) (*models.MovieRecord, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.movieCalls = append(f.movieCalls, id)
	m, ok := f.movies[id]
	if !ok {
		return nil, &backend.APIError{StatusCode: http.StatusNotFound, Message: "Not Found"}
	}
	return &m, nil
}

func (f *fakeBackend) Search(_ context.Context, query string, limit int) ([]models.MovieRecord, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.searches = append(f.searches, query)
	f.limits = append(f.limits, limit)
	return f.results, f.searchErr
}

func (f *fakeBackend) Genres(context.Context) ([]string, error) {
	return f.genres, nil
}

func (f *fakeBackend) UserStats(context.Context) (*models.Statistics, error) {
	if f.statsErr != nil {
		return nil, f.statsErr
	}
	if f.stats == nil {
		return &models.Statistics{}, nil
	}
	s := *f.stats
	return &s, nil
}

func (f *fakeBackend) buttonCount(button string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	n := 0
	for _, b := range f.buttons {
		if b == button {
			n++
		}
	}
	return n
}

// fakeSession is a switchable logged-in user.
type fakeSession struct {
	mu      sync.Mutex
	user    string
	lookups int
}

func (s *fakeSession) Username(context.Context) string {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.lookups++
	return s.user
}

func (s *fakeSession) lookupCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lookups
}

func (s *fakeSession) set(user string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.user = user
}

func testUI() config.UIConfig {
	return config.UIConfig{
		RecommendationsK: 100,
		RecsPageSize:     30,
		CatalogPageSize:  20,
		AutocompleteSize: 8,
		SearchPageSize:   100,
	}
}

// countingCache returns a cache serving items and the number of fetches.
func countingCache(items []models.MovieRecord) (*recs.Cache, *atomic.Int32) {
	var n atomic.Int32
	return recs.New(func(context.Context) ([]models.MovieRecord, error) {
		n.Add(1)
		return items, nil
	}), &n
}

func records(n int) []models.MovieRecord {
	out := make([]models.MovieRecord, n)
	for i := range out {
		score := 0.5
		out[i] = models.MovieRecord{MovieID: models.MovieID(i + 1), Title: "Movie", Score: &score}
	}
	return out
}

// doc renders the content of v for goquery assertions.
func doc(t *testing.T, v View) *goquery.Document {
	t.Helper()
	var sb strings.Builder
	for _, n := range v.Content {
		sb.WriteString(render.String(n))
	}
	d, err := goquery.NewDocumentFromReader(strings.NewReader(sb.String()))
	require.NoError(t, err)
	return d
}
