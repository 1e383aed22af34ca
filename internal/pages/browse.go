package pages

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"

	"golang.org/x/net/html"

	"movie-recommender-web/internal/backend"
	"movie-recommender-web/internal/config"
	"movie-recommender-web/internal/events"
	"movie-recommender-web/internal/metrics"
	"movie-recommender-web/internal/nav"
	"movie-recommender-web/internal/recs"
	"movie-recommender-web/internal/render"
)

const (
	BrowsePath = "/browse"

	defaultSort = "title"
	defaultDir  = "asc"

	// RecsPageParam selects a page of the recommendation grid.
	RecsPageParam = "recs_page"
)

const msgNoRecs = "No recommendations available. Try rating some movies first!"

// SortOptions are the catalog orderings the backend supports.
var SortOptions = [][2]string{
	{"title", "Title"},
	{"year", "Year"},
	{"rating", "Rating"},
}

var dirOptions = [][2]string{
	{"asc", "Ascending"},
	{"desc", "Descending"},
}

// Mode is what the browse page is showing.
type Mode string

const (
	ModeRecs    Mode = "recs"
	ModeCatalog Mode = "catalog"
)

// CatalogState is the filter, sort and page selection of the catalog.
type CatalogState struct {
	Genre    string
	Sort     string
	Dir      string
	Page     int
	PageSize int
}

// DefaultCatalogState is the unfiltered first page.
func DefaultCatalogState(pageSize int) CatalogState {
	return CatalogState{Sort: defaultSort, Dir: defaultDir, Page: 1, PageSize: pageSize}
}

// ParseCatalogState reads the state from URL parameters, falling back to the
// defaults for anything missing or invalid.
func ParseCatalogState(q url.Values, pageSize int) CatalogState {
	s := DefaultCatalogState(pageSize)
	s.Genre = strings.TrimSpace(q.Get("genre"))
	if v := q.Get("sort"); validOption(SortOptions, v) {
		s.Sort = v
	}
	if v := q.Get("dir"); validOption(dirOptions, v) {
		s.Dir = v
	}
	if page, err := strconv.Atoi(q.Get("page")); err == nil && page > 0 {
		s.Page = page
	}
	return s
}

func validOption(options [][2]string, v string) bool {
	for _, o := range options {
		if o[0] == v {
			return true
		}
	}
	return false
}

// Values returns the normalized URL parameters: empty values, the default
// sort and direction and page 1 are dropped.
func (s CatalogState) Values() url.Values {
	v := url.Values{}
	if s.Genre != "" {
		v.Set("genre", s.Genre)
	}
	if s.Sort != "" && s.Sort != defaultSort {
		v.Set("sort", s.Sort)
	}
	if s.Dir != "" && s.Dir != defaultDir {
		v.Set("dir", s.Dir)
	}
	if s.Page > 1 {
		v.Set("page", strconv.Itoa(s.Page))
	}
	return v
}

// URL is the canonical browse URL of the state.
func (s CatalogState) URL() string {
	if qs := s.Values().Encode(); qs != "" {
		return BrowsePath + "?" + qs
	}
	return BrowsePath
}

// Query is the /api/movies request for the state.
func (s CatalogState) Query() backend.CatalogQuery {
	return backend.CatalogQuery{
		Genre:    s.Genre,
		Sort:     s.Sort,
		Dir:      s.Dir,
		Page:     s.Page,
		PageSize: s.PageSize,
	}
}

func (s CatalogState) entry() nav.Entry {
	return nav.Entry{URL: s.URL(), State: map[string]string{
		"genre": s.Genre,
		"sort":  s.Sort,
		"dir":   s.Dir,
		"page":  strconv.Itoa(s.Page),
	}}
}

func stateFromEntry(e nav.Entry, pageSize int) CatalogState {
	q := url.Values{}
	for k, v := range e.State {
		q.Set(k, v)
	}
	return ParseCatalogState(q, pageSize)
}

// Browse controls the browse page: the recommendation grid and the
// filterable catalog.
type Browse struct {
	backend  Backend
	session  SessionChecker
	cache    *recs.Cache
	history  *nav.History
	ui       config.UIConfig
	catalogN atomic.Uint64

	mu    sync.Mutex
	mode  Mode
	state CatalogState

	unsubscribe []func()
}

func NewBrowse(b Backend, s SessionChecker, cache *recs.Cache, history *nav.History, bus *events.Bus, ui config.UIConfig) *Browse {
	br := &Browse{
		backend: b,
		session: s,
		cache:   cache,
		history: history,
		ui:      ui,
		mode:    ModeRecs,
		state:   DefaultCatalogState(ui.CatalogPageSize),
	}
	br.unsubscribe = []func(){
		bus.RatingChanged.Subscribe(br.onRatingChanged),
		bus.UserLoggedIn.Subscribe(br.onUserLoggedIn),
	}
	return br
}

// Close detaches the controller from the event bus.
func (b *Browse) Close() {
	for _, fn := range b.unsubscribe {
		fn()
	}
}

// onRatingChanged runs on the publisher's goroutine. Rating changes only
// come from a logged-in user.
func (b *Browse) onRatingChanged(events.RatingChanged) {
	b.cache.Invalidate()
	b.cache.Preload(context.Background())
}

func (b *Browse) onUserLoggedIn(events.UserLoggedIn) {
	b.cache.Preload(context.Background())
	b.mu.Lock()
	b.mode = ModeRecs
	b.mu.Unlock()
}

// Mode returns what the page is currently showing.
func (b *Browse) Mode() Mode {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.mode
}

// State returns the current catalog state.
func (b *Browse) State() CatalogState {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.state
}

// Show renders the browse page for a GET. A URL that is not the current
// history entry is a fresh visit: a genre selects the catalog (normalizing
// the URL), a logged-in user gets recommendations and anyone else the
// catalog. The current entry keeps the mode it was left in.
func (b *Browse) Show(ctx context.Context, query url.Values) (View, error) {
	username := b.session.Username(ctx)

	if raw := query.Get(RecsPageParam); raw != "" && username != "" {
		page, _ := strconv.Atoi(raw)
		b.mu.Lock()
		b.mode = ModeRecs
		b.mu.Unlock()
		return b.recsView(ctx, page)
	}

	st := ParseCatalogState(query, b.ui.CatalogPageSize)
	requested := BrowsePath
	if len(query) > 0 {
		requested += "?" + query.Encode()
	}

	if cur, ok := b.history.Current(); ok && cur.URL == st.URL() && cur.URL == requested {
		b.mu.Lock()
		b.state = st
		mode := b.mode
		b.mu.Unlock()
		if mode == ModeCatalog {
			return b.catalogView(ctx)
		}
		return b.recsView(ctx, 1)
	}

	b.mu.Lock()
	b.state = st
	switch {
	case st.Genre != "" || username == "":
		b.mode = ModeCatalog
	default:
		b.mode = ModeRecs
	}
	mode := b.mode
	b.mu.Unlock()

	b.history.Replace(st.entry())
	if requested != st.URL() && st.Genre != "" {
		return replace(st.URL()), nil
	}
	if mode == ModeCatalog {
		return b.catalogView(ctx)
	}
	return b.recsView(ctx, 1)
}

// Apply sets new filters and returns to page 1.
func (b *Browse) Apply(genre, sort, dir string) View {
	q := url.Values{"genre": {genre}, "sort": {sort}, "dir": {dir}}
	st := ParseCatalogState(q, b.ui.CatalogPageSize)

	b.mu.Lock()
	b.state = st
	b.mode = ModeCatalog
	b.mu.Unlock()

	b.history.Push(st.entry())
	return push(st.URL())
}

// Reset clears the filters and goes back to recommendations, or to the
// catalog when nobody is logged in.
func (b *Browse) Reset(ctx context.Context) View {
	st := DefaultCatalogState(b.ui.CatalogPageSize)
	mode := ModeCatalog
	if b.session.Username(ctx) != "" {
		mode = ModeRecs
	}

	b.mu.Lock()
	b.state = st
	b.mode = mode
	b.mu.Unlock()

	b.history.Replace(st.entry())
	return replace(st.URL())
}

// GoToPage moves the catalog to page n. It does nothing outside the catalog.
func (b *Browse) GoToPage(n int) View {
	b.mu.Lock()
	if b.mode != ModeCatalog || n < 1 {
		target := b.state.URL()
		b.mu.Unlock()
		return replace(target)
	}
	b.state.Page = n
	st := b.state
	b.mu.Unlock()

	b.history.Push(st.entry())
	return push(st.URL())
}

// ShowRecs switches to the recommendation grid.
func (b *Browse) ShowRecs() View {
	b.mu.Lock()
	b.state.Genre = ""
	b.state.Page = 1
	b.mode = ModeRecs
	st := b.state
	b.mu.Unlock()

	b.history.Replace(st.entry())
	return replace(st.URL())
}

// Back restores the previous history entry.
func (b *Browse) Back() View {
	e, ok := b.history.Back()
	return b.pop(e, ok)
}

// Forward restores the next history entry.
func (b *Browse) Forward() View {
	e, ok := b.history.Forward()
	return b.pop(e, ok)
}

// pop restores the state of an entry. A genre, or a catalog being shown,
// keeps the catalog; otherwise recommendations are shown.
func (b *Browse) pop(e nav.Entry, ok bool) View {
	b.mu.Lock()
	defer b.mu.Unlock()
	if !ok {
		return replace(b.state.URL())
	}
	b.state = stateFromEntry(e, b.ui.CatalogPageSize)
	if b.state.Genre == "" && b.mode != ModeCatalog {
		b.mode = ModeRecs
	} else {
		b.mode = ModeCatalog
	}
	return replace(e.URL)
}

func (b *Browse) recsView(ctx context.Context, page int) (View, error) {
	items, ok := b.cache.GetCached()
	if !ok {
		var err error
		if items, err = b.cache.Get(ctx); err != nil {
			return View{}, err
		}
	}

	content := []*html.Node{b.controls(ctx, ModeRecs)}
	if len(items) == 0 {
		content = append(content, meta(""), render.Message(render.Info, msgNoRecs))
		return b.view(content), nil
	}

	size := b.ui.RecsPageSize
	pages := (len(items) + size - 1) / size
	page = min(max(page, 1), pages)
	start := (page - 1) * size
	end := min(start+size, len(items))

	container := render.Append(render.El("div", "class", "browse-container"),
		render.Tiles(items[start:end], render.TileOptions{Source: render.SourceRecommendations}))
	if pages > 1 {
		pv := render.PagerView{Label: fmt.Sprintf("Page %d of %d", page, pages)}
		if page > 1 {
			pv.PrevURL = recsPageURL(page - 1)
		}
		if end < len(items) {
			pv.NextURL = recsPageURL(page + 1)
		}
		container.AppendChild(render.Pager(pv))
	}
	content = append(content, meta(fmt.Sprintf("Total recommendations: %d", len(items))), container)
	return b.view(content), nil
}

func recsPageURL(page int) string {
	return BrowsePath + "?" + url.Values{RecsPageParam: {strconv.Itoa(page)}}.Encode()
}

// catalogView loads the current catalog page. When another catalog request
// of this workspace started later, the response is dropped.
func (b *Browse) catalogView(ctx context.Context) (View, error) {
	gen := b.catalogN.Add(1)
	st := b.State()

	page, err := b.backend.ListMovies(ctx, st.Query())
	if b.catalogN.Load() != gen {
		metrics.StaleResponsesDiscarded.WithLabelValues("browse").Inc()
		slog.Debug("discarding superseded catalog response", "url", st.URL())
		return View{}, ErrSuperseded
	}

	content := []*html.Node{b.controls(ctx, ModeCatalog)}
	if err != nil {
		if errors.Is(err, context.Canceled) {
			return View{}, err
		}
		slog.Error("failed to load catalog", "url", st.URL(), "error", err)
		content = append(content, meta(""), render.Message(render.Error, "Failed: "+failureText(err)))
		return b.view(content), nil
	}

	current := page.Page
	if current == 0 {
		current = st.Page
	}
	pv := render.PagerView{Label: fmt.Sprintf("Page %d", current)}
	if page.HasPrev {
		pv.PrevURL = pageURL(current - 1)
	}
	if page.HasNext {
		pv.NextURL = pageURL(current + 1)
	}

	content = append(content,
		meta(fmt.Sprintf("Total: %d", page.Total)),
		render.Append(render.El("div", "class", "browse-container"),
			render.Tiles(page.Items, render.TileOptions{Source: render.SourceCatalog})),
		render.SetAttr(render.Pager(pv), "id", "browsePager"),
	)
	return b.view(content), nil
}

func pageURL(n int) string {
	return BrowsePath + "/page?n=" + strconv.Itoa(n)
}

func meta(text string) *html.Node {
	return render.ElText("span", text, "id", "browseMeta", "class", "browse-meta")
}

func (b *Browse) controls(ctx context.Context, mode Mode) *html.Node {
	st := b.State()

	genres := [][2]string{{"", "All genres"}}
	names, err := b.backend.Genres(ctx)
	if err != nil {
		slog.Warn("genres fetch failed", "error", err)
	}
	for _, g := range names {
		genres = append(genres, [2]string{g, g})
	}

	filters := render.Append(render.El("form", "method", "post", "action", BrowsePath+"/filters", "class", "browse-filters"),
		render.Select("genre", "genreSelect", genres, st.Genre),
		render.Select("sort", "sortSelect", SortOptions, st.Sort),
		render.Select("dir", "dirSelect", dirOptions, st.Dir),
		render.ElText("button", "Apply", "type", "submit", "id", "applyFiltersBtn"),
	)
	reset := render.Append(render.El("form", "method", "post", "action", BrowsePath+"/reset"),
		render.ElText("button", "Reset", "type", "submit", "id", "resetFiltersBtn", "class", "btn-secondary"))
	recsBtn := render.Append(render.El("form", "method", "post", "action", BrowsePath+"/recs"),
		render.ElText("button", "Get Recommendations", "type", "submit", "id", "getRecsBtn"))

	return render.Append(render.El("div", "class", "browse-controls", "data-mode", string(mode)),
		filters, reset, recsBtn)
}

func (b *Browse) view(content []*html.Node) View {
	return View{Title: "Browse", Active: "browse", Content: content}
}
