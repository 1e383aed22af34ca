package pages

import (
	"cmp"
	"context"
	"fmt"
	"log/slog"
	"slices"
	"strconv"
	"strings"
	"sync"
	"unicode"
	"unicode/utf8"

	"golang.org/x/net/html"
	"golang.org/x/sync/errgroup"

	"movie-recommender-web/internal/dispatch"
	"movie-recommender-web/internal/events"
	"movie-recommender-web/internal/localstore"
	"movie-recommender-web/internal/models"
	"movie-recommender-web/internal/render"
)

const ProfilePath = "/profile"

// detailFetchLimit bounds the parallel /api/movies/{id} requests of a tab.
const detailFetchLimit = 8

// Tab is a section of the profile page.
type Tab string

const (
	TabRatings    Tab = "ratings"
	TabWatchlist  Tab = "watchlist"
	TabFavorites  Tab = "favorites"
	TabStatistics Tab = "statistics"
)

var tabs = []struct {
	tab   Tab
	label string
}{
	{TabRatings, "My Ratings"},
	{TabWatchlist, "Watchlist"},
	{TabFavorites, "Favorites"},
	{TabStatistics, "Statistics"},
}

// ParseTab returns the named tab, defaulting to ratings.
func ParseTab(s string) Tab {
	for _, t := range tabs {
		if string(t.tab) == s {
			return t.tab
		}
	}
	return TabRatings
}

var listTexts = map[localstore.Kind]struct{ empty, failed, name string }{
	localstore.Watchlist: {
		empty:  "No movies in watchlist. Add some movies to watch later!",
		failed: "Failed to load watchlist.",
		name:   "watchlist",
	},
	localstore.Favorites: {
		empty:  "No favorites yet. Add movies to your favorites!",
		failed: "Failed to load favorites.",
		name:   "favorites",
	},
}

// Profile controls the profile page of the logged-in user. Rendered tabs are
// kept until a rating or list change makes them stale.
type Profile struct {
	backend Backend
	session SessionChecker
	lists   *localstore.Lists
	bus     *events.Bus

	mu       sync.Mutex
	owner    string
	rendered map[Tab]*html.Node

	unsubscribe []func()
}

func NewProfile(b Backend, s SessionChecker, lists *localstore.Lists, bus *events.Bus) *Profile {
	p := &Profile{backend: b, session: s, lists: lists, bus: bus, rendered: make(map[Tab]*html.Node)}
	p.unsubscribe = []func(){
		bus.RatingChanged.Subscribe(func(events.RatingChanged) { p.forget(TabRatings, TabStatistics) }),
		bus.ListChanged.Subscribe(func(ev events.ListChanged) { p.forget(Tab(ev.Kind)) }),
		bus.UserLoggedOut.Subscribe(func(events.UserLoggedOut) { p.forget() }),
	}
	return p
}

// Close detaches the controller from the event bus.
func (p *Profile) Close() {
	for _, fn := range p.unsubscribe {
		fn()
	}
}

// forget drops the named tabs, or all of them when none is named.
func (p *Profile) forget(names ...Tab) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if len(names) == 0 {
		clear(p.rendered)
		return
	}
	for _, t := range names {
		delete(p.rendered, t)
	}
}

// Cached reports whether tab is cached for the current owner.
func (p *Profile) Cached(tab Tab) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	_, ok := p.rendered[tab]
	return ok
}

// Show renders the profile with the given tab open. A logged-out visitor is
// sent to the login form.
func (p *Profile) Show(ctx context.Context, tab Tab) (View, error) {
	username := p.session.Username(ctx)
	if username == "" {
		return replace(LoginURL), nil
	}

	content := []*html.Node{
		p.header(ctx, username),
		tabBar(tab),
		render.Append(render.El("div", "class", "profile-tab-content active", "id", string(tab)+"-content"),
			p.tab(ctx, username, tab)),
	}
	return View{Title: "Profile", Active: "profile", Content: content}, nil
}

// RemoveFromList removes a movie from a watchlist or favorites. Without
// confirmation it shows the profile with a confirmation prompt instead.
func (p *Profile) RemoveFromList(ctx context.Context, kind string, id models.MovieID, title string, confirmed bool) (View, error) {
	k, err := localstore.ParseKind(kind)
	if err != nil {
		return View{}, err
	}
	username := p.session.Username(ctx)
	if username == "" {
		return replace(LoginURL), nil
	}
	back := ProfilePath + "?tab=" + string(k)
	if title == "" {
		title = "Movie " + id.String()
	}

	if !confirmed {
		v, err := p.Show(ctx, Tab(k))
		if err != nil {
			return View{}, err
		}
		prompt := render.Confirm(
			`Remove "`+title+`" from `+listTexts[k].name+`?`,
			"/lists/"+string(k)+"/remove",
			map[string]string{"movie_id": id.String(), "title": title},
			back,
		)
		v.Content = append([]*html.Node{prompt}, v.Content...)
		return v, nil
	}

	if err := p.lists.Remove(ctx, k, username, id); err != nil {
		return View{}, fmt.Errorf("remove from %s: %w", k, err)
	}
	slog.Info("removed from list", "kind", k, "username", username, "movie_id", id)
	p.bus.ListChanged.Publish(events.ListChanged{Kind: string(k), Username: username, MovieID: id, Added: false})
	return push(back), nil
}

func (p *Profile) tab(ctx context.Context, username string, tab Tab) *html.Node {
	p.mu.Lock()
	if p.owner != username {
		p.owner = username
		clear(p.rendered)
	}
	if n, ok := p.rendered[tab]; ok {
		p.mu.Unlock()
		return render.Clone(n)
	}
	p.mu.Unlock()

	var (
		n      *html.Node
		cached bool
	)
	switch tab {
	case TabWatchlist:
		n, cached = p.listTab(ctx, username, localstore.Watchlist)
	case TabFavorites:
		n, cached = p.listTab(ctx, username, localstore.Favorites)
	case TabStatistics:
		n, cached = p.statisticsTab(ctx)
	default:
		n, cached = p.ratingsTab(ctx)
	}

	if cached {
		p.mu.Lock()
		if p.owner == username {
			p.rendered[tab] = render.Clone(n)
		}
		p.mu.Unlock()
	}
	return n
}

func tabBar(active Tab) *html.Node {
	bar := render.El("nav", "class", "profile-tabs")
	for _, t := range tabs {
		class := "profile-tab"
		if t.tab == active {
			class += " active"
		}
		bar.AppendChild(render.ElText("a", t.label,
			"class", class, "href", ProfilePath+"?tab="+string(t.tab), "data-tab", string(t.tab)))
	}
	return bar
}

func (p *Profile) header(ctx context.Context, username string) *html.Node {
	ratings := "0"
	if result, err := p.backend.ButtonClick(ctx, dispatch.ViewRatings, nil); err != nil {
		slog.Warn("failed to count ratings", "error", err)
	} else if !result.Failed() {
		ratings = strconv.Itoa(len(result.Ratings))
	}

	count := func(kind localstore.Kind) string {
		n, err := p.lists.Count(ctx, kind, username)
		if err != nil {
			slog.Warn("failed to count list", "kind", kind, "error", err)
		}
		return strconv.Itoa(n)
	}

	return render.Append(render.El("div", "class", "profile-header"),
		render.ElText("div", avatarInitial(username), "class", "profile-avatar", "id", "profile-avatar"),
		render.ElText("h1", username, "id", "profile-username"),
		render.Append(render.El("div", "class", "profile-stats"),
			profileCount("stat-ratings", ratings, "Ratings"),
			profileCount("stat-watchlist", count(localstore.Watchlist), "Watchlist"),
			profileCount("stat-favorites", count(localstore.Favorites), "Favorites"),
		),
	)
}

func profileCount(id, value, label string) *html.Node {
	return render.Append(render.El("div", "class", "profile-stat"),
		render.ElText("span", value, "class", "profile-stat-value", "id", id),
		render.ElText("span", label, "class", "profile-stat-label"),
	)
}

func avatarInitial(username string) string {
	r, _ := utf8.DecodeRuneInString(strings.TrimSpace(username))
	if r == utf8.RuneError {
		return "?"
	}
	return string(unicode.ToUpper(r))
}

// ratingsTab lists the user's ratings. Records without a poster are completed
// from the movie endpoint in parallel; a failed lookup keeps the record as is.
func (p *Profile) ratingsTab(ctx context.Context) (*html.Node, bool) {
	result, err := p.backend.ButtonClick(ctx, dispatch.ViewRatings, nil)
	if err == nil && result.Failed() {
		err = fmt.Errorf("view ratings: %s", result.FailureMessage("failed"))
	}
	if err != nil {
		slog.Error("failed to load ratings", "error", err)
		return render.Message(render.Error, "Failed to load ratings."), false
	}
	if len(result.Ratings) == 0 {
		return render.Message(render.Info, "You haven't rated any movies yet."), true
	}

	records := slices.Clone(result.Ratings)
	var g errgroup.Group
	g.SetLimit(detailFetchLimit)
	for i := range records {
		if records[i].PosterURL != "" {
			continue
		}
		g.Go(func() error {
			movie, err := p.backend.Movie(ctx, records[i].MovieID)
			if err != nil {
				slog.Warn("failed to fetch movie details", "movie_id", records[i].MovieID, "error", err)
				return nil
			}
			records[i].PosterURL = movie.PosterURL
			if movie.Genres != "" {
				records[i].Genres = movie.Genres
			}
			if movie.Year != 0 {
				records[i].Year = movie.Year
			}
			return nil
		})
	}
	_ = g.Wait()

	return render.Tiles(records, render.TileOptions{Source: render.SourceRatings}), true
}

// listTab shows a watchlist or favorites, newest first. Movies whose details
// cannot be fetched are left out.
func (p *Profile) listTab(ctx context.Context, username string, kind localstore.Kind) (*html.Node, bool) {
	texts := listTexts[kind]
	entries, err := p.lists.Entries(ctx, kind, username)
	if err != nil {
		slog.Error("failed to read list", "kind", kind, "username", username, "error", err)
		return render.Message(render.Error, texts.failed), false
	}
	if len(entries) == 0 {
		return render.Message(render.Info, texts.empty), true
	}

	type detailed struct {
		movie   *models.MovieRecord
		addedAt int64
	}
	found := make([]*detailed, len(entries))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(detailFetchLimit)
	for i, e := range entries {
		g.Go(func() error {
			movie, err := p.backend.Movie(gctx, e.MovieID)
			if err != nil {
				slog.Warn("dropping list entry without details", "kind", kind, "movie_id", e.MovieID, "error", err)
				return nil
			}
			if movie.Title == "" {
				movie.Title = e.Title
			}
			found[i] = &detailed{movie: movie, addedAt: e.Timestamp}
			return nil
		})
	}
	_ = g.Wait()

	found = slices.DeleteFunc(found, func(d *detailed) bool { return d == nil })
	slices.SortStableFunc(found, func(a, b *detailed) int { return cmp.Compare(b.addedAt, a.addedAt) })

	records := make([]models.MovieRecord, 0, len(found))
	for _, d := range found {
		records = append(records, *d.movie)
	}
	return render.Tiles(records, render.TileOptions{Source: render.SourcePlain, Empty: texts.empty, RemoveFrom: string(kind)}), true
}

func (p *Profile) statisticsTab(ctx context.Context) (*html.Node, bool) {
	stats, err := p.backend.UserStats(ctx)
	if err != nil {
		slog.Error("failed to load statistics", "error", err)
		return render.Message(render.Error, "Failed to load statistics."), false
	}
	return render.ProfileStatistics(*stats), true
}
