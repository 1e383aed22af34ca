package pages

import (
	"context"
	"errors"
	"log/slog"
	"strconv"
	"strings"
	"sync"

	"golang.org/x/net/html"

	"movie-recommender-web/internal/dispatch"
	"movie-recommender-web/internal/events"
	"movie-recommender-web/internal/models"
	"movie-recommender-web/internal/recs"
	"movie-recommender-web/internal/render"
)

const HomePath = "/"

const (
	msgEnterBoth     = "Please enter both Movie ID and Rating."
	msgRatingAdded   = "Rating added successfully."
	msgDone          = "Done."
	msgEnterSearch   = "Enter a search term."
	msgNeedMovieID   = "Please enter a Movie ID."
	msgBadMovieID    = "Movie ID must be a number."
	msgBadRating     = "Please select a rating between 1 and 5."
	msgWelcomeOutput = "Choose an action to get started."
)

var panelButtons = [][2]string{
	{dispatch.ViewRatings, "View My Ratings"},
	{dispatch.GetRecs, "Get Recommendations"},
	{dispatch.ViewStatistics, "View Statistics"},
}

// Home controls the home page and its action output panel. The panel keeps
// the outcome of the last action; a rating change marks it stale so the
// last view is re-run on the next visit.
type Home struct {
	dispatcher *dispatch.Dispatcher
	session    SessionChecker
	cache      *recs.Cache
	bus        *events.Bus

	mu     sync.Mutex
	output *html.Node
	stale  bool

	unsubscribe []func()
}

func NewHome(d *dispatch.Dispatcher, s SessionChecker, cache *recs.Cache, bus *events.Bus) *Home {
	h := &Home{dispatcher: d, session: s, cache: cache, bus: bus}
	h.unsubscribe = []func(){
		bus.RatingChanged.Subscribe(func(events.RatingChanged) { h.markStale() }),
		bus.UserLoggedOut.Subscribe(func(events.UserLoggedOut) { h.clear() }),
	}
	return h
}

// Close detaches the controller from the event bus.
func (h *Home) Close() {
	for _, fn := range h.unsubscribe {
		fn()
	}
}

func (h *Home) markStale() {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.stale = true
}

func (h *Home) clear() {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.output = nil
	h.stale = false
}

// Stale reports whether the panel waits for a refresh.
func (h *Home) Stale() bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.stale
}

// Show renders the home page. A logged-in visit warms the recommendation
// cache and refreshes a stale panel.
func (h *Home) Show(ctx context.Context) View {
	if h.session.Username(ctx) != "" {
		h.cache.Preload(ctx)

		h.mu.Lock()
		stale := h.stale
		h.stale = false
		h.mu.Unlock()
		if stale {
			p := &panel{}
			ran, err := h.dispatcher.Refresh(ctx, p)
			if err != nil {
				slog.Warn("failed to refresh last action", "button", h.dispatcher.LastAction(), "error", err)
			}
			if ran {
				h.setOutput(p.node)
			}
		}
	}

	h.mu.Lock()
	out := render.Clone(h.output)
	h.mu.Unlock()
	if out == nil {
		out = render.Message(render.Info, msgWelcomeOutput)
	}

	return View{
		Title:  "Movie Recommender",
		Active: "home",
		Content: []*html.Node{
			actionPanel(),
			render.Append(render.El("div", "id", "action-output", "class", "output-panel"), out),
		},
	}
}

// Action runs a panel button with the submitted form values and redirects
// back to the home page, which shows the outcome.
func (h *Home) Action(ctx context.Context, button string, form map[string]string) View {
	p := &panel{}
	payload, ok := h.payload(button, form, p)
	if !ok {
		h.setOutput(p.node)
		return push(HomePath)
	}

	result, err := h.dispatcher.Dispatch(ctx, button, payload, p)
	if err == nil && dispatch.Mutates(button) {
		h.mutated(ctx, button, payload, result, p)
	}
	if err != nil && !errors.Is(err, dispatch.ErrNotLoggedIn) {
		slog.Warn("panel action failed", "button", button, "error", err)
	}
	h.setOutput(p.node)
	return push(HomePath)
}

// payload builds the request body for button. It reports false, with a
// message on p, when the form is incomplete.
func (h *Home) payload(button string, form map[string]string, p *panel) (map[string]any, bool) {
	field := func(k string) string { return strings.TrimSpace(form[k]) }

	switch button {
	case dispatch.AddRating:
		id, rating := field("movie_id"), field("rating")
		if id == "" || rating == "" {
			p.ShowMessage(msgEnterBoth)
			return nil, false
		}
		movie, ok := positiveInt(id)
		if !ok {
			p.ShowMessage(msgBadMovieID)
			return nil, false
		}
		n, err := strconv.Atoi(rating)
		if err != nil || n < models.MinRating || n > models.MaxRating {
			p.ShowMessage(msgBadRating)
			return nil, false
		}
		return map[string]any{"movie_id": movie, "rating": n}, true
	case dispatch.RemoveRating:
		id := field("movie_id")
		if id == "" {
			p.ShowMessage(msgNeedMovieID)
			return nil, false
		}
		movie, ok := positiveInt(id)
		if !ok {
			p.ShowMessage(msgBadMovieID)
			return nil, false
		}
		return map[string]any{"movie_id": movie}, true
	case dispatch.Search:
		q := field("query")
		if q == "" {
			p.ShowMessage(msgEnterSearch)
			return nil, false
		}
		return map[string]any{"query": q}, true
	default:
		return nil, true
	}
}

// mutated runs after a successful add or remove: the recommendations are
// reloaded and subscribers learn about the change.
func (h *Home) mutated(ctx context.Context, button string, payload map[string]any, result *models.ActionResult, p *panel) {
	h.cache.Invalidate()
	h.cache.Preload(ctx)

	ev := events.RatingChanged{MovieID: models.MovieID(payload["movie_id"].(int))}
	if button == dispatch.AddRating {
		ev.Rating = payload["rating"].(int)
		p.ShowMessage(firstNonEmpty(result.Message, msgRatingAdded))
	} else {
		p.ShowMessage(firstNonEmpty(result.Message, msgDone))
	}
	h.bus.RatingChanged.Publish(ev)
}

func (h *Home) setOutput(n *html.Node) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.output = n
}

func positiveInt(s string) (int, bool) {
	n, err := strconv.Atoi(s)
	return n, err == nil && n > 0
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}

func actionPanel() *html.Node {
	buttons := render.El("div", "class", "action-buttons")
	for _, b := range panelButtons {
		buttons.AppendChild(render.Append(render.El("form", "method", "post", "action", "/action/"+b[0]),
			render.ElText("button", b[1], "type", "submit", "id", b[0])))
	}

	add := render.Append(render.El("form", "method", "post", "action", "/action/"+dispatch.AddRating, "id", "add-rating-box"),
		render.El("input", "type", "text", "name", "movie_id", "placeholder", "Movie ID", "id", "add_rating_input_id"),
		render.El("input", "type", "number", "name", "rating", "placeholder", "Rating (1–5)", "min", "1", "max", "5", "id", "add_rating_input_rating"),
		render.ElText("button", "Submit", "type", "submit", "id", dispatch.AddRating),
	)
	remove := render.Append(render.El("form", "method", "post", "action", "/action/"+dispatch.RemoveRating, "id", "remove-rating-box"),
		render.El("input", "type", "text", "name", "movie_id", "placeholder", "Movie ID", "id", "remove_rating_input_id"),
		render.ElText("button", "Remove Rating", "type", "submit", "id", dispatch.RemoveRating),
	)

	return render.Append(render.El("section", "class", "action-panel"), buttons, add, remove)
}

// panel collects the outcome of one action as a fragment.
type panel struct {
	node *html.Node
}

func (p *panel) ShowMessage(text string) { p.node = render.Message(render.Info, text) }
func (p *panel) ShowError(text string)   { p.node = render.Message(render.Error, text) }

func (p *panel) ShowMovies(records []models.MovieRecord, source string) {
	src := render.SourcePlain
	switch {
	case source == dispatch.SourceRecs:
		src = render.SourceActionRecs
	case hasRatings(records):
		src = render.SourceRatings
	}
	p.node = render.Tiles(records, render.TileOptions{Source: src})
}

func (p *panel) ShowStatistics(stats models.Statistics) { p.node = render.Statistics(stats) }

func hasRatings(records []models.MovieRecord) bool {
	for _, r := range records {
		if r.Rating != nil {
			return true
		}
	}
	return false
}
