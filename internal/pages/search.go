package pages

import (
	"context"
	"fmt"
	"log/slog"
	"net/url"
	"strings"
	"unicode/utf8"

	"golang.org/x/net/html"

	"movie-recommender-web/internal/config"
	"movie-recommender-web/internal/debounce"
	"movie-recommender-web/internal/models"
	"movie-recommender-web/internal/nav"
	"movie-recommender-web/internal/render"
)

const (
	SearchPath = "/search"

	// MinQueryLength is the shortest trimmed query that reaches the backend.
	MinQueryLength = 2
)

const (
	msgEnterTitle    = "Enter a movie title to search."
	msgQueryTooShort = "Please enter at least 2 characters to search."
	msgSearchFailed  = "Search failed. Please try again."
	msgTryDifferent  = "Try a different search term."
)

// Search controls the autocomplete dropdown and the search results page.
type Search struct {
	backend   Backend
	debouncer *debounce.Debouncer
	history   *nav.History
	ui        config.UIConfig
}

func NewSearch(b Backend, d *debounce.Debouncer, history *nav.History, ui config.UIConfig) *Search {
	return &Search{backend: b, debouncer: d, history: history, ui: ui}
}

// Autocomplete returns the dropdown for a keystroke, or nil when nothing
// should be shown: the query is too short, or a newer keystroke arrived
// within the debounce window.
func (s *Search) Autocomplete(ctx context.Context, query string) (*html.Node, error) {
	q := strings.TrimSpace(query)
	if utf8.RuneCountInString(q) < MinQueryLength {
		return nil, nil
	}

	var dropdown *html.Node
	fired, err := s.debouncer.Do(ctx, func(ctx context.Context) error {
		records, err := s.backend.Search(ctx, q, s.ui.AutocompleteSize)
		if err != nil {
			return err
		}
		dropdown = render.Autocomplete(records)
		return nil
	})
	if err != nil {
		slog.Error("search autocomplete failed", "query", q, "error", err)
		return nil, err
	}
	if !fired {
		return nil, nil
	}
	return dropdown, nil
}

// SearchURL is the results page URL for a query.
func SearchURL(query string) string {
	return SearchPath + "?" + url.Values{"q": {query}}.Encode()
}

// Results renders the search results page.
func (s *Search) Results(ctx context.Context, query string) View {
	q := strings.TrimSpace(query)
	v := View{Title: "Search", Query: q}

	if q == "" {
		v.Content = searchPage("", "", render.Message(render.Info, msgEnterTitle))
		return v
	}
	if utf8.RuneCountInString(q) < MinQueryLength {
		v.Content = searchPage("", "", render.Message(render.Info, msgQueryTooShort))
		return v
	}

	s.history.Push(nav.Entry{URL: SearchURL(q), State: map[string]string{"query": q}})

	records, err := s.backend.Search(ctx, q, s.ui.SearchPageSize)
	if err != nil {
		slog.Error("search failed", "query", q, "error", err)
		v.Content = searchPage(`"`+q+`"`, "", render.Message(render.Error, msgSearchFailed))
		return v
	}
	if len(records) == 0 {
		noResults := render.Append(render.El("div", "class", "no-results"),
			render.ElText("p", `No results found for "`+q+`"`),
			render.ElText("p", msgTryDifferent, "class", "muted"),
		)
		v.Content = searchPage(`"`+q+`"`, "No movies found", noResults)
		return v
	}

	v.Content = searchPage(`"`+q+`"`, resultCount(records), render.Tiles(records, render.TileOptions{Source: render.SourcePlain}))
	return v
}

func resultCount(records []models.MovieRecord) string {
	if len(records) == 1 {
		return "1 movie found"
	}
	return fmt.Sprintf("%d movies found", len(records))
}

func searchPage(queryText, countText string, results *html.Node) []*html.Node {
	return []*html.Node{
		render.Append(render.El("div", "class", "search-header"),
			render.ElText("h1", "Search Results"),
			render.ElText("span", queryText, "id", "search-query"),
			render.ElText("span", countText, "id", "search-count"),
		),
		render.Append(render.El("div", "id", "search-results"), results),
	}
}
