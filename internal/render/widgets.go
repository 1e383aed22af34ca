package render

import (
	"fmt"
	"maps"
	"slices"
	"strconv"

	"golang.org/x/net/html"

	"movie-recommender-web/internal/models"
)

// MessageKind picks the style of a Message.
type MessageKind string

const (
	Info    MessageKind = "info-message"
	Error   MessageKind = "error-message"
	Loading MessageKind = "loading"
	Success MessageKind = "success-message"
)

// Message renders a single status paragraph.
func Message(kind MessageKind, text string) *html.Node {
	return ElText("p", text, "class", string(kind))
}

// Statistics renders the action panel statistics view.
func Statistics(stats models.Statistics) *html.Node {
	stats = stats.Normalized()
	container := El("div", "class", "statistics-container")
	container.AppendChild(ElText("h2", "Rating Statistics", "class", "statistics-title"))

	avg := "0"
	if stats.AverageRating != 0 {
		avg = fmt.Sprintf("%.1f", stats.AverageRating)
	}
	overview := Append(El("div", "class", "stats-card"),
		ElText("h3", "Overview"),
		statItem("Total Ratings", strconv.Itoa(stats.TotalRatings)),
		statItem("Average Rating", avg+" / 5.0"),
	)
	container.AppendChild(overview)

	genres := El("div", "class", "stats-card")
	if len(stats.TopGenres) == 0 {
		genres.AppendChild(ElText("p", "No genre data available yet.", "class", "muted"))
	} else {
		genres.AppendChild(ElText("h3", "Top Genres"))
		for i, g := range stats.TopGenres {
			genres.AppendChild(Append(El("div", "class", "stat-item genre-item"),
				ElText("span", "#"+strconv.Itoa(i+1), "class", "genre-rank"),
				ElText("span", g.Label(), "class", "genre-name"),
				ElText("span", fmt.Sprintf("%d rated", g.Count), "class", "genre-count"),
			))
		}
	}
	container.AppendChild(genres)
	return container
}

func statItem(label, value string) *html.Node {
	return Append(El("div", "class", "stat-item"),
		ElText("span", label, "class", "stat-label"),
		ElText("span", value, "class", "stat-value"),
	)
}

// ProfileStatistics renders the statistics tab of the profile page.
func ProfileStatistics(stats models.Statistics) *html.Node {
	stats = stats.Normalized()
	list := El("ul", "class", "genre-list")
	if len(stats.TopGenres) == 0 {
		list.AppendChild(ElText("li", "No genre data available"))
	}
	for _, g := range stats.TopGenres {
		list.AppendChild(Append(El("li"),
			Text(g.Label()+" "),
			ElText("span", fmt.Sprintf("(%d)", g.Count), "class", "genre-count"),
		))
	}
	return Append(El("div", "class", "stats-grid"),
		statCard("Total Ratings", ElText("p", strconv.Itoa(stats.TotalRatings), "class", "stat-big")),
		statCard("Average Rating", ElText("p", fmt.Sprintf("%.2f / 5", stats.AverageRating), "class", "stat-big")),
		statCard("Top Genres", list),
	)
}

func statCard(title string, body *html.Node) *html.Node {
	return Append(El("div", "class", "stat-card"), ElText("h3", title), body)
}

// Autocomplete renders the search dropdown.
func Autocomplete(records []models.MovieRecord) *html.Node {
	dropdown := El("div", "class", "autocomplete-dropdown visible", "id", "search-autocomplete-dropdown")
	if len(records) == 0 {
		dropdown.AppendChild(ElText("div", "No results", "class", "autocomplete-item autocomplete-empty"))
		return dropdown
	}
	for i, m := range records {
		title := m.Title
		if title == "" {
			title = "Untitled"
		}
		meta := MetaLine(m.Year, m.Genres)
		item := El("a", "class", "autocomplete-item", "href", RateURL(m.MovieID, m.Title),
			"data-index", strconv.Itoa(i), "data-movie-id", m.MovieID.String())
		Append(item,
			ElText("div", title, "class", "autocomplete-item-title"),
			ElText("div", meta, "class", "autocomplete-item-meta"),
		)
		dropdown.AppendChild(item)
	}
	return dropdown
}

// PagerView describes pagination controls. An empty URL disables the button.
type PagerView struct {
	PrevURL string
	NextURL string
	Label   string
}

// Pager renders previous/next controls around a page label.
func Pager(p PagerView) *html.Node {
	return Append(El("div", "class", "pagination-controls"),
		pagerButton("← Previous", p.PrevURL),
		ElText("span", p.Label, "class", "page-display"),
		pagerButton("Next →", p.NextURL),
	)
}

func pagerButton(label, href string) *html.Node {
	if href == "" {
		return ElText("span", label, "class", "pagination-btn disabled", "aria-disabled", "true")
	}
	return ElText("a", label, "class", "pagination-btn", "href", href)
}

// Select renders a <select> whose options are value/label pairs.
func Select(name, id string, options [][2]string, selected string) *html.Node {
	sel := El("select", "name", name, "id", id)
	for _, o := range options {
		opt := ElText("option", o[1], "value", o[0])
		if o[0] == selected {
			SetAttr(opt, "selected", "selected")
		}
		sel.AppendChild(opt)
	}
	return sel
}

// Confirm renders a confirmation prompt that re-posts fields with confirm=yes.
func Confirm(prompt, action string, fields map[string]string, cancelURL string) *html.Node {
	form := El("form", "method", "post", "action", action, "class", "confirm-dialog")
	form.AppendChild(ElText("p", prompt, "class", "confirm-prompt"))
	for _, k := range slices.Sorted(maps.Keys(fields)) {
		form.AppendChild(Hidden(k, fields[k]))
	}
	Append(form,
		Hidden("confirm", "yes"),
		ElText("button", "OK", "type", "submit"),
		ElText("a", "Cancel", "href", cancelURL, "class", "btn-secondary"),
	)
	return form
}
