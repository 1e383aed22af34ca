package render

import (
	"fmt"
	"net/url"
	"strconv"
	"strings"

	"golang.org/x/net/html"

	"movie-recommender-web/internal/models"
)

// Source says where a list of records came from and therefore which metric
// a tile shows.
type Source int

const (
	// SourcePlain shows no metric (search results, favorites, watchlist).
	SourcePlain Source = iota
	// SourceCatalog shows the average rating, "★ 3.75".
	SourceCatalog
	// SourceRecommendations shows the content score, "Similarity: 0.912".
	SourceRecommendations
	// SourceRatings shows the user's own rating, "★ 4/5".
	SourceRatings
	// SourceActionRecs shows the predicted rating, "Predicted: 4.2".
	SourceActionRecs
)

// similarityCeiling separates cosine similarities from unbounded scores.
const similarityCeiling = 1.0001

// TileOptions controls how Tiles renders a list.
type TileOptions struct {
	Source Source
	// Empty is the message shown instead of an empty grid.
	Empty string
	// RemoveFrom adds a remove button posting to /lists/<RemoveFrom>/remove.
	RemoveFrom string
}

const defaultEmpty = "No movies to display."

// Tiles renders records as a grid of tiles. An empty list renders a single
// info message instead of an empty grid.
func Tiles(records []models.MovieRecord, opts TileOptions) *html.Node {
	if len(records) == 0 {
		empty := opts.Empty
		if empty == "" {
			empty = defaultEmpty
		}
		return Message(Info, empty)
	}
	grid := El("div", "class", "movie-grid")
	for _, m := range records {
		grid.AppendChild(Tile(m, opts))
	}
	return grid
}

// Tile renders one movie. Following its link opens the rating modal.
func Tile(m models.MovieRecord, opts TileOptions) *html.Node {
	title := tileTitle(m)
	card := El("div", "class", "movie-tile", "data-movie-id", m.MovieID.String())

	link := El("a", "class", "movie-tile-link", "href", RateURL(m.MovieID, title))
	Append(link,
		Poster(m.PosterURL, title),
		ElText("div", title, "class", "movie-tile-title"),
		ElText("div", MetaLine(m.Year, models.FirstGenre(m.Genres)), "class", "movie-tile-meta"),
		metric(m, opts.Source),
	)
	card.AppendChild(link)

	if opts.RemoveFrom != "" {
		form := El("form", "method", "post", "action", "/lists/"+opts.RemoveFrom+"/remove", "class", "movie-tile-actions")
		Append(form,
			Hidden("movie_id", m.MovieID.String()),
			Hidden("title", title),
			ElText("button", removeIcon(opts.RemoveFrom), "type", "submit",
				"class", "btn-icon btn-"+opts.RemoveFrom+" active",
				"title", "Remove from "+opts.RemoveFrom),
		)
		card.AppendChild(form)
	}
	return card
}

// Poster renders the poster image or the placeholder when there is none.
func Poster(posterURL, alt string) *html.Node {
	if posterURL == "" {
		return ElText("div", "🎬", "class", "movie-poster-tile")
	}
	return El("img", "src", posterURL, "alt", alt, "class", "movie-poster-img", "loading", "lazy")
}

// MetaLine formats "1995 • Action", dropping whichever part is missing.
func MetaLine(year int, genre string) string {
	var parts []string
	if year > 0 {
		parts = append(parts, strconv.Itoa(year))
	}
	if genre != "" {
		parts = append(parts, genre)
	}
	return strings.Join(parts, " • ")
}

// RateURL is the link that opens the rating modal for a movie.
func RateURL(id models.MovieID, title string) string {
	q := url.Values{"movie_id": {id.String()}}
	if title != "" {
		q.Set("title", title)
	}
	return "/rate?" + q.Encode()
}

func tileTitle(m models.MovieRecord) string {
	switch {
	case m.Title != "":
		return m.Title
	case m.Movie != "":
		return m.Movie
	default:
		return "(untitled)"
	}
}

func metric(m models.MovieRecord, src Source) *html.Node {
	switch src {
	case SourceCatalog:
		return ElText("div", fmt.Sprintf("★ %.2f", deref(m.AvgRating)), "class", "movie-tile-rating")
	case SourceRecommendations:
		label := "Score"
		if m.Score != nil && *m.Score <= similarityCeiling {
			label = "Similarity"
		}
		return ElText("div", fmt.Sprintf("%s: %.3f", label, deref(m.Score)), "class", "movie-tile-meta movie-tile-score")
	case SourceRatings:
		return ElText("div", "★ "+strconv.FormatFloat(deref(m.Rating), 'f', -1, 64)+"/5", "class", "movie-tile-rating")
	case SourceActionRecs:
		if m.Rating == nil {
			return nil
		}
		return ElText("div", fmt.Sprintf("Predicted: %.1f", *m.Rating), "class", "movie-tile-rating")
	default:
		return nil
	}
}

func removeIcon(kind string) string {
	if kind == "favorites" {
		return "♥"
	}
	return "🔖"
}

func deref(f *float64) float64 {
	if f == nil {
		return 0
	}
	return *f
}
