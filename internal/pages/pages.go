// Package pages holds the page controllers. A controller owns the view
// state of one page in one workspace and turns user requests into rendered
// fragments or navigations.
package pages

import (
	"context"
	"errors"
	"net/http"
	"strconv"

	"golang.org/x/net/html"

	"movie-recommender-web/internal/backend"
	"movie-recommender-web/internal/models"
)

// Backend is the part of the backend API the pages read from.
type Backend interface {
	ButtonClick(ctx context.Context, button string, payload map[string]any) (*models.ActionResult, error)
	ListMovies(ctx context.Context, q backend.CatalogQuery) (*models.CatalogPage, error)
	Movie(ctx context.Context, id models.MovieID) (*models.MovieRecord, error)
	Search(ctx context.Context, query string, limit int) ([]models.MovieRecord, error)
	Genres(ctx context.Context) ([]string, error)
	UserStats(ctx context.Context) (*models.Statistics, error)
}

type SessionChecker interface {
	Username(ctx context.Context) string
}

// View is what a controller hands back to the HTTP layer: either content to
// render inside the page layout or a navigation.
type View struct {
	Title   string
	Active  string
	Query   string
	Content []*html.Node

	// Redirect is answered instead of rendering. Replace redirects keep the
	// history entry (302), push redirects add one (303).
	Redirect string
	Replace  bool
}

// Status returns the HTTP status for a redirecting view.
func (v View) Status() int {
	if v.Replace {
		return http.StatusFound
	}
	return http.StatusSeeOther
}

func push(url string) View    { return View{Redirect: url} }
func replace(url string) View { return View{Redirect: url, Replace: true} }

// LoginURL is where pages that require a user send a logged-out visitor.
const LoginURL = "/?login=required"

// ErrSuperseded is returned when a newer request for the same view finished
// first. The caller should show the current state instead.
var ErrSuperseded = errors.New("superseded by a newer request")

// failureText renders a backend error the way the catalog shows it.
func failureText(err error) string {
	var apiErr *backend.APIError
	if errors.As(err, &apiErr) {
		return "HTTP " + strconv.Itoa(apiErr.StatusCode)
	}
	return err.Error()
}
