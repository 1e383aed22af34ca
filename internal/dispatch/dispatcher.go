// Package dispatch posts named user actions to the backend's button-click
// endpoint and routes the answer to a display.
package dispatch

import (
	"context"
	"errors"
	"log/slog"
	"strings"

	"movie-recommender-web/internal/backend"
	"movie-recommender-web/internal/localstore"
	"movie-recommender-web/internal/models"
)

// Actions understood by the backend.
const (
	ViewRatings    = "view_ratings_button"
	ViewStatistics = "view_statistics_button"
	GetRecs        = "get_rec_button"
	AddRating      = "add_rating_submit"
	RemoveRating   = "remove_rating_button"
	Search         = "search"
)

// SourceRecs marks an action result holding predicted ratings.
const SourceRecs = "recs"

const (
	loginRequired    = "Please log in to use this action."
	requestFailed    = "Request failed."
	contactFailed    = "Error contacting backend."
	nothingToDisplay = "No movies to display."
)

var (
	ErrNotLoggedIn   = errors.New("not logged in")
	ErrUnknownAction = errors.New("unknown action")
)

// Known reports whether button can be forwarded to the backend.
func Known(button string) bool {
	switch button {
	case ViewRatings, ViewStatistics, GetRecs, AddRating, RemoveRating, Search:
		return true
	}
	for _, prefix := range []string{"view_", "get_", "remove_"} {
		if strings.HasPrefix(button, prefix) {
			return true
		}
	}
	return false
}

// Mutates reports whether a successful button changes the user's ratings.
func Mutates(button string) bool {
	return button == AddRating || button == RemoveRating
}

// Display receives the outcome of an action.
type Display interface {
	ShowMessage(text string)
	ShowError(text string)
	ShowMovies(records []models.MovieRecord, source string)
	ShowStatistics(stats models.Statistics)
}

type Backend interface {
	ButtonClick(ctx context.Context, button string, payload map[string]any) (*models.ActionResult, error)
}

type SessionChecker interface {
	Username(ctx context.Context) string
}

// Dispatcher is the single entry point for button actions.
type Dispatcher struct {
	backend Backend
	session SessionChecker
	storage *localstore.SessionStorage
}

func New(b Backend, s SessionChecker, storage *localstore.SessionStorage) *Dispatcher {
	return &Dispatcher{backend: b, session: s, storage: storage}
}

// Dispatch runs button with payload and shows the outcome on display. The
// button is remembered as the last action before the login check. The
// returned result is nil whenever the action failed.
func (d *Dispatcher) Dispatch(ctx context.Context, button string, payload map[string]any, display Display) (*models.ActionResult, error) {
	d.storage.Set(localstore.LastButtonKey, button)

	if d.session.Username(ctx) == "" {
		display.ShowMessage(loginRequired)
		return nil, ErrNotLoggedIn
	}
	if !Known(button) {
		display.ShowError(requestFailed)
		return nil, ErrUnknownAction
	}

	result, err := d.backend.ButtonClick(ctx, button, payload)
	if err != nil {
		display.ShowError(FailureMessage(err))
		slog.Error("action failed", "button", button, "error", err)
		return nil, err
	}
	if result.Failed() {
		fallback := result.Message
		if fallback == "" {
			fallback = requestFailed
		}
		msg := result.FailureMessage(fallback)
		display.ShowError(msg)
		return nil, &backend.APIError{StatusCode: 200, Message: msg, Reported: result.Error}
	}

	route(button, result, display)
	return result, nil
}

func route(button string, result *models.ActionResult, display Display) {
	if button == ViewStatistics {
		display.ShowStatistics(result.StatisticsOrEmpty())
		return
	}
	if len(result.Ratings) == 0 {
		if result.Message != "" {
			display.ShowMessage(result.Message)
			return
		}
		display.ShowMessage(nothingToDisplay)
		return
	}
	display.ShowMovies(result.Ratings, result.Source)
}

// FailureMessage maps an action error to the text shown to the user.
func FailureMessage(err error) string {
	var apiErr *backend.APIError
	switch {
	case errors.As(err, &apiErr):
		if apiErr.Reported != "" {
			return apiErr.Reported
		}
		return requestFailed
	case errors.Is(err, ErrNotLoggedIn):
		return loginRequired
	default:
		return contactFailed
	}
}

// LastAction returns the last dispatched button, or "".
func (d *Dispatcher) LastAction() string {
	return d.storage.Get(localstore.LastButtonKey)
}

// Refresh re-runs the last action when it is a read-only view. It reports
// whether anything was dispatched.
func (d *Dispatcher) Refresh(ctx context.Context, display Display) (bool, error) {
	last := d.LastAction()
	if last == "" || !refreshable(last) {
		return false, nil
	}
	_, err := d.Dispatch(ctx, last, nil, display)
	return true, err
}

func refreshable(button string) bool {
	return strings.HasPrefix(button, "view_") || strings.HasPrefix(button, "get_")
}
