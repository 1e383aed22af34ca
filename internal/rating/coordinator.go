// Package rating drives the rating modal: Closed -> Open(movie) -> Closed.
//
// Saving or removing a rating invalidates the recommendation cache, starts a
// background reload and publishes RatingChanged so open pages can refresh.
// A failed transition leaves the modal open with a message.
package rating

import (
	"context"
	"errors"
	"log/slog"
	"sync"

	"movie-recommender-web/internal/backend"
	"movie-recommender-web/internal/dispatch"
	"movie-recommender-web/internal/events"
	"movie-recommender-web/internal/localstore"
	"movie-recommender-web/internal/metrics"
	"movie-recommender-web/internal/models"
)

var (
	ErrNoMovie       = errors.New("movie id required")
	ErrNotLoggedIn   = errors.New("not logged in")
	ErrNotOpen       = errors.New("rating modal is not open")
	ErrNoSelection   = errors.New("no rating selected")
	ErrInvalidRating = errors.New("rating must be between 1 and 5")
	ErrNoRating      = errors.New("movie has no rating to remove")
	ErrNotConfirmed  = errors.New("removal not confirmed")
)

const (
	msgLoginToRate   = "Please log in to rate movies."
	msgLoginFirst    = "Please log in first."
	msgSelectRating  = "Please select a rating."
	msgSaveFailed    = "Failed to save rating"
	msgSaveRetry     = "Failed to save rating. Please try again."
	msgRemoveFailed  = "Failed to remove rating. Please try again."
	msgListFailed    = "Failed to update list."
	msgInvalidRating = "Please select a rating between 1 and 5."
)

// LoginMessage is the text shown when a logged-out user tries to rate.
const LoginMessage = msgLoginToRate

type State int

const (
	Closed State = iota
	Open
)

func (s State) String() string {
	if s == Open {
		return "open"
	}
	return "closed"
}

// Modal is what the open modal shows.
type Modal struct {
	MovieID models.MovieID
	Title   string
	// Existing is the user's current rating, 0 when unrated.
	Existing      int
	Selected      int
	InWatchlist   bool
	InFavorites   bool
	Message       string
	ConfirmRemove bool
}

type Backend interface {
	ButtonClick(ctx context.Context, button string, payload map[string]any) (*models.ActionResult, error)
}

type SessionChecker interface {
	Username(ctx context.Context) string
}

// Cache is the part of the recommendation cache a rating mutation touches.
type Cache interface {
	Invalidate()
	Preload(ctx context.Context)
}

type Coordinator struct {
	backend Backend
	session SessionChecker
	cache   Cache
	lists   *localstore.Lists
	bus     *events.Bus

	// op serializes transitions; mu guards the fields below it.
	op    sync.Mutex
	mu    sync.Mutex
	state State
	modal Modal
}

func NewCoordinator(b Backend, s SessionChecker, cache Cache, lists *localstore.Lists, bus *events.Bus) *Coordinator {
	return &Coordinator{backend: b, session: s, cache: cache, lists: lists, bus: bus}
}

// Current returns the modal and whether it is open.
func (c *Coordinator) Current() (Modal, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.modal, c.state == Open
}

func (c *Coordinator) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// Open shows the modal for a movie, preselecting the user's existing rating.
// The modal stays closed when the user is logged out.
func (c *Coordinator) Open(ctx context.Context, id models.MovieID, title string) error {
	c.op.Lock()
	defer c.op.Unlock()

	if id == 0 {
		return ErrNoMovie
	}
	username := c.session.Username(ctx)
	if username == "" {
		return ErrNotLoggedIn
	}
	if title == "" {
		title = "Movie " + id.String()
	}
	m := Modal{MovieID: id, Title: title}

	result, err := c.backend.ButtonClick(ctx, dispatch.ViewRatings, nil)
	if err != nil {
		slog.Warn("failed to check existing rating", "movie_id", id, "error", err)
	} else if r, ok := result.FindRating(id); ok {
		m.Existing, m.Selected = r, r
	}

	if c.lists != nil {
		if m.InWatchlist, err = c.lists.Contains(ctx, localstore.Watchlist, username, id); err != nil {
			slog.Warn("failed to read watchlist", "username", username, "error", err)
		}
		if m.InFavorites, err = c.lists.Contains(ctx, localstore.Favorites, username, id); err != nil {
			slog.Warn("failed to read favorites", "username", username, "error", err)
		}
	}

	c.mu.Lock()
	c.state, c.modal = Open, m
	c.mu.Unlock()
	return nil
}

// Select picks the star rating to submit.
func (c *Coordinator) Select(n int) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.state != Open {
		return ErrNotOpen
	}
	if n < models.MinRating || n > models.MaxRating {
		c.modal.Message = msgInvalidRating
		return ErrInvalidRating
	}
	c.modal.Selected = n
	c.modal.Message = ""
	return nil
}

// Submit saves the selected rating.
func (c *Coordinator) Submit(ctx context.Context) error {
	c.op.Lock()
	defer c.op.Unlock()

	m, open := c.Current()
	if !open {
		return ErrNotOpen
	}
	if c.session.Username(ctx) == "" {
		return c.fail(ErrNotLoggedIn, msgLoginToRate)
	}
	if m.Selected == 0 {
		return c.fail(ErrNoSelection, msgSelectRating)
	}

	result, err := c.backend.ButtonClick(ctx, dispatch.AddRating, map[string]any{
		"movie_id": int(m.MovieID),
		"rating":   m.Selected,
	})
	if err == nil && result.Failed() {
		err = &backend.APIError{StatusCode: 200, Message: result.FailureMessage(msgSaveFailed), Reported: result.Error}
	}
	if err != nil {
		metrics.RatingMutations.WithLabelValues("submit", "error").Inc()
		slog.Error("failed to save rating", "movie_id", m.MovieID, "error", err)
		return c.fail(err, saveMessage(err))
	}

	metrics.RatingMutations.WithLabelValues("submit", "ok").Inc()
	slog.Info("rating saved", "movie_id", m.MovieID, "rating", m.Selected)
	c.changed(ctx, events.RatingChanged{MovieID: m.MovieID, Rating: m.Selected, Title: m.Title})
	return nil
}

// Remove deletes the user's rating. Without confirmation it only asks for
// one and returns ErrNotConfirmed.
func (c *Coordinator) Remove(ctx context.Context, confirmed bool) error {
	c.op.Lock()
	defer c.op.Unlock()

	m, open := c.Current()
	if !open {
		return ErrNotOpen
	}
	if m.Existing == 0 {
		return ErrNoRating
	}
	if !confirmed {
		c.mu.Lock()
		c.modal.ConfirmRemove = true
		c.mu.Unlock()
		return ErrNotConfirmed
	}

	result, err := c.backend.ButtonClick(ctx, dispatch.RemoveRating, map[string]any{"movie_id": int(m.MovieID)})
	if err == nil && result.Failed() {
		err = &backend.APIError{StatusCode: 200, Message: result.FailureMessage(msgRemoveFailed), Reported: result.Error}
	}
	if err != nil {
		metrics.RatingMutations.WithLabelValues("remove", "error").Inc()
		slog.Error("failed to remove rating", "movie_id", m.MovieID, "error", err)
		return c.fail(err, msgRemoveFailed)
	}

	metrics.RatingMutations.WithLabelValues("remove", "ok").Inc()
	slog.Info("rating removed", "movie_id", m.MovieID)
	c.changed(ctx, events.RatingChanged{MovieID: m.MovieID, Rating: 0, Title: m.Title})
	return nil
}

// ToggleWatchlist adds or removes the open movie from the watchlist.
func (c *Coordinator) ToggleWatchlist(ctx context.Context) error {
	return c.toggle(ctx, localstore.Watchlist)
}

// ToggleFavorite adds or removes the open movie from the favorites.
func (c *Coordinator) ToggleFavorite(ctx context.Context) error {
	return c.toggle(ctx, localstore.Favorites)
}

func (c *Coordinator) toggle(ctx context.Context, kind localstore.Kind) error {
	c.op.Lock()
	defer c.op.Unlock()

	m, open := c.Current()
	if !open {
		return ErrNotOpen
	}
	username := c.session.Username(ctx)
	if username == "" {
		return c.fail(ErrNotLoggedIn, msgLoginFirst)
	}
	added, err := c.lists.Toggle(ctx, kind, username, m.MovieID, m.Title)
	if err != nil {
		slog.Error("failed to update list", "kind", kind, "username", username, "error", err)
		return c.fail(err, msgListFailed)
	}

	c.mu.Lock()
	if kind == localstore.Watchlist {
		c.modal.InWatchlist = added
	} else {
		c.modal.InFavorites = added
	}
	c.modal.Message = ""
	c.mu.Unlock()

	c.bus.ListChanged.Publish(events.ListChanged{Kind: string(kind), Username: username, MovieID: m.MovieID, Added: added})
	return nil
}

// Close hides the modal and forgets its state.
func (c *Coordinator) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.state = Closed
	c.modal = Modal{}
}

// changed runs the post-mutation contract: drop the cached recommendations,
// start reloading them, tell subscribers and close.
func (c *Coordinator) changed(ctx context.Context, ev events.RatingChanged) {
	c.cache.Invalidate()
	c.cache.Preload(ctx)
	c.Close()
	c.bus.RatingChanged.Publish(ev)
}

func (c *Coordinator) fail(err error, msg string) error {
	c.mu.Lock()
	c.modal.Message = msg
	c.modal.ConfirmRemove = false
	c.mu.Unlock()
	return err
}

func saveMessage(err error) string {
	var apiErr *backend.APIError
	if errors.As(err, &apiErr) {
		if apiErr.Reported != "" {
			return apiErr.Reported
		}
		return msgSaveFailed
	}
	return msgSaveRetry
}
