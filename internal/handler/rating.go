package handler

import (
	"errors"
	"strconv"

	"github.com/gofiber/fiber/v3"

	"movie-recommender-web/internal/middleware"
	"movie-recommender-web/internal/models"
	"movie-recommender-web/internal/rating"
	"movie-recommender-web/internal/workspace"
)

// openRating opens the modal and sends the user back to the page it was
// opened from, which renders it on top.
func openRating(c fiber.Ctx) error {
	w := middleware.Workspace(c)
	back, ok := localPath(c.Query("return"))
	if !ok {
		if back, ok = localPath(c.Get(fiber.HeaderReferer)); !ok {
			back = w.RateReturn()
		}
	}

	id, _ := strconv.Atoi(c.Query("movie_id"))
	err := w.Rating.Open(c.Context(), models.MovieID(id), c.Query("title"))
	switch {
	case errors.Is(err, rating.ErrNotLoggedIn):
		w.SetLoginStatus(rating.LoginMessage, true)
	case errors.Is(err, rating.ErrNoMovie):
		return c.Status(fiber.StatusBadRequest).JSON(ErrorResponse{Error: "movie_id required"})
	case err != nil:
		return c.Status(fiber.StatusInternalServerError).JSON(ErrorResponse{Error: "failed to open rating"})
	default:
		w.SetRateReturn(back)
	}
	return seeOther(c, back)
}

func submitRating(c fiber.Ctx) error {
	w := middleware.Workspace(c)
	if raw := c.FormValue("rating"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil {
			n = 0
		}
		if err := w.Rating.Select(n); err != nil {
			return afterRating(c, w, err)
		}
	}
	return afterRating(c, w, w.Rating.Submit(c.Context()))
}

func removeRating(c fiber.Ctx) error {
	w := middleware.Workspace(c)
	return afterRating(c, w, w.Rating.Remove(c.Context(), c.FormValue("confirm") == "yes"))
}

func toggleWatchlist(c fiber.Ctx) error {
	w := middleware.Workspace(c)
	return afterRating(c, w, w.Rating.ToggleWatchlist(c.Context()))
}

func toggleFavorite(c fiber.Ctx) error {
	w := middleware.Workspace(c)
	return afterRating(c, w, w.Rating.ToggleFavorite(c.Context()))
}

func closeRating(c fiber.Ctx) error {
	w := middleware.Workspace(c)
	w.Rating.Close()
	return seeOther(c, w.RateReturn())
}

// afterRating returns to the page behind the modal. Failures keep the modal
// open with its message, so they need no further handling here.
func afterRating(c fiber.Ctx, w *workspace.Workspace, err error) error {
	if errors.Is(err, rating.ErrNotLoggedIn) {
		w.SetLoginStatus(rating.LoginMessage, true)
	}
	return seeOther(c, w.RateReturn())
}
