// Package handler maps the frontend's HTTP surface onto the workspace of
// the calling browser session.
package handler

import (
	"errors"
	"log/slog"
	"net/url"
	"strconv"
	"strings"

	"github.com/gofiber/fiber/v3"
	"github.com/gofiber/fiber/v3/middleware/adaptor"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"movie-recommender-web/internal/localstore"
	"movie-recommender-web/internal/middleware"
	"movie-recommender-web/internal/models"
	"movie-recommender-web/internal/pages"
	"movie-recommender-web/internal/proxy"
	"movie-recommender-web/internal/rating"
	"movie-recommender-web/internal/render"
	"movie-recommender-web/internal/session"
	"movie-recommender-web/internal/workspace"
)

const (
	msgLoginRequired = "Please log in first."
	msgLogoutFailed  = "Logout failed."
)

// ErrorResponse is the JSON error body of non-page endpoints.
type ErrorResponse struct {
	Error string `json:"error"`
}

// Register mounts every route on app. The session middleware must already be
// installed.
func Register(app *fiber.App) {
	app.Get("/health", Health)
	app.Get("/metrics", adaptor.HTTPHandler(promhttp.Handler()))
	RegisterStatic(app)

	app.Get(pages.HomePath, home)
	app.Post("/login", login)
	app.Post("/logout", logout)
	app.Post("/action/:button", action)

	app.Get(pages.BrowsePath, browse)
	app.Post("/browse/filters", browseFilters)
	app.Post("/browse/reset", browseReset)
	app.Post("/browse/recs", browseRecs)
	app.Get("/browse/page", browsePage)
	app.Get("/browse/back", browseBack)
	app.Get("/browse/forward", browseForward)

	app.Get(pages.ProfilePath, profile)
	app.Post("/lists/:kind/remove", removeFromList)

	app.Get(pages.SearchPath, search)
	app.Get("/autocomplete", autocomplete)

	app.Get("/rate", openRating)
	app.Post("/rate", submitRating)
	app.Post("/rate/remove", removeRating)
	app.Post("/rate/watchlist", toggleWatchlist)
	app.Post("/rate/favorite", toggleFavorite)
	app.Post("/rate/close", closeRating)

	app.All("/api/*", proxy.Forward())
}

func Health(c fiber.Ctx) error {
	return c.JSON(fiber.Map{
		"status":  "ok",
		"service": "movie-recommender-web",
	})
}

// respond answers a controller view: a redirect, or the page layout around
// its content with the rating modal on top when it is open.
func respond(c fiber.Ctx, w *workspace.Workspace, v pages.View) error {
	if v.Redirect != "" {
		return c.Redirect().Status(v.Status()).To(v.Redirect)
	}

	username := w.Session.Username(c.Context())
	status, failed := w.LoginStatus()
	if c.Query("login") == "required" && username == "" {
		status, failed = msgLoginRequired, true
	}
	layout := render.Layout{
		Title:       v.Title,
		Active:      v.Active,
		Username:    username,
		LoginStatus: status,
		LoginError:  failed,
		Query:       v.Query,
	}

	content := v.Content
	if m, open := w.Rating.Current(); open {
		content = append(content, render.Modal(modalView(m)))
	}

	c.Set(fiber.HeaderContentType, fiber.MIMETextHTMLCharsetUTF8)
	return c.SendString(render.String(render.Page(layout, content...)))
}

func modalView(m rating.Modal) render.ModalView {
	return render.ModalView{
		MovieID:       m.MovieID,
		Title:         m.Title,
		Selected:      m.Selected,
		HasExisting:   m.Existing > 0,
		InWatchlist:   m.InWatchlist,
		InFavorites:   m.InFavorites,
		Message:       m.Message,
		ConfirmRemove: m.ConfirmRemove,
	}
}

func seeOther(c fiber.Ctx, target string) error {
	return c.Redirect().Status(fiber.StatusSeeOther).To(target)
}

// localPath accepts only same-site paths, so redirects never leave the site.
func localPath(raw string) (string, bool) {
	if raw == "" {
		return "", false
	}
	u, err := url.Parse(raw)
	if err != nil || u.Path == "" || !strings.HasPrefix(u.Path, "/") || strings.HasPrefix(u.Path, "//") {
		return "", false
	}
	if u.RawQuery != "" {
		return u.Path + "?" + u.RawQuery, true
	}
	return u.Path, true
}

// ---- Home and session ----

func home(c fiber.Ctx) error {
	w := middleware.Workspace(c)
	return respond(c, w, w.Home.Show(c.Context()))
}

func login(c fiber.Ctx) error {
	w := middleware.Workspace(c)
	err := w.Session.Login(c.Context(), c.FormValue("username"))
	w.SetLoginStatus(session.LoginMessage(err), err != nil)
	return seeOther(c, pages.HomePath)
}

func logout(c fiber.Ctx) error {
	w := middleware.Workspace(c)
	if err := w.Session.Logout(c.Context()); err != nil {
		w.SetLoginStatus(msgLogoutFailed, true)
	} else {
		w.SetLoginStatus("", false)
	}
	return seeOther(c, pages.HomePath)
}

func action(c fiber.Ctx) error {
	w := middleware.Workspace(c)
	form := map[string]string{
		"movie_id": c.FormValue("movie_id"),
		"rating":   c.FormValue("rating"),
		"query":    c.FormValue("query"),
	}
	return respond(c, w, w.Home.Action(c.Context(), c.Params("button"), form))
}

// ---- Browse ----

func browse(c fiber.Ctx) error {
	w := middleware.Workspace(c)
	query, err := url.ParseQuery(string(c.Request().URI().QueryString()))
	if err != nil {
		query = url.Values{}
	}

	v, err := w.Browse.Show(c.Context(), query)
	if errors.Is(err, pages.ErrSuperseded) {
		return c.Redirect().Status(fiber.StatusFound).To(w.Browse.State().URL())
	}
	if err != nil {
		slog.Error("failed to render browse page", "error", err)
		return c.Status(fiber.StatusInternalServerError).JSON(ErrorResponse{Error: "failed to render page"})
	}
	return respond(c, w, v)
}

func browseFilters(c fiber.Ctx) error {
	w := middleware.Workspace(c)
	return respond(c, w, w.Browse.Apply(c.FormValue("genre"), c.FormValue("sort"), c.FormValue("dir")))
}

func browseReset(c fiber.Ctx) error {
	w := middleware.Workspace(c)
	return respond(c, w, w.Browse.Reset(c.Context()))
}

func browseRecs(c fiber.Ctx) error {
	w := middleware.Workspace(c)
	return respond(c, w, w.Browse.ShowRecs())
}

func browsePage(c fiber.Ctx) error {
	w := middleware.Workspace(c)
	return respond(c, w, w.Browse.GoToPage(fiber.Query(c, "n", 0)))
}

func browseBack(c fiber.Ctx) error {
	w := middleware.Workspace(c)
	return respond(c, w, w.Browse.Back())
}

func browseForward(c fiber.Ctx) error {
	w := middleware.Workspace(c)
	return respond(c, w, w.Browse.Forward())
}

// ---- Profile ----

func profile(c fiber.Ctx) error {
	w := middleware.Workspace(c)
	v, err := w.Profile.Show(c.Context(), pages.ParseTab(c.Query("tab")))
	if err != nil {
		slog.Error("failed to render profile", "error", err)
		return c.Status(fiber.StatusInternalServerError).JSON(ErrorResponse{Error: "failed to render page"})
	}
	return respond(c, w, v)
}

func removeFromList(c fiber.Ctx) error {
	w := middleware.Workspace(c)
	id, err := strconv.Atoi(c.FormValue("movie_id"))
	if err != nil || id <= 0 {
		return c.Status(fiber.StatusBadRequest).JSON(ErrorResponse{Error: "invalid movie_id"})
	}

	v, err := w.Profile.RemoveFromList(c.Context(), c.Params("kind"), models.MovieID(id),
		c.FormValue("title"), c.FormValue("confirm") == "yes")
	if errors.Is(err, localstore.ErrUnknownKind) {
		return c.Status(fiber.StatusNotFound).JSON(ErrorResponse{Error: err.Error()})
	}
	if err != nil {
		slog.Error("failed to remove from list", "kind", c.Params("kind"), "movie_id", id, "error", err)
		return c.Status(fiber.StatusInternalServerError).JSON(ErrorResponse{Error: "failed to update list"})
	}
	return respond(c, w, v)
}

// ---- Search ----

func search(c fiber.Ctx) error {
	w := middleware.Workspace(c)
	return respond(c, w, w.Search.Results(c.Context(), c.Query("q")))
}

// autocomplete answers the dropdown fragment, or 204 when the query is too
// short, was superseded by a later keystroke or failed.
func autocomplete(c fiber.Ctx) error {
	w := middleware.Workspace(c)
	n, err := w.Search.Autocomplete(c.Context(), c.Query("q"))
	if err != nil {
		slog.Warn("autocomplete failed", "error", err)
		return c.SendStatus(fiber.StatusNoContent)
	}
	if n == nil {
		return c.SendStatus(fiber.StatusNoContent)
	}
	c.Set(fiber.HeaderContentType, fiber.MIMETextHTMLCharsetUTF8)
	return c.SendString(render.String(n))
}
