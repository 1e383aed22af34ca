package middleware

import (
	"log/slog"
	"strings"
	"time"

	"github.com/gofiber/fiber/v3"
	"github.com/google/uuid"

	"movie-recommender-web/internal/workspace"
)

// SessionCookie identifies the browser session and its workspace.
const SessionCookie = "sid"

const workspaceKey = "workspace"

var publicPrefixes = []string{"/health", "/metrics", "/static"}

func isPublic(path string) bool {
	for _, prefix := range publicPrefixes {
		if strings.HasPrefix(path, prefix) {
			return true
		}
	}
	return false
}

// Session attaches the caller's workspace to the request, issuing a new
// session id when the cookie is missing or malformed. Public paths bypass it.
func Session(m *workspace.Manager, secure bool, ttl time.Duration) fiber.Handler {
	return func(c fiber.Ctx) error {
		if isPublic(c.Path()) {
			return c.Next()
		}

		id := c.Cookies(SessionCookie)
		if _, err := uuid.Parse(id); err != nil {
			id = uuid.NewString()
		}

		w, err := m.Acquire(id)
		if err != nil {
			slog.Error("failed to create workspace", "error", err)
			return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
				"error": "failed to start session",
			})
		}

		c.Cookie(&fiber.Cookie{
			Name:     SessionCookie,
			Value:    id,
			Path:     "/",
			MaxAge:   int(ttl.Seconds()),
			HTTPOnly: true,
			Secure:   secure,
			SameSite: fiber.CookieSameSiteLaxMode,
		})
		c.Locals(workspaceKey, w)
		return c.Next()
	}
}

// Workspace returns the workspace attached by Session, or nil.
func Workspace(c fiber.Ctx) *workspace.Workspace {
	w, _ := c.Locals(workspaceKey).(*workspace.Workspace)
	return w
}
