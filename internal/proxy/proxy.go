// Package proxy passes /api requests through to the backend with the
// caller's backend session.
package proxy

import (
	"bytes"
	"io"
	"log/slog"
	"net/http"

	"github.com/gofiber/fiber/v3"

	"movie-recommender-web/internal/middleware"
)

// hop-by-hop and cookie headers are owned by each side of the proxy.
var skipResponseHeaders = map[string]bool{
	"Connection":        true,
	"Keep-Alive":        true,
	"Transfer-Encoding": true,
	"Content-Length":    true,
	"Set-Cookie":        true,
}

// Forward sends the request to the backend through the workspace's client,
// so its cookie jar authenticates the call.
func Forward() fiber.Handler {
	return func(c fiber.Ctx) error {
		w := middleware.Workspace(c)
		if w == nil {
			return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
				"error": "no session",
			})
		}

		target := c.Path()
		if q := string(c.Request().URI().QueryString()); q != "" {
			target += "?" + q
		}

		slog.Debug("proxying request", "method", c.Method(), "to", target)

		var body io.Reader
		if len(c.Body()) > 0 {
			body = bytes.NewReader(c.Body())
		}
		header := http.Header{}
		header.Set("Content-Type", c.Get("Content-Type", "application/json"))
		header.Set("Accept", c.Get("Accept", "application/json"))
		header.Set("X-Forwarded-For", c.IP())
		header.Set("X-Forwarded-Host", c.Hostname())

		resp, err := w.Backend.Forward(c.Context(), c.Method(), target, body, header)
		if err != nil {
			slog.Error("proxy request failed", "path", target, "error", err)
			return c.Status(fiber.StatusBadGateway).JSON(fiber.Map{
				"error": "backend unavailable",
			})
		}
		defer resp.Body.Close()

		data, err := io.ReadAll(resp.Body)
		if err != nil {
			return c.Status(fiber.StatusBadGateway).JSON(fiber.Map{
				"error": "failed to read backend response",
			})
		}

		for key, vals := range resp.Header {
			if skipResponseHeaders[http.CanonicalHeaderKey(key)] {
				continue
			}
			for _, val := range vals {
				c.Set(key, val)
			}
		}

		return c.Status(resp.StatusCode).Send(data)
	}
}
