// Package session keeps a workspace's view of who is logged in to the backend.
package session

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"sync"

	"movie-recommender-web/internal/backend"
	"movie-recommender-web/internal/events"
	"movie-recommender-web/internal/localstore"
	"movie-recommender-web/internal/models"
)

var ErrUsernameRequired = errors.New("username required")

// Backend is the part of the backend API the session client needs.
type Backend interface {
	Session(ctx context.Context) (*models.Session, error)
	Login(ctx context.Context, username string) error
	Logout(ctx context.Context) error
}

// Client checks, starts and ends the backend session. Whenever it observes a
// different user than before it publishes UserLoggedOut for the old user and
// UserLoggedIn for the new one.
type Client struct {
	backend Backend
	bus     *events.Bus
	storage *localstore.SessionStorage

	mu   sync.Mutex
	last string
}

func NewClient(b Backend, bus *events.Bus, storage *localstore.SessionStorage) *Client {
	return &Client{backend: b, bus: bus, storage: storage}
}

// Username asks the backend who is logged in. Any failure reads as logged out.
func (c *Client) Username(ctx context.Context) string {
	s, err := c.backend.Session(ctx)
	if err != nil {
		slog.Warn("session check failed", "error", err)
		return ""
	}
	c.observe(s.Username)
	return s.Username
}

// LoggedIn is a shorthand for Username(ctx) != "".
func (c *Client) LoggedIn(ctx context.Context) bool {
	return c.Username(ctx) != ""
}

// Login starts a session for username after trimming it.
func (c *Client) Login(ctx context.Context, username string) error {
	username = strings.TrimSpace(username)
	if username == "" {
		return ErrUsernameRequired
	}
	if err := c.backend.Login(ctx, username); err != nil {
		slog.Error("login failed", "username", username, "error", err)
		return err
	}
	slog.Info("user logged in", "username", username)
	c.observe(username)
	return nil
}

// Logout ends the session. UserLoggedOut is published even when no user was
// observed before.
func (c *Client) Logout(ctx context.Context) error {
	if err := c.backend.Logout(ctx); err != nil {
		slog.Error("logout failed", "error", err)
		return err
	}
	prev := c.swap("")
	slog.Info("user logged out", "username", prev)
	c.bus.UserLoggedOut.Publish(events.UserLoggedOut{Username: prev})
	return nil
}

func (c *Client) observe(username string) {
	prev := c.swap(username)
	if prev == username {
		return
	}
	if prev != "" {
		c.bus.UserLoggedOut.Publish(events.UserLoggedOut{Username: prev})
	}
	if username != "" {
		c.bus.UserLoggedIn.Publish(events.UserLoggedIn{Username: username})
	}
}

func (c *Client) swap(username string) string {
	c.mu.Lock()
	defer c.mu.Unlock()
	prev := c.last
	c.last = username
	if c.storage != nil {
		c.storage.Set(localstore.UsernameKey, username)
	}
	return prev
}

// LoginMessage turns a Login error into the status line shown to the user.
func LoginMessage(err error) string {
	var apiErr *backend.APIError
	switch {
	case err == nil:
		return "Logged in"
	case errors.Is(err, ErrUsernameRequired):
		return "Enter a username."
	case errors.As(err, &apiErr):
		return "Error logging in: " + apiErr.Message
	default:
		return "Error logging in (network)."
	}
}
