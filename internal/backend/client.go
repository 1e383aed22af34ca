package backend

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"movie-recommender-web/internal/metrics"
	"movie-recommender-web/internal/models"
)

const buttonClickPath = "/api/button-click"

// Client talks to the movie backend on behalf of one browser session. The
// cookie jar carries the backend session cookie, so one Client must never be
// shared between users.
type Client struct {
	baseURL string
	http    *http.Client
}

// NewClient creates a backend client bound to jar. A zero timeout disables
// the client-side deadline.
func NewClient(baseURL string, jar http.CookieJar, timeout time.Duration) *Client {
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		http: &http.Client{
			Jar:     jar,
			Timeout: timeout,
		},
	}
}

// CatalogQuery is the page/page_size/sort/dir contract of /api/movies.
type CatalogQuery struct {
	Genre    string
	Sort     string
	Dir      string
	Page     int
	PageSize int
}

// Values encodes the query, dropping empty values.
func (q CatalogQuery) Values() url.Values {
	v := url.Values{}
	if q.Genre != "" {
		v.Set("genre", q.Genre)
	}
	if q.Sort != "" {
		v.Set("sort", q.Sort)
	}
	if q.Dir != "" {
		v.Set("dir", q.Dir)
	}
	if q.Page > 0 {
		v.Set("page", strconv.Itoa(q.Page))
	}
	if q.PageSize > 0 {
		v.Set("page_size", strconv.Itoa(q.PageSize))
	}
	return v
}

// ---- Session ----

// Session returns the backend's view of the current session.
func (c *Client) Session(ctx context.Context) (*models.Session, error) {
	var s models.Session
	if err := c.getJSON(ctx, "session", "/session", nil, &s); err != nil {
		return nil, err
	}
	return &s, nil
}

// Login starts a backend session for username.
func (c *Client) Login(ctx context.Context, username string) error {
	return c.postJSON(ctx, "login", "/login", map[string]string{"username": username}, nil)
}

// Logout ends the backend session.
func (c *Client) Logout(ctx context.Context) error {
	return c.postJSON(ctx, "logout", "/logout", nil, nil)
}

// ---- Actions ----

// ButtonClick posts a named action with its payload to the dispatcher
// endpoint. A 2xx response carrying an error field is returned as-is; the
// caller decides how to surface it.
func (c *Client) ButtonClick(ctx context.Context, button string, payload map[string]any) (*models.ActionResult, error) {
	body := make(map[string]any, len(payload)+1)
	for k, v := range payload {
		body[k] = v
	}
	body["button"] = button

	var result models.ActionResult
	if err := c.postJSON(ctx, "button-click", buttonClickPath, body, &result); err != nil {
		return nil, err
	}
	return &result, nil
}

// ---- Movies ----

// ContentRecommendations fetches the top k content-based recommendations.
func (c *Client) ContentRecommendations(ctx context.Context, k int) ([]models.MovieRecord, error) {
	var resp models.RecommendationsResponse
	q := url.Values{"k": {strconv.Itoa(k)}}
	if err := c.getJSON(ctx, "recommendations", "/api/recommendations/content", q, &resp); err != nil {
		return nil, err
	}
	if resp.Error != "" {
		return nil, &APIError{StatusCode: http.StatusOK, Message: resp.Error, Reported: resp.Error}
	}
	return resp.Items, nil
}

// ListMovies fetches one catalog page.
func (c *Client) ListMovies(ctx context.Context, q CatalogQuery) (*models.CatalogPage, error) {
	var page models.CatalogPage
	if err := c.getJSON(ctx, "movies", "/api/movies", q.Values(), &page); err != nil {
		return nil, err
	}
	return &page, nil
}

// Movie fetches a single movie record.
func (c *Client) Movie(ctx context.Context, id models.MovieID) (*models.MovieRecord, error) {
	var m models.MovieRecord
	if err := c.getJSON(ctx, "movie", "/api/movies/"+id.String(), nil, &m); err != nil {
		return nil, err
	}
	if m.MovieID == 0 {
		m.MovieID = id
	}
	return &m, nil
}

// Search runs a title search.
func (c *Client) Search(ctx context.Context, query string, limit int) ([]models.MovieRecord, error) {
	var resp models.SearchResponse
	q := url.Values{"q": {query}, "limit": {strconv.Itoa(limit)}}
	if err := c.getJSON(ctx, "search", "/api/movies/search", q, &resp); err != nil {
		return nil, err
	}
	return resp.Results, nil
}

// Genres lists the catalog genres.
func (c *Client) Genres(ctx context.Context) ([]string, error) {
	var resp models.GenresResponse
	if err := c.getJSON(ctx, "genres", "/api/genres", nil, &resp); err != nil {
		return nil, err
	}
	return resp.Genres, nil
}

// Stats returns global rating statistics.
func (c *Client) Stats(ctx context.Context) (*models.Statistics, error) {
	return c.stats(ctx, "stats", "/api/stats")
}

// UserStats returns the logged-in user's rating statistics.
func (c *Client) UserStats(ctx context.Context) (*models.Statistics, error) {
	return c.stats(ctx, "user-stats", "/api/user/stats")
}

func (c *Client) stats(ctx context.Context, endpoint, path string) (*models.Statistics, error) {
	var s models.Statistics
	if err := c.getJSON(ctx, endpoint, path, nil, &s); err != nil {
		return nil, err
	}
	s = s.Normalized()
	return &s, nil
}

// Forward sends a raw request to the backend with this client's cookies.
// The caller owns the response body.
func (c *Client) Forward(ctx context.Context, method, pathAndQuery string, body io.Reader, header http.Header) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+pathAndQuery, body)
	if err != nil {
		return nil, err
	}
	for k, vals := range header {
		for _, v := range vals {
			req.Header.Add(k, v)
		}
	}

	started := time.Now()
	resp, err := c.http.Do(req)
	if err != nil {
		metrics.ObserveBackend("forward", 0, started)
		return nil, fmt.Errorf("%w: %s %s: %w", ErrUnavailable, method, pathAndQuery, err)
	}
	metrics.ObserveBackend("forward", resp.StatusCode, started)
	return resp, nil
}

// ---- HTTP helpers ----

func (c *Client) getJSON(ctx context.Context, endpoint, path string, query url.Values, out any) error {
	target := c.baseURL + path
	if len(query) > 0 {
		target += "?" + query.Encode()
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
	if err != nil {
		return err
	}
	return c.do(req, endpoint, out)
}

func (c *Client) postJSON(ctx context.Context, endpoint, path string, in, out any) error {
	var body io.Reader
	if in != nil {
		data, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("encode %s request: %w", endpoint, err)
		}
		body = bytes.NewReader(data)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, body)
	if err != nil {
		return err
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	return c.do(req, endpoint, out)
}

func (c *Client) do(req *http.Request, endpoint string, out any) error {
	slog.Debug("backend request", "method", req.Method, "url", req.URL.String())

	started := time.Now()
	resp, err := c.http.Do(req)
	if err != nil {
		metrics.ObserveBackend(endpoint, 0, started)
		return fmt.Errorf("%w: %s %s: %w", ErrUnavailable, req.Method, req.URL.Path, err)
	}
	defer resp.Body.Close()
	metrics.ObserveBackend(endpoint, resp.StatusCode, started)

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return decodeError(resp)
	}
	if out == nil {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("%w: decode %s response: %w", ErrUnavailable, endpoint, err)
	}
	return nil
}
