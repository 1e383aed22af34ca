// Package backendtest runs an in-memory movie backend for tests. It keeps a
// cookie session per client and per-user ratings, like the real API.
package backendtest

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sort"
	"strconv"
	"strings"
	"sync"
	"testing"

	"movie-recommender-web/internal/models"
)

const sessionCookie = "session"

type Server struct {
	*httptest.Server

	mu      sync.Mutex
	movies  []models.MovieRecord
	ratings map[string]map[models.MovieID]int
	recs    []models.MovieRecord
	hits    map[string]int
}

// New starts a server seeded with movies and registers its shutdown.
func New(t testing.TB, movies ...models.MovieRecord) *Server {
	t.Helper()
	s := &Server{
		movies:  movies,
		ratings: make(map[string]map[models.MovieID]int),
		hits:    make(map[string]int),
	}
	mux := http.NewServeMux()
	mux.HandleFunc("GET /session", s.session)
	mux.HandleFunc("POST /login", s.login)
	mux.HandleFunc("POST /logout", s.logout)
	mux.HandleFunc("POST /api/button-click", s.buttonClick)
	mux.HandleFunc("GET /api/recommendations/content", s.recommendations)
	mux.HandleFunc("GET /api/movies", s.list)
	mux.HandleFunc("GET /api/movies/search", s.search)
	mux.HandleFunc("GET /api/movies/{id}", s.movie)
	mux.HandleFunc("GET /api/genres", s.genres)
	mux.HandleFunc("GET /api/user/stats", s.stats)

	s.Server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		s.mu.Lock()
		s.hits[r.URL.Path]++
		s.mu.Unlock()
		mux.ServeHTTP(w, r)
	}))
	t.Cleanup(s.Close)
	return s
}

// SetRecommendations sets what the content recommender returns.
func (s *Server) SetRecommendations(recs []models.MovieRecord) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.recs = recs
}

// Rating returns a user's rating for a movie, 0 when unrated.
func (s *Server) Rating(user string, id models.MovieID) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.ratings[user][id]
}

// Hits returns how many requests reached path.
func (s *Server) Hits(path string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.hits[path]
}

func user(r *http.Request) string {
	c, err := r.Cookie(sessionCookie)
	if err != nil {
		return ""
	}
	return c.Value
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func (s *Server) session(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, models.Session{Username: user(r)})
}

func (s *Server) login(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Username string `json:"username"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil || body.Username == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "username required"})
		return
	}
	http.SetCookie(w, &http.Cookie{Name: sessionCookie, Value: body.Username, Path: "/"})
	writeJSON(w, http.StatusOK, map[string]bool{"ok": true})
}

func (s *Server) logout(w http.ResponseWriter, r *http.Request) {
	http.SetCookie(w, &http.Cookie{Name: sessionCookie, Value: "", Path: "/", MaxAge: -1})
	writeJSON(w, http.StatusOK, map[string]bool{"ok": true})
}

func (s *Server) buttonClick(w http.ResponseWriter, r *http.Request) {
	var body map[string]any
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "bad json"})
		return
	}
	u := user(r)
	if u == "" {
		writeJSON(w, http.StatusUnauthorized, map[string]string{"error": "not logged in"})
		return
	}
	id := models.MovieID(number(body["movie_id"]))

	s.mu.Lock()
	defer s.mu.Unlock()
	switch body["button"] {
	case "view_ratings_button":
		writeJSON(w, http.StatusOK, models.ActionResult{Ratings: s.userRatings(u)})
	case "add_rating_submit":
		rating := number(body["rating"])
		if s.find(id) == nil {
			writeJSON(w, http.StatusOK, models.ActionResult{Error: "Movie not found"})
			return
		}
		if s.ratings[u] == nil {
			s.ratings[u] = make(map[models.MovieID]int)
		}
		s.ratings[u][id] = rating
		writeJSON(w, http.StatusOK, models.ActionResult{Message: "Rating saved."})
	case "remove_rating_button":
		delete(s.ratings[u], id)
		writeJSON(w, http.StatusOK, models.ActionResult{Message: "Rating removed."})
	case "view_statistics_button":
		stats := s.userStats(u)
		writeJSON(w, http.StatusOK, models.ActionResult{Statistics: &stats})
	case "get_rec_button":
		writeJSON(w, http.StatusOK, models.ActionResult{Source: "recs", Ratings: s.recs})
	default:
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "Unknown button"})
	}
}

func (s *Server) recommendations(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if user(r) == "" {
		writeJSON(w, http.StatusOK, models.RecommendationsResponse{Error: "not logged in"})
		return
	}
	writeJSON(w, http.StatusOK, models.RecommendationsResponse{Items: s.recs})
}

func (s *Server) list(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	page, _ := strconv.Atoi(q.Get("page"))
	size, _ := strconv.Atoi(q.Get("page_size"))
	page, size = max(page, 1), max(size, 1)

	s.mu.Lock()
	var items []models.MovieRecord
	for _, m := range s.movies {
		if g := q.Get("genre"); g == "" || strings.Contains(m.Genres, g) {
			items = append(items, m)
		}
	}
	s.mu.Unlock()

	total := len(items)
	start := min((page-1)*size, total)
	end := min(start+size, total)
	writeJSON(w, http.StatusOK, models.CatalogPage{
		Items:   items[start:end],
		Page:    page,
		Total:   total,
		HasPrev: page > 1,
		HasNext: end < total,
	})
}

func (s *Server) search(w http.ResponseWriter, r *http.Request) {
	q := strings.ToLower(r.URL.Query().Get("q"))
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))

	s.mu.Lock()
	defer s.mu.Unlock()
	results := []models.MovieRecord{}
	for _, m := range s.movies {
		if strings.Contains(strings.ToLower(m.Title), q) && (limit <= 0 || len(results) < limit) {
			results = append(results, m)
		}
	}
	writeJSON(w, http.StatusOK, models.SearchResponse{Results: results})
}

func (s *Server) movie(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.Atoi(r.PathValue("id"))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid id"})
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	m := s.find(models.MovieID(id))
	if m == nil {
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "Not Found"})
		return
	}
	writeJSON(w, http.StatusOK, m)
}

func (s *Server) genres(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	defer s.mu.Unlock()
	seen := map[string]bool{}
	genres := []string{}
	for _, m := range s.movies {
		for _, g := range strings.Split(m.Genres, "|") {
			if g != "" && !seen[g] {
				seen[g] = true
				genres = append(genres, g)
			}
		}
	}
	sort.Strings(genres)
	writeJSON(w, http.StatusOK, models.GenresResponse{Genres: genres})
}

func (s *Server) stats(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	defer s.mu.Unlock()
	writeJSON(w, http.StatusOK, s.userStats(user(r)))
}

func (s *Server) find(id models.MovieID) *models.MovieRecord {
	for i := range s.movies {
		if s.movies[i].MovieID == id {
			m := s.movies[i]
			return &m
		}
	}
	return nil
}

func (s *Server) userRatings(u string) []models.MovieRecord {
	out := []models.MovieRecord{}
	for id, rating := range s.ratings[u] {
		rec := models.MovieRecord{MovieID: id}
		if m := s.find(id); m != nil {
			rec = *m
		}
		r := float64(rating)
		rec.Rating = &r
		out = append(out, rec)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].MovieID < out[j].MovieID })
	return out
}

func (s *Server) userStats(u string) models.Statistics {
	var st models.Statistics
	sum := 0
	for _, r := range s.ratings[u] {
		st.TotalRatings++
		sum += r
	}
	if st.TotalRatings > 0 {
		st.AverageRating = float64(sum) / float64(st.TotalRatings)
	}
	return st
}

func number(v any) int {
	switch n := v.(type) {
	case float64:
		return int(n)
	case string:
		i, _ := strconv.Atoi(n)
		return i
	}
	return 0
}
