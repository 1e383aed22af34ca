package localstore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"movie-recommender-web/internal/models"
)

// Kind names a client-owned list.
type Kind string

const (
	Favorites Kind = "favorites"
	Watchlist Kind = "watchlist"
)

var ErrUnknownKind = errors.New("unknown list")

// ParseKind validates a list kind taken from a request.
func ParseKind(s string) (Kind, error) {
	switch k := Kind(s); k {
	case Favorites, Watchlist:
		return k, nil
	default:
		return "", fmt.Errorf("%w %q", ErrUnknownKind, s)
	}
}

// Key is the storage key of a user's list, e.g. "favorites:alice".
func Key(kind Kind, username string) string {
	return string(kind) + ":" + username
}

// Entry is one list item. Timestamp is in milliseconds since the epoch.
type Entry struct {
	MovieID   models.MovieID `json:"movie_id"`
	Title     string         `json:"title"`
	Timestamp int64          `json:"timestamp"`
}

// Lists reads and mutates favorites and watchlists. A stored value that does
// not decode reads as an empty list.
type Lists struct {
	store Store
	now   func() time.Time

	// serializes read-modify-write cycles
	mu sync.Mutex
}

func NewLists(store Store) *Lists {
	return &Lists{store: store, now: time.Now}
}

// Entries returns the list in insertion order.
func (l *Lists) Entries(ctx context.Context, kind Kind, username string) ([]Entry, error) {
	raw, err := l.store.Get(ctx, Key(kind, username))
	if errors.Is(err, ErrNotFound) {
		return []Entry{}, nil
	}
	if err != nil {
		return nil, err
	}
	var entries []Entry
	if err := json.Unmarshal([]byte(raw), &entries); err != nil {
		slog.Warn("discarding unreadable list", "kind", kind, "username", username, "error", err)
		return []Entry{}, nil
	}
	if entries == nil {
		entries = []Entry{}
	}
	return entries, nil
}

// Contains reports whether id is in the list.
func (l *Lists) Contains(ctx context.Context, kind Kind, username string, id models.MovieID) (bool, error) {
	entries, err := l.Entries(ctx, kind, username)
	if err != nil {
		return false, err
	}
	return indexOf(entries, id) >= 0, nil
}

// Count returns the number of entries in the list.
func (l *Lists) Count(ctx context.Context, kind Kind, username string) (int, error) {
	entries, err := l.Entries(ctx, kind, username)
	if err != nil {
		return 0, err
	}
	return len(entries), nil
}

// Toggle adds the movie when absent and removes it when present. It returns
// true when the movie was added.
func (l *Lists) Toggle(ctx context.Context, kind Kind, username string, id models.MovieID, title string) (bool, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	entries, err := l.Entries(ctx, kind, username)
	if err != nil {
		return false, err
	}
	added := false
	if i := indexOf(entries, id); i >= 0 {
		entries = append(entries[:i], entries[i+1:]...)
	} else {
		entries = append(entries, Entry{MovieID: id, Title: title, Timestamp: l.now().UnixMilli()})
		added = true
	}
	return added, l.save(ctx, kind, username, entries)
}

// Remove deletes the movie from the list. Removing an absent movie is a no-op.
func (l *Lists) Remove(ctx context.Context, kind Kind, username string, id models.MovieID) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	entries, err := l.Entries(ctx, kind, username)
	if err != nil {
		return err
	}
	i := indexOf(entries, id)
	if i < 0 {
		return nil
	}
	return l.save(ctx, kind, username, append(entries[:i], entries[i+1:]...))
}

func (l *Lists) save(ctx context.Context, kind Kind, username string, entries []Entry) error {
	data, err := json.Marshal(entries)
	if err != nil {
		return fmt.Errorf("encode %s list: %w", kind, err)
	}
	return l.store.Set(ctx, Key(kind, username), string(data))
}

func indexOf(entries []Entry, id models.MovieID) int {
	for i, e := range entries {
		if e.MovieID == id {
			return i
		}
	}
	return -1
}
