// Package events is the in-process notification bus of a workspace. Each
// event kind has its own typed topic so publishers and subscribers agree on
// the payload at compile time.
package events

import (
	"sync"

	"movie-recommender-web/internal/models"
)

// RatingChanged is published after the backend accepted a saved or removed
// rating, so the user is logged in. Rating is 0 for a removal.
type RatingChanged struct {
	MovieID models.MovieID
	Rating  int
	Title   string
}

type UserLoggedIn struct {
	Username string
}

type UserLoggedOut struct {
	Username string
}

// ListChanged is published when a favorites or watchlist entry is toggled.
type ListChanged struct {
	Kind     string
	Username string
	MovieID  models.MovieID
	Added    bool
}

// Topic delivers events of one type to its subscribers, synchronously and in
// subscription order.
type Topic[T any] struct {
	mu     sync.RWMutex
	nextID int
	subs   []subscription[T]
}

type subscription[T any] struct {
	id int
	fn func(T)
}

// Subscribe registers fn and returns a func that removes it.
func (t *Topic[T]) Subscribe(fn func(T)) (unsubscribe func()) {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.nextID++
	id := t.nextID
	t.subs = append(t.subs, subscription[T]{id: id, fn: fn})

	var once sync.Once
	return func() {
		once.Do(func() {
			t.mu.Lock()
			defer t.mu.Unlock()
			for i, s := range t.subs {
				if s.id == id {
					t.subs = append(t.subs[:i:i], t.subs[i+1:]...)
					return
				}
			}
		})
	}
}

// Publish calls every subscriber with ev. Subscribers may publish or
// subscribe from inside their handler.
func (t *Topic[T]) Publish(ev T) {
	t.mu.RLock()
	subs := make([]subscription[T], len(t.subs))
	copy(subs, t.subs)
	t.mu.RUnlock()

	for _, s := range subs {
		s.fn(ev)
	}
}

// Len returns the number of subscribers.
func (t *Topic[T]) Len() int {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return len(t.subs)
}

// Bus groups the topics of one workspace.
type Bus struct {
	RatingChanged Topic[RatingChanged]
	UserLoggedIn  Topic[UserLoggedIn]
	UserLoggedOut Topic[UserLoggedOut]
	ListChanged   Topic[ListChanged]
}

func NewBus() *Bus {
	return &Bus{}
}
