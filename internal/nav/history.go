// Package nav keeps the navigation history of a workspace, the way a browser
// tab keeps its session history.
package nav

import "sync"

// Entry is one history entry: a canonical URL plus the view state it encodes.
type Entry struct {
	URL   string
	State map[string]string
}

// History is a stack of entries with a cursor. Push drops everything ahead
// of the cursor. It is safe for concurrent use.
type History struct {
	mu      sync.Mutex
	entries []Entry
	cursor  int
}

func NewHistory() *History {
	return &History{cursor: -1}
}

// Push appends e after the current entry and makes it current.
func (h *History) Push(e Entry) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.entries = append(h.entries[:h.cursor+1], e)
	h.cursor = len(h.entries) - 1
}

// Replace overwrites the current entry, or pushes e when history is empty.
func (h *History) Replace(e Entry) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.cursor < 0 {
		h.entries = append(h.entries[:0], e)
		h.cursor = 0
		return
	}
	h.entries[h.cursor] = e
}

// Back moves the cursor one entry back. ok is false at the start.
func (h *History) Back() (e Entry, ok bool) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.cursor <= 0 {
		return Entry{}, false
	}
	h.cursor--
	return h.entries[h.cursor], true
}

// Forward moves the cursor one entry forward. ok is false at the end.
func (h *History) Forward() (e Entry, ok bool) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.cursor+1 >= len(h.entries) {
		return Entry{}, false
	}
	h.cursor++
	return h.entries[h.cursor], true
}

func (h *History) Current() (e Entry, ok bool) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.cursor < 0 {
		return Entry{}, false
	}
	return h.entries[h.cursor], true
}

func (h *History) Len() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.entries)
}
