package workspace

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"movie-recommender-web/internal/metrics"
)

// Factory builds the workspace for a new session id.
type Factory func(id string) (*Workspace, error)

// Manager owns the live workspaces, keyed by session id.
type Manager struct {
	factory Factory
	ttl     time.Duration

	mu     sync.Mutex
	spaces map[string]*Workspace
}

func NewManager(ttl time.Duration, factory Factory) *Manager {
	return &Manager{factory: factory, ttl: ttl, spaces: make(map[string]*Workspace)}
}

// Acquire returns the workspace for id, creating it when missing.
func (m *Manager) Acquire(id string) (*Workspace, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if w, ok := m.spaces[id]; ok {
		w.Touch()
		return w, nil
	}
	w, err := m.factory(id)
	if err != nil {
		return nil, err
	}
	m.spaces[id] = w
	metrics.WorkspacesActive.Set(float64(len(m.spaces)))
	slog.Debug("workspace created", "id", id)
	return w, nil
}

// Get returns an existing workspace without creating one.
func (m *Manager) Get(id string) (*Workspace, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	w, ok := m.spaces[id]
	if ok {
		w.Touch()
	}
	return w, ok
}

func (m *Manager) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.spaces)
}

// Sweep closes workspaces idle for longer than the TTL and returns how many
// were removed.
func (m *Manager) Sweep(now time.Time) int {
	m.mu.Lock()
	var idle []*Workspace
	for id, w := range m.spaces {
		if now.Sub(w.LastSeen()) > m.ttl {
			idle = append(idle, w)
			delete(m.spaces, id)
		}
	}
	metrics.WorkspacesActive.Set(float64(len(m.spaces)))
	m.mu.Unlock()

	for _, w := range idle {
		w.Close()
	}
	if len(idle) > 0 {
		slog.Info("swept idle workspaces", "count", len(idle))
	}
	return len(idle)
}

// Run sweeps periodically until ctx is done.
func (m *Manager) Run(ctx context.Context) {
	interval := max(m.ttl/2, time.Second)
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case now := <-ticker.C:
			m.Sweep(now)
		}
	}
}

// Close closes every workspace.
func (m *Manager) Close() {
	m.mu.Lock()
	spaces := m.spaces
	m.spaces = make(map[string]*Workspace)
	metrics.WorkspacesActive.Set(0)
	m.mu.Unlock()

	for _, w := range spaces {
		w.Close()
	}
}
