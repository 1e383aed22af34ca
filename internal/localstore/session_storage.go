package localstore

import "sync"

// Keys used in session storage.
const (
	LastButtonKey = "lastButton"
	UsernameKey   = "username"
)

// SessionStorage is tab-scoped state that lives as long as its workspace.
type SessionStorage struct {
	mu   sync.RWMutex
	data map[string]string
}

func NewSessionStorage() *SessionStorage {
	return &SessionStorage{data: make(map[string]string)}
}

func (s *SessionStorage) Get(key string) string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.data[key]
}

func (s *SessionStorage) Set(key, value string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.data[key] = value
}

func (s *SessionStorage) Delete(key string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.data, key)
}
