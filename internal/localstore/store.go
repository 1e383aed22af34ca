// Package localstore persists the client-owned state of a browser session:
// the per-user favorites and watchlist, plus the tab-scoped session storage.
//
// Lists are deliberately client-owned. They are never reconciled with the
// backend's own view of the user.
package localstore

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/redis/go-redis/v9"

	"movie-recommender-web/internal/config"
)

var ErrNotFound = errors.New("key not found")

// Store is a string key/value store. Get returns ErrNotFound for a missing key.
type Store interface {
	Get(ctx context.Context, key string) (string, error)
	Set(ctx context.Context, key, value string) error
	Delete(ctx context.Context, key string) error
	Close() error
}

// Open returns the store selected by cfg. rdb is only used by the redis driver.
func Open(ctx context.Context, cfg config.StoreConfig, rdb *redis.Client) (Store, error) {
	switch cfg.Driver {
	case config.StoreMemory:
		return NewMemory(), nil
	case config.StoreSQLite:
		return OpenSQLite(ctx, cfg.DSN)
	case config.StorePostgres:
		return OpenPostgres(ctx, cfg.DSN)
	case config.StoreRedis:
		if rdb == nil {
			return nil, fmt.Errorf("redis store requires a redis client")
		}
		return NewRedis(rdb, "movierec:"), nil
	default:
		return nil, fmt.Errorf("unknown store driver %q", cfg.Driver)
	}
}

// Memory is a process-local Store.
type Memory struct {
	mu   sync.RWMutex
	data map[string]string
}

func NewMemory() *Memory {
	return &Memory{data: make(map[string]string)}
}

func (m *Memory) Get(_ context.Context, key string) (string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	v, ok := m.data[key]
	if !ok {
		return "", ErrNotFound
	}
	return v, nil
}

func (m *Memory) Set(_ context.Context, key, value string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.data[key] = value
	return nil
}

func (m *Memory) Delete(_ context.Context, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.data, key)
	return nil
}

func (m *Memory) Close() error { return nil }
