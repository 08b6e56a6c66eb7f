// Package tokenstore holds the single bearer token of the client.
//
// Store is the port every component borrows the token through. Memory is
// used by tests and short-lived processes; SQLite persists the token in the
// local database so it survives a restart until it is cleared explicitly
// or rejected by the server.
package tokenstore

import (
	"context"
	"sync"
)

// Store holds at most one token. Set overwrites unconditionally and Clear
// is idempotent. There is no expiry tracking: a stale token is discovered
// when the server answers 401.
type Store interface {
	Set(ctx context.Context, token string) error
	Get(ctx context.Context) (string, bool, error)
	Clear(ctx context.Context) error
}

type Memory struct {
	mu    sync.RWMutex
	token string
}

func NewMemory() *Memory {
	return &Memory{}
}

func (m *Memory) Set(_ context.Context, token string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.token = token
	return nil
}

func (m *Memory) Get(_ context.Context) (string, bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.token, m.token != "", nil
}

func (m *Memory) Clear(_ context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.token = ""
	return nil
}

// Present reports whether s currently holds a token. Storage errors count
// as "no token" so that guards fail closed.
func Present(ctx context.Context, s Store) bool {
	_, ok, err := s.Get(ctx)
	return err == nil && ok
}
