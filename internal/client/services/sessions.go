package services

import (
	"context"
	"slices"
	"sync"

	"github.com/dmitrijs2005/bezrook/internal/client/client"
	"github.com/dmitrijs2005/bezrook/internal/client/models"
)

// SessionAPI is the part of client.Client the SessionManager needs.
type SessionAPI interface {
	ListSessions(ctx context.Context) ([]models.SessionRecord, error)
	RevokeSession(ctx context.Context, id models.SessionID) error
}

// SessionManager mirrors the server's list of login sessions. The list is
// replaced wholesale on every refresh; with overlapping calls the last
// response wins.
type SessionManager struct {
	api SessionAPI

	mu       sync.Mutex
	sessions []models.SessionRecord
}

func NewSessionManager(api SessionAPI) *SessionManager {
	return &SessionManager{api: api}
}

// Refresh replaces the local list. Errors, ErrSessionExpired included,
// are returned as the client produced them and leave the list untouched.
func (m *SessionManager) Refresh(ctx context.Context) error {
	list, err := m.api.ListSessions(ctx)
	if err != nil {
		return err
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	m.sessions = list
	return nil
}

// Revoke terminates another session and then refreshes. The current
// session is refused without a request. An id missing from the local list
// triggers a refresh first, so a stale or empty list cannot let the current
// session through. Nothing is removed locally before the server confirms.
func (m *SessionManager) Revoke(ctx context.Context, id models.SessionID) error {
	current, known := m.lookup(id)
	if !known {
		if err := m.Refresh(ctx); err != nil {
			return err
		}
		current, _ = m.lookup(id)
	}
	if current {
		return client.InvalidOperation("cannot revoke the current session, log out instead")
	}

	if err := m.api.RevokeSession(ctx, id); err != nil {
		return err
	}
	return m.Refresh(ctx)
}

func (m *SessionManager) lookup(id models.SessionID) (current, known bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, s := range m.sessions {
		if s.ID == id {
			return s.IsCurrent, true
		}
	}
	return false, false
}

// Sessions returns a copy of the list in server order.
func (m *SessionManager) Sessions() []models.SessionRecord {
	m.mu.Lock()
	defer m.mu.Unlock()
	return slices.Clone(m.sessions)
}

// Revocable tells the UI whether to offer revoke for rec.
func (m *SessionManager) Revocable(rec models.SessionRecord) bool {
	return !rec.IsCurrent
}

func (m *SessionManager) Clear() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sessions = nil
}
