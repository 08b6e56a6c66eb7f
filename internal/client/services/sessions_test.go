package services

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dmitrijs2005/bezrook/internal/client/client"
	"github.com/dmitrijs2005/bezrook/internal/client/models"
)

func sampleSessions() []models.SessionRecord {
	start := time.Date(2025, 3, 1, 10, 30, 0, 0, time.UTC)
	return []models.SessionRecord{
		{ID: "1", Device: "DESKTOP-AAAA", StartTime: start},
		{ID: "2", Device: "DESKTOP-BBBB", StartTime: start.Add(time.Hour), IsCurrent: true},
		{ID: "3", Device: "PHONE", StartTime: start.Add(2 * time.Hour)},
	}
}

func TestSessionManager_RefreshReplacesList(t *testing.T) {
	api := &fakeAPI{SessionsRes: sampleSessions()}
	m := NewSessionManager(api)
	ctx := context.Background()

	require.NoError(t, m.Refresh(ctx))
	assert.Len(t, m.Sessions(), 3)

	api.set(func(a *fakeAPI) { a.SessionsRes = a.SessionsRes[1:2] })
	require.NoError(t, m.Refresh(ctx))
	assert.Equal(t, []models.SessionID{"2"}, ids(m.Sessions()))
}

func TestSessionManager_RefreshPropagatesExpiry(t *testing.T) {
	api := &fakeAPI{SessionsRes: sampleSessions()}
	m := NewSessionManager(api)
	ctx := context.Background()
	require.NoError(t, m.Refresh(ctx))

	api.set(func(a *fakeAPI) { a.ListErr = client.ErrSessionExpired })
	err := m.Refresh(ctx)
	assert.Same(t, client.ErrSessionExpired, err)
	assert.Len(t, m.Sessions(), 3)
}

func TestSessionManager_RevokeCurrentSendsNothing(t *testing.T) {
	api := &fakeAPI{SessionsRes: sampleSessions()}
	m := NewSessionManager(api)
	ctx := context.Background()
	require.NoError(t, m.Refresh(ctx))

	err := m.Revoke(ctx, "2")
	require.ErrorIs(t, err, client.ErrInvalidOperation)
	assert.Empty(t, api.Revoked)
	assert.Equal(t, 1, api.ListCalls)
}

func TestSessionManager_RevokeRefreshes(t *testing.T) {
	api := &fakeAPI{SessionsRes: sampleSessions()}
	m := NewSessionManager(api)
	ctx := context.Background()
	require.NoError(t, m.Refresh(ctx))

	require.NoError(t, m.Revoke(ctx, "3"))
	assert.Equal(t, []models.SessionID{"3"}, api.Revoked)
	assert.Equal(t, 2, api.ListCalls)
	assert.Equal(t, []models.SessionID{"1", "2"}, ids(m.Sessions()))
}

func TestSessionManager_RevokeFailureKeepsList(t *testing.T) {
	api := &fakeAPI{SessionsRes: sampleSessions(), RevokeErr: &client.RejectedError{Status: 404, Detail: "Session not found"}}
	m := NewSessionManager(api)
	ctx := context.Background()
	require.NoError(t, m.Refresh(ctx))

	err := m.Revoke(ctx, "1")
	require.ErrorIs(t, err, client.ErrServerRejected)
	assert.Equal(t, []models.SessionID{"1", "2", "3"}, ids(m.Sessions()))
	assert.Equal(t, 1, api.ListCalls)
}

// Unknown ids go to the server, which decides.
func TestSessionManager_RevokeUnknown(t *testing.T) {
	api := &fakeAPI{SessionsRes: sampleSessions()}
	m := NewSessionManager(api)

	require.NoError(t, m.Revoke(context.Background(), "42"))
	assert.Equal(t, []models.SessionID{"42"}, api.Revoked)
	assert.Equal(t, 2, api.ListCalls)
}

// A manager that never listed sessions still refuses the current one.
func TestSessionManager_RevokeCurrentBeforeRefresh(t *testing.T) {
	api := &fakeAPI{SessionsRes: sampleSessions()}
	m := NewSessionManager(api)

	err := m.Revoke(context.Background(), "2")
	require.ErrorIs(t, err, client.ErrInvalidOperation)
	assert.Empty(t, api.Revoked)
	assert.Equal(t, 1, api.ListCalls)
	assert.Equal(t, sampleSessions(), m.Sessions())
}

func TestSessionManager_RevokeStaleListRefreshesFirst(t *testing.T) {
	api := &fakeAPI{SessionsRes: sampleSessions()[:1]}
	m := NewSessionManager(api)
	ctx := context.Background()
	require.NoError(t, m.Refresh(ctx))

	// the current session appeared on the server after the last refresh
	api.set(func(a *fakeAPI) { a.SessionsRes = sampleSessions() })
	err := m.Revoke(ctx, "2")
	require.ErrorIs(t, err, client.ErrInvalidOperation)
	assert.Empty(t, api.Revoked)
	assert.Equal(t, 2, api.ListCalls)
}

func TestSessionManager_RevokeUnknownRefreshErrorSendsNothing(t *testing.T) {
	boom := errors.New("boom")
	api := &fakeAPI{SessionsRes: sampleSessions(), ListErr: boom}
	m := NewSessionManager(api)

	err := m.Revoke(context.Background(), "3")
	require.ErrorIs(t, err, boom)
	assert.Empty(t, api.Revoked)
}

func TestSessionManager_RevokeRefreshError(t *testing.T) {
	api := &fakeAPI{SessionsRes: sampleSessions()}
	m := NewSessionManager(api)
	ctx := context.Background()
	require.NoError(t, m.Refresh(ctx))

	boom := errors.New("boom")
	api.set(func(a *fakeAPI) { a.ListErr = boom })
	err := m.Revoke(ctx, "1")
	require.ErrorIs(t, err, boom)
	assert.Equal(t, []models.SessionID{"1"}, api.Revoked)
}

func TestSessionManager_SessionsIsACopy(t *testing.T) {
	api := &fakeAPI{SessionsRes: sampleSessions()}
	m := NewSessionManager(api)
	require.NoError(t, m.Refresh(context.Background()))

	got := m.Sessions()
	got[0].Device = "changed"
	assert.Equal(t, "DESKTOP-AAAA", m.Sessions()[0].Device)

	m.Clear()
	assert.Empty(t, m.Sessions())
}

func TestSessionManager_Revocable(t *testing.T) {
	m := NewSessionManager(&fakeAPI{})
	for _, s := range sampleSessions() {
		assert.Equal(t, !s.IsCurrent, m.Revocable(s), "session %s", s.ID)
	}
}

func ids(list []models.SessionRecord) []models.SessionID {
	out := make([]models.SessionID, 0, len(list))
	for _, s := range list {
		out = append(out, s.ID)
	}
	return out
}

func TestAccount(t *testing.T) {
	api := &fakeAPI{ProfileRes: &models.UserProfile{Username: "alice", SignupDate: "01-03-2025"}}
	a := NewAccount(api)
	ctx := context.Background()

	_, ok := a.Profile()
	assert.False(t, ok)
	assert.False(t, a.CanEnrollTOTP())
	a.SetTOTPEnabled(true)

	p, err := a.Load(ctx)
	require.NoError(t, err)
	assert.Equal(t, "alice", p.Username)
	assert.True(t, a.CanEnrollTOTP())

	api.set(func(f *fakeAPI) { f.ProfileErr = client.ErrNetwork })
	_, err = a.Load(ctx)
	require.ErrorIs(t, err, client.ErrNetwork)
	cached, ok := a.Profile()
	require.True(t, ok)
	assert.Equal(t, "alice", cached.Username)

	a.SetTOTPEnabled(true)
	assert.False(t, a.CanEnrollTOTP())

	a.Clear()
	_, ok = a.Profile()
	assert.False(t, ok)
}
