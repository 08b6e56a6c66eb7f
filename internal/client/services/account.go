package services

import (
	"context"
	"sync"

	"github.com/dmitrijs2005/bezrook/internal/client/models"
)

// ProfileAPI is the part of client.Client the Account needs.
type ProfileAPI interface {
	Profile(ctx context.Context) (*models.UserProfile, error)
}

// Account holds the profile of the logged-in user. It is refreshed on
// every entry into the account view and read by everything else.
type Account struct {
	api ProfileAPI

	mu      sync.Mutex
	profile *models.UserProfile
}

func NewAccount(api ProfileAPI) *Account {
	return &Account{api: api}
}

// Load fetches the profile and replaces the cached one. On error the
// cached profile is kept.
func (a *Account) Load(ctx context.Context) (models.UserProfile, error) {
	p, err := a.api.Profile(ctx)
	if err != nil {
		return models.UserProfile{}, err
	}

	a.mu.Lock()
	defer a.mu.Unlock()
	a.profile = p
	return *p, nil
}

// Profile returns the cached profile, if one was loaded.
func (a *Account) Profile() (models.UserProfile, bool) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.profile == nil {
		return models.UserProfile{}, false
	}
	return *a.profile, true
}

func (a *Account) SetTOTPEnabled(enabled bool) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.profile != nil {
		a.profile.TOTPEnabled = enabled
	}
}

// CanEnrollTOTP is true once a profile without a second factor is loaded.
func (a *Account) CanEnrollTOTP() bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.profile != nil && !a.profile.TOTPEnabled
}

// Clear forgets the profile, e.g. on logout.
func (a *Account) Clear() {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.profile = nil
}
