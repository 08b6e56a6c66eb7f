// Package services contains the application services of the bezrook
// client: the authentication router, TOTP enrollment, session management
// and the profile holder. Each depends on a narrow slice of client.Client
// so tests can substitute hand-written fakes.
package services

import (
	"context"
	"fmt"
	"sync"

	"github.com/dmitrijs2005/bezrook/internal/client/client"
	"github.com/dmitrijs2005/bezrook/internal/client/codeentry"
	"github.com/dmitrijs2005/bezrook/internal/client/models"
	"github.com/dmitrijs2005/bezrook/internal/client/tokenstore"
	"github.com/dmitrijs2005/bezrook/internal/logging"
)

// State is the top-level authentication state.
type State int

const (
	StateLoggedOut State = iota
	StateAwaitingTOTP
	StateAuthenticated
)

func (s State) String() string {
	switch s {
	case StateLoggedOut:
		return "logged_out"
	case StateAwaitingTOTP:
		return "awaiting_totp"
	case StateAuthenticated:
		return "authenticated"
	default:
		return fmt.Sprintf("state(%d)", int(s))
	}
}

// AuthAPI is the part of client.Client the AuthFlow needs.
type AuthAPI interface {
	Login(ctx context.Context, creds models.Credentials) (*models.LoginResult, error)
	Register(ctx context.Context, creds models.Credentials) error
	VerifyTOTP(ctx context.Context, code string) error
	OnSessionExpired(fn func(ctx context.Context))
}

// AuthFlow sequences login, the optional TOTP challenge and the
// authenticated state. The awaiting-TOTP and authenticated states require
// a stored token; Navigate re-checks it on every entry.
type AuthFlow struct {
	api    AuthAPI
	tokens tokenstore.Store
	log    logging.Logger

	mu        sync.Mutex
	state     State
	gen       uint64
	listeners []func(from, to State)
}

// NewAuthFlow starts in StateLoggedOut and subscribes to the client's
// session-expired hook, so a 401 from any request other than the TOTP
// challenge forces a logout.
func NewAuthFlow(api AuthAPI, tokens tokenstore.Store, log logging.Logger) *AuthFlow {
	f := &AuthFlow{api: api, tokens: tokens, log: log, state: StateLoggedOut}
	api.OnSessionExpired(f.forceLogout)
	return f
}

func (f *AuthFlow) State() State {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.state
}

// OnChange registers fn to run after every state change, outside the
// flow's lock.
func (f *AuthFlow) OnChange(fn func(from, to State)) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.listeners = append(f.listeners, fn)
}

// setLocked changes state and returns the notification to run once the
// lock is released.
func (f *AuthFlow) setLocked(to State) func() {
	from := f.state
	if from == to {
		return func() {}
	}
	f.state = to
	f.gen++
	listeners := append([]func(State, State){}, f.listeners...)
	return func() {
		for _, fn := range listeners {
			fn(from, to)
		}
	}
}

func (f *AuthFlow) transition(ctx context.Context, to State) {
	f.mu.Lock()
	from := f.state
	notify := f.setLocked(to)
	f.mu.Unlock()

	if from != to {
		f.log.Info(ctx, "auth state changed", "from", from, "to", to)
	}
	notify()
}

// Login submits the credentials. On success the flow moves to
// StateAwaitingTOTP when the server asks for a second factor and to
// StateAuthenticated otherwise. On failure the state is unchanged.
func (f *AuthFlow) Login(ctx context.Context, creds models.Credentials) (*models.LoginResult, error) {
	if f.State() == StateAuthenticated {
		return nil, client.InvalidOperation("already logged in")
	}

	res, err := f.api.Login(ctx, creds)
	if err != nil {
		return nil, err
	}

	if res.TOTPRequired {
		f.transition(ctx, StateAwaitingTOTP)
	} else {
		f.transition(ctx, StateAuthenticated)
	}
	return res, nil
}

// Register validates the form, repeated password included, and creates
// the account. It does not log in.
func (f *AuthFlow) Register(ctx context.Context, creds models.Credentials, repeat string) error {
	if err := client.ValidateRegistration(creds, repeat); err != nil {
		return err
	}
	return f.api.Register(ctx, creds)
}

// VerifyTOTP answers the login challenge. A late answer for a challenge
// that was left meanwhile is dropped.
func (f *AuthFlow) VerifyTOTP(ctx context.Context, code string) error {
	f.mu.Lock()
	if f.state != StateAwaitingTOTP {
		f.mu.Unlock()
		return client.InvalidOperation("no TOTP challenge in progress")
	}
	gen := f.gen
	f.mu.Unlock()

	if err := f.api.VerifyTOTP(ctx, code); err != nil {
		return err
	}

	f.mu.Lock()
	if f.gen != gen || f.state != StateAwaitingTOTP {
		f.mu.Unlock()
		f.log.Debug(ctx, "dropping late TOTP verification")
		return client.InvalidOperation("TOTP challenge is no longer active")
	}
	notify := f.setLocked(StateAuthenticated)
	f.mu.Unlock()

	f.log.Info(ctx, "auth state changed", "from", StateAwaitingTOTP, "to", StateAuthenticated)
	notify()
	return nil
}

// ChallengeEntry returns a fresh code collector that submits to
// VerifyTOTP.
func (f *AuthFlow) ChallengeEntry() *codeentry.Controller {
	return codeentry.New(f.VerifyTOTP)
}

// Navigate requests a state. StateAwaitingTOTP and StateAuthenticated are
// entered only while a token is stored; otherwise the flow falls back to
// StateLoggedOut. The check is token presence only: a token obtained
// before an outstanding second factor passes it.
func (f *AuthFlow) Navigate(ctx context.Context, to State) State {
	if to != StateLoggedOut && !tokenstore.Present(ctx, f.tokens) {
		to = StateLoggedOut
	}
	f.transition(ctx, to)
	return to
}

// Logout clears the token and returns to StateLoggedOut from any state.
func (f *AuthFlow) Logout(ctx context.Context) error {
	err := f.tokens.Clear(ctx)
	f.transition(ctx, StateLoggedOut)
	if err != nil {
		return fmt.Errorf("logout: %w", err)
	}
	return nil
}

// forceLogout runs from the client's session-expired hook. The token is
// already cleared by then.
func (f *AuthFlow) forceLogout(ctx context.Context) {
	f.log.Warn(ctx, "forced logout", "from", f.State())
	f.transition(ctx, StateLoggedOut)
}
